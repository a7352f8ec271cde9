package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"folio/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    fmt.Sprintf("user%d@test.com", nextID()),
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestHolding creates a holding with a unique name for the user.
func CreateTestHolding(t *testing.T, db *gorm.DB, userID uint) *models.Holding {
	t.Helper()

	holding := &models.Holding{
		UserID: userID,
		Name:   fmt.Sprintf("Test Holding %d", nextID()),
	}
	if err := db.Create(holding).Error; err != nil {
		t.Fatalf("failed to create test holding: %v", err)
	}
	return holding
}

// CreateTestPosition creates a position for a holding.
func CreateTestPosition(t *testing.T, db *gorm.DB, holdingID uint, ticker string, quantity, avgBuyPrice decimal.Decimal) *models.Position {
	t.Helper()

	position := &models.Position{
		HoldingID:   holdingID,
		Ticker:      ticker,
		Quantity:    quantity,
		AvgBuyPrice: avgBuyPrice,
		AssetType:   models.AssetTypeCrypto,
	}
	if err := db.Create(position).Error; err != nil {
		t.Fatalf("failed to create test position: %v", err)
	}
	return position
}

// CreateTestAlert creates an active alert for the user.
func CreateTestAlert(t *testing.T, db *gorm.DB, userID uint, ticker string, targetPrice decimal.Decimal, condition models.AlertCondition) *models.Alert {
	t.Helper()

	alert := &models.Alert{
		UserID:      userID,
		Ticker:      ticker,
		TargetPrice: targetPrice,
		Condition:   condition,
		IsActive:    true,
	}
	if err := db.Create(alert).Error; err != nil {
		t.Fatalf("failed to create test alert: %v", err)
	}
	return alert
}
