package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
	"folio/internal/pagination"
)

// QuoteSource fetches a current price for a ticker from an external quote
// provider. Business-level absence (unknown ticker, provider outage) is a
// normal ok=false result, never an error.
type QuoteSource interface {
	Name() string
	FetchPrice(ctx context.Context, ticker string) (float64, bool)
}

// Notifier delivers alert notifications. Delivery is best-effort from the
// evaluator's perspective.
type Notifier interface {
	Notify(userID uint, ticker string, price float64, condition models.AlertCondition, target float64) error
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
}

// PriceServicer composes the price cache and the quote source.
type PriceServicer interface {
	// GetPrice returns the current price for a ticker, consulting the cache
	// first unless forceRefresh is set. ok=false means the price could not
	// be resolved; err is reserved for cache backend failures.
	GetPrice(ctx context.Context, ticker string, forceRefresh bool) (float64, bool, error)
}

// PortfolioServicer defines the contract for holding and position logic,
// including the weighted-average cost merge on repeated contributions.
type PortfolioServicer interface {
	CreateHolding(userID uint, name, description string) (*models.Holding, error)
	GetHolding(userID, holdingID uint) (*models.Holding, error)
	GetUserHoldings(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Holding], error)
	UpdateHolding(userID, holdingID uint, name, description *string) (*models.Holding, error)
	DeleteHolding(userID, holdingID uint) error
	AddPosition(userID, holdingID uint, ticker string, quantity, unitCost decimal.Decimal, assetType models.AssetType) (*models.Position, error)
	RemovePosition(userID, holdingID uint, ticker string) error
}

// ValuationServicer prices holdings and maintains daily history snapshots.
type ValuationServicer interface {
	// Valuate enriches the holding and its positions in place with current
	// prices, values, and PnL percentages. Unresolved prices leave the
	// per-position fields nil and contribute nothing to the totals.
	Valuate(ctx context.Context, holding *models.Holding) error

	// SnapshotAll values every holding in the system and upserts a
	// HistorySnapshot for the given date. Returns the number of snapshots
	// written; the batch aborts on the first failing holding.
	SnapshotAll(ctx context.Context, date time.Time) (int, error)

	GetHistory(userID, holdingID uint, from, to time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.HistorySnapshot], error)
}

// AlertServicer defines the contract for price alerts.
type AlertServicer interface {
	CreateAlert(userID uint, ticker string, targetPrice decimal.Decimal, condition models.AlertCondition) (*models.Alert, error)
	GetUserAlerts(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Alert], error)
	ArmAlert(userID, alertID uint) (*models.Alert, error)
	DeleteAlert(userID, alertID uint) error

	// EvaluateActive checks all active alerts against cached prices only,
	// notifies for those that trigger, and deactivates them in one batch.
	// Returns the number of alerts that fired.
	EvaluateActive(ctx context.Context) (int, error)
}
