package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"folio/internal/cache"
	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/pagination"
)

// alertService handles price alert business logic.
type alertService struct {
	db       *gorm.DB
	cache    *cache.PriceCache
	notifier Notifier
}

// NewAlertService creates a new AlertServicer.
func NewAlertService(db *gorm.DB, priceCache *cache.PriceCache, notifier Notifier) AlertServicer {
	return &alertService{db: db, cache: priceCache, notifier: notifier}
}

// CreateAlert creates an active alert for the user.
func (s *alertService) CreateAlert(userID uint, ticker string, targetPrice decimal.Decimal, condition models.AlertCondition) (*models.Alert, error) {
	if !targetPrice.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target price must be greater than zero")
	}
	if condition != models.AlertConditionAbove && condition != models.AlertConditionBelow {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "condition must be ABOVE or BELOW")
	}

	alert := &models.Alert{
		UserID:      userID,
		Ticker:      strings.ToUpper(ticker),
		TargetPrice: targetPrice.Round(2),
		Condition:   condition,
		IsActive:    true,
	}
	if err := s.db.Create(alert).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return alert, nil
}

// GetUserAlerts returns a paginated list of the user's alerts.
func (s *alertService) GetUserAlerts(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Alert], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Alert{}).Where("user_id = ?", userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var alerts []models.Alert
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Scopes(pagination.Paginate(page)).Find(&alerts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(alerts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// getOwnedAlert loads an alert and verifies ownership.
func (s *alertService) getOwnedAlert(userID, alertID uint) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.First(&alert, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAlertNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if alert.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return &alert, nil
}

// ArmAlert re-activates a previously triggered alert. Triggering only ever
// deactivates; this is the single path back to active.
func (s *alertService) ArmAlert(userID, alertID uint) (*models.Alert, error) {
	alert, err := s.getOwnedAlert(userID, alertID)
	if err != nil {
		return nil, err
	}

	if !alert.IsActive {
		if err := s.db.Model(alert).Update("is_active", true).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		alert.IsActive = true
	}
	return alert, nil
}

// DeleteAlert removes one of the user's alerts.
func (s *alertService) DeleteAlert(userID, alertID uint) error {
	alert, err := s.getOwnedAlert(userID, alertID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(alert).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// EvaluateActive checks every active alert against the price cache. It
// never forces a fetch: it rides on whatever the refresh job already
// populated, and alerts whose ticker has no cached price are skipped.
// Triggered alerts are notified (best-effort; a failed notification is
// logged but the alert still counts as fired) and then deactivated in a
// single batched update at the end of the pass.
func (s *alertService) EvaluateActive(ctx context.Context) (int, error) {
	var alerts []models.Alert
	if err := s.db.Where("is_active = ?", true).Find(&alerts).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var triggeredIDs []uint
	for i := range alerts {
		alert := &alerts[i]

		price, ok, err := s.cache.Get(ctx, alert.Ticker)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}

		target := alert.TargetPrice.InexactFloat64()
		triggered := (alert.Condition == models.AlertConditionAbove && price > target) ||
			(alert.Condition == models.AlertConditionBelow && price < target)
		if !triggered {
			continue
		}

		logger.Get().Infow("alert triggered",
			"alert_id", alert.ID,
			"ticker", alert.Ticker,
			"condition", alert.Condition,
			"price", price,
			"target", target,
		)

		if err := s.notifier.Notify(alert.UserID, alert.Ticker, price, alert.Condition, target); err != nil {
			logger.Get().Warnw("notification delivery failed", "alert_id", alert.ID, "error", err)
		}
		triggeredIDs = append(triggeredIDs, alert.ID)
	}

	if len(triggeredIDs) > 0 {
		if err := s.db.Model(&models.Alert{}).
			Where("id IN ?", triggeredIDs).
			Update("is_active", false).Error; err != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return len(triggeredIDs), nil
}
