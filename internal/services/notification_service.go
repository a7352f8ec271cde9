package services

import (
	"folio/internal/logger"
	"folio/internal/models"
)

// logNotifier mocks email delivery by writing the alert to the log.
type logNotifier struct{}

// NewLogNotifier creates a Notifier that logs instead of sending email.
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

// Notify logs the triggered alert in place of a real email.
func (n *logNotifier) Notify(userID uint, ticker string, price float64, condition models.AlertCondition, target float64) error {
	logger.Get().Infow("[MOCK EMAIL] price alert triggered",
		"user_id", userID,
		"ticker", ticker,
		"price", price,
		"condition", condition,
		"target", target,
	)
	return nil
}
