package models

import (
	"time"

	"folio/internal/uuid"

	"gorm.io/gorm"
)

// HistorySnapshot records a holding's value for one calendar date.
// Immutable time-series data, so no Base embed and no soft deletes; at most
// one row exists per (holding, date) and a second write for the same day
// overwrites the first.
type HistorySnapshot struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UUID               string    `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	HoldingID          uint      `gorm:"not null;uniqueIndex:uq_snapshots_holding_date" json:"holding_id"`
	Date               time.Time `gorm:"type:date;not null;uniqueIndex:uq_snapshots_holding_date" json:"date"`
	TotalValue         float64   `gorm:"not null" json:"total_value"`
	TotalPnLPercentage *float64  `gorm:"column:total_pnl_percentage" json:"total_pnl_percentage,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// BeforeCreate hook assigns a UUIDv7 public identifier to new records.
func (s *HistorySnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == "" {
		s.UUID = uuid.New()
	}
	return nil
}
