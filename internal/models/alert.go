package models

import "github.com/shopspring/decimal"

// AlertCondition is the direction a price alert watches.
type AlertCondition string

const (
	AlertConditionAbove AlertCondition = "ABOVE"
	AlertConditionBelow AlertCondition = "BELOW"
)

// Alert is a user-defined price threshold watch on a ticker. Alerts are
// created active and flip to inactive exactly once when triggered; only an
// explicit re-arm makes them active again.
type Alert struct {
	Base
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Ticker      string          `gorm:"size:20;not null" json:"ticker"`
	TargetPrice decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"target_price"`
	Condition   AlertCondition  `gorm:"size:10;not null" json:"condition"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`
}
