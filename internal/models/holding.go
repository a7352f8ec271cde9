package models

// Holding represents a named collection of positions owned by one user.
// Names are unique per owner; deleting a holding removes its positions
// and snapshots.
type Holding struct {
	Base
	UserID      uint   `gorm:"not null;uniqueIndex:uq_holdings_user_name" json:"user_id"`
	Name        string `gorm:"size:100;not null;uniqueIndex:uq_holdings_user_name" json:"name"`
	Description string `gorm:"size:255" json:"description,omitempty"`

	Positions []Position `gorm:"foreignKey:HoldingID" json:"positions,omitempty"`

	// Populated at valuation time, never persisted. Nil means "unknown",
	// which callers must distinguish from zero.
	TotalValue         *float64 `gorm:"-" json:"total_value,omitempty"`
	TotalPnLPercentage *float64 `gorm:"-" json:"total_pnl_percentage,omitempty"`
}
