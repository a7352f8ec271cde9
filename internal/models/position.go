package models

import "github.com/shopspring/decimal"

// AssetType classifies what kind of instrument a position tracks.
// Stored as a string for portability.
type AssetType string

const (
	AssetTypeCrypto    AssetType = "CRYPTO"
	AssetTypeStock     AssetType = "STOCK"
	AssetTypeETF       AssetType = "ETF"
	AssetTypeForex     AssetType = "FOREX"
	AssetTypeCommodity AssetType = "COMMODITY"
)

// Position represents one ticker's quantity and cost basis within a holding.
// A ticker appears at most once per holding; repeated contributions are
// merged into the existing row via a weighted-average cost recompute.
type Position struct {
	Base
	HoldingID   uint            `gorm:"not null;uniqueIndex:uq_positions_holding_ticker" json:"holding_id"`
	Ticker      string          `gorm:"size:20;not null;uniqueIndex:uq_positions_holding_ticker" json:"ticker"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,8);not null" json:"quantity"`
	AvgBuyPrice decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"avg_buy_price"`
	AssetType   AssetType       `gorm:"size:20;not null" json:"asset_type"`

	// Populated at valuation time, never persisted. Nil means the price
	// could not be resolved, not a zero value.
	CurrentPrice  *float64 `gorm:"-" json:"current_price,omitempty"`
	CurrentValue  *float64 `gorm:"-" json:"current_value,omitempty"`
	PnLPercentage *float64 `gorm:"-" json:"pnl_percentage,omitempty"`
}
