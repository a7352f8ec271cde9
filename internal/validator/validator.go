// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Tickers are uppercase alphanumeric symbols, e.g. BTC, AAPL.
var tickerRegex = regexp.MustCompile(`^[A-Z0-9]+$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("ticker", validateTicker)
		_ = v.RegisterValidation("asset_type", validateAssetType)
		_ = v.RegisterValidation("alert_condition", validateAlertCondition)
	}
}

func validateTicker(fl validator.FieldLevel) bool {
	return tickerRegex.MatchString(fl.Field().String())
}

func validateAssetType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "CRYPTO", "STOCK", "ETF", "FOREX", "COMMODITY":
		return true
	}
	return false
}

func validateAlertCondition(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "ABOVE", "BELOW":
		return true
	}
	return false
}
