package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/services"
)

// HoldingHandler handles holding and position requests
type HoldingHandler struct {
	portfolioService services.PortfolioServicer
	valuationService services.ValuationServicer
}

// NewHoldingHandler creates a new HoldingHandler
func NewHoldingHandler(portfolioService services.PortfolioServicer, valuationService services.ValuationServicer) *HoldingHandler {
	return &HoldingHandler{
		portfolioService: portfolioService,
		valuationService: valuationService,
	}
}

// CreateHoldingRequest represents the holding creation payload
type CreateHoldingRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=255"`
}

// UpdateHoldingRequest represents the holding update payload. Nil fields
// are left unchanged.
type UpdateHoldingRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=255"`
}

// AddPositionRequest represents a contribution to a holding
type AddPositionRequest struct {
	Ticker    string          `json:"ticker" binding:"required,max=20,ticker"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost" binding:"required"`
	AssetType string          `json:"asset_type" binding:"required,asset_type"`
}

// CreateHolding creates a new holding for the authenticated user
func (h *HoldingHandler) CreateHolding(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	holding, err := h.portfolioService.CreateHolding(userID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"holding": holding})
}

// GetUserHoldings returns the user's holdings, paginated, without valuation
func (h *HoldingHandler) GetUserHoldings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.portfolioService.GetUserHoldings(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetHolding returns a single holding with its positions valued at current
// prices. Unresolvable tickers come back unpriced; a cache backend failure
// fails the read.
func (h *HoldingHandler) GetHolding(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	holdingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	holding, err := h.portfolioService.GetHolding(userID, holdingID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.valuationService.Valuate(c.Request.Context(), holding); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"holding": holding})
}

// UpdateHolding renames a holding or changes its description
func (h *HoldingHandler) UpdateHolding(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	holdingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	holding, err := h.portfolioService.UpdateHolding(userID, holdingID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"holding": holding})
}

// DeleteHolding removes a holding along with its positions and snapshots
func (h *HoldingHandler) DeleteHolding(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	holdingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.portfolioService.DeleteHolding(userID, holdingID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Holding deleted"})
}

// AddPosition adds a contribution to a holding. A repeated ticker merges
// into the existing position at the weighted-average cost.
func (h *HoldingHandler) AddPosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	holdingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	position, err := h.portfolioService.AddPosition(userID, holdingID, req.Ticker, req.Quantity, req.UnitCost, models.AssetType(req.AssetType))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"position": position})
}

// RemovePosition deletes a ticker's position from a holding
func (h *HoldingHandler) RemovePosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	holdingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ticker := c.Param("ticker")
	if ticker == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid ticker"))
		return
	}

	if err := h.portfolioService.RemovePosition(userID, holdingID, ticker); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Position removed"})
}
