package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/pagination"
	"folio/internal/services"
)

// HistoryHandler serves holding valuation history
type HistoryHandler struct {
	valuationService services.ValuationServicer
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(valuationService services.ValuationServicer) *HistoryHandler {
	return &HistoryHandler{valuationService: valuationService}
}

// historyQuery holds the optional date range and pagination parameters.
type historyQuery struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	pagination.PageRequest
}

// GetHistory returns the daily snapshots for one of the user's holdings.
// The range defaults to the last thirty days.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
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

	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now
	if q.From != "" {
		from, _ = time.Parse("2006-01-02", q.From)
	}
	if q.To != "" {
		to, _ = time.Parse("2006-01-02", q.To)
	}
	if to.Before(from) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to must not be before from"))
		return
	}

	result, err := h.valuationService.GetHistory(userID, holdingID, from, to, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
