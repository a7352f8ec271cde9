package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/pagination"
)

// valuationService prices holdings and maintains history snapshots.
type valuationService struct {
	db     *gorm.DB
	prices PriceServicer
}

// NewValuationService creates a new ValuationServicer.
func NewValuationService(db *gorm.DB, prices PriceServicer) ValuationServicer {
	return &valuationService{db: db, prices: prices}
}

// fetchPrices resolves prices for a set of tickers concurrently, one call
// per distinct ticker. Tickers whose price cannot be resolved are simply
// missing from the result map. A cache backend failure aborts the whole
// lookup.
func (s *valuationService) fetchPrices(ctx context.Context, tickers []string, forceRefresh bool) (map[string]float64, error) {
	prices := make(map[string]float64, len(tickers))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)

	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			price, ok, err := s.prices.GetPrice(ctx, ticker, forceRefresh)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if ok {
				prices[ticker] = price
			}
		}(ticker)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return prices, nil
}

// distinctTickers returns each ticker in the positions exactly once.
func distinctTickers(positions []models.Position) []string {
	seen := make(map[string]struct{}, len(positions))
	tickers := make([]string, 0, len(positions))
	for i := range positions {
		if _, ok := seen[positions[i].Ticker]; ok {
			continue
		}
		seen[positions[i].Ticker] = struct{}{}
		tickers = append(tickers, positions[i].Ticker)
	}
	return tickers
}

// Valuate enriches a holding and its positions in place. Positions whose
// price resolves get CurrentPrice, CurrentValue and PnLPercentage; the rest
// keep nil values and contribute nothing to the totals, so callers can tell
// "worth zero" apart from "price unknown". Totals aggregate the resolved
// subset only.
func (s *valuationService) Valuate(ctx context.Context, holding *models.Holding) error {
	prices, err := s.fetchPrices(ctx, distinctTickers(holding.Positions), false)
	if err != nil {
		return err
	}

	var totalValue, totalCost float64
	for i := range holding.Positions {
		pos := &holding.Positions[i]
		price, ok := prices[pos.Ticker]
		if !ok {
			continue
		}

		quantity := pos.Quantity.InexactFloat64()
		currentValue := quantity * price
		costValue := quantity * pos.AvgBuyPrice.InexactFloat64()

		pos.CurrentPrice = &price
		pos.CurrentValue = &currentValue
		if costValue > 0 {
			pnl := (currentValue - costValue) / costValue * 100
			pos.PnLPercentage = &pnl
		}

		totalValue += currentValue
		totalCost += costValue
	}

	holding.TotalValue = &totalValue
	if totalCost > 0 {
		totalPnL := (totalValue - totalCost) / totalCost * 100
		holding.TotalPnLPercentage = &totalPnL
	}
	return nil
}

// SnapshotAll values every holding in the system and upserts a
// HistorySnapshot for the given calendar date, one row per (holding, date);
// a second run the same day overwrites the first. The batch aborts on the
// first failing holding so a fault cannot silently corrupt later snapshots;
// the returned count covers snapshots written before the failure.
func (s *valuationService) SnapshotAll(ctx context.Context, date time.Time) (int, error) {
	date = truncateToDate(date)

	var holdings []models.Holding
	if err := s.db.Preload("Positions").Find(&holdings).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	count := 0
	for i := range holdings {
		holding := &holdings[i]
		if err := s.Valuate(ctx, holding); err != nil {
			return count, err
		}

		totalValue := 0.0
		if holding.TotalValue != nil {
			totalValue = *holding.TotalValue
		}

		var existing models.HistorySnapshot
		result := s.db.Where("holding_id = ? AND date = ?", holding.ID, date).First(&existing)
		if result.Error == nil {
			if err := s.db.Model(&existing).Updates(map[string]interface{}{
				"total_value":          totalValue,
				"total_pnl_percentage": holding.TotalPnLPercentage,
			}).Error; err != nil {
				return count, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			snapshot := &models.HistorySnapshot{
				HoldingID:          holding.ID,
				Date:               date,
				TotalValue:         totalValue,
				TotalPnLPercentage: holding.TotalPnLPercentage,
			}
			if err := s.db.Create(snapshot).Error; err != nil {
				return count, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		} else {
			return count, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		count++
	}

	logger.Get().Infow("history snapshots recorded", "date", date.Format("2006-01-02"), "count", count)
	return count, nil
}

// GetHistory returns paginated snapshots for one of the user's holdings
// within a date range.
func (s *valuationService) GetHistory(userID, holdingID uint, from, to time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.HistorySnapshot], error) {
	var holding models.Holding
	if err := s.db.First(&holding, holdingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrHoldingNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if holding.UserID != userID {
		return nil, apperrors.ErrForbidden
	}

	page.Defaults()
	from = truncateToDate(from)
	to = truncateToDate(to)

	var totalItems int64
	base := s.db.Model(&models.HistorySnapshot{}).
		Where("holding_id = ? AND date >= ? AND date <= ?", holdingID, from, to)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.HistorySnapshot
	if err := base.Order("date DESC").Scopes(pagination.Paginate(page)).Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// truncateToDate normalizes a timestamp to midnight UTC so snapshot rows
// compare equal for the same calendar date.
func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
