package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/services"
)

// RefreshWorker periodically force-refreshes the price cache for every
// ticker the system cares about and then evaluates active alerts against
// the fresh prices.
type RefreshWorker struct {
	db       *gorm.DB
	prices   services.PriceServicer
	alerts   services.AlertServicer
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRefreshWorker creates a refresh worker. A non-positive interval
// defaults to five minutes.
func NewRefreshWorker(db *gorm.DB, prices services.PriceServicer, alerts services.AlertServicer, interval time.Duration) *RefreshWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RefreshWorker{
		db:       db,
		prices:   prices,
		alerts:   alerts,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the refresh loop in a goroutine.
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("refresh worker is already running")
	}
	w.running = true

	logger.Get().Infow("starting refresh worker", "interval", w.interval)
	go w.loop(ctx)
	return nil
}

// Stop signals the loop and waits for it to drain.
func (w *RefreshWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	select {
	case <-w.doneCh:
		logger.Get().Infow("refresh worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *RefreshWorker) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				logger.Get().Errorw("refresh cycle failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single refresh cycle: force-fetch every tracked
// ticker concurrently, then evaluate alerts against the cache. A ticker
// that fails to refresh does not abort the cycle; alert evaluation simply
// skips it.
func (w *RefreshWorker) RunOnce(ctx context.Context) error {
	tickers, err := w.trackedTickers()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			if _, ok, err := w.prices.GetPrice(ctx, ticker, true); err != nil {
				logger.Get().Warnw("price refresh failed", "ticker", ticker, "error", err)
			} else if !ok {
				logger.Get().Debugw("no price available during refresh", "ticker", ticker)
			}
		}(ticker)
	}
	wg.Wait()

	triggered, err := w.alerts.EvaluateActive(ctx)
	if err != nil {
		return err
	}

	logger.Get().Infow("refresh cycle complete", "tickers", len(tickers), "alerts_triggered", triggered)
	return nil
}

// trackedTickers returns the union of tickers held in positions and
// tickers watched by active alerts, each exactly once.
func (w *RefreshWorker) trackedTickers() ([]string, error) {
	var positionTickers []string
	if err := w.db.Model(&models.Position{}).
		Distinct("ticker").Pluck("ticker", &positionTickers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var alertTickers []string
	if err := w.db.Model(&models.Alert{}).
		Where("is_active = ?", true).
		Distinct("ticker").Pluck("ticker", &alertTickers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	seen := make(map[string]struct{}, len(positionTickers)+len(alertTickers))
	tickers := make([]string, 0, len(positionTickers)+len(alertTickers))
	for _, t := range append(positionTickers, alertTickers...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers, nil
}
