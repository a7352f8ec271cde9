package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"folio/internal/logger"
	"folio/internal/services"
)

// SnapshotWorker records daily valuation snapshots for every holding.
type SnapshotWorker struct {
	valuation services.ValuationServicer
	interval  time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSnapshotWorker creates a snapshot worker. A non-positive interval
// defaults to twenty-four hours.
func NewSnapshotWorker(valuation services.ValuationServicer, interval time.Duration) *SnapshotWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &SnapshotWorker{
		valuation: valuation,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the snapshot loop in a goroutine.
func (w *SnapshotWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("snapshot worker is already running")
	}
	w.running = true

	logger.Get().Infow("starting snapshot worker", "interval", w.interval)
	go w.loop(ctx)
	return nil
}

// Stop signals the loop and waits for it to drain.
func (w *SnapshotWorker) Stop(ctx context.Context) error {
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
		logger.Get().Infow("snapshot worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *SnapshotWorker) loop(ctx context.Context) {
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
				logger.Get().Errorw("snapshot cycle failed", "error", err)
			}
		}
	}
}

// RunOnce snapshots every holding for the current date.
func (w *SnapshotWorker) RunOnce(ctx context.Context) error {
	count, err := w.valuation.SnapshotAll(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	logger.Get().Infow("snapshot cycle complete", "count", count)
	return nil
}
