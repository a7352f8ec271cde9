package jobs

import (
	"context"
	"testing"
	"time"

	"folio/internal/models"
	"folio/internal/services"
	"folio/internal/testutil"
)

func TestSnapshotWorkerRunOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	pc, _ := testutil.SetupTestPriceCache(t, 10*time.Minute)

	source := &fakeQuoteSource{prices: map[string]float64{"BTC": 50000}}
	valuation := services.NewValuationService(db, services.NewPriceService(pc, source))
	worker := NewSnapshotWorker(valuation, time.Hour)

	user := testutil.CreateTestUser(t, db)
	holding := testutil.CreateTestHolding(t, db, user.ID)
	testutil.CreateTestPosition(t, db, holding.ID, "BTC", dec("1"), dec("20000"))

	testutil.AssertNoError(t, worker.RunOnce(context.Background()))

	var snapshot models.HistorySnapshot
	testutil.AssertNoError(t, db.Where("holding_id = ?", holding.ID).First(&snapshot).Error)
	if snapshot.TotalValue != 50000 {
		t.Errorf("expected snapshot value 50000, got %v", snapshot.TotalValue)
	}

	// A rerun the same day stays a single row.
	testutil.AssertNoError(t, worker.RunOnce(context.Background()))
	var count int64
	db.Model(&models.HistorySnapshot{}).Where("holding_id = ?", holding.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected one snapshot row per day, got %d", count)
	}
}

func TestSnapshotWorkerLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	pc, _ := testutil.SetupTestPriceCache(t, time.Minute)

	valuation := services.NewValuationService(db, services.NewPriceService(pc, &fakeQuoteSource{}))
	worker := NewSnapshotWorker(valuation, time.Hour)

	ctx := context.Background()
	testutil.AssertNoError(t, worker.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	testutil.AssertNoError(t, worker.Stop(stopCtx))
}
