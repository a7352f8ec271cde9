package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
	"folio/internal/services"
	"folio/internal/testutil"
)

type fakeQuoteSource struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  atomic.Int64
}

func (s *fakeQuoteSource) Name() string { return "fake" }

func (s *fakeQuoteSource) FetchPrice(_ context.Context, ticker string) (float64, bool) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.prices[ticker]
	return price, ok
}

type silentNotifier struct{}

func (silentNotifier) Notify(uint, string, float64, models.AlertCondition, float64) error {
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRefreshWorkerRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes_union_of_position_and_alert_tickers", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		pc, mr := testutil.SetupTestPriceCache(t, 10*time.Minute)

		source := &fakeQuoteSource{prices: map[string]float64{
			"BTC": 60000,
			"ETH": 3000,
			"SOL": 150,
		}}
		prices := services.NewPriceService(pc, source)
		alerts := services.NewAlertService(db, pc, silentNotifier{})
		worker := NewRefreshWorker(db, prices, alerts, time.Minute)

		user := testutil.CreateTestUser(t, db)
		holding := testutil.CreateTestHolding(t, db, user.ID)
		testutil.CreateTestPosition(t, db, holding.ID, "BTC", dec("1"), dec("20000"))
		testutil.CreateTestPosition(t, db, holding.ID, "ETH", dec("10"), dec("2000"))
		testutil.CreateTestAlert(t, db, user.ID, "BTC", dec("70000"), models.AlertConditionAbove)
		testutil.CreateTestAlert(t, db, user.ID, "SOL", dec("100"), models.AlertConditionBelow)

		testutil.AssertNoError(t, worker.RunOnce(ctx))

		// BTC appears in both a position and an alert but refreshes once.
		if source.calls.Load() != 3 {
			t.Errorf("expected 3 fetches for the distinct ticker union, got %d", source.calls.Load())
		}
		for _, key := range []string{"price:BTC", "price:ETH", "price:SOL"} {
			if !mr.Exists(key) {
				t.Errorf("expected %s to be cached after the refresh", key)
			}
		}
	})

	t.Run("forces_fetch_over_stale_cache", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		pc, _ := testutil.SetupTestPriceCache(t, 10*time.Minute)

		source := &fakeQuoteSource{prices: map[string]float64{"BTC": 61000}}
		prices := services.NewPriceService(pc, source)
		alerts := services.NewAlertService(db, pc, silentNotifier{})
		worker := NewRefreshWorker(db, prices, alerts, time.Minute)

		user := testutil.CreateTestUser(t, db)
		holding := testutil.CreateTestHolding(t, db, user.ID)
		testutil.CreateTestPosition(t, db, holding.ID, "BTC", dec("1"), dec("20000"))

		testutil.AssertNoError(t, pc.Set(ctx, "BTC", 48000))
		testutil.AssertNoError(t, worker.RunOnce(ctx))

		cached, ok, err := pc.Get(ctx, "BTC")
		testutil.AssertNoError(t, err)
		if !ok || cached != 61000 {
			t.Errorf("expected refreshed price 61000, got %v (ok=%v)", cached, ok)
		}
	})

	t.Run("evaluates_alerts_after_refreshing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		pc, _ := testutil.SetupTestPriceCache(t, 10*time.Minute)

		source := &fakeQuoteSource{prices: map[string]float64{"BTC": 60000}}
		prices := services.NewPriceService(pc, source)
		alerts := services.NewAlertService(db, pc, silentNotifier{})
		worker := NewRefreshWorker(db, prices, alerts, time.Minute)

		user := testutil.CreateTestUser(t, db)
		alert := testutil.CreateTestAlert(t, db, user.ID, "BTC", dec("50000"), models.AlertConditionAbove)

		testutil.AssertNoError(t, worker.RunOnce(ctx))

		var reloaded models.Alert
		testutil.AssertNoError(t, db.First(&reloaded, alert.ID).Error)
		if reloaded.IsActive {
			t.Error("expected the alert to trigger off the refreshed price")
		}
	})

	t.Run("unresolvable_ticker_does_not_abort_the_cycle", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		pc, mr := testutil.SetupTestPriceCache(t, 10*time.Minute)

		source := &fakeQuoteSource{prices: map[string]float64{"BTC": 60000}}
		prices := services.NewPriceService(pc, source)
		alerts := services.NewAlertService(db, pc, silentNotifier{})
		worker := NewRefreshWorker(db, prices, alerts, time.Minute)

		user := testutil.CreateTestUser(t, db)
		holding := testutil.CreateTestHolding(t, db, user.ID)
		testutil.CreateTestPosition(t, db, holding.ID, "OBSCURE", dec("1"), dec("5"))
		testutil.CreateTestPosition(t, db, holding.ID, "BTC", dec("1"), dec("20000"))

		testutil.AssertNoError(t, worker.RunOnce(ctx))

		if !mr.Exists("price:BTC") {
			t.Error("expected BTC to refresh despite the unresolvable ticker")
		}
		if mr.Exists("price:OBSCURE") {
			t.Error("unresolvable ticker must not be cached")
		}
	})
}

func TestRefreshWorkerLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	pc, _ := testutil.SetupTestPriceCache(t, time.Minute)

	prices := services.NewPriceService(pc, &fakeQuoteSource{})
	alerts := services.NewAlertService(db, pc, silentNotifier{})
	worker := NewRefreshWorker(db, prices, alerts, time.Hour)

	ctx := context.Background()
	testutil.AssertNoError(t, worker.Start(ctx))

	if err := worker.Start(ctx); err == nil {
		t.Error("expected second Start to fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	testutil.AssertNoError(t, worker.Stop(stopCtx))
}
