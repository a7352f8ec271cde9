package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestHistoryFlow_SnapshotAndQuery(t *testing.T) {
	app := setupApp(t)
	ctx := context.Background()

	token, _ := app.registerUser(t, "history@test.com", "password123")
	holdingID := app.createHolding(t, token, "Main")

	rec := app.addPosition(t, token, holdingID, "BTC", "1", "20000")
	if rec.Code != http.StatusCreated {
		t.Fatalf("contribution failed: %d", rec.Code)
	}

	app.Quotes.set("BTC", 50000)

	// Snapshot two consecutive days.
	day1 := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)

	count, err := app.Valuation.SnapshotAll(ctx, day1)
	if err != nil {
		t.Fatalf("first snapshot failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 snapshot, got %d", count)
	}

	app.Quotes.set("BTC", 60000)
	app.Redis.FlushAll()
	if _, err := app.Valuation.SnapshotAll(ctx, day2); err != nil {
		t.Fatalf("second snapshot failed: %v", err)
	}

	// Query the full range: two snapshots, newest first.
	rec = app.request("GET",
		fmt.Sprintf("/api/v1/holdings/%.0f/history?from=2026-08-21&to=2026-08-22", holdingID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("history query failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["total_items"].(float64) != 2 {
		t.Fatalf("expected 2 snapshots, got %v", result["total_items"])
	}
	items := result["data"].([]interface{})
	first := items[0].(map[string]interface{})
	if first["total_value"].(float64) != 60000 {
		t.Errorf("expected newest snapshot value 60000, got %v", first["total_value"])
	}

	// A narrower range filters.
	rec = app.request("GET",
		fmt.Sprintf("/api/v1/holdings/%.0f/history?from=2026-08-21&to=2026-08-21", holdingID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("ranged query failed: %d", rec.Code)
	}
	if parseJSON(t, rec)["total_items"].(float64) != 1 {
		t.Error("expected range filter to return a single snapshot")
	}
}

func TestHistoryFlow_ForeignHoldingForbidden(t *testing.T) {
	app := setupApp(t)

	ownerToken, _ := app.registerUser(t, "histowner@test.com", "password123")
	intruderToken, _ := app.registerUser(t, "histintruder@test.com", "password123")
	holdingID := app.createHolding(t, ownerToken, "Private")

	rec := app.request("GET",
		fmt.Sprintf("/api/v1/holdings/%.0f/history", holdingID), "", intruderToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}
