package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"folio/internal/cache"
	"folio/internal/handlers"
	"folio/internal/logger"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/services"
	"folio/internal/validator"
)

// stubQuotes is an in-memory quote source the tests control.
type stubQuotes struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (s *stubQuotes) Name() string { return "stub" }

func (s *stubQuotes) FetchPrice(_ context.Context, ticker string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.prices[ticker]
	return price, ok
}

func (s *stubQuotes) set(ticker string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[ticker] = price
}

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB        *gorm.DB
	Router    *gin.Engine
	Redis     *miniredis.Miniredis
	Cache     *cache.PriceCache
	Quotes    *stubQuotes
	Prices    services.PriceServicer
	Alerts    services.AlertServicer
	Valuation services.ValuationServicer
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Holding{},
		&models.Position{},
		&models.Alert{},
		&models.HistorySnapshot{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite database and a miniredis price cache.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	priceCache := cache.NewPriceCache(cache.NewRedisCacheFromClient(client), 0)

	quotes := &stubQuotes{prices: map[string]float64{}}

	// Services
	userService := services.NewUserService(db)
	priceService := services.NewPriceService(priceCache, quotes)
	portfolioService := services.NewPortfolioService(db)
	valuationService := services.NewValuationService(db, priceService)
	alertService := services.NewAlertService(db, priceCache, services.NewLogNotifier())

	// Handlers
	authHandler := handlers.NewAuthHandler(userService)
	holdingHandler := handlers.NewHoldingHandler(portfolioService, valuationService)
	alertHandler := handlers.NewAlertHandler(alertService)
	historyHandler := handlers.NewHistoryHandler(valuationService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	holdings := protected.Group("/holdings")
	holdings.POST("", holdingHandler.CreateHolding)
	holdings.GET("", holdingHandler.GetUserHoldings)
	holdings.GET("/:id", holdingHandler.GetHolding)
	holdings.PUT("/:id", holdingHandler.UpdateHolding)
	holdings.DELETE("/:id", holdingHandler.DeleteHolding)
	holdings.POST("/:id/positions", holdingHandler.AddPosition)
	holdings.DELETE("/:id/positions/:ticker", holdingHandler.RemovePosition)
	holdings.GET("/:id/history", historyHandler.GetHistory)

	alerts := protected.Group("/alerts")
	alerts.POST("", alertHandler.CreateAlert)
	alerts.GET("", alertHandler.GetUserAlerts)
	alerts.POST("/:id/arm", alertHandler.ArmAlert)
	alerts.DELETE("/:id", alertHandler.DeleteAlert)

	return &testApp{
		DB:        db,
		Router:    router,
		Redis:     mr,
		Cache:     priceCache,
		Quotes:    quotes,
		Prices:    priceService,
		Alerts:    alertService,
		Valuation: valuationService,
	}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the token and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (token string, userID float64) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["token"].(string), user["id"].(float64)
}

// createHolding creates a holding and returns its ID.
func (app *testApp) createHolding(t *testing.T, token, name string) float64 {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q}`, name)
	rec := app.request("POST", "/api/v1/holdings", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create holding failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	holding := result["holding"].(map[string]interface{})
	return holding["id"].(float64)
}

// addPosition adds a contribution to a holding.
func (app *testApp) addPosition(t *testing.T, token string, holdingID float64, ticker, quantity, unitCost string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"ticker":%q,"quantity":%q,"unit_cost":%q,"asset_type":"CRYPTO"}`, ticker, quantity, unitCost)
	return app.request("POST", fmt.Sprintf("/api/v1/holdings/%.0f/positions", holdingID), body, token)
}
