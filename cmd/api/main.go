package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/handlers"
	"folio/internal/logger"
	"folio/internal/market"
	"folio/internal/middleware"
	"folio/internal/services"
	"folio/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Connect the price cache
	redisCache, err := cache.NewRedisCache(appConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisCache.Close()
	priceCache := cache.NewPriceCache(redisCache, appConfig.PriceCacheTTL)

	// Register custom validators
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	quoteSource := market.NewCoinGeckoClient(appConfig.QuoteBaseURL, appConfig.QuoteTimeout)
	userService := services.NewUserService(db)
	priceService := services.NewPriceService(priceCache, quoteSource)
	portfolioService := services.NewPortfolioService(db)
	valuationService := services.NewValuationService(db, priceService)
	alertService := services.NewAlertService(db, priceCache, services.NewLogNotifier())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	holdingHandler := handlers.NewHoldingHandler(portfolioService, valuationService)
	alertHandler := handlers.NewAlertHandler(alertService)
	historyHandler := handlers.NewHistoryHandler(valuationService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)

	// Holding and position routes
	holdings := protected.Group("/holdings")
	holdings.POST("", holdingHandler.CreateHolding)
	holdings.GET("", holdingHandler.GetUserHoldings)
	holdings.GET("/:id", holdingHandler.GetHolding)
	holdings.PUT("/:id", holdingHandler.UpdateHolding)
	holdings.DELETE("/:id", holdingHandler.DeleteHolding)
	holdings.POST("/:id/positions", holdingHandler.AddPosition)
	holdings.DELETE("/:id/positions/:ticker", holdingHandler.RemovePosition)
	holdings.GET("/:id/history", historyHandler.GetHistory)

	// Alert routes
	alerts := protected.Group("/alerts")
	alerts.POST("", alertHandler.CreateAlert)
	alerts.GET("", alertHandler.GetUserAlerts)
	alerts.POST("/:id/arm", alertHandler.ArmAlert)
	alerts.DELETE("/:id", alertHandler.DeleteAlert)

	log.Infof("Starting Folio API server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
