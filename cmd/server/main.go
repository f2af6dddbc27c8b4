package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/botfolio/botfolio-api/internal/auth"
	"github.com/botfolio/botfolio-api/internal/bots"
	"github.com/botfolio/botfolio-api/internal/config"
	"github.com/botfolio/botfolio-api/internal/database"
	"github.com/botfolio/botfolio-api/internal/ledger"
	"github.com/botfolio/botfolio-api/internal/metrics"
	"github.com/botfolio/botfolio-api/internal/portfolio"
	"github.com/botfolio/botfolio-api/internal/prices"
	"github.com/botfolio/botfolio-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// configureLogging sets up zerolog based on the environment: pretty
// printing with timestamps outside production, debug level on request.
func configureLogging(cfg config.Config) {
	if cfg.Env != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the bot-ledger API server with graceful
// shutdown support, and starts the bot scheduler alongside it.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	configureLogging(cfg)

	// Initialize the ledger store
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials for the simulation driver
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	ledgerService := ledger.NewService(db, cfg.InitialCredits)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	priceService := prices.NewService(db)

	portfolioService, err := portfolio.NewService(ledgerService.DB(), priceService, cfg.CacheTTL, cfg.InitialCredits)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize portfolio service")
	}
	portfolioHandlers := portfolio.NewGinHandlers(portfolioService)

	// Create and start the bot scheduler
	scheduler := bots.NewScheduler(ledgerService, priceService, defaultBots(cfg), cfg.BotInterval)
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()

	go scheduler.Start(schedulerCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authHandlers, ledgerHandlers, portfolioHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// defaultBots wires one account per strategy. Bots share the price
// history but trade their own ledgers.
func defaultBots(cfg config.Config) []bots.Bot {
	return []bots.Bot{
		{Name: "momentum", AccountID: "bot-momentum", Symbol: "AAPL", LotSize: cfg.LotSize, Strategy: bots.Momentum{}},
		{Name: "mean-reversion", AccountID: "bot-mean-reversion", Symbol: "MSFT", LotSize: cfg.LotSize, Strategy: bots.MeanReversion{}},
		{Name: "trend-follower", AccountID: "bot-trend-follower", Symbol: "GOOGL", LotSize: cfg.LotSize, Strategy: bots.TrendFollower{}},
		{Name: "ml-mean", AccountID: "bot-ml-mean", Symbol: "AMZN", LotSize: cfg.LotSize, Strategy: bots.NewMeanModel()},
		{Name: "ml-trend", AccountID: "bot-ml-trend", Symbol: "META", LotSize: cfg.LotSize, Strategy: bots.NewTrendModel()},
	}
}

// setupRoutes configures all API endpoints and their handlers,
// grouped by functionality:
// - Auth routes: public endpoints for authentication
// - Account routes: dashboard reads, protected by JWT authentication
// - Internal routes: the fill submission path, protected by internal
//   authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	portfolioHandlers *portfolio.GinHandlers,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Dashboard read routes
		accounts := v1.Group("/accounts")
		accounts.Use(middleware.JWTAuth(jwtSecret))
		{
			accounts.GET("/:account_id/portfolio", portfolioHandlers.GetPortfolioHandler())
			accounts.GET("/:account_id/trades", portfolioHandlers.GetClosedTradesHandler())
			accounts.GET("/:account_id/orders", ledgerHandlers.GetOrdersHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/fills", ledgerHandlers.SubmitFillHandler())
		}
	}
}
