package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"btc_tracker_backend/config"
	"btc_tracker_backend/pkg/logger"
	"btc_tracker_backend/routes"
	"btc_tracker_backend/scheduler"
	"btc_tracker_backend/services"
	"btc_tracker_backend/services/analysis"
	"btc_tracker_backend/services/datafetcher"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	seed := flag.Bool("seed", false, "seed the store with historical candles and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.Environment)
	defer logger.Sync()

	logger.Info("BTC hourly tracker starting",
		zap.String("symbol", cfg.Symbol),
		zap.String("environment", cfg.Environment))

	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := services.NewMongoCandleStore(connectCtx, cfg.MongoURI)
	cancel()
	if err != nil {
		logger.Fatal("failed to initialize candle store", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()

	engine := analysis.NewEngine(cfg.HDPRMAWindow, cfg.HDPRThreshold)

	if *seed {
		runSeed(store, engine, cfg)
		return
	}

	feed := datafetcher.NewRetryingFeed(datafetcher.NewKuCoinFeed(), 3)
	updates := services.NewUpdateService(store, feed, engine, cfg.Symbol)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	routes.SetupRoutes(router, updates, store, store)

	jobScheduler := scheduler.NewScheduler(updates)
	jobScheduler.Start()

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // an update cycle may wait on the feed
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	jobScheduler.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}

// runSeed bootstraps a cold store and exits. Incremental updates require a
// full trailing window, which only this one-time operation provides.
func runSeed(store *services.MongoCandleStore, engine *analysis.Engine, cfg *config.Config) {
	feed := datafetcher.NewBinanceFeed(cfg.BinanceAPIKey, cfg.BinanceAPISecret)
	seeder := services.NewSeedService(store, feed, engine, cfg.Symbol)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	written, err := seeder.Seed(ctx)
	if err != nil {
		logger.Fatal("seeding failed", zap.Int("written", written), zap.Error(err))
	}
	logger.Info("seeding complete", zap.Int("written", written))
}

// requestLogger logs every request with method, path, status and latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
