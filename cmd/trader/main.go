package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptobot-go/internal/analysis"
	"cryptobot-go/internal/api"
	"cryptobot-go/internal/config"
	"cryptobot-go/internal/database"
	"cryptobot-go/internal/ledger"
	"cryptobot-go/internal/logger"
	"cryptobot-go/internal/market"
	"cryptobot-go/internal/metrics"
	"cryptobot-go/internal/random"
	"cryptobot-go/internal/trader"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		log.Fatal("Failed to register metrics", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := newMarketProvider(ctx, &cfg, log)
	analyzer := newAnalyzer(&cfg, log)

	engine := trader.NewEngine(log, &cfg, trader.Components{
		Store:    ledger.NewStore(db),
		Market:   provider,
		Analyzer: analyzer,
		Metrics:  m,
	})
	if err := engine.Restore(ctx); err != nil {
		log.Error("Failed to restore trading state", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewAPIHandler(log, engine, provider)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, reg, log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting web server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Web server shutdown failed", zap.Error(err))
		}
		return engine.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Bot exited with error", zap.Error(err))
	}
	log.Info("Bot has been shut down.")
}

// newMarketProvider picks the live Binance feed or the simulated one and guards it with a timeout.
func newMarketProvider(ctx context.Context, cfg *config.Config, log *zap.Logger) market.Provider {
	var provider market.Provider
	switch cfg.Market.Source {
	case "binance":
		feed := market.NewBinanceFeed(market.NewRestClient(&cfg.Market, log), cfg.Market.Pairs, log)
		if err := feed.Ping(ctx); err != nil {
			log.Fatal("Failed to connect to Binance API", zap.Error(err))
		}
		provider = feed
	default:
		log.Info("Using simulated market data")
		provider = market.NewSimulatedFeed(cfg.Market.Pairs, random.New(random.Derive(cfg.Trading.RandomSeed, random.StreamMarket)))
	}
	return market.NewGuarded(provider, cfg.Market.Timeout, log)
}

func newAnalyzer(cfg *config.Config, log *zap.Logger) analysis.Analyzer {
	var analyzer analysis.Analyzer
	switch {
	case cfg.Analysis.Provider == "groq" && cfg.Analysis.ApiKey != "":
		analyzer = analysis.NewGroqClient(&cfg.Analysis, log)
	default:
		if cfg.Analysis.Provider == "groq" {
			log.Warn("No analysis API key configured, using simulated analysis")
		}
		analyzer = analysis.NewSimulated(random.New(random.Derive(cfg.Trading.RandomSeed, random.StreamAnalysis)))
	}
	return analysis.NewGuarded(analyzer, cfg.Analysis.Timeout, log)
}
