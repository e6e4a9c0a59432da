package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zozs/a-wild-button-appears/internal/config"
	"github.com/zozs/a-wild-button-appears/internal/delivery"
	"github.com/zozs/a-wild-button-appears/internal/handler"
	"github.com/zozs/a-wild-button-appears/internal/metrics"
	"github.com/zozs/a-wild-button-appears/internal/server"
	"github.com/zozs/a-wild-button-appears/internal/service"
	"github.com/zozs/a-wild-button-appears/internal/store"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("A wild BUTTON appears, starting up")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.Int("database_port", cfg.Database.Port),
		zap.String("database_name", cfg.Database.Database),
		zap.Duration("runner_up_window", cfg.Race.RunnerUpWindow),
		zap.Duration("tick_interval", cfg.Schedule.TickInterval))

	// Initialize metrics
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Metrics initialized")

	// Initialize tenant store (PostgreSQL)
	tenantStore, err := store.NewPostgresTenantStore(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize tenant store", zap.Error(err))
	}
	logger.Info("Tenant store initialized")

	// Initialize dedup cache (Redis, in-memory fallback)
	var cache store.Cache
	var redisCache *store.RedisCache
	var memCache *store.InMemoryCache
	if cfg.Redis.Enabled {
		redisCache, err = store.NewRedisCache(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Redis cache", zap.Error(err))
		}
		cache = redisCache
		logger.Info("Redis cache initialized")
	} else {
		memCache = store.NewInMemoryCache()
		cache = memCache
		logger.Info("In-memory cache initialized")
	}

	// Initialize delivery client
	slackClient := delivery.NewSlackClient(cfg.Slack.BaseURL, cfg.Slack.Timeout, logger)
	logger.Info("Slack client initialized")

	// Initialize services
	ledger := service.NewClickLedger(tenantStore, m, cfg.Race.RunnerUpWindow, cfg.Race.MaxRecordAttempts, logger)
	recorder := service.NewClickRecorder(ledger, slackClient,
		cfg.Race.RunnerUpWindow+cfg.Race.ConsistencySettle, logger)
	scheduler := service.NewAnnounceScheduler(cfg.Schedule.MaxSearchDays, nil)
	driver := service.NewScheduleDriver(tenantStore, slackClient, scheduler, m,
		cfg.Schedule.TickInterval, cfg.Schedule.TickFanout, logger)
	tenants := service.NewTenantService(tenantStore, driver, logger)

	logger.Info("All services initialized")

	// Initialize HTTP server
	handlers := handler.NewHandlers(recorder, tenants, tenantStore, cache, logger)
	srv := server.NewServer(cfg, handlers, m, logger)
	srv.SetupRoutes()

	// Start metrics server
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("Starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Start schedule driver
	driverCtx, cancelDriver := context.WithCancel(context.Background())
	go driver.Run(driverCtx)

	// Start HTTP server
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", zap.Error(err))
	case sig := <-sigChan:
		logger.Info("Received signal", zap.String("signal", sig.String()))
	}

	// Graceful shutdown
	logger.Info("Shutting down gracefully")

	cancelDriver()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}

	tenantStore.Close()
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Warn("Redis close failed", zap.Error(err))
		}
	}
	if memCache != nil {
		memCache.Close()
	}

	logger.Info("A wild BUTTON appears stopped")
}
