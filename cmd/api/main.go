package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/traveltime/internal/adapters/http"
	"github.com/samirrijal/traveltime/internal/adapters/memcache"
	natsadapter "github.com/samirrijal/traveltime/internal/adapters/nats"
	"github.com/samirrijal/traveltime/internal/adapters/postgres"
	"github.com/samirrijal/traveltime/internal/adapters/remote"
	"github.com/samirrijal/traveltime/internal/adapters/valkey"
	"github.com/samirrijal/traveltime/internal/columnar"
	"github.com/samirrijal/traveltime/internal/core/ports"
	"github.com/samirrijal/traveltime/internal/core/usecases"
	"github.com/samirrijal/traveltime/internal/pkg/config"
	"github.com/samirrijal/traveltime/internal/pkg/logging"
	"github.com/samirrijal/traveltime/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("traveltime-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	thresholds, err := cfg.ModeThresholds()
	if err != nil {
		log.Fatalf("thresholds: %v", err)
	}

	// Remote dataset
	dataset := cfg.Dataset.Dataset()
	store := remote.New(cfg.Engine.RemoteTimeoutDuration())
	engine := columnar.NewEngine(store, cfg.Engine.MaxConcurrentFetches)
	partitions := usecases.NewPartitionService(store, dataset)

	// Database (query log)
	var (
		db       *postgres.DB
		queryLog ports.QueryLogRepository
	)
	if cfg.Database.Enabled {
		db, err = postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			slog.Warn("database unavailable, query log disabled", "error", err)
			db = nil
		} else {
			defer db.Close()
			go db.ReportPoolMetrics(ctx, 15*time.Second)
			queryLog = postgres.NewQueryLogRepo(db)
		}
	}

	// Cache: in-process tier over valkey
	local := memcache.New(cfg.Cache.LocalMaxItems)
	defer local.Close()
	var (
		shared ports.CacheService
		vc     *valkey.Cache
	)
	if cfg.Valkey.Enabled {
		vc, err = valkey.New(cfg.Valkey.Addr, cfg.Cache.KeyPrefix)
		if err != nil {
			slog.Warn("valkey unavailable, using local cache only", "error", err)
			vc = nil
		} else {
			defer vc.Close()
			shared = vc
		}
	}
	cache := memcache.NewTiered(local, shared, cfg.Cache.LocalTTL)

	// NATS
	var events ports.EventPublisher
	var publisher *natsadapter.Publisher
	if cfg.NATS.Enabled {
		publisher, err = natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, query events disabled", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
			events = publisher
		}
	}

	times := usecases.NewTimesService(partitions, engine, cache, queryLog, events, cfg.Cache.ResultTTL)

	deps := &http.Dependencies{
		Times:      times,
		Thresholds: thresholds,
		Catalog: http.Catalog{
			Years:       cfg.Dataset.Years,
			Defaults:    cfg.Dataset.DefaultSelection(),
			DefaultZoom: cfg.Dataset.DefaultZoom,
		},
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		DatasetPing: func(ctx context.Context) error {
			return store.Ping(ctx, dataset.TimesBaseURL)
		},
		DB:    db,
		Cache: vc,
	}
	if publisher != nil {
		deps.NATS = publisher.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Travel Time API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://opentimes.org",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "dataset_version", dataset.Version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
