package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/geowander/citytour/internal/artifact"
	"github.com/geowander/citytour/internal/config"
	"github.com/geowander/citytour/internal/database"
	"github.com/geowander/citytour/internal/dataset"
	"github.com/geowander/citytour/internal/ingest"
	"github.com/geowander/citytour/internal/migrations"
	"github.com/geowander/citytour/internal/nav"
	"github.com/geowander/citytour/internal/overlay"
	"github.com/geowander/citytour/internal/server"
)

const pruneInterval = 10 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Redis (optional) ---
	rdb, err := openRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		logger.Info("connected to redis")
	}

	// --- Stores ---
	overlayStore := overlay.NewStore(db)
	reportStore := server.NewReportStore(db)
	adminStore := server.NewAdminStore(db)
	seeded, err := adminStore.SeedIfEmpty(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	if seeded {
		logger.Info("seeded initial admin", "email", cfg.AdminEmail)
	}

	// --- Tour pipeline ---
	artifactClient := artifact.NewClient(nil)

	var datasetSource ingest.DatasetSource
	if cfg.DatasetBaseURL != "" {
		src := dataset.NewHTTPSource(cfg.DatasetBaseURL, nil)
		if rdb != nil {
			datasetSource = &dataset.Cached{
				Source: src,
				Cache:  dataset.RedisCache{Client: rdb},
				TTL:    cfg.DatasetCacheTTL,
				Logger: logger,
			}
		} else {
			datasetSource = src
		}
	}

	loader := &ingest.Loader{
		Artifact:    artifactClient,
		Dataset:     datasetSource,
		DatasetName: cfg.DatasetName,
		Overlay:     overlayStore,
		Reports:     reportStore,
		Sink:        ingest.SlogSink{Logger: logger},
		Logger:      logger,
	}

	// --- Sessions ---
	broker := server.NewBroker()
	factory := func(as ingest.ArtifactSession, publish func(nav.Event)) *nav.Machine {
		return nav.New(nav.Config{
			Session:            as,
			Loader:             loader,
			Overlay:            overlayStore,
			Reporter:           artifactClient,
			Logger:             logger,
			Publish:            publish,
			TransitionDuration: cfg.TransitionDuration,
		})
	}
	sessions := server.NewRegistry(factory, broker, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Sessions: sessions,
		Broker:   broker,
		Admin:    adminStore,
		Overlay:  overlayStore,
		Reports:  reportStore,
		DB:       db,
		Redis:    rdb,
		SPADir:   cfg.SPADir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := sessions.Prune(cfg.SessionIdleTimeout); n > 0 {
					logger.Info("pruned idle sessions", "count", n, "remaining", sessions.Len())
				}
			}
		}
	})

	return g.Wait()
}

// openRedis connects to Redis, or returns nil when no URL is
// configured. The server runs without caching in that case.
func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	if rawURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
