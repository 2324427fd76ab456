package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tourgo/internal/api"
	"tourgo/pkg/catalog"
	"tourgo/pkg/config"
	"tourgo/pkg/db"
	"tourgo/pkg/engine"
	"tourgo/pkg/geo"
	"tourgo/pkg/logging"
	"tourgo/pkg/probe"
	"tourgo/pkg/store"
	"tourgo/pkg/version"
	"tourgo/pkg/visitor"
)

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault("configs/tourgo.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/tourgo.yaml")
		return
	}

	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded configuration from .env file")
	}

	if err := run(context.Background(), "configs/tourgo.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("TourGo Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	cat, err := initCatalog(ctx, appCfg, st)
	if err != nil {
		return err
	}

	venue, err := initVenue(appCfg)
	if err != nil {
		return err
	}

	reg := visitor.NewRegistry(time.Duration(appCfg.Engine.VisitorTTL))
	eng := engine.New(&appCfg.Engine, cat, reg, st, venue)

	// Startup Probes
	probes := []probe.Probe{
		{
			Name:     "Database",
			Check:    func(c context.Context) error { return dbConn.PingContext(c) },
			Critical: true,
		},
		{
			Name: "POI Catalog",
			Check: func(context.Context) error {
				if cat.Count() == 0 {
					return fmt.Errorf("catalog is empty, nothing to narrate")
				}
				return nil
			},
			Critical: false,
		},
	}
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	startVisitorCleanup(ctx, appCfg, eng)

	return runServer(ctx, appCfg, eng, cat, st)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func initCatalog(ctx context.Context, appCfg *config.Config, st store.Store) (*catalog.Manager, error) {
	cat := catalog.NewManager(st)
	if err := cat.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to hydrate POI catalog: %w", err)
	}

	if appCfg.Catalog.SeedFile != "" {
		n, err := cat.LoadSeedFile(appCfg.Catalog.SeedFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				slog.Warn("Catalog seed file not found, continuing with stored POIs", "path", appCfg.Catalog.SeedFile)
			} else {
				return nil, fmt.Errorf("failed to load catalog seed file: %w", err)
			}
		} else {
			slog.Info("Catalog seeded", "path", appCfg.Catalog.SeedFile, "pois", n)
		}
	}

	slog.Info("POI catalog ready", "count", cat.Count())
	return cat, nil
}

func initVenue(appCfg *config.Config) (*geo.Venue, error) {
	if appCfg.Venue.BoundaryFile == "" {
		return nil, nil
	}

	venue, err := geo.LoadVenue(appCfg.Venue.BoundaryFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load venue boundary: %w", err)
	}
	slog.Info("Venue boundary loaded", "name", venue.Name())
	return venue, nil
}

// startVisitorCleanup evicts idle visitors, trigger state included, in the
// background when a TTL is configured.
func startVisitorCleanup(ctx context.Context, appCfg *config.Config, eng *engine.Engine) {
	ttl := time.Duration(appCfg.Engine.VisitorTTL)
	if ttl <= 0 {
		return
	}

	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := eng.EvictIdle(); n > 0 {
					slog.Info("Evicted idle visitors", "count", n)
				}
			}
		}
	}()
}

func runServer(ctx context.Context, cfg *config.Config, eng *engine.Engine, cat *catalog.Manager, st store.Store) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewVisitorHandler(eng, st),
		api.NewPOIHandler(cat),
		api.NewStreamHandler(eng),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
