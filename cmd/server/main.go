package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"companylens/internal/config"
	"companylens/internal/db"
	"companylens/internal/jobs"
	"companylens/internal/mapping"
	"companylens/internal/metrics"
	"companylens/internal/pages"
	"companylens/internal/server"
	"companylens/internal/settings"
	"companylens/internal/storage"
	"companylens/internal/storage/redisstore"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	heuristics, err := config.LoadHeuristics(cfg.HeuristicsFile)
	if err != nil {
		log.Fatalf("Failed to load heuristics file %s: %v", cfg.HeuristicsFile, err)
	}

	// Initialize storage; an unreachable backend degrades to memory
	svc := openStorage(ctx, cfg)
	defer svc.Close()
	log.Printf("Using %s storage", svc.Name())

	mappings := mapping.New(svc, mapping.WithRecorder(metrics.Recorder{}))
	settingsStore := settings.New(svc)

	fetchOpts := []pages.FetcherOption{
		pages.WithTimeout(cfg.FetchTimeout),
		pages.WithMaxBytes(cfg.FetchMaxBytes),
	}
	if cfg.AllowPrivateIPs {
		log.Println("Warning: fetching from private addresses is allowed")
		fetchOpts = append(fetchOpts, pages.AllowPrivateAddresses())
	}

	registry := pages.NewRegistry(pages.Config{
		Heuristics:     heuristics,
		Mappings:       mappings,
		Settings:       settingsStore,
		Fetcher:        pages.NewFetcher(fetchOpts...),
		DebounceDelay:  cfg.DebounceDelay,
		ProfileBaseURL: cfg.ProfileBaseURL,
		MaxPages:       cfg.MaxPages,
		Recorder:       metrics.Recorder{},
	})
	defer registry.CloseAll()

	metrics.Init(registry)

	// Live diagnostics switching for every open page
	stopSettings := settingsStore.Watch(registry.ApplyDiagnostics)
	defer stopSettings()

	if cfg.RefreshInterval > 0 {
		refresher := jobs.NewPageRefresher(registry, cfg.RefreshInterval)
		go refresher.Start(ctx)
	}

	srv := server.New(cfg)
	srv.RegisterRoutes(server.Deps{
		Backend:  svc.Name(),
		Registry: registry,
		Mappings: mappings,
		Settings: settingsStore,
	})

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Server started on %s", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	if err := srv.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

// openStorage connects the configured backend, falling back to memory.
func openStorage(ctx context.Context, cfg *config.Config) storage.Service {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		store, err := redisstore.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: redis storage unavailable, using memory: %v", err)
			return storage.NewMemory()
		}
		return store

	case config.BackendPostgres:
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: postgres storage unavailable, using memory: %v", err)
			return storage.NewMemory()
		}
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			database.Close()
			log.Printf("Warning: postgres migrations failed, using memory: %v", err)
			return storage.NewMemory()
		}
		log.Println("Migrations completed successfully")

		kv := db.NewKV(database.Pool)
		go func() {
			err := database.Listen(ctx, db.ChangeChannel, func(payload string) {
				_ = kv.HandleNotification(payload)
			})
			if err != nil {
				log.Printf("Change listener stopped: %v", err)
			}
		}()
		return &postgresStorage{KV: kv, db: database}

	case config.BackendMemory, "":
		return storage.NewMemory()

	default:
		log.Printf("Warning: unknown STORAGE_BACKEND %q, using memory", cfg.StorageBackend)
		return storage.NewMemory()
	}
}

// postgresStorage closes the pool along with the store.
type postgresStorage struct {
	*db.KV
	db *db.DB
}

func (p *postgresStorage) Close() error {
	p.db.Close()
	return nil
}
