package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sowdiff/api/internal/app"
	"sowdiff/api/internal/config"
	"sowdiff/api/internal/gitrepo"
	"sowdiff/api/internal/snapcache"
	"sowdiff/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var versions snapcache.Source
	switch cfg.VersionBackend {
	case config.BackendPostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		versions = store.NewPostgresStore(db)
		log.Printf("Using PostgreSQL version store")
	case config.BackendGit:
		if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
			log.Fatalf("failed to create repos dir: %v", err)
		}
		versions = gitrepo.New(cfg.ReposDir)
		log.Printf("Using git version store at %s", cfg.ReposDir)
	default:
		log.Fatalf("unknown SOW_VERSION_BACKEND %q (want %s or %s)", cfg.VersionBackend, config.BackendPostgres, config.BackendGit)
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err := snapcache.New(cfg.RedisURL, versions, cfg.SnapshotCacheTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer cache.Close()
		versions = cache
		log.Printf("Caching snapshots in Redis for %s", cfg.SnapshotCacheTTL)
	}

	service := app.New(cfg, versions)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("SOW diff API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
