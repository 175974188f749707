package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"human-api/internal/config"
	"human-api/internal/crypto"
	"human-api/internal/embedding"
	"human-api/internal/http"
	"human-api/internal/memory"
	"human-api/internal/storage"
	"human-api/internal/vault"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// Local-first encrypted memory vault. Memories are stored in a SQLite file,
// chunked for lexical retrieval and protected by a master password.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Human API
//   description: |
//     Local API for a password-protected personal memory vault. Create or unlock
//     the vault, then add, search and query memories with citations.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	db, err := storage.New(cfg.DBPath, storage.Options{
		BusyTimeout:  cfg.DBBusyTimeout,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	passwords := crypto.NewService(crypto.DefaultParams, cfg.Argon2MaxConcurrent)
	vaultManager, err := vault.NewManager(ctx, storage.NewVaultRepo(db), passwords)
	if err != nil {
		log.Fatalf("Failed to initialize vault manager: %v", err)
	}
	slog.Info("Vault manager initialized", "state", vaultManager.State().String())

	var storeOpts []memory.Option
	if cfg.EmbeddingBaseURL != "" {
		embedder := embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimensions)
		storeOpts = append(storeOpts, memory.WithEmbeddings(storage.NewEmbeddingRepo(db), embedder))
		slog.Info("Embedding sync enabled", "base_url", cfg.EmbeddingBaseURL, "model", cfg.EmbeddingModelName)
	}

	memories := memory.NewStore(
		vaultManager,
		storage.NewMemoryRepo(db),
		storage.NewChunkRepo(db),
		storage.NewTagRepo(db),
		storage.NewCitationRepo(db),
		storeOpts...,
	)

	router := http.NewRouter(&http.Deps{
		Vaults:         vaultManager,
		Memories:       memories,
		DB:             db,
		Version:        version,
		DBPath:         cfg.DBPath,
		AllowedOrigins: cfg.CORSOrigins,
	})

	server := &nethttp.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting API server", "addr", cfg.APIAddr, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	if vaultManager.State() == vault.Unlocked {
		if err := vaultManager.Lock(shutdownCtx); err != nil {
			slog.Error("Failed to lock vault", "error", err)
		}
	}
}
