package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scrypster/rollcall/internal/config"
	"github.com/scrypster/rollcall/internal/engine"
	"github.com/scrypster/rollcall/internal/match"
	"github.com/scrypster/rollcall/internal/notify"
	"github.com/scrypster/rollcall/internal/server"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/internal/storage/postgres"
	"github.com/scrypster/rollcall/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	var store storage.Store
	switch cfg.Storage.StorageEngine {
	case "postgres":
		store, err = postgres.Open(cfg.Storage.PostgresDSN)
	default:
		if err = os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		store, err = sqlite.Open(filepath.Join(cfg.Storage.DataPath, "rollcall.db"))
	}
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Load the nickname equivalence table
	nicknames := match.DefaultNicknameTable()
	if cfg.Matcher.NicknameTablePath != "" {
		nicknames, err = match.LoadNicknameTable(cfg.Matcher.NicknameTablePath)
		if err != nil {
			log.Fatalf("Failed to load nickname table: %v", err)
		}
	}

	// Notification sink for critical review tasks
	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Notify.Enabled && cfg.Notify.SinkURL != "" {
		notifier = notify.NewSink(cfg.Notify.SinkURL)
	}

	eng := engine.New(cfg, store, nicknames, notifier, nil)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _, err := server.Start(ctx, cfg, eng)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("rollcall resolution API running at http://%s", addr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}
