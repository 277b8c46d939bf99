package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/gymdex/internal/catalog"
	"github.com/claude/gymdex/internal/config"
	"github.com/claude/gymdex/internal/kv"
	"github.com/claude/gymdex/internal/prefs"
	"github.com/claude/gymdex/internal/server"
	"github.com/claude/gymdex/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("gymdex starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Open the key/value slot backing the backup blob and preferences
	blobs, err := kv.NewFileStore(cfg.Storage.BlobDir())
	if err != nil {
		log.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}

	// Bring up the training store: schema, then restore-if-empty
	ctx := context.Background()
	mgr := storage.NewManager(cfg.Storage.DatabasePath(), blobs, log)
	if err := mgr.Initialize(ctx); err != nil {
		log.Error("failed to initialize training store", "error", err)
		os.Exit(1)
	}
	defer mgr.Close()

	store := storage.NewStore(mgr, log)
	cat := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, cfg.Catalog.Timeout())
	prefStore := prefs.NewStore(blobs)

	srv := server.New(mgr, store, cat, prefStore, cfg.Auth.APIKey, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("listen failed", "addr", addr, "error", err)
		os.Exit(1)
	}
	log.Info("server starting", "addr", addr)

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
