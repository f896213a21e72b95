package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/release-sync/internal/config"
	"github.com/vertextoedge/release-sync/internal/feed"
	"github.com/vertextoedge/release-sync/internal/httpx"
	"github.com/vertextoedge/release-sync/internal/logger"
	"github.com/vertextoedge/release-sync/internal/notify"
	"github.com/vertextoedge/release-sync/internal/service/server"
	"github.com/vertextoedge/release-sync/internal/service/watcher"
	"github.com/vertextoedge/release-sync/internal/transfer"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting release-sync",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Ensure the save directory exists before anything writes or serves it
	if err := os.MkdirAll(cfg.Storage.SaveDir, 0o755); err != nil {
		zapLogger.Fatal("failed to create save directory",
			zap.String("dir", cfg.Storage.SaveDir), zap.Error(err))
	}

	// One HTTP client instance is shared by the resolver and the downloader
	// so cookies persist across feed and mirror requests.
	httpClient := httpx.NewClient()

	resolver := feed.NewResolver(httpClient, cfg.Feed.URL, cfg.PublicPrefix(), zapLogger)
	notifier := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, zapLogger)
	downloader := transfer.NewDownloader(httpClient, notifier, zapLogger)

	// Create watcher
	watcherService := watcher.New(&watcher.Config{
		Cron:    cfg.Sync.Cron,
		SaveDir: cfg.Storage.SaveDir,
	}, resolver, downloader, zapLogger)

	// Create static file server
	httpServer := server.New(&server.Config{
		BindAddr:    cfg.HTTP.ListenAddr,
		AssetsPath:  cfg.HTTP.AssetsPath,
		SaveDir:     cfg.Storage.SaveDir,
		ReadTimeout: cfg.HTTP.GetReadTimeout(),
		IdleTimeout: cfg.HTTP.GetIdleTimeout(),
	}, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start static file server
	go func() {
		if err := httpServer.Start(); err != nil {
			zapLogger.Fatal("static file server failed", zap.Error(err))
		}
	}()

	// Start watcher; an invalid cron expression surfaces here and is fatal
	go func() {
		if err := watcherService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Fatal("watcher failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	zapLogger.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.ListenAddr),
		zap.String("feed_url", cfg.Feed.URL),
		zap.String("save_dir", cfg.Storage.SaveDir),
	)
	<-sigChan

	zapLogger.Info("shutdown signal received, stopping services...")

	// Cancel context to stop the watcher
	cancel()
	watcherService.Stop()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop static file server gracefully", zap.Error(err))
	}

	zapLogger.Info("application stopped successfully")
}
