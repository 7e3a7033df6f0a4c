package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/opsfin/disbursewatch/internal/alert"
	"github.com/opsfin/disbursewatch/internal/api"
	"github.com/opsfin/disbursewatch/internal/config"
	"github.com/opsfin/disbursewatch/internal/database"
	"github.com/opsfin/disbursewatch/internal/email"
	"github.com/opsfin/disbursewatch/internal/extract"
	"github.com/opsfin/disbursewatch/internal/jobs"
	"github.com/opsfin/disbursewatch/internal/monitor"
	"github.com/opsfin/disbursewatch/internal/notify"
	"github.com/opsfin/disbursewatch/internal/pipeline"
	"github.com/opsfin/disbursewatch/internal/proof"
	"github.com/opsfin/disbursewatch/pkg/models"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting disbursement ingestion service")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Resolve the IMAP server from the account domain when not configured
	imapServer := cfg.IMAPServer
	if imapServer == "" {
		imapServer, err = email.ResolveIMAPServer(cfg.IMAPUser)
		if err != nil {
			logger.Error("failed to resolve IMAP server", "user", cfg.IMAPUser, "error", err)
			os.Exit(1)
		}
		logger.Info("resolved IMAP server", "server", imapServer)
	}

	// Create components
	imapClient := email.NewClient(email.ClientConfig{
		User:        cfg.IMAPUser,
		Password:    cfg.IMAPPassword,
		Server:      imapServer,
		DialTimeout: cfg.IMAPDialTimeout,
	}, logger)
	defer imapClient.Close()

	acquirer := pipeline.NewAcquirer(imapClient, logger)
	extractor := extract.NewPatternExtractor()

	// Side effects apply to the live path only (optional integrations)
	var (
		renderer pipeline.DocumentRenderer
		store    pipeline.ObjectStore
		notifier pipeline.Notifier
		alerter  pipeline.Alerter
	)
	if cfg.ObjectStoreEnabled() {
		renderer = proof.NewRenderer()
		store = proof.NewStore(proof.StoreConfig{
			BaseURL: cfg.ObjectStoreURL,
			Bucket:  cfg.ObjectStoreBucket,
			APIKey:  cfg.ObjectStoreAPIKey,
		})
		logger.Info("proof object store enabled", "bucket", cfg.ObjectStoreBucket)
	}
	if cfg.NotifierEnabled() {
		notifier = notify.NewClient(notify.Config{
			BaseURL: cfg.NotifierBaseURL,
			UserID:  cfg.NotifierUserID,
			APIKey:  cfg.NotifierAPIKey,
		})
		logger.Info("system-of-record notifier enabled")
	}
	if cfg.TelegramEnabled() {
		tgAlerter, err := alert.NewTelegramAlerter(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Error("failed to create telegram alerter", "error", err)
			os.Exit(1)
		}
		alerter = tgAlerter
		logger.Info("telegram ops alerts enabled", "chat_id", cfg.TelegramChatID)
	}
	effects := pipeline.NewSideEffects(renderer, store, notifier, alerter, logger)

	liveProcessor := pipeline.NewProcessor(extractor, db, effects, logger)
	batchProcessor := pipeline.NewProcessor(extractor, db, nil, logger)

	mon := monitor.New(acquirer, liveProcessor, logger)
	mgr := jobs.NewManager(acquirer, batchProcessor, logger)

	// Environment-configured monitoring defaults; start requests may override
	monitorDefaults := models.MonitorConfig{
		PollInterval:  cfg.PollInterval,
		Folders:       cfg.Folders(),
		SubjectFilter: cfg.SubjectFilter,
		SenderFilter:  cfg.SenderFilter,
		Lookback:      cfg.Lookback,
	}

	server := api.New(cfg.ListenAddr, mon, mgr, db, imapClient, monitorDefaults, logger)

	// Setup graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("api server failed", "error", err)
	}

	logger.Info("shutting down...")
	if _, err := mon.Stop(); err != nil && err != monitor.ErrNotRunning {
		logger.Warn("failed to stop live monitoring", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down api server", "error", err)
	}

	logger.Info("service stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
