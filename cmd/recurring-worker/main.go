package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gagyebu/internal/amqp"
	"gagyebu/internal/config"
	"gagyebu/internal/services"
	"gagyebu/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized")
			events = amqpClient
		}
	} else {
		logger.Info("AMQP disabled - generated transactions will not be announced")
	}

	scheduler := services.NewRecurringScheduler(repo, repo, events)

	opts := services.ProcessOptions{}
	if cfg.ProcessUserID != 0 {
		uid := cfg.ProcessUserID
		opts.UserID = &uid
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Recurring scheduler configured",
		"interval", cfg.ProcessInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.ProcessInterval)
	defer ticker.Stop()

	// Run one batch immediately on startup
	logger.Info("Running initial recurring batch...")
	if result, err := scheduler.Process(ctx, opts); err != nil {
		logger.Error("Initial batch failed", "error", err)
	} else {
		logger.Info("Initial batch complete",
			"created", result.Created,
			"skipped", result.Skipped,
			"total", result.Total)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Processing recurring rules...")
				result, err := scheduler.Process(ctx, opts)
				if err != nil {
					logger.Error("Periodic batch failed", "error", err)
				} else {
					logger.Info("Periodic batch complete",
						"created", result.Created,
						"skipped", result.Skipped,
						"total", result.Total,
						"next_check", now.Add(cfg.ProcessInterval).Format("15:04:05"))
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()

	logger.Info("Recurring-worker shutdown complete")
}
