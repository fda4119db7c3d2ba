package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cwyuen/hk-monitor/internal/database"
	"github.com/cwyuen/hk-monitor/internal/queue"
	"github.com/cwyuen/hk-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting recorder service")

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Monitor.MigrationsDir); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, "recorder-group")
	defer consumer.Close()

	// Batch size 100 or 5 seconds, whichever comes first
	batchWriter := queue.NewBatchWriter(consumer, db, 100, 5*time.Second, logger)
	if err := batchWriter.Start(context.Background()); err != nil {
		logger.Fatal("failed to start batch writer", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := consumer.Stats()
			logger.Info("consumer stats",
				zap.Int64("messages", stats.Messages),
				zap.Int64("bytes", stats.Bytes),
				zap.Int64("errors", stats.Errors))
		}
	}()

	logger.Info("recorder running",
		zap.String("topic", cfg.Kafka.TopicReadings))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	batchWriter.Stop()
}
