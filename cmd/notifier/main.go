package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cwyuen/hk-monitor/internal/notification"
	"github.com/cwyuen/hk-monitor/internal/protocol"
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

	logger.Info("starting notifier service")

	telegram := notification.NewTelegramNotifier(&cfg.Telegram, logger)
	email := notification.NewEmailNotifier(&cfg.SMTP, logger)

	if err := email.TestConnection(); err != nil {
		logger.Info("SMTP unavailable, email notifications will be logged only",
			zap.Error(err))
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "notifier-group")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("failed to consume message", zap.Error(err))
				continue
			}

			alert, err := protocol.DecodeAlertNotification(msg.Value)
			if err != nil {
				// A malformed message never becomes deliverable; drop it
				logger.Warn("failed to decode alert, skipping", zap.Error(err))
				consumer.Commit(ctx, msg)
				continue
			}

			if err := telegram.SendAlertNotification(ctx, alert); err != nil {
				logger.Error("failed to send telegram alert", zap.Error(err))
				// No commit: the alert is retried on the next fetch
				continue
			}

			// Email is best effort on top of Telegram
			if err := email.SendAlertNotification(alert); err != nil {
				logger.Warn("failed to send email alert", zap.Error(err))
			}

			if err := consumer.Commit(ctx, msg); err != nil {
				logger.Warn("failed to commit offset", zap.Error(err))
			}
		}
	}()

	logger.Info("notifier running", zap.String("topic", cfg.Kafka.TopicAlerts))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
}
