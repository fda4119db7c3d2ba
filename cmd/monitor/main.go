package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cwyuen/hk-monitor/internal/alerting"
	httpapi "github.com/cwyuen/hk-monitor/internal/api"
	"github.com/cwyuen/hk-monitor/internal/collector"
	"github.com/cwyuen/hk-monitor/internal/dashboard"
	"github.com/cwyuen/hk-monitor/internal/database"
	"github.com/cwyuen/hk-monitor/internal/detector"
	"github.com/cwyuen/hk-monitor/internal/history"
	"github.com/cwyuen/hk-monitor/internal/queue"
	"github.com/cwyuen/hk-monitor/internal/reading"
	"github.com/cwyuen/hk-monitor/internal/scheduler"
	"github.com/cwyuen/hk-monitor/internal/sink"
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

	logger.Info("starting monitor service",
		zap.Duration("poll_interval", cfg.Monitor.PollInterval),
		zap.Bool("mock_data", cfg.Monitor.UseMockData))

	// Database is optional; without it the monitor runs purely in memory
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Connect(cfg.Database.ConnectionString())
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.RunMigrations(cfg.Monitor.MigrationsDir); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("connected to database")
	}

	states := newStateStore(cfg, logger)
	store := history.NewStore(cfg.Monitor.HistoryMax)

	sinks := []sink.Sink{sink.NewConsoleSink(os.Stdout)}
	if db != nil {
		sinks = append(sinks, sink.NewDBSink(db))
	}

	var readingsProducer *queue.Producer
	if cfg.Kafka.Enabled {
		for _, topic := range []string{cfg.Kafka.TopicReadings, cfg.Kafka.TopicAlerts} {
			if err := queue.CreateTopic(cfg.Kafka.Brokers, topic, cfg.Kafka.NumPartitions, 1); err != nil {
				logger.Warn("failed to create topic", zap.String("topic", topic), zap.Error(err))
			}
		}

		readingsProducer = queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
		defer readingsProducer.Close()

		alertsProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer alertsProducer.Close()
		sinks = append(sinks, sink.NewKafkaSink(alertsProducer))
	}

	engine := detector.NewEngine(store, alerting.NewDeduplicator(states), sink.NewFanout(logger, sinks...), logger)

	if db != nil {
		warmEngine(engine, db, cfg, logger)
	}

	collectors := buildCollectors(cfg)
	renderer := dashboard.NewRenderer(os.Stdout)

	sched := scheduler.New(engine, collectors, cfg.Monitor.PollInterval, publisherOrNil(readingsProducer), logger)
	sched.OnCycle = func() {
		all, err := states.All(context.Background())
		if err != nil {
			logger.Warn("failed to read alert states for dashboard", zap.Error(err))
			all = nil
		}
		renderer.Render(engine.Snapshot(), all)
	}

	// First cycle runs immediately so the dashboard is not empty until the
	// first tick
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Monitor.PollInterval)
	sched.RunCycle(ctx)
	cancel()

	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	var app *fiber.App
	if cfg.API.Enabled {
		app = fiber.New(fiber.Config{DisableStartupMessage: true})
		var alertLog httpapi.AlertLog
		if db != nil {
			alertLog = db
		}
		httpapi.RegisterRoutes(app, engine, states, alertLog)

		go func() {
			addr := fmt.Sprintf(":%d", cfg.API.Port)
			logger.Info("http api listening", zap.String("addr", addr))
			if err := app.Listen(addr); err != nil {
				logger.Error("http api stopped", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	if app != nil {
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			logger.Warn("http api shutdown failed", zap.Error(err))
		}
	}
}

func newStateStore(cfg *config.Config, logger *zap.Logger) alerting.StateStore {
	if !cfg.Redis.Enabled {
		// In-memory dedup state resets on restart: the first transition seen
		// after a restart alerts again
		return alerting.NewMemoryStateStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("using Redis alert state", zap.String("addr", cfg.Redis.Addr))
	return alerting.NewRedisStateStore(client)
}

// warmEngine preloads the history tail for each monitored key so the first
// live cycle can detect a transition against pre-restart readings
func warmEngine(engine *detector.Engine, db *database.DB, cfg *config.Config, logger *zap.Logger) {
	keys := monitoredKeys(cfg)
	for _, key := range keys {
		rows, err := db.LatestReadings(string(key.Metric), key.LocationKey, cfg.Monitor.WarmLimit)
		if err != nil {
			logger.Warn("failed to load persisted readings",
				zap.String("key", key.String()),
				zap.Error(err))
			continue
		}

		readings := make([]reading.Reading, 0, len(rows))
		for _, row := range rows {
			r := reading.Reading{
				Metric:      reading.Metric(row.Metric),
				LocationKey: row.LocationKey,
				ObservedAt:  row.ObservedAt,
			}
			if row.Value != nil {
				r.Value = *row.Value
			}
			if row.Category != nil {
				r.Category = *row.Category
			}
			if row.Detail != nil {
				r.Detail = *row.Detail
			}
			readings = append(readings, r)
		}
		engine.Warm(readings)
	}
	logger.Info("history warmed from database", zap.Int("keys", len(keys)))
}

func monitoredKeys(cfg *config.Config) []reading.Key {
	return []reading.Key{
		{Metric: reading.MetricWarning, LocationKey: "Hong Kong"},
		{Metric: reading.MetricRainfall, LocationKey: cfg.Monitor.RainfallDistrict},
		{Metric: reading.MetricAirQuality, LocationKey: cfg.Monitor.AqhiStation},
		{Metric: reading.MetricTraffic, LocationKey: cfg.Monitor.TrafficRegion},
	}
}

func buildCollectors(cfg *config.Config) []collector.Collector {
	var warnings, rainfall, aqhi, traffic collector.Fetcher

	if cfg.Monitor.UseMockData {
		dir := cfg.Monitor.MockDataDir
		warnings = collector.FileFetcher{Path: filepath.Join(dir, "warnings.json")}
		rainfall = collector.FileFetcher{Path: filepath.Join(dir, "rainfall.json")}
		aqhi = collector.FileFetcher{Path: filepath.Join(dir, "aqhi.json")}
		traffic = collector.FileFetcher{Path: filepath.Join(dir, "traffic.xml")}
	} else {
		timeout := 15 * time.Second
		warnings = collector.URLFetcher{Client: collector.NewClient("warnings", timeout), URL: cfg.Feeds.WarningsURL}
		rainfall = collector.URLFetcher{Client: collector.NewClient("rainfall", timeout), URL: cfg.Feeds.RainfallURL}
		aqhi = collector.URLFetcher{Client: collector.NewClient("aqhi", timeout), URL: cfg.Feeds.AqhiURL}
		traffic = collector.URLFetcher{Client: collector.NewClient("traffic", timeout), URL: cfg.Feeds.TrafficURL}
	}

	return []collector.Collector{
		collector.NewWarningCollector(warnings),
		collector.NewRainfallCollector(rainfall, cfg.Monitor.RainfallDistrict),
		collector.NewAqhiCollector(aqhi, cfg.Monitor.AqhiStation),
		collector.NewTrafficCollector(traffic, cfg.Monitor.TrafficRegion),
	}
}

// publisherOrNil keeps the scheduler's nil check honest: a typed nil
// *queue.Producer must not masquerade as a non-nil Publisher
func publisherOrNil(p *queue.Producer) scheduler.Publisher {
	if p == nil {
		return nil
	}
	return p
}
