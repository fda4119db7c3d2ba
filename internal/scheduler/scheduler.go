package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/cwyuen/hk-monitor/internal/collector"
	"github.com/cwyuen/hk-monitor/internal/detector"
	"github.com/cwyuen/hk-monitor/internal/history"
	"github.com/cwyuen/hk-monitor/internal/protocol"
	"github.com/cwyuen/hk-monitor/internal/reading"
)

// Publisher publishes accepted readings for downstream consumers.
// A nil Publisher disables publication.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Scheduler drives the poll loop: every interval it fans the collectors out
// concurrently and feeds whatever they return into the engine. A failed or
// empty fetch just means that key is not updated this cycle.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	engine     *detector.Engine
	collectors []collector.Collector
	readings   Publisher
	interval   time.Duration
	logger     *zap.Logger

	// OnCycle, when set, runs after every completed collect cycle
	OnCycle func()
}

// New creates a scheduler over the given collectors
func New(engine *detector.Engine, collectors []collector.Collector, interval time.Duration, readings Publisher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		engine:     engine,
		collectors: collectors,
		readings:   readings,
		interval:   interval,
		logger:     logger,
	}
}

// Start schedules the periodic collect job and starts the scheduler
func (s *Scheduler) Start() error {
	if len(s.collectors) == 0 {
		s.logger.Warn("no collectors configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()
		s.RunCycle(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels future jobs
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunCycle performs one collect cycle synchronously. Collectors run
// concurrently; the engine serializes per key.
func (s *Scheduler) RunCycle(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range s.collectors {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.collectOne(ctx, c)
		}()
	}
	wg.Wait()

	if s.OnCycle != nil {
		s.OnCycle()
	}
}

func (s *Scheduler) collectOne(ctx context.Context, c collector.Collector) {
	r, err := c.Collect(ctx)
	if err != nil {
		if errors.Is(err, collector.ErrNoData) {
			s.logger.Debug("feed had no data this cycle",
				zap.String("metric", string(c.Metric())))
			return
		}
		s.logger.Warn("collect failed",
			zap.String("metric", string(c.Metric())),
			zap.Error(err))
		return
	}

	if _, err := s.engine.Ingest(ctx, r); err != nil {
		if errors.Is(err, history.ErrOutOfOrder) {
			// Feeds republish stale observations; skip and wait for a fresh one
			s.logger.Warn("skipping stale reading",
				zap.String("key", r.Key().String()),
				zap.Error(err))
			return
		}
		s.logger.Error("ingest failed",
			zap.String("key", r.Key().String()),
			zap.Error(err))
		return
	}

	s.publish(ctx, r)
}

func (s *Scheduler) publish(ctx context.Context, r reading.Reading) {
	if s.readings == nil {
		return
	}

	data, err := protocol.EncodeReadingMessage(&protocol.ReadingMessage{
		Reading:    r,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to encode reading", zap.Error(err))
		return
	}

	if err := s.readings.Publish(ctx, r.Key().String(), data); err != nil {
		s.logger.Warn("failed to publish reading",
			zap.String("key", r.Key().String()),
			zap.Error(err))
	}
}
