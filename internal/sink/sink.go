package sink

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cwyuen/hk-monitor/internal/alerting"
	"github.com/cwyuen/hk-monitor/internal/database"
	"github.com/cwyuen/hk-monitor/internal/protocol"
	"github.com/cwyuen/hk-monitor/internal/queue"
	"github.com/cwyuen/hk-monitor/internal/reading"
)

// Sink receives accepted alert events. Implementations own their own
// delivery semantics; the engine never retries on a sink's behalf.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event alerting.Event) error
}

// Fanout delivers each event to every registered sink. A failure in one
// sink is logged and does not block delivery to the others, and it never
// affects deduplication state.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout creates a fan-out over the given sinks
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

// Deliver sends the event to all sinks
func (f *Fanout) Deliver(ctx context.Context, event alerting.Event) {
	for _, s := range f.sinks {
		if err := s.Deliver(ctx, event); err != nil {
			f.logger.Warn("sink delivery failed",
				zap.String("sink", s.Name()),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}

// ConsoleSink prints alert events to a writer
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a console sink writing to out
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

// Name identifies the sink in logs
func (s *ConsoleSink) Name() string { return "console" }

// Deliver prints the event
func (s *ConsoleSink) Deliver(_ context.Context, event alerting.Event) error {
	_, err := fmt.Fprintf(s.out, "🚨 [%s] %s -> %s\n%s\n",
		event.Metric, event.FromLabel, event.ToLabel, event.Message)
	return err
}

// DBSink appends alert events to the alert_log table
type DBSink struct {
	db *database.DB
}

// NewDBSink creates a database-backed sink
func NewDBSink(db *database.DB) *DBSink {
	return &DBSink{db: db}
}

// Name identifies the sink in logs
func (s *DBSink) Name() string { return "database" }

// Deliver inserts one alert log row
func (s *DBSink) Deliver(_ context.Context, event alerting.Event) error {
	return s.db.InsertAlertLog(&database.AlertRow{
		EventID:          event.ID,
		Metric:           string(event.Metric),
		LocationKey:      event.LocationKey,
		PreviousSeverity: event.FromLabel,
		NewSeverity:      event.ToLabel,
		ObservedAt:       event.ObservedAt,
		Message:          event.Message,
		EmittedAt:        time.Now().UTC(),
	})
}

// KafkaSink publishes alert events to the alerts topic, keyed by history
// key so transitions for one key stay ordered within a partition
type KafkaSink struct {
	producer *queue.Producer
}

// NewKafkaSink creates a Kafka-backed sink
func NewKafkaSink(producer *queue.Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

// Name identifies the sink in logs
func (s *KafkaSink) Name() string { return "kafka" }

// Deliver publishes the event as an AlertNotification
func (s *KafkaSink) Deliver(ctx context.Context, event alerting.Event) error {
	notification := &protocol.AlertNotification{
		ID:          event.ID,
		Metric:      event.Metric,
		LocationKey: event.LocationKey,
		From:        event.FromLabel,
		To:          event.ToLabel,
		ObservedAt:  event.ObservedAt,
		Message:     event.Message,
		EmittedAt:   time.Now().UTC(),
	}

	data, err := protocol.EncodeAlertNotification(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	key := reading.Key{Metric: event.Metric, LocationKey: event.LocationKey}
	return s.producer.Publish(ctx, key.String(), data)
}
