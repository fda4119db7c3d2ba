package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cwyuen/hk-monitor/internal/alerting"
	"github.com/cwyuen/hk-monitor/internal/history"
	"github.com/cwyuen/hk-monitor/internal/reading"
	"github.com/cwyuen/hk-monitor/internal/sink"
)

// captureSink records delivered events and optionally fails every delivery
type captureSink struct {
	events []alerting.Event
	fail   bool
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Deliver(_ context.Context, event alerting.Event) error {
	s.events = append(s.events, event)
	if s.fail {
		return errors.New("delivery refused")
	}
	return nil
}

func newTestEngine(sinks ...sink.Sink) (*Engine, *history.Store) {
	store := history.NewStore(0)
	dedup := alerting.NewDeduplicator(alerting.NewMemoryStateStore())
	engine := NewEngine(store, dedup, sink.NewFanout(zap.NewNop(), sinks...), zap.NewNop())
	return engine, store
}

func warningAt(category string, at time.Time) reading.Reading {
	return reading.Reading{
		Metric:      reading.MetricWarning,
		LocationKey: "HK Island",
		ObservedAt:  at,
		Category:    category,
	}
}

func TestEngine_WarningUpgradeEmitsOneEvent(t *testing.T) {
	capture := &captureSink{}
	engine, _ := newTestEngine(capture)
	ctx := context.Background()

	event, err := engine.Ingest(ctx, warningAt("none", t0))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if event != nil {
		t.Error("first reading must not emit")
	}

	event, err = engine.Ingest(ctx, warningAt("red", t0.Add(5*time.Minute)))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if event == nil {
		t.Fatal("expected an alert event")
	}
	if event.FromLabel != "None" || event.ToLabel != "Red" {
		t.Errorf("expected None->Red, got %s->%s", event.FromLabel, event.ToLabel)
	}

	if len(capture.events) != 1 {
		t.Fatalf("expected exactly one delivered event, got %d", len(capture.events))
	}
	delivered := capture.events[0]
	if delivered.Metric != reading.MetricWarning || delivered.LocationKey != "HK Island" {
		t.Errorf("unexpected event fields: %+v", delivered)
	}
	if !delivered.ObservedAt.Equal(t0.Add(5 * time.Minute)) {
		t.Errorf("expected observed_at of the current reading, got %v", delivered.ObservedAt)
	}
}

func TestEngine_PlateauEmitsNothing(t *testing.T) {
	capture := &captureSink{}
	engine, _ := newTestEngine(capture)
	ctx := context.Background()

	aqhi := func(value float64, at time.Time) reading.Reading {
		return reading.Reading{Metric: reading.MetricAirQuality, LocationKey: "Central/Western", ObservedAt: at, Value: value}
	}

	engine.Ingest(ctx, aqhi(4, t0))
	event, err := engine.Ingest(ctx, aqhi(5, t0.Add(5*time.Minute)))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if event != nil || len(capture.events) != 0 {
		t.Errorf("expected no events for same-bucket fluctuation, got %d", len(capture.events))
	}
}

func TestEngine_FlapAndRecoverEmitsTwice(t *testing.T) {
	capture := &captureSink{}
	engine, _ := newTestEngine(capture)
	ctx := context.Background()

	// The initial amber is a first reading and emits nothing; the flap then
	// produces two transitions, both of which must alert.
	engine.Ingest(ctx, warningAt("amber", t0))
	engine.Ingest(ctx, warningAt("red", t0.Add(5*time.Minute)))
	engine.Ingest(ctx, warningAt("amber", t0.Add(10*time.Minute)))

	var labels []string
	for _, event := range capture.events {
		labels = append(labels, event.FromLabel+"->"+event.ToLabel)
	}
	want := []string{"Amber->Red", "Red->Amber"}
	if len(labels) != len(want) {
		t.Fatalf("expected %v, got %v", want, labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, labels)
		}
	}
}

func TestEngine_RepeatedSeverityIsDeduplicated(t *testing.T) {
	capture := &captureSink{}
	engine, store := newTestEngine(capture)
	ctx := context.Background()

	engine.Ingest(ctx, warningAt("none", t0))
	engine.Ingest(ctx, warningAt("red", t0.Add(5*time.Minute)))

	// Re-evaluating the same key without an append must not emit again
	transition, err := engine.detector.Evaluate(reading.Key{Metric: reading.MetricWarning, LocationKey: "HK Island"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if transition == nil {
		t.Fatal("expected transition to still be visible")
	}
	emit, err := engine.dedup.ShouldEmit(ctx, transition.Key, transition.To)
	if err != nil {
		t.Fatalf("ShouldEmit failed: %v", err)
	}
	if emit {
		t.Error("expected repeated evaluation to be suppressed")
	}

	if store.Count(reading.Key{Metric: reading.MetricWarning, LocationKey: "HK Island"}) != 2 {
		t.Error("evaluation must not modify history")
	}
	if len(capture.events) != 1 {
		t.Errorf("expected exactly one event, got %d", len(capture.events))
	}
}

func TestEngine_OutOfOrderReadingRejected(t *testing.T) {
	capture := &captureSink{}
	engine, store := newTestEngine(capture)
	ctx := context.Background()

	engine.Ingest(ctx, warningAt("none", t0))
	engine.Ingest(ctx, warningAt("red", t0.Add(5*time.Minute)))

	_, err := engine.Ingest(ctx, warningAt("black", t0.Add(-time.Minute)))
	if !errors.Is(err, history.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}

	key := reading.Key{Metric: reading.MetricWarning, LocationKey: "HK Island"}
	if store.Count(key) != 2 {
		t.Errorf("rejected reading must not be stored, have %d", store.Count(key))
	}
	if len(capture.events) != 1 {
		t.Errorf("rejected reading must not emit, got %d events", len(capture.events))
	}
}

func TestEngine_SinkFailureDoesNotRevertDedup(t *testing.T) {
	failing := &captureSink{fail: true}
	engine, _ := newTestEngine(failing)
	ctx := context.Background()

	engine.Ingest(ctx, warningAt("none", t0))
	event, err := engine.Ingest(ctx, warningAt("red", t0.Add(5*time.Minute)))
	if err != nil {
		t.Fatalf("Ingest must not fail on sink errors: %v", err)
	}
	if event == nil {
		t.Fatal("expected event despite sink failure")
	}

	// Same severity again: dedup state was recorded even though delivery failed
	event, err = engine.Ingest(ctx, warningAt("red", t0.Add(10*time.Minute)))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if event != nil {
		t.Error("expected dedup to hold after failed delivery")
	}
}

func TestEngine_CrossKeyIndependence(t *testing.T) {
	capture := &captureSink{}
	engine, _ := newTestEngine(capture)
	ctx := context.Background()

	island := func(category string, at time.Time) reading.Reading {
		return reading.Reading{Metric: reading.MetricTraffic, LocationKey: "Hong Kong Island", ObservedAt: at, Category: category}
	}
	kowloon := func(category string, at time.Time) reading.Reading {
		return reading.Reading{Metric: reading.MetricTraffic, LocationKey: "Kowloon", ObservedAt: at, Category: category}
	}

	engine.Ingest(ctx, island("normal", t0))
	engine.Ingest(ctx, kowloon("normal", t0))
	engine.Ingest(ctx, island("severe", t0.Add(5*time.Minute)))

	if len(capture.events) != 1 {
		t.Fatalf("expected one event, got %d", len(capture.events))
	}
	if capture.events[0].LocationKey != "Hong Kong Island" {
		t.Errorf("event attributed to wrong key: %s", capture.events[0].LocationKey)
	}

	// Kowloon's own transition is still detected independently
	event, err := engine.Ingest(ctx, kowloon("minor", t0.Add(6*time.Minute)))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if event == nil || event.LocationKey != "Kowloon" {
		t.Errorf("expected independent Kowloon event, got %+v", event)
	}
}

func TestEngine_WarmPreloadsHistory(t *testing.T) {
	capture := &captureSink{}
	engine, _ := newTestEngine(capture)
	ctx := context.Background()

	// Tail restored from the database after a restart
	engine.Warm([]reading.Reading{
		warningAt("none", t0),
		warningAt("amber", t0.Add(5*time.Minute)),
	})

	// Warm-up itself must not emit; the first live reading compares against
	// the restored tail
	if len(capture.events) != 0 {
		t.Fatalf("warm-up emitted %d events", len(capture.events))
	}

	event, err := engine.Ingest(ctx, warningAt("red", t0.Add(10*time.Minute)))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if event == nil || event.FromLabel != "Amber" || event.ToLabel != "Red" {
		t.Errorf("expected Amber->Red against warmed history, got %+v", event)
	}
}

func TestEngine_Snapshot(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	engine.Ingest(ctx, warningAt("amber", t0))
	engine.Ingest(ctx, reading.Reading{Metric: reading.MetricAirQuality, LocationKey: "Central/Western", ObservedAt: t0, Value: 8})

	entries := engine.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("expected 2 snapshot entries, got %d", len(entries))
	}

	// Sorted by key string: aqhi before warning
	if entries[0].Metric != reading.MetricAirQuality || entries[0].Severity != "VeryHigh" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Metric != reading.MetricWarning || entries[1].Severity != "Amber" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}
