package detector

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cwyuen/hk-monitor/internal/alerting"
	"github.com/cwyuen/hk-monitor/internal/history"
	"github.com/cwyuen/hk-monitor/internal/reading"
	"github.com/cwyuen/hk-monitor/internal/severity"
	"github.com/cwyuen/hk-monitor/internal/sink"
)

// Engine runs the full per-reading sequence: append to history, evaluate
// the key, deduplicate, and deliver accepted events to sinks. The sequence
// is atomic per key; different keys proceed concurrently.
type Engine struct {
	history  *history.Store
	detector *Detector
	dedup    *alerting.Deduplicator
	sinks    *sink.Fanout
	logger   *zap.Logger

	mu       sync.Mutex
	keyLocks map[reading.Key]*sync.Mutex
}

// NewEngine creates an engine over the given collaborators
func NewEngine(store *history.Store, dedup *alerting.Deduplicator, sinks *sink.Fanout, logger *zap.Logger) *Engine {
	return &Engine{
		history:  store,
		detector: NewDetector(store),
		dedup:    dedup,
		sinks:    sinks,
		logger:   logger,
		keyLocks: make(map[reading.Key]*sync.Mutex),
	}
}

// Ingest appends one reading and emits at most one alert event for it.
// It returns the emitted event, or nil when no transition occurred or the
// transition was deduplicated. Append and dedup errors are returned to the
// caller, which may skip the reading and continue the next cycle.
func (e *Engine) Ingest(ctx context.Context, r reading.Reading) (*alerting.Event, error) {
	lock := e.lockFor(r.Key())
	lock.Lock()
	defer lock.Unlock()

	if err := e.history.Append(r); err != nil {
		return nil, err
	}

	transition, err := e.detector.Evaluate(r.Key())
	if err != nil {
		return nil, err
	}
	if transition == nil {
		return nil, nil
	}

	if transition.Malformed {
		e.logger.Warn("transition involves a malformed reading",
			zap.String("key", transition.Key.String()),
			zap.String("from", severity.Name(transition.Key.Metric, transition.From)),
			zap.String("to", severity.Name(transition.Key.Metric, transition.To)))
	}

	emit, err := e.dedup.ShouldEmit(ctx, transition.Key, transition.To)
	if err != nil {
		return nil, err
	}
	if !emit {
		return nil, nil
	}

	// Record before delivery: a failing sink must not cause re-emission
	if err := e.dedup.Record(ctx, transition.Key, transition.To, transition.At); err != nil {
		return nil, err
	}

	event := alerting.NewEvent(transition.Key, transition.From, transition.To, transition.At, transition.Detail)
	e.sinks.Deliver(ctx, event)

	e.logger.Info("alert emitted",
		zap.String("key", transition.Key.String()),
		zap.String("from", event.FromLabel),
		zap.String("to", event.ToLabel))

	return &event, nil
}

// Warm preloads history with persisted readings, oldest first, so the first
// live cycle after a restart can detect transitions against the stored tail
func (e *Engine) Warm(readings []reading.Reading) {
	for _, r := range readings {
		if err := e.history.Append(r); err != nil {
			e.logger.Warn("skipping persisted reading during warm-up",
				zap.String("key", r.Key().String()),
				zap.Error(err))
		}
	}
}

// SnapshotEntry is the latest classified state of one key
type SnapshotEntry struct {
	Metric      reading.Metric  `json:"metric"`
	LocationKey string          `json:"location_key"`
	Reading     reading.Reading `json:"reading"`
	Severity    string          `json:"severity"`
	Malformed   bool            `json:"malformed,omitempty"`
}

// Snapshot returns the latest reading and severity per key, sorted by key
func (e *Engine) Snapshot() []SnapshotEntry {
	keys := e.history.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	entries := make([]SnapshotEntry, 0, len(keys))
	for _, key := range keys {
		latest, err := e.history.Latest(key)
		if err != nil {
			continue
		}
		class := severity.Classify(latest)
		entries = append(entries, SnapshotEntry{
			Metric:      key.Metric,
			LocationKey: key.LocationKey,
			Reading:     latest,
			Severity:    severity.Name(key.Metric, class.Severity),
			Malformed:   class.Malformed,
		})
	}
	return entries
}

func (e *Engine) lockFor(key reading.Key) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.keyLocks[key] = lock
	}
	return lock
}
