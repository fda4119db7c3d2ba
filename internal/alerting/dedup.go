package alerting

import (
	"context"
	"time"

	"github.com/cwyuen/hk-monitor/internal/reading"
	"github.com/cwyuen/hk-monitor/internal/severity"
)

// Deduplicator suppresses re-emission of alerts for a severity the key is
// already known to be at. Dedup tracks the LAST alerted severity, not every
// severity ever alerted: a key that flaps Amber -> Red -> Amber alerts on
// both changes.
type Deduplicator struct {
	states StateStore
}

// NewDeduplicator creates a deduplicator over the given state store
func NewDeduplicator(states StateStore) *Deduplicator {
	return &Deduplicator{states: states}
}

// ShouldEmit reports whether an alert landing the key on severity `to`
// should be delivered
func (d *Deduplicator) ShouldEmit(ctx context.Context, key reading.Key, to severity.Severity) (bool, error) {
	state, err := d.states.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if state == nil {
		return true, nil
	}
	return state.LastAlerted != to, nil
}

// Record marks `to` as the last alerted severity for the key. It must be
// called once per accepted alert, before sink delivery is attempted, so a
// failing sink cannot cause re-emission.
func (d *Deduplicator) Record(ctx context.Context, key reading.Key, to severity.Severity, at time.Time) error {
	return d.states.Set(ctx, key, &AlertState{
		LastAlerted: to,
		Label:       severity.Name(key.Metric, to),
		AlertedAt:   at,
	})
}
