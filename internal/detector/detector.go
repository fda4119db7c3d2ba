package detector

import (
	"errors"
	"time"

	"github.com/cwyuen/hk-monitor/internal/history"
	"github.com/cwyuen/hk-monitor/internal/reading"
	"github.com/cwyuen/hk-monitor/internal/severity"
)

// Transition is a change in severity between the two most recent readings
// for a key. Both escalation and de-escalation are transitions; alert
// policy is decided downstream by the deduplicator.
type Transition struct {
	Key       reading.Key
	From      severity.Severity
	To        severity.Severity
	At        time.Time
	Detail    string
	Malformed bool
}

// Detector classifies the latest two readings of a key and decides whether
// a severity transition occurred
type Detector struct {
	history *history.Store
}

// NewDetector creates a detector over the given history store
func NewDetector(store *history.Store) *Detector {
	return &Detector{history: store}
}

// Evaluate returns the transition for a key, or nil when the key has fewer
// than two readings or the latest two classify to the same severity.
// It reads but never mutates state, so evaluating twice without an
// intervening append yields the same result.
func (d *Detector) Evaluate(key reading.Key) (*Transition, error) {
	previous, current, err := d.history.LatestTwo(key)
	if errors.Is(err, history.ErrInsufficientHistory) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	prevClass := severity.Classify(previous)
	curClass := severity.Classify(current)

	// Compare derived severities, not raw values, so noisy readings inside
	// one bucket never alert
	if prevClass.Severity == curClass.Severity {
		return nil, nil
	}

	return &Transition{
		Key:       key,
		From:      prevClass.Severity,
		To:        curClass.Severity,
		At:        current.ObservedAt,
		Detail:    current.Detail,
		Malformed: prevClass.Malformed || curClass.Malformed,
	}, nil
}
