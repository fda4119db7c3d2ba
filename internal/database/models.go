package database

import (
	"time"
)

// ReadingRow is a persisted observation for one metric/location key
type ReadingRow struct {
	ID          int64
	Metric      string
	LocationKey string
	ObservedAt  time.Time
	Value       *float64
	Category    *string
	Detail      *string
	ReceivedAt  time.Time
}

// AlertRow is a logged alert event
type AlertRow struct {
	ID               int64
	EventID          string
	Metric           string
	LocationKey      string
	PreviousSeverity string
	NewSeverity      string
	ObservedAt       time.Time
	Message          string
	EmittedAt        time.Time
	CreatedAt        time.Time
}
