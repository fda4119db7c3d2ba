package alerting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cwyuen/hk-monitor/internal/reading"
	"github.com/cwyuen/hk-monitor/internal/severity"
)

// Event is the externally observable artifact of an accepted transition.
// The structured severity fields are the contract with sinks; Message is a
// pre-rendered human-readable summary.
type Event struct {
	ID          string            `json:"id"`
	Metric      reading.Metric    `json:"metric"`
	LocationKey string            `json:"location_key"`
	From        severity.Severity `json:"from"`
	To          severity.Severity `json:"to"`
	FromLabel   string            `json:"from_label"`
	ToLabel     string            `json:"to_label"`
	ObservedAt  time.Time         `json:"observed_at"`
	Message     string            `json:"message"`
}

var messageSubjects = map[reading.Metric]string{
	reading.MetricWarning:    "Weather warning for %s",
	reading.MetricRainfall:   "Rainfall in %s",
	reading.MetricAirQuality: "AQHI at %s",
	reading.MetricTraffic:    "Traffic in %s",
}

// NewEvent assembles an alert event for an accepted transition. Detail, when
// present, is the free-text description from the triggering reading.
func NewEvent(key reading.Key, from, to severity.Severity, observedAt time.Time, detail string) Event {
	fromLabel := severity.Name(key.Metric, from)
	toLabel := severity.Name(key.Metric, to)

	subject, ok := messageSubjects[key.Metric]
	if !ok {
		subject = "%s"
	}

	message := fmt.Sprintf(subject+" moved from %s to %s", key.LocationKey, fromLabel, toLabel)
	if detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}

	return Event{
		ID:          uuid.New().String(),
		Metric:      key.Metric,
		LocationKey: key.LocationKey,
		From:        from,
		To:          to,
		FromLabel:   fromLabel,
		ToLabel:     toLabel,
		ObservedAt:  observedAt,
		Message:     message,
	}
}
