package reading

import (
	"fmt"
	"time"
)

// Metric identifies one monitored data category
type Metric string

const (
	MetricWarning    Metric = "warning"
	MetricRainfall   Metric = "rainfall"
	MetricAirQuality Metric = "aqhi"
	MetricTraffic    Metric = "traffic"
)

// Metrics lists every monitored metric in evaluation order
var Metrics = []Metric{MetricWarning, MetricRainfall, MetricAirQuality, MetricTraffic}

// Valid reports whether m is one of the known metrics
func (m Metric) Valid() bool {
	switch m {
	case MetricWarning, MetricRainfall, MetricAirQuality, MetricTraffic:
		return true
	}
	return false
}

// Key identifies one independent history sequence: one metric at one location
type Key struct {
	Metric      Metric
	LocationKey string
}

// String renders the key for use in maps, Redis keys, and Kafka message keys
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Metric, k.LocationKey)
}

// Reading is one normalized observation for one metric at one location.
// Numeric metrics (rainfall, aqhi) carry Value; categorical metrics
// (warning, traffic) carry Category, which adapters must normalize into
// the closed level set before the reading enters the engine. Detail is
// free text used only in rendered alert messages.
type Reading struct {
	Metric      Metric    `json:"metric"`
	LocationKey string    `json:"location_key"`
	ObservedAt  time.Time `json:"observed_at"`
	Value       float64   `json:"value"`
	Category    string    `json:"category,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// Key returns the history key for this reading
func (r Reading) Key() Key {
	return Key{Metric: r.Metric, LocationKey: r.LocationKey}
}
