package severity

import (
	"math"
	"strings"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

// Severity is an ordered classification bucket. Ordering is total within a
// metric; severities from different metrics must never be compared.
type Severity int

// Class is the result of classifying one reading. Malformed marks readings
// whose raw value fell outside the classifier domain; those are mapped to
// the lowest severity instead of failing.
type Class struct {
	Severity  Severity
	Malformed bool
}

// numericBand maps a minimum raw value (inclusive) to a severity.
// Bands are listed highest first so classification is a linear scan.
type numericBand struct {
	Min      float64
	Severity Severity
}

var rainfallBands = []numericBand{
	{30, 4}, // Black
	{15, 3}, // Red
	{5, 2},  // Amber
	{1, 1},  // Showers
	{0, 0},  // Dry
}

var aqhiBands = []numericBand{
	{11, 4}, // Serious
	{8, 3},  // VeryHigh
	{7, 2},  // High
	{4, 1},  // Moderate
	{1, 0},  // Low
}

var warningLevels = map[string]Severity{
	"none":  0,
	"amber": 1,
	"red":   2,
	"black": 3,
}

var trafficLevels = map[string]Severity{
	"normal": 0,
	"minor":  1,
	"major":  2,
	"severe": 3,
}

var severityNames = map[reading.Metric][]string{
	reading.MetricWarning:    {"None", "Amber", "Red", "Black"},
	reading.MetricRainfall:   {"Dry", "Showers", "Amber", "Red", "Black"},
	reading.MetricAirQuality: {"Low", "Moderate", "High", "VeryHigh", "Serious"},
	reading.MetricTraffic:    {"Normal", "Minor", "Major", "Severe"},
}

// Classify maps a reading's raw value to a severity for its metric.
// It is total: malformed input classifies to the lowest severity with the
// Malformed flag set rather than returning an error.
func Classify(r reading.Reading) Class {
	switch r.Metric {
	case reading.MetricWarning:
		return classifyCategory(r.Category, warningLevels)
	case reading.MetricTraffic:
		return classifyCategory(r.Category, trafficLevels)
	case reading.MetricRainfall:
		return classifyNumeric(r.Value, rainfallBands, 0)
	case reading.MetricAirQuality:
		// AQHI below 1 is outside the published index range
		return classifyNumeric(r.Value, aqhiBands, 1)
	default:
		return Class{Severity: 0, Malformed: true}
	}
}

func classifyCategory(category string, levels map[string]Severity) Class {
	sev, ok := levels[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return Class{Severity: 0, Malformed: true}
	}
	return Class{Severity: sev}
}

func classifyNumeric(value float64, bands []numericBand, floor float64) Class {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < floor {
		return Class{Severity: bands[len(bands)-1].Severity, Malformed: true}
	}
	for _, band := range bands {
		if value >= band.Min {
			return Class{Severity: band.Severity}
		}
	}
	return Class{Severity: bands[len(bands)-1].Severity, Malformed: true}
}

// Name renders the human-readable label for a severity of the given metric
func Name(m reading.Metric, s Severity) string {
	names, ok := severityNames[m]
	if !ok || int(s) < 0 || int(s) >= len(names) {
		return "Unknown"
	}
	return names[s]
}

// Levels returns the ordered label set for a metric, lowest first
func Levels(m reading.Metric) []string {
	names := severityNames[m]
	out := make([]string, len(names))
	copy(out, names)
	return out
}
