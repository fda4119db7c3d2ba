package severity

import (
	"math"
	"testing"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

func TestClassify_AqhiBands(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{1, "Low"},
		{3, "Low"},
		{4, "Moderate"},
		{5, "Moderate"},
		{6, "Moderate"},
		{7, "High"},
		{7.9, "High"},
		{8, "VeryHigh"},
		{10, "VeryHigh"},
		{11, "Serious"},
		{15, "Serious"},
	}

	for _, tc := range cases {
		c := Classify(reading.Reading{Metric: reading.MetricAirQuality, Value: tc.value})
		if c.Malformed {
			t.Errorf("AQHI %.1f unexpectedly malformed", tc.value)
		}
		if got := Name(reading.MetricAirQuality, c.Severity); got != tc.want {
			t.Errorf("AQHI %.1f: expected %s, got %s", tc.value, tc.want, got)
		}
	}
}

func TestClassify_RainfallBands(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{0, "Dry"},
		{0.5, "Dry"},
		{1, "Showers"},
		{4.9, "Showers"},
		{5, "Amber"},
		{15, "Red"},
		{29.9, "Red"},
		{30, "Black"},
		{80, "Black"},
	}

	for _, tc := range cases {
		c := Classify(reading.Reading{Metric: reading.MetricRainfall, Value: tc.value})
		if c.Malformed {
			t.Errorf("rainfall %.1f unexpectedly malformed", tc.value)
		}
		if got := Name(reading.MetricRainfall, c.Severity); got != tc.want {
			t.Errorf("rainfall %.1f: expected %s, got %s", tc.value, tc.want, got)
		}
	}
}

func TestClassify_CategoricalLevels(t *testing.T) {
	cases := []struct {
		metric   reading.Metric
		category string
		want     Severity
	}{
		{reading.MetricWarning, "none", 0},
		{reading.MetricWarning, "amber", 1},
		{reading.MetricWarning, "red", 2},
		{reading.MetricWarning, "black", 3},
		{reading.MetricWarning, " Red ", 2}, // adapters trim, but tolerate whitespace/case
		{reading.MetricWarning, "AMBER", 1},
		{reading.MetricTraffic, "normal", 0},
		{reading.MetricTraffic, "minor", 1},
		{reading.MetricTraffic, "major", 2},
		{reading.MetricTraffic, "severe", 3},
	}

	for _, tc := range cases {
		c := Classify(reading.Reading{Metric: tc.metric, Category: tc.category})
		if c.Malformed {
			t.Errorf("%s %q unexpectedly malformed", tc.metric, tc.category)
		}
		if c.Severity != tc.want {
			t.Errorf("%s %q: expected severity %d, got %d", tc.metric, tc.category, tc.want, c.Severity)
		}
	}
}

func TestClassify_MalformedFallsBackToLowest(t *testing.T) {
	cases := []reading.Reading{
		{Metric: reading.MetricWarning, Category: "purple"},
		{Metric: reading.MetricWarning, Category: ""},
		{Metric: reading.MetricTraffic, Category: "gridlock"},
		{Metric: reading.MetricAirQuality, Value: 0},
		{Metric: reading.MetricAirQuality, Value: -3},
		{Metric: reading.MetricAirQuality, Value: math.NaN()},
		{Metric: reading.MetricRainfall, Value: -1},
		{Metric: reading.MetricRainfall, Value: math.Inf(1)},
	}

	for _, r := range cases {
		c := Classify(r)
		if !c.Malformed {
			t.Errorf("%s value=%v category=%q: expected malformed flag", r.Metric, r.Value, r.Category)
		}
		if c.Severity != 0 {
			t.Errorf("%s value=%v category=%q: expected lowest severity, got %d", r.Metric, r.Value, r.Category, c.Severity)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	r := reading.Reading{Metric: reading.MetricAirQuality, Value: 7.2}
	first := Classify(r)
	second := Classify(r)
	if first != second {
		t.Errorf("classification not deterministic: %+v vs %+v", first, second)
	}
}

func TestName_UnknownSeverity(t *testing.T) {
	if got := Name(reading.MetricWarning, 99); got != "Unknown" {
		t.Errorf("expected Unknown, got %s", got)
	}
}
