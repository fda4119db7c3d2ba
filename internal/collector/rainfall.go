package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

type rainfallPayload struct {
	UpdateTime string `json:"updateTime"`
	Rainfall   struct {
		Data []rainfallEntry `json:"data"`
	} `json:"rainfall"`
	Data []rainfallEntry `json:"data"`
}

type rainfallEntry struct {
	Place      string   `json:"place"`
	Max        *float64 `json:"max"`
	Value      *float64 `json:"value"`
	RecordTime string   `json:"recordTime"`
}

// RainfallCollector reads the HKO hourly rainfall feed for one district
type RainfallCollector struct {
	fetch    Fetcher
	district string
}

// NewRainfallCollector creates a rainfall collector for a district
func NewRainfallCollector(fetch Fetcher, district string) *RainfallCollector {
	return &RainfallCollector{fetch: fetch, district: district}
}

// Metric identifies the collector
func (c *RainfallCollector) Metric() reading.Metric { return reading.MetricRainfall }

// Collect fetches the feed and picks the configured district's reading
func (c *RainfallCollector) Collect(ctx context.Context) (reading.Reading, error) {
	data, err := c.fetch.Fetch(ctx)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("rainfall fetch failed: %w", err)
	}
	return parseRainfall(data, c.district)
}

func parseRainfall(data []byte, district string) (reading.Reading, error) {
	var payload rainfallPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return reading.Reading{}, fmt.Errorf("invalid rainfall payload: %w", err)
	}

	entries := payload.Rainfall.Data
	if len(entries) == 0 {
		entries = payload.Data
	}

	entry := findDistrict(entries, district)
	if entry == nil {
		return reading.Reading{}, fmt.Errorf("%w: district %q", ErrNoData, district)
	}

	var mm float64
	switch {
	case entry.Max != nil:
		mm = *entry.Max
	case entry.Value != nil:
		mm = *entry.Value
	}

	updated := entry.RecordTime
	if updated == "" {
		updated = payload.UpdateTime
	}

	place := entry.Place
	if place == "" {
		place = district
	}

	return reading.Reading{
		Metric:      reading.MetricRainfall,
		LocationKey: district,
		ObservedAt:  parseFeedTime(updated),
		Value:       mm,
		Detail:      fmt.Sprintf("%.1f mm recorded at %s", mm, place),
	}, nil
}

// findDistrict matches the exact place name first, then retries with the
// " District" suffix stripped since the feed is inconsistent about it
func findDistrict(entries []rainfallEntry, district string) *rainfallEntry {
	for i := range entries {
		if entries[i].Place == district {
			return &entries[i]
		}
	}

	target := normalizeDistrict(district)
	for i := range entries {
		if normalizeDistrict(entries[i].Place) == target {
			return &entries[i]
		}
	}
	return nil
}

func normalizeDistrict(name string) string {
	text := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSpace(strings.TrimSuffix(text, " district"))
}
