package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

type aqhiEntry struct {
	Station string      `json:"station"`
	Aqhi    json.Number `json:"aqhi"`
	Time    string      `json:"time"`
}

// AqhiCollector reads the AQHI feed for one monitoring station
type AqhiCollector struct {
	fetch   Fetcher
	station string
}

// NewAqhiCollector creates an AQHI collector for a station
func NewAqhiCollector(fetch Fetcher, station string) *AqhiCollector {
	return &AqhiCollector{fetch: fetch, station: station}
}

// Metric identifies the collector
func (c *AqhiCollector) Metric() reading.Metric { return reading.MetricAirQuality }

// Collect fetches the feed and picks the configured station's reading
func (c *AqhiCollector) Collect(ctx context.Context) (reading.Reading, error) {
	data, err := c.fetch.Fetch(ctx)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("aqhi fetch failed: %w", err)
	}
	return parseAqhi(data, c.station)
}

func parseAqhi(data []byte, station string) (reading.Reading, error) {
	var entries []aqhiEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Some mirrors wrap the station list in an object
		var wrapped struct {
			Aqhi []aqhiEntry `json:"aqhi"`
			Data []aqhiEntry `json:"data"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return reading.Reading{}, fmt.Errorf("invalid aqhi payload: %w", err)
		}
		entries = wrapped.Aqhi
		if len(entries) == 0 {
			entries = wrapped.Data
		}
	}

	for _, entry := range entries {
		if entry.Station != station {
			continue
		}

		// A value that does not parse still produces a reading; the
		// classifier flags it as malformed instead of dropping the cycle
		value, err := entry.Aqhi.Float64()
		if err != nil {
			value = -1
		}

		return reading.Reading{
			Metric:      reading.MetricAirQuality,
			LocationKey: station,
			ObservedAt:  parseFeedTime(entry.Time),
			Value:       value,
			Detail:      fmt.Sprintf("AQHI %.1f at %s", value, station),
		}, nil
	}

	return reading.Reading{}, fmt.Errorf("%w: station %q", ErrNoData, station)
}
