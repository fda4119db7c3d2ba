package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

// warningLocation keys the single territory-wide warning feed
const warningLocation = "Hong Kong"

// warningCodeLevels maps HK Observatory warning codes onto the closed
// warning level set. Signals not listed still count as amber: any warning
// in force matters more than a missing table entry.
var warningCodeLevels = map[string]string{
	"WRAINA": "amber",
	"WRAINR": "red",
	"WRAINB": "black",
	"TC1":    "amber",
	"TC3":    "amber",
	"TC8NE":  "red",
	"TC8NW":  "red",
	"TC8SE":  "red",
	"TC8SW":  "red",
	"TC9":    "red",
	"TC10":   "black",
	"WFIREY": "amber",
	"WFIRER": "red",
	"WHOT":   "amber",
	"WCOLD":  "amber",
	"WFROST": "amber",
	"WMSGNL": "amber",
	"WL":     "amber",
	"WTMW":   "black",
}

type warningPayload struct {
	UpdateTime string          `json:"updateTime"`
	Details    []warningDetail `json:"details"`
}

type warningDetail struct {
	StatementCode string `json:"warningStatementCode"`
	Signal        string `json:"warningSignal"`
	Message       string `json:"warningMessage"`
	UpdateTime    string `json:"updateTime"`
}

// WarningCollector reads the HKO warning summary feed
type WarningCollector struct {
	fetch Fetcher
}

// NewWarningCollector creates a warning collector over the given fetcher
func NewWarningCollector(fetch Fetcher) *WarningCollector {
	return &WarningCollector{fetch: fetch}
}

// Metric identifies the collector
func (c *WarningCollector) Metric() reading.Metric { return reading.MetricWarning }

// Collect fetches and normalizes the current warning state. An empty feed
// is a valid "none" reading, not an error: warnings being lifted is a
// transition worth alerting on.
func (c *WarningCollector) Collect(ctx context.Context) (reading.Reading, error) {
	data, err := c.fetch.Fetch(ctx)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("warning fetch failed: %w", err)
	}
	return parseWarning(data)
}

func parseWarning(data []byte) (reading.Reading, error) {
	var payload warningPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return reading.Reading{}, fmt.Errorf("invalid warning payload: %w", err)
	}

	if len(payload.Details) == 0 {
		return reading.Reading{
			Metric:      reading.MetricWarning,
			LocationKey: warningLocation,
			ObservedAt:  parseFeedTime(payload.UpdateTime),
			Category:    "none",
			Detail:      "No weather warnings in force.",
		}, nil
	}

	entry := payload.Details[0]

	code := entry.Signal
	if code == "" {
		code = entry.StatementCode
	}

	level := "none"
	if code != "" {
		var ok bool
		if level, ok = warningCodeLevels[code]; !ok {
			level = "amber"
		}
	}

	message := entry.Message
	if message == "" {
		message = "Weather warning in effect."
	}

	updated := entry.UpdateTime
	if updated == "" {
		updated = payload.UpdateTime
	}

	return reading.Reading{
		Metric:      reading.MetricWarning,
		LocationKey: warningLocation,
		ObservedAt:  parseFeedTime(updated),
		Category:    level,
		Detail:      message,
	}, nil
}
