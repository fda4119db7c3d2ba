package collector

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

type trafficFeed struct {
	Messages []trafficMessage `xml:"message"`
}

type trafficMessage struct {
	District         string `xml:"district_en"`
	Heading          string `xml:"incident_heading_en"`
	Content          string `xml:"content_en"`
	Detail           string `xml:"incident_detail_en"`
	Status           string `xml:"incident_status_en"`
	Location         string `xml:"location_en"`
	Direction        string `xml:"direction_en"`
	AnnouncementDate string `xml:"announcement_date"`
}

// trafficSeverityWords orders keyword groups from worst to mildest; the
// first group with a match wins
var trafficSeverityWords = []struct {
	level string
	words []string
}{
	{"severe", []string{"closed", "closure", "serious", "landslide", "flooding"}},
	{"major", []string{"suspended", "blocked", "accident", "breakdown"}},
	{"minor", []string{"slow", "congest", "delay", "busy"}},
	{"normal", []string{"resumed", "cleared", "normal", "reopened"}},
}

// TrafficCollector reads the Transport Department incident feed for one region
type TrafficCollector struct {
	fetch  Fetcher
	region string
}

// NewTrafficCollector creates a traffic collector for a region
func NewTrafficCollector(fetch Fetcher, region string) *TrafficCollector {
	return &TrafficCollector{fetch: fetch, region: region}
}

// Metric identifies the collector
func (c *TrafficCollector) Metric() reading.Metric { return reading.MetricTraffic }

// Collect fetches the feed and normalizes the region's worst incident.
// The feed only lists active incidents, so an empty feed reads as normal
// traffic; that is what lets a Severe -> Normal recovery alert fire.
func (c *TrafficCollector) Collect(ctx context.Context) (reading.Reading, error) {
	data, err := c.fetch.Fetch(ctx)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("traffic fetch failed: %w", err)
	}
	return parseTraffic(data, c.region)
}

func parseTraffic(data []byte, region string) (reading.Reading, error) {
	var feed trafficFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return reading.Reading{}, fmt.Errorf("invalid traffic payload: %w", err)
	}

	entry := pickTrafficMessage(feed.Messages, region)
	if entry == nil {
		return reading.Reading{
			Metric:      reading.MetricTraffic,
			LocationKey: region,
			ObservedAt:  parseFeedTime(""),
			Category:    "normal",
			Detail:      "No incidents reported.",
		}, nil
	}

	detail := strings.TrimSpace(entry.Content)
	if detail == "" {
		detail = strings.TrimSpace(entry.Detail)
	}
	if detail == "" {
		detail = "Traffic update"
	}

	return reading.Reading{
		Metric:      reading.MetricTraffic,
		LocationKey: region,
		ObservedAt:  parseFeedTime(entry.AnnouncementDate),
		Category:    normalizeTrafficSeverity(entry),
		Detail:      detail,
	}, nil
}

// pickTrafficMessage prefers an incident mentioning the region anywhere in
// its text; with no regional match it falls back to the first incident
func pickTrafficMessage(messages []trafficMessage, region string) *trafficMessage {
	if len(messages) == 0 {
		return nil
	}

	needle := strings.ToLower(strings.TrimSpace(region))
	if needle == "" {
		return &messages[0]
	}

	for i := range messages {
		m := &messages[i]
		joined := strings.ToLower(strings.Join([]string{
			m.District, m.Location, m.Direction, m.Content, m.Detail,
		}, " "))
		if strings.Contains(joined, needle) {
			return m
		}
	}
	return &messages[0]
}

func normalizeTrafficSeverity(m *trafficMessage) string {
	text := strings.ToLower(m.Heading + " " + m.Status)
	for _, group := range trafficSeverityWords {
		for _, word := range group.words {
			if strings.Contains(text, word) {
				return group.level
			}
		}
	}
	// An incident we cannot grade is still an incident
	return "minor"
}
