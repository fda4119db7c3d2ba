package collector

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

// ErrNoData means the feed responded but carried nothing for the configured
// location. The caller skips the metric for that cycle; it is not an error
// condition for the engine.
var ErrNoData = errors.New("no data for configured location")

// Collector fetches one metric's upstream feed and normalizes it into a
// Reading. Vendor payload quirks, including inconsistent category strings,
// stop here: readings entering the engine carry only canonical categories.
type Collector interface {
	Metric() reading.Metric
	Collect(ctx context.Context) (reading.Reading, error)
}

// Fetcher retrieves one raw feed payload
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileFetcher serves a recorded payload from disk, used for mock mode and
// offline development
type FileFetcher struct {
	Path string
}

// Fetch reads the payload file
func (f FileFetcher) Fetch(_ context.Context) ([]byte, error) {
	return os.ReadFile(f.Path)
}

// URLFetcher retrieves a payload over HTTP through the resilient client
type URLFetcher struct {
	Client *Client
	URL    string
}

// Fetch performs the HTTP GET
func (f URLFetcher) Fetch(ctx context.Context) ([]byte, error) {
	return f.Client.Get(ctx, f.URL)
}

// parseFeedTime accepts the timestamp shapes the HK feeds use and falls
// back to the current time when absent or unparseable
func parseFeedTime(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02 15:04"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}
