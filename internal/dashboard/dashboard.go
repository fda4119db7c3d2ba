// Package dashboard renders the current monitoring state to a console.
package dashboard

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cwyuen/hk-monitor/internal/alerting"
	"github.com/cwyuen/hk-monitor/internal/detector"
)

// Renderer writes periodic snapshots of every tracked key
type Renderer struct {
	out io.Writer
	now func() time.Time
}

// NewRenderer creates a renderer writing to out
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out, now: time.Now}
}

// Render prints one snapshot table. Keys with an alert on record get a
// marker so a glance shows which conditions have already been announced.
func (r *Renderer) Render(entries []detector.SnapshotEntry, states map[string]*alerting.AlertState) {
	fmt.Fprintf(r.out, "\n=== HK Monitor Snapshot @ %s ===\n", r.now().UTC().Format("2006-01-02 15:04:05 MST"))
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "(no readings yet)")
		return
	}

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSEVERITY\tOBSERVED\tALERTED\tDETAIL")
	for _, entry := range entries {
		key := fmt.Sprintf("%s:%s", entry.Metric, entry.LocationKey)

		sev := entry.Severity
		if entry.Malformed {
			sev += " (malformed)"
		}

		alerted := "-"
		if state, ok := states[key]; ok {
			alerted = state.Label
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			key,
			sev,
			entry.Reading.ObservedAt.UTC().Format("15:04:05"),
			alerted,
			truncate(entry.Reading.Detail, 60),
		)
	}
	w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
