// Package monitoring watches recorded classification runs and raises
// webhook alerts when they fail or leave too many airports unassigned.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/airport-borders/internal/model"
	"github.com/sells-group/airport-borders/internal/store"
)

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Runs created within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	// The two most recent complete runs, regardless of the window.
	Latest   *model.Run `json:"latest,omitempty"`
	Previous *model.Run `json:"previous,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// UnassignedRate is the share of the latest run's points left unassigned.
func (s *MetricsSnapshot) UnassignedRate() float64 {
	if s.Latest == nil || s.Latest.Stats.Points == 0 {
		return 0
	}
	return float64(s.Latest.Stats.Unassigned) / float64(s.Latest.Stats.Points)
}

// RunLister is the part of store.Store the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run store.
type Collector struct {
	runs RunLister
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}
	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}

	recent, err := c.runs.ListRuns(ctx, store.RunFilter{Status: model.RunStatusComplete, Limit: 2})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list complete runs")
	}
	if len(recent) > 0 {
		snap.Latest = &recent[0]
	}
	if len(recent) > 1 {
		snap.Previous = &recent[1]
	}

	return snap, nil
}
