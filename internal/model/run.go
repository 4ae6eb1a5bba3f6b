// Package model holds the records persisted for classification runs.
package model

import (
	"time"

	"github.com/sells-group/airport-borders/internal/geo"
)

// RunStatus represents the current state of a classification run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusComplete, RunStatusFailed:
		return true
	}
	return false
}

// RunInput describes what a run classified and how.
type RunInput struct {
	AirportsPath    string  `json:"airports_path" yaml:"airports_path"`
	BordersPath     string  `json:"borders_path" yaml:"borders_path"`
	ThresholdMeters float64 `json:"threshold_meters" yaml:"threshold_meters"`
	Concurrency     int     `json:"concurrency" yaml:"concurrency"`
}

// Run is one execution of the classify command.
type Run struct {
	ID         string     `json:"id" yaml:"id"`
	Input      RunInput   `json:"input" yaml:"input"`
	Status     RunStatus  `json:"status" yaml:"status"`
	Stats      geo.Stats  `json:"stats" yaml:"stats"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}
