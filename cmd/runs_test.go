package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/airport-borders/internal/geo"
	"github.com/sells-group/airport-borders/internal/model"
	"github.com/sells-group/airport-borders/internal/monitoring"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	done := now.Add(1500 * time.Millisecond)
	runs := []model.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			Status:     model.RunStatusComplete,
			Stats:      geo.Stats{Points: 9000, Contained: 8700, Proximity: 250, Unassigned: 50},
			CreatedAt:  now,
			FinishedAt: &done,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "UNASSIGNED")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "8700")
	assert.Contains(t, output, "1.5s")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
}

func TestFormatAssignments(t *testing.T) {
	region, dist := 3, 12345.6
	rows := []model.Assignment{
		{PointID: "AAAA", RegionID: &region, Method: model.MethodContained},
		{PointID: "BBBB", RegionID: &region, Method: model.MethodProximity, DistanceMeters: &dist},
		{PointID: "CCCC", Method: model.MethodUnassigned},
	}

	var buf bytes.Buffer
	formatAssignments(&buf, rows)

	output := buf.String()
	assert.Contains(t, output, "POINT")
	assert.Contains(t, output, "contained")
	assert.Contains(t, output, "12346")
	assert.Contains(t, output, "unassigned")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatAlerts(t *testing.T) {
	alerts := []monitoring.Alert{
		{Type: monitoring.AlertUnassignedRate, Severity: "medium", Message: "Run abc left 50 of 1000 airports unassigned"},
	}

	var buf bytes.Buffer
	formatAlerts(&buf, alerts)

	output := buf.String()
	assert.Contains(t, output, "SEVERITY")
	assert.Contains(t, output, "medium")
	assert.Contains(t, output, "unassigned_rate")
	assert.Contains(t, output, "50 of 1000")
}

func TestNewChecker_AgainstStore(t *testing.T) {
	c := setTestConfig(t)
	ctx := context.Background()
	st := openTestStore(t)

	run, err := st.CreateRun(ctx, model.RunInput{AirportsPath: "a.csv"})
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusComplete, geo.Stats{Points: 10, Contained: 5, Unassigned: 5}, nil))

	alerts, err := newChecker(st, c.Monitoring).Check(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, monitoring.AlertUnassignedRate, alerts[0].Type)
}
