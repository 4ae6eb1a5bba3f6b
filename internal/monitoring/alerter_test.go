package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/airport-borders/internal/config"
	"github.com/sells-group/airport-borders/internal/geo"
	"github.com/sells-group/airport-borders/internal/model"
)

func testAlerter(cfg config.MonitoringConfig) *Alerter {
	a := NewAlerter(cfg)
	a.retry.Base = time.Millisecond
	a.retry.Max = 5 * time.Millisecond
	return a
}

func completeRun(id string, points, unassigned int) *model.Run {
	return &model.Run{
		ID:     id,
		Status: model.RunStatusComplete,
		Stats:  geo.Stats{Points: points, Unassigned: unassigned, Contained: points - unassigned},
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := testAlerter(config.MonitoringConfig{
		FailureRateThreshold:    0.10,
		UnassignedRateThreshold: 0.05,
		MaxUnassignedIncrease:   25,
	})

	snap := &MetricsSnapshot{
		RunsTotal:     100,
		RunsComplete:  95,
		RunsFailed:    5,
		FailRate:      0.05,
		Latest:        completeRun("r2", 9000, 40),
		Previous:      completeRun("r1", 9000, 35),
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_RunFailureRate(t *testing.T) {
	a := testAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		RunsTotal:     20,
		RunsComplete:  12,
		RunsFailed:    8,
		FailRate:      0.4,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_MinimumRunsRequired(t *testing.T) {
	a := testAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	// Only 3 finished runs, below the 5-run minimum for a failure rate alert.
	snap := &MetricsSnapshot{
		RunsTotal:     3,
		RunsComplete:  1,
		RunsFailed:    2,
		FailRate:      0.666,
		LookbackHours: 24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_UnassignedRate(t *testing.T) {
	a := testAlerter(config.MonitoringConfig{FailureRateThreshold: 1, UnassignedRateThreshold: 0.02})

	snap := &MetricsSnapshot{Latest: completeRun("r9", 1000, 50), LookbackHours: 24}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertUnassignedRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "50 of 1000")
	assert.Contains(t, alerts[0].Message, "5.0%")
	assert.Equal(t, "r9", alerts[0].Details["run_id"])
}

func TestAlerter_Evaluate_UnassignedRegression(t *testing.T) {
	a := testAlerter(config.MonitoringConfig{FailureRateThreshold: 1, MaxUnassignedIncrease: 10})

	snap := &MetricsSnapshot{
		Latest:   completeRun("new", 9000, 60),
		Previous: completeRun("old", 9000, 20),
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertUnassignedRegression, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "rose by 40")

	// A decrease is never a regression.
	snap.Latest, snap.Previous = snap.Previous, snap.Latest
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_DisabledThresholds(t *testing.T) {
	a := testAlerter(config.MonitoringConfig{FailureRateThreshold: 1})

	snap := &MetricsSnapshot{
		Latest:   completeRun("new", 100, 100),
		Previous: completeRun("old", 100, 0),
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := testAlerter(config.MonitoringConfig{
		FailureRateThreshold:    0.10,
		UnassignedRateThreshold: 0.01,
		MaxUnassignedIncrease:   5,
	})

	snap := &MetricsSnapshot{
		RunsTotal:     10,
		RunsComplete:  5,
		RunsFailed:    5,
		FailRate:      0.5,
		Latest:        completeRun("new", 100, 20),
		Previous:      completeRun("old", 100, 2),
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 3)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertRunFailureRate])
	assert.True(t, types[AlertUnassignedRate])
	assert.True(t, types[AlertUnassignedRegression])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := testAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertRunFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertUnassignedRate, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := testAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailureRate, Message: "test"}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_PermanentFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	a := testAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailureRate, Message: "test"}})
	assert.Equal(t, 0, sent)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := testAlerter(config.MonitoringConfig{WebhookURL: ""})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailureRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := testAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})

	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}
