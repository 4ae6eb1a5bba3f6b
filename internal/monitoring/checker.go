package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/airport-borders/internal/config"
)

// DefaultCheckInterval applies when monitoring.check_interval_secs is not
// positive.
const DefaultCheckInterval = 5 * time.Minute

// Checker evaluates the run history against the alert rules, either once
// (Check) or on a fixed interval (Run).
type Checker struct {
	collector *Collector
	alerter   *Alerter
	lookback  int
	interval  time.Duration
}

// NewChecker wires a collector and an alerter with the lookback window and
// interval from cfg.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		lookback:  cfg.LookbackWindowHours,
		interval:  interval,
	}
}

// Interval is the time between two checks in Run.
func (c *Checker) Interval() time.Duration { return c.interval }

// Run checks the run history every Interval until ctx is done. A failed
// check is logged and retried on the next tick.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring"))
	log.Info("watching classification runs",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("run watcher stopped")
			return
		case <-ticker.C:
			if _, err := c.Check(ctx); err != nil {
				log.Error("run check failed", zap.Error(err))
			}
		}
	}
}

// Check takes one snapshot of the run history and returns the alerts it
// raised after posting them to the webhook.
func (c *Checker) Check(ctx context.Context) ([]Alert, error) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Int("runs", snap.RunsTotal),
		zap.Int("failed", snap.RunsFailed),
	}
	if snap.Latest != nil {
		fields = append(fields,
			zap.String("latest_run", snap.Latest.ID),
			zap.Float64("unassigned_rate", snap.UnassignedRate()),
		)
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		zap.L().Debug("runs healthy", fields...)
		return nil, nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Warn("run alerts raised", append(fields,
		zap.Int("alerts", len(alerts)),
		zap.Int("posted", sent),
	)...)
	return alerts, nil
}
