package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/airport-borders/internal/config"
	"github.com/sells-group/airport-borders/internal/model"
	"github.com/sells-group/airport-borders/internal/monitoring"
	"github.com/sells-group/airport-borders/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect classification run history",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List classification runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{Status: model.RunStatus(status), Limit: limit}
		if filter.Status != "" && !filter.Status.Valid() {
			return eris.Errorf("runs list: unknown status %q", status)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and optionally its assignments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return eris.Wrap(err, "runs show: encode")
		}

		if withRows, _ := cmd.Flags().GetBool("assignments"); withRows {
			rows, err := st.GetAssignments(ctx, run.ID)
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			formatAssignments(os.Stdout, rows)
		}
		return nil
	},
}

// -- runs check --

var runsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate recent runs against the alert thresholds",
	Long:  "Collects run metrics over the lookback window, prints any alerts and posts them to monitoring.webhook_url when set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		alerts, err := newChecker(st, cfg.Monitoring).Check(ctx)
		if err != nil {
			return eris.Wrap(err, "runs check")
		}

		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts.")
			return nil
		}

		formatAlerts(os.Stdout, alerts)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().Bool("assignments", false, "also print every assignment row")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsCheckCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tPOINTS\tCONTAINED\tPROXIMITY\tUNASSIGNED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t---------\t---------\t----------\t-------\t--------")

	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.Duration().Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Status,
			r.Stats.Points,
			r.Stats.Contained,
			r.Stats.Proximity,
			r.Stats.Unassigned,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatAssignments writes one line per assignment row.
func formatAssignments(out io.Writer, rows []model.Assignment) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "POINT\tREGION\tMETHOD\tDISTANCE_M")
	for _, a := range rows {
		region, dist := "-", "-"
		if a.RegionID != nil {
			region = strconv.Itoa(*a.RegionID)
		}
		if a.DistanceMeters != nil {
			dist = strconv.FormatFloat(*a.DistanceMeters, 'f', 0, 64)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.PointID, region, a.Method, dist)
	}
	_ = w.Flush()
}

func newChecker(runs monitoring.RunLister, mc config.MonitoringConfig) *monitoring.Checker {
	return monitoring.NewChecker(monitoring.NewCollector(runs), monitoring.NewAlerter(mc), mc)
}

// formatAlerts writes one line per alert.
func formatAlerts(out io.Writer, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEVERITY\tTYPE\tMESSAGE")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", a.Severity, a.Type, a.Message)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
