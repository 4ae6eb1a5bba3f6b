package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/airport-borders/internal/borders"
)

var compareCmd = &cobra.Command{
	Use:   "compare <a.geo.json> <b.geo.json>",
	Short: "Show features whose assigned airports differ",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := runCompare(os.Stdout, args[0], args[1], cfg.Classify.Property)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(os.Stderr, "No differences.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func runCompare(out io.Writer, a, b, property string) (int, error) {
	left, err := borders.ReadFile(a)
	if err != nil {
		return 0, err
	}
	right, err := borders.ReadFile(b)
	if err != nil {
		return 0, err
	}

	diffs, err := borders.Compare(left, right, property)
	if err != nil {
		return 0, eris.Wrap(err, "compare")
	}
	if len(diffs) > 0 {
		formatDiffs(out, diffs)
	}
	return len(diffs), nil
}

func formatDiffs(out io.Writer, diffs []borders.Diff) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FEATURE\tADDED\tREMOVED")
	_, _ = fmt.Fprintln(w, "-------\t-----\t-------")
	for _, d := range diffs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", d.Feature, joinOrDash(d.Added), joinOrDash(d.Removed))
	}
	_ = w.Flush()
}

func joinOrDash(codes []string) string {
	if len(codes) == 0 {
		return "-"
	}
	return strings.Join(codes, ",")
}
