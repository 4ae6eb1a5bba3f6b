package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/airport-borders/internal/borders"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split MultiPolygon borders into one feature per polygon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in, _ := cmd.Flags().GetString("in")
		if in == "" {
			in = cfg.Borders.Source
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Borders.Split
		}

		before, after, err := runSplit(in, out)
		if err != nil {
			return err
		}

		zap.L().Info("split complete",
			zap.String("command", "split"),
			zap.Int("features_in", before),
			zap.Int("features_out", after),
			zap.String("path", out),
		)
		return nil
	},
}

func init() {
	splitCmd.Flags().String("in", "", "border GeoJSON (default borders.source)")
	splitCmd.Flags().String("out", "", "split GeoJSON (default borders.split)")
	rootCmd.AddCommand(splitCmd)
}

func runSplit(in, out string) (int, int, error) {
	fc, err := borders.ReadFile(in)
	if err != nil {
		return 0, 0, err
	}
	split := borders.SplitMultiPolygons(fc)
	if err := borders.WriteFile(out, split); err != nil {
		return 0, 0, err
	}
	return len(fc.Features), len(split.Features), nil
}
