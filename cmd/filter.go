package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/airport-borders/internal/airport"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Keep ICAO airports and drop geographic outliers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in, _ := cmd.Flags().GetString("in")
		if in == "" {
			in = cfg.Airports.Path
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Airports.FilteredPath
		}
		keepOutliers, _ := cmd.Flags().GetBool("keep-outliers")

		sum, err := runFilter(cmd.Context(), filterOptions{
			In:           in,
			Out:          out,
			Charset:      cfg.Airports.Charset,
			CodePattern:  cfg.Airports.CodePattern,
			OutlierKm:    cfg.Airports.OutlierKm,
			KeepOutliers: keepOutliers,
		})
		if err != nil {
			return err
		}

		zap.L().Info("filter complete",
			zap.String("command", "filter"),
			zap.Int("read", sum.Read),
			zap.Int("icao", sum.ICAO),
			zap.Int("outliers", sum.Outliers),
			zap.Int("written", sum.Written),
			zap.String("path", out),
		)
		return nil
	},
}

func init() {
	filterCmd.Flags().String("in", "", "airports CSV (default airports.path)")
	filterCmd.Flags().String("out", "", "filtered CSV (default airports.filtered_path)")
	filterCmd.Flags().Bool("keep-outliers", false, "report outliers without removing them")
	rootCmd.AddCommand(filterCmd)
}

type filterOptions struct {
	In           string
	Out          string
	Charset      string
	CodePattern  string
	OutlierKm    float64
	KeepOutliers bool
}

type filterSummary struct {
	Read     int
	ICAO     int
	Outliers int
	Written  int
}

func runFilter(ctx context.Context, opts filterOptions) (filterSummary, error) {
	var sum filterSummary

	all, err := airport.LoadFile(ctx, opts.In, airport.LoadOptions{Charset: opts.Charset})
	if err != nil {
		return sum, err
	}
	sum.Read = len(all)

	icao, err := airport.FilterICAO(all, opts.CodePattern)
	if err != nil {
		return sum, eris.Wrap(err, "filter")
	}
	sum.ICAO = len(icao)

	outliers := airport.FindOutliers(icao, opts.OutlierKm)
	sum.Outliers = len(outliers)
	for _, o := range outliers {
		zap.L().Warn("outlier airport",
			zap.String("gps_code", o.Airport.GPSCode),
			zap.String("name", o.Airport.Name),
			zap.String("iso_country", o.Airport.ISOCountry),
			zap.Float64("nearest_km", o.NearestKm),
			zap.String("nearest_to", o.NearestTo),
		)
	}

	kept := icao
	if !opts.KeepOutliers {
		kept = airport.RemoveOutliers(icao, outliers)
	}
	if err := airport.WriteCSVFile(opts.Out, kept); err != nil {
		return sum, err
	}
	sum.Written = len(kept)
	return sum, nil
}
