package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/airport-borders/internal/airport"
	"github.com/sells-group/airport-borders/internal/borders"
	"github.com/sells-group/airport-borders/internal/geo"
	"github.com/sells-group/airport-borders/internal/model"
	"github.com/sells-group/airport-borders/internal/store"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Assign filtered airports to border polygons",
	Long:  "Loads filtered airports and split borders, assigns every airport by containment and then by proximity, writes the annotated borders and records the run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := classifyOptions{
			AirportsPath:    cfg.Airports.FilteredPath,
			BordersPath:     cfg.Borders.Split,
			OutputPath:      cfg.Borders.Output,
			Charset:         cfg.Airports.Charset,
			Property:        cfg.Classify.Property,
			ThresholdMeters: cfg.Classify.ThresholdMeters,
			Concurrency:     cfg.Classify.Concurrency,
		}
		if v, _ := cmd.Flags().GetString("airports"); v != "" {
			opts.AirportsPath = v
		}
		if v, _ := cmd.Flags().GetString("borders"); v != "" {
			opts.BordersPath = v
		}
		if v, _ := cmd.Flags().GetString("out"); v != "" {
			opts.OutputPath = v
		}
		if v, _ := cmd.Flags().GetFloat64("threshold"); v > 0 {
			opts.ThresholdMeters = v
		}
		if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
			opts.Concurrency = v
		}
		opts.Shapefile, _ = cmd.Flags().GetString("shapefile")
		opts.ReportPath, _ = cmd.Flags().GetString("report")

		var st store.Store
		if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		rep, err := runClassify(ctx, opts, st)
		if err != nil {
			return err
		}

		zap.L().Info("classify complete",
			zap.String("command", "classify"),
			zap.String("run_id", rep.RunID),
			zap.Int("points", rep.Stats.Points),
			zap.Int("regions", rep.Stats.Regions),
			zap.Int("contained", rep.Stats.Contained),
			zap.Int("proximity", rep.Stats.Proximity),
			zap.Int("unassigned", rep.Stats.Unassigned),
			zap.String("output", opts.OutputPath),
		)
		return nil
	},
}

func init() {
	classifyCmd.Flags().String("airports", "", "filtered airports CSV (default airports.filtered_path)")
	classifyCmd.Flags().String("borders", "", "border GeoJSON with Polygon features (default borders.split)")
	classifyCmd.Flags().String("shapefile", "", "read borders from a shapefile (.shp or zipped bundle) instead of GeoJSON")
	classifyCmd.Flags().String("out", "", "annotated GeoJSON (default borders.output)")
	classifyCmd.Flags().String("report", "", "write a YAML run report to this path")
	classifyCmd.Flags().Float64("threshold", 0, "proximity threshold in meters (default classify.threshold_meters)")
	classifyCmd.Flags().Int("concurrency", 0, "worker goroutines (default classify.concurrency)")
	classifyCmd.Flags().Bool("no-store", false, "do not record the run")
	rootCmd.AddCommand(classifyCmd)
}

type classifyOptions struct {
	AirportsPath    string
	BordersPath     string
	Shapefile       string
	OutputPath      string
	ReportPath      string
	Charset         string
	Property        string
	ThresholdMeters float64
	Concurrency     int
}

// classifyReport is the YAML written by --report.
type classifyReport struct {
	RunID      string         `yaml:"run_id,omitempty"`
	Input      model.RunInput `yaml:"input"`
	Stats      geo.Stats      `yaml:"stats"`
	Duration   string         `yaml:"duration"`
	Proximity  []geo.Match    `yaml:"proximity,omitempty"`
	Unassigned []string       `yaml:"unassigned,omitempty"`
}

// runClassify runs the whole classify pipeline. Input and geometry errors
// abort before anything is written or recorded. st may be nil.
func runClassify(ctx context.Context, opts classifyOptions, st store.Store) (*classifyReport, error) {
	start := time.Now()

	airports, err := airport.LoadFile(ctx, opts.AirportsPath, airport.LoadOptions{Charset: opts.Charset})
	if err != nil {
		return nil, err
	}
	fc, err := loadBorders(opts)
	if err != nil {
		return nil, err
	}
	regions, err := borders.ToRegions(fc)
	if err != nil {
		return nil, err
	}

	input := model.RunInput{
		AirportsPath:    opts.AirportsPath,
		BordersPath:     opts.bordersSource(),
		ThresholdMeters: geo.NewResolver(opts.ThresholdMeters).ThresholdMeters,
		Concurrency:     opts.Concurrency,
	}
	rep := &classifyReport{Input: input}

	var run *model.Run
	if st != nil {
		if run, err = st.CreateRun(ctx, input); err != nil {
			return nil, err
		}
		rep.RunID = run.ID
	}
	fail := func(err error) (*classifyReport, error) {
		if run != nil {
			if ferr := st.FinishRun(context.WithoutCancel(ctx), run.ID, model.RunStatusFailed, geo.Stats{}, err); ferr != nil {
				zap.L().Error("record failed run", zap.String("run_id", run.ID), zap.Error(ferr))
			}
		}
		return nil, err
	}

	log := zap.L().With(zap.String("command", "classify"), zap.String("run_id", rep.RunID))
	res, err := geo.Classify(ctx, airport.Points(airports), regions,
		geo.WithResolver(geo.NewResolver(opts.ThresholdMeters)),
		geo.WithConcurrency(opts.Concurrency),
		geo.WithProgress(func(p geo.Progress) {
			log.Debug("classify progress",
				zap.String("phase", p.Phase),
				zap.Int("done", p.Done),
				zap.Int("total", p.Total),
				zap.Int("claimed", p.Claimed),
			)
		}),
	)
	if err != nil {
		return fail(err)
	}

	annotated := borders.Annotate(fc, res, opts.Property)
	if err := borders.WriteFile(opts.OutputPath, annotated); err != nil {
		return fail(err)
	}

	if run != nil {
		if err := st.SaveRegions(ctx, run.ID, regions); err != nil {
			return fail(err)
		}
		if err := st.SaveAssignments(ctx, model.NewAssignments(run.ID, res)); err != nil {
			return fail(err)
		}
		if err := st.FinishRun(ctx, run.ID, model.RunStatusComplete, res.Stats, nil); err != nil {
			return nil, err
		}
	}

	rep.Stats = res.Stats
	rep.Proximity = res.Matches
	rep.Unassigned = res.Unassigned
	rep.Duration = time.Since(start).Round(time.Millisecond).String()
	for _, code := range res.Unassigned {
		log.Debug("airport unassigned", zap.String("gps_code", code))
	}

	if opts.ReportPath != "" {
		if err := writeReport(opts.ReportPath, rep); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

func (o classifyOptions) bordersSource() string {
	if o.Shapefile != "" {
		return o.Shapefile
	}
	return o.BordersPath
}

// loadBorders reads GeoJSON as is, or a shapefile split into one feature
// per polygon.
func loadBorders(opts classifyOptions) (*geojson.FeatureCollection, error) {
	if opts.Shapefile == "" {
		return borders.ReadFile(opts.BordersPath)
	}
	fc, err := borders.LoadShapefile(opts.Shapefile)
	if err != nil {
		return nil, err
	}
	return borders.SplitMultiPolygons(fc), nil
}

func writeReport(path string, rep *classifyReport) error {
	data, err := yaml.Marshal(rep)
	if err != nil {
		return eris.Wrap(err, "marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write report %s", path)
	}
	return nil
}
