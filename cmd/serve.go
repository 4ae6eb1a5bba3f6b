package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/airport-borders/internal/airport"
	"github.com/sells-group/airport-borders/internal/borders"
	"github.com/sells-group/airport-borders/internal/geo"
	"github.com/sells-group/airport-borders/internal/model"
	"github.com/sells-group/airport-borders/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve point lookups against the border polygons",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &lookupServer{
			resolver: geo.NewResolver(cfg.Classify.ThresholdMeters),
			store:    st,
		}

		runID, _ := cmd.Flags().GetString("run")
		if runID != "" {
			if srv.regions, err = st.LoadRegions(ctx, runID); err != nil {
				return err
			}
		} else {
			path, _ := cmd.Flags().GetString("borders")
			if path == "" {
				path = cfg.Borders.Split
			}
			if srv.regions, err = loadRegionFile(path); err != nil {
				return err
			}
		}

		if srv.index, err = loadIndex(ctx, cfg.Airports.FilteredPath); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if cfg.Monitoring.CheckIntervalSecs > 0 {
			go newChecker(st, cfg.Monitoring).Run(ctx)
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Int("regions", len(srv.regions)),
			zap.String("run_id", runID),
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().String("borders", "", "border GeoJSON to serve (default borders.split)")
	serveCmd.Flags().String("run", "", "serve the regions stored with this run instead of a file")
	rootCmd.AddCommand(serveCmd)
}

func loadRegionFile(path string) ([]geo.Region, error) {
	fc, err := borders.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return borders.ToRegions(fc)
}

// loadIndex indexes the filtered airports. A missing file disables the
// /airports endpoint.
func loadIndex(ctx context.Context, path string) (*airport.Index, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("airports not loaded", zap.String("path", path))
		return nil, nil
	}
	airports, err := airport.LoadFile(ctx, path, airport.LoadOptions{Charset: cfg.Airports.Charset})
	if err != nil {
		return nil, err
	}
	return airport.NewIndex(airports), nil
}

// lookupServer answers HTTP queries. index and store may be nil.
type lookupServer struct {
	regions  []geo.Region
	resolver geo.Resolver
	index    *airport.Index
	store    store.Store
}

func (s *lookupServer) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/lookup", s.handleLookup)
	r.Get("/airports", s.handleAirports)
	r.Get("/airports/{code}", s.handleAirport)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *lookupServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "regions": len(s.regions)})
}

type lookupResponse struct {
	Latitude       float64      `json:"lat"`
	Longitude      float64      `json:"lon"`
	RegionID       *int         `json:"region_id"`
	Method         model.Method `json:"method"`
	DistanceMeters *float64     `json:"distance_meters,omitempty"`
}

func (s *lookupServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "lat must be a number in [-90, 90]")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "lon must be a number in [-180, 180]")
		return
	}

	writeJSON(w, http.StatusOK, s.lookup(geo.Point{ID: "lookup", Latitude: lat, Longitude: lon}))
}

// lookup places a single point the way classify does.
func (s *lookupServer) lookup(p geo.Point) lookupResponse {
	resp := lookupResponse{Latitude: p.Latitude, Longitude: p.Longitude, Method: model.MethodUnassigned}
	pl, ok := geo.Locate(p, s.regions, s.resolver)
	if !ok {
		return resp
	}
	resp.RegionID = &pl.RegionID
	if pl.Contained {
		resp.Method = model.MethodContained
		return resp
	}
	resp.Method = model.MethodProximity
	resp.DistanceMeters = &pl.DistanceMeters
	return resp
}

func (s *lookupServer) handleAirports(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "airports not loaded")
		return
	}
	prefix := strings.ToUpper(r.URL.Query().Get("prefix"))
	if prefix == "" {
		writeError(w, http.StatusBadRequest, "prefix is required")
		return
	}
	writeJSON(w, http.StatusOK, s.index.ByPrefix(prefix))
}

func (s *lookupServer) handleAirport(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "airports not loaded")
		return
	}
	a, ok := s.index.Get(strings.ToUpper(chi.URLParam(r, "code")))
	if !ok {
		writeError(w, http.StatusNotFound, "airport not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *lookupServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}
	filter := store.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *lookupServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
