// Package web serves the browser viewer for frame reconstruction. The
// scatter page re-reads the frame file and re-runs the pipeline on
// every load, so editing the capture or the tuning file and refreshing
// is the whole feedback loop.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kestrel-data/framereco/internal/frameio"
	"github.com/kestrel-data/framereco/internal/httputil"
	"github.com/kestrel-data/framereco/internal/reco"
	"github.com/kestrel-data/framereco/internal/recodb"
	"github.com/kestrel-data/framereco/internal/version"
	"github.com/kestrel-data/framereco/internal/viz"
)

// Logf is the package-level diagnostic logger. It defaults to
// log.Printf but may be replaced by SetLogger; tests use it to mute
// handler noise.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil sets a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Server handles the HTTP interface for the frame viewer: the scatter
// page, health checks and the run history API.
type Server struct {
	framePath     string
	cfg           reco.Config
	clustererName string
	motion        reco.MotionState
	db            *recodb.DB // nil disables run recording and /api/runs

	server *http.Server
}

// Config contains configuration options for the web server.
type Config struct {
	Address       string
	FramePath     string
	Reco          reco.Config
	ClustererName string
	Motion        reco.MotionState
	DB            *recodb.DB
}

// NewServer creates a viewer server with the provided configuration.
func NewServer(config Config) *Server {
	s := &Server{
		framePath:     config.FramePath,
		cfg:           config.Reco,
		clustererName: config.ClustererName,
		motion:        config.Motion,
		db:            config.DB,
	}
	s.server = &http.Server{
		Addr:    config.Address,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleScatter)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/histogram.png", s.handleHistogram)
	mux.HandleFunc("/api/frame/summary", s.handleSummary)
	mux.HandleFunc("/api/runs", s.handleRuns)
	return mux
}

// Start runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		Logf("Starting HTTP server on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web: serve: %w", err)
	case <-ctx.Done():
	}

	Logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		Logf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("web: force close: %w", err)
		}
	}
	return nil
}

// process reloads the frame file and runs the full pipeline. Every
// page load starts from the file on disk, mirroring a render loop
// that rebuilds the frame each iteration.
func (s *Server) process() (*reco.Result, string, error) {
	raw, format, err := frameio.LoadFrame(s.framePath)
	if err != nil {
		return nil, format, err
	}
	clusterer, err := reco.NewClusterer(s.clustererName, s.cfg)
	if err != nil {
		return nil, format, err
	}
	res, err := reco.Run(raw, s.cfg, clusterer, s.motion)
	if err != nil {
		// A groundless frame still renders; anything else is fatal.
		if res == nil {
			return nil, format, err
		}
		Logf("frame %s: %v", s.framePath, err)
	}
	return res, format, nil
}

func (s *Server) handleScatter(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	res, format, err := s.process()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	if s.db != nil {
		if _, err := s.db.RecordRun(res, s.framePath, format, s.cfg); err != nil {
			Logf("record run: %v", err)
		}
	}

	o := viz.Options{ByCluster: r.URL.Query().Get("clusters") == "1"}
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 500_000 {
			o.MaxPoints = v
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viz.RenderScatter(w, res, o); err != nil {
		Logf("render scatter: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "framereco",
		"version":   version.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	res, _, err := s.process()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := viz.RenderHeightHistogram(w, res.Frame); err != nil {
		Logf("render histogram: %v", err)
	}
}

// frameSummary is the JSON shape of /api/frame/summary.
type frameSummary struct {
	Source       string                `json:"source"`
	Format       string                `json:"format"`
	Clusterer    string                `json:"clusterer"`
	PointsTotal  int                   `json:"points_total"`
	PointsGround int                   `json:"points_ground"`
	PointsAbove  int                   `json:"points_above"`
	PointsNoise  int                   `json:"points_noise"`
	Plane        reco.PlaneCoeffs      `json:"plane"`
	ElapsedMS    float64               `json:"elapsed_ms"`
	Clusters     []reco.ClusterMetrics `json:"clusters"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	res, format, err := s.process()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, frameSummary{
		Source:       s.framePath,
		Format:       format,
		Clusterer:    res.Clusterer,
		PointsTotal:  res.PointsTotal,
		PointsGround: res.PointsGround,
		PointsAbove:  res.PointsAbove,
		PointsNoise:  res.PointsNoise,
		Plane:        res.Plane,
		ElapsedMS:    float64(res.Elapsed.Microseconds()) / 1000,
		Clusters:     res.Clusters,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "run recording disabled")
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 || v > 1000 {
			httputil.BadRequest(w, fmt.Sprintf("bad limit %q", l))
			return
		}
		limit = v
	}
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, runs)
}
