// Package monitor serves a tracking.Store over HTTP: JSON queries and
// counters, rendered SVG and chart views, and endpoints that feed new
// detections or raw tracker boxes in while the store is being read.
package monitor

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/banshee-data/crossing.report/internal/collector"
	"github.com/banshee-data/crossing.report/internal/db"
	"github.com/banshee-data/crossing.report/internal/monitoring"
	"github.com/banshee-data/crossing.report/internal/render"
	"github.com/banshee-data/crossing.report/internal/timeutil"
	"github.com/banshee-data/crossing.report/internal/tracking"
)

//go:embed status.html
var statusHTML embed.FS

// maxUploadBytes caps request bodies for the ingest endpoints.
const maxUploadBytes = 64 << 20

// WebServer handles the HTTP interface of a live crossing counter.
type WebServer struct {
	address    string
	store      *tracking.Store
	collector  *collector.Collector
	render     render.Options
	assetsHost string
	frameStep  int
	db         *db.DB
	clock      timeutil.Clock
	started    time.Time
	status     *template.Template
	metrics    *metrics
	server     *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Store   *tracking.Store
	Render  render.Options

	// Collector stamps boxes posted to /api/boxes and owns /api/frame. It
	// must forward to Store; a nil Collector gets one that does. It is
	// started by NewWebServer.
	Collector *collector.Collector

	// AssetsHost overrides where chart pages load echarts from.
	AssetsHost string
	// FrameStep is the query frame step used when a request sets none.
	FrameStep int
	// DB enables the run archive endpoints when set.
	DB    *db.DB
	Clock timeutil.Clock
}

// NewWebServer creates a web server for cfg.Store.
func NewWebServer(cfg WebServerConfig) *WebServer {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	coll := cfg.Collector
	if coll == nil {
		coll = collector.New(clock, cfg.Store)
	}
	coll.Start()
	ws := &WebServer{
		address:    cfg.Address,
		store:      cfg.Store,
		collector:  coll,
		render:     cfg.Render,
		assetsHost: cfg.AssetsHost,
		frameStep:  cfg.FrameStep,
		db:         cfg.DB,
		clock:      clock,
		started:    clock.Now(),
		status:     template.Must(template.ParseFS(statusHTML, "status.html")),
	}
	ws.metrics = newMetrics(cfg.Store, clock)
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ws
}

// Handler returns the route table, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Start serves until ctx is cancelled, then shuts down gracefully. A listen
// failure is returned immediately.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(route string, h http.HandlerFunc) {
		mux.Handle(route, ws.metrics.wrap(route, h))
	}

	handle("/health", ws.handleHealth)
	handle("/", ws.handleStatus)
	handle("/api/trajectories", ws.handleTrajectories)
	handle("/api/trajectories.svg", ws.handleTrajectoriesSVG)
	handle("/api/recent", ws.handleRecent)
	handle("/api/counters", ws.handleCounters)
	handle("/api/stats", ws.handleStats)
	handle("/api/detections", ws.handleDetections)
	handle("/api/boxes", ws.handleBoxes)
	handle("/api/dump", ws.handleDump)
	handle("/api/load", ws.handleLoad)
	handle("/api/frame", ws.handleFrame)
	handle("/api/reset", ws.handleReset)
	handle("/api/runs", ws.handleRuns)
	handle("/api/runs/load", ws.handleRunLoad)
	handle("/chart", ws.handleChart)
	mux.Handle("/metrics", ws.metrics.handler())

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "crossing", "timestamp": "%s"}`, ws.clock.Now().UTC().Format(time.RFC3339))
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	reference := "none"
	if ref, ok := ws.store.Reference(); ok {
		reference = fmt.Sprintf("(%g, %g) - (%g, %g)", ref.Start.X, ref.Start.Y, ref.End.X, ref.End.Y)
	}
	data := struct {
		HTTPAddress string
		Uptime      string
		Reference   string
		Stats       tracking.Stats
	}{
		HTTPAddress: ws.address,
		Uptime:      ws.clock.Since(ws.started).Round(time.Second).String(),
		Reference:   reference,
		Stats:       ws.store.Stats(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ws.status.Execute(w, data); err != nil {
		monitoring.Logf("status template: %v", err)
	}
}
