package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/crossing.report/internal/csvio"
	"github.com/banshee-data/crossing.report/internal/db"
	"github.com/banshee-data/crossing.report/internal/httputil"
	"github.com/banshee-data/crossing.report/internal/render"
	"github.com/banshee-data/crossing.report/internal/tracking"
)

// parseQuery reads the trajectory query parameters:
//
//	start, end   timestamp bounds in seconds (end optional)
//	track_ids    comma separated ids
//	label        dominant label
//	frame_step   downsampling step (defaults to the server's)
//	count_cross  recount crossings over the result
func parseQuery(v url.Values, defaultStep int) (tracking.Query, error) {
	q := tracking.Query{FrameStep: defaultStep, Label: v.Get("label")}

	if s := v.Get("start"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return q, fmt.Errorf("invalid 'start': %w", err)
		}
		q.Start = f
	}
	if s := v.Get("end"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return q, fmt.Errorf("invalid 'end': %w", err)
		}
		q.End = &f
	}
	if s := v.Get("track_ids"); s != "" {
		for _, part := range strings.Split(s, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return q, fmt.Errorf("invalid 'track_ids': %w", err)
			}
			q.TrackIDs = append(q.TrackIDs, id)
		}
	}
	if s := v.Get("frame_step"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid 'frame_step' %q", s)
		}
		q.FrameStep = n
	}
	if s := v.Get("count_cross"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, fmt.Errorf("invalid 'count_cross': %w", err)
		}
		q.CountCross = b
	}
	return q, nil
}

// queryFromRequest checks the method and parses the query, writing the
// error response itself when either fails.
func (ws *WebServer) queryFromRequest(w http.ResponseWriter, r *http.Request) (tracking.Query, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return tracking.Query{}, false
	}
	q, err := parseQuery(r.URL.Query(), ws.frameStep)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return tracking.Query{}, false
	}
	return q, true
}

func (ws *WebServer) handleTrajectories(w http.ResponseWriter, r *http.Request) {
	q, ok := ws.queryFromRequest(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, ws.store.Report(q))
}

func (ws *WebServer) handleTrajectoriesSVG(w http.ResponseWriter, r *http.Request) {
	q, ok := ws.queryFromRequest(w, r)
	if !ok {
		return
	}
	sink := render.NewSVGSink(ws.render)
	if err := render.Draw(sink, ws.store.Report(q)); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := sink.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteBody(w, "image/svg+xml", buf.Bytes())
}

func (ws *WebServer) handleChart(w http.ResponseWriter, r *http.Request) {
	q, ok := ws.queryFromRequest(w, r)
	if !ok {
		return
	}
	sink := render.NewChartSink(ws.render, ws.assetsHost)
	if err := render.Draw(sink, ws.store.Report(q)); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	var buf bytes.Buffer
	if err := sink.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

// handleRecent returns the segments drawn from the last 'recall' frames.
func (ws *WebServer) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	recall := 25
	if s := r.URL.Query().Get("recall"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid 'recall' %q", s))
			return
		}
		recall = n
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"frame":    ws.store.CurrentFrame(),
		"recall":   recall,
		"segments": ws.store.RecentSegments(recall),
	})
}

// CountersResponse is the body of GET /api/counters.
type CountersResponse struct {
	Counters tracking.Tally `json:"counters"`
	Frame    int            `json:"frame"`
}

func (ws *WebServer) handleCounters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, CountersResponse{Counters: ws.store.Counters(), Frame: ws.store.CurrentFrame()})
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.store.Stats())
}

// IngestResponse is the body of POST /api/detections.
type IngestResponse struct {
	Ingested  int            `json:"ingested"`
	Crossings tracking.Tally `json:"crossings"`
	Counters  tracking.Tally `json:"counters"`
}

// decodeOneOrMany accepts a single JSON object or an array of them. Nothing
// but whitespace may follow the value.
func decodeOneOrMany[T any](body io.Reader) ([]T, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var out []T
	if data[0] == '[' {
		err = dec.Decode(&out)
	} else {
		var v T
		err = dec.Decode(&v)
		out = []T{v}
	}
	if err != nil {
		return nil, err
	}
	if dec.InputOffset() != int64(len(data)) {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	return out, nil
}

// handleDetections ingests detections in request order. Each one is
// validated before anything is ingested.
func (ws *WebServer) handleDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	dets, err := decodeOneOrMany[tracking.Detection](http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid detection JSON: %v", err))
		return
	}
	for i, d := range dets {
		if err := d.Validate(); err != nil {
			httputil.BadRequest(w, (&tracking.InvalidDetectionError{Index: i, TrackID: d.TrackID, Err: err}).Error())
			return
		}
	}

	var crossed tracking.Tally
	for _, d := range dets {
		dir, err := ws.store.Ingest(d)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		crossed.Add(dir)
		ws.metrics.ingested.Inc()
	}
	httputil.WriteJSONOK(w, IngestResponse{Ingested: len(dets), Crossings: crossed, Counters: ws.store.Counters()})
}

// Box is one tracker box for the current frame, as posted to /api/boxes.
// The frame and timestamp are assigned by the collector.
type Box struct {
	TrackID int     `json:"id"`
	Label   string  `json:"label"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
	Score   float64 `json:"score"`
}

// BoxesResponse is the body of POST /api/boxes.
type BoxesResponse struct {
	IngestResponse
	Frame int `json:"frame"`
}

// handleBoxes stamps raw tracker boxes with the current frame and run time
// and ingests them. Each one is validated before anything is added.
func (ws *WebServer) handleBoxes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	boxes, err := decodeOneOrMany[Box](http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid box JSON: %v", err))
		return
	}
	for i, b := range boxes {
		d := tracking.Detection{TrackID: b.TrackID, Label: b.Label, X: b.X, Y: b.Y, W: b.W, H: b.H, Score: b.Score}
		if err := d.Validate(); err != nil {
			httputil.BadRequest(w, (&tracking.InvalidDetectionError{Index: i, TrackID: b.TrackID, Err: err}).Error())
			return
		}
	}

	var crossed tracking.Tally
	for _, b := range boxes {
		dir, err := ws.collector.Add(b.Label, b.X, b.Y, b.W, b.H, b.TrackID, b.Score)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		crossed.Add(dir)
		ws.metrics.ingested.Inc()
	}
	httputil.WriteJSONOK(w, BoxesResponse{
		IngestResponse: IngestResponse{Ingested: len(boxes), Crossings: crossed, Counters: ws.store.Counters()},
		Frame:          ws.collector.Frame(),
	})
}

// handleDump returns every box posted to /api/boxes since the last reset as
// a CSV detection table.
func (ws *WebServer) handleDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	var buf bytes.Buffer
	if err := ws.collector.Dump(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("dump error: %v", err))
		return
	}
	httputil.WriteBody(w, "text/csv; charset=utf-8", buf.Bytes())
}

// LoadResponse is the body of POST /api/load and POST /api/runs/load.
type LoadResponse struct {
	Loaded   int            `json:"loaded"`
	Tracks   int            `json:"tracks"`
	Counters tracking.Tally `json:"counters"`
}

func (ws *WebServer) bulkLoad(w http.ResponseWriter, dets []tracking.Detection) {
	if err := ws.store.BulkLoad(dets); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, LoadResponse{Loaded: len(dets), Tracks: ws.store.Len(), Counters: ws.store.Counters()})
}

// handleLoad replaces the store with a CSV detection table.
func (ws *WebServer) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	dets, err := csvio.ReadDetections(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ws.bulkLoad(w, dets)
}

// handleFrame advances the live frame counter, or sets it with ?frame=N.
func (ws *WebServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var frame int
	if s := r.URL.Query().Get("frame"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid 'frame' %q", s))
			return
		}
		ws.collector.SetFrame(n)
		frame = n
	} else {
		frame = ws.collector.IncrementFrame()
	}
	httputil.WriteJSONOK(w, map[string]int{"frame": frame})
}

func (ws *WebServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	ws.store.Reset()
	ws.collector.Reset()
	ws.collector.Start()
	httputil.WriteJSONOK(w, map[string]string{"status": "reset"})
}

// handleRuns lists archived runs (GET) or archives the store (POST, with an
// optional 'source' parameter).
func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		httputil.NotFound(w, "no run archive configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		runs, err := ws.db.ListRuns(r.Context())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if runs == nil {
			runs = []db.Run{}
		}
		httputil.WriteJSONOK(w, runs)
	case http.MethodPost:
		source := r.URL.Query().Get("source")
		if source == "" {
			source = "monitor"
		}
		runID, err := ws.db.SaveRun(r.Context(), source, ws.store.Detections())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if _, ok := ws.store.Reference(); ok {
			if err := ws.db.RecordCounts(r.Context(), runID, ws.store.Counters()); err != nil {
				httputil.InternalServerError(w, err.Error())
				return
			}
		}
		httputil.WriteJSON(w, http.StatusCreated, map[string]string{"run_id": runID})
	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleRunLoad replaces the store with an archived run.
//
//	run_id (required)
func (ws *WebServer) handleRunLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.db == nil {
		httputil.NotFound(w, "no run archive configured")
		return
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		httputil.BadRequest(w, "missing 'run_id' parameter")
		return
	}
	dets, err := ws.db.LoadRun(r.Context(), runID)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	ws.bulkLoad(w, dets)
}
