// Command crossreport loads a detection table, rebuilds trajectories and
// reports how many tracks crossed the reference line. It can render the
// result, archive it in sqlite, or push it to a running monitor.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/banshee-data/crossing.report/internal/config"
	"github.com/banshee-data/crossing.report/internal/csvio"
	"github.com/banshee-data/crossing.report/internal/db"
	"github.com/banshee-data/crossing.report/internal/fsutil"
	"github.com/banshee-data/crossing.report/internal/httputil"
	"github.com/banshee-data/crossing.report/internal/monitor"
	"github.com/banshee-data/crossing.report/internal/render"
	"github.com/banshee-data/crossing.report/internal/security"
	"github.com/banshee-data/crossing.report/internal/tracking"
	"github.com/banshee-data/crossing.report/internal/version"
)

type options struct {
	configPath string
	csvPath    string
	dbPath     string
	runID      string

	start      float64
	end        string
	trackIDs   string
	label      string
	frameStep  int
	countCross bool

	outDir  string
	svgOut  string
	htmlOut string
	csvOut  string
	saveDB  bool
	source  string
	push    string
}

func parseFlags(args []string) (options, error) {
	var o options
	fset := flag.NewFlagSet("crossreport", flag.ContinueOnError)
	fset.StringVar(&o.configPath, "config", "", "path to a crossing config JSON file (defaults apply when empty)")
	fset.StringVar(&o.csvPath, "csv", "", "detection CSV to load")
	fset.StringVar(&o.dbPath, "db", "", "path to the sqlite run archive")
	fset.StringVar(&o.runID, "run-id", "", "archived run to load instead of -csv (requires -db)")
	fset.Float64Var(&o.start, "start", 0, "query start timestamp in seconds")
	fset.StringVar(&o.end, "end", "", "query end timestamp in seconds (open when empty)")
	fset.StringVar(&o.trackIDs, "track-ids", "", "comma separated track ids to include")
	fset.StringVar(&o.label, "label", "", "only include tracks with this dominant label")
	fset.IntVar(&o.frameStep, "frame-step", -1, "frame downsampling step (-1 uses the config value)")
	fset.BoolVar(&o.countCross, "count-cross", true, "recount crossings over the query result")
	fset.StringVar(&o.outDir, "out-dir", "", "directory that output paths must stay inside; defaults -svg and -html to names derived from the source")
	fset.StringVar(&o.svgOut, "svg", "", "write the rendered trajectories as SVG")
	fset.StringVar(&o.htmlOut, "html", "", "write an echarts HTML page")
	fset.StringVar(&o.csvOut, "out-csv", "", "write the loaded detections back out as CSV")
	fset.BoolVar(&o.saveDB, "save-db", false, "archive the loaded detections in -db")
	fset.StringVar(&o.source, "source", "", "source label for -save-db (defaults to the input path)")
	fset.StringVar(&o.push, "push", "", "base URL of a monitor to load the detections into")
	showVersion := fset.Bool("version", false, "print version and exit")

	if err := fset.Parse(args); err != nil {
		return o, err
	}
	if *showVersion {
		fmt.Println("crossreport", version.String())
		os.Exit(0)
	}

	switch {
	case o.csvPath == "" && o.runID == "":
		return o, errors.New("one of -csv or -run-id is required")
	case o.csvPath != "" && o.runID != "":
		return o, errors.New("-csv and -run-id are mutually exclusive")
	case o.dbPath == "" && (o.runID != "" || o.saveDB):
		return o, errArchiveRequired
	}
	return o, nil
}

func parseTrackIDs(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid track id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (o options) query(cfg *config.CrossingConfig) (tracking.Query, error) {
	q := tracking.Query{
		Start:      o.start,
		Label:      o.label,
		FrameStep:  cfg.GetQueryFrameStep(),
		CountCross: o.countCross,
	}
	if o.frameStep >= 0 {
		q.FrameStep = o.frameStep
	}
	if o.end != "" {
		end, err := strconv.ParseFloat(o.end, 64)
		if err != nil {
			return q, fmt.Errorf("invalid -end: %w", err)
		}
		q.End = &end
	}
	ids, err := parseTrackIDs(o.trackIDs)
	if err != nil {
		return q, err
	}
	q.TrackIDs = ids
	return q, nil
}

func loadConfig(path string) (*config.CrossingConfig, error) {
	if path == "" {
		return config.DefaultCrossingConfig(), nil
	}
	return config.LoadCrossingConfig(path)
}

// run executes one report. Output files go through fs; pushes go through
// client.
var errArchiveRequired = errors.New("-run-id and -save-db require -db")

func run(ctx context.Context, o options, fs fsutil.FileSystem, client httputil.HTTPClient) error {
	if o.dbPath == "" && (o.runID != "" || o.saveDB) {
		return errArchiveRequired
	}
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	q, err := o.query(cfg)
	if err != nil {
		return err
	}

	var archive *db.DB
	if o.dbPath != "" {
		archive, err = db.NewDB(o.dbPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer archive.Close()
	}

	var dets []tracking.Detection
	source := o.source
	if o.runID != "" {
		dets, err = archive.LoadRun(ctx, o.runID)
		if source == "" {
			source = "run:" + o.runID
		}
	} else {
		dets, err = csvio.LoadFile(fs, o.csvPath)
		if source == "" {
			source = o.csvPath
		}
	}
	if err != nil {
		return err
	}

	store := tracking.NewStore(cfg.StoreConfig())
	if err := store.BulkLoad(dets); err != nil {
		return err
	}
	stats := store.Stats()
	log.Printf("loaded %d detections in %d tracks (%d people) up to frame %d", stats.Points, stats.Tracks, stats.People, stats.Frame)
	log.Printf("running counters: %s", render.CounterText(stats.Running))

	rep := store.Report(q)
	log.Printf("query matched %d tracks", len(rep.Tracks))
	if rep.Queried != nil {
		log.Printf("query counters: %s", render.CounterText(*rep.Queried))
	}

	if o.outDir != "" {
		if err := o.confineOutputs(source); err != nil {
			return err
		}
	}
	for _, out := range []string{o.svgOut, o.htmlOut, o.csvOut} {
		if out == "" {
			continue
		}
		if err := fs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	ropts := render.Options{
		Width:   cfg.GetSVGWidth(),
		Height:  cfg.GetSVGHeight(),
		Title:   source,
		LastBox: true,
	}
	if o.svgOut != "" {
		if err := render.SaveSVG(fs, o.svgOut, rep, ropts); err != nil {
			return fmt.Errorf("write svg: %w", err)
		}
		log.Printf("wrote %s", o.svgOut)
	}
	if o.htmlOut != "" {
		if err := saveChart(fs, o.htmlOut, rep, ropts); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		log.Printf("wrote %s", o.htmlOut)
	}
	if o.csvOut != "" {
		if err := csvio.SaveFile(fs, o.csvOut, store.Detections()); err != nil {
			return err
		}
		log.Printf("wrote %s", o.csvOut)
	}

	if o.saveDB {
		runID, err := archive.SaveRun(ctx, source, store.Detections())
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		if err := archive.RecordCounts(ctx, runID, store.Counters()); err != nil {
			return fmt.Errorf("record counts: %w", err)
		}
		log.Printf("archived run %s", runID)
	}

	if o.push != "" {
		var buf bytes.Buffer
		if err := csvio.WriteDetections(&buf, store.Detections()); err != nil {
			return err
		}
		resp, err := monitor.NewClient(o.push, client).LoadCSV(ctx, &buf)
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		log.Printf("pushed %d detections to %s, monitor counters: %s", resp.Loaded, o.push, render.CounterText(resp.Counters))
	}
	return nil
}

// confineOutputs names unset image outputs after source and resolves every
// output path inside outDir.
func (o *options) confineOutputs(source string) error {
	if err := security.EnsureDir(o.outDir); err != nil {
		return err
	}
	stem := security.SanitizeFilename(source)
	if o.svgOut == "" {
		o.svgOut = stem + ".svg"
	}
	if o.htmlOut == "" {
		o.htmlOut = stem + ".html"
	}
	for _, p := range []*string{&o.svgOut, &o.htmlOut, &o.csvOut} {
		if *p == "" {
			continue
		}
		resolved, err := security.ResolveWithin(o.outDir, *p)
		if err != nil {
			return err
		}
		*p = resolved
	}
	return nil
}

func saveChart(fs fsutil.FileSystem, path string, rep tracking.Report, ropts render.Options) error {
	sink := render.NewChartSink(ropts, "")
	if err := render.Draw(sink, rep); err != nil {
		return err
	}
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	if err := sink.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("crossreport: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, fsutil.OSFileSystem{}, nil); err != nil {
		log.Fatalf("crossreport: %v", err)
	}
}
