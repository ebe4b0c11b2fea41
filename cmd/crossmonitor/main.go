// Command crossmonitor serves a live crossing counter over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/crossing.report/internal/collector"
	"github.com/banshee-data/crossing.report/internal/config"
	"github.com/banshee-data/crossing.report/internal/csvio"
	"github.com/banshee-data/crossing.report/internal/db"
	"github.com/banshee-data/crossing.report/internal/fsutil"
	"github.com/banshee-data/crossing.report/internal/monitor"
	"github.com/banshee-data/crossing.report/internal/render"
	"github.com/banshee-data/crossing.report/internal/tracking"
	"github.com/banshee-data/crossing.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "path to a crossing config JSON file (defaults apply when empty)")
	listen      = flag.String("listen", "", "listen address (overrides the config)")
	dbPath      = flag.String("db", "", "sqlite run archive; enables /api/runs when set")
	csvPath     = flag.String("csv", "", "detection CSV to preload")
	assetsHost  = flag.String("assets-host", "", "host serving echarts assets for /chart")
	dumpPath    = flag.String("dump", "", "write boxes posted to /api/boxes to this CSV on shutdown")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("crossmonitor", version.String())
		return
	}

	cfg := config.DefaultCrossingConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadCrossingConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	addr := cfg.GetListenAddress()
	if *listen != "" {
		addr = *listen
	}

	store := tracking.NewStore(cfg.StoreConfig())
	if *csvPath != "" {
		dets, err := csvio.LoadFile(fsutil.OSFileSystem{}, *csvPath)
		if err != nil {
			log.Fatalf("load csv: %v", err)
		}
		if err := store.BulkLoad(dets); err != nil {
			log.Fatalf("load csv: %v", err)
		}
		log.Printf("preloaded %d detections from %s: %s", len(dets), *csvPath, render.CounterText(store.Counters()))
	}

	var archive *db.DB
	if *dbPath != "" {
		var err error
		archive, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open run archive: %v", err)
		}
		defer archive.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coll := collector.New(nil, store)
	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:   addr,
		Store:     store,
		Collector: coll,
		Render: render.Options{
			Width:   cfg.GetSVGWidth(),
			Height:  cfg.GetSVGHeight(),
			LastBox: true,
		},
		AssetsHost: *assetsHost,
		FrameStep:  cfg.GetQueryFrameStep(),
		DB:         archive,
	})
	if err := ws.Start(ctx); err != nil {
		log.Printf("monitor: %v", err)
		stop()
		if archive != nil {
			archive.Close()
		}
		os.Exit(1)
	}
	if *dumpPath != "" {
		if err := coll.DumpFile(fsutil.OSFileSystem{}, *dumpPath); err != nil {
			log.Printf("dump: %v", err)
		} else {
			log.Printf("wrote %d boxes to %s", len(coll.Points()), *dumpPath)
		}
	}
	log.Print("crossmonitor stopped")
}
