package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"biomemap.ai/internal/persistence/indexdb"
	persistlog "biomemap.ai/internal/persistence/log"
	"biomemap.ai/internal/sim/catalogs"
	"biomemap.ai/internal/sim/service"
	"biomemap.ai/internal/sim/tuning"
	"biomemap.ai/internal/sim/world/terrain/imagemap"
	"biomemap.ai/internal/sim/world/terrain/store"
	"biomemap.ai/internal/transport/httpapi"
	"biomemap.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory (snapshots, diagnostics, index)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite build index")
		noSnapshot = flag.Bool("no_snapshot", false, "always resolve the image instead of reusing a cached grid")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	idx, err := openIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	mirror, err := buildMirrorRuntime(*dataDir, logger)
	if err != nil {
		logger.Fatalf("init mirror: %v", err)
	}
	defer mirror.Close()

	diag := persistlog.NewDiagnosticsLogger(*dataDir)
	diag.Logger = logger
	diag.OnSegmentClosed(mirror.Enqueue)
	defer diag.Close()

	sink := imagemap.MultiSink{imagemap.LogSink{Logger: logger}, diag}
	if idx != nil {
		sink = append(sink, idx)
	}

	snapDir := *dataDir
	if *noSnapshot {
		snapDir = ""
	}
	res, err := service.BuildLayer(service.BuildOptions{
		ConfigDir: *configDir,
		DataDir:   snapDir,
		Tuning:    tune,
		Catalogs:  cats,
		Sink:      sink,
		Logger:    logger,
	})
	if err != nil {
		var de *imagemap.DecodeError
		if errors.As(err, &de) {
			logger.Fatalf("biome image unusable: %v", err)
		}
		logger.Fatalf("build layer: %v", err)
	}
	recordBuild(res, tune, idx, diag, logger)
	if !res.FromSnapshot {
		if res.SnapshotPath != "" {
			mirror.Enqueue(res.SnapshotPath)
		}
		if res.Report.FixedImage != "" {
			mirror.EnqueueAs(filepath.Join("fixed", filepath.Base(res.Report.FixedImage)), res.Report.FixedImage)
		}
	}

	svc := service.New(service.Config{
		Layer:        res.Layer,
		Orientation:  res.Report.Orientation,
		Catalogs:     cats,
		TuningDigest: tune.Digest(),
		MaxCells:     tune.Query.MaxCells,
		MaxChunks:    tune.ChunkCache.MaxChunks,
	})
	logger.Printf("layer ready: %s snapshot=%v unknown_colors=%d", svc, res.FromSnapshot, len(res.Report.Unknown))

	ctx, cancel := signalContext()
	defer cancel()

	wsSrv := ws.NewServer(svc, logger)
	router := httpapi.NewRouter(httpapi.Config{
		Service: svc,
		Logger:  logger,
		WS:      wsSrv.Handler(),
		Metrics: []func(io.Writer){
			func(w io.Writer) {
				fmt.Fprintf(w, "# HELP biomemap_ws_sessions Open WebSocket sessions.\n")
				fmt.Fprintf(w, "# TYPE biomemap_ws_sessions gauge\n")
				fmt.Fprintf(w, "biomemap_ws_sessions %d\n", wsSrv.Active())
			},
			func(w io.Writer) { writeIndexMetrics(w, idx) },
			func(w io.Writer) { writeMirrorMetrics(w, mirror) },
		},
	})

	mux := http.NewServeMux()
	mux.Handle("/", router)

	enableAdminHTTP := envBool("BM_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("BM_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Layer        string                  `json:"layer"`
				ImagePath    string                  `json:"image_path"`
				ImageDigest  string                  `json:"image_digest"`
				SnapshotKey  string                  `json:"snapshot_key"`
				FromSnapshot bool                    `json:"from_snapshot"`
				Unknown      []imagemap.UnknownColor `json:"unknown_colors"`
				Service      service.Stats           `json:"service"`
				Chunks       []store.ChunkKey        `json:"chunks"`
				Index        indexdb.Stats           `json:"index"`
			}{
				Layer:        svc.String(),
				ImagePath:    res.ImagePath,
				ImageDigest:  res.ImageDigest,
				SnapshotKey:  res.SnapshotKey,
				FromSnapshot: res.FromSnapshot,
				Unknown:      res.Report.Unknown,
				Service:      svc.Stats(),
				Chunks:       svc.LoadedChunks(),
				Index:        idx.Stats(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (BM_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func recordBuild(res service.BuildResult, tune tuning.Tuning, idx *indexdb.SQLiteIndex, diag *persistlog.DiagnosticsLogger, logger *log.Logger) {
	rep := res.Report
	entry := persistlog.BuildEntry{
		Width:         rep.Width,
		Height:        rep.Height,
		Orientation:   rep.Orientation.String(),
		Mode:          tune.ImageLayer.Mode().String(),
		UnknownColors: len(rep.Unknown),
		Passes:        rep.Passes,
		RepairedCells: rep.RepairedCells,
		FixedImage:    rep.FixedImage,
		FromSnapshot:  res.FromSnapshot,
		ElapsedMs:     rep.Elapsed.Milliseconds(),
	}
	if err := diag.WriteBuild(res.ImagePath, entry); err != nil {
		logger.Printf("diagnostics: %v", err)
	}
	idx.RecordBuild(indexdb.BuildRow{
		ImagePath:     res.ImagePath,
		ImageDigest:   res.ImageDigest,
		PaletteDigest: res.PaletteDigest,
		SnapshotKey:   res.SnapshotKey,
		Width:         entry.Width,
		Height:        entry.Height,
		Orientation:   entry.Orientation,
		Mode:          entry.Mode,
		UnknownColors: entry.UnknownColors,
		Passes:        entry.Passes,
		RepairedCells: entry.RepairedCells,
		FixedImage:    entry.FixedImage,
		FromSnapshot:  entry.FromSnapshot,
		ElapsedMs:     entry.ElapsedMs,
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func writeIndexMetrics(w io.Writer, idx *indexdb.SQLiteIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(w, "# HELP biomemap_index_queue_depth Pending index writes.\n")
	fmt.Fprintf(w, "# TYPE biomemap_index_queue_depth gauge\n")
	fmt.Fprintf(w, "biomemap_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(w, "# HELP biomemap_index_dropped_total Index writes dropped on a full queue.\n")
	fmt.Fprintf(w, "# TYPE biomemap_index_dropped_total counter\n")
	fmt.Fprintf(w, "biomemap_index_dropped_total{kind=%q} %d\n", "build", s.DropBuildTotal)
	fmt.Fprintf(w, "biomemap_index_dropped_total{kind=%q} %d\n", "unknown_colors", s.DropUnknownTotal)
	fmt.Fprintf(w, "biomemap_index_dropped_total{kind=%q} %d\n", "failure", s.DropFailureTotal)
}
