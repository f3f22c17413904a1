// Command bench estimates the bits-per-point cost of every scan in a dataset
// tree and records the results in sqlite. Re-running against the same
// database skips files already estimated at the same quantization step.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/octree.report/internal/bench"
	"github.com/banshee-data/octree.report/internal/bench/report"
	"github.com/banshee-data/octree.report/internal/codec/l4bitcost"
	"github.com/banshee-data/octree.report/internal/codec/model"
	"github.com/banshee-data/octree.report/internal/config"
	"github.com/banshee-data/octree.report/internal/db"
	"github.com/banshee-data/octree.report/internal/fsutil"
	"github.com/banshee-data/octree.report/internal/metrics"
	"github.com/banshee-data/octree.report/internal/monitoring"
	"github.com/banshee-data/octree.report/internal/version"
)

var (
	dataRoot    = flag.String("data", "", "dataset root directory (required)")
	ext         = flag.String("ext", ".bin", "input file extension (.bin raw scans or .ply quantized clouds)")
	configPath  = flag.String("config", "", "codec config JSON (defaults when empty)")
	paramsPath  = flag.String("params", "", "parameter blob; when empty, parameters are initialised from the config seed")
	dbPath      = flag.String("db", "bench.db", "results database")
	quant       = flag.Float64("quant", 0, "quantization step in metres (overrides config)")
	workers     = flag.Int("workers", 0, "parallel files (overrides config)")
	timeout     = flag.Duration("timeout", 0, "per-file timeout (overrides config)")
	reportDir   = flag.String("report-dir", "", "write bench.html and depths.png here")
	csvPath     = flag.String("csv", "", "export this run's results as CSV")
	metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	failFast    = flag.Bool("fail-fast", false, "stop at the first failed file")
	debug       = flag.Bool("debug", false, "verbose per-file and per-level logging")
	showVersion = flag.Bool("version", false, "print the build version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *dataRoot == "" {
		log.Fatal("-data is required")
	}

	logger, err := monitoring.NewZapLogger(*debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	monitoring.UseZap(logger)

	cfg := config.EmptyCodecConfig()
	if *configPath != "" {
		if cfg, err = config.LoadCodecConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	runCfg := bench.ConfigFromCodec(cfg)
	if *quant > 0 {
		runCfg.Quantizer.Step = *quant
	}
	if *workers > 0 {
		runCfg.Workers = *workers
	}
	if *timeout > 0 {
		runCfg.FileTimeout = *timeout
	}
	runCfg.FailFast = *failFast

	fsys := fsutil.OSFileSystem{}
	params, err := loadParams(fsys, cfg)
	if err != nil {
		log.Fatalf("failed to load parameters: %v", err)
	}
	est, err := l4bitcost.NewEstimator(params, l4bitcost.EstimatorConfig{
		MaxSymbolBits:   cfg.GetMaxSymbolBits(),
		VerifyExpansion: cfg.GetVerifyExpansion(),
	})
	if err != nil {
		log.Fatalf("invalid parameters: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	store := db.NewResultStore(database)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewBench()
	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	files, err := bench.Discover(fsys, *dataRoot, *ext)
	if err != nil {
		log.Fatalf("failed to discover inputs: %v", err)
	}

	cfgJSON, _ := json.Marshal(struct {
		Codec *config.CodecConfig `json:"codec"`
		Build map[string]string   `json:"build"`
	}{cfg, version.Fields()})
	run, err := store.StartRun(ctx, string(cfgJSON), *paramsPath)
	if err != nil {
		log.Fatalf("failed to start run: %v", err)
	}
	monitoring.Logf("[bench] run %s: %d files under %s, step %g, %d workers",
		run.ID, len(files), *dataRoot, runCfg.Quantizer.Step, runCfg.Workers)

	runner := &bench.Runner{
		FS:        fsys,
		Estimator: est,
		Store:     store,
		Metrics:   m,
		Config:    runCfg,
		RunID:     run.ID,
	}
	start := time.Now()
	results, runErr := runner.Run(ctx, *dataRoot, files)

	s := bench.Summarize(results)
	monitoring.Logf("[bench] %d files in %s, %d failed: mean %.4f bpp (sd %.4f, min %.4f, max %.4f), pooled %.4f bpp over %d points",
		s.Files, time.Since(start).Round(time.Millisecond), s.Failed,
		s.MeanBPP, s.StdDevBPP, s.MinBPP, s.MaxBPP, s.PooledBPP, s.TotalPoints)
	for _, d := range s.Depths {
		monitoring.Logf("[bench]   depth %d: %.1f candidates, %.1f bits, %.3f bits/candidate (%d files)",
			d.Depth, d.MeanCandidates, d.MeanBits, d.BitsPerCandidate, d.Files)
	}

	// Outputs are written for whatever completed, even after a failure.
	outCtx := context.WithoutCancel(ctx)
	if *csvPath != "" {
		if err := writeCSV(outCtx, store, run.ID, *csvPath); err != nil {
			log.Printf("failed to export CSV: %v", err)
		}
	}
	if *reportDir != "" {
		if err := writeReports(outCtx, store, run.ID, *reportDir); err != nil {
			log.Printf("failed to write reports: %v", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Fatalf("interrupted; rerun to resume")
		}
		log.Fatalf("run failed: %v", runErr)
	}
}

func loadParams(fsys fsutil.FileSystem, cfg *config.CodecConfig) (*model.Params, error) {
	if *paramsPath != "" {
		return model.LoadFile(fsys, *paramsPath)
	}
	monitoring.Logf("[bench] no -params given; initialising %d-channel parameters from seed %d",
		cfg.GetChannels(), cfg.GetParamSeed())
	return model.Init(cfg.GetChannels(), cfg.GetKernelSize(), cfg.GetParamSeed())
}

func serveMetrics(addr string, m *metrics.Bench) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()
	monitoring.Logf("[bench] serving metrics on %s/metrics", addr)
	return srv
}

func writeCSV(ctx context.Context, store *db.ResultStore, runID, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := store.ExportCSV(ctx, f, runID); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeReports(ctx context.Context, store *db.ResultStore, runID, dir string) error {
	results, err := store.ListResults(ctx, runID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "bench.html"))
	if err != nil {
		return err
	}
	if err := report.WriteHTML(f, fmt.Sprintf("bench run %s", runID), results); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return report.SavePNG(filepath.Join(dir, "depths.png"), results)
}
