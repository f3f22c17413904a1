// Command extbench runs an external geometry compressor over a dataset so
// its rate can be compared with the estimator's. Two codecs are supported:
//
//	tmc13  G-PCC reference encoder (tmc3) over quantized .ply files
//	lcp    LCP lossy float compressor over raw .bin scans
//
// Results land in the same SQLite store as the estimator benchmark.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/octree.report/internal/db"
	"github.com/banshee-data/octree.report/internal/extcodec"
	"github.com/banshee-data/octree.report/internal/fsutil"
	"github.com/banshee-data/octree.report/internal/monitoring"
	"github.com/banshee-data/octree.report/internal/pointio"
)

const (
	codecTMC13 = "tmc13"
	codecLCP   = "lcp"
)

var (
	codec      = flag.String("codec", codecTMC13, "external codec: tmc13 or lcp")
	dataRoot   = flag.String("data", "", "dataset root (required)")
	ext        = flag.String("ext", "", "input extension (default .ply for tmc13, .bin for lcp)")
	binary     = flag.String("bin", "", "codec executable (default tmc3 or lcp on PATH)")
	tmcConfig  = flag.String("tmc-config", "", "tmc3 encoder config file (tmc13 only)")
	scale      = flag.Float64("scale", 1, "positionQuantizationScale (tmc13 only)")
	errorBound = flag.Float64("eb", 0.001, "absolute error bound (lcp only)")
	stride     = flag.Int("stride", pointio.DefaultStride, "float32 values per point in .bin inputs")
	workDir    = flag.String("work", "", "scratch directory (default a temp dir, removed on exit)")
	dbPath     = flag.String("db", "bench.db", "results database")
	csvPath    = flag.String("csv", "", "export this run's results as CSV")
	workers    = flag.Int("workers", 2, "parallel codec invocations")
	timeout    = flag.Duration("timeout", 10*time.Minute, "per-file timeout")
	debug      = flag.Bool("debug", false, "log codec output")
)

func main() {
	flag.Parse()
	if *dataRoot == "" {
		log.Fatal("-data is required")
	}
	if *codec != codecTMC13 && *codec != codecLCP {
		log.Fatalf("unknown codec %q", *codec)
	}
	if *codec == codecTMC13 && *tmcConfig == "" {
		log.Fatal("-tmc-config is required for tmc13")
	}

	logger, err := monitoring.NewZapLogger(*debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	monitoring.UseZap(logger)

	if *ext == "" {
		*ext = map[string]string{codecTMC13: ".ply", codecLCP: ".bin"}[*codec]
	}
	if *binary == "" {
		*binary = map[string]string{codecTMC13: "tmc3", codecLCP: "lcp"}[*codec]
	}
	if *workDir == "" {
		dir, err := os.MkdirTemp("", "extbench-")
		if err != nil {
			log.Fatalf("failed to create work dir: %v", err)
		}
		defer os.RemoveAll(dir)
		*workDir = dir
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	store := db.NewResultStore(database)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fsys := fsutil.OSFileSystem{}
	files, err := fsutil.FilesWithExt(fsys, *dataRoot, *ext)
	if err != nil {
		log.Fatalf("failed to list %s: %v", *dataRoot, err)
	}
	quant := *scale
	if *codec == codecLCP {
		quant = *errorBound
	}
	done, err := store.ExtCompleted(ctx, *codec, quant)
	if err != nil {
		log.Fatalf("failed to load completed files: %v", err)
	}

	cfgJSON, _ := json.Marshal(map[string]any{
		"codec": *codec, "bin": *binary, "tmc_config": *tmcConfig,
		"scale": *scale, "error_bound": *errorBound, "stride": *stride,
	})
	run, err := store.StartRun(ctx, string(cfgJSON), "")
	if err != nil {
		log.Fatalf("failed to start run: %v", err)
	}
	monitoring.Logf("[extbench] run %s: %s over %d files (%d already done)", run.ID, *codec, len(files), len(done))

	b := &bench{
		fs:     fsys,
		runner: extcodec.Runner{TailLines: extcodec.DefaultTailLines},
		store:  store,
		runID:  run.ID,
		quant:  quant,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for _, rel := range files {
		if done[rel] {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, *timeout)
			defer cancel()
			r := b.file(fctx, rel)
			if r.Status == db.StatusFailed {
				monitoring.Logf("[extbench] %s failed: %s", rel, r.Error)
			} else {
				monitoring.Debugf("[extbench] %s: %.4f bpp ratio %.2f", rel, r.BPP, r.Ratio)
			}
			return store.RecordExtResult(context.WithoutCancel(gctx), r)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("extbench failed: %v", err)
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *csvPath, err)
		}
		if err := store.ExportExtCSV(context.Background(), f, run.ID); err != nil {
			f.Close()
			log.Fatalf("failed to export csv: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("failed to close %s: %v", *csvPath, err)
		}
	}
	if err := ctx.Err(); err != nil {
		log.Fatalf("interrupted: %v", err)
	}
	monitoring.Logf("[extbench] run %s complete", run.ID)
}

type bench struct {
	fs     fsutil.FileSystem
	runner extcodec.Runner
	store  *db.ResultStore
	runID  string
	quant  float64
}

func (b *bench) file(ctx context.Context, rel string) db.ExtResult {
	r := db.ExtResult{RunID: b.runID, Codec: *codec, RelPath: rel, Quant: b.quant, Status: db.StatusOK}
	var err error
	switch *codec {
	case codecTMC13:
		err = b.tmc13(ctx, rel, &r)
	case codecLCP:
		err = b.lcp(ctx, rel, &r)
	}
	if err != nil {
		r.Status = db.StatusFailed
		r.Error = err.Error()
	}
	return r
}

// scratch returns a per-file directory under the work root, named after rel
// so concurrent files never collide.
func (b *bench) scratch(rel string) (string, error) {
	dir := filepath.Join(*workDir, strings.ReplaceAll(filepath.ToSlash(rel), "/", "__"))
	return dir, b.fs.MkdirAll(dir, 0o755)
}

func (b *bench) tmc13(ctx context.Context, rel string, r *db.ExtResult) error {
	input := filepath.Join(*dataRoot, rel)
	cloud, err := pointio.ReadPLYFile(b.fs, input)
	if err != nil {
		return err
	}
	info, err := b.fs.Stat(input)
	if err != nil {
		return err
	}
	dir, err := b.scratch(rel)
	if err != nil {
		return err
	}
	stem := extcodec.StemOf(rel)
	job := extcodec.TMC13Job{
		Config:        *tmcConfig,
		Scale:         *scale,
		Input:         input,
		Compressed:    filepath.Join(dir, stem+".drc"),
		Reconstructed: filepath.Join(dir, stem+"_rec.ply"),
	}

	out, err := b.runner.Run(ctx, *binary, job.EncodeArgs()...)
	if err != nil {
		return err
	}
	enc, err := extcodec.ParseTMC13Encode(out)
	if err != nil {
		return fmt.Errorf("encoder output: %w", err)
	}
	out, err = b.runner.Run(ctx, *binary, job.DecodeArgs()...)
	if err != nil {
		return err
	}
	if r.DecodeSeconds, err = extcodec.ParseTMC13Decode(out); err != nil {
		return fmt.Errorf("decoder output: %w", err)
	}

	r.PointCount = len(cloud.Points)
	r.BPP = enc.BitsPerPoint
	r.OrigBytes = info.Size()
	r.CompBytes = enc.Bytes
	r.EncodeSeconds = enc.EncodeSeconds
	if enc.Bytes > 0 {
		r.Ratio = float64(r.OrigBytes) / float64(enc.Bytes)
	}
	return nil
}

func (b *bench) lcp(ctx context.Context, rel string, r *db.ExtResult) error {
	points, err := pointio.ReadBinFile(b.fs, filepath.Join(*dataRoot, rel), *stride)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("%s: no points", rel)
	}
	dir, err := b.scratch(rel)
	if err != nil {
		return err
	}
	stem := extcodec.StemOf(rel)
	inputs, err := extcodec.WriteAxisFiles(b.fs, dir, stem, points)
	if err != nil {
		return err
	}
	job := extcodec.LCPJob{
		Inputs:     inputs,
		Compressed: filepath.Join(dir, stem+".lcp"),
		Outputs:    extcodec.AxisPaths(filepath.Join(dir, "out"), stem),
		Points:     len(points),
		ErrorBound: *errorBound,
	}
	if err := b.fs.MkdirAll(filepath.Join(dir, "out"), 0o755); err != nil {
		return err
	}

	out, err := b.runner.Run(ctx, *binary, job.Args()...)
	if err != nil {
		return err
	}
	rep, err := extcodec.ParseLCP(out)
	if err != nil {
		return fmt.Errorf("lcp output: %w", err)
	}
	info, err := b.fs.Stat(job.Compressed)
	if err != nil {
		return err
	}

	r.PointCount = len(points)
	r.OrigBytes = int64(12 * len(points))
	r.CompBytes = info.Size()
	r.BPP = float64(8*r.CompBytes) / float64(len(points))
	r.Ratio = rep.Ratio
	r.EncodeSeconds = rep.CompressSeconds
	r.DecodeSeconds = rep.DecompressSeconds

	recon, err := extcodec.ReadAxisFiles(b.fs, job.Outputs)
	if err != nil {
		return fmt.Errorf("reconstruction: %w", err)
	}
	d, err := pointio.PSNR(pointio.Positions(points), pointio.Positions(recon))
	if err != nil {
		return err
	}
	r.PSNR = &d.PSNR
	return nil
}
