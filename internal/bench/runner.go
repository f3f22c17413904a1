package bench

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/octree.report/internal/codec/l1voxel"
	"github.com/banshee-data/octree.report/internal/codec/l4bitcost"
	"github.com/banshee-data/octree.report/internal/config"
	"github.com/banshee-data/octree.report/internal/db"
	"github.com/banshee-data/octree.report/internal/fsutil"
	"github.com/banshee-data/octree.report/internal/metrics"
	"github.com/banshee-data/octree.report/internal/monitoring"
	"github.com/banshee-data/octree.report/internal/pointio"
)

// ErrNoFiles is returned by Discover when the tree holds no matching file.
var ErrNoFiles = errors.New("bench: no input files found")

// Discover returns the files below root with extension ext, relative to
// root and sorted.
func Discover(fsys fsutil.FileSystem, root, ext string) ([]string, error) {
	files, err := fsutil.FilesWithExt(fsys, root, ext)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: *%s under %s", ErrNoFiles, ext, root)
	}
	return files, nil
}

// Config holds the per-run settings.
type Config struct {
	Quantizer      pointio.Quantizer
	Stride         int
	MinLevelPoints int
	Workers        int
	// FileTimeout bounds each file; zero means no limit.
	FileTimeout time.Duration
	// FailFast stops the run at the first failed file.
	FailFast bool
}

// ConfigFromCodec fills a Config from the codec configuration.
func ConfigFromCodec(c *config.CodecConfig) Config {
	return Config{
		Quantizer: pointio.Quantizer{
			Step:   c.GetQuantizationStep(),
			Offset: c.GetQuantizationOffset(),
		},
		Stride:         c.GetPointStride(),
		MinLevelPoints: c.GetMinLevelPoints(),
		Workers:        c.GetWorkers(),
		FileTimeout:    c.GetFileTimeout(),
	}
}

// FileResult is the outcome of one file.
type FileResult struct {
	RelPath string
	// Levels is the pyramid depth, leaf included.
	Levels  int
	Cost    l4bitcost.Result
	Elapsed time.Duration
	Err     error
}

// OK reports whether the file was estimated.
func (r FileResult) OK() bool { return r.Err == nil }

// Runner estimates files and records the outcomes. Store and Metrics are
// optional.
type Runner struct {
	FS        fsutil.FileSystem
	Estimator *l4bitcost.Estimator
	Store     *db.ResultStore
	Metrics   *metrics.Bench
	Config    Config
	// RunID tags stored results; required when Store is set.
	RunID string
}

// Run processes files (relative to root) and returns every outcome in file
// order, skipped files excluded. A failed file is logged and recorded; it
// only aborts the run when FailFast is set. Cancelling ctx stops scheduling
// and abandons in-flight files between stages.
func (r *Runner) Run(ctx context.Context, root string, files []string) ([]FileResult, error) {
	pending, err := r.pending(ctx, files)
	if err != nil {
		return nil, err
	}
	if skipped := len(files) - len(pending); skipped > 0 {
		monitoring.Logf("[bench] skipping %d of %d files already completed at step %g",
			skipped, len(files), r.Config.Quantizer.Step)
	}

	workers := r.Config.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	results := make([]FileResult, len(pending))
	var mu sync.Mutex
	completed := 0

	for i, rel := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := r.processFile(gctx, root, rel)
			if err := r.record(gctx, res); err != nil {
				return fmt.Errorf("record %s: %w", rel, err)
			}
			results[i] = res

			mu.Lock()
			completed++
			n := completed
			mu.Unlock()
			if res.OK() {
				monitoring.Debugf("[bench] %d/%d %s: %.4f bpp (%d points, %d levels, %s)",
					n, len(pending), rel, res.Cost.BitsPerPoint, res.Cost.PointCount, res.Levels, res.Elapsed)
			} else {
				monitoring.Logf("[bench] %d/%d %s failed: %v", n, len(pending), rel, res.Err)
				if r.Config.FailFast {
					return fmt.Errorf("%s: %w", rel, res.Err)
				}
			}
			return nil
		})
	}
	err = g.Wait()

	out := results[:0]
	for _, res := range results {
		if res.RelPath != "" {
			out = append(out, res)
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return out, err
}

func (r *Runner) pending(ctx context.Context, files []string) ([]string, error) {
	if r.Store == nil {
		return files, nil
	}
	done, err := r.Store.Completed(ctx, r.Config.Quantizer.Step)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var out []string
	for _, rel := range files {
		if !done[rel] {
			out = append(out, rel)
		}
	}
	return out, nil
}

// processFile runs every stage for one file. The core is synchronous, so
// the deadline is checked between stages.
func (r *Runner) processFile(ctx context.Context, root, rel string) FileResult {
	defer r.Metrics.Begin()()
	if r.Config.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Config.FileTimeout)
		defer cancel()
	}

	res := FileResult{RelPath: rel}
	start := time.Now()

	stage := func(name string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before %s: %w", name, err)
		}
		t := time.Now()
		err := fn()
		r.Metrics.ObserveStage(name, time.Since(t))
		return err
	}

	var coords []l1voxel.Coord
	var pyr *l1voxel.Pyramid
	res.Err = func() error {
		var positions [][3]float64
		if err := stage("read", func() error {
			var err error
			positions, err = r.readPositions(filepath.Join(root, rel))
			return err
		}); err != nil {
			return err
		}
		if err := stage("quantize", func() error {
			var err error
			coords, err = r.quantize(rel, positions)
			return err
		}); err != nil {
			return err
		}
		if err := stage("pyramid", func() error {
			var err error
			pyr, err = l1voxel.BuildPyramid(coords, r.Config.MinLevelPoints)
			return err
		}); err != nil {
			return err
		}
		res.Levels = pyr.Depth()
		return stage("estimate", func() error {
			var err error
			res.Cost, err = r.Estimator.Estimate(pyr)
			return err
		})
	}()
	res.Elapsed = time.Since(start)
	return res
}

// readPositions loads positions from a raw float buffer or a PLY file.
func (r *Runner) readPositions(path string) ([][3]float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".ply") {
		cloud, err := pointio.ReadPLYFile(r.FS, path)
		if err != nil {
			return nil, err
		}
		return pointio.Positions(cloud.Points), nil
	}
	stride := r.Config.Stride
	if stride <= 0 {
		stride = pointio.DefaultStride
	}
	points, err := pointio.ReadBinFile(r.FS, path, stride)
	if err != nil {
		return nil, err
	}
	return pointio.Positions(points), nil
}

// quantize maps positions onto the voxel grid. PLY input is taken to be
// already quantized.
func (r *Runner) quantize(rel string, positions [][3]float64) ([]l1voxel.Coord, error) {
	if strings.EqualFold(filepath.Ext(rel), ".ply") {
		return pointio.VoxelsFromPositions(positions)
	}
	return r.Config.Quantizer.Quantize(positions, 0)
}

func (r *Runner) record(ctx context.Context, res FileResult) error {
	status := db.StatusOK
	if !res.OK() {
		status = db.StatusFailed
	}
	r.Metrics.FileDone(status, res.Cost.PointCount, res.Cost.BitsPerPoint)
	if r.Store == nil {
		return nil
	}

	row := db.Result{
		RunID:      r.RunID,
		RelPath:    res.RelPath,
		Quant:      r.Config.Quantizer.Step,
		PointCount: res.Cost.PointCount,
		Bits:       res.Cost.TotalBits,
		BPP:        res.Cost.BitsPerPoint,
		Levels:     res.Levels,
		ElapsedNs:  res.Elapsed.Nanoseconds(),
		Status:     status,
	}
	if res.Err != nil {
		row.Error = res.Err.Error()
	}
	for _, lc := range res.Cost.Levels {
		row.LevelCosts = append(row.LevelCosts, db.LevelCost{
			Depth:      lc.Depth,
			Candidates: lc.Candidates,
			LowerBits:  lc.LowerBits,
			UpperBits:  lc.UpperBits,
		})
	}
	t := time.Now()
	// Failed files are still recorded after the run context is cancelled.
	err := r.Store.RecordResult(context.WithoutCancel(ctx), row)
	r.Metrics.ObserveStage("record", time.Since(t))
	return err
}
