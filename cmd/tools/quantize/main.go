// Command quantize converts a tree of raw .bin scans into quantized,
// deduplicated, xyz-only ASCII PLY files with the same layout.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/octree.report/internal/config"
	"github.com/banshee-data/octree.report/internal/fsutil"
	"github.com/banshee-data/octree.report/internal/monitoring"
	"github.com/banshee-data/octree.report/internal/pointio"
	"github.com/banshee-data/octree.report/internal/security"
)

var (
	inRoot     = flag.String("in", "", "root of raw .bin scans (required)")
	outRoot    = flag.String("out", "", "root for quantized .ply files (required)")
	configPath = flag.String("config", "", "codec config JSON (defaults when empty)")
	step       = flag.Float64("step", 0, "quantization step in metres (overrides config)")
	workers    = flag.Int("workers", 0, "parallel files (overrides config)")
	overwrite  = flag.Bool("overwrite", false, "rewrite outputs that already exist")
	debug      = flag.Bool("debug", false, "verbose logging")
)

func main() {
	flag.Parse()
	if *inRoot == "" || *outRoot == "" {
		log.Fatal("-in and -out are required")
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
	q := pointio.Quantizer{Step: cfg.GetQuantizationStep(), Offset: cfg.GetQuantizationOffset()}
	if *step > 0 {
		q.Step = *step
	}
	stride := cfg.GetPointStride()

	fsys := fsutil.OSFileSystem{}
	files, err := fsutil.FilesWithExt(fsys, *inRoot, ".bin")
	if err != nil {
		log.Fatalf("failed to list %s: %v", *inRoot, err)
	}
	if err := fsys.MkdirAll(*outRoot, 0o755); err != nil {
		log.Fatalf("failed to create %s: %v", *outRoot, err)
	}

	n := *workers
	if n <= 0 {
		n = cfg.GetWorkers()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)

	var written, skipped atomic.Int64
	for _, rel := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := security.SafeMirrorPath(*outRoot, rel, ".ply")
			if err != nil {
				return err
			}
			if !*overwrite && fsys.Exists(out) {
				skipped.Add(1)
				return nil
			}
			points, err := pointio.ReadBinFile(fsys, filepath.Join(*inRoot, rel), stride)
			if err != nil {
				return err
			}
			coords, err := q.Quantize(pointio.Positions(points), 0)
			if err != nil {
				return err
			}
			if err := fsys.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := pointio.WritePLYFile(fsys, out, pointio.CoordPoints(coords)); err != nil {
				return err
			}
			monitoring.Debugf("[quantize] %s: %d points -> %d voxels", rel, len(points), len(coords))
			written.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("quantize failed: %v", err)
	}
	if err := ctx.Err(); err != nil {
		log.Fatalf("interrupted: %v", err)
	}
	monitoring.Logf("[quantize] wrote %d files, skipped %d existing, step %g offset %d",
		written.Load(), skipped.Load(), q.Step, q.Offset)
}
