// Command restore carries intensity or labels from the original scans onto
// decoded clouds by nearest-neighbour matching, mirroring the decoded tree.
//
//	restore -mode intensity -decoded ply/ -orig lidar/ -out restored/ -quantized
//	restore -mode labels -decoded decompressed/ -orig lidar/ -labels labels/ -out labels_restored/
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/octree.report/internal/config"
	"github.com/banshee-data/octree.report/internal/fsutil"
	"github.com/banshee-data/octree.report/internal/monitoring"
	"github.com/banshee-data/octree.report/internal/pointio"
	"github.com/banshee-data/octree.report/internal/reattach"
)

var (
	mode        = flag.String("mode", "intensity", "what to restore: intensity or labels")
	decodedRoot = flag.String("decoded", "", "root of decoded clouds (required)")
	decodedExt  = flag.String("ext", ".ply", "decoded file extension (.ply or .bin)")
	origRoot    = flag.String("orig", "", "root of original .bin scans (required)")
	labelRoot   = flag.String("labels", "", "root of original .label files (labels mode)")
	outRoot     = flag.String("out", "", "output root (required)")
	quantized   = flag.Bool("quantized", false, "decoded positions are voxel indices; dequantize with the config step and offset")
	configPath  = flag.String("config", "", "codec config JSON (defaults when empty)")
	threshold   = flag.Float64("threshold", 0, "max NN distance in metres (overrides config)")
	noThreshold = flag.Bool("no-threshold", false, "disable the distance check")
	workers     = flag.Int("workers", 0, "parallel files (overrides config)")
	debug       = flag.Bool("debug", false, "verbose logging")
)

func main() {
	flag.Parse()
	if *decodedRoot == "" || *origRoot == "" || *outRoot == "" {
		log.Fatal("-decoded, -orig and -out are required")
	}
	if *mode != "intensity" && *mode != "labels" {
		log.Fatalf("unknown -mode %q", *mode)
	}
	if *mode == "labels" && *labelRoot == "" {
		log.Fatal("-labels is required in labels mode")
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

	fsys := fsutil.OSFileSystem{}
	tree := reattach.Tree{
		FS:           fsys,
		DecodedRoot:  *decodedRoot,
		OriginalRoot: *origRoot,
		OutRoot:      *outRoot,
		LabelRoot:    *labelRoot,
		Stride:       cfg.GetPointStride(),
		Threshold:    cfg.GetReattachThreshold(),
		SkipExisting: true,
	}
	if *threshold > 0 {
		tree.Threshold = *threshold
	}
	if *noThreshold {
		tree.Threshold = reattach.NoThreshold
	}
	if *quantized {
		tree.Quantizer = &pointio.Quantizer{Step: cfg.GetQuantizationStep(), Offset: cfg.GetQuantizationOffset()}
	}
	restore := tree.RestoreIntensityFile
	if *mode == "labels" {
		restore = tree.RestoreLabelsFile
	}

	files, err := fsutil.FilesWithExt(fsys, *decodedRoot, *decodedExt)
	if err != nil {
		log.Fatalf("failed to list %s: %v", *decodedRoot, err)
	}
	if len(files) == 0 {
		log.Fatalf("no *%s files under %s", *decodedExt, *decodedRoot)
	}

	n := *workers
	if n <= 0 {
		n = cfg.GetWorkers()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)

	var done atomic.Int64
	for _, rel := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := restore(rel)
			if err != nil {
				return err
			}
			monitoring.Debugf("[reattach] %d/%d wrote %s", done.Add(1), len(files), out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("restore failed: %v", err)
	}
	if err := ctx.Err(); err != nil {
		log.Fatalf("interrupted: %v", err)
	}
	monitoring.Logf("[reattach] restored %s for %d files under %s", *mode, len(files), *outRoot)
}
