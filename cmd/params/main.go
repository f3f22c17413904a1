// Command params creates and inspects parameter blobs.
//
//	params init -out model.ocpm [-config codec.json] [-channels 32] [-kernel 3] [-seed 1] [-zero]
//	params inspect model.ocpm
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/octree.report/internal/codec/model"
	"github.com/banshee-data/octree.report/internal/config"
	"github.com/banshee-data/octree.report/internal/fsutil"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  params init -out <file> [-config <json>] [-channels N] [-kernel K] [-seed S] [-zero]")
	fmt.Fprintln(os.Stderr, "  params inspect <file>")
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	out := fs.String("out", "", "output blob path (required)")
	configPath := fs.String("config", "", "codec config JSON supplying defaults")
	channels := fs.Int("channels", 0, "feature channels (overrides config)")
	kernel := fs.Int("kernel", 0, "odd kernel size (overrides config)")
	seed := fs.Uint64("seed", 0, "initialiser seed (overrides config)")
	zero := fs.Bool("zero", false, "write all-zero parameters (uniform predictor)")
	fs.Parse(args)

	if *out == "" {
		log.Fatal("-out is required")
	}
	cfg := config.EmptyCodecConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadCodecConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	c, k, s := cfg.GetChannels(), cfg.GetKernelSize(), cfg.GetParamSeed()
	if *channels > 0 {
		c = *channels
	}
	if *kernel > 0 {
		k = *kernel
	}
	if *seed > 0 {
		s = *seed
	}

	var p *model.Params
	var err error
	if *zero {
		p, err = model.Zero(c, k)
	} else {
		p, err = model.Init(c, k, s)
	}
	if err != nil {
		log.Fatalf("failed to build parameters: %v", err)
	}
	if err := model.SaveFile(fsutil.OSFileSystem{}, *out, p); err != nil {
		log.Fatalf("failed to write %s: %v", *out, err)
	}
	log.Printf("wrote %s: %d channels, kernel %d, %d values", *out, c, k, p.Count())
}

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		log.Fatal("inspect takes exactly one blob path")
	}
	path := fs.Arg(0)
	p, err := model.LoadFile(fsutil.OSFileSystem{}, path)
	if err != nil {
		log.Fatalf("failed to load %s: %v", path, err)
	}

	fmt.Printf("%s: %d channels, kernel %d (%d offsets), %d values\n\n",
		path, p.Channels, p.KernelSize, model.KernelVolume(p.KernelSize), p.Count())
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TENSOR\tSHAPE\tL2 NORM")
	for _, t := range p.Tensors() {
		fmt.Fprintf(tw, "%s\t%dx%d\t%.4f\n", t.Name, t.Rows, t.Cols, mat.Norm(t.Data, 2))
	}
	tw.Flush()
}
