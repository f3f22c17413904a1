// Command psnr reports the geometric MSE and PSNR between two point clouds
// with the same number of points, read from PLY or .bin files.
//
//	psnr original.ply reconstructed.ply
package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/banshee-data/octree.report/internal/fsutil"
	"github.com/banshee-data/octree.report/internal/pointio"
)

var stride = flag.Int("stride", pointio.DefaultStride, "float32 values per point for .bin inputs")

func main() {
	flag.Parse()
	if flag.NArg() != 2 {
		log.Fatal("usage: psnr [-stride N] <original> <reconstructed>")
	}
	fsys := fsutil.OSFileSystem{}
	orig, err := readPositions(fsys, flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to read original: %v", err)
	}
	recon, err := readPositions(fsys, flag.Arg(1))
	if err != nil {
		log.Fatalf("failed to read reconstruction: %v", err)
	}

	d, err := pointio.PSNR(orig, recon)
	if err != nil {
		log.Fatalf("psnr: %v", err)
	}
	fmt.Printf("points: %d\n", len(orig))
	fmt.Printf("MSE:    %g\n", d.MSE)
	fmt.Printf("peak:   %g\n", d.Peak)
	fmt.Printf("PSNR:   %.4f dB\n", d.PSNR)
}

func readPositions(fsys fsutil.FileSystem, path string) ([][3]float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".ply") {
		cloud, err := pointio.ReadPLYFile(fsys, path)
		if err != nil {
			return nil, err
		}
		return pointio.Positions(cloud.Points), nil
	}
	points, err := pointio.ReadBinFile(fsys, path, *stride)
	if err != nil {
		return nil, err
	}
	return pointio.Positions(points), nil
}
