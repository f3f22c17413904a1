package pointio

import (
	"fmt"
	"math"

	"github.com/banshee-data/octree.report/internal/codec/l1voxel"
)

// Quantizer maps metric coordinates onto a non-negative integer voxel grid:
// q = round(v/Step) + Offset.
type Quantizer struct {
	Step   float64
	Offset int
}

// DefaultQuantizer is the 1 mm grid with an 18-bit offset.
var DefaultQuantizer = Quantizer{Step: 0.001, Offset: 131072}

// Quantize returns the distinct voxels of points in canonical order, all in
// batch b.
func (q Quantizer) Quantize(points [][3]float64, b int32) ([]l1voxel.Coord, error) {
	if q.Step <= 0 {
		return nil, fmt.Errorf("pointio: quantization step must be positive, got %g", q.Step)
	}
	seen := make(map[l1voxel.Coord]struct{}, len(points))
	out := make([]l1voxel.Coord, 0, len(points))
	for i, p := range points {
		var v [3]int32
		for k := range p {
			f := math.Round(p[k]/q.Step) + float64(q.Offset)
			if math.IsNaN(f) || f < math.MinInt32 || f > math.MaxInt32 {
				return nil, fmt.Errorf("pointio: point %d axis %d (%g) does not fit the voxel grid", i, k, p[k])
			}
			v[k] = int32(f)
		}
		c := l1voxel.Coord{B: b, X: v[0], Y: v[1], Z: v[2]}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sorted, _ := l1voxel.SortCanonical(out)
	return sorted, nil
}

// Dequantize maps voxels back to metric coordinates: (q - Offset) * Step.
func (q Quantizer) Dequantize(coords []l1voxel.Coord) [][3]float64 {
	out := make([][3]float64, len(coords))
	off := float64(q.Offset)
	for i, c := range coords {
		out[i] = [3]float64{
			(float64(c.X) - off) * q.Step,
			(float64(c.Y) - off) * q.Step,
			(float64(c.Z) - off) * q.Step,
		}
	}
	return out
}

// DequantizePositions is Dequantize for voxel indices already held as floats,
// as read back from a quantized PLY.
func (q Quantizer) DequantizePositions(positions [][3]float64) [][3]float64 {
	out := make([][3]float64, len(positions))
	off := float64(q.Offset)
	for i, p := range positions {
		for k := range p {
			out[i][k] = (p[k] - off) * q.Step
		}
	}
	return out
}

// VoxelsFromPositions converts integer-valued positions (a quantized PLY) to
// batch-0 voxels in canonical order, dropping duplicates.
func VoxelsFromPositions(positions [][3]float64) ([]l1voxel.Coord, error) {
	return Quantizer{Step: 1}.Quantize(positions, 0)
}

// CoordPoints turns voxels into points with integer-valued positions, ready
// for WritePLYASCII.
func CoordPoints(coords []l1voxel.Coord) []Point {
	out := make([]Point, len(coords))
	for i, c := range coords {
		out[i].Pos = [3]float64{float64(c.X), float64(c.Y), float64(c.Z)}
	}
	return out
}
