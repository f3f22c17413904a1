package pointio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Distortion compares a reconstruction against its original point by point.
type Distortion struct {
	MSE float64
	// Peak is the value range of the original over all axes.
	Peak float64
	// PSNR is in dB; +Inf when the clouds are identical.
	PSNR float64
}

// PSNR computes the mean squared error over every coordinate and the peak
// signal-to-noise ratio against the original's value range. The clouds must
// have the same length and be in corresponding order.
func PSNR(original, reconstructed [][3]float64) (Distortion, error) {
	if len(original) != len(reconstructed) {
		return Distortion{}, fmt.Errorf("pointio: point clouds do not match in shape: %d vs %d points",
			len(original), len(reconstructed))
	}
	if len(original) == 0 {
		return Distortion{}, fmt.Errorf("pointio: empty point cloud")
	}

	a := flatten(original)
	b := flatten(reconstructed)
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)
	floats.Mul(diff, diff)

	d := Distortion{
		MSE:  stat.Mean(diff, nil),
		Peak: floats.Max(a) - floats.Min(a),
	}
	if d.MSE == 0 {
		d.PSNR = math.Inf(1)
	} else {
		d.PSNR = 10 * math.Log10(d.Peak*d.Peak/d.MSE)
	}
	return d, nil
}

func flatten(points [][3]float64) []float64 {
	out := make([]float64, 0, 3*len(points))
	for _, p := range points {
		out = append(out, p[0], p[1], p[2])
	}
	return out
}
