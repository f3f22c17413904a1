package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Init builds a parameter set with He-scaled normal weights and zero biases.
// The same seed always yields the same parameters.
func Init(channels, kernel int, seed uint64) (*Params, error) {
	p, err := newParams(channels, kernel)
	if err != nil {
		return nil, err
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	err = p.visit(func(spec tensorSpec, t **mat.Dense) error {
		data := make([]float64, spec.Rows*spec.Cols)
		if !spec.Bias {
			dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(2 / float64(spec.FanIn)), Src: src}
			for i := range data {
				data[i] = dist.Rand()
			}
		}
		*t = mat.NewDense(spec.Rows, spec.Cols, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Zero builds a parameter set with every tensor zero. Both heads then emit
// equal logits and the predictor is uniform over each nibble.
func Zero(channels, kernel int) (*Params, error) {
	p, err := newParams(channels, kernel)
	if err != nil {
		return nil, err
	}
	err = p.visit(func(spec tensorSpec, t **mat.Dense) error {
		*t = mat.NewDense(spec.Rows, spec.Cols, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
