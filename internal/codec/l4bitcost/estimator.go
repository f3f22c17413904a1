package l4bitcost

import (
	"fmt"

	"github.com/banshee-data/octree.report/internal/codec/l1voxel"
	"github.com/banshee-data/octree.report/internal/codec/l2features"
	"github.com/banshee-data/octree.report/internal/codec/l3predict"
	"github.com/banshee-data/octree.report/internal/codec/model"
	"github.com/banshee-data/octree.report/internal/monitoring"
)

// EstimatorConfig controls an Estimator.
type EstimatorConfig struct {
	MaxSymbolBits float64
	// VerifyExpansion checks every candidate set against the actual finer
	// level before it is costed.
	VerifyExpansion bool
}

// DefaultEstimatorConfig returns the standard settings.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{MaxSymbolBits: DefaultMaxSymbolBits, VerifyExpansion: true}
}

// Estimator computes the bit cost of pyramids under one parameter set. It
// holds no per-cloud state and is safe for concurrent use.
type Estimator struct {
	params *model.Params
	cfg    EstimatorConfig
}

// NewEstimator validates params and returns an Estimator.
func NewEstimator(params *model.Params, cfg EstimatorConfig) (*Estimator, error) {
	if params == nil {
		return nil, fmt.Errorf("l4bitcost: nil params")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSymbolBits <= 0 {
		cfg.MaxSymbolBits = DefaultMaxSymbolBits
	}
	return &Estimator{params: params, cfg: cfg}, nil
}

// Estimate walks every adjacent level pair of pyr, coarsest first, and
// returns the total cost. The coarsest level is free. The leaf has no codes
// and only serves to verify the last expansion.
func (e *Estimator) Estimate(pyr *l1voxel.Pyramid) (Result, error) {
	acc := NewAccumulator(e.cfg.MaxSymbolBits)
	for i := 0; i < pyr.Pairs(); i++ {
		coarse, fine := pyr.Pair(i)
		if fine.IsLeaf() {
			if e.cfg.VerifyExpansion {
				if err := e.verify(coarse, fine); err != nil {
					return Result{}, err
				}
			}
			continue
		}
		lc, err := e.estimatePair(acc, coarse, fine)
		if err != nil {
			return Result{}, err
		}
		monitoring.Debugf("[bitcost] depth %d: %d candidates, %.1f bits (%.3f bits/candidate)",
			lc.Depth, lc.Candidates, lc.Bits(), lc.BitsPerCandidate())
	}
	return acc.Result(pyr.PointCount, pyr.Coarsest().Len()), nil
}

// EstimatePoints builds a pyramid for points and estimates it.
func (e *Estimator) EstimatePoints(points []l1voxel.Coord, minPoints int) (Result, error) {
	pyr, err := l1voxel.BuildPyramid(points, minPoints)
	if err != nil {
		return Result{}, err
	}
	return e.Estimate(pyr)
}

func (e *Estimator) verify(coarse, fine l1voxel.Level) error {
	cand, err := l1voxel.Expand(coarse)
	if err != nil {
		return err
	}
	return l1voxel.VerifyExpansion(cand, fine)
}

// estimatePair costs fine's codes given coarse. Features are dropped on return.
func (e *Estimator) estimatePair(acc *Accumulator, coarse, fine l1voxel.Level) (LevelCost, error) {
	cand, err := l1voxel.Expand(coarse)
	if err != nil {
		return LevelCost{}, fmt.Errorf("expand depth %d: %w", coarse.Depth, err)
	}
	if e.cfg.VerifyExpansion {
		if err := l1voxel.VerifyExpansion(cand, fine); err != nil {
			return LevelCost{}, err
		}
	}

	context, err := l2features.ContextFeatures(e.params, coarse)
	if err != nil {
		return LevelCost{}, fmt.Errorf("context features depth %d: %w", coarse.Depth, err)
	}
	target, err := l2features.TargetFeatures(e.params, cand, context)
	if err != nil {
		return LevelCost{}, fmt.Errorf("target features depth %d: %w", fine.Depth, err)
	}
	pred, err := l3predict.Predict(e.params, target, fine.Occupancy)
	if err != nil {
		return LevelCost{}, fmt.Errorf("predict depth %d: %w", fine.Depth, err)
	}
	return acc.Fold(fine.Depth, pred), nil
}
