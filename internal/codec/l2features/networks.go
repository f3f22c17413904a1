package l2features

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/octree.report/internal/codec/l1voxel"
	"github.com/banshee-data/octree.report/internal/codec/model"
)

// ErrShapeMismatch is returned when paired inputs disagree in length or width.
var ErrShapeMismatch = errors.New("l2features: shape mismatch")

// embed gathers one table row per id.
func embed(table *mat.Dense, ids []int) *mat.Dense {
	_, c := table.Dims()
	out := mat.NewDense(len(ids), c, nil)
	for i, id := range ids {
		out.SetRow(i, table.RawRowView(id))
	}
	return out
}

// ContextFeatures encodes a coarse level from its occupancy codes. The
// result has one row per voxel of level, in level order. An empty level
// yields nil.
func ContextFeatures(p *model.Params, level l1voxel.Level) (*mat.Dense, error) {
	if level.Len() == 0 {
		return nil, nil
	}
	if level.Occupancy == nil {
		return nil, l1voxel.ErrNoOccupancy
	}
	if len(level.Occupancy) != level.Len() {
		return nil, fmt.Errorf("%w: %d codes for %d voxels", ErrShapeMismatch, len(level.Occupancy), level.Len())
	}

	ids := make([]int, level.Len())
	for i, code := range level.Occupancy {
		ids[i] = int(code)
	}
	nb := newNeighbourhood(level.Coords, p.KernelSize)
	return nb.stack(p.Context, embed(p.ContextEmbedding, ids)), nil
}

// TargetFeatures encodes candidates from their parents' context features
// and their octant within the parent. The result has one row per candidate,
// in candidate order. No candidates yields nil.
func TargetFeatures(p *model.Params, cand l1voxel.Candidates, context *mat.Dense) (*mat.Dense, error) {
	if cand.Len() == 0 {
		return nil, nil
	}
	if len(cand.Parent) != cand.Len() || len(cand.Octant) != cand.Len() {
		return nil, fmt.Errorf("%w: candidate arrays disagree", ErrShapeMismatch)
	}
	if context == nil {
		return nil, fmt.Errorf("%w: no context features for %d candidates", ErrShapeMismatch, cand.Len())
	}
	rows, c := context.Dims()
	if c != p.Channels {
		return nil, fmt.Errorf("%w: context has %d channels, want %d", ErrShapeMismatch, c, p.Channels)
	}

	octants := make([]int, cand.Len())
	for i, o := range cand.Octant {
		octants[i] = int(o)
	}
	x := embed(p.OctantEmbedding, octants)
	for i, parent := range cand.Parent {
		if parent < 0 || parent >= rows {
			return nil, fmt.Errorf("%w: candidate %d has parent %d of %d", ErrShapeMismatch, i, parent, rows)
		}
		floats.Add(x.RawRowView(i), context.RawRowView(parent))
	}

	nb := newNeighbourhood(cand.Coords, p.KernelSize)
	return nb.stack(p.Target, x), nil
}
