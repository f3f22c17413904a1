// Package reattach carries per-point attributes (intensity, labels) from an
// original scan onto a reconstructed one by nearest-neighbour matching.
package reattach

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/octree.report/internal/pointio"
)

var (
	// ErrDistanceExceeded matches every *DistanceError.
	ErrDistanceExceeded = errors.New("reattach: nearest original point beyond threshold")
	// ErrEmptyIndex is returned when indexing no points.
	ErrEmptyIndex = errors.New("reattach: no reference points")
)

// DistanceError reports the first reconstructed point whose nearest original
// point is farther than the threshold.
type DistanceError struct {
	Index     int
	Distance  float64
	Threshold float64
}

func (e *DistanceError) Error() string {
	return fmt.Sprintf("reattach: no original point within %g of point index %d (dist=%g)", e.Threshold, e.Index, e.Distance)
}

func (e *DistanceError) Is(target error) bool { return target == ErrDistanceExceeded }

// refPoint is an original point tagged with its position in the scan.
type refPoint struct {
	pos [3]float64
	idx int
}

func (p refPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.pos[d] - c.(refPoint).pos[d]
}

func (p refPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance.
func (p refPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(refPoint)
	dx, dy, dz := p.pos[0]-q.pos[0], p.pos[1]-q.pos[1], p.pos[2]-q.pos[2]
	return dx*dx + dy*dy + dz*dz
}

type refPoints []refPoint

func (p refPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p refPoints) Len() int                              { return len(p) }
func (p refPoints) Pivot(d kdtree.Dim) int                { return refPlane{Dim: d, refPoints: p}.Pivot() }
func (p refPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// refPlane pivots refPoints on one dimension.
type refPlane struct {
	kdtree.Dim
	refPoints
}

func (p refPlane) Less(i, j int) bool { return p.refPoints[i].pos[p.Dim] < p.refPoints[j].pos[p.Dim] }
func (p refPlane) Swap(i, j int)      { p.refPoints[i], p.refPoints[j] = p.refPoints[j], p.refPoints[i] }
func (p refPlane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfRandoms(p, 100)) }
func (p refPlane) Slice(start, end int) kdtree.SortSlicer {
	p.refPoints = p.refPoints[start:end]
	return p
}

// Index answers nearest-neighbour queries against a fixed set of points.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds a k-d tree over points. The input slice is not retained.
func NewIndex(points [][3]float64) (*Index, error) {
	if len(points) == 0 {
		return nil, ErrEmptyIndex
	}
	refs := make(refPoints, len(points))
	for i, p := range points {
		refs[i] = refPoint{pos: p, idx: i}
	}
	return &Index{tree: kdtree.New(refs, false), n: len(points)}, nil
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.n }

// Nearest returns the index of the closest original point to q and its
// Euclidean distance.
func (ix *Index) Nearest(q [3]float64) (int, float64) {
	got, sq := ix.tree.Nearest(refPoint{pos: q})
	return got.(refPoint).idx, math.Sqrt(sq)
}

// NoThreshold disables the distance check in Restore and RestoreLabels.
var NoThreshold = math.Inf(1)

func restore[T any](ix *Index, attrs []T, queries [][3]float64, threshold float64) ([]T, error) {
	if len(attrs) != ix.Len() {
		return nil, fmt.Errorf("reattach: %d attributes for %d indexed points", len(attrs), ix.Len())
	}
	out := make([]T, len(queries))
	for i, q := range queries {
		j, dist := ix.Nearest(q)
		if dist > threshold {
			return nil, &DistanceError{Index: i, Distance: dist, Threshold: threshold}
		}
		out[i] = attrs[j]
	}
	return out, nil
}

// Restore returns, for each query, the attribute of its nearest original
// point. attrs is parallel to the indexed points. It fails on the first
// query farther than threshold from every original point.
func Restore(ix *Index, attrs []float32, queries [][3]float64, threshold float64) ([]float32, error) {
	return restore(ix, attrs, queries, threshold)
}

// RestoreLabels is Restore for label words.
func RestoreLabels(ix *Index, labels []pointio.Label, queries [][3]float64, threshold float64) ([]pointio.Label, error) {
	return restore(ix, labels, queries, threshold)
}
