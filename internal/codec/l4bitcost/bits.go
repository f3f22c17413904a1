package l4bitcost

import (
	"math"

	"github.com/banshee-data/octree.report/internal/codec/l3predict"
)

// DefaultMaxSymbolBits caps the cost of a single nibble.
const DefaultMaxSymbolBits = 50.0

// SymbolBits returns -log2(p) clamped to [0, maxBits]. Zero, negative and
// NaN probabilities cost maxBits.
func SymbolBits(p, maxBits float64) float64 {
	if !(p > 0) {
		return maxBits
	}
	return math.Min(math.Max(-math.Log2(p), 0), maxBits)
}

// LevelCost is the cost of coding one level from its coarser neighbour.
type LevelCost struct {
	// Depth is the depth of the level whose occupancy codes are coded.
	Depth      int
	Candidates int
	LowerBits  float64
	UpperBits  float64
}

// Bits returns the total cost of the level.
func (l LevelCost) Bits() float64 { return l.LowerBits + l.UpperBits }

// BitsPerCandidate returns the mean cost per coded voxel.
func (l LevelCost) BitsPerCandidate() float64 {
	if l.Candidates == 0 {
		return 0
	}
	return l.Bits() / float64(l.Candidates)
}

// Result is the cost of a whole point cloud.
type Result struct {
	TotalBits    float64
	BitsPerPoint float64
	PointCount   int
	// AnchorVoxels is the size of the coarsest level, sent without cost.
	AnchorVoxels int
	// Levels lists the costed levels, coarsest first.
	Levels []LevelCost
}

// Accumulator folds per-level costs.
type Accumulator struct {
	maxBits float64
	levels  []LevelCost
	total   float64
}

// NewAccumulator returns an Accumulator clamping each nibble at maxBits.
func NewAccumulator(maxBits float64) *Accumulator {
	return &Accumulator{maxBits: maxBits}
}

// Fold adds the cost of one prediction and returns it.
func (a *Accumulator) Fold(depth int, pred *l3predict.Prediction) LevelCost {
	lc := LevelCost{Depth: depth, Candidates: pred.Len()}
	for i := 0; i < pred.Len(); i++ {
		lc.LowerBits += SymbolBits(pred.LowerProb(i), a.maxBits)
		lc.UpperBits += SymbolBits(pred.UpperProb(i), a.maxBits)
	}
	a.levels = append(a.levels, lc)
	a.total += lc.Bits()
	return lc
}

// TotalBits returns the bits folded so far.
func (a *Accumulator) TotalBits() float64 { return a.total }

// Result returns the accumulated cost normalised by pointCount.
func (a *Accumulator) Result(pointCount, anchorVoxels int) Result {
	r := Result{
		TotalBits:    a.total,
		PointCount:   pointCount,
		AnchorVoxels: anchorVoxels,
		Levels:       append([]LevelCost(nil), a.levels...),
	}
	if pointCount > 0 {
		r.BitsPerPoint = a.total / float64(pointCount)
	}
	return r
}
