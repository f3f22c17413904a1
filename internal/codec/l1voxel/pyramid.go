package l1voxel

import "fmt"

// DefaultMinLevelPoints is the voxel count below which halving stops.
const DefaultMinLevelPoints = 64

// Level is one scale of the pyramid. Coords are unique and canonical.
// Occupancy[i] holds the child octant bits of Coords[i] at the next finer
// level; the leaf level has no finer level and a nil Occupancy.
type Level struct {
	Depth     int
	Coords    []Coord
	Occupancy []uint8
}

// Len returns the number of voxels in the level.
func (l Level) Len() int { return len(l.Coords) }

// IsLeaf reports whether l is the finest level.
func (l Level) IsLeaf() bool { return l.Occupancy == nil }

// Pyramid holds every level of a point cloud, coarsest first. The last level
// is the leaf and equals the input point set.
type Pyramid struct {
	Levels     []Level
	PointCount int
}

// Depth returns the number of levels.
func (p *Pyramid) Depth() int { return len(p.Levels) }

// Coarsest returns the anchor level, transmitted without cost.
func (p *Pyramid) Coarsest() Level { return p.Levels[0] }

// Leaf returns the input point set as a level.
func (p *Pyramid) Leaf() Level { return p.Levels[len(p.Levels)-1] }

// Pair returns the i-th adjacent (coarse, fine) pair, coarsest first.
func (p *Pyramid) Pair(i int) (coarse, fine Level) {
	return p.Levels[i], p.Levels[i+1]
}

// Pairs returns the number of adjacent level pairs.
func (p *Pyramid) Pairs() int { return len(p.Levels) - 1 }

// Advance halves every spatial coordinate of level, merges children into
// their parents and records which octants each parent owns. Parents and
// codes come back together in canonical order.
func Advance(level Level) Level {
	index := make(map[Coord]int, len(level.Coords)/2+1)
	parents := make([]Coord, 0, len(level.Coords)/2+1)
	codes := make([]uint8, 0, len(level.Coords)/2+1)

	for _, c := range level.Coords {
		p := c.Parent()
		i, ok := index[p]
		if !ok {
			i = len(parents)
			index[p] = i
			parents = append(parents, p)
			codes = append(codes, 0)
		}
		codes[i] |= OctantBit(c.Octant())
	}

	sorted, perm := SortCanonical(parents)
	return Level{
		Depth:     level.Depth + 1,
		Coords:    sorted,
		Occupancy: Reorder(codes, perm),
	}
}

// atFixedPoint reports whether halving coords would return the same set.
func atFixedPoint(coords []Coord) bool {
	for _, c := range coords {
		if c.X < -1 || c.X > 0 || c.Y < -1 || c.Y > 0 || c.Z < -1 || c.Z > 0 {
			return false
		}
	}
	return true
}

// BuildPyramid canonicalises points into the leaf level and halves it until
// a level has fewer than minPoints voxels. At least one halving always runs.
// Halving also stops once it can no longer shrink the level, which happens
// when many batches each collapse to a single voxel.
func BuildPyramid(points []Coord, minPoints int) (*Pyramid, error) {
	if minPoints < 1 {
		return nil, ErrInvalidMinPoints
	}
	if len(points) == 0 {
		return nil, ErrEmptyPointSet
	}

	leaf, _ := SortCanonical(points)
	if i := firstDuplicate(leaf); i >= 0 {
		return nil, fmt.Errorf("%w: %v at index %d", ErrDuplicateVoxel, leaf[i], i)
	}

	fineToCoarse := []Level{{Depth: 0, Coords: leaf}}
	for {
		next := Advance(fineToCoarse[len(fineToCoarse)-1])
		fineToCoarse = append(fineToCoarse, next)
		if next.Len() < minPoints || atFixedPoint(next.Coords) {
			break
		}
	}

	levels := make([]Level, len(fineToCoarse))
	for i, l := range fineToCoarse {
		levels[len(levels)-1-i] = l
	}
	return &Pyramid{Levels: levels, PointCount: len(leaf)}, nil
}
