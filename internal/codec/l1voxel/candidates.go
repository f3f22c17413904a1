package l1voxel

import "math/bits"

// Candidates are the finer voxels implied by a coarse level's occupancy
// codes, in canonical order. Parent[i] indexes the coarse voxel that
// produced Coords[i] and Octant[i] is its position inside that voxel.
type Candidates struct {
	Depth  int
	Coords []Coord
	Parent []int
	Octant []uint8
}

// Len returns the number of candidates.
func (c Candidates) Len() int { return len(c.Coords) }

// Expand emits one child for every set bit of every code in coarse.
func Expand(coarse Level) (Candidates, error) {
	if coarse.Occupancy == nil {
		return Candidates{}, ErrNoOccupancy
	}
	if len(coarse.Occupancy) != len(coarse.Coords) {
		return Candidates{}, &InvariantError{
			Depth:   coarse.Depth,
			WantLen: len(coarse.Coords),
			GotLen:  len(coarse.Occupancy),
		}
	}

	n := 0
	for _, code := range coarse.Occupancy {
		n += bits.OnesCount8(code)
	}

	coords := make([]Coord, 0, n)
	parent := make([]int, 0, n)
	octant := make([]uint8, 0, n)
	for i, c := range coarse.Coords {
		code := coarse.Occupancy[i]
		for o := uint8(0); o < 8; o++ {
			if code&OctantBit(o) == 0 {
				continue
			}
			coords = append(coords, c.Child(o))
			parent = append(parent, i)
			octant = append(octant, o)
		}
	}

	sorted, perm := SortCanonical(coords)
	return Candidates{
		Depth:  coarse.Depth - 1,
		Coords: sorted,
		Parent: Reorder(parent, perm),
		Octant: Reorder(octant, perm),
	}, nil
}

// VerifyExpansion checks index by index that c reproduces fine exactly.
func VerifyExpansion(c Candidates, fine Level) error {
	if len(c.Coords) != len(fine.Coords) {
		return &InvariantError{
			Depth:   fine.Depth,
			Index:   -1,
			WantLen: len(fine.Coords),
			GotLen:  len(c.Coords),
		}
	}
	for i, want := range fine.Coords {
		if got := c.Coords[i]; got != want {
			return &InvariantError{
				Depth:   fine.Depth,
				Index:   i,
				Want:    want,
				Got:     got,
				WantLen: len(fine.Coords),
				GotLen:  len(c.Coords),
			}
		}
	}
	return nil
}
