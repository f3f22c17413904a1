package l1voxel

import "fmt"

// Coord is a voxel position: a batch index plus three spatial indices.
type Coord struct {
	B int32
	X int32
	Y int32
	Z int32
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d|%d,%d,%d)", c.B, c.X, c.Y, c.Z)
}

// Octant returns the position of c inside its parent voxel:
// (x&1)<<2 | (y&1)<<1 | (z&1).
func (c Coord) Octant() uint8 {
	return uint8((c.X&1)<<2 | (c.Y&1)<<1 | (c.Z & 1))
}

// Parent returns the voxel one level coarser that contains c. Division
// floors, so -1 maps to -1 and -2 maps to -1.
func (c Coord) Parent() Coord {
	return Coord{B: c.B, X: c.X >> 1, Y: c.Y >> 1, Z: c.Z >> 1}
}

// Child returns the finer voxel at octant o of c.
func (c Coord) Child(o uint8) Coord {
	return Coord{
		B: c.B,
		X: 2*c.X + int32(o>>2&1),
		Y: 2*c.Y + int32(o>>1&1),
		Z: 2*c.Z + int32(o&1),
	}
}

// Offset returns c translated by (dx, dy, dz) within the same batch.
func (c Coord) Offset(dx, dy, dz int32) Coord {
	return Coord{B: c.B, X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// OctantBit is the bit a child at octant o sets in its parent's code.
func OctantBit(o uint8) uint8 { return 1 << o }
