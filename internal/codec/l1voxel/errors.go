package l1voxel

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPointSet is returned when a pyramid is requested for no points.
	ErrEmptyPointSet = errors.New("l1voxel: empty point set")
	// ErrDuplicateVoxel is returned when the input contains the same voxel twice.
	ErrDuplicateVoxel = errors.New("l1voxel: duplicate voxel")
	// ErrInvalidMinPoints is returned for a non-positive level size threshold.
	ErrInvalidMinPoints = errors.New("l1voxel: min points must be at least 1")
	// ErrNoOccupancy is returned when expanding a level that has no codes.
	ErrNoOccupancy = errors.New("l1voxel: level has no occupancy codes")
	// ErrOccupancyInvariant matches every *InvariantError.
	ErrOccupancyInvariant = errors.New("l1voxel: occupancy invariant violated")
)

// InvariantError reports a mismatch between the voxels derived from a coarse
// level's occupancy codes and the actual finer level. It is never corrected.
type InvariantError struct {
	Depth   int
	Index   int
	Want    Coord
	Got     Coord
	WantLen int
	GotLen  int
}

func (e *InvariantError) Error() string {
	if e.WantLen != e.GotLen {
		return fmt.Sprintf("l1voxel: depth %d: derived %d voxels, level has %d", e.Depth, e.GotLen, e.WantLen)
	}
	return fmt.Sprintf("l1voxel: depth %d index %d: expected %v, derived %v", e.Depth, e.Index, e.Want, e.Got)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrOccupancyInvariant
}
