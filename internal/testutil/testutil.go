// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers and voxel clouds so codec
// and harness tests build their inputs the same way.
package testutil

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/banshee-data/octree.report/internal/codec/l1voxel"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// GridCloud returns every voxel of a side x side x side cube starting at the
// origin, repeated for each batch index in [0, batches).
func GridCloud(batches, side int) []l1voxel.Coord {
	out := make([]l1voxel.Coord, 0, batches*side*side*side)
	for b := 0; b < batches; b++ {
		for x := 0; x < side; x++ {
			for y := 0; y < side; y++ {
				for z := 0; z < side; z++ {
					out = append(out, l1voxel.Coord{B: int32(b), X: int32(x), Y: int32(y), Z: int32(z)})
				}
			}
		}
	}
	return out
}

// LineCloud returns n voxels along the x axis spaced step apart.
func LineCloud(n, step int) []l1voxel.Coord {
	out := make([]l1voxel.Coord, n)
	for i := range out {
		out[i] = l1voxel.Coord{X: int32(i * step)}
	}
	return out
}

// RandomCloud returns n distinct batch-0 voxels drawn uniformly from
// [-extent, extent) on each axis. The same seed yields the same cloud in
// the same order.
func RandomCloud(seed uint64, n int, extent int32) []l1voxel.Coord {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	seen := make(map[l1voxel.Coord]struct{}, n)
	out := make([]l1voxel.Coord, 0, n)
	for len(out) < n {
		c := l1voxel.Coord{
			X: rng.Int32N(2*extent) - extent,
			Y: rng.Int32N(2*extent) - extent,
			Z: rng.Int32N(2*extent) - extent,
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
