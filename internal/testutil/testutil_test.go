package testutil

import (
	"errors"
	"fmt"
	"testing"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	AssertError(t, errors.New("test error"))
}

func TestAssertErrorIs(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	AssertErrorIs(t, fmt.Errorf("wrapped: %w", sentinel), sentinel)
}

func TestGridCloud(t *testing.T) {
	t.Parallel()

	cloud := GridCloud(4, 4)
	if len(cloud) != 256 {
		t.Fatalf("len = %d, want 256", len(cloud))
	}
	seen := make(map[[4]int32]bool)
	for _, c := range cloud {
		key := [4]int32{c.B, c.X, c.Y, c.Z}
		if seen[key] {
			t.Fatalf("duplicate voxel %v", c)
		}
		seen[key] = true
	}
}

func TestLineCloud(t *testing.T) {
	t.Parallel()

	cloud := LineCloud(5, 2)
	if cloud[4].X != 8 || cloud[4].Y != 0 || cloud[4].Z != 0 {
		t.Errorf("last voxel = %v, want (0|8,0,0)", cloud[4])
	}
}

func TestRandomCloud(t *testing.T) {
	t.Parallel()

	a := RandomCloud(7, 500, 16)
	b := RandomCloud(7, 500, 16)
	if len(a) != 500 {
		t.Fatalf("len = %d, want 500", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cloud differs at %d: %v vs %v", i, a[i], b[i])
		}
		c := a[i]
		if c.X < -16 || c.X >= 16 || c.Y < -16 || c.Y >= 16 || c.Z < -16 || c.Z >= 16 {
			t.Fatalf("voxel %v outside extent", c)
		}
	}
}
