package l1voxel

import (
	"cmp"
	"slices"
)

// compareCanonical orders voxels by batch, then z, then y, then x. This is
// the order produced by stable sorts on x, y, z and batch applied in turn.
func compareCanonical(a, b Coord) int {
	if c := cmp.Compare(a.B, b.B); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Z, b.Z); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}

// CanonicalPermutation returns perm such that coords[perm[0]], coords[perm[1]],
// ... is in canonical order. Equal voxels keep their input order.
func CanonicalPermutation(coords []Coord) []int {
	perm := make([]int, len(coords))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(i, j int) int {
		return compareCanonical(coords[i], coords[j])
	})
	return perm
}

// Reorder returns a fresh slice with out[i] = s[perm[i]].
func Reorder[T any](s []T, perm []int) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(perm))
	for i, p := range perm {
		out[i] = s[p]
	}
	return out
}

// SortCanonical returns a sorted copy of coords and the permutation that
// produced it. Apply the permutation to every array paired with coords.
func SortCanonical(coords []Coord) ([]Coord, []int) {
	perm := CanonicalPermutation(coords)
	return Reorder(coords, perm), perm
}

// IsCanonical reports whether coords is already in canonical order.
func IsCanonical(coords []Coord) bool {
	return slices.IsSortedFunc(coords, compareCanonical)
}

// firstDuplicate returns the index of the first voxel equal to its
// predecessor in a canonical slice, or -1.
func firstDuplicate(sorted []Coord) int {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return i
		}
	}
	return -1
}
