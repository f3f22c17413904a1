package l1voxel

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stablePasses sorts by x, then y, then z, then batch, each pass stable.
func stablePasses(coords []Coord) []int {
	perm := make([]int, len(coords))
	for i := range perm {
		perm[i] = i
	}
	keys := []func(Coord) int32{
		func(c Coord) int32 { return c.X },
		func(c Coord) int32 { return c.Y },
		func(c Coord) int32 { return c.Z },
		func(c Coord) int32 { return c.B },
	}
	for _, key := range keys {
		sort.SliceStable(perm, func(i, j int) bool {
			return key(coords[perm[i]]) < key(coords[perm[j]])
		})
	}
	return perm
}

func randomCoords(seed uint64, n int) []Coord {
	rng := rand.New(rand.NewPCG(seed, 1))
	out := make([]Coord, n)
	for i := range out {
		out[i] = Coord{
			B: rng.Int32N(3),
			X: rng.Int32N(8) - 4,
			Y: rng.Int32N(8) - 4,
			Z: rng.Int32N(8) - 4,
		}
	}
	return out
}

func TestCanonicalPermutationMatchesStablePasses(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 5; seed++ {
		// small ranges force repeated voxels so tie handling is exercised
		coords := randomCoords(seed, 400)
		if diff := cmp.Diff(stablePasses(coords), CanonicalPermutation(coords)); diff != "" {
			t.Fatalf("seed %d: permutation mismatch (-passes +got):\n%s", seed, diff)
		}
	}
}

func TestSortCanonicalIdempotent(t *testing.T) {
	t.Parallel()

	sorted, _ := SortCanonical(randomCoords(11, 300))
	require.True(t, IsCanonical(sorted))

	again, perm := SortCanonical(sorted)
	for i, p := range perm {
		if p != i {
			t.Fatalf("perm[%d] = %d, want identity", i, p)
		}
	}
	assert.Equal(t, sorted, again)
}

func TestSortCanonicalKeepsPairing(t *testing.T) {
	t.Parallel()

	coords := randomCoords(3, 200)
	tags := make([]Coord, len(coords))
	copy(tags, coords)
	features := make([][2]float64, len(coords))
	for i, c := range coords {
		features[i] = [2]float64{float64(c.X), float64(c.Z)}
	}

	sorted, perm := SortCanonical(coords)
	gotTags := Reorder(tags, perm)
	gotFeatures := Reorder(features, perm)

	for i := range sorted {
		require.Equal(t, sorted[i], gotTags[i], "tag at %d", i)
		assert.Equal(t, float64(sorted[i].X), gotFeatures[i][0])
		assert.Equal(t, float64(sorted[i].Z), gotFeatures[i][1])
	}
}

func TestSortCanonicalLeavesInputUntouched(t *testing.T) {
	t.Parallel()

	coords := []Coord{{X: 3}, {X: 1}, {X: 2}}
	_, _ = SortCanonical(coords)
	assert.Equal(t, []Coord{{X: 3}, {X: 1}, {X: 2}}, coords)
}

func TestCanonicalOrderIsBatchMajor(t *testing.T) {
	t.Parallel()

	coords := []Coord{
		{B: 1, X: 0, Y: 0, Z: 0},
		{B: 0, X: 0, Y: 0, Z: 1},
		{B: 0, X: 0, Y: 1, Z: 0},
		{B: 0, X: 1, Y: 0, Z: 0},
	}
	sorted, _ := SortCanonical(coords)
	want := []Coord{
		{B: 0, X: 1, Y: 0, Z: 0},
		{B: 0, X: 0, Y: 1, Z: 0},
		{B: 0, X: 0, Y: 0, Z: 1},
		{B: 1, X: 0, Y: 0, Z: 0},
	}
	assert.Equal(t, want, sorted)
}

func TestReorderNil(t *testing.T) {
	t.Parallel()

	var codes []uint8
	assert.Nil(t, Reorder(codes, []int{}))
}
