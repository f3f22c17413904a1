package l1voxel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/octree.report/internal/codec/l1voxel"
	"github.com/banshee-data/octree.report/internal/testutil"
)

func TestExpandRoundTripsEveryPair(t *testing.T) {
	t.Parallel()

	clouds := map[string][]l1voxel.Coord{
		"grid":   testutil.GridCloud(4, 4),
		"line":   testutil.LineCloud(100, 2),
		"random": testutil.RandomCloud(9, 3000, 40),
	}

	for name, cloud := range clouds {
		t.Run(name, func(t *testing.T) {
			pyr, err := l1voxel.BuildPyramid(cloud, l1voxel.DefaultMinLevelPoints)
			require.NoError(t, err)

			for i := 0; i < pyr.Pairs(); i++ {
				coarse, fine := pyr.Pair(i)
				cand, err := l1voxel.Expand(coarse)
				require.NoError(t, err)
				require.NoError(t, l1voxel.VerifyExpansion(cand, fine))
				assert.Equal(t, fine.Depth, cand.Depth)

				for j, c := range cand.Coords {
					parent := coarse.Coords[cand.Parent[j]]
					require.Equal(t, c, parent.Child(cand.Octant[j]))
					require.NotZero(t, coarse.Occupancy[cand.Parent[j]]&l1voxel.OctantBit(cand.Octant[j]))
				}
			}
		})
	}
}

func TestExpandLeafHasNoOccupancy(t *testing.T) {
	t.Parallel()

	pyr, err := l1voxel.BuildPyramid(testutil.GridCloud(1, 4), l1voxel.DefaultMinLevelPoints)
	require.NoError(t, err)

	_, err = l1voxel.Expand(pyr.Leaf())
	assert.ErrorIs(t, err, l1voxel.ErrNoOccupancy)
}

func TestVerifyExpansionDetectsCorruptCode(t *testing.T) {
	t.Parallel()

	pyr, err := l1voxel.BuildPyramid(testutil.GridCloud(1, 4), l1voxel.DefaultMinLevelPoints)
	require.NoError(t, err)
	coarse, fine := pyr.Pair(0)

	corrupt := coarse
	corrupt.Occupancy = append([]uint8(nil), coarse.Occupancy...)
	corrupt.Occupancy[0] &^= l1voxel.OctantBit(7)

	cand, err := l1voxel.Expand(corrupt)
	require.NoError(t, err)

	err = l1voxel.VerifyExpansion(cand, fine)
	require.Error(t, err)
	assert.True(t, errors.Is(err, l1voxel.ErrOccupancyInvariant))

	var inv *l1voxel.InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, fine.Depth, inv.Depth)
	assert.Equal(t, 64, inv.WantLen)
	assert.Equal(t, 63, inv.GotLen)
}

func TestVerifyExpansionNamesFirstMismatch(t *testing.T) {
	t.Parallel()

	fine := l1voxel.Level{Depth: 0, Coords: []l1voxel.Coord{{X: 0}, {X: 1}}}
	cand := l1voxel.Candidates{Depth: 0, Coords: []l1voxel.Coord{{X: 0}, {X: 3}}}

	var inv *l1voxel.InvariantError
	require.ErrorAs(t, l1voxel.VerifyExpansion(cand, fine), &inv)
	assert.Equal(t, 1, inv.Index)
	assert.Equal(t, l1voxel.Coord{X: 1}, inv.Want)
	assert.Equal(t, l1voxel.Coord{X: 3}, inv.Got)
	assert.Contains(t, inv.Error(), "index 1")
}
