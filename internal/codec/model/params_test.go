package model

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/octree.report/internal/fsutil"
)

func TestInitShapes(t *testing.T) {
	t.Parallel()

	p, err := Init(8, 3, 1)
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	assert.Len(t, p.Context.Stem.Weights, 27)
	assert.Len(t, p.Target.Blocks, ResidualBlocks)
	r, c := p.ContextEmbedding.Dims()
	assert.Equal(t, []int{OccupancySymbols, 8}, []int{r, c})
	r, c = p.UpperHead.W2.Dims()
	assert.Equal(t, []int{8, NibbleSymbols}, []int{r, c})

	// 2 stacks x 5 convs x 27 offsets x 8x8, 3 embeddings, 2 heads
	want := 2*5*27*64 + (256+8+16)*8 + 2*(64+8+8*16+16)
	assert.Equal(t, want, p.Count())
}

func TestInitDeterministic(t *testing.T) {
	t.Parallel()

	a, err := Init(4, 3, 7)
	require.NoError(t, err)
	b, err := Init(4, 3, 7)
	require.NoError(t, err)
	c, err := Init(4, 3, 8)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.Context.Stem.Weights[13], b.Context.Stem.Weights[13]))
	assert.False(t, mat.Equal(a.Context.Stem.Weights[13], c.Context.Stem.Weights[13]))
	assert.Zero(t, mat.Sum(a.LowerHead.B1))
}

func TestInitRejectsBadShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		kernel   int
	}{
		{"zero channels", 0, 3},
		{"even kernel", 8, 2},
		{"negative kernel", 8, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Init(tt.channels, tt.kernel, 1)
			assert.True(t, errors.Is(err, ErrInvalidShape), "got %v", err)
		})
	}
}

func TestValidateDetectsWrongShape(t *testing.T) {
	t.Parallel()

	p, err := Zero(4, 1)
	require.NoError(t, err)
	p.LowerHead.W2 = mat.NewDense(4, 15, nil)

	err = p.Validate()
	require.ErrorIs(t, err, ErrInvalidShape)
	assert.Contains(t, err.Error(), "head.lower.w2")
}

func TestValidateDetectsMissingTensor(t *testing.T) {
	t.Parallel()

	p, err := Zero(4, 1)
	require.NoError(t, err)
	p.Target.Blocks[1].Conv1.Weights[0] = nil

	assert.ErrorIs(t, p.Validate(), ErrInvalidShape)
}

func TestSaveLoadPreservesTensors(t *testing.T) {
	t.Parallel()

	p, err := Init(4, 3, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))
	assert.Equal(t, "OCPM", buf.String()[:4])

	got, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, p.Tensors(), got.Tensors())
	assert.True(t, mat.Equal(p.Target.Blocks[1].Conv0.Weights[26], got.Target.Blocks[1].Conv0.Weights[26]))
	assert.True(t, mat.Equal(p.LowerEmbedding, got.LowerEmbedding))
}

func TestLoadRejectsBadHeader(t *testing.T) {
	t.Parallel()

	_, err := Load(bytes.NewReader([]byte("NOPE\x01rest")))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = Load(bytes.NewReader([]byte("OCPM\x09rest")))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Load(bytes.NewReader([]byte("OC")))
	assert.Error(t, err)
}

func TestSaveFileLoadFile(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	p, err := Zero(2, 1)
	require.NoError(t, err)

	require.NoError(t, SaveFile(fs, "/params/zero.ocpm", p))
	got, err := LoadFile(fs, "/params/zero.ocpm")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Channels)
	assert.Equal(t, 1, got.KernelSize)

	_, err = LoadFile(fs, "/params/missing.ocpm")
	assert.Error(t, err)
}
