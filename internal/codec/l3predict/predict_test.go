package l3predict

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/octree.report/internal/codec/model"
)

func TestSplitNibbles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code         uint8
		lower, upper uint8
	}{
		{0x00, 0x0, 0x0},
		{0x0F, 0xF, 0x0},
		{0xF0, 0x0, 0xF},
		{0xA5, 0x5, 0xA},
		{0xFF, 0xF, 0xF},
	}
	for _, tt := range tests {
		lower, upper := SplitNibbles(tt.code)
		assert.Equal(t, tt.lower, lower, "lower of %#x", tt.code)
		assert.Equal(t, tt.upper, upper, "upper of %#x", tt.code)
	}
}

func TestSoftmax(t *testing.T) {
	t.Parallel()

	row := make([]float64, 16)
	softmax(row)
	for _, v := range row {
		assert.Equal(t, 1.0/16, v)
	}

	row = []float64{1000, 0, -1000}
	softmax(row)
	assert.InDelta(t, 1.0, row[0], 1e-12)
	assert.False(t, math.IsNaN(row[1]))
	assert.InDelta(t, 1.0, floats.Sum(row), 1e-12)
}

func TestPredictUniformWithZeroParams(t *testing.T) {
	t.Parallel()

	p, err := model.Zero(4, 3)
	require.NoError(t, err)

	codes := []uint8{0x01, 0x80, 0xFF}
	pred, err := Predict(p, mat.NewDense(3, 4, nil), codes)
	require.NoError(t, err)

	require.Equal(t, 3, pred.Len())
	assert.Equal(t, []uint8{0x1, 0x0, 0xF}, pred.LowerTrue)
	assert.Equal(t, []uint8{0x0, 0x8, 0xF}, pred.UpperTrue)
	for i := range codes {
		assert.Equal(t, 1.0/16, pred.LowerProb(i))
		assert.Equal(t, 1.0/16, pred.UpperProb(i))
	}
}

func TestPredictRowsAreDistributions(t *testing.T) {
	t.Parallel()

	p, err := model.Init(8, 3, 5)
	require.NoError(t, err)

	target := mat.NewDense(4, 8, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 8; j++ {
			target.Set(i, j, float64(i*8+j)/10-1)
		}
	}
	pred, err := Predict(p, target, []uint8{3, 17, 200, 255})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		for _, m := range []*mat.Dense{pred.Lower, pred.Upper} {
			row := m.RawRowView(i)
			assert.InDelta(t, 1.0, floats.Sum(row), 1e-9)
			assert.GreaterOrEqual(t, floats.Min(row), 0.0)
		}
	}
}

func TestPredictUpperDependsOnLowerNibble(t *testing.T) {
	t.Parallel()

	p, err := model.Zero(2, 1)
	require.NoError(t, err)
	// Route the lower embedding straight to the upper head's logits.
	p.UpperHead.W1.Set(0, 0, 1)
	p.UpperHead.W2.Set(0, 3, 1)
	p.LowerEmbedding.Set(5, 0, 2)

	pred, err := Predict(p, mat.NewDense(2, 2, nil), []uint8{0x35, 0x34})
	require.NoError(t, err)

	assert.Greater(t, pred.UpperProb(0), pred.UpperProb(1))
	assert.Equal(t, 1.0/16, pred.UpperProb(1))
	assert.Equal(t, 1.0/16, pred.LowerProb(0))
}

func TestPredictEmptyAndMismatch(t *testing.T) {
	t.Parallel()

	p, err := model.Zero(4, 1)
	require.NoError(t, err)

	pred, err := Predict(p, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, pred.Len())

	_, err = Predict(p, nil, []uint8{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Predict(p, mat.NewDense(2, 4, nil), []uint8{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Predict(p, mat.NewDense(1, 3, nil), []uint8{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
