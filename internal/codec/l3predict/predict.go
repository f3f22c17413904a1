package l3predict

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/octree.report/internal/codec/model"
)

// ErrShapeMismatch is returned when features and codes disagree.
var ErrShapeMismatch = errors.New("l3predict: shape mismatch")

// Prediction holds one probability row per candidate for each nibble,
// alongside the true nibbles the rows are scored against.
type Prediction struct {
	Lower     *mat.Dense
	Upper     *mat.Dense
	LowerTrue []uint8
	UpperTrue []uint8
}

// Len returns the number of candidates.
func (p *Prediction) Len() int { return len(p.LowerTrue) }

// LowerProb returns the probability assigned to candidate i's true lower nibble.
func (p *Prediction) LowerProb(i int) float64 { return p.Lower.At(i, int(p.LowerTrue[i])) }

// UpperProb returns the probability assigned to candidate i's true upper nibble.
func (p *Prediction) UpperProb(i int) float64 { return p.Upper.At(i, int(p.UpperTrue[i])) }

// SplitNibbles returns code&0x0F and code>>4.
func SplitNibbles(code uint8) (lower, upper uint8) {
	return code & 0x0F, code >> 4
}

// Predict scores codes against the target features, one row per candidate.
// No candidates yields an empty Prediction.
func Predict(p *model.Params, target *mat.Dense, codes []uint8) (*Prediction, error) {
	if len(codes) == 0 {
		return &Prediction{}, nil
	}
	if target == nil {
		return nil, fmt.Errorf("%w: no target features for %d codes", ErrShapeMismatch, len(codes))
	}
	rows, cols := target.Dims()
	if rows != len(codes) || cols != p.Channels {
		return nil, fmt.Errorf("%w: target is %dx%d for %d codes and %d channels",
			ErrShapeMismatch, rows, cols, len(codes), p.Channels)
	}

	pred := &Prediction{
		LowerTrue: make([]uint8, len(codes)),
		UpperTrue: make([]uint8, len(codes)),
	}
	for i, code := range codes {
		pred.LowerTrue[i], pred.UpperTrue[i] = SplitNibbles(code)
	}

	pred.Lower = head(p.LowerHead, target)

	// Stage 1 sees the true lower nibble.
	x := mat.NewDense(rows, cols, nil)
	for i, lower := range pred.LowerTrue {
		floats.AddTo(x.RawRowView(i), target.RawRowView(i), p.LowerEmbedding.RawRowView(int(lower)))
	}
	pred.Upper = head(p.UpperHead, x)

	return pred, nil
}

// head computes softmax(relu(x W1 + b1) W2 + b2) row by row.
func head(h model.Head, x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	_, hidden := h.W1.Dims()
	_, out := h.W2.Dims()

	var z mat.Dense
	z.Mul(x, h.W1)
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		floats.Add(row, h.B1.RawRowView(0))
		for j := 0; j < hidden; j++ {
			row[j] = math.Max(row[j], 0)
		}
	}

	logits := mat.NewDense(rows, out, nil)
	logits.Mul(&z, h.W2)
	for i := 0; i < rows; i++ {
		row := logits.RawRowView(i)
		floats.Add(row, h.B2.RawRowView(0))
		softmax(row)
	}
	return logits
}

// softmax normalises row in place after shifting by its maximum, so equal
// logits give exactly 1/len(row).
func softmax(row []float64) {
	m := floats.Max(row)
	for i, v := range row {
		row[i] = math.Exp(v - m)
	}
	floats.Scale(1/floats.Sum(row), row)
}
