package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	// OccupancySymbols is the number of distinct 8-bit occupancy codes.
	OccupancySymbols = 256
	// Octants is the number of children of a voxel.
	Octants = 8
	// NibbleSymbols is the alphabet size of each predictor stage.
	NibbleSymbols = 16
	// ResidualBlocks is the number of residual blocks in each network stack.
	ResidualBlocks = 2

	DefaultChannels   = 32
	DefaultKernelSize = 3
)

// ErrInvalidShape is returned when a tensor does not match the channel count
// and kernel size of its parameter set.
var ErrInvalidShape = errors.New("model: invalid parameter shape")

// Conv is a bias-free sparse convolution: one Channels x Channels matrix per
// kernel offset, offsets ordered x-major from (-r,-r,-r) to (r,r,r).
type Conv struct {
	Weights []*mat.Dense
}

// ResBlock computes conv1(relu(conv0(x))) + x.
type ResBlock struct {
	Conv0 Conv
	Conv1 Conv
}

// Stack is conv, relu, then ResidualBlocks residual blocks.
type Stack struct {
	Stem   Conv
	Blocks []ResBlock
}

// Head maps a feature row to NibbleSymbols logits through one hidden layer.
// Biases are stored as single-row matrices.
type Head struct {
	W1 *mat.Dense
	B1 *mat.Dense
	W2 *mat.Dense
	B2 *mat.Dense
}

// Params is the complete parameter set.
type Params struct {
	Channels   int
	KernelSize int

	// ContextEmbedding maps an occupancy code to a feature row.
	ContextEmbedding *mat.Dense
	Context          Stack

	// OctantEmbedding maps a candidate's octant in its parent to a feature row.
	OctantEmbedding *mat.Dense
	Target          Stack

	LowerHead Head
	// LowerEmbedding maps the true lower nibble into the upper head's input.
	LowerEmbedding *mat.Dense
	UpperHead      Head
}

// KernelVolume returns the number of offsets in a k x k x k kernel.
func KernelVolume(k int) int { return k * k * k }

// tensorSpec describes one named tensor of a parameter set.
type tensorSpec struct {
	Name  string
	Rows  int
	Cols  int
	FanIn int
	Bias  bool
}

// newParams allocates the slice skeleton for the given shape; tensors stay nil.
func newParams(channels, kernel int) (*Params, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: channels %d", ErrInvalidShape, channels)
	}
	if kernel < 1 || kernel%2 == 0 {
		return nil, fmt.Errorf("%w: kernel size %d must be odd and positive", ErrInvalidShape, kernel)
	}
	p := &Params{Channels: channels, KernelSize: kernel}
	for _, s := range []*Stack{&p.Context, &p.Target} {
		s.Stem.Weights = make([]*mat.Dense, KernelVolume(kernel))
		s.Blocks = make([]ResBlock, ResidualBlocks)
		for i := range s.Blocks {
			s.Blocks[i].Conv0.Weights = make([]*mat.Dense, KernelVolume(kernel))
			s.Blocks[i].Conv1.Weights = make([]*mat.Dense, KernelVolume(kernel))
		}
	}
	return p, nil
}

// visit calls fn for every tensor in a fixed order. fn may replace the
// tensor through the pointer.
func (p *Params) visit(fn func(spec tensorSpec, t **mat.Dense) error) error {
	c := p.Channels
	convFanIn := c * KernelVolume(p.KernelSize)

	conv := func(prefix string, cv *Conv) error {
		if len(cv.Weights) != KernelVolume(p.KernelSize) {
			return fmt.Errorf("%w: %s has %d kernel offsets, want %d",
				ErrInvalidShape, prefix, len(cv.Weights), KernelVolume(p.KernelSize))
		}
		for i := range cv.Weights {
			spec := tensorSpec{Name: fmt.Sprintf("%s.w%d", prefix, i), Rows: c, Cols: c, FanIn: convFanIn}
			if err := fn(spec, &cv.Weights[i]); err != nil {
				return err
			}
		}
		return nil
	}
	stack := func(prefix string, s *Stack) error {
		if err := conv(prefix+".stem", &s.Stem); err != nil {
			return err
		}
		if len(s.Blocks) != ResidualBlocks {
			return fmt.Errorf("%w: %s has %d residual blocks, want %d",
				ErrInvalidShape, prefix, len(s.Blocks), ResidualBlocks)
		}
		for i := range s.Blocks {
			if err := conv(fmt.Sprintf("%s.block%d.conv0", prefix, i), &s.Blocks[i].Conv0); err != nil {
				return err
			}
			if err := conv(fmt.Sprintf("%s.block%d.conv1", prefix, i), &s.Blocks[i].Conv1); err != nil {
				return err
			}
		}
		return nil
	}
	head := func(prefix string, h *Head) error {
		specs := []struct {
			spec tensorSpec
			t    **mat.Dense
		}{
			{tensorSpec{Name: prefix + ".w1", Rows: c, Cols: c, FanIn: c}, &h.W1},
			{tensorSpec{Name: prefix + ".b1", Rows: 1, Cols: c, Bias: true}, &h.B1},
			{tensorSpec{Name: prefix + ".w2", Rows: c, Cols: NibbleSymbols, FanIn: c}, &h.W2},
			{tensorSpec{Name: prefix + ".b2", Rows: 1, Cols: NibbleSymbols, Bias: true}, &h.B2},
		}
		for _, s := range specs {
			if err := fn(s.spec, s.t); err != nil {
				return err
			}
		}
		return nil
	}

	if err := fn(tensorSpec{Name: "context.embedding", Rows: OccupancySymbols, Cols: c, FanIn: 2}, &p.ContextEmbedding); err != nil {
		return err
	}
	if err := stack("context", &p.Context); err != nil {
		return err
	}
	if err := fn(tensorSpec{Name: "target.embedding", Rows: Octants, Cols: c, FanIn: 2}, &p.OctantEmbedding); err != nil {
		return err
	}
	if err := stack("target", &p.Target); err != nil {
		return err
	}
	if err := head("head.lower", &p.LowerHead); err != nil {
		return err
	}
	if err := fn(tensorSpec{Name: "head.upper.embedding", Rows: NibbleSymbols, Cols: c, FanIn: 2}, &p.LowerEmbedding); err != nil {
		return err
	}
	return head("head.upper", &p.UpperHead)
}

// Validate checks that every tensor is present with the expected shape.
func (p *Params) Validate() error {
	if _, err := newParams(p.Channels, p.KernelSize); err != nil {
		return err
	}
	return p.visit(func(spec tensorSpec, t **mat.Dense) error {
		if *t == nil {
			return fmt.Errorf("%w: %s is missing", ErrInvalidShape, spec.Name)
		}
		if r, c := (*t).Dims(); r != spec.Rows || c != spec.Cols {
			return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrInvalidShape, spec.Name, r, c, spec.Rows, spec.Cols)
		}
		return nil
	})
}

// TensorInfo names one tensor and its shape.
type TensorInfo struct {
	Name string
	Rows int
	Cols int
	// Data is the live tensor, nil when unset. Callers must not modify it.
	Data *mat.Dense
}

// Tensors lists every tensor in storage order.
func (p *Params) Tensors() []TensorInfo {
	var out []TensorInfo
	_ = p.visit(func(spec tensorSpec, t **mat.Dense) error {
		out = append(out, TensorInfo{Name: spec.Name, Rows: spec.Rows, Cols: spec.Cols, Data: *t})
		return nil
	})
	return out
}

// Count returns the total number of scalar parameters.
func (p *Params) Count() int {
	n := 0
	for _, t := range p.Tensors() {
		n += t.Rows * t.Cols
	}
	return n
}
