package l2features

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/octree.report/internal/codec/l1voxel"
	"github.com/banshee-data/octree.report/internal/codec/model"
)

// neighbourhood maps every voxel of a set to its row and precomputes, for
// each kernel offset, which row (if any) sits at that offset.
type neighbourhood struct {
	n int
	// rows[o][i] is the row of the neighbour of voxel i at offset o, or -1.
	rows [][]int
}

// kernelOffsets lists the offsets of a k x k x k kernel, x-major.
func kernelOffsets(k int) [][3]int32 {
	r := int32(k / 2)
	out := make([][3]int32, 0, model.KernelVolume(k))
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				out = append(out, [3]int32{dx, dy, dz})
			}
		}
	}
	return out
}

func newNeighbourhood(coords []l1voxel.Coord, kernel int) *neighbourhood {
	index := make(map[l1voxel.Coord]int, len(coords))
	for i, c := range coords {
		index[c] = i
	}
	offsets := kernelOffsets(kernel)
	nb := &neighbourhood{n: len(coords), rows: make([][]int, len(offsets))}
	for o, off := range offsets {
		rows := make([]int, len(coords))
		for i, c := range coords {
			j, ok := index[c.Offset(off[0], off[1], off[2])]
			if !ok {
				j = -1
			}
			rows[i] = j
		}
		nb.rows[o] = rows
	}
	return nb
}

// conv applies a bias-free sparse convolution. Missing neighbours contribute
// nothing; voxels in other batches are never neighbours.
func (nb *neighbourhood) conv(c model.Conv, in *mat.Dense) *mat.Dense {
	_, ch := in.Dims()
	_, outCh := c.Weights[0].Dims()
	out := mat.NewDense(nb.n, outCh, nil)
	gathered := mat.NewDense(nb.n, ch, nil)
	term := mat.NewDense(nb.n, outCh, nil)

	for o, rows := range nb.rows {
		gathered.Zero()
		hit := false
		for i, j := range rows {
			if j >= 0 {
				gathered.SetRow(i, in.RawRowView(j))
				hit = true
			}
		}
		if !hit {
			continue
		}
		term.Mul(gathered, c.Weights[o])
		out.Add(out, term)
	}
	return out
}

func (nb *neighbourhood) resBlock(b model.ResBlock, x *mat.Dense) *mat.Dense {
	h := nb.conv(b.Conv0, x)
	relu(h)
	y := nb.conv(b.Conv1, h)
	y.Add(y, x)
	return y
}

// stack runs conv, relu and the residual blocks.
func (nb *neighbourhood) stack(s model.Stack, x *mat.Dense) *mat.Dense {
	h := nb.conv(s.Stem, x)
	relu(h)
	for _, b := range s.Blocks {
		h = nb.resBlock(b, h)
	}
	return h
}

func relu(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, m)
}
