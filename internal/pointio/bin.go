package pointio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/octree.report/internal/fsutil"
)

// DefaultStride is the float count per point in scan buffers: x, y, z, intensity.
const DefaultStride = 4

// ErrStride is returned when a buffer does not hold a whole number of points.
var ErrStride = errors.New("pointio: buffer length is not a multiple of the point stride")

// Point is one scanned point. Attrs holds the values after x, y and z, in
// file order (for scan buffers: intensity).
type Point struct {
	Pos   [3]float64
	Attrs []float32
}

// Positions returns the xyz of every point.
func Positions(points []Point) [][3]float64 {
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = p.Pos
	}
	return out
}

// Attr returns attribute k of every point.
func Attr(points []Point, k int) ([]float32, error) {
	out := make([]float32, len(points))
	for i, p := range points {
		if k >= len(p.Attrs) {
			return nil, fmt.Errorf("pointio: point %d has %d attributes, want index %d", i, len(p.Attrs), k)
		}
		out[i] = p.Attrs[k]
	}
	return out, nil
}

// ReadBin decodes a little-endian float32 buffer with stride values per point.
func ReadBin(r io.Reader, stride int) ([]Point, error) {
	if stride < 3 {
		return nil, fmt.Errorf("pointio: stride %d is below 3", stride)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	pointBytes := 4 * stride
	if len(data)%pointBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes, stride %d", ErrStride, len(data), stride)
	}

	n := len(data) / pointBytes
	points := make([]Point, n)
	attrs := make([]float32, n*(stride-3))
	for i := range points {
		rec := data[i*pointBytes : (i+1)*pointBytes]
		for k := 0; k < 3; k++ {
			points[i].Pos[k] = float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[4*k:])))
		}
		if stride > 3 {
			a := attrs[i*(stride-3) : (i+1)*(stride-3) : (i+1)*(stride-3)]
			for k := range a {
				a[k] = math.Float32frombits(binary.LittleEndian.Uint32(rec[4*(k+3):]))
			}
			points[i].Attrs = a
		}
	}
	return points, nil
}

// ReadBinFile reads a scan buffer from fs.
func ReadBinFile(fs fsutil.FileSystem, path string, stride int) ([]Point, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	points, err := ReadBin(f, stride)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}

// WriteBin encodes points as float32 x, y, z followed by their attributes.
// Every point must carry the same number of attributes.
func WriteBin(w io.Writer, points []Point) error {
	bw := bufio.NewWriter(w)
	var buf [4]byte
	put := func(v float32) error {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		_, err := bw.Write(buf[:])
		return err
	}
	for i, p := range points {
		if len(p.Attrs) != len(points[0].Attrs) {
			return fmt.Errorf("pointio: point %d has %d attributes, point 0 has %d", i, len(p.Attrs), len(points[0].Attrs))
		}
		for _, v := range p.Pos {
			if err := put(float32(v)); err != nil {
				return err
			}
		}
		for _, v := range p.Attrs {
			if err := put(v); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteBinFile writes points to path on fs.
func WriteBinFile(fs fsutil.FileSystem, path string, points []Point) error {
	w, err := fs.Create(path)
	if err != nil {
		return err
	}
	if err := WriteBin(w, points); err != nil {
		w.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return w.Close()
}
