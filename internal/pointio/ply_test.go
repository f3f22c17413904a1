package pointio

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/octree.report/internal/fsutil"
)

func TestReadPLYASCII(t *testing.T) {
	t.Parallel()

	src := `ply
format ascii 1.0
comment quantized
element vertex 2
property float x
property float y
property float z
property uchar intensity
element face 0
property list uchar int vertex_indices
end_header
131072 131073 131074 12
1.5 -2 3e2 255
`
	cloud, err := ReadPLY(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"intensity"}, cloud.AttrNames)
	require.Len(t, cloud.Points, 2)
	assert.Equal(t, [3]float64{131072, 131073, 131074}, cloud.Points[0].Pos)
	assert.Equal(t, []float32{12}, cloud.Points[0].Attrs)
	assert.Equal(t, [3]float64{1.5, -2, 300}, cloud.Points[1].Pos)
}

func TestReadPLYBinaryLittleEndian(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_little_endian 1.0\nelement vertex 2\n" +
		"property double x\nproperty float y\nproperty int z\nproperty ushort ring\nend_header\n")
	le := binary.LittleEndian
	for _, v := range []struct {
		x    float64
		y    float32
		z    int32
		ring uint16
	}{{1.25, -3.5, -7, 4}, {0, 2, 9, 65535}} {
		_ = binary.Write(&buf, le, math.Float64bits(v.x))
		_ = binary.Write(&buf, le, math.Float32bits(v.y))
		_ = binary.Write(&buf, le, v.z)
		_ = binary.Write(&buf, le, v.ring)
	}

	cloud, err := ReadPLY(&buf)
	require.NoError(t, err)
	require.Len(t, cloud.Points, 2)
	assert.Equal(t, [3]float64{1.25, -3.5, -7}, cloud.Points[0].Pos)
	assert.Equal(t, []float32{4}, cloud.Points[0].Attrs)
	assert.Equal(t, []float32{65535}, cloud.Points[1].Attrs)
}

func TestReadPLYErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{"not ply", "obj\n"},
		{"no vertex", "ply\nformat ascii 1.0\nend_header\n"},
		{"missing z", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nend_header\n1 2\n"},
		{"big endian", "ply\nformat binary_big_endian 1.0\nelement vertex 0\nproperty float x\nproperty float y\nproperty float z\nend_header\n"},
		{"short data", "ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n1 2 3\n"},
		{"bad number", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n1 two 3\n"},
		{"unknown type", "ply\nformat ascii 1.0\nelement vertex 1\nproperty quad x\nend_header\n"},
		{"truncated header", "ply\nformat ascii 1.0\nelement vertex 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPLY(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, ErrPLYFormat)
		})
	}
}

func TestWritePLYASCIIReadsBack(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	points := []Point{
		{Pos: [3]float64{131072, 131000, 140000}, Attrs: []float32{0.5}},
		{Pos: [3]float64{0.001, -2.5, 1e6}, Attrs: []float32{0.25}},
	}
	require.NoError(t, WritePLYFile(fs, "/q/a.ply", points, "intensity"))

	raw, err := fs.ReadFile("/q/a.ply")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "element vertex 2\n")
	assert.Contains(t, string(raw), "\n131072 131000 140000 0.5\n")

	cloud, err := ReadPLYFile(fs, "/q/a.ply")
	require.NoError(t, err)
	assert.Equal(t, points, cloud.Points)
	assert.Equal(t, []string{"intensity"}, cloud.AttrNames)

	var buf bytes.Buffer
	assert.Error(t, WritePLYASCII(&buf, points))
}
