package pointio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/octree.report/internal/fsutil"
)

// ErrPLYFormat is returned for PLY input this reader does not understand.
var ErrPLYFormat = errors.New("pointio: unsupported or malformed PLY")

// PLYCloud is the vertex element of a PLY file. Properties other than x, y
// and z land in each point's Attrs, named by AttrNames.
type PLYCloud struct {
	AttrNames []string
	Points    []Point
}

type plyProperty struct {
	name string
	kind string
}

var plyTypeSizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

type plyHeader struct {
	format   string
	vertices int
	props    []plyProperty
}

func readPLYHeader(br *bufio.Reader) (plyHeader, error) {
	var h plyHeader
	line, err := br.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return h, fmt.Errorf("%w: missing ply magic", ErrPLYFormat)
	}
	inVertex := false
	seenVertex := false
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return h, fmt.Errorf("%w: header ended early: %v", ErrPLYFormat, err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return h, fmt.Errorf("%w: %q", ErrPLYFormat, strings.TrimSpace(line))
			}
			h.format = fields[1]
		case "comment", "obj_info":
		case "element":
			if len(fields) != 3 {
				return h, fmt.Errorf("%w: %q", ErrPLYFormat, strings.TrimSpace(line))
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return h, fmt.Errorf("%w: element count %q", ErrPLYFormat, fields[2])
			}
			inVertex = fields[1] == "vertex"
			if inVertex {
				h.vertices = n
				seenVertex = true
			} else if !seenVertex && n > 0 {
				return h, fmt.Errorf("%w: element %q precedes vertex", ErrPLYFormat, fields[1])
			}
		case "property":
			if !inVertex {
				continue
			}
			if len(fields) != 3 {
				return h, fmt.Errorf("%w: vertex property %q", ErrPLYFormat, strings.TrimSpace(line))
			}
			if _, ok := plyTypeSizes[fields[1]]; !ok {
				return h, fmt.Errorf("%w: property type %q", ErrPLYFormat, fields[1])
			}
			h.props = append(h.props, plyProperty{name: fields[2], kind: fields[1]})
		case "end_header":
			if !seenVertex {
				return h, fmt.Errorf("%w: no vertex element", ErrPLYFormat)
			}
			return h, nil
		default:
			return h, fmt.Errorf("%w: header line %q", ErrPLYFormat, strings.TrimSpace(line))
		}
	}
}

// ReadPLY reads the vertex element of an ASCII or binary little-endian PLY.
func ReadPLY(r io.Reader) (*PLYCloud, error) {
	br := bufio.NewReader(r)
	h, err := readPLYHeader(br)
	if err != nil {
		return nil, err
	}

	xyz := [3]int{-1, -1, -1}
	var attrIdx []int
	cloud := &PLYCloud{}
	for i, p := range h.props {
		switch p.name {
		case "x":
			xyz[0] = i
		case "y":
			xyz[1] = i
		case "z":
			xyz[2] = i
		default:
			attrIdx = append(attrIdx, i)
			cloud.AttrNames = append(cloud.AttrNames, p.name)
		}
	}
	if xyz[0] < 0 || xyz[1] < 0 || xyz[2] < 0 {
		return nil, fmt.Errorf("%w: vertex lacks x, y or z", ErrPLYFormat)
	}

	var next func() ([]float64, error)
	switch h.format {
	case "ascii":
		next = asciiRows(br, len(h.props))
	case "binary_little_endian":
		next = binaryRows(br, h.props)
	default:
		return nil, fmt.Errorf("%w: format %q", ErrPLYFormat, h.format)
	}

	cloud.Points = make([]Point, h.vertices)
	for i := range cloud.Points {
		row, err := next()
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		p := &cloud.Points[i]
		for k, j := range xyz {
			p.Pos[k] = row[j]
		}
		if len(attrIdx) > 0 {
			p.Attrs = make([]float32, len(attrIdx))
			for k, j := range attrIdx {
				p.Attrs[k] = float32(row[j])
			}
		}
	}
	return cloud, nil
}

func asciiRows(br *bufio.Reader, width int) func() ([]float64, error) {
	row := make([]float64, width)
	return func() ([]float64, error) {
		for {
			line, err := br.ReadString('\n')
			fields := strings.Fields(line)
			if len(fields) == 0 {
				if err != nil {
					return nil, fmt.Errorf("%w: unexpected end of vertex data", ErrPLYFormat)
				}
				continue
			}
			if len(fields) < width {
				return nil, fmt.Errorf("%w: %d values, want %d", ErrPLYFormat, len(fields), width)
			}
			for k := 0; k < width; k++ {
				v, perr := strconv.ParseFloat(fields[k], 64)
				if perr != nil {
					return nil, fmt.Errorf("%w: %v", ErrPLYFormat, perr)
				}
				row[k] = v
			}
			return row, nil
		}
	}
}

func binaryRows(br *bufio.Reader, props []plyProperty) func() ([]float64, error) {
	size := 0
	for _, p := range props {
		size += plyTypeSizes[p.kind]
	}
	buf := make([]byte, size)
	row := make([]float64, len(props))
	le := binary.LittleEndian
	return func() ([]float64, error) {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPLYFormat, err)
		}
		off := 0
		for k, p := range props {
			b := buf[off:]
			switch p.kind {
			case "char", "int8":
				row[k] = float64(int8(b[0]))
			case "uchar", "uint8":
				row[k] = float64(b[0])
			case "short", "int16":
				row[k] = float64(int16(le.Uint16(b)))
			case "ushort", "uint16":
				row[k] = float64(le.Uint16(b))
			case "int", "int32":
				row[k] = float64(int32(le.Uint32(b)))
			case "uint", "uint32":
				row[k] = float64(le.Uint32(b))
			case "float", "float32":
				row[k] = float64(math.Float32frombits(le.Uint32(b)))
			case "double", "float64":
				row[k] = math.Float64frombits(le.Uint64(b))
			}
			off += plyTypeSizes[p.kind]
		}
		return row, nil
	}
}

// ReadPLYFile reads a PLY cloud from fs.
func ReadPLYFile(fs fsutil.FileSystem, path string) (*PLYCloud, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cloud, err := ReadPLY(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cloud, nil
}

// WritePLYASCII writes points as an ASCII PLY with float x, y, z followed by
// one float property per attribute name.
func WritePLYASCII(w io.Writer, points []Point, attrNames ...string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\nelement vertex %d\n", len(points))
	for _, name := range []string{"x", "y", "z"} {
		fmt.Fprintf(bw, "property float %s\n", name)
	}
	for _, name := range attrNames {
		fmt.Fprintf(bw, "property float %s\n", name)
	}
	bw.WriteString("end_header\n")

	for i, p := range points {
		if len(p.Attrs) != len(attrNames) {
			return fmt.Errorf("pointio: point %d has %d attributes, header names %d", i, len(p.Attrs), len(attrNames))
		}
		bw.WriteString(strconv.FormatFloat(p.Pos[0], 'g', -1, 64))
		for _, v := range p.Pos[1:] {
			bw.WriteByte(' ')
			bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		for _, v := range p.Attrs {
			bw.WriteByte(' ')
			bw.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WritePLYFile writes an ASCII PLY to path on fs.
func WritePLYFile(fs fsutil.FileSystem, path string, points []Point, attrNames ...string) error {
	w, err := fs.Create(path)
	if err != nil {
		return err
	}
	if err := WritePLYASCII(w, points, attrNames...); err != nil {
		w.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return w.Close()
}
