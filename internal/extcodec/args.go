package extcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/octree.report/internal/fsutil"
	"github.com/banshee-data/octree.report/internal/pointio"
)

// TMC13Job names the files of one G-PCC encode and decode cycle.
type TMC13Job struct {
	Config        string
	Scale         float64
	Input         string
	Compressed    string
	Reconstructed string
}

// EncodeArgs returns the tmc3 arguments for geometry encoding.
func (j TMC13Job) EncodeArgs() []string {
	return []string{
		"--mode=0",
		"--config=" + j.Config,
		"--positionQuantizationScale=" + formatFloat(j.Scale),
		"--uncompressedDataPath=" + j.Input,
		"--compressedStreamPath=" + j.Compressed,
	}
}

// DecodeArgs returns the tmc3 arguments for reconstruction.
func (j TMC13Job) DecodeArgs() []string {
	return []string{
		"--mode=1",
		"--compressedStreamPath=" + j.Compressed,
		"--reconstructedDataPath=" + j.Reconstructed,
	}
}

// LCPJob names the files of one LCP compress and decompress cycle.
// LCP works on one float32 file per axis.
type LCPJob struct {
	Inputs     [3]string
	Compressed string
	Outputs    [3]string
	Points     int
	ErrorBound float64
}

// Args returns the lcp arguments for a combined compress and decompress run
// with an absolute error bound.
func (j LCPJob) Args() []string {
	args := []string{"-i"}
	args = append(args, j.Inputs[:]...)
	args = append(args, "-z", j.Compressed, "-o")
	args = append(args, j.Outputs[:]...)
	return append(args,
		"-1", strconv.Itoa(j.Points),
		"-eb", formatFloat(j.ErrorBound),
		"-bt", "1", "-a",
	)
}

// AxisPaths returns the per-axis file names for stem inside dir:
// stem_x.dat, stem_y.dat, stem_z.dat.
func AxisPaths(dir, stem string) [3]string {
	var p [3]string
	for i, a := range "xyz" {
		p[i] = filepath.Join(dir, fmt.Sprintf("%s_%c.dat", stem, a))
	}
	return p
}

// StemOf strips the directory and extension from path.
func StemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WriteAxisFiles splits point positions into three little-endian float32
// files, one per axis, and returns their paths.
func WriteAxisFiles(fsys fsutil.FileSystem, dir, stem string, points []pointio.Point) ([3]string, error) {
	paths := AxisPaths(dir, stem)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return paths, err
	}
	buf := make([]byte, 4*len(points))
	for axis := range 3 {
		for i, p := range points {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(p.Pos[axis])))
		}
		if err := fsys.WriteFile(paths[axis], buf, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", paths[axis], err)
		}
	}
	return paths, nil
}

// ReadAxisFiles is the inverse of WriteAxisFiles. All three files must
// hold the same number of values.
func ReadAxisFiles(fsys fsutil.FileSystem, paths [3]string) ([]pointio.Point, error) {
	var axes [3][]float32
	for i, path := range paths {
		data, err := fsys.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if len(data)%4 != 0 {
			return nil, fmt.Errorf("%s: %w", path, pointio.ErrStride)
		}
		vals := make([]float32, len(data)/4)
		if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, vals); err != nil {
			return nil, err
		}
		axes[i] = vals
	}
	if len(axes[0]) != len(axes[1]) || len(axes[0]) != len(axes[2]) {
		return nil, fmt.Errorf("axis files disagree on point count: %d/%d/%d",
			len(axes[0]), len(axes[1]), len(axes[2]))
	}
	points := make([]pointio.Point, len(axes[0]))
	for i := range points {
		points[i].Pos = [3]float64{float64(axes[0][i]), float64(axes[1][i]), float64(axes[2][i])}
	}
	return points, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
