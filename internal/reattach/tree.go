package reattach

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/octree.report/internal/fsutil"
	"github.com/banshee-data/octree.report/internal/monitoring"
	"github.com/banshee-data/octree.report/internal/pointio"
	"github.com/banshee-data/octree.report/internal/security"
)

// Tree describes a mirrored dataset layout. Decoded clouds (quantized
// ASCII PLY or decompressed .bin) live under DecodedRoot, the original
// scans with the same relative path and a .bin extension under
// OriginalRoot, and outputs are mirrored under OutRoot.
type Tree struct {
	FS           fsutil.FileSystem
	DecodedRoot  string
	OriginalRoot string
	OutRoot      string
	// LabelRoot holds the original .label files, named by
	// pointio.LabelPath. Only label restoration uses it.
	LabelRoot string
	// Quantizer maps decoded positions back to metres. Nil means decoded
	// positions are already metric.
	Quantizer *pointio.Quantizer
	Stride    int
	Threshold float64
	// SkipExisting leaves outputs that already exist untouched.
	SkipExisting bool
}

// decoded returns the decoded positions of rel in metres.
func (t Tree) decoded(rel string) ([][3]float64, error) {
	path := filepath.Join(t.DecodedRoot, rel)
	var positions [][3]float64
	if strings.EqualFold(filepath.Ext(rel), ".ply") {
		cloud, err := pointio.ReadPLYFile(t.FS, path)
		if err != nil {
			return nil, err
		}
		positions = pointio.Positions(cloud.Points)
	} else {
		points, err := pointio.ReadBinFile(t.FS, path, t.stride())
		if err != nil {
			return nil, err
		}
		positions = pointio.Positions(points)
	}
	if t.Quantizer != nil {
		positions = t.Quantizer.DequantizePositions(positions)
	}
	return positions, nil
}

func (t Tree) stride() int {
	if t.Stride <= 0 {
		return pointio.DefaultStride
	}
	return t.Stride
}

func (t Tree) original(rel string) ([]pointio.Point, error) {
	path, err := security.MirrorPath(t.OriginalRoot, rel, ".bin")
	if err != nil {
		return nil, err
	}
	return pointio.ReadBinFile(t.FS, path, t.stride())
}

func (t Tree) skip(out string) bool {
	if t.SkipExisting && t.FS.Exists(out) {
		monitoring.Debugf("[reattach] %s exists, skipping", out)
		return true
	}
	return false
}

// RestoreIntensityFile writes rel's decoded positions with the intensity
// of each nearest original point as a .bin under OutRoot and returns its
// path.
func (t Tree) RestoreIntensityFile(rel string) (string, error) {
	out, err := security.MirrorPath(t.OutRoot, rel, ".bin")
	if err != nil {
		return "", err
	}
	if t.skip(out) {
		return out, nil
	}

	queries, err := t.decoded(rel)
	if err != nil {
		return "", err
	}
	orig, err := t.original(rel)
	if err != nil {
		return "", err
	}
	intensity, err := pointio.Attr(orig, 0)
	if err != nil {
		return "", fmt.Errorf("%s: %w", rel, err)
	}
	ix, err := NewIndex(pointio.Positions(orig))
	if err != nil {
		return "", fmt.Errorf("%s: %w", rel, err)
	}
	restored, err := Restore(ix, intensity, queries, t.Threshold)
	if err != nil {
		return "", fmt.Errorf("%s: %w", rel, err)
	}

	points := make([]pointio.Point, len(queries))
	for i, q := range queries {
		points[i] = pointio.Point{Pos: q, Attrs: []float32{restored[i]}}
	}
	if err := t.FS.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}
	if err := pointio.WriteBinFile(t.FS, out, points); err != nil {
		return "", err
	}
	return out, nil
}

// RestoreLabelsFile writes a .label file for rel's decoded points, each
// taking the label of its nearest original point, and returns its path.
func (t Tree) RestoreLabelsFile(rel string) (string, error) {
	labelRel := pointio.LabelPath(rel)
	out, err := security.MirrorPath(t.OutRoot, labelRel, "")
	if err != nil {
		return "", err
	}
	if t.skip(out) {
		return out, nil
	}
	labelPath, err := security.MirrorPath(t.LabelRoot, labelRel, "")
	if err != nil {
		return "", err
	}

	queries, err := t.decoded(rel)
	if err != nil {
		return "", err
	}
	orig, err := t.original(rel)
	if err != nil {
		return "", err
	}
	labels, err := pointio.ReadLabelsFile(t.FS, labelPath)
	if err != nil {
		return "", err
	}
	if len(labels) != len(orig) {
		return "", fmt.Errorf("%s: original point count mismatch: bin %d vs label %d", rel, len(orig), len(labels))
	}
	ix, err := NewIndex(pointio.Positions(orig))
	if err != nil {
		return "", fmt.Errorf("%s: %w", rel, err)
	}
	restored, err := RestoreLabels(ix, labels, queries, t.Threshold)
	if err != nil {
		return "", fmt.Errorf("%s: %w", rel, err)
	}

	if err := t.FS.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}
	if err := pointio.WriteLabelsFile(t.FS, out, restored); err != nil {
		return "", err
	}
	return out, nil
}
