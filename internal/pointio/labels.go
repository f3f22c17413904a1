package pointio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/octree.report/internal/fsutil"
)

// Label is a per-point annotation: semantic class in the low 16 bits of the
// stored word, instance id in the high 16 bits.
type Label uint32

// Semantic returns the class id.
func (l Label) Semantic() uint16 { return uint16(l & 0xFFFF) }

// Instance returns the instance id.
func (l Label) Instance() uint16 { return uint16(l >> 16) }

// MakeLabel packs a class and instance id.
func MakeLabel(semantic, instance uint16) Label {
	return Label(uint32(instance)<<16 | uint32(semantic))
}

// ReadLabels decodes a little-endian uint32 label file.
func ReadLabels(r io.Reader) ([]Label, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes of labels", ErrStride, len(data))
	}
	out := make([]Label, len(data)/4)
	for i := range out {
		out[i] = Label(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out, nil
}

// WriteLabels encodes labels as little-endian uint32 words.
func WriteLabels(w io.Writer, labels []Label) error {
	bw := bufio.NewWriter(w)
	var buf [4]byte
	for _, l := range labels {
		binary.LittleEndian.PutUint32(buf[:], uint32(l))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadLabelsFile reads a label file from fs.
func ReadLabelsFile(fs fsutil.FileSystem, path string) ([]Label, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	labels, err := ReadLabels(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return labels, nil
}

// WriteLabelsFile writes labels to path on fs.
func WriteLabelsFile(fs fsutil.FileSystem, path string, labels []Label) error {
	w, err := fs.Create(path)
	if err != nil {
		return err
	}
	if err := WriteLabels(w, labels); err != nil {
		w.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return w.Close()
}

// sensorSuffixes are scan file name suffixes that label files replace with _goose.
var sensorSuffixes = []string{"_vls128", "_pcl"}

// LabelPath returns the label file path for a scan's dataset-relative path:
// same directory, sensor suffix swapped for "_goose", extension ".label".
func LabelPath(scanRel string) string {
	dir, base := filepath.Split(scanRel)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, s := range sensorSuffixes {
		stem = strings.ReplaceAll(stem, s, "_goose")
	}
	return filepath.Join(dir, stem+".label")
}
