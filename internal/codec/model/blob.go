package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/octree.report/internal/fsutil"
)

const (
	blobMagic   = "OCPM"
	blobVersion = 1
)

var (
	// ErrBadMagic is returned when a blob does not start with the parameter magic.
	ErrBadMagic = errors.New("model: not a parameter blob")
	// ErrUnsupportedVersion is returned for blobs written by a newer format.
	ErrUnsupportedVersion = errors.New("model: unsupported blob version")
)

type tensorBlob struct {
	Rows int
	Cols int
	Data []float64
}

type paramsBlob struct {
	Channels   int
	KernelSize int
	Tensors    map[string]tensorBlob
}

// Save writes p as a parameter blob.
func (p *Params) Save(w io.Writer) error {
	if err := p.Validate(); err != nil {
		return err
	}

	blob := paramsBlob{
		Channels:   p.Channels,
		KernelSize: p.KernelSize,
		Tensors:    make(map[string]tensorBlob),
	}
	_ = p.visit(func(spec tensorSpec, t **mat.Dense) error {
		data := make([]float64, spec.Rows*spec.Cols)
		for r := 0; r < spec.Rows; r++ {
			copy(data[r*spec.Cols:(r+1)*spec.Cols], (*t).RawRowView(r))
		}
		blob.Tensors[spec.Name] = tensorBlob{Rows: spec.Rows, Cols: spec.Cols, Data: data}
		return nil
	})

	if _, err := io.WriteString(w, blobMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if _, err := w.Write([]byte{blobVersion}); err != nil {
		return fmt.Errorf("write version: %w", err)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := gob.NewEncoder(enc).Encode(&blob); err != nil {
		enc.Close()
		return fmt.Errorf("encode params: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

// Load reads a parameter blob and validates every tensor shape.
func Load(r io.Reader) (*Params, error) {
	header := make([]byte, len(blobMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(header[:len(blobMagic)]) != blobMagic {
		return nil, ErrBadMagic
	}
	if v := header[len(blobMagic)]; v != blobVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	var blob paramsBlob
	if err := gob.NewDecoder(dec).Decode(&blob); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}

	p, err := newParams(blob.Channels, blob.KernelSize)
	if err != nil {
		return nil, err
	}
	err = p.visit(func(spec tensorSpec, t **mat.Dense) error {
		tb, ok := blob.Tensors[spec.Name]
		if !ok {
			return fmt.Errorf("%w: %s is missing", ErrInvalidShape, spec.Name)
		}
		if tb.Rows != spec.Rows || tb.Cols != spec.Cols || len(tb.Data) != spec.Rows*spec.Cols {
			return fmt.Errorf("%w: %s is %dx%d with %d values, want %dx%d",
				ErrInvalidShape, spec.Name, tb.Rows, tb.Cols, len(tb.Data), spec.Rows, spec.Cols)
		}
		*t = mat.NewDense(spec.Rows, spec.Cols, tb.Data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveFile writes p to path on fs.
func SaveFile(fs fsutil.FileSystem, path string, p *Params) error {
	var buf bytes.Buffer
	if err := p.Save(&buf); err != nil {
		return err
	}
	if err := fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write params %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a parameter blob from path on fs.
func LoadFile(fs fsutil.FileSystem, path string) (*Params, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params %s: %w", path, err)
	}
	p, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load params %s: %w", path, err)
	}
	return p, nil
}
