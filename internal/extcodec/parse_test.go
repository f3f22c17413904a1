package extcodec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tmc13EncodeLog = `MPEG PCC tmc3 version release-v23.0
+ Input
Slice number: 1
positions bitstream size 41234 B (2.71552 bpp)
positions processing time (user): 0.412 s
Total frame processing time: 0.5 s
Total bitstream size 41250 B
Processing time (wall): 0.531 s
`

const tmc13DecodeLog = `MPEG PCC tmc3 version release-v23.0
positions processing time (user): 0.201 s
Processing time (wall): 0.244 s
Processing time (user): 0.240 s
`

const lcpLog = `start compression
compression ratio = 7.4231
compression time = 0.0312
decompression time = 0.0197
statistics of x Min=-45.12, Max=61.8, range=106.92
Max absolute error = 9.99E-3
Max relative error = 9.3E-5
PSNR = 80.61
statistics of y Min=-30.5, Max=28.25, range=58.75
Max absolute error = 1.0E-2
Max relative error = 1.7E-4
PSNR = 75.33
statistics of z Min=-3.2, Max=4.8, range=8
Max absolute error = 9.8E-3
Max relative error = 1.2E-3
PSNR = 58.42
NRMSE= 1.19E-4
`

func TestParseTMC13Encode(t *testing.T) {
	t.Parallel()
	r, err := ParseTMC13Encode(tmc13EncodeLog)
	require.NoError(t, err)
	assert.Equal(t, TMC13Encode{Bytes: 41234, BitsPerPoint: 2.71552, EncodeSeconds: 0.412}, r)
}

func TestParseTMC13Decode(t *testing.T) {
	t.Parallel()
	secs, err := ParseTMC13Decode(tmc13DecodeLog)
	require.NoError(t, err)
	assert.Equal(t, 0.244, secs)
}

func TestParseTMC13Missing(t *testing.T) {
	t.Parallel()
	_, err := ParseTMC13Encode("positions processing time (user): 1 s\n")
	assert.True(t, errors.Is(err, ErrPatternNotFound))
	assert.Contains(t, err.Error(), "bitstream size")

	_, err = ParseTMC13Decode("")
	assert.ErrorIs(t, err, ErrPatternNotFound)
}

func TestParseLCP(t *testing.T) {
	t.Parallel()
	r, err := ParseLCP(lcpLog)
	require.NoError(t, err)

	assert.Equal(t, 7.4231, r.Ratio)
	assert.Equal(t, 0.0312, r.CompressSeconds, "compression time must not match the decompression line")
	assert.Equal(t, 0.0197, r.DecompressSeconds)
	assert.Equal(t, 1.19e-4, r.NRMSE)
	assert.Equal(t, map[string]AxisStats{
		"x": {Min: -45.12, Max: 61.8, Range: 106.92},
		"y": {Min: -30.5, Max: 28.25, Range: 58.75},
		"z": {Min: -3.2, Max: 4.8, Range: 8},
	}, r.Axes)
	assert.Equal(t, []float64{9.99e-3, 1.0e-2, 9.8e-3}, r.MaxAbsErrors)
	assert.Equal(t, []float64{9.3e-5, 1.7e-4, 1.2e-3}, r.MaxRelErrors)
	assert.Equal(t, []float64{80.61, 75.33, 58.42}, r.PSNRs)
}

func TestParseLCPMissing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		out  string
	}{
		{"empty", ""},
		{"no times", "compression ratio = 3\nNRMSE= 1\n"},
		{"only decompression time", "compression ratio = 3\ndecompression time = 1\nNRMSE= 1\n"},
		{"no nrmse", "compression ratio = 3\ncompression time = 1\ndecompression time = 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseLCP(tt.out)
			assert.ErrorIs(t, err, ErrPatternNotFound)
		})
	}
}
