package extcodec

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrPatternNotFound is returned when compressor output lacks a metric.
var ErrPatternNotFound = errors.New("extcodec: pattern not found in output")

var (
	tmc13Bitstream = regexp.MustCompile(`positions bitstream size (\d+) B \(([0-9.]+) bpp\)`)
	tmc13EncTime   = regexp.MustCompile(`positions processing time.*: ([0-9.]+) s`)
	tmc13DecTime   = regexp.MustCompile(`Processing time \(wall\): ([0-9.]+) s`)

	lcpRatio     = regexp.MustCompile(`\bcompression ratio = ([0-9.]+)`)
	lcpCompTime  = regexp.MustCompile(`\bcompression time = ([0-9.]+)`)
	lcpDecTime   = regexp.MustCompile(`decompression time = ([0-9.]+)`)
	lcpAxisStats = regexp.MustCompile(`statistics of ([xyz])\s+Min=([0-9.\-E]+), Max=([0-9.\-E]+), range=([0-9.\-E]+)`)
	lcpAbsErr    = regexp.MustCompile(`Max absolute error = ([0-9.\-E]+)`)
	lcpRelErr    = regexp.MustCompile(`Max relative error = ([0-9.\-E]+)`)
	lcpPSNR      = regexp.MustCompile(`PSNR = ([0-9.\-E]+)`)
	lcpNRMSE     = regexp.MustCompile(`NRMSE=\s*([0-9.\-E]+)`)
)

// first returns the submatches of the first match of re in out.
func first(re *regexp.Regexp, out string) ([]string, error) {
	m := re.FindStringSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrPatternNotFound, re)
	}
	return m, nil
}

func firstFloat(re *regexp.Regexp, out string) (float64, error) {
	m, err := first(re, out)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(m[1], 64)
}

func allFloats(re *regexp.Regexp, out string) ([]float64, error) {
	var vals []float64
	for _, m := range re.FindAllStringSubmatch(out, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// TMC13Encode is what the G-PCC encoder reports for one cloud.
type TMC13Encode struct {
	Bytes         int64
	BitsPerPoint  float64
	EncodeSeconds float64
}

// ParseTMC13Encode extracts the geometry bitstream size and encode time.
func ParseTMC13Encode(out string) (TMC13Encode, error) {
	var r TMC13Encode
	m, err := first(tmc13Bitstream, out)
	if err != nil {
		return r, err
	}
	if r.Bytes, err = strconv.ParseInt(m[1], 10, 64); err != nil {
		return r, err
	}
	if r.BitsPerPoint, err = strconv.ParseFloat(m[2], 64); err != nil {
		return r, err
	}
	if r.EncodeSeconds, err = firstFloat(tmc13EncTime, out); err != nil {
		return r, err
	}
	return r, nil
}

// ParseTMC13Decode extracts the decoder's wall time in seconds.
func ParseTMC13Decode(out string) (float64, error) {
	return firstFloat(tmc13DecTime, out)
}

// AxisStats is LCP's per-axis value summary.
type AxisStats struct {
	Min   float64
	Max   float64
	Range float64
}

// LCPReport is what LCP reports for one compress and decompress cycle.
type LCPReport struct {
	Ratio             float64
	CompressSeconds   float64
	DecompressSeconds float64
	Axes              map[string]AxisStats
	// Error metrics are reported once per axis, in output order.
	MaxAbsErrors []float64
	MaxRelErrors []float64
	PSNRs        []float64
	NRMSE        float64
}

// ParseLCP extracts ratio, timings, per-axis statistics and error metrics.
// Ratio, timings and NRMSE are required; the rest may be absent.
func ParseLCP(out string) (LCPReport, error) {
	var r LCPReport
	var err error
	if r.Ratio, err = firstFloat(lcpRatio, out); err != nil {
		return r, err
	}
	if r.CompressSeconds, err = firstFloat(lcpCompTime, out); err != nil {
		return r, err
	}
	if r.DecompressSeconds, err = firstFloat(lcpDecTime, out); err != nil {
		return r, err
	}
	if r.NRMSE, err = firstFloat(lcpNRMSE, out); err != nil {
		return r, err
	}

	r.Axes = make(map[string]AxisStats)
	for _, m := range lcpAxisStats.FindAllStringSubmatch(out, -1) {
		var s AxisStats
		var vals [3]float64
		for i := range vals {
			if vals[i], err = strconv.ParseFloat(m[i+2], 64); err != nil {
				return r, err
			}
		}
		s.Min, s.Max, s.Range = vals[0], vals[1], vals[2]
		r.Axes[m[1]] = s
	}
	if r.MaxAbsErrors, err = allFloats(lcpAbsErr, out); err != nil {
		return r, err
	}
	if r.MaxRelErrors, err = allFloats(lcpRelErr, out); err != nil {
		return r, err
	}
	if r.PSNRs, err = allFloats(lcpPSNR, out); err != nil {
		return r, err
	}
	return r, nil
}
