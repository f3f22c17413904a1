package bench

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the outcomes of a run.
type Summary struct {
	Files       int
	Failed      int
	TotalPoints int
	TotalBits   float64
	MeanBPP     float64
	StdDevBPP   float64
	MinBPP      float64
	MaxBPP      float64
	// PooledBPP is total bits over total points across all files.
	PooledBPP float64
	// Depths lists the mean cost per costed depth, coarsest first.
	Depths []DepthSummary
}

// DepthSummary is the mean cost of one depth across files.
type DepthSummary struct {
	Depth            int
	Files            int
	MeanCandidates   float64
	MeanBits         float64
	BitsPerCandidate float64
}

// Summarize aggregates results. Failed files only count towards Failed.
func Summarize(results []FileResult) Summary {
	s := Summary{Files: len(results)}
	var bpp []float64
	type acc struct {
		files      int
		candidates float64
		bits       float64
	}
	depths := make(map[int]*acc)

	for _, r := range results {
		if !r.OK() {
			s.Failed++
			continue
		}
		bpp = append(bpp, r.Cost.BitsPerPoint)
		s.TotalPoints += r.Cost.PointCount
		s.TotalBits += r.Cost.TotalBits
		for _, lc := range r.Cost.Levels {
			a := depths[lc.Depth]
			if a == nil {
				a = &acc{}
				depths[lc.Depth] = a
			}
			a.files++
			a.candidates += float64(lc.Candidates)
			a.bits += lc.Bits()
		}
	}
	if len(bpp) == 0 {
		return s
	}

	s.MeanBPP, s.StdDevBPP = stat.MeanStdDev(bpp, nil)
	if len(bpp) == 1 || math.IsNaN(s.StdDevBPP) {
		s.StdDevBPP = 0
	}
	s.MinBPP = floats.Min(bpp)
	s.MaxBPP = floats.Max(bpp)
	if s.TotalPoints > 0 {
		s.PooledBPP = s.TotalBits / float64(s.TotalPoints)
	}

	keys := make([]int, 0, len(depths))
	for d := range depths {
		keys = append(keys, d)
	}
	slices.Sort(keys)
	slices.Reverse(keys)
	for _, d := range keys {
		a := depths[d]
		ds := DepthSummary{
			Depth:          d,
			Files:          a.files,
			MeanCandidates: a.candidates / float64(a.files),
			MeanBits:       a.bits / float64(a.files),
		}
		if a.candidates > 0 {
			ds.BitsPerCandidate = a.bits / a.candidates
		}
		s.Depths = append(s.Depths, ds)
	}
	return s
}
