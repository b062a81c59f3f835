// Copyright (C) 2024 The Skylight Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package scale

import (
	"fmt"
	"math"
	"sort"
)

// Range is the resolved dynamic range of a scaling operation.
// Invariant: Max > Min for every Range produced by EstimateRange.
type Range struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%.6g,%.6g]", r.Min, r.Max)
}

// RangeMode selects how missing bounds are derived from the data.
type RangeMode int

const (
	RangeExtrema    RangeMode = iota // min/max of the finite values
	RangePercentile                  // percentile pair over the finite values
)

// Percentiles is a pair of percentile ranks in [0,100] with Low < High,
// used to clip outlier pixels (cosmic rays, hot pixels) out of the
// dynamic range estimate.
type Percentiles struct {
	Low  float32 `json:"low"`
	High float32 `json:"high"`
}

// DefaultPercentiles clips one percent per tail, the default dynamic
// range for sqrt scaling.
var DefaultPercentiles = Percentiles{Low: 1, High: 99}

func (p Percentiles) validate() error {
	if p.Low < 0 || p.High > 100 || p.Low >= p.High {
		return fmt.Errorf("%w: (%g,%g)", ErrInvalidPercentiles, p.Low, p.High)
	}
	return nil
}

// finiteValues filters NaN and infinite entries out of data. Masked and
// out-of-bounds pixels are stored as NaN and must not distort range
// estimates.
func finiteValues(data []float32) []float32 {
	valid := make([]float32, 0, len(data))
	for _, v := range data {
		if isFinite(v) {
			valid = append(valid, v)
		}
	}
	return valid
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// EstimateRange resolves the dynamic range for a scaling operation.
// Explicit bounds always take precedence and are never recomputed; a
// missing bound is estimated from the finite subset of data, either as
// its extrema or as the given percentile pair. Data without any finite
// value yields ErrEmptyData, and a resolved range with max <= min yields
// ErrDegenerateRange.
func EstimateRange(data []float32, min, max *float32, mode RangeMode, perc Percentiles) (Range, error) {
	if min != nil && max != nil {
		return checkRange(Range{Min: *min, Max: *max})
	}

	valid := finiteValues(data)
	if len(valid) == 0 {
		return Range{}, ErrEmptyData
	}

	var lo, hi float32
	switch mode {
	case RangeExtrema:
		lo, hi = valid[0], valid[0]
		for _, v := range valid[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	case RangePercentile:
		if err := perc.validate(); err != nil {
			return Range{}, err
		}
		lo, hi = percentilePair(valid, perc)
	default:
		return Range{}, fmt.Errorf("unknown range mode %d", mode)
	}

	r := Range{Min: lo, Max: hi}
	if min != nil {
		r.Min = *min
	}
	if max != nil {
		r.Max = *max
	}
	return checkRange(r)
}

func checkRange(r Range) (Range, error) {
	if !isFinite(r.Min) || !isFinite(r.Max) || r.Max <= r.Min {
		return Range{}, fmt.Errorf("%w: %v", ErrDegenerateRange, r)
	}
	return r, nil
}

// percentilePair computes both percentile bounds over the given finite
// values in one sorting pass.
func percentilePair(valid []float32, perc Percentiles) (lo, hi float32) {
	sorted := make([]float64, len(valid))
	for i, v := range valid {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)
	lo = float32(percentileLerp(sorted, perc.Low))
	hi = float32(percentileLerp(sorted, perc.High))
	return lo, hi
}

// percentileLerp returns the p-th percentile of the sorted values,
// blending the two order statistics around the fractional rank
// p/100*(n-1). For n values at unit spacing the 1st percentile of
// 0..999 is 9.99, not the 9 a nearest-rank rule would give.
func percentileLerp(sorted []float64, p float32) float64 {
	rank := float64(p) / 100 * float64(len(sorted)-1)
	idx := int(rank)
	if idx >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(idx)
	return sorted[idx] + (sorted[idx+1]-sorted[idx])*frac
}
