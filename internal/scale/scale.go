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

	"gonum.org/v1/gonum/interp"
)

// DefaultNonLinear is the asinh non-linearity factor used when the caller
// does not supply one.
const DefaultNonLinear float32 = 2.0

// histEqBins is the fixed bin count for histogram equalization. The input
// is assumed to lie roughly in [0,histEqBins); see HistEqScale.
const histEqBins = 256

// Params carries the optional, method-specific scaling parameters. A nil
// field means "derive from the data". Fields are validated against the
// selected method before any pixel math runs; passing a parameter the
// method does not accept is a configuration error, not a silent no-op.
type Params struct {
	Min         *float32     `json:"scaleMin,omitempty"`
	Max         *float32     `json:"scaleMax,omitempty"`
	Percentiles *Percentiles `json:"percentiles,omitempty"`
	NonLinear   *float32     `json:"nonLinear,omitempty"`
}

// Validate checks the parameter set against the accepted parameters of
// the given method: linear and log take min/max, sqrt adds percentiles,
// asinh adds the non-linearity factor, and hist_eq takes none at all.
func (p Params) Validate(method Method) error {
	if !method.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMethod, int(method))
	}
	if method == HistEq {
		if p.Min != nil || p.Max != nil || p.Percentiles != nil || p.NonLinear != nil {
			return fmt.Errorf("%w: hist_eq accepts no parameters", ErrParameterMismatch)
		}
		return nil
	}
	if p.Percentiles != nil && method != Sqrt {
		return fmt.Errorf("%w: percentiles only apply to sqrt, not %v", ErrParameterMismatch, method)
	}
	if p.NonLinear != nil {
		if method != Asinh {
			return fmt.Errorf("%w: nonLinear only applies to asinh, not %v", ErrParameterMismatch, method)
		}
		if *p.NonLinear <= 0 {
			return fmt.Errorf("%w: nonLinear must be positive, got %g", ErrParameterMismatch, *p.NonLinear)
		}
	}
	return nil
}

// Result is the outcome of a dispatch: the renormalized plane, plus the
// dynamic range the scaling function worked with. Range is nil for
// hist_eq, which does not resolve one. The range is what batch drivers
// record as observation metadata.
type Result struct {
	Data  []float32
	Range *Range
}

// LinearScale maps data affinely from rng onto [0,1], clipping the
// result. NaNs propagate.
func LinearScale(data []float32, rng Range) []float32 {
	out := make([]float32, len(data))
	inv := 1 / (rng.Max - rng.Min)
	for i, v := range data {
		out[i] = clip((v-rng.Min)*inv, 0, 1)
	}
	return out
}

// LogScale applies logarithmic compression over rng. Inputs are clipped
// into the range first, and the offset of one keeps log10 away from zero
// at v == rng.Min. The output is not post-clipped.
func LogScale(data []float32, rng Range) []float32 {
	out := make([]float32, len(data))
	inv := 1 / math.Log10(float64(rng.Max-rng.Min)+1)
	for i, v := range data {
		c := clip(v, rng.Min, rng.Max)
		out[i] = float32(math.Log10(float64(c-rng.Min)+1) * inv)
	}
	return out
}

// SqrtScale applies square root compression over rng, clipping the
// result to [0,1]. The caller normally derives rng from the (1,99)
// percentiles rather than the extrema, so single hot pixels do not
// dominate the range.
func SqrtScale(data []float32, rng Range) []float32 {
	out := make([]float32, len(data))
	inv := 1 / math.Sqrt(float64(rng.Max-rng.Min))
	for i, v := range data {
		c := clip(v, rng.Min, rng.Max)
		out[i] = clip(float32(math.Sqrt(float64(c-rng.Min))*inv), 0, 1)
	}
	return out
}

// HistEqScale equalizes the histogram of data over 256 fixed unit bins
// spanning [0,256): histogram, cumulative sum, cumulative sum normalized
// to the histogram's peak count, then piecewise linear interpolation of
// every pixel through the resulting lookup curve.
//
// Unlike the other methods, hist_eq neither consults the range estimator
// nor bounds its output to [0,1]; values scale with the peak bin count
// and only the dispatcher's final renormalization bounds them. It also
// assumes the input already lies roughly in [0,256), which raw
// astronomical intensities often do not. Both are deliberate properties
// of the original algorithm, kept as documented limitations.
func HistEqScale(data []float32) ([]float32, error) {
	var hist [histEqBins]float64
	counted := 0
	for _, v := range data {
		if !isFinite(v) || v < 0 || v > histEqBins {
			continue
		}
		idx := int(v)
		if idx >= histEqBins { // right edge of the last bin is inclusive
			idx = histEqBins - 1
		}
		hist[idx]++
		counted++
	}
	if counted == 0 {
		return nil, fmt.Errorf("%w: no values in [0,%d)", ErrEmptyData, histEqBins)
	}

	// lookup curve: cumulative counts rescaled to peak at the fullest bin
	peak := 0.0
	for _, h := range hist {
		if h > peak {
			peak = h
		}
	}
	var lut [histEqBins]float64
	norm, cum := peak/float64(counted), 0.0
	for i, h := range hist {
		cum += h
		lut[i] = cum * norm
	}

	xs := make([]float64, histEqBins)
	for i := range xs {
		xs[i] = float64(i)
	}
	var curve interp.PiecewiseLinear
	if err := curve.Fit(xs, lut[:]); err != nil {
		return nil, err
	}

	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = interpLUT(v, curve)
	}
	return out, nil
}

// interpLUT interpolates v through the fitted lookup curve, clamping
// outside the covered interval. NaN yields NaN and must not reach the
// interpolator, which would pin it to the last curve value.
func interpLUT(v float32, curve interp.PiecewiseLinear) float32 {
	if math.IsNaN(float64(v)) {
		return v
	}
	return float32(curve.Predict(float64(v)))
}

// AsinhScale applies inverse hyperbolic sine compression over rng with
// non-linearity factor k: asinh((v-min)/k) / asinh((max-min)/k). Bright
// peaks are compressed relative to linear scaling while faint detail is
// preserved. The output is approximately [0,1] and not post-clipped.
func AsinhScale(data []float32, rng Range, nonLinear float32) []float32 {
	out := make([]float32, len(data))
	k := float64(nonLinear)
	inv := 1 / math.Asinh(float64(rng.Max-rng.Min)/k)
	for i, v := range data {
		out[i] = float32(math.Asinh(float64(v-rng.Min)/k) * inv)
	}
	return out
}

// Process is the scaling dispatcher: it validates the method and its
// parameters, resolves the dynamic range, invokes the scaling function
// and applies the mandatory final renormalization. data must be a single
// 2D plane; see fits.ExtractFrame for cube handling.
func Process(data []float32, method Method, p Params) (*Result, error) {
	if err := p.Validate(method); err != nil {
		return nil, err
	}

	res := &Result{}
	var err error
	switch method {
	case Linear:
		var rng Range
		if rng, err = EstimateRange(data, p.Min, p.Max, RangeExtrema, DefaultPercentiles); err == nil {
			res.Data, res.Range = LinearScale(data, rng), &rng
		}
	case Log:
		var rng Range
		if rng, err = EstimateRange(data, p.Min, p.Max, RangeExtrema, DefaultPercentiles); err == nil {
			res.Data, res.Range = LogScale(data, rng), &rng
		}
	case Sqrt:
		perc := DefaultPercentiles
		if p.Percentiles != nil {
			perc = *p.Percentiles
		}
		var rng Range
		if rng, err = EstimateRange(data, p.Min, p.Max, RangePercentile, perc); err == nil {
			res.Data, res.Range = SqrtScale(data, rng), &rng
		}
	case HistEq:
		res.Data, err = HistEqScale(data)
	case Asinh:
		nonLinear := DefaultNonLinear
		if p.NonLinear != nil {
			nonLinear = *p.NonLinear
		}
		var rng Range
		if rng, err = EstimateRange(data, p.Min, p.Max, RangeExtrema, DefaultPercentiles); err == nil {
			res.Data, res.Range = AsinhScale(data, rng, nonLinear), &rng
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%v scaling: %w", method, err)
	}
	if res.Data, err = Normalize(res.Data); err != nil {
		return nil, fmt.Errorf("%v scaling: %w", method, err)
	}
	return res, nil
}

// Normalize applies the final global renormalization
// (v - nanmin) / (nanmax - nanmin) in place and returns the slice. Every
// method passes through here, because hist_eq is not otherwise bounded
// and clipping residue can leave the others marginally outside [0,1].
// NaNs are ignored for the bounds and propagate through the division.
//
// A constant result (nanmax == nanmin) is rejected with
// ErrDegenerateRange rather than zero-filled, so that all five methods
// treat uniform images identically: the four range-estimating methods
// already reject them upstream, and this guard extends the same policy
// to hist_eq.
func Normalize(data []float32) ([]float32, error) {
	lo, hi := float32(0), float32(0)
	found := false
	for _, v := range data {
		if !isFinite(v) {
			continue
		}
		if !found || v < lo {
			lo = v
		}
		if !found || v > hi {
			hi = v
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("renormalize: %w", ErrEmptyData)
	}
	if hi <= lo {
		return nil, fmt.Errorf("renormalize: %w: constant value %g", ErrDegenerateRange, lo)
	}
	inv := 1 / (hi - lo)
	for i, v := range data {
		data[i] = (v - lo) * inv
	}
	return data, nil
}

func clip(v, lo, hi float32) float32 {
	// NaN fails both comparisons and passes through unchanged
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
