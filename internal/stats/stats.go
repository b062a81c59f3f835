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

package stats

import (
	"fmt"
	"math"

	"github.com/valyala/fastrand"
)

// Stats holds basic statistics of an image plane. All moments are
// computed over the finite values only; masked pixels enter FITS data as
// NaN and would otherwise poison every aggregate.
type Stats struct {
	Min    float32 // minimum finite value
	Max    float32 // maximum finite value
	Mean   float32 // mean of finite values
	Median float32 // median of finite values, sampled for large planes
	StdDev float32 // standard deviation of finite values

	Finite    int // number of finite values
	NonFinite int // number of NaN/Inf values (masked or saturated pixels)
}

// Calc computes statistics over the finite subset of data. A data array
// without finite values returns Finite==0 and NaN moments; callers that
// need to fail on empty data check Finite.
func Calc(data []float32) *Stats {
	s := &Stats{
		Min: float32(math.NaN()),
		Max: float32(math.NaN()),
	}
	sum := float64(0)
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			s.NonFinite++
			continue
		}
		if s.Finite == 0 || v < s.Min {
			s.Min = v
		}
		if s.Finite == 0 || v > s.Max {
			s.Max = v
		}
		sum += f
		s.Finite++
	}
	if s.Finite == 0 {
		s.Mean, s.Median, s.StdDev = float32(math.NaN()), float32(math.NaN()), float32(math.NaN())
		return s
	}
	mean := sum / float64(s.Finite)
	s.Mean = float32(mean)
	s.Median = medianOf(data, s.Finite)

	sumSqDiff := float64(0)
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		diff := f - mean
		sumSqDiff += diff * diff
	}
	s.StdDev = float32(math.Sqrt(sumSqDiff / float64(s.Finite)))
	return s
}

// Pretty print stats to string
func (s *Stats) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g Median %.6g StdDev %.6g Finite %d NonFinite %d",
		s.Min, s.Max, s.Mean, s.Median, s.StdDev, s.Finite, s.NonFinite)
}

// maxExactMedian is the plane size up to which the median is computed
// exactly. Larger planes fall back to random subsampling.
const maxExactMedian = 256 * 1024

func medianOf(data []float32, finite int) float32 {
	if len(data) > maxExactMedian {
		return FastApproxMedian(data, 16*1024)
	}
	values := make([]float32, 0, finite)
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		values = append(values, v)
	}
	return QSelectMedianFloat32(values)
}

// FastApproxMedian calculates a fast approximate median of the
// (presumably large) data by randomly subsampling numSamples finite
// values and taking the median of those. Returns NaN when no finite
// value turns up within a bounded number of draws.
func FastApproxMedian(data []float32, numSamples int) float32 {
	if len(data) == 0 {
		return float32(math.NaN())
	}
	max := uint32(len(data))
	rng := fastrand.RNG{}
	samples := make([]float32, 0, numSamples)
	for tries := 0; len(samples) < numSamples && tries < 16*numSamples; tries++ {
		d := data[rng.Uint32n(max)]
		f := float64(d)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		samples = append(samples, d)
	}
	if len(samples) == 0 {
		return float32(math.NaN())
	}
	return QSelectMedianFloat32(samples)
}
