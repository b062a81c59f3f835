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
	"errors"
	"testing"
)

func TestEstimateRangeExtrema(t *testing.T) {
	data := []float32{5, 1, nan32(), 9, 3}
	r, err := EstimateRange(data, nil, nil, RangeExtrema, DefaultPercentiles)
	if err != nil {
		t.Fatalf("estimate: %s", err.Error())
	}
	if r.Min != 1 || r.Max != 9 {
		t.Errorf("range=%v; want [1,9]", r)
	}
}

func TestEstimateRangeExplicitBoundsSkipData(t *testing.T) {
	min, max := float32(10), float32(20)
	// both bounds given: data must not be touched, not even all-NaN data
	r, err := EstimateRange([]float32{nan32(), nan32()}, &min, &max, RangeExtrema, DefaultPercentiles)
	if err != nil {
		t.Fatalf("estimate: %s", err.Error())
	}
	if r.Min != 10 || r.Max != 20 {
		t.Errorf("range=%v; want [10,20]", r)
	}
}

func TestEstimateRangePartialOverride(t *testing.T) {
	min := float32(-5)
	r, err := EstimateRange([]float32{1, 2, 3}, &min, nil, RangeExtrema, DefaultPercentiles)
	if err != nil {
		t.Fatalf("estimate: %s", err.Error())
	}
	if r.Min != -5 || r.Max != 3 {
		t.Errorf("range=%v; want [-5,3]", r)
	}
}

func TestEstimateRangePercentileInterpolation(t *testing.T) {
	data := make([]float32, 1000)
	for i := range data {
		data[i] = float32(i)
	}
	r, err := EstimateRange(data, nil, nil, RangePercentile, DefaultPercentiles)
	if err != nil {
		t.Fatalf("estimate: %s", err.Error())
	}
	// fractional ranks 0.01*999 = 9.99 and 0.99*999 = 989.01
	if !almostEqual(r.Min, 9.99, 1e-3) {
		t.Errorf("min=%f; want 9.99", r.Min)
	}
	if !almostEqual(r.Max, 989.01, 1e-2) {
		t.Errorf("max=%f; want 989.01", r.Max)
	}
}

func TestEstimateRangePercentilesNested(t *testing.T) {
	data := make([]float32, 1000)
	for i := range data {
		data[i] = float32(i)
	}
	pairs := []Percentiles{
		{Low: 1, High: 99},
		{Low: 5, High: 95},
		{Low: 10, High: 90},
	}
	var prev *Range
	for _, p := range pairs {
		r, err := EstimateRange(data, nil, nil, RangePercentile, p)
		if err != nil {
			t.Fatalf("(%g,%g): %s", p.Low, p.High, err.Error())
		}
		if prev != nil {
			// tighter percentiles must give a nested range
			if r.Min < prev.Min || r.Max > prev.Max {
				t.Errorf("(%g,%g): range %v not nested in %v", p.Low, p.High, r, *prev)
			}
		}
		rc := r
		prev = &rc
	}
}

func TestEstimateRangeInvalidPercentiles(t *testing.T) {
	data := []float32{1, 2, 3}
	bad := []Percentiles{
		{Low: -1, High: 99},
		{Low: 1, High: 101},
		{Low: 60, High: 40},
		{Low: 50, High: 50},
	}
	for _, p := range bad {
		if _, err := EstimateRange(data, nil, nil, RangePercentile, p); !errors.Is(err, ErrInvalidPercentiles) {
			t.Errorf("(%g,%g): err=%v; want ErrInvalidPercentiles", p.Low, p.High, err)
		}
	}
}

func TestEstimateRangeDegenerate(t *testing.T) {
	min, max := float32(5), float32(5)
	if _, err := EstimateRange([]float32{1, 2}, &min, &max, RangeExtrema, DefaultPercentiles); !errors.Is(err, ErrDegenerateRange) {
		t.Errorf("err=%v; want ErrDegenerateRange", err)
	}
	max = 4
	if _, err := EstimateRange([]float32{1, 2}, &min, &max, RangeExtrema, DefaultPercentiles); !errors.Is(err, ErrDegenerateRange) {
		t.Errorf("err=%v; want ErrDegenerateRange", err)
	}
}

func TestEstimateRangeEmptyData(t *testing.T) {
	if _, err := EstimateRange(nil, nil, nil, RangeExtrema, DefaultPercentiles); !errors.Is(err, ErrEmptyData) {
		t.Errorf("err=%v; want ErrEmptyData", err)
	}
	if _, err := EstimateRange([]float32{nan32()}, nil, nil, RangeExtrema, DefaultPercentiles); !errors.Is(err, ErrEmptyData) {
		t.Errorf("err=%v; want ErrEmptyData", err)
	}
}
