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
	"math"
	"testing"
)

func TestCalcSkipsNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	s := Calc([]float32{2, nan, 4, inf, 6})

	if s.Finite != 3 || s.NonFinite != 2 {
		t.Fatalf("finite=%d nonFinite=%d; want 3 and 2", s.Finite, s.NonFinite)
	}
	if s.Min != 2 || s.Max != 6 {
		t.Errorf("min=%f max=%f; want 2 and 6", s.Min, s.Max)
	}
	if s.Mean != 4 {
		t.Errorf("mean=%f; want 4", s.Mean)
	}
	if s.Median != 4 {
		t.Errorf("median=%f; want 4", s.Median)
	}
	want := float32(math.Sqrt(8.0 / 3.0))
	if math.Abs(float64(s.StdDev-want)) > 1e-6 {
		t.Errorf("stdDev=%f; want %f", s.StdDev, want)
	}
}

func TestCalcAllNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	s := Calc([]float32{nan, nan})
	if s.Finite != 0 || s.NonFinite != 2 {
		t.Fatalf("finite=%d nonFinite=%d; want 0 and 2", s.Finite, s.NonFinite)
	}
	if !math.IsNaN(float64(s.Min)) || !math.IsNaN(float64(s.Mean)) {
		t.Errorf("min=%f mean=%f; want NaN moments", s.Min, s.Mean)
	}
}

func TestQSelectMedian(t *testing.T) {
	cases := []struct {
		data []float32
		want float32
	}{
		{[]float32{3}, 3},
		{[]float32{5, 1}, 5},
		{[]float32{9, 1, 5}, 5},
		{[]float32{4, 2, 8, 6, 0, 10, 2}, 4},
	}
	for _, c := range cases {
		in := append([]float32(nil), c.data...)
		if got := QSelectMedianFloat32(in); got != c.want {
			t.Errorf("median(%v)=%f; want %f", c.data, got, c.want)
		}
	}
}

func TestQSelectKth(t *testing.T) {
	data := []float32{7, 3, 9, 1, 5}
	for k, want := range map[int]float32{1: 1, 2: 3, 3: 5, 4: 7, 5: 9} {
		in := append([]float32(nil), data...)
		if got := QSelectFloat32(in, k); got != want {
			t.Errorf("kth(%d)=%f; want %f", k, got, want)
		}
	}
}

func TestFastApproxMedianConstantData(t *testing.T) {
	data := make([]float32, 10000)
	for i := range data {
		data[i] = 7
	}
	if got := FastApproxMedian(data, 100); got != 7 {
		t.Errorf("median=%f; want 7", got)
	}
}

func TestFastApproxMedianSkipsNaN(t *testing.T) {
	nan := float32(math.NaN())
	data := []float32{nan, 5, nan, 5, nan}
	if got := FastApproxMedian(data, 16); got != 5 {
		t.Errorf("median=%f; want 5", got)
	}
}
