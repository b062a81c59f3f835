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
	"math"
	"sort"
	"testing"
)

func almostEqual(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func nan32() float32 { return float32(math.NaN()) }

func TestLinearKnownValues(t *testing.T) {
	res, err := Process([]float32{0, 5, 10}, Linear, Params{})
	if err != nil {
		t.Fatalf("process: %s", err.Error())
	}
	want := []float32{0, 0.5, 1}
	for i, w := range want {
		if !almostEqual(res.Data[i], w, 1e-6) {
			t.Errorf("data[%d]=%f; want %f", i, res.Data[i], w)
		}
	}
	if res.Range == nil || res.Range.Min != 0 || res.Range.Max != 10 {
		t.Errorf("range=%v; want [0,10]", res.Range)
	}
}

func TestLinearExplicitRangeClips(t *testing.T) {
	rng := Range{Min: 2, Max: 8}
	out := LinearScale([]float32{0, 2, 5, 8, 10}, rng)
	want := []float32{0, 0, 0.5, 1, 1}
	for i, w := range want {
		if !almostEqual(out[i], w, 1e-6) {
			t.Errorf("out[%d]=%f; want %f", i, out[i], w)
		}
	}
}

func TestLogClipsBelowMinToZero(t *testing.T) {
	rng := Range{Min: 5, Max: 10}
	out := LogScale([]float32{0, 3, 5}, rng)
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d]=%f; want 0 for values at or below min", i, v)
		}
	}
}

func TestLogMonotonic(t *testing.T) {
	rng := Range{Min: 0, Max: 100}
	out := LogScale([]float32{1, 5, 20, 50, 99}, rng)
	for i := 1; i < len(out); i++ {
		if out[i] <= out[i-1] {
			t.Errorf("out[%d]=%f not greater than out[%d]=%f", i, out[i], i-1, out[i-1])
		}
	}
	if out[len(out)-1] > 1 {
		t.Errorf("out[last]=%f exceeds 1", out[len(out)-1])
	}
}

func TestSqrtBoundsAndOrder(t *testing.T) {
	data := make([]float32, 200)
	for i := range data {
		data[i] = float32(i)
	}
	data[0] = -1000 // outliers the percentile range should shrug off
	data[199] = 1e8

	res, err := Process(data, Sqrt, Params{})
	if err != nil {
		t.Fatalf("process: %s", err.Error())
	}
	for i, v := range res.Data {
		if v < 0 || v > 1 {
			t.Errorf("data[%d]=%f outside [0,1]", i, v)
		}
	}
	for i := 2; i < 198; i++ {
		if res.Data[i] < res.Data[i-1] {
			t.Errorf("data[%d]=%f decreases from data[%d]=%f", i, res.Data[i], i-1, res.Data[i-1])
		}
	}
	if res.Range == nil {
		t.Fatal("sqrt did not report a resolved range")
	}
	if res.Range.Min <= -1000 || res.Range.Max >= 1e8 {
		t.Errorf("range=%v includes outliers", res.Range)
	}
}

func TestAsinhKnownValues(t *testing.T) {
	k := float32(1)
	out := AsinhScale([]float32{-1, 0, 1}, Range{Min: -1, Max: 1}, k)

	if !almostEqual(out[0], 0, 1e-6) {
		t.Errorf("out[0]=%f; want 0", out[0])
	}
	wantMid := float32(math.Asinh(1) / math.Asinh(2))
	if !almostEqual(out[1], wantMid, 1e-6) {
		t.Errorf("out[1]=%f; want %f", out[1], wantMid)
	}
	if !almostEqual(out[2], 1, 1e-6) {
		t.Errorf("out[2]=%f; want 1", out[2])
	}
}

func TestAsinhCompressesBrightEnds(t *testing.T) {
	out := AsinhScale([]float32{0, 50, 100}, Range{Min: 0, Max: 100}, DefaultNonLinear)
	// midpoint maps above 0.5: faint detail is stretched, bright compressed
	if out[1] <= 0.5 {
		t.Errorf("out[1]=%f; want >0.5", out[1])
	}
}

func TestHistEqMonotonic(t *testing.T) {
	data := []float32{0, 10, 10, 20, 20, 20, 100, 200, 255}
	out, err := HistEqScale(data)
	if err != nil {
		t.Fatalf("hist_eq: %s", err.Error())
	}
	idx := make([]int, len(data))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return data[idx[a]] < data[idx[b]] })
	for i := 1; i < len(idx); i++ {
		if out[idx[i]] < out[idx[i-1]] {
			t.Errorf("equalization not monotonic: in %f->%f, out %f->%f",
				data[idx[i-1]], data[idx[i]], out[idx[i-1]], out[idx[i]])
		}
	}
}

func TestHistEqIgnoresOutOfDomain(t *testing.T) {
	data := []float32{-5, 10, 300, 20}
	out, err := HistEqScale(data)
	if err != nil {
		t.Fatalf("hist_eq: %s", err.Error())
	}
	// out-of-domain values still map through the LUT, clamped at its edges
	if out[0] > out[1] {
		t.Errorf("below-domain value %f maps above in-domain value %f", out[0], out[1])
	}
	if out[2] < out[3] {
		t.Errorf("above-domain value %f maps below in-domain value %f", out[2], out[3])
	}
}

func TestNaNPropagation(t *testing.T) {
	for _, method := range AllMethods() {
		data := []float32{10, nan32(), 20, 30, 40, 50, 60, 70, 80, 90}
		res, err := Process(data, method, Params{})
		if err != nil {
			t.Fatalf("%v: process: %s", method, err.Error())
		}
		if !math.IsNaN(float64(res.Data[1])) {
			t.Errorf("%v: data[1]=%f; want NaN to propagate", method, res.Data[1])
		}
		for i, v := range res.Data {
			if i == 1 {
				continue
			}
			if math.IsNaN(float64(v)) {
				t.Errorf("%v: data[%d] became NaN", method, i)
			}
		}
	}
}

func TestProcessBoundsAllMethods(t *testing.T) {
	data := []float32{3, 7, 12, 35, 60, 99, 140, 200, 250, 255}
	for _, method := range AllMethods() {
		res, err := Process(data, method, Params{})
		if err != nil {
			t.Fatalf("%v: process: %s", method, err.Error())
		}
		lo, hi := res.Data[0], res.Data[0]
		for i, v := range res.Data {
			if v < 0 || v > 1 {
				t.Errorf("%v: data[%d]=%f outside [0,1]", method, i, v)
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		// final renormalization guarantees the full range is used
		if !almostEqual(lo, 0, 1e-6) || !almostEqual(hi, 1, 1e-6) {
			t.Errorf("%v: output range [%f,%f]; want [0,1]", method, lo, hi)
		}
	}
}

func TestUniformDataRejectedByAllMethods(t *testing.T) {
	uniform := []float32{42, 42, 42, 42}
	for _, method := range AllMethods() {
		_, err := Process(uniform, method, Params{})
		if !errors.Is(err, ErrDegenerateRange) {
			t.Errorf("%v: err=%v; want ErrDegenerateRange", method, err)
		}
	}
}

func TestAllNaNRejectedByAllMethods(t *testing.T) {
	data := []float32{nan32(), nan32(), nan32()}
	for _, method := range AllMethods() {
		_, err := Process(data, method, Params{})
		if !errors.Is(err, ErrEmptyData) {
			t.Errorf("%v: err=%v; want ErrEmptyData", method, err)
		}
	}
}

func TestParamsValidation(t *testing.T) {
	perc := &Percentiles{Low: 5, High: 95}
	nl := float32(1.5)
	negNL := float32(-1)
	min := float32(0)

	cases := []struct {
		name   string
		method Method
		params Params
		want   error
	}{
		{"percentilesOnLinear", Linear, Params{Percentiles: perc}, ErrParameterMismatch},
		{"percentilesOnLog", Log, Params{Percentiles: perc}, ErrParameterMismatch},
		{"percentilesOnSqrt", Sqrt, Params{Percentiles: perc}, nil},
		{"nonLinearOnLog", Log, Params{NonLinear: &nl}, ErrParameterMismatch},
		{"nonLinearOnAsinh", Asinh, Params{NonLinear: &nl}, nil},
		{"negativeNonLinear", Asinh, Params{NonLinear: &negNL}, ErrParameterMismatch},
		{"histEqWithMin", HistEq, Params{Min: &min}, ErrParameterMismatch},
		{"histEqBare", HistEq, Params{}, nil},
	}
	for _, c := range cases {
		err := c.params.Validate(c.method)
		if c.want == nil && err != nil {
			t.Errorf("%s: unexpected error %s", c.name, err.Error())
		}
		if c.want != nil && !errors.Is(err, c.want) {
			t.Errorf("%s: err=%v; want %v", c.name, err, c.want)
		}
	}
}

func TestInvalidMethodRejected(t *testing.T) {
	_, err := Process([]float32{1, 2, 3}, Method(99), Params{})
	if !errors.Is(err, ErrInvalidMethod) {
		t.Errorf("err=%v; want ErrInvalidMethod", err)
	}
	if _, err := ParseMethod("quadratic"); !errors.Is(err, ErrInvalidMethod) {
		t.Errorf("err=%v; want ErrInvalidMethod", err)
	}
}

func TestNormalize(t *testing.T) {
	data := []float32{2, nan32(), 4, 6}
	out, err := Normalize(data)
	if err != nil {
		t.Fatalf("normalize: %s", err.Error())
	}
	want := []float32{0, nan32(), 0.5, 1}
	for i, w := range want {
		if math.IsNaN(float64(w)) {
			if !math.IsNaN(float64(out[i])) {
				t.Errorf("out[%d]=%f; want NaN", i, out[i])
			}
			continue
		}
		if !almostEqual(out[i], w, 1e-6) {
			t.Errorf("out[%d]=%f; want %f", i, out[i], w)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	data := []float32{0, 0.25, 0.5, 0.75, 1}
	want := append([]float32(nil), data...) // Normalize rescales in place
	out, err := Normalize(data)
	if err != nil {
		t.Fatalf("normalize: %s", err.Error())
	}
	for i, w := range want {
		if !almostEqual(out[i], w, 1e-6) {
			t.Errorf("out[%d]=%f; want %f", i, out[i], w)
		}
	}
}

func TestMethodJSONRoundTrip(t *testing.T) {
	for _, m := range AllMethods() {
		b, err := m.MarshalJSON()
		if err != nil {
			t.Fatalf("%v: marshal: %s", m, err.Error())
		}
		var back Method
		if err := back.UnmarshalJSON(b); err != nil {
			t.Fatalf("%v: unmarshal: %s", m, err.Error())
		}
		if back != m {
			t.Errorf("round trip %v -> %s -> %v", m, string(b), back)
		}
	}
}
