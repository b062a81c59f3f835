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

package stretch

import (
	"encoding/json"
	"io"
	"math"
	"testing"

	"github.com/skylight-astro/skylight/internal/fits"
	"github.com/skylight-astro/skylight/internal/meta"
	"github.com/skylight-astro/skylight/internal/ops"
	"github.com/skylight-astro/skylight/internal/scale"
)

func TestOpScaleApply(t *testing.T) {
	c := ops.NewContext(io.Discard)
	f := fits.NewImageFromNaxisn([]int32{3, 1}, []float32{0, 5, 10})
	f.FileName = "ngc7000.fits"

	out, err := NewOpScale(scale.Linear, 0, scale.Params{}).Apply(f, c)
	if err != nil {
		t.Fatalf("apply: %s", err.Error())
	}
	want := []float32{0, 0.5, 1}
	for i, w := range want {
		if math.Abs(float64(out.Data[i]-w)) > 1e-6 {
			t.Errorf("data[%d]=%f; want %f", i, out.Data[i], w)
		}
	}
	if out.Header.Strings[KeyScaleMethod] != "linear" {
		t.Errorf("method header=%q; want linear", out.Header.Strings[KeyScaleMethod])
	}
	if out.Header.Floats[KeyScaleMin] != 0 || out.Header.Floats[KeyScaleMax] != 10 {
		t.Errorf("range headers=[%f,%f]; want [0,10]",
			out.Header.Floats[KeyScaleMin], out.Header.Floats[KeyScaleMax])
	}
	if out.FileName != "ngc7000.fits" {
		t.Errorf("fileName=%q not carried over", out.FileName)
	}
}

func TestOpScaleCubeFrame(t *testing.T) {
	c := ops.NewContext(io.Discard)
	data := []float32{
		1, 1, 1, 1, // frame 0, uniform and unusable
		0, 2, 4, 8, // frame 1
	}
	cube := fits.NewImageFromNaxisn([]int32{2, 2, 2}, data)

	out, err := NewOpScale(scale.Linear, 1, scale.Params{}).Apply(cube, c)
	if err != nil {
		t.Fatalf("apply: %s", err.Error())
	}
	if !fits.EqualInt32Slice(out.Naxisn, []int32{2, 2}) {
		t.Errorf("naxisn=%v; want [2 2]", out.Naxisn)
	}
	if out.Data[3] != 1 {
		t.Errorf("data[3]=%f; want 1", out.Data[3])
	}
}

func TestOpScaleHistEqOmitsRange(t *testing.T) {
	c := ops.NewContext(io.Discard)
	f := fits.NewImageFromNaxisn([]int32{4, 1}, []float32{10, 20, 20, 30})

	out, err := NewOpScale(scale.HistEq, 0, scale.Params{}).Apply(f, c)
	if err != nil {
		t.Fatalf("apply: %s", err.Error())
	}
	if out.Header.Strings[KeyScaleMethod] != "hist_eq" {
		t.Errorf("method header=%q; want hist_eq", out.Header.Strings[KeyScaleMethod])
	}
	if _, ok := out.Header.Floats[KeyScaleMin]; ok {
		t.Error("hist_eq must not record a scale range")
	}
}

func TestOpScaleJSONDefaults(t *testing.T) {
	var op OpScale
	if err := json.Unmarshal([]byte(`{"type":"scale","method":"asinh"}`), &op); err != nil {
		t.Fatalf("unmarshal: %s", err.Error())
	}
	if op.Method != scale.Asinh {
		t.Errorf("method=%v; want asinh", op.Method)
	}
	if op.Frame != 0 || op.Params.NonLinear != nil {
		t.Errorf("defaults not applied: frame=%d params=%+v", op.Frame, op.Params)
	}
	if op.OpUnaryBase.Apply == nil {
		t.Error("unmarshal must rebind the Apply method")
	}
}

func TestOpScaleInSequenceJSON(t *testing.T) {
	raw := `{"type":"seq","active":true,"steps":[
		{"type":"load","id":0,"fileName":"ngc7000.fits"},
		{"type":"scale","method":"sqrt","percentiles":{"low":2,"high":98}},
		{"type":"save","filePattern":"out.png","colormap":"magma"},
		{"type":"meta","dir":"sidecars"}
	]}`
	var seq ops.OpSequence
	if err := json.Unmarshal([]byte(raw), &seq); err != nil {
		t.Fatalf("unmarshal: %s", err.Error())
	}
	if len(seq.Steps) != 4 {
		t.Fatalf("got %d steps; want 4", len(seq.Steps))
	}
	sc, ok := seq.Steps[1].(*OpScale)
	if !ok {
		t.Fatalf("step 1 = %#v; want *OpScale", seq.Steps[1])
	}
	if sc.Method != scale.Sqrt || sc.Params.Percentiles == nil || sc.Params.Percentiles.Low != 2 {
		t.Errorf("scale step = %+v; want sqrt with (2,98) percentiles", sc)
	}
	if m, ok := seq.Steps[3].(*OpMeta); !ok || m.Dir != "sidecars" {
		t.Errorf("step 3 = %#v; want OpMeta{sidecars}", seq.Steps[3])
	}
}

func TestOpMetaRecordsScaling(t *testing.T) {
	c := ops.NewContext(io.Discard)
	dir := t.TempDir()
	f := fits.NewImageFromNaxisn([]int32{2, 1}, []float32{0, 4})
	f.FileName = "data/jw02739-ngc3324.fits.gz"

	scaled, err := NewOpScale(scale.Asinh, 0, scale.Params{}).Apply(f, c)
	if err != nil {
		t.Fatalf("scale: %s", err.Error())
	}
	if _, err := NewOpMeta(dir).Apply(scaled, c); err != nil {
		t.Fatalf("meta: %s", err.Error())
	}

	entries, err := meta.NewStore(dir, io.Discard).Read("jw02739-ngc3324")
	if err != nil {
		t.Fatalf("read: %s", err.Error())
	}
	if entries["scaling"] != "asinh" {
		t.Errorf("scaling=%v; want asinh", entries["scaling"])
	}
	if entries["dimensions"] != "2x1" {
		t.Errorf("dimensions=%v; want 2x1", entries["dimensions"])
	}
	if _, ok := entries["scale_min"]; !ok {
		t.Error("scale_min entry missing")
	}
}

func TestStem(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"ngc7000.fits", "ngc7000"},
		{"data/ngc7000.fits.gz", "ngc7000"},
		{"NGC7000.FIT", "NGC7000"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		if got := Stem(c.in); got != c.want {
			t.Errorf("Stem(%q)=%q; want %q", c.in, got, c.want)
		}
	}
}
