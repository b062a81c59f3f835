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

// Package stretch provides intensity scaling operators that map raw
// sensor values into normalized display range.
package stretch

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/skylight-astro/skylight/internal/fits"
	"github.com/skylight-astro/skylight/internal/meta"
	"github.com/skylight-astro/skylight/internal/ops"
	"github.com/skylight-astro/skylight/internal/scale"
)

// Header keys recording how an image was scaled, for downstream metadata
// operators.
const (
	KeyScaleMethod = "SCLMETH"
	KeyScaleMin    = "SCLMIN"
	KeyScaleMax    = "SCLMAX"
)

// Scales image intensities with the given method and normalizes the
// result to [0,1]. For 3D data cubes, operates on the selected frame.
// Takes n inputs, produces n outputs.
type OpScale struct {
	ops.OpUnaryBase
	Method scale.Method `json:"method"`
	Frame  int          `json:"frame"`
	scale.Params
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpScaleDefault() }) }

func NewOpScaleDefault() *OpScale { return NewOpScale(scale.Linear, 0, scale.Params{}) }

func NewOpScale(method scale.Method, frame int, params scale.Params) *OpScale {
	op := OpScale{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "scale", Active: true}},
		Method:      method,
		Frame:       frame,
		Params:      params,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpScale) UnmarshalJSON(data []byte) error {
	type defaults OpScale
	def := defaults(*NewOpScaleDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpScale(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to copy, not original
	return nil
}

func (op *OpScale) Apply(f *fits.Image, c *ops.Context) (result *fits.Image, err error) {
	plane, err := fits.ExtractFrame(f, op.Frame)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}

	res, err := scale.Process(plane.Data, op.Method, op.Params)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}

	out := fits.NewImageFromNaxisn(plane.Naxisn, res.Data)
	out.ID, out.FileName, out.Exposure = plane.ID, plane.FileName, plane.Exposure
	out.Header = plane.Header
	out.Header.Strings[KeyScaleMethod] = op.Method.String()
	if res.Range != nil {
		out.Header.Floats[KeyScaleMin] = res.Range.Min
		out.Header.Floats[KeyScaleMax] = res.Range.Max
		fmt.Fprintf(c.Log, "%d: Applied %s scaling over %v, result %v\n", out.ID, op.Method, res.Range, out.Stats)
	} else {
		fmt.Fprintf(c.Log, "%d: Applied %s scaling, result %v\n", out.ID, op.Method, out.Stats)
	}
	return out, nil
}

// Records how an image was scaled into a JSON metadata sidecar next to
// the rendered output. Takes n inputs, produces n unchanged outputs.
type OpMeta struct {
	ops.OpUnaryBase
	Dir string `json:"dir"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpMetaDefault() }) }

func NewOpMetaDefault() *OpMeta { return NewOpMeta("") }

func NewOpMeta(dir string) *OpMeta {
	op := OpMeta{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "meta", Active: dir != ""}},
		Dir:         dir,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpMeta) UnmarshalJSON(data []byte) error {
	type defaults OpMeta
	def := defaults(*NewOpMetaDefault())
	def.Active = true // absent "active" means enabled; empty dir still no-ops
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpMeta(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to copy, not original
	return nil
}

func (op *OpMeta) Apply(f *fits.Image, c *ops.Context) (result *fits.Image, err error) {
	if !op.Active || op.Dir == "" {
		return f, nil
	}

	entries := map[string]any{
		"file":       f.FileName,
		"dimensions": f.DimensionsToString(),
	}
	if method, ok := f.Header.Strings[KeyScaleMethod]; ok {
		entries["scaling"] = method
	}
	if min, ok := f.Header.Floats[KeyScaleMin]; ok {
		entries["scale_min"] = min
	}
	if max, ok := f.Header.Floats[KeyScaleMax]; ok {
		entries["scale_max"] = max
	}
	if f.Exposure > 0 {
		entries["exposure"] = f.Exposure
	}

	stem := Stem(f.FileName)
	store := meta.NewStore(op.Dir, c.Log)
	if err := store.Append(stem, entries); err != nil {
		return nil, fmt.Errorf("%d: writing metadata for %s: %w", f.ID, stem, err)
	}
	fmt.Fprintf(c.Log, "%d: Appended metadata to %s\n", f.ID, store.Path(stem))
	return f, nil
}

// Stem returns the base name of a FITS file path without its format and
// compression suffixes, for naming derived outputs.
func Stem(fileName string) string {
	stem := filepath.Base(fileName)
	for _, suffix := range []string{".gz", ".gzip", ".fits", ".fit", ".fts"} {
		if strings.HasSuffix(strings.ToLower(stem), suffix) {
			stem = stem[:len(stem)-len(suffix)]
		}
	}
	if stem == "" {
		stem = "image"
	}
	return stem
}
