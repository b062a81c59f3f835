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

// Package colormap provides perceptual color lookup tables for rendering
// normalized intensity data.
package colormap

import (
	"fmt"
	"sort"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// A LUT maps normalized intensities in [0,1] to 8-bit RGB colors via 256
// precomputed entries.
type LUT [256][3]uint8

// Lookup returns the RGB color for a normalized intensity. Values outside
// [0,1], including NaN, map to the darkest entry.
func (l *LUT) Lookup(v float32) (r, g, b uint8) {
	if !(v >= 0) { // catches negatives and NaN
		c := l[0]
		return c[0], c[1], c[2]
	}
	idx := int(v * 255)
	if idx > 255 {
		idx = 255
	}
	c := l[idx]
	return c[0], c[1], c[2]
}

// mustHex parses a hex color specification, panicking on malformed
// package-internal constants.
func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// buildLUT interpolates the given anchor colors, evenly spaced over
// [0,1], into a 256-entry table. Blending happens in CIE Lab space to
// keep perceived lightness monotonic.
func buildLUT(anchors []colorful.Color) *LUT {
	lut := &LUT{}
	segments := len(anchors) - 1
	for i := 0; i < 256; i++ {
		pos := float64(i) / 255 * float64(segments)
		seg := int(pos)
		if seg >= segments {
			seg = segments - 1
		}
		c := anchors[seg].BlendLab(anchors[seg+1], pos-float64(seg)).Clamped()
		r, g, b := c.RGB255()
		lut[i] = [3]uint8{r, g, b}
	}
	return lut
}

var lutsByName = map[string]*LUT{
	"gray": buildLUT([]colorful.Color{
		mustHex("#000000"), mustHex("#ffffff"),
	}),
	"magma": buildLUT([]colorful.Color{
		mustHex("#000004"), mustHex("#50127b"), mustHex("#b63679"),
		mustHex("#fb8861"), mustHex("#fcfdbf"),
	}),
	"viridis": buildLUT([]colorful.Color{
		mustHex("#440154"), mustHex("#3b528b"), mustHex("#21918c"),
		mustHex("#5ec962"), mustHex("#fde725"),
	}),
}

// ByName returns the lookup table with the given name, or an error
// listing the available choices.
func ByName(name string) (*LUT, error) {
	if lut, ok := lutsByName[strings.ToLower(name)]; ok {
		return lut, nil
	}
	return nil, fmt.Errorf("unknown colormap %q, have %s", name, strings.Join(Names(), ", "))
}

// Names returns the available colormap names in sorted order.
func Names() []string {
	names := make([]string, 0, len(lutsByName))
	for name := range lutsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
