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

// Package render assembles rendered image panels into comparison sheets.
package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// Gap is the default number of pixels between montage panels.
const Gap = 8

// Montage lays out the given panels left to right on a black background,
// separated by gap pixels. Panels of differing heights are top-aligned.
func Montage(panels []*image.RGBA, gap int) (*image.RGBA, error) {
	if len(panels) == 0 {
		return nil, errors.New("montage needs at least one panel")
	}
	width, height := -gap, 0
	for _, p := range panels {
		width += p.Bounds().Dx() + gap
		if h := p.Bounds().Dy(); h > height {
			height = h
		}
	}

	sheet := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	x := 0
	for _, p := range panels {
		r := image.Rect(x, 0, x+p.Bounds().Dx(), p.Bounds().Dy())
		draw.Draw(sheet, r, p, p.Bounds().Min, draw.Src)
		x += p.Bounds().Dx() + gap
	}
	return sheet, nil
}
