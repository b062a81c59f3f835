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

package fits

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/skylight-astro/skylight/internal/colormap"
)

// RenderRGBA renders a normalized 2D image through the given colormap.
// Rows are flipped vertically so the first data row ends up at the
// bottom of the picture, matching the sky orientation conventions of
// astronomical viewers. Non-finite pixels render as the darkest color.
func (f *Image) RenderRGBA(lut *colormap.LUT) (*image.RGBA, error) {
	if len(f.Naxisn) != 2 {
		return nil, fmt.Errorf("cannot render %s-dimensional data, need 2D image", f.DimensionsToString())
	}
	width, height := int(f.Naxisn[0]), int(f.Naxisn[1])
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := f.Data[y*width : (y+1)*width]
		outY := height - 1 - y
		for x, v := range row {
			r, g, b := lut.Lookup(v)
			offset := img.PixOffset(x, outY)
			img.Pix[offset] = r
			img.Pix[offset+1] = g
			img.Pix[offset+2] = b
			img.Pix[offset+3] = 255
		}
	}
	return img, nil
}

// WritePNG renders the image through the given colormap and writes it in
// PNG format.
func (f *Image) WritePNG(w io.Writer, lut *colormap.LUT) error {
	img, err := f.RenderRGBA(lut)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// WritePNGToFile renders the image through the given colormap and saves
// it as a PNG file with the given name.
func (f *Image) WritePNGToFile(fileName string, lut *colormap.LUT) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err = f.WritePNG(w, lut); err != nil {
		return err
	}
	return w.Flush()
}
