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
	"math"
	"os"

	"golang.org/x/image/tiff"
)

// WriteMonoTIFF16ToFile writes a normalized 2D image as a 16-bit
// grayscale TIFF, preserving more dynamic range than an 8-bit render.
// Rows are flipped vertically like in RenderRGBA. Non-finite pixels
// write as zero.
func (f *Image) WriteMonoTIFF16ToFile(fileName string) error {
	if len(f.Naxisn) != 2 {
		return fmt.Errorf("cannot write %s-dimensional data, need 2D image", f.DimensionsToString())
	}
	width, height := int(f.Naxisn[0]), int(f.Naxisn[1])

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := f.Data[y*width : (y+1)*width]
		outY := height - 1 - y
		for x, v := range row {
			val := uint16(0)
			if v == v { // skip NaN
				scaled := float64(v) * 65535
				if scaled > 65535 {
					scaled = 65535
				} else if scaled < 0 {
					scaled = 0
				}
				val = uint16(math.Round(scaled))
			}
			offset := img.PixOffset(x, outY)
			img.Pix[offset] = uint8(val >> 8)
			img.Pix[offset+1] = uint8(val)
		}
	}

	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	opts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
	if err = tiff.Encode(w, img, opts); err != nil {
		return err
	}
	return w.Flush()
}
