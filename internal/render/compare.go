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

package render

import (
	"fmt"
	"image"
	"io"

	"github.com/skylight-astro/skylight/internal/colormap"
	"github.com/skylight-astro/skylight/internal/fits"
	"github.com/skylight-astro/skylight/internal/scale"
)

// CompareSheet scales the given image with each of the given methods and
// lays the renders out side by side for visual comparison. Methods that
// fail on this data, e.g. hist_eq on an all-equal frame, are skipped
// with a log message rather than failing the whole sheet.
func CompareSheet(f *fits.Image, methods []scale.Method, frame int, p scale.Params, lut *colormap.LUT, log io.Writer) (*image.RGBA, error) {
	plane, err := fits.ExtractFrame(f, frame)
	if err != nil {
		return nil, err
	}

	panels := make([]*image.RGBA, 0, len(methods))
	for _, method := range methods {
		res, err := scale.Process(plane.Data, method, p)
		if err != nil {
			fmt.Fprintf(log, "%d: skipping %v in comparison: %s\n", f.ID, method, err.Error())
			continue
		}
		scaled := fits.NewImageFromNaxisn(plane.Naxisn, res.Data)
		panel, err := scaled.RenderRGBA(lut)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(log, "%d: Rendered %v panel\n", f.ID, method)
		panels = append(panels, panel)
	}
	if len(panels) == 0 {
		return nil, fmt.Errorf("no scaling method produced a valid render")
	}
	return Montage(panels, Gap)
}
