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
	"fmt"

	"github.com/skylight-astro/skylight/internal/scale"
)

// ExtractFrame returns the 2D image plane with the given index from a
// FITS data cube. A 2D image is passed through unchanged, ignoring the
// frame index. For a 3D cube the plane is selected along the slowest
// varying axis, without copying the pixel data. Higher or lower ranks
// are rejected.
func ExtractFrame(f *Image, frame int) (*Image, error) {
	switch len(f.Naxisn) {
	case 2:
		return f, nil
	case 3:
		numFrames := int(f.Naxisn[2])
		if frame < 0 || frame >= numFrames {
			return nil, fmt.Errorf("frame index %d out of range for cube with %d frames", frame, numFrames)
		}
		width, height := f.Naxisn[0], f.Naxisn[1]
		planePixels := int(width) * int(height)
		plane := NewImageFromNaxisn([]int32{width, height}, f.Data[frame*planePixels:(frame+1)*planePixels])
		plane.ID = f.ID
		plane.FileName = f.FileName
		plane.Header = f.Header
		plane.Exposure = f.Exposure
		return plane, nil
	}
	return nil, fmt.Errorf("%w: NAXIS=%d, need 2D image or 3D cube", scale.ErrUnsupportedRank, len(f.Naxisn))
}
