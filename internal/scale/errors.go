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

import "errors"

// Validation failures of the scaling engine. All of these occur before or
// instead of the pixel math; there is no transient failure mode in pure
// numeric code, so none of them is ever retried. Callers match them with
// errors.Is to decide whether to skip, log or abort a batch.
var (
	// ErrInvalidMethod flags a scaling method name outside the closed enum.
	ErrInvalidMethod = errors.New("invalid scaling method")

	// ErrEmptyData flags an input without a single finite value, leaving
	// minima, maxima and percentiles undefined.
	ErrEmptyData = errors.New("no finite values in data")

	// ErrDegenerateRange flags a resolved scale range with max <= min.
	// Every formula in this package divides by (max-min) in some form.
	ErrDegenerateRange = errors.New("degenerate scale range")

	// ErrUnsupportedRank flags input data that is neither 2D nor 3D.
	ErrUnsupportedRank = errors.New("unsupported array rank")

	// ErrParameterMismatch flags a method parameter that the selected
	// method does not accept, e.g. percentiles passed to log scaling.
	ErrParameterMismatch = errors.New("parameter not accepted by method")

	// ErrInvalidPercentiles flags a percentile pair outside [0,100] or
	// with low >= high.
	ErrInvalidPercentiles = errors.New("invalid percentile pair")
)
