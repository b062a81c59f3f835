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

import "fmt"

// Method enumerates the intensity scaling methods. The set is closed:
// dispatch switches over it exhaustively, so adding a method is a
// compile-time checked change rather than a stringly-typed one.
type Method int

const (
	Linear Method = iota // direct affine rescale to [0,1]
	Log                  // logarithmic compression, brightens faint detail
	Sqrt                 // square root with percentile-clipped dynamic range
	HistEq               // histogram equalization over 256 fixed bins
	Asinh                // inverse hyperbolic sine, the astronomical standard
)

var methodNames = map[Method]string{
	Linear: "linear",
	Log:    "log",
	Sqrt:   "sqrt",
	HistEq: "hist_eq",
	Asinh:  "asinh",
}

// ParseMethod maps a method name from the CLI or REST boundary onto the
// enum. Unknown names are a hard validation failure, not a silent default.
func ParseMethod(name string) (Method, error) {
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMethod, name)
}

func (m Method) String() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Valid reports whether m is a member of the closed enum.
func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok
}

// MarshalJSON serializes the method under its boundary name, so operator
// JSON stays readable and stable across enum reorderings.
func (m Method) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMethod, int(m))
	}
	return []byte(`"` + methodNames[m] + `"`), nil
}

func (m *Method) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidMethod, string(b))
	}
	parsed, err := ParseMethod(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// AllMethods lists the methods in presentation order, for comparison
// sheets and usage output.
func AllMethods() []Method {
	return []Method{Linear, Log, Sqrt, HistEq, Asinh}
}
