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

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skylight-astro/skylight/internal/colormap"
	"github.com/skylight-astro/skylight/internal/fits"
	"github.com/skylight-astro/skylight/internal/ops"
	"github.com/skylight-astro/skylight/internal/ops/stretch"
	"github.com/skylight-astro/skylight/internal/render"
	"github.com/skylight-astro/skylight/internal/rest"
	"github.com/skylight-astro/skylight/internal/scale"
)

const version = "0.1.0"

var out = flag.String("out", "out.png", "save output to `file`. `%d` expands to the image id")
var logFile = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
var cmap = flag.String("cmap", "gray", "colormap for PNG rendering, one of gray, magma, viridis")
var method = flag.String("method", "asinh", "scaling method, one of linear, log, sqrt, hist_eq, asinh")
var methods = flag.String("methods", "", "comma-separated scaling methods for the compare command, default all")
var frame = flag.Int("frame", 0, "frame index to extract from 3D data cubes")

var scaleMin = flag.Float64("min", 0, "override lower bound of the scaling range")
var scaleMax = flag.Float64("max", 0, "override upper bound of the scaling range")
var percLow = flag.Float64("percLow", 1, "lower percentile for sqrt range estimation")
var percHigh = flag.Float64("percHigh", 99, "upper percentile for sqrt range estimation")
var nonLinear = flag.Float64("nonlinear", 2.0, "asinh softening factor, smaller values stretch faint detail harder")

var metaDir = flag.String("meta", "", "append scaling metadata to JSON sidecars in `dir`")
var addr = flag.String("addr", ":8080", "listen address for the serve command")

func main() {
	logWriter := io.Writer(os.Stdout)
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Skylight Copyright (c) 2024 The Skylight Authors
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (render|compare|stats|serve|legal|version) (img0.fits ... imgn.fits)

Commands:
  render  Scale input images and render them to PNG or 16-bit TIFF
  compare Render one image with several scaling methods side by side
  stats   Show input image statistics
  serve   Start the HTTP API server
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *logFile == "%auto" {
		if *out != "" {
			*logFile = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".log"
		} else {
			*logFile = ""
		}
	}
	if *logFile != "" {
		f, err := os.Create(*logFile)
		if err != nil {
			fmt.Fprintf(logWriter, "Unable to open logfile '%s'\n", *logFile)
			os.Exit(-1)
		}
		defer f.Close()
		logWriter = io.MultiWriter(os.Stdout, f)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	c := ops.NewContext(logWriter)

	var err error
	switch args[0] {
	case "render":
		err = cmdRender(args[1:], c, logWriter)

	case "compare":
		err = cmdCompare(args[1:], c, logWriter)

	case "stats":
		err = cmdStats(args[1:], c)

	case "serve":
		err = rest.Serve(*addr)

	case "legal":
		cmdLegal(logWriter)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	elapsed := time.Since(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		os.Exit(-1)
	}
}

// scaleParams assembles scaling parameters from the flags the user
// actually set, so that method validation only sees explicit choices.
func scaleParams() scale.Params {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	p := scale.Params{}
	if set["min"] {
		v := float32(*scaleMin)
		p.Min = &v
	}
	if set["max"] {
		v := float32(*scaleMax)
		p.Max = &v
	}
	if set["percLow"] || set["percHigh"] {
		p.Percentiles = &scale.Percentiles{Low: float32(*percLow), High: float32(*percHigh)}
	}
	if set["nonlinear"] {
		v := float32(*nonLinear)
		p.NonLinear = &v
	}
	return p
}

func cmdRender(patterns []string, c *ops.Context, logWriter io.Writer) error {
	if len(patterns) == 0 {
		return fmt.Errorf("render command needs at least one input file")
	}
	m, err := scale.ParseMethod(*method)
	if err != nil {
		return err
	}

	seq := ops.NewOpSequence(
		ops.NewOpLoadMany(patterns),
		stretch.NewOpScale(m, *frame, scaleParams()),
		ops.NewOpSave(*out, *cmap),
	)
	if *metaDir != "" {
		seq.Append(stretch.NewOpMeta(*metaDir))
	}

	settings, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "\nRendering with these settings:\n%s\n", string(settings))

	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

func cmdCompare(args []string, c *ops.Context, logWriter io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("compare command needs exactly one input file")
	}

	ms := scale.AllMethods()
	if *methods != "" {
		ms = ms[:0]
		for _, name := range strings.Split(*methods, ",") {
			m, err := scale.ParseMethod(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			ms = append(ms, m)
		}
	}
	cmapName := *cmap
	if !flagWasSet("cmap") {
		cmapName = "magma" // comparison sheets default to a perceptual map
	}
	lut, err := colormap.ByName(cmapName)
	if err != nil {
		return err
	}

	f, err := fits.NewImageFromFile(args[0], 0, logWriter)
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%d: Loaded %s image with %v from %s\n",
		f.ID, f.DimensionsToString(), f.Stats, f.FileName)

	sheet, err := render.CompareSheet(f, ms, *frame, scaleParams(), lut, logWriter)
	if err != nil {
		return err
	}

	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if err := png.Encode(w, sheet); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%d: Comparison sheet with %d methods saved to %s\n", f.ID, len(ms), *out)
	return nil
}

func cmdStats(patterns []string, c *ops.Context) error {
	if len(patterns) == 0 {
		return fmt.Errorf("stats command needs at least one input file")
	}
	promises, err := ops.NewOpLoadMany(patterns).MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// Show licensing information
func cmdLegal(logWriter io.Writer) {
	fmt.Fprint(logWriter, `Skylight is Copyright (c) 2024 The Skylight Authors
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.
The binary version of this program uses several open source libraries and components, which come with their own licensing terms. See below for a list of attributions.

ATTRIBUTIONS

A1. https://github.com/gonum/gonum is Copyright (c) 2013 The Gonum Authors. All rights reserved.
Licensed under the BSD 3-clause license, see https://github.com/gonum/gonum/blob/master/LICENSE

A2. https://github.com/pbnjay/memory is Copyright (c) 2017, Jeremy Jay. All rights reserved.
Licensed under the BSD 3-clause license, see https://github.com/pbnjay/memory/blob/master/LICENSE

A3. https://github.com/valyala/fastrand is Copyright (c) 2017 Aliaksandr Valialkin.
Licensed under the MIT license, see https://github.com/valyala/fastrand/blob/master/LICENSE

A4. https://github.com/lucasb-eyer/go-colorful is Copyright (c) 2013 Lucas Beyer.
Licensed under the MIT license, see https://github.com/lucasb-eyer/go-colorful/blob/master/LICENSE

A5. https://github.com/klauspost/cpuid is Copyright (c) 2015 Klaus Post.
Licensed under the MIT license, see https://github.com/klauspost/cpuid/blob/master/LICENSE

A6. https://github.com/gin-gonic/gin is Copyright (c) 2014 Manuel Martinez-Almeida.
Licensed under the MIT license, see https://github.com/gin-gonic/gin/blob/master/LICENSE

A7. https://golang.org/x/image is Copyright (c) 2009 The Go Authors. All rights reserved.
Licensed under the BSD 3-clause license, see https://cs.opensource.google/go/x/image/+/master:LICENSE
`)
}
