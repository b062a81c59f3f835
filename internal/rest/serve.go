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

// Package rest exposes the scaling pipeline over HTTP, streaming log
// output as plain text while renders run.
package rest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skylight-astro/skylight/internal/colormap"
	"github.com/skylight-astro/skylight/internal/meta"
	"github.com/skylight-astro/skylight/internal/ops"
	"github.com/skylight-astro/skylight/internal/ops/stretch"
	"github.com/skylight-astro/skylight/internal/render"
	"github.com/skylight-astro/skylight/internal/scale"
)

func Serve(addr string) error {
	return newRouter().Run(addr)
}

func newRouter() *gin.Engine {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.GET("/methods", getMethods)
			v1.GET("/meta", getMeta)
			v1.POST("/stats", postStats)
			v1.POST("/render", postRender)
			v1.POST("/compare", postCompare)
		}
	}
	return r
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func getMethods(c *gin.Context) {
	names := make([]string, 0)
	for _, m := range scale.AllMethods() {
		names = append(names, m.String())
	}
	c.JSON(200, gin.H{
		"methods":   names,
		"colormaps": colormap.Names(),
	})
}

// getMeta returns the metadata sidecar recorded for an image stem, as
// written by earlier render runs with a meta step.
func getMeta(c *gin.Context) {
	dir := c.DefaultQuery("dir", ".")
	stem := c.Query("stem")
	if stem == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing stem parameter"})
		return
	}
	for _, p := range []string{dir, stem} {
		if filepath.IsAbs(p) || strings.Contains(p, "..") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "filename outside current directory tree, aborting"})
			return
		}
	}

	entries, err := meta.NewStore(dir, os.Stderr).Read(stem)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// beginTextStream switches the response to streamed plain text for log
// output and returns the writer to stream to.
func beginTextStream(c *gin.Context) io.Writer {
	logWriter := c.Writer
	logWriter.Header().Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)
	return logWriter
}

type postStatsArgs struct {
	FilePatterns []string `json:"filePatterns"`
}

func postStats(c *gin.Context) {
	var args postStatsArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter := beginTextStream(c)
	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	oc := ops.NewContext(logWriter)
	seq := ops.NewOpSequence(ops.NewOpLoadMany(args.FilePatterns))
	runSequence(seq, oc, logWriter)
}

type postRenderArgs struct {
	FilePatterns []string         `json:"filePatterns"`
	Scale        *stretch.OpScale `json:"scale"`
	Save         *ops.OpSave      `json:"save"`
	Meta         *stretch.OpMeta  `json:"meta"`
}

func postRender(c *gin.Context) {
	var args postRenderArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.Scale == nil || args.Save == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scale and save arguments are required"})
		return
	}

	logWriter := beginTextStream(c)
	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	oc := ops.NewContext(logWriter)
	seq := ops.NewOpSequence(ops.NewOpLoadMany(args.FilePatterns), args.Scale, args.Save)
	if args.Meta != nil {
		seq.Append(args.Meta)
	}
	runSequence(seq, oc, logWriter)
}

type postCompareArgs struct {
	FileName string       `json:"fileName"`
	Methods  []string     `json:"methods"`
	Frame    int          `json:"frame"`
	Colormap string       `json:"colormap"`
	Params   scale.Params `json:"params"`
	OutFile  string       `json:"outFile"`
}

func postCompare(c *gin.Context) {
	var args postCompareArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	methods := scale.AllMethods()
	if len(args.Methods) > 0 {
		methods = methods[:0]
		for _, name := range args.Methods {
			m, err := scale.ParseMethod(name)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			methods = append(methods, m)
		}
	}
	if args.Colormap == "" {
		args.Colormap = "magma"
	}
	lut, err := colormap.ByName(args.Colormap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter := beginTextStream(c)
	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	oc := ops.NewContext(logWriter)
	opLoad := ops.NewOpLoad(0, args.FileName)
	promises, err := opLoad.MakePromises(nil, oc)
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}
	f, err := promises[0]()
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}

	sheet, err := render.CompareSheet(f, methods, args.Frame, args.Params, lut, logWriter)
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}
	if err := writePNGFile(args.OutFile, sheet); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}
	fmt.Fprintf(logWriter, "Comparison sheet saved to %s\n", args.OutFile)
	flush(logWriter)
}

func writePNGFile(fileName string, img image.Image) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if err := png.Encode(w, img); err != nil {
		return err
	}
	return w.Flush()
}

func runSequence(seq *ops.OpSequence, oc *ops.Context, logWriter io.Writer) {
	promises, err := seq.MakePromises(nil, oc)
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}
	if _, err := ops.MaterializeAll(promises, oc.MaxThreads, true); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	flush(logWriter)
}

func flush(w io.Writer) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
