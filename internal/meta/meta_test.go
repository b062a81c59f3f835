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

package meta

import (
	"io"
	"os"
	"testing"
)

func TestAppendCreatesAndMerges(t *testing.T) {
	store := NewStore(t.TempDir(), io.Discard)

	if err := store.Append("ngc7000", map[string]any{"scaling": "asinh", "frame": 0}); err != nil {
		t.Fatalf("append: %s", err.Error())
	}
	if err := store.Append("ngc7000", map[string]any{"scaling": "log", "colormap": "magma"}); err != nil {
		t.Fatalf("append: %s", err.Error())
	}

	entries, err := store.Read("ngc7000")
	if err != nil {
		t.Fatalf("read: %s", err.Error())
	}
	if entries["scaling"] != "log" {
		t.Errorf("scaling=%v; want log to overwrite asinh", entries["scaling"])
	}
	if entries["colormap"] != "magma" {
		t.Errorf("colormap=%v; want magma", entries["colormap"])
	}
	if _, ok := entries["frame"]; !ok {
		t.Error("frame entry from the first append was lost")
	}
}

func TestAppendReplacesInvalidJSON(t *testing.T) {
	store := NewStore(t.TempDir(), io.Discard)

	if err := os.WriteFile(store.Path("broken"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("seed: %s", err.Error())
	}
	if err := store.Append("broken", map[string]any{"scaling": "sqrt"}); err != nil {
		t.Fatalf("append: %s", err.Error())
	}
	entries, err := store.Read("broken")
	if err != nil {
		t.Fatalf("read: %s", err.Error())
	}
	if entries["scaling"] != "sqrt" {
		t.Errorf("scaling=%v; want sqrt", entries["scaling"])
	}
}

func TestReadMissingSidecar(t *testing.T) {
	store := NewStore(t.TempDir(), io.Discard)
	entries, err := store.Read("absent")
	if err != nil {
		t.Fatalf("read: %s", err.Error())
	}
	if len(entries) != 0 {
		t.Errorf("entries=%v; want empty map", entries)
	}
}
