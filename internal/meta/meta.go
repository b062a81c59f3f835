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

// Package meta persists per-image processing metadata as JSON sidecar
// files, merging new entries into whatever an earlier run recorded.
package meta

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// A Store reads and writes JSON metadata sidecars in a fixed directory.
type Store struct {
	Dir string // Directory holding the sidecar files
	Log io.Writer
}

// NewStore returns a store rooted at dir, logging warnings to log.
func NewStore(dir string, log io.Writer) *Store {
	return &Store{Dir: dir, Log: log}
}

// Path returns the sidecar file name for the given image stem.
func (s *Store) Path(stem string) string {
	return filepath.Join(s.Dir, stem+".json")
}

// Append merges the given entries into the sidecar for stem, creating it
// if absent. Existing keys are overwritten, other keys are preserved. A
// sidecar with invalid JSON is replaced after a warning.
func (s *Store) Append(stem string, entries map[string]any) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	fileName := s.Path(stem)

	merged := map[string]any{}
	if existing, err := os.ReadFile(fileName); err == nil {
		if err := json.Unmarshal(existing, &merged); err != nil {
			fmt.Fprintf(s.Log, "Warning: %s contains invalid JSON, overwriting\n", fileName)
			merged = map[string]any{}
		}
	}
	for k, v := range entries {
		merged[k] = v
	}

	data, err := json.MarshalIndent(merged, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(fileName, append(data, '\n'), 0644)
}

// Read returns the sidecar contents for stem, or an empty map if the
// sidecar does not exist.
func (s *Store) Read(stem string) (map[string]any, error) {
	data, err := os.ReadFile(s.Path(stem))
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	} else if err != nil {
		return nil, err
	}
	entries := map[string]any{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path(stem), err)
	}
	return entries, nil
}
