// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"go.yaml.in/yaml/v3"
)

// Format is a machine report encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// FormatFor picks the encoding from the file extension: .yaml and .yml are
// YAML, .jsonl is JSON lines, anything else is indented JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".jsonl":
		return FormatJSONL
	}
	return FormatJSON
}

// Encode renders r in format f.
func Encode(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		data, err := yaml.Marshal(r.File())
		if err != nil {
			return nil, fmt.Errorf("marshaling YAML: %w", err)
		}
		return data, nil
	case FormatJSONL:
		return encodeJSONL(r)
	default:
		data, err := json.MarshalIndent(r.File(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// encodeJSONL writes one block record per line, followed by one line per
// document error.
func encodeJSONL(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range r.Records() {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("marshaling record %s: %w", rec.ID, err)
		}
	}
	for _, rec := range r.ErrorRecords() {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("marshaling error record %s: %w", rec.Document, err)
		}
	}
	return buf.Bytes(), nil
}

// WriteFile encodes r by the extension of path and replaces path
// atomically while holding an exclusive lock on path + ".lock".
func WriteFile(path string, r *Report) error {
	data, err := Encode(r, FormatFor(path))
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer lock.Unlock()

	return atomicWrite(path, data)
}

// atomicWrite writes data to a temp file next to path and renames it into
// place so readers never see a partial report.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snipcheck-report-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming report into %s: %w", path, err)
	}
	tmp = nil
	return nil
}
