// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover resolves command-line paths into the Markdown documents
// to check.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNoMarkdown is returned when the given paths contain no Markdown files.
var ErrNoMarkdown = errors.New("no markdown files found")

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// IsMarkdown reports whether path has a Markdown extension.
func IsMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// Paths expands files and directories into a sorted, de-duplicated list of
// Markdown files. Files named explicitly are kept whatever their extension;
// directories are walked for *.md and *.markdown, skipping hidden
// directories, node_modules and vendor. A path that does not exist is an
// error.
func Paths(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("checking path %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && IsMarkdown(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoMarkdown, strings.Join(paths, ", "))
	}
	slices.Sort(out)
	return out, nil
}
