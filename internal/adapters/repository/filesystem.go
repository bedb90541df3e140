// Package repository implements the config repository port on the local
// filesystem.
package repository

import (
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Filesystem lists declaration files matching a set of glob patterns. Glob
// results come back sorted, so the scan order is deterministic.
type Filesystem struct {
	patterns []string
}

// New creates a Filesystem repository over the given glob patterns.
func New(patterns ...string) *Filesystem {
	return &Filesystem{patterns: patterns}
}

// List enumerates every path matching the patterns, in pattern order.
func (f *Filesystem) List() ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range f.patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "bad config file pattern"), "pattern", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	return paths, nil
}

// Exists reports whether path is a regular file.
func (f *Filesystem) Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// LastModified returns the path's modification timestamp.
func (f *Filesystem) LastModified(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, zerr.With(zerr.Wrap(err, "failed to stat config file"), "path", path)
	}
	return fi.ModTime(), nil
}

// Load reads and parses the file at path into a YAML document.
func (f *Filesystem) Load(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the operator's config
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read config file"), "path", path)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse config file"), "path", path)
	}
	return &doc, nil
}

var _ ports.ConfigRepository = (*Filesystem)(nil)
