// Package dictionary implements the loader's shipped object type: an
// in-memory key-value dictionary built from a tab-separated source file.
package dictionary

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
)

// Dictionary is an immutable key-value mapping. All fields are set at
// construction; readers never need a lock.
type Dictionary struct {
	name       string
	sourcePath string
	lifetime   domain.Lifetime
	entries    map[string]string

	sourceHash  uint64
	sourceMtime time.Time
}

// Name returns the dictionary's declared name.
func (d *Dictionary) Name() string { return d.name }

// SupportsUpdates reports whether the dictionary has a refreshable source.
func (d *Dictionary) SupportsUpdates() bool { return d.sourcePath != "" }

// Lifetime returns the declared freshness range.
func (d *Dictionary) Lifetime() domain.Lifetime { return d.lifetime }

// IsModified re-checks the source file. The cheap mtime comparison is backed
// by a content hash so touch-without-change does not trigger a reload churn.
func (d *Dictionary) IsModified() (bool, error) {
	fi, err := os.Stat(d.sourcePath)
	if err != nil {
		return false, zerr.With(zerr.Wrap(err, "failed to stat dictionary source"), "path", d.sourcePath)
	}
	if !fi.ModTime().After(d.sourceMtime) {
		return false, nil
	}
	hash, err := hashFile(d.sourcePath)
	if err != nil {
		return false, err
	}
	return hash != d.sourceHash, nil
}

// Clone shares the built entries; it is the cheap path for reloads under an
// unchanged configuration.
func (d *Dictionary) Clone() (domain.Loadable, error) {
	clone := *d
	return &clone, nil
}

// Get looks up one key.
func (d *Dictionary) Get(key string) (string, bool) {
	v, ok := d.entries[key]
	return v, ok
}

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.entries) }

// load reads and indexes the source file. Lines are "key<TAB>value"; blank
// lines and #-comments are skipped.
func load(name, sourcePath string, lifetime domain.Lifetime) (*Dictionary, error) {
	f, err := os.Open(sourcePath) //nolint:gosec // paths come from the operator's config
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open dictionary source"), "path", sourcePath)
	}
	defer f.Close() //nolint:errcheck // read-only file

	fi, err := f.Stat()
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to stat dictionary source"), "path", sourcePath)
	}

	entries := make(map[string]string)
	hash := xxhash.New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		_, _ = hash.WriteString(text)
		_, _ = hash.Write([]byte{'\n'})
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, found := strings.Cut(text, "\t")
		if !found {
			return nil, zerr.With(zerr.With(zerr.New("dictionary source line has no tab separator"),
				"path", sourcePath), "line", line)
		}
		entries[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read dictionary source"), "path", sourcePath)
	}

	return &Dictionary{
		name:        name,
		sourcePath:  sourcePath,
		lifetime:    lifetime,
		entries:     entries,
		sourceHash:  hash.Sum64(),
		sourceMtime: fi.ModTime(),
	}, nil
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the operator's config
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open dictionary source"), "path", path)
	}
	defer f.Close() //nolint:errcheck // read-only file

	hash := xxhash.New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		_, _ = hash.WriteString(scanner.Text())
		_, _ = hash.Write([]byte{'\n'})
	}
	if err := scanner.Err(); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to read dictionary source"), "path", path)
	}
	return hash.Sum64(), nil
}

// resolvePath anchors a relative source path at the configured base dir.
func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
