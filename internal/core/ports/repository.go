package ports

import (
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigRepository is one backing store of object declaration files. The
// config files reader polls it on every scan; implementations decide what a
// "path" is (a file on disk, a key in a KV store).
//
//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks
type ConfigRepository interface {
	// List enumerates the repository's paths in a deterministic order.
	List() ([]string, error)
	// Exists reports whether the path is currently present.
	Exists(path string) bool
	// LastModified returns the path's modification timestamp.
	LastModified(path string) (time.Time, error)
	// Load reads and parses the file at path into a YAML document.
	Load(path string) (*yaml.Node, error)
}
