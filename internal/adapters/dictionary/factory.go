package dictionary

import (
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/zerr"
)

// decl is the YAML shape of one dictionary declaration subtree.
type decl struct {
	Name   string `yaml:"name"`
	Source struct {
		Path string `yaml:"path"`
	} `yaml:"source"`
	Lifetime struct {
		Min uint64 `yaml:"min"`
		Max uint64 `yaml:"max"`
	} `yaml:"lifetime"`
}

// Factory builds dictionaries from their declaration subtrees.
type Factory struct {
	baseDir string
	log     ports.Logger
}

// NewFactory creates a Factory resolving relative source paths under baseDir.
func NewFactory(baseDir string, log ports.Logger) *Factory {
	return &Factory{baseDir: baseDir, log: log}
}

// Create builds the dictionary declared by cfg.
func (f *Factory) Create(name string, cfg *domain.ObjectConfig) (domain.Loadable, error) {
	var s decl
	if err := cfg.Node.Decode(&s); err != nil {
		return nil, zerr.With(zerr.With(zerr.Wrap(err, "bad dictionary declaration"), "name", name), "path", cfg.Path)
	}
	if s.Source.Path == "" {
		return nil, zerr.With(zerr.With(zerr.New("dictionary declaration has no source path"), "name", name), "path", cfg.Path)
	}

	lifetime := domain.Lifetime{MinSec: s.Lifetime.Min, MaxSec: s.Lifetime.Max}
	dict, err := load(name, resolvePath(f.baseDir, s.Source.Path), lifetime)
	if err != nil {
		return nil, err
	}
	f.log.Info("dictionary built", "name", name, "entries", dict.Len())
	return dict, nil
}

var _ ports.LoadableFactory = (*Factory)(nil)
