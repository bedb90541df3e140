// Package config provides the daemon's main configuration loader.
package config

import (
	"os"
	"path/filepath"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Main is the daemon's top-level configuration (depot.yaml).
type Main struct {
	// Path is the base directory for relative paths in declarations.
	Path string `yaml:"path"`
	// DictionariesConfig is the glob of dictionary declaration files.
	DictionariesConfig string `yaml:"dictionaries_config"`
	// MetricsAddr is the listen address of the /metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	CheckPeriodSec    uint64 `yaml:"check_period_sec"`
	BackoffInitialSec uint64 `yaml:"backoff_initial_sec"`
	BackoffMaxSec     uint64 `yaml:"backoff_max_sec"`

	AsyncLoading         bool `yaml:"async_loading"`
	AlwaysLoadEverything bool `yaml:"always_load_everything"`
	// Workers bounds concurrent object loads; zero means one per CPU.
	Workers int `yaml:"workers"`
}

// Load reads the main configuration from path and fills in defaults.
func Load(path string) (*Main, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by the operator
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read main config")
	}

	main := defaults()
	if err := yaml.Unmarshal(data, main); err != nil {
		return nil, zerr.Wrap(err, "failed to parse main config")
	}
	if main.DictionariesConfig == "" {
		return nil, zerr.With(zerr.New("main config sets no dictionaries_config"), "path", path)
	}
	if main.Path == "" {
		main.Path = filepath.Dir(path)
	}
	if !filepath.IsAbs(main.DictionariesConfig) {
		main.DictionariesConfig = filepath.Join(main.Path, main.DictionariesConfig)
	}
	return main, nil
}

func defaults() *Main {
	update := domain.DefaultUpdateSettings()
	return &Main{
		MetricsAddr:          ":9363",
		CheckPeriodSec:       update.CheckPeriodSec,
		BackoffInitialSec:    update.BackoffInitialSec,
		BackoffMaxSec:        update.BackoffMaxSec,
		AsyncLoading:         true,
		AlwaysLoadEverything: true,
	}
}

// UpdateSettings maps the main config onto the loader's update settings.
func (m *Main) UpdateSettings() domain.UpdateSettings {
	return domain.UpdateSettings{
		CheckPeriodSec:    m.CheckPeriodSec,
		BackoffInitialSec: m.BackoffInitialSec,
		BackoffMaxSec:     m.BackoffMaxSec,
	}
}

// ConfigSettings returns how dictionary declarations are recognized in the
// declaration files.
func (m *Main) ConfigSettings() domain.ConfigSettings {
	return domain.ConfigSettings{
		PathSetting:  "dictionaries_config",
		ObjectPrefix: "dictionary",
		NameField:    "name",
	}
}
