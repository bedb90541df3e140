// Package loader implements the external object loader: a concurrent manager
// that reconciles a declared configuration with a live population of built
// objects, loading new entries, reloading changed ones, dropping removed
// ones, retrying failed ones with backoff, and refreshing expired ones.
package loader

import (
	"strings"
	"sync"
	"time"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// configFilesReader scans the attached repositories and publishes immutable
// name-to-declaration snapshots. It keeps parsed file contents along with
// their modification timestamps to avoid re-parsing unchanged files.
type configFilesReader struct {
	log     ports.Logger
	metrics ports.Metrics

	mu           sync.Mutex
	repositories []attachedRepository
	configs      *domain.Snapshot
	fileInfos    map[string]*fileInfo
	fileOrder    []string // paths in attachment and listing order; fixes the duplicate-name winner
}

type attachedRepository struct {
	repo     ports.ConfigRepository
	settings domain.ConfigSettings
}

// fileInfo caches the parsed contents of one known path.
type fileInfo struct {
	lastModified time.Time
	configs      []namedConfig // parsed declarations, in file order
	inUse        bool          // cleared before each scan, set for every observed path
	stale        bool          // last rescan failed, serving previous contents
}

type namedConfig struct {
	name   string
	config *domain.ObjectConfig
}

func newConfigFilesReader(log ports.Logger, metrics ports.Metrics) *configFilesReader {
	return &configFilesReader{
		log:       log,
		metrics:   metrics,
		fileInfos: make(map[string]*fileInfo),
	}
}

// attachRepository registers an ordered source of declaration files.
func (r *configFilesReader) attachRepository(repo ports.ConfigRepository, settings domain.ConfigSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repositories = append(r.repositories, attachedRepository{repo: repo, settings: settings})
}

// read scans all repositories and returns the current snapshot. If nothing
// changed since the previous scan the previously published snapshot is
// returned, so callers can compare snapshots by identity.
func (r *configFilesReader) read(ignoreTimestamps bool) *domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.scanFiles(ignoreTimestamps) {
		return r.configs
	}

	objects := make(map[string]*domain.ObjectConfig)
	for _, path := range r.fileOrder {
		info := r.fileInfos[path]
		for _, nc := range info.configs {
			if earlier, ok := objects[nc.name]; ok {
				if earlier.Path == path {
					r.log.Warn("object is declared twice in the same file", "name", nc.name, "path", path)
				} else {
					r.log.Warn("object is declared in two files, keeping the first",
						"name", nc.name, "kept", earlier.Path, "ignored", path)
				}
				continue
			}
			objects[nc.name] = nc.config
		}
	}

	r.configs = domain.NewSnapshot(objects)
	return r.configs
}

// scanFiles refreshes the fileInfos cache and reports whether anything was
// added, replaced, or evicted.
func (r *configFilesReader) scanFiles(ignoreTimestamps bool) bool {
	changed := false

	for _, info := range r.fileInfos {
		info.inUse = false
	}

	order := make([]string, 0, len(r.fileInfos))
	for _, attached := range r.repositories {
		paths, err := attached.repo.List()
		if err != nil {
			r.log.Error("failed to list config repository", err, "path_setting", attached.settings.PathSetting)
			continue
		}
		for _, path := range paths {
			if info, ok := r.fileInfos[path]; ok {
				if info.inUse {
					continue // already observed by an earlier repository
				}
				if r.scanFile(attached, path, ignoreTimestamps, info) {
					changed = true
				}
			} else {
				info := &fileInfo{}
				if r.scanFile(attached, path, true, info) {
					r.fileInfos[path] = info
					changed = true
				}
			}
			if info, ok := r.fileInfos[path]; ok && info.inUse {
				order = append(order, path)
			}
		}
	}
	r.fileOrder = order

	stale := 0
	for path, info := range r.fileInfos {
		if !info.inUse {
			delete(r.fileInfos, path)
			changed = true
			continue
		}
		if info.stale {
			stale++
		}
	}
	r.metrics.StaleFilesRetained(stale)

	return changed
}

// scanFile re-reads one path if it is new or its modification timestamp has
// advanced. A parse failure keeps the previously parsed contents in place:
// the scan behaves as if the file was unchanged and still in use.
func (r *configFilesReader) scanFile(
	attached attachedRepository,
	path string,
	ignoreTimestamps bool,
	info *fileInfo,
) bool {
	if path == "" || !attached.repo.Exists(path) {
		r.log.Warn("config file does not exist", "path", path)
		return false
	}

	lastModified, err := attached.repo.LastModified(path)
	if err != nil {
		r.log.Error("failed to stat config file", err, "path", path)
		return false
	}
	if !ignoreTimestamps && !lastModified.After(info.lastModified) {
		info.inUse = true
		return false
	}

	doc, err := attached.repo.Load(path)
	if err != nil {
		r.log.Error("failed to read config file", zerr.With(err, "path", path))
		r.metrics.ConfigParseFailure(path)
		info.inUse = true
		info.stale = len(info.configs) > 0
		return false
	}

	configs, err := parseObjectConfigs(doc, path, attached.settings, r.log)
	if err != nil {
		r.log.Error("failed to parse config file", zerr.With(err, "path", path))
		r.metrics.ConfigParseFailure(path)
		info.inUse = true
		info.stale = len(info.configs) > 0
		return false
	}

	info.configs = configs
	info.lastModified = lastModified
	info.inUse = true
	info.stale = false
	return true
}

// parseObjectConfigs extracts the object declarations from one parsed file.
// Top-level keys matching the object prefix declare one object each; keys
// prefixed with "comment" or "include_from" are ignored silently; anything
// else draws a warning.
func parseObjectConfigs(
	doc *yaml.Node,
	path string,
	settings domain.ConfigSettings,
	log ports.Logger,
) ([]namedConfig, error) {
	root := documentRoot(doc)
	if root == nil {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, zerr.New("config file root is not a mapping")
	}

	var configs []namedConfig
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		subtree := root.Content[i+1]

		if !strings.HasPrefix(key, settings.ObjectPrefix) {
			if !strings.HasPrefix(key, "comment") && !strings.HasPrefix(key, "include_from") {
				log.Warn("config file contains unknown node",
					"path", path, "key", key, "expected_prefix", settings.ObjectPrefix)
			}
			continue
		}

		name := mappingField(subtree, settings.NameField)
		if name == "" {
			log.Warn("object declaration has an empty name", "path", path, "key", key)
			continue
		}

		configs = append(configs, namedConfig{
			name:   name,
			config: domain.NewObjectConfig(path, key, subtree),
		})
	}
	return configs, nil
}

// documentRoot unwraps a document node down to its payload.
func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc == nil {
		return nil
	}
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return doc.Content[0]
	}
	return doc
}

// mappingField returns the scalar value of the named field in a mapping
// node, or "" when absent.
func mappingField(node *yaml.Node, field string) string {
	if node == nil || node.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == field {
			return node.Content[i+1].Value
		}
	}
	return ""
}
