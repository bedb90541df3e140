package domain

import (
	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// ObjectConfig is the declaration of one object as found in a config file:
// the file it came from, the top-level key it was declared under, and the
// parsed configuration subtree.
type ObjectConfig struct {
	// Path is the config file the declaration originates from.
	Path string
	// Key is the top-level key the object is declared under.
	Key string
	// Node is the parsed configuration subtree for the object.
	Node *yaml.Node

	fingerprint uint64
}

// NewObjectConfig builds an ObjectConfig and fingerprints its subtree.
func NewObjectConfig(path, key string, node *yaml.Node) *ObjectConfig {
	return &ObjectConfig{
		Path:        path,
		Key:         key,
		Node:        node,
		fingerprint: fingerprintNode(node),
	}
}

// Equivalent reports whether two declarations carry structurally equal
// configuration subtrees. The originating file path does not participate.
func (c *ObjectConfig) Equivalent(other *ObjectConfig) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.fingerprint == other.fingerprint
}

// Fingerprint returns the structural hash of the subtree (see fingerprintNode).
func (c *ObjectConfig) Fingerprint() uint64 { return c.fingerprint }

// fingerprintNode hashes the structure of a subtree: tags and values only,
// ignoring comments, formatting, and mapping key order. Two subtrees hash
// equal exactly when they are structurally equal.
func fingerprintNode(node *yaml.Node) uint64 {
	if node == nil {
		return 0
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return xxhash.Sum64String("doc:empty")
		}
		return fingerprintNode(node.Content[0])
	case yaml.AliasNode:
		return fingerprintNode(node.Alias)
	case yaml.ScalarNode:
		return xxhash.Sum64String("scalar:" + node.Tag + ":" + node.Value)
	case yaml.SequenceNode:
		h := xxhash.Sum64String("seq")
		for _, child := range node.Content {
			h = h*0x9E3779B97F4A7C15 ^ fingerprintNode(child)
		}
		return h
	case yaml.MappingNode:
		// Pairs combine with xor so reordering keys does not change the hash.
		h := xxhash.Sum64String("map")
		for i := 0; i+1 < len(node.Content); i += 2 {
			pair := fingerprintNode(node.Content[i])*0x9E3779B97F4A7C15 ^ fingerprintNode(node.Content[i+1])
			h ^= pair * 0xBF58476D1CE4E5B9
		}
		return h
	default:
		return xxhash.Sum64String("unknown")
	}
}

// Snapshot is an immutable name-to-declaration map published by the config
// files reader. Holders compare snapshots by pointer identity to detect
// "nothing changed" cheaply; the contents are never mutated after publication.
type Snapshot struct {
	Objects map[string]*ObjectConfig
}

// NewSnapshot wraps the given map into a published snapshot.
func NewSnapshot(objects map[string]*ObjectConfig) *Snapshot {
	return &Snapshot{Objects: objects}
}

// Get returns the declaration for name, or nil if absent.
func (s *Snapshot) Get(name string) *ObjectConfig {
	if s == nil {
		return nil
	}
	return s.Objects[name]
}

// Len returns the number of declared objects.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Objects)
}
