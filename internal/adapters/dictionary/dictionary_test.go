package dictionary_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/depot/internal/adapters/dictionary"
	"go.trai.ch/depot/internal/core/domain"
	"gopkg.in/yaml.v3"
)

type quietLogger struct{}

func (quietLogger) Info(string, ...any)         {}
func (quietLogger) Warn(string, ...any)         {}
func (quietLogger) Error(string, error, ...any) {}

func declaration(t *testing.T, src string) *domain.ObjectConfig {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &node))
	return domain.NewObjectConfig("dicts.yaml", "dictionary_test", &node)
}

func writeSource(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "data.tsv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFactory_CreateBuildsDictionary(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "usd\tdollar\neur\teuro\n# a comment\n\ngbp\tpound\n")

	factory := dictionary.NewFactory(dir, quietLogger{})
	obj, err := factory.Create("currencies", declaration(t, `
name: currencies
source:
  path: data.tsv
lifetime:
  min: 30
  max: 60
`))
	require.NoError(t, err)

	dict, ok := obj.(*dictionary.Dictionary)
	require.True(t, ok)
	assert.Equal(t, "currencies", dict.Name())
	assert.Equal(t, 3, dict.Len())

	v, ok := dict.Get("eur")
	require.True(t, ok)
	assert.Equal(t, "euro", v)
	_, ok = dict.Get("jpy")
	assert.False(t, ok)

	assert.True(t, dict.SupportsUpdates())
	assert.Equal(t, domain.Lifetime{MinSec: 30, MaxSec: 60}, dict.Lifetime())
}

func TestFactory_CreateRejectsBadDeclarations(t *testing.T) {
	factory := dictionary.NewFactory(t.TempDir(), quietLogger{})

	_, err := factory.Create("nosource", declaration(t, "name: nosource\n"))
	assert.Error(t, err)

	_, err = factory.Create("missing", declaration(t, "name: missing\nsource:\n  path: nowhere.tsv\n"))
	assert.Error(t, err)
}

func TestFactory_CreateRejectsMalformedSource(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "line without tab\n")

	factory := dictionary.NewFactory(dir, quietLogger{})
	_, err := factory.Create("broken", declaration(t, "name: broken\nsource:\n  path: data.tsv\n"))
	assert.Error(t, err)
}

func TestDictionary_IsModified(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "usd\tdollar\n")

	factory := dictionary.NewFactory(dir, quietLogger{})
	obj, err := factory.Create("currencies", declaration(t, "name: currencies\nsource:\n  path: data.tsv\n"))
	require.NoError(t, err)

	modified, err := obj.IsModified()
	require.NoError(t, err)
	assert.False(t, modified)

	// Touching without changing contents must not count as modified.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	modified, err = obj.IsModified()
	require.NoError(t, err)
	assert.False(t, modified)

	// A real content change does.
	require.NoError(t, os.WriteFile(path, []byte("usd\tdollar\nchf\tfranc\n"), 0o644))
	later := future.Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	modified, err = obj.IsModified()
	require.NoError(t, err)
	assert.True(t, modified)
}

func TestDictionary_CloneSharesEntries(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "usd\tdollar\n")

	factory := dictionary.NewFactory(dir, quietLogger{})
	obj, err := factory.Create("currencies", declaration(t, "name: currencies\nsource:\n  path: data.tsv\n"))
	require.NoError(t, err)

	clone, err := obj.Clone()
	require.NoError(t, err)

	dict := clone.(*dictionary.Dictionary)
	v, ok := dict.Get("usd")
	require.True(t, ok)
	assert.Equal(t, "dollar", v)
	assert.Equal(t, obj.Name(), clone.Name())
}
