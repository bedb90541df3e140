package loader

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// fakeLoadable is a controllable domain.Loadable for dispatcher tests.
type fakeLoadable struct {
	name            string
	version         int
	supportsUpdates bool
	lifetime        domain.Lifetime
	modified        func() (bool, error)
	onClone         func()
}

func (f *fakeLoadable) Name() string              { return f.name }
func (f *fakeLoadable) SupportsUpdates() bool     { return f.supportsUpdates }
func (f *fakeLoadable) Lifetime() domain.Lifetime { return f.lifetime }

func (f *fakeLoadable) IsModified() (bool, error) {
	if f.modified == nil {
		return false, nil
	}
	return f.modified()
}

func (f *fakeLoadable) Clone() (domain.Loadable, error) {
	if f.onClone != nil {
		f.onClone()
	}
	clone := *f
	return &clone, nil
}

// objectConfig parses src as the declaration subtree of one object.
func objectConfig(t *testing.T, path, key, src string) *domain.ObjectConfig {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatalf("bad test config: %v", err)
	}
	return domain.NewObjectConfig(path, key, &node)
}

// snapshotOf builds a snapshot declaring each name with the given subtree.
func snapshotOf(t *testing.T, decls map[string]string) *domain.Snapshot {
	t.Helper()
	objects := make(map[string]*domain.ObjectConfig, len(decls))
	for name, src := range decls {
		objects[name] = objectConfig(t, "test.yaml", "dictionary_"+name, src)
	}
	return domain.NewSnapshot(objects)
}

// newTestDispatcher builds a dispatcher with no-op collaborators and a
// never-refresh schedule.
func newTestDispatcher(create CreateObjectFunc) *loadingDispatcher {
	return newTestDispatcherNext(create, func(domain.Loadable, uint64) time.Time {
		return domain.Never
	})
}

func newTestDispatcherNext(create CreateObjectFunc, next NextUpdateTimeFunc) *loadingDispatcher {
	return newLoadingDispatcher(
		create,
		next,
		func(obj domain.Loadable) (bool, error) { return obj.IsModified() },
		nopLogger{},
		nopMetrics{},
		nopTelemetry{},
		goPool{},
	)
}

// testLogger captures log lines for assertions.
type testLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *testLogger) Info(string, ...any) {}

func (l *testLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *testLogger) Error(msg string, _ error, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

func (l *testLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

// testMetrics counts the reader-facing metric calls.
type testMetrics struct {
	nopMetrics
	mu            sync.Mutex
	parseFailures int
	staleFiles    int
}

func (m *testMetrics) ConfigParseFailure(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseFailures++
}

func (m *testMetrics) StaleFilesRetained(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleFiles = n
}

// stubRepo is an in-memory config repository whose contents and mtimes can
// change mid-test.
type stubRepo struct {
	mu    sync.Mutex
	files map[string]string
	mtime time.Time
}

func (s *stubRepo) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.files))
	for path := range s.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *stubRepo) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *stubRepo) LastModified(string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mtime, nil
}

func (s *stubRepo) Load(path string) (*yaml.Node, error) {
	s.mu.Lock()
	content, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		return nil, zerr.With(zerr.New("no such file"), "path", path)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// set replaces one file's contents and advances the repository mtime.
func (s *stubRepo) set(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	s.mtime = s.mtime.Add(time.Second)
}

// remove deletes one file and advances the repository mtime.
func (s *stubRepo) remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	s.mtime = s.mtime.Add(time.Second)
}

// yamlDoc parses src into a YAML document node.
func yamlDoc(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("bad test yaml: %v", err)
	}
	return &doc
}

// countingCreate returns a create hook producing fresh fakeLoadables and the
// call counter.
func countingCreate(string) (CreateObjectFunc, *atomic.Int32) {
	calls := new(atomic.Int32)
	return func(n string, _ *domain.ObjectConfig, _ bool, _ domain.Loadable) (domain.Loadable, error) {
		v := calls.Add(1)
		return &fakeLoadable{name: n, version: int(v)}, nil
	}, calls
}
