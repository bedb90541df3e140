package loader

import (
	"context"
	"time"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
)

// Loader keeps a population of named external objects loaded and fresh. It
// composes a config files reader, a loading dispatcher, and a periodic
// updater, and forwards the public surface to them.
type Loader struct {
	factory    ports.LoadableFactory
	reader     *configFilesReader
	dispatcher *loadingDispatcher
	updater    *periodicUpdater
}

// Options carries the loader's injected collaborators. Zero fields fall back
// to no-op implementations where one exists.
type Options struct {
	Factory   ports.LoadableFactory
	Logger    ports.Logger
	Metrics   ports.Metrics
	Telemetry ports.Telemetry
	Pool      ports.WorkerPool
}

// New creates a Loader. The factory is the only mandatory collaborator.
func New(opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Telemetry == nil {
		opts.Telemetry = nopTelemetry{}
	}
	if opts.Pool == nil {
		opts.Pool = goPool{}
	}

	l := &Loader{factory: opts.Factory}

	l.reader = newConfigFilesReader(opts.Logger, opts.Metrics)
	l.dispatcher = newLoadingDispatcher(
		l.createObject,
		func(obj domain.Loadable, errorCount uint64) time.Time {
			return l.updater.calculateNextUpdateTime(obj, errorCount)
		},
		func(obj domain.Loadable) (bool, error) { return obj.IsModified() },
		opts.Logger,
		opts.Metrics,
		opts.Telemetry,
		opts.Pool,
	)
	l.updater = newPeriodicUpdater(l.reader, l.dispatcher, opts.Logger)
	return l
}

// AttachRepository registers an ordered source of declaration files and
// immediately reconciles the population against it, so freshly attached
// objects are visible as soon as this returns.
func (l *Loader) AttachRepository(repo ports.ConfigRepository, settings domain.ConfigSettings) {
	l.reader.attachRepository(repo, settings)
	l.dispatcher.setConfiguration(l.reader.read(false))
}

// EnableAlwaysLoadEverything controls eager loading of every declared object.
func (l *Loader) EnableAlwaysLoadEverything(enable bool) {
	l.dispatcher.enableAlwaysLoadEverything(enable)
}

// EnableAsyncLoading switches construction onto the worker pool.
func (l *Loader) EnableAsyncLoading(enable bool) {
	l.dispatcher.enableAsyncLoading(enable)
}

// EnablePeriodicUpdates starts or stops the background update worker.
func (l *Loader) EnablePeriodicUpdates(enable bool, settings domain.UpdateSettings) {
	l.updater.enable(enable, settings)
}

// Status returns the load state of one name, StatusNotExist if unknown.
func (l *Loader) Status(name string) domain.Status {
	return l.dispatcher.status(name)
}

// Result returns the current load result of one name without loading.
func (l *Loader) Result(name string) domain.LoadResult {
	return l.dispatcher.loadResult(name)
}

// Results collects current load results for every name the filter matches.
// A nil filter matches everything.
func (l *Loader) Results(filter FilterByName) []domain.NamedLoadResult {
	return l.dispatcher.loadResults(filter)
}

// Loaded collects the objects currently in service.
func (l *Loader) Loaded(filter FilterByName) []domain.Loadable {
	return l.dispatcher.loadedObjects(filter)
}

// CountLoaded returns how many objects are currently in service.
func (l *Loader) CountLoaded() int { return l.dispatcher.countLoaded() }

// HasLoaded reports whether any object is currently in service.
func (l *Loader) HasLoaded() bool { return l.dispatcher.hasLoadedObjects() }

// StartLoad schedules loading of one name and returns immediately.
func (l *Loader) StartLoad(name string) { l.dispatcher.startLoad(name) }

// StartLoadMatching schedules loading of every matching never-attempted name.
func (l *Loader) StartLoadMatching(filter FilterByName) {
	l.dispatcher.startLoadMatching(filter)
}

// Load waits until the named object is ready or ctx expires. It returns the
// object in service, which is nil when the name is absent, the load failed,
// or the deadline passed first.
func (l *Loader) Load(ctx context.Context, name string) domain.Loadable {
	return l.dispatcher.load(ctx, name)
}

// LoadStrict is Load with every non-success turned into an error: an
// unknown name, an in-flight load at ctx expiry, or the stored load error.
func (l *Loader) LoadStrict(ctx context.Context, name string) (domain.Loadable, error) {
	return l.dispatcher.loadStrict(ctx, name)
}

// LoadMatching waits until every matching object is ready or ctx expires and
// returns the objects in service.
func (l *Loader) LoadMatching(ctx context.Context, filter FilterByName) []domain.Loadable {
	return l.dispatcher.loadMatching(ctx, filter)
}

// LoadMatchingResults is LoadMatching returning full load results.
func (l *Loader) LoadMatchingResults(ctx context.Context, filter FilterByName) []domain.NamedLoadResult {
	return l.dispatcher.loadMatchingResults(ctx, filter)
}

// LoadAll waits for the whole population.
func (l *Loader) LoadAll(ctx context.Context) []domain.Loadable {
	return l.dispatcher.loadMatching(ctx, nil)
}

// Reload re-reads the config files and forces a fresh load of one name.
// With loadNeverLoading the reload also targets never-attempted objects.
func (l *Loader) Reload(name string, loadNeverLoading bool) {
	l.dispatcher.setConfiguration(l.reader.read(false))
	l.dispatcher.reload(name, loadNeverLoading)
}

// ReloadMatching re-reads the config files and forces a fresh load of every
// matching name.
func (l *Loader) ReloadMatching(filter FilterByName, loadNeverLoading bool) {
	l.dispatcher.setConfiguration(l.reader.read(false))
	l.dispatcher.reloadMatching(filter, loadNeverLoading)
}

// ReloadAll re-reads the config files and forces a fresh load of everything.
func (l *Loader) ReloadAll(loadNeverLoading bool) {
	l.ReloadMatching(nil, loadNeverLoading)
}

// ReloadOutdated reloads every object whose next update time has passed.
func (l *Loader) ReloadOutdated() { l.dispatcher.reloadOutdated() }

// SetConfiguration injects a snapshot directly, bypassing the reader. It
// exists for callers that manage their own configuration source.
func (l *Loader) SetConfiguration(snapshot *domain.Snapshot) {
	l.dispatcher.setConfiguration(snapshot)
}

// Refresh re-reads the config files and reconciles the population once, the
// same step the periodic worker performs on its cadence.
func (l *Loader) Refresh() {
	l.dispatcher.setConfiguration(l.reader.read(false))
	l.dispatcher.reloadOutdated()
}

// Close stops the update worker and joins every in-flight load worker.
func (l *Loader) Close() {
	l.updater.enable(false, domain.UpdateSettings{})
	l.dispatcher.close()
}

// createObject is the dispatcher's construction hook: a reload under an
// unchanged config clones the previous version instead of rebuilding.
func (l *Loader) createObject(name string, cfg *domain.ObjectConfig, configChanged bool, prev domain.Loadable) (domain.Loadable, error) {
	if prev != nil && !configChanged {
		return prev.Clone()
	}
	return l.factory.Create(name, cfg)
}
