package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/zerr"
)

// CreateObjectFunc builds or rebuilds one object. prev is the version
// currently in service, nil on first load.
type CreateObjectFunc func(name string, cfg *domain.ObjectConfig, configChanged bool, prev domain.Loadable) (domain.Loadable, error)

// NextUpdateTimeFunc schedules the next reconsideration of an object after a
// load finishes: a lifetime draw on success, backoff on failure.
type NextUpdateTimeFunc func(obj domain.Loadable, errorCount uint64) time.Time

// IsModifiedFunc checks a built object's source for changes. Called without
// the dispatcher lock held.
type IsModifiedFunc func(obj domain.Loadable) (bool, error)

// FilterByName selects a subset of the population. A nil filter matches
// every name.
type FilterByName func(name string) bool

// loadingDispatcher owns the live population of objects. It holds per-object
// state, dispatches construction to the caller's goroutine or to the worker
// pool, and coordinates waiters through a broadcast channel.
type loadingDispatcher struct {
	createObject   CreateObjectFunc
	nextUpdateTime NextUpdateTimeFunc
	isModified     IsModifiedFunc
	log            ports.Logger
	metrics        ports.Metrics
	telemetry      ports.Telemetry
	pool           ports.WorkerPool

	mu                   sync.Mutex
	signal               chan struct{} // closed and replaced on every broadcast
	configs              *domain.Snapshot
	infos                map[string]*objectInfo
	alwaysLoadEverything bool
	asyncLoading         bool
	nextLoadingID        uint64 // ids are never reused; zero means "not loading"
	workers              map[uint64]chan struct{}
}

// objectInfo is the dispatcher-owned mutable state of one named object.
type objectInfo struct {
	config         *domain.ObjectConfig
	object         domain.Loadable
	err            error
	loadingID      uint64 // non-zero iff a load is in flight
	errorCount     uint64 // successive failures since the last success
	loadingStart   time.Time
	loadingEnd     time.Time
	nextUpdateTime time.Time
	configChanged  bool
	forcedToReload bool
}

func (i *objectInfo) loaded() bool     { return i.object != nil }
func (i *objectInfo) failed() bool     { return i.object == nil && i.err != nil }
func (i *objectInfo) loading() bool    { return i.loadingID != 0 }
func (i *objectInfo) wasLoading() bool { return i.loaded() || i.failed() || i.loading() }
func (i *objectInfo) ready() bool      { return (i.loaded() || i.failed()) && !i.forcedToReload }

func (i *objectInfo) status() domain.Status {
	switch {
	case i.object != nil:
		if i.loading() {
			return domain.StatusLoadedAndReloading
		}
		return domain.StatusLoaded
	case i.err != nil:
		if i.loading() {
			return domain.StatusFailedAndReloading
		}
		return domain.StatusFailed
	default:
		if i.loading() {
			return domain.StatusLoading
		}
		return domain.StatusNotLoaded
	}
}

func (i *objectInfo) loadingDuration() time.Duration {
	if i.loading() {
		return time.Since(i.loadingStart)
	}
	return i.loadingEnd.Sub(i.loadingStart)
}

func (i *objectInfo) loadResult() domain.LoadResult {
	return domain.LoadResult{
		Status:          i.status(),
		Object:          i.object,
		Err:             i.err,
		LoadingStart:    i.loadingStart,
		LoadingDuration: i.loadingDuration(),
		Origin:          i.config.Path,
	}
}

func newLoadingDispatcher(
	createObject CreateObjectFunc,
	nextUpdateTime NextUpdateTimeFunc,
	isModified IsModifiedFunc,
	log ports.Logger,
	metrics ports.Metrics,
	telemetry ports.Telemetry,
	pool ports.WorkerPool,
) *loadingDispatcher {
	return &loadingDispatcher{
		createObject:   createObject,
		nextUpdateTime: nextUpdateTime,
		isModified:     isModified,
		log:            log,
		metrics:        metrics,
		telemetry:      telemetry,
		pool:           pool,
		signal:         make(chan struct{}),
		infos:          make(map[string]*objectInfo),
		nextLoadingID:  1,
		workers:        make(map[uint64]chan struct{}),
	}
}

// broadcastLocked wakes every waiter. Callers hold d.mu.
func (d *loadingDispatcher) broadcastLocked() {
	close(d.signal)
	d.signal = make(chan struct{})
}

// setConfiguration reconciles the population against a new snapshot.
func (d *loadingDispatcher) setConfiguration(snapshot *domain.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configs == snapshot {
		return
	}
	d.configs = snapshot

	// A synchronous inline load releases the lock around the construction
	// hook, so mutating loops iterate a name snapshot instead of the live map.
	var removed []string
	for _, name := range d.namesLocked() {
		info, ok := d.infos[name]
		if !ok {
			continue
		}
		newConfig := snapshot.Get(name)
		if newConfig == nil {
			removed = append(removed, name)
			continue
		}
		if info.config.Equivalent(newConfig) {
			continue
		}
		info.config = newConfig
		info.configChanged = true
		if info.wasLoading() {
			// The object is or was in use, reload it under the new config.
			d.cancelLoadingLocked(info)
			d.startLoadingLocked(name, info)
		}
	}

	for name, config := range snapshot.Objects {
		if _, ok := d.infos[name]; ok {
			continue
		}
		info := &objectInfo{config: config, nextUpdateTime: domain.Never}
		d.infos[name] = info
	}
	if d.alwaysLoadEverything {
		for _, name := range d.namesLocked() {
			if snapshot.Get(name) == nil {
				continue
			}
			if info, ok := d.infos[name]; ok && !info.wasLoading() {
				d.startLoadingLocked(name, info)
			}
		}
	}

	for _, name := range removed {
		delete(d.infos, name)
	}

	d.publishLoadedCountLocked()

	// Waiters may be blocked on names that were just added or removed.
	d.broadcastLocked()
}

// enableAlwaysLoadEverything controls whether every declared object is
// loaded eagerly. Turning it on kicks off loading for every object that was
// never attempted.
func (d *loadingDispatcher) enableAlwaysLoadEverything(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.alwaysLoadEverything == enable {
		return
	}
	d.alwaysLoadEverything = enable
	if enable {
		for _, name := range d.namesLocked() {
			if info, ok := d.infos[name]; ok && !info.wasLoading() {
				d.startLoadingLocked(name, info)
			}
		}
	}
}

// enableAsyncLoading switches construction between the caller's goroutine
// and the worker pool.
func (d *loadingDispatcher) enableAsyncLoading(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.asyncLoading = enable
}

// status returns the load state of one name, StatusNotExist for unknown names.
func (d *loadingDispatcher) status(name string) domain.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.infos[name]
	if !ok {
		return domain.StatusNotExist
	}
	return info.status()
}

// loadResult returns the current load result of one name without loading.
func (d *loadingDispatcher) loadResult(name string) domain.LoadResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.infos[name]
	if !ok {
		return domain.LoadResult{Status: domain.StatusNotExist}
	}
	return info.loadResult()
}

// loadResults collects the current load results of every matching name.
func (d *loadingDispatcher) loadResults(filter FilterByName) []domain.NamedLoadResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collectLoadResultsLocked(filter)
}

// loadedObjects collects the objects currently in service for matching names.
func (d *loadingDispatcher) loadedObjects(filter FilterByName) []domain.Loadable {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collectLoadedObjectsLocked(filter)
}

// countLoaded returns how many objects are currently in service.
func (d *loadingDispatcher) countLoaded() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, info := range d.infos {
		if info.loaded() {
			n++
		}
	}
	return n
}

// hasLoadedObjects reports whether any object is currently in service.
func (d *loadingDispatcher) hasLoadedObjects() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, info := range d.infos {
		if info.loaded() {
			return true
		}
	}
	return false
}

// startLoad schedules loading of one name and returns immediately.
func (d *loadingDispatcher) startLoad(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info, ok := d.infos[name]; ok {
		d.startLoadingLocked(name, info)
	}
}

// startLoadMatching schedules loading of every matching name that was never
// attempted.
func (d *loadingDispatcher) startLoadMatching(filter FilterByName) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range d.namesLocked() {
		if info, ok := d.infos[name]; ok && !info.wasLoading() && matches(filter, name) {
			d.startLoadingLocked(name, info)
		}
	}
}

// load waits until the named object is ready or ctx expires, starting a load
// if none was attempted. It returns the object in service, which is nil when
// the name is absent, the load failed, or the deadline passed first.
func (d *loadingDispatcher) load(ctx context.Context, name string) domain.Loadable {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := d.waitLocked(ctx, name)
	if info == nil {
		return nil
	}
	return info.object
}

// loadStrict waits like load and converts every non-success into an error:
// an unknown name, an in-flight load at deadline expiry, or the stored
// construction error.
func (d *loadingDispatcher) loadStrict(ctx context.Context, name string) (domain.Loadable, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := d.waitLocked(ctx, name)
	if info == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, name)
	}
	switch {
	case info.loaded():
		return info.object, nil
	case info.failed() && !info.loading():
		return nil, info.err
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrStillLoading, name)
	}
}

// loadMatching waits until every matching object is ready or ctx expires and
// returns the objects in service for matching names.
func (d *loadingDispatcher) loadMatching(ctx context.Context, filter FilterByName) []domain.Loadable {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitMatchingLocked(ctx, filter)
	return d.collectLoadedObjectsLocked(filter)
}

// loadMatchingResults is loadMatching returning full results instead of bare
// objects.
func (d *loadingDispatcher) loadMatchingResults(ctx context.Context, filter FilterByName) []domain.NamedLoadResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitMatchingLocked(ctx, filter)
	return d.collectLoadResultsLocked(filter)
}

// reload forces a fresh load of one name. With loadNeverLoading the reload
// also targets objects that were never attempted.
func (d *loadingDispatcher) reload(name string, loadNeverLoading bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.infos[name]
	if !ok {
		return
	}
	if info.wasLoading() || loadNeverLoading {
		d.cancelLoadingLocked(info)
		info.forcedToReload = true
		d.startLoadingLocked(name, info)
	}
}

// reloadMatching forces a fresh load of every matching name.
func (d *loadingDispatcher) reloadMatching(filter FilterByName, loadNeverLoading bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range d.namesLocked() {
		info, ok := d.infos[name]
		if !ok {
			continue
		}
		if (info.wasLoading() || loadNeverLoading) && matches(filter, name) {
			d.cancelLoadingLocked(info)
			info.forcedToReload = true
			d.startLoadingLocked(name, info)
		}
	}
}

// reloadOutdated reloads every object whose next update time has passed.
// Loaded objects are first checked for source modification, failed objects
// are retried unconditionally. Three phases keep the modification hook
// outside the lock while the final decision re-checks the latest state.
func (d *loadingDispatcher) reloadOutdated() {
	type checked struct {
		object   domain.Loadable
		modified bool
	}

	var toCheck []*checked
	byObject := make(map[domain.Loadable]*checked)
	d.mu.Lock()
	now := time.Now()
	for _, info := range d.infos {
		if !now.Before(info.nextUpdateTime) && !info.loading() && info.loaded() {
			c := &checked{object: info.object}
			toCheck = append(toCheck, c)
			byObject[info.object] = c
		}
	}
	d.mu.Unlock()

	for _, c := range toCheck {
		modified, err := d.isModified(c.object)
		if err != nil {
			d.log.Error("could not check whether object was modified", err, "name", c.object.Name())
			modified = false
		}
		c.modified = modified
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	now = time.Now()
	for _, name := range d.namesLocked() {
		info, ok := d.infos[name]
		if !ok {
			continue
		}
		if now.Before(info.nextUpdateTime) || info.loading() {
			continue
		}
		switch {
		case info.loaded():
			c, ok := byObject[info.object]
			if !ok {
				// Loaded while the checks ran; its schedule is fresh.
				continue
			}
			if !c.modified {
				info.nextUpdateTime = d.nextUpdateTime(info.object, info.errorCount)
				continue
			}
			d.startLoadingLocked(name, info)
		case info.failed():
			d.startLoadingLocked(name, info)
		}
	}
}

// close clears the population and joins every in-flight worker. After close
// returns no worker goroutine is left running.
func (d *loadingDispatcher) close() {
	d.mu.Lock()
	// Clearing the map tells returning workers their results are unwanted.
	d.infos = make(map[string]*objectInfo)
	for len(d.workers) > 0 {
		var done chan struct{}
		for _, ch := range d.workers {
			done = ch
			break
		}
		d.mu.Unlock()
		d.broadcast()
		<-done
		d.mu.Lock()
	}
	d.mu.Unlock()
	d.broadcast()
}

func (d *loadingDispatcher) broadcast() {
	d.mu.Lock()
	d.broadcastLocked()
	d.mu.Unlock()
}

// waitLocked blocks until the named info is ready or absent, or ctx expires,
// kicking off a load if needed. It returns the info as last observed, nil
// for unknown names.
func (d *loadingDispatcher) waitLocked(ctx context.Context, name string) *objectInfo {
	for {
		info, ok := d.infos[name]
		if !ok {
			return nil
		}
		if info.ready() {
			return info
		}
		if !info.loading() {
			d.startLoadingLocked(name, info)
			// A synchronous load completes inline; re-evaluate before sleeping.
			continue
		}
		if !d.sleepLocked(ctx) {
			return info
		}
	}
}

// waitMatchingLocked blocks until every matching info is ready or ctx
// expires, starting loads for matching infos that were never started.
func (d *loadingDispatcher) waitMatchingLocked(ctx context.Context, filter FilterByName) {
	for {
		allReady := true
		for _, name := range d.namesLocked() {
			info, ok := d.infos[name]
			if !ok || info.ready() || !matches(filter, name) {
				continue
			}
			if !info.loading() {
				d.startLoadingLocked(name, info)
			}
			if !info.ready() {
				allReady = false
			}
		}
		if allReady {
			return
		}
		if !d.sleepLocked(ctx) {
			return
		}
	}
}

// namesLocked snapshots the population's names so mutating loops survive the
// lock being released inside a synchronous load.
func (d *loadingDispatcher) namesLocked() []string {
	names := make([]string, 0, len(d.infos))
	for name := range d.infos {
		names = append(names, name)
	}
	return names
}

// sleepLocked releases the lock until the next broadcast or ctx expiry and
// reacquires it. It reports whether waiting may continue.
func (d *loadingDispatcher) sleepLocked(ctx context.Context) bool {
	signal := d.signal
	d.mu.Unlock()
	defer d.mu.Lock()
	select {
	case <-signal:
		return true
	case <-ctx.Done():
		return false
	}
}

// startLoadingLocked stamps the info with a fresh loading id and dispatches
// construction. Ids are drawn from a monotonically increasing generator and
// never reused; this is what makes cancellation-by-id safe.
func (d *loadingDispatcher) startLoadingLocked(name string, info *objectInfo) {
	if info.loading() {
		return
	}

	id := d.nextLoadingID
	d.nextLoadingID++
	info.loadingID = id
	info.loadingStart = time.Now()
	info.loadingEnd = time.Time{}

	if d.asyncLoading {
		done := make(chan struct{})
		d.workers[id] = done
		d.pool.Go(func() {
			d.doLoading(name, id, true)
			d.mu.Lock()
			delete(d.workers, id)
			d.mu.Unlock()
			close(done)
		})
	} else {
		d.doLoading(name, id, false)
	}
}

// doLoading performs one load attempt. It is entered with the lock held in
// synchronous mode and without it in asynchronous mode; either way the lock
// is released around the construction hook, and the stored state is only
// touched again if the attempt still owns the info (same non-zero loading
// id). Anything else means the load became a zombie: the object was removed
// or superseded while the hook ran, and the results are discarded.
func (d *loadingDispatcher) doLoading(name string, id uint64, async bool) {
	if async {
		d.mu.Lock()
	}

	info, ok := d.infos[name]
	if !ok || info.loadingID != id {
		if async {
			d.mu.Unlock()
		}
		return
	}

	cfg := info.config
	configChanged := info.configChanged
	prev := info.object
	errorCount := info.errorCount
	start := info.loadingStart

	d.mu.Unlock()

	d.metrics.LoadsInFlight(1)
	vertex := d.telemetry.Record("load " + name)

	object, err := d.createObject(name, cfg, configChanged, prev)
	if object == nil && err == nil {
		err = fmt.Errorf("%w: %s", domain.ErrNoObjectProduced, name)
	}
	if err != nil {
		errorCount++
	} else {
		errorCount = 0
	}
	nextUpdate := d.safeNextUpdateTime(name, object, errorCount)

	duration := time.Since(start)
	d.metrics.LoadsInFlight(-1)
	if prev != nil && object == prev {
		vertex.Cached()
	}
	vertex.Complete(err)

	d.mu.Lock()

	info, ok = d.infos[name]
	if !ok || info.loadingID != id {
		// Zombie: the caller's intent changed while we were loading.
		if async {
			d.mu.Unlock()
		}
		return
	}

	if err != nil {
		d.reportLoadFailure(name, err, prev != nil, nextUpdate)
		d.metrics.LoadFailed(name, duration)
	} else {
		d.metrics.LoadSucceeded(name, duration)
	}

	if object != nil {
		info.object = object
		info.configChanged = false
	}
	info.err = err
	info.errorCount = errorCount
	info.loadingEnd = time.Now()
	info.loadingID = 0
	info.nextUpdateTime = nextUpdate
	info.forcedToReload = false

	d.publishLoadedCountLocked()
	d.broadcastLocked()

	if async {
		d.mu.Unlock()
	}
}

// safeNextUpdateTime shields the dispatcher from a panicking lifetime hook;
// a broken schedule degrades to "never" rather than killing the worker.
func (d *loadingDispatcher) safeNextUpdateTime(name string, object domain.Loadable, errorCount uint64) (t time.Time) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("cannot find out when the object should be updated",
				zerr.New("next update time computation panicked"), "name", name, "panic", r)
			t = domain.Never
		}
	}()
	return d.nextUpdateTime(object, errorCount)
}

func (d *loadingDispatcher) reportLoadFailure(name string, err error, hadPrevious bool, nextUpdate time.Time) {
	args := []any{"name", name}
	if !nextUpdate.Equal(domain.Never) {
		args = append(args, "next_update", nextUpdate)
	}
	if hadPrevious {
		d.log.Error("could not update object, keeping the previous version", err, args...)
	} else {
		d.log.Error("could not load object", err, args...)
	}
}

// cancelLoadingLocked abandons an in-flight load. The hook cannot be
// interrupted mid-call; zeroing the id makes the returning worker discard
// its results instead.
func (d *loadingDispatcher) cancelLoadingLocked(info *objectInfo) {
	if !info.loading() {
		return
	}
	info.loadingID = 0
	info.loadingEnd = time.Now()
}

func (d *loadingDispatcher) collectLoadedObjectsLocked(filter FilterByName) []domain.Loadable {
	objects := make([]domain.Loadable, 0, len(d.infos))
	for name, info := range d.infos {
		if info.loaded() && matches(filter, name) {
			objects = append(objects, info.object)
		}
	}
	return objects
}

func (d *loadingDispatcher) collectLoadResultsLocked(filter FilterByName) []domain.NamedLoadResult {
	results := make([]domain.NamedLoadResult, 0, len(d.infos))
	for name, info := range d.infos {
		if matches(filter, name) {
			results = append(results, domain.NamedLoadResult{Name: name, LoadResult: info.loadResult()})
		}
	}
	return results
}

func (d *loadingDispatcher) publishLoadedCountLocked() {
	n := 0
	for _, info := range d.infos {
		if info.loaded() {
			n++
		}
	}
	d.metrics.ObjectsLoaded(n)
}

func matches(filter FilterByName, name string) bool {
	return filter == nil || filter(name)
}
