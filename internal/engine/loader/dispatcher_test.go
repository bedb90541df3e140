package loader

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestDispatcher_SimpleLoad(t *testing.T) {
	create, calls := countingCreate("alpha")
	d := newTestDispatcher(create)

	require.Equal(t, domain.StatusNotExist, d.status("alpha"))

	d.setConfiguration(snapshotOf(t, map[string]string{"alpha": "name: alpha\nv: 1"}))
	require.Equal(t, domain.StatusNotLoaded, d.status("alpha"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	obj := d.load(ctx, "alpha")

	require.NotNil(t, obj)
	assert.Equal(t, "alpha", obj.Name())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, domain.StatusLoaded, d.status("alpha"))

	res := d.loadResult("alpha")
	assert.Equal(t, domain.StatusLoaded, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, "test.yaml", res.Origin)
}

func TestDispatcher_ConcurrentWaiters_SingleCreate(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32
		created := &fakeLoadable{name: "gamma"}
		d := newTestDispatcher(func(string, *domain.ObjectConfig, bool, domain.Loadable) (domain.Loadable, error) {
			calls.Add(1)
			time.Sleep(100 * time.Millisecond)
			return created, nil
		})
		d.enableAsyncLoading(true)
		d.setConfiguration(snapshotOf(t, map[string]string{"gamma": "name: gamma"}))

		const waiters = 100
		results := make([]domain.Loadable, waiters)
		var wg sync.WaitGroup
		for i := range waiters {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				results[i] = d.load(ctx, "gamma")
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		for i := range waiters {
			assert.Same(t, created, results[i])
		}
	})
}

func TestDispatcher_SingleInFlightPerName(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var inFlight, maxInFlight atomic.Int32
		d := newTestDispatcher(func(name string, _ *domain.ObjectConfig, _ bool, _ domain.Loadable) (domain.Loadable, error) {
			cur := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			inFlight.Add(-1)
			return &fakeLoadable{name: name}, nil
		})
		d.enableAsyncLoading(true)
		d.setConfiguration(snapshotOf(t, map[string]string{"delta": "name: delta"}))

		// Hammer one name with load requests; only one construction may run
		// at a time.
		for range 20 {
			go d.startLoad("delta")
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				d.load(ctx, "delta")
			}()
		}
		synctest.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d.load(ctx, "delta")
		synctest.Wait()

		assert.Equal(t, int32(1), maxInFlight.Load())
	})
}

func TestDispatcher_CancelViaConfigChange(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		type call struct {
			configChanged bool
			obj           *fakeLoadable
		}
		var mu sync.Mutex
		var calls []call
		proceed := make(chan struct{})

		d := newTestDispatcher(func(name string, _ *domain.ObjectConfig, configChanged bool, _ domain.Loadable) (domain.Loadable, error) {
			obj := &fakeLoadable{name: name}
			mu.Lock()
			n := len(calls)
			calls = append(calls, call{configChanged: configChanged, obj: obj})
			mu.Unlock()
			if n == 0 {
				<-proceed // first construction stalls mid-call
			}
			return obj, nil
		})
		d.enableAsyncLoading(true)

		d.setConfiguration(snapshotOf(t, map[string]string{"delta": "name: delta\nv: 1"}))
		d.startLoad("delta")
		synctest.Wait() // first create is now blocked on proceed

		// A non-equivalent config arrives while the first create is mid-call.
		d.setConfiguration(snapshotOf(t, map[string]string{"delta": "name: delta\nv: 2"}))

		close(proceed)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		got := d.load(ctx, "delta")
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, calls, 2)
		assert.False(t, calls[0].configChanged)
		assert.True(t, calls[1].configChanged, "second construction must see config_changed")
		assert.Same(t, calls[1].obj, got, "the superseded load's result must be discarded")
	})
}

func TestDispatcher_Removal(t *testing.T) {
	create, _ := countingCreate("epsilon")
	d := newTestDispatcher(create)
	d.setConfiguration(snapshotOf(t, map[string]string{"epsilon": "name: epsilon"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NotNil(t, d.load(ctx, "epsilon"))

	d.setConfiguration(snapshotOf(t, map[string]string{}))
	assert.Equal(t, domain.StatusNotExist, d.status("epsilon"))
	assert.Nil(t, d.load(ctx, "epsilon"))
}

func TestDispatcher_FailureKeepsPreviousObject(t *testing.T) {
	boom := zerr.New("backend unavailable")
	fail := false
	var built domain.Loadable
	d := newTestDispatcher(func(name string, _ *domain.ObjectConfig, _ bool, _ domain.Loadable) (domain.Loadable, error) {
		if fail {
			return nil, boom
		}
		built = &fakeLoadable{name: name}
		return built, nil
	})
	d.setConfiguration(snapshotOf(t, map[string]string{"zeta": "name: zeta"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NotNil(t, d.load(ctx, "zeta"))

	fail = true
	d.reload("zeta", false)

	res := d.loadResult("zeta")
	assert.Same(t, built, res.Object, "previous object must stay in service after a failed reload")
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, domain.StatusLoaded, res.Status)
}

func TestDispatcher_IdenticalSnapshotIsNoop(t *testing.T) {
	create, calls := countingCreate("eta")
	d := newTestDispatcher(create)

	snap := snapshotOf(t, map[string]string{"eta": "name: eta\nv: 1"})
	d.setConfiguration(snap)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.load(ctx, "eta")
	require.Equal(t, int32(1), calls.Load())

	// Same snapshot pointer: nothing happens.
	d.setConfiguration(snap)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, domain.StatusLoaded, d.status("eta"))

	// Fresh snapshot with equivalent contents: no reload either.
	d.setConfiguration(snapshotOf(t, map[string]string{"eta": "name: eta\nv: 1"}))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, domain.StatusLoaded, d.status("eta"))
}

func TestDispatcher_KeySetMatchesSnapshot(t *testing.T) {
	create, _ := countingCreate("any")
	d := newTestDispatcher(create)

	d.setConfiguration(snapshotOf(t, map[string]string{
		"a": "name: a", "b": "name: b", "c": "name: c",
	}))
	d.setConfiguration(snapshotOf(t, map[string]string{
		"b": "name: b", "d": "name: d",
	}))

	results := d.loadResults(nil)
	names := make(map[string]bool, len(results))
	for _, res := range results {
		names[res.Name] = true
	}
	assert.Equal(t, map[string]bool{"b": true, "d": true}, names)
}

func TestDispatcher_LoadStrict(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		boom := zerr.New("cannot construct")
		d := newTestDispatcher(func(name string, _ *domain.ObjectConfig, _ bool, _ domain.Loadable) (domain.Loadable, error) {
			if name == "bad" {
				return nil, boom
			}
			time.Sleep(time.Hour) // "slow" never finishes within the test deadline
			return &fakeLoadable{name: name}, nil
		})
		d.enableAsyncLoading(true)
		d.setConfiguration(snapshotOf(t, map[string]string{
			"bad": "name: bad", "slow": "name: slow",
		}))
		// Joins the "slow" worker so no goroutine is left blocked when the
		// bubble ends.
		defer d.close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := d.loadStrict(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrObjectNotFound)

		_, err = d.loadStrict(ctx, "bad")
		assert.ErrorIs(t, err, boom)

		_, err = d.loadStrict(ctx, "slow")
		assert.ErrorIs(t, err, domain.ErrStillLoading)
	})
}

func TestDispatcher_NoObjectNoError(t *testing.T) {
	d := newTestDispatcher(func(string, *domain.ObjectConfig, bool, domain.Loadable) (domain.Loadable, error) {
		return nil, nil
	})
	d.setConfiguration(snapshotOf(t, map[string]string{"theta": "name: theta"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := d.loadStrict(ctx, "theta")
	assert.ErrorIs(t, err, domain.ErrNoObjectProduced)
}

func TestDispatcher_CloseJoinsWorkers(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		started := make(chan struct{}, 1)
		d := newTestDispatcher(func(name string, _ *domain.ObjectConfig, _ bool, _ domain.Loadable) (domain.Loadable, error) {
			started <- struct{}{}
			time.Sleep(time.Minute)
			return &fakeLoadable{name: name}, nil
		})
		d.enableAsyncLoading(true)
		d.setConfiguration(snapshotOf(t, map[string]string{"iota": "name: iota"}))
		d.startLoad("iota")
		<-started

		d.close()

		// After close every worker has finished and its result was discarded.
		assert.Equal(t, domain.StatusNotExist, d.status("iota"))
		synctest.Wait()
	})
}

func TestDispatcher_ReloadOutdated(t *testing.T) {
	due := time.Now().Add(-time.Second)
	later := time.Now().Add(time.Hour)
	next := due
	modified := false

	var calls int
	obj := &fakeLoadable{name: "kappa", supportsUpdates: true,
		modified: func() (bool, error) { return modified, nil }}
	d := newTestDispatcherNext(
		func(string, *domain.ObjectConfig, bool, domain.Loadable) (domain.Loadable, error) {
			calls++
			return obj, nil
		},
		func(domain.Loadable, uint64) time.Time { return next },
	)
	d.setConfiguration(snapshotOf(t, map[string]string{"kappa": "name: kappa"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NotNil(t, d.load(ctx, "kappa"))
	require.Equal(t, 1, calls)

	// Unmodified: only the schedule is refreshed, no reload.
	next = later
	d.reloadOutdated()
	assert.Equal(t, 1, calls)

	// The refreshed schedule is in the future now, so nothing is due.
	modified = true
	d.reloadOutdated()
	assert.Equal(t, 1, calls)

	// Force the schedule into the past again: modified source reloads.
	d.mu.Lock()
	d.infos["kappa"].nextUpdateTime = due
	d.mu.Unlock()
	d.reloadOutdated()
	assert.Equal(t, 2, calls)
}

func TestDispatcher_ReloadOutdatedRetriesFailed(t *testing.T) {
	boom := zerr.New("flaky")
	fail := true
	var calls int
	d := newTestDispatcherNext(
		func(name string, _ *domain.ObjectConfig, _ bool, _ domain.Loadable) (domain.Loadable, error) {
			calls++
			if fail {
				return nil, boom
			}
			return &fakeLoadable{name: name}, nil
		},
		func(domain.Loadable, uint64) time.Time { return time.Now().Add(-time.Second) },
	)
	d.setConfiguration(snapshotOf(t, map[string]string{"lambda": "name: lambda"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.load(ctx, "lambda")
	require.Equal(t, 1, calls)
	require.Equal(t, domain.StatusFailed, d.status("lambda"))

	fail = false
	d.reloadOutdated()

	assert.Equal(t, 2, calls)
	assert.Equal(t, domain.StatusLoaded, d.status("lambda"))
	assert.NoError(t, d.loadResult("lambda").Err)
}

func TestDispatcher_AlwaysLoadEverything(t *testing.T) {
	create, calls := countingCreate("any")
	d := newTestDispatcher(create)

	d.setConfiguration(snapshotOf(t, map[string]string{"mu": "name: mu", "nu": "name: nu"}))
	assert.Equal(t, int32(0), calls.Load())

	d.enableAlwaysLoadEverything(true)
	assert.Equal(t, int32(2), calls.Load(), "enabling eager loading starts every never-loaded object")
	assert.Equal(t, domain.StatusLoaded, d.status("mu"))
	assert.Equal(t, domain.StatusLoaded, d.status("nu"))

	d.setConfiguration(snapshotOf(t, map[string]string{
		"mu": "name: mu", "nu": "name: nu", "xi": "name: xi",
	}))
	assert.Equal(t, int32(3), calls.Load(), "a new declaration loads as soon as it appears")
}

func TestDispatcher_ForcedReloadBlocksWaiters(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		first := true
		d := newTestDispatcher(func(name string, _ *domain.ObjectConfig, _ bool, prev domain.Loadable) (domain.Loadable, error) {
			if !first {
				<-release
			}
			first = false
			return &fakeLoadable{name: name, version: 2}, nil
		})
		d.enableAsyncLoading(true)
		d.setConfiguration(snapshotOf(t, map[string]string{"rho": "name: rho"}))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NotNil(t, d.load(ctx, "rho"))

		d.reload("rho", false)
		require.Equal(t, domain.StatusLoadedAndReloading, d.status("rho"))

		// A waiter during a forced reload blocks until the new result lands.
		done := make(chan domain.Loadable, 1)
		go func() {
			waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer waitCancel()
			done <- d.load(waitCtx, "rho")
		}()
		synctest.Wait()
		select {
		case <-done:
			t.Fatal("waiter returned before the forced reload finished")
		default:
		}

		close(release)
		obj := <-done
		require.NotNil(t, obj)
	})
}
