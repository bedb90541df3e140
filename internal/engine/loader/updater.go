package loader

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
)

// periodicUpdater runs one long-lived worker that, on a fixed cadence,
// re-reads the config files, feeds the snapshot to the dispatcher, and
// triggers reloading of outdated objects. It also owns the schedule
// computation for finished loads.
type periodicUpdater struct {
	reader     *configFilesReader
	dispatcher *loadingDispatcher
	log        ports.Logger

	mu       sync.Mutex
	settings domain.UpdateSettings
	stop     chan struct{}
	done     chan struct{}
	rng      *rand.Rand
}

func newPeriodicUpdater(reader *configFilesReader, dispatcher *loadingDispatcher, log ports.Logger) *periodicUpdater {
	return &periodicUpdater{
		reader:     reader,
		dispatcher: dispatcher,
		log:        log,
		settings:   domain.DefaultUpdateSettings(),
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// enable starts the update worker if it is not running, or stops and joins
// it. Settings only apply when enabling.
func (u *periodicUpdater) enable(enabled bool, settings domain.UpdateSettings) {
	u.mu.Lock()
	if enabled {
		u.settings = settings
		if u.done == nil {
			u.stop = make(chan struct{})
			u.done = make(chan struct{})
			go u.run(u.stop, u.done, settings)
			u.log.Info("periodic updates enabled", "check_period_sec", settings.CheckPeriodSec)
		}
		u.mu.Unlock()
		return
	}

	stop, done := u.stop, u.done
	u.stop, u.done = nil, nil
	u.mu.Unlock()

	if done != nil {
		close(stop)
		<-done
		u.log.Info("periodic updates disabled")
	}
}

// run is the worker loop. The reader and dispatcher are called without the
// updater's own lock held. The period is re-read every cycle so re-enabling
// with new settings takes effect on the running worker.
func (u *periodicUpdater) run(stop, done chan struct{}, settings domain.UpdateSettings) {
	defer close(done)

	period := time.Duration(settings.CheckPeriodSec) * time.Second
	for {
		select {
		case <-stop:
			return
		case <-time.After(period):
		}

		u.dispatcher.setConfiguration(u.reader.read(false))
		u.dispatcher.reloadOutdated()

		u.mu.Lock()
		period = time.Duration(u.settings.CheckPeriodSec) * time.Second
		u.mu.Unlock()
	}
}

// calculateNextUpdateTime schedules the next reconsideration of an object.
// After a success the instant is drawn uniformly from the declared lifetime
// range; an object that does not support updates, or whose range touches
// zero, is never refreshed. After a failure the delay grows exponentially
// with jitter, capped at the configured maximum.
func (u *periodicUpdater) calculateNextUpdateTime(object domain.Loadable, errorCount uint64) time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()

	if errorCount == 0 {
		if object == nil || !object.SupportsUpdates() {
			return domain.Never
		}
		lifetime := object.Lifetime()
		if lifetime.Disabled() {
			return domain.Never
		}
		sec := u.uniform(lifetime.MinSec, lifetime.MaxSec)
		return time.Now().Add(time.Duration(sec) * time.Second)
	}

	var spread uint64 = math.MaxUint64
	if errorCount <= 64 {
		spread = uint64(1) << (errorCount - 1)
	}
	draw := u.uniform(0, spread)
	delay := u.settings.BackoffInitialSec + draw
	if delay < draw { // overflow
		delay = math.MaxUint64
	}
	delay = min(delay, u.settings.BackoffMaxSec)
	return time.Now().Add(time.Duration(delay) * time.Second)
}

// uniform draws from [lo, hi] inclusive. Callers hold u.mu; the generator is
// not safe for concurrent use.
func (u *periodicUpdater) uniform(lo, hi uint64) uint64 {
	if hi <= lo {
		return lo
	}
	if hi-lo == math.MaxUint64 {
		return u.rng.Uint64()
	}
	return lo + u.rng.Uint64N(hi-lo+1)
}
