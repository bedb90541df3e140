package domain

// Lifetime is the declared freshness range of an object in seconds. After a
// successful load the next refresh is scheduled uniformly at random within
// the range. A range touching zero disables periodic refresh.
type Lifetime struct {
	MinSec uint64
	MaxSec uint64
}

// Disabled reports whether the lifetime disables periodic refresh.
func (l Lifetime) Disabled() bool { return l.MinSec == 0 || l.MaxSec == 0 }

// Loadable is a built external object owned by the loader population.
// Instances are immutable after publication; an update produces a new
// instance. Implementations must be safe to read from multiple goroutines.
type Loadable interface {
	// Name returns the object's declared name.
	Name() string
	// SupportsUpdates reports whether the object's source can change after
	// construction.
	SupportsUpdates() bool
	// Lifetime returns the declared freshness range.
	Lifetime() Lifetime
	// IsModified checks the object's source for changes. It is called
	// without any loader lock held and may be slow.
	IsModified() (bool, error)
	// Clone produces a copy sharing the already-built internals, used when
	// an object is reloaded under an unchanged configuration.
	Clone() (Loadable, error)
}
