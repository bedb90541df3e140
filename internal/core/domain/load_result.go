package domain

import "time"

// Never is the next-update instant meaning "do not refresh periodically".
var Never = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

// LoadResult is the externally visible outcome of the most recent load of
// one object.
type LoadResult struct {
	Status Status
	// Object is the built object currently in service, if any. A failed
	// reload leaves the previous object here.
	Object Loadable
	// Err is the error of the last failed load, nil after a success.
	Err error
	// LoadingStart is when the most recent load began.
	LoadingStart time.Time
	// LoadingDuration is how long the most recent load took, or how long
	// the in-flight load has been running.
	LoadingDuration time.Duration
	// Origin is the config file the object was declared in.
	Origin string
}

// NamedLoadResult pairs a load result with the object's name for collectors.
type NamedLoadResult struct {
	Name string
	LoadResult
}
