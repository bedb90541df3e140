package domain

import "go.trai.ch/zerr"

var (
	// ErrObjectNotFound is returned when a strictly loaded name is absent
	// from the current configuration.
	ErrObjectNotFound = zerr.New("no such object")

	// ErrStillLoading is returned when a strict load observes an in-flight
	// load at deadline expiry.
	ErrStillLoading = zerr.New("object is still loading")

	// ErrNoObjectProduced signals a factory contract violation: the create
	// hook returned neither an object nor an error.
	ErrNoObjectProduced = zerr.New("factory produced neither object nor error")

	// ErrNoRepositories names the state in which no config repository is
	// attached. The loader does not return it: a read with no repository
	// attached yields a nil snapshot, which reads as empty.
	ErrNoRepositories = zerr.New("no config repositories attached")

	// ErrLoadFailed is the generic wrapper for a one-shot load run that left
	// at least one object unloaded.
	ErrLoadFailed = zerr.New("some objects failed to load")
)
