package ports

import "time"

// Metrics receives loader counters and gauges. Implementations must be safe
// for concurrent use; the loader makes some of these calls while holding one
// of its own locks.
//
//go:generate go run go.uber.org/mock/mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	// LoadSucceeded records one finished successful load.
	LoadSucceeded(name string, d time.Duration)
	// LoadFailed records one finished failed load.
	LoadFailed(name string, d time.Duration)
	// LoadsInFlight adjusts the in-flight load gauge by delta.
	LoadsInFlight(delta int)
	// ObjectsLoaded sets the number of objects currently in service.
	ObjectsLoaded(n int)
	// ConfigParseFailure records one config file that failed to parse.
	ConfigParseFailure(path string)
	// StaleFilesRetained sets how many previously parsed files are being
	// served from their last good contents because a rescan failed.
	StaleFilesRetained(n int)
}
