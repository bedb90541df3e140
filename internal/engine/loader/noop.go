package loader

import (
	"io"
	"time"

	"go.trai.ch/depot/internal/core/ports"
)

// Fallback collaborators used when a caller leaves an Options field empty.

type nopLogger struct{}

func (nopLogger) Info(string, ...any)         {}
func (nopLogger) Warn(string, ...any)         {}
func (nopLogger) Error(string, error, ...any) {}

type nopMetrics struct{}

func (nopMetrics) LoadSucceeded(string, time.Duration) {}
func (nopMetrics) LoadFailed(string, time.Duration)    {}
func (nopMetrics) LoadsInFlight(int)                   {}
func (nopMetrics) ObjectsLoaded(int)                   {}
func (nopMetrics) ConfigParseFailure(string)           {}
func (nopMetrics) StaleFilesRetained(int)              {}

type nopTelemetry struct{}

func (nopTelemetry) Record(string) ports.Vertex { return nopVertex{} }
func (nopTelemetry) Close() error               { return nil }

type nopVertex struct{}

func (nopVertex) Stdout() io.Writer { return io.Discard }
func (nopVertex) Complete(error)    {}
func (nopVertex) Cached()           {}

// goPool runs every job on its own goroutine, the default when no bounded
// pool is injected.
type goPool struct{}

func (goPool) Go(fn func()) { go fn() }
