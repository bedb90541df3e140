// Package telemetry provides progress-recording adapters for the loader.
package telemetry

import (
	"io"

	"go.trai.ch/depot/internal/core/ports"
)

// NoOp is a ports.Telemetry implementation that records nothing. It is the
// default for the daemon, where progress goes to logs and metrics instead of
// a terminal.
type NoOp struct{}

// NewNoOp creates a NoOp telemetry.
func NewNoOp() *NoOp { return &NoOp{} }

// Record returns a vertex that swallows everything.
func (*NoOp) Record(string) ports.Vertex { return noOpVertex{} }

// Close does nothing.
func (*NoOp) Close() error { return nil }

type noOpVertex struct{}

func (noOpVertex) Stdout() io.Writer { return io.Discard }
func (noOpVertex) Complete(error)    {}
func (noOpVertex) Cached()           {}
