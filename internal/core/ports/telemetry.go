package ports

import "io"

// Telemetry records load progress for interactive frontends.
//
//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks
type Telemetry interface {
	// Record starts recording one load as a vertex.
	Record(name string) Vertex
	// Close flushes and closes the recording session.
	Close() error
}

// Vertex represents one in-flight load in the progress display.
type Vertex interface {
	// Stdout returns a writer for free-form progress output.
	Stdout() io.Writer
	// Complete marks the vertex finished, successfully or with an error.
	Complete(err error)
	// Cached marks the vertex as served from a previous version.
	Cached()
}
