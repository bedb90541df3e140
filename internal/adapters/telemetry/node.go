package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/depot/internal/core/ports"
)

// NodeID is the unique identifier for the telemetry adapter Graft node. The
// daemon wires the no-op recorder; the interactive check command swaps in a
// progrock recorder explicitly.
const NodeID graft.ID = "adapter.telemetry"

func init() {
	graft.Register(graft.Node[ports.Telemetry]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Telemetry, error) {
			return NewNoOp(), nil
		},
	})
}
