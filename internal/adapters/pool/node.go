package pool

import (
	"context"
	"runtime"

	"github.com/grindlemire/graft"
	"go.trai.ch/depot/internal/core/ports"
)

// NodeID is the unique identifier for the worker pool adapter Graft node.
// The node provides the config-independent default pool; a main config with
// an explicit workers setting gets a pool sized per run by the app layer.
const NodeID graft.ID = "adapter.pool"

func init() {
	graft.Register(graft.Node[ports.WorkerPool]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.WorkerPool, error) {
			return New(runtime.NumCPU()), nil
		},
	})
}
