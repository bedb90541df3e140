// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/depot/internal/adapters/logger"
	_ "go.trai.ch/depot/internal/adapters/metrics"
	_ "go.trai.ch/depot/internal/adapters/pool"
	_ "go.trai.ch/depot/internal/adapters/telemetry"
	// Register app nodes.
	_ "go.trai.ch/depot/internal/app"
)
