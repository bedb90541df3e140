// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/depot/internal/core/domain"

// LoadableFactory constructs objects from their configuration subtrees.
//
// Create must be reentrant: the loader calls it concurrently for distinct
// names. For one name it starts one load at a time, but a load cancelled by
// a configuration change or a reload may still be inside Create when its
// successor's call begins. It is always invoked without any loader lock held.
//
//go:generate go run go.uber.org/mock/mockgen -source=factory.go -destination=mocks/mock_factory.go -package=mocks
type LoadableFactory interface {
	// Create builds the object declared by cfg. Returning (nil, nil) is a
	// contract violation.
	Create(name string, cfg *domain.ObjectConfig) (domain.Loadable, error)
}
