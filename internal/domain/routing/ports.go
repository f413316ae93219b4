// Package routing defines the port the engine consumes external routing
// services through, in the same interface-plus-DTO shape the domain layer
// uses for every other external collaborator.
package routing

import (
	"context"

	"github.com/dispatchcore/fleetengine/internal/domain/geo"
)

// Client resolves a drivable route between two points. Implementations
// must never return an error for a routing failure: per the engine's
// contract, a failed external call degrades to a synthetic polyline
// (see geo.SyntheticPolyline) rather than propagating.
type Client interface {
	Route(ctx context.Context, start, end geo.Location) (geo.Polyline, error)
}
