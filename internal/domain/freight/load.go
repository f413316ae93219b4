// Package freight holds the Load entity: origin/destination, weight, the
// offered rate, pickup window and delivery deadline, and the status
// lifecycle a load moves through as it is matched, transported, and
// delivered.
package freight

import (
	"encoding/json"
	"time"

	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

// Status is the load's position in its lifecycle.
type Status string

const (
	StatusAvailable Status = "available"
	StatusMatched   Status = "matched"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Load is immutable-by-convention, mirroring Vehicle: mutating methods
// return copies.
type Load struct {
	id                string
	origin            geo.Location
	destination       geo.Location
	weightTons        float64
	distanceKm        float64
	ratePerKm         float64
	pickupWindowStart time.Time
	pickupWindowEnd   time.Time
	deliveryDeadline  time.Time
	assignedVehicleID string
	status            Status
}

// NewLoad constructs a Load in available status. distanceKm is
// precomputed from origin/destination so Matcher need not recompute it
// per candidate pairing.
func NewLoad(id string, origin, destination geo.Location, weightTons, ratePerKm float64, pickupStart, pickupEnd, deadline time.Time) (*Load, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if weightTons <= 0 {
		return nil, shared.NewValidationError("weightTons", "must be positive")
	}
	if !pickupEnd.After(pickupStart) {
		return nil, shared.NewValidationError("pickupWindowEnd", "must be after pickupWindowStart")
	}
	return &Load{
		id:                id,
		origin:            origin,
		destination:       destination,
		weightTons:        weightTons,
		distanceKm:         geo.DistanceKm(origin, destination),
		ratePerKm:         ratePerKm,
		pickupWindowStart: pickupStart,
		pickupWindowEnd:   pickupEnd,
		deliveryDeadline:  deadline,
		status:            StatusAvailable,
	}, nil
}

// Getters

func (l *Load) ID() string                  { return l.id }
func (l *Load) Origin() geo.Location        { return l.origin }
func (l *Load) Destination() geo.Location   { return l.destination }
func (l *Load) WeightTons() float64         { return l.weightTons }
func (l *Load) DistanceKm() float64         { return l.distanceKm }
func (l *Load) RatePerKm() float64          { return l.ratePerKm }
func (l *Load) PickupWindowStart() time.Time { return l.pickupWindowStart }
func (l *Load) PickupWindowEnd() time.Time  { return l.pickupWindowEnd }
func (l *Load) DeliveryDeadline() time.Time { return l.deliveryDeadline }
func (l *Load) AssignedVehicleID() string   { return l.assignedVehicleID }
func (l *Load) Status() Status              { return l.status }

// IsPickupWindowOpen reports whether now is still within the pickup
// window's deadline (load must never be proposed after it closes).
func (l *Load) IsPickupWindowOpen(now time.Time) bool {
	return !now.After(l.pickupWindowEnd)
}

// Revenue returns rate * distance for the loaded leg.
func (l *Load) Revenue() float64 {
	return l.ratePerKm * l.distanceKm
}

func (l *Load) clone() *Load {
	cp := *l
	return &cp
}

// WithMatched returns a copy transitioned to matched, assigned to the
// given vehicle. Only legal from available.
func (l *Load) WithMatched(vehicleID string) (*Load, error) {
	if l.status != StatusAvailable {
		return nil, shared.NewConflictError("load " + l.id + " is not available for matching")
	}
	cp := l.clone()
	cp.status = StatusMatched
	cp.assignedVehicleID = vehicleID
	return cp, nil
}

// WithInTransit returns a copy transitioned to in_transit. Only legal
// from matched.
func (l *Load) WithInTransit() (*Load, error) {
	if l.status != StatusMatched {
		return nil, shared.NewConflictError("load " + l.id + " is not matched")
	}
	cp := l.clone()
	cp.status = StatusInTransit
	return cp, nil
}

// WithDelivered returns a copy transitioned to delivered. Only legal from
// in_transit.
func (l *Load) WithDelivered() (*Load, error) {
	if l.status != StatusInTransit {
		return nil, shared.NewConflictError("load " + l.id + " is not in transit")
	}
	cp := l.clone()
	cp.status = StatusDelivered
	return cp, nil
}

// WithCancelled returns a copy transitioned to cancelled, clearing any
// vehicle assignment. Only legal from available or matched.
func (l *Load) WithCancelled() (*Load, error) {
	if l.status != StatusAvailable && l.status != StatusMatched {
		return nil, shared.NewConflictError("load " + l.id + " cannot be cancelled from status " + string(l.status))
	}
	cp := l.clone()
	cp.status = StatusCancelled
	cp.assignedVehicleID = ""
	return cp, nil
}

// WithExpired returns a copy transitioned to expired. Only legal from
// available or matched.
func (l *Load) WithExpired() (*Load, error) {
	if l.status != StatusAvailable && l.status != StatusMatched {
		return nil, shared.NewConflictError("load " + l.id + " cannot expire from status " + string(l.status))
	}
	cp := l.clone()
	cp.status = StatusExpired
	cp.assignedVehicleID = ""
	return cp, nil
}

// MarshalJSON renders the load for the REST surface.
func (l *Load) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID                string       `json:"id"`
		Origin            geo.Location `json:"origin"`
		Destination       geo.Location `json:"destination"`
		WeightTons        float64      `json:"weight_tons"`
		DistanceKm        float64      `json:"distance_km"`
		RatePerKm         float64      `json:"rate_per_km"`
		PickupWindowStart time.Time    `json:"pickup_window_start"`
		PickupWindowEnd   time.Time    `json:"pickup_window_end"`
		DeliveryDeadline  time.Time    `json:"delivery_deadline"`
		AssignedVehicleID string       `json:"assigned_vehicle_id,omitempty"`
		Status            Status       `json:"status"`
	}{
		ID:                l.id,
		Origin:            l.origin,
		Destination:       l.destination,
		WeightTons:        l.weightTons,
		DistanceKm:        l.distanceKm,
		RatePerKm:         l.ratePerKm,
		PickupWindowStart: l.pickupWindowStart,
		PickupWindowEnd:   l.pickupWindowEnd,
		DeliveryDeadline:  l.deliveryDeadline,
		AssignedVehicleID: l.assignedVehicleID,
		Status:            l.status,
	})
}
