// Package fleet holds the Vehicle entity: identity, capacity, fuel,
// driving hours, odometers, and status, with the same validating-
// constructor-plus-getters shape used throughout the domain layer.
package fleet

import (
	"encoding/json"
	"time"

	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

// Status is the vehicle's current operating state.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusEnRouteEmpty  Status = "en_route_empty"
	StatusEnRouteLoaded Status = "en_route_loaded"
	StatusAtPickup      Status = "at_pickup"
	StatusAtDelivery    Status = "at_delivery"
	StatusMaintenance   Status = "maintenance"
	StatusOffline       Status = "offline"
)

// IsEnRoute reports whether the status implies an active trip references
// this vehicle.
func (s Status) IsEnRoute() bool {
	switch s {
	case StatusEnRouteEmpty, StatusEnRouteLoaded, StatusAtPickup, StatusAtDelivery:
		return true
	default:
		return false
	}
}

// Vehicle is an immutable-by-convention value: every mutating method
// returns a new *Vehicle rather than editing in place, so a Store snapshot
// can hand out references without further synchronization.
type Vehicle struct {
	id               string
	driverID         string
	capacityTons     float64
	currentLoadTons  float64
	fuelPercent      float64
	drivingHoursLeft float64
	totalKmToday     float64
	loadedKmToday    float64
	lastActivity     time.Time
	location         geo.Location
	homeDepot        *geo.Location
	status           Status
}

// NewVehicle constructs a Vehicle in idle status at the given location.
func NewVehicle(id, driverID string, capacityTons float64, location geo.Location, homeDepot *geo.Location, clock shared.Clock) (*Vehicle, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if capacityTons <= 0 {
		return nil, shared.NewValidationError("capacityTons", "must be positive")
	}
	return &Vehicle{
		id:               id,
		driverID:         driverID,
		capacityTons:     capacityTons,
		fuelPercent:      100,
		drivingHoursLeft: 11,
		location:         location,
		homeDepot:        homeDepot,
		status:           StatusIdle,
		lastActivity:     clock.Now(),
	}, nil
}

// Getters

func (v *Vehicle) ID() string                 { return v.id }
func (v *Vehicle) DriverID() string           { return v.driverID }
func (v *Vehicle) CapacityTons() float64      { return v.capacityTons }
func (v *Vehicle) CurrentLoadTons() float64   { return v.currentLoadTons }
func (v *Vehicle) FuelPercent() float64       { return v.fuelPercent }
func (v *Vehicle) DrivingHoursLeft() float64  { return v.drivingHoursLeft }
func (v *Vehicle) TotalKmToday() float64      { return v.totalKmToday }
func (v *Vehicle) LoadedKmToday() float64     { return v.loadedKmToday }
func (v *Vehicle) LastActivity() time.Time    { return v.lastActivity }
func (v *Vehicle) Location() geo.Location     { return v.location }
func (v *Vehicle) HomeDepot() *geo.Location   { return v.homeDepot }
func (v *Vehicle) Status() Status             { return v.status }
func (v *Vehicle) HasCapacityFor(tons float64) bool {
	return tons <= v.capacityTons
}

// IdleDuration returns how long the vehicle has been idle as of now, or
// zero if it is not idle.
func (v *Vehicle) IdleDuration(now time.Time) time.Duration {
	if v.status != StatusIdle {
		return 0
	}
	return now.Sub(v.lastActivity)
}

// clone produces a shallow copy for a mutating method to edit and return,
// keeping the receiver (and anything a Snapshot handed out) untouched.
func (v *Vehicle) clone() *Vehicle {
	cp := *v
	return &cp
}

// WithStatus returns a copy transitioned to the given status, touching
// lastActivity.
func (v *Vehicle) WithStatus(status Status, now time.Time) *Vehicle {
	cp := v.clone()
	cp.status = status
	cp.lastActivity = now
	return cp
}

// WithDispatch returns a copy reflecting assignment to a trip: status
// becomes en_route_empty (or en_route_loaded if the pickup leg is
// zero-length).
func (v *Vehicle) WithDispatch(loadedFromStart bool, now time.Time) *Vehicle {
	cp := v.clone()
	if loadedFromStart {
		cp.status = StatusEnRouteLoaded
	} else {
		cp.status = StatusEnRouteEmpty
	}
	cp.lastActivity = now
	return cp
}

// WithMotion returns a copy with position, odometers, fuel, and driving
// hours advanced by one Motion tick's worth of travel.
func (v *Vehicle) WithMotion(newLocation geo.Location, deltaKm float64, loaded bool, fuelRatePer10km, dtHours float64, now time.Time) *Vehicle {
	cp := v.clone()
	cp.location = newLocation
	cp.totalKmToday += deltaKm
	if loaded {
		cp.loadedKmToday += deltaKm
	}
	cp.fuelPercent -= (deltaKm / 10.0) * fuelRatePer10km
	if cp.fuelPercent < 0 {
		cp.fuelPercent = 0
	}
	cp.drivingHoursLeft -= dtHours
	if cp.drivingHoursLeft < 0 {
		cp.drivingHoursLeft = 0
	}
	cp.lastActivity = now
	return cp
}

// WithCargo returns a copy with current load tons set.
func (v *Vehicle) WithCargo(tons float64) *Vehicle {
	cp := v.clone()
	cp.currentLoadTons = tons
	return cp
}

// WithReleasedToIdle returns a copy released back to idle with empty cargo,
// as happens on trip completion or cancellation.
func (v *Vehicle) WithReleasedToIdle(now time.Time) *Vehicle {
	cp := v.clone()
	cp.status = StatusIdle
	cp.currentLoadTons = 0
	cp.lastActivity = now
	return cp
}

// MarshalJSON renders the vehicle for the REST surface; fields are
// unexported so the Store can hand out shared references safely, this is
// the one place that shape crosses into wire format.
func (v *Vehicle) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID               string        `json:"id"`
		DriverID         string        `json:"driver_id"`
		CapacityTons     float64       `json:"capacity_tons"`
		CurrentLoadTons  float64       `json:"current_load_tons"`
		FuelPercent      float64       `json:"fuel_percent"`
		DrivingHoursLeft float64       `json:"driving_hours_left"`
		TotalKmToday     float64       `json:"total_km_today"`
		LoadedKmToday    float64       `json:"loaded_km_today"`
		LastActivity     time.Time     `json:"last_activity"`
		Location         geo.Location  `json:"location"`
		HomeDepot        *geo.Location `json:"home_depot,omitempty"`
		Status           Status        `json:"status"`
	}{
		ID:               v.id,
		DriverID:         v.driverID,
		CapacityTons:     v.capacityTons,
		CurrentLoadTons:  v.currentLoadTons,
		FuelPercent:      v.fuelPercent,
		DrivingHoursLeft: v.drivingHoursLeft,
		TotalKmToday:     v.totalKmToday,
		LoadedKmToday:    v.loadedKmToday,
		LastActivity:     v.lastActivity,
		Location:         v.location,
		HomeDepot:        v.homeDepot,
		Status:           v.status,
	})
}
