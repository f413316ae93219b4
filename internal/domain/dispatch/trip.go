// Package dispatch holds the Trip aggregate and the closed event-type
// enumeration the rest of the engine communicates through. Trip's phase
// transitions follow a strict forward order, validated the way Route
// validates segment execution in the domain this is grounded on, but the
// phase set itself (planning -> en_route_to_pickup -> loading ->
// in_transit -> unloading -> completed/cancelled) is bespoke to freight
// dispatch and does not reuse a generic pending/running/completed machine.
package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

// Phase is the trip's position in its lifecycle.
type Phase string

const (
	PhasePlanning        Phase = "planning"
	PhaseEnRouteToPickup Phase = "en_route_to_pickup"
	PhaseLoading         Phase = "loading"
	PhaseInTransit       Phase = "in_transit"
	PhaseUnloading       Phase = "unloading"
	PhaseCompleted       Phase = "completed"
	PhaseCancelled       Phase = "cancelled"
)

// IsTerminal reports whether the phase is completed or cancelled.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// forwardOrder lists the phases in the order they must be visited;
// WithPhase uses it to reject out-of-order transitions, while Motion
// decides when to transition from progress thresholds.
var forwardOrder = []Phase{PhasePlanning, PhaseEnRouteToPickup, PhaseLoading, PhaseInTransit, PhaseUnloading, PhaseCompleted}

// Trip is immutable-by-convention; Motion and Adapter produce copies via
// the With* methods below rather than mutating in place.
type Trip struct {
	id                string
	reference         int
	vehicleID         string
	loadID            string
	phase             Phase
	route             geo.Polyline
	routeTotalKm      float64
	progress          float64 // percent, 0..100
	emptyLegKm        float64
	loadedLegKm       float64
	estimatedRevenue  float64
	estimatedFuelCost float64
	estimatedProfit   float64
	startedAt         time.Time
	completedAt       *time.Time
	delayMinutes      float64 // accumulated by Adapter's ADJUST_ROUTE
	followupLoadID    string
	phaseHeld         bool // set and read only through WithHold/IsHeld
}

// NewTrip constructs a Trip in planning phase with zero progress.
func NewTrip(id string, reference int, vehicleID, loadID string, routeTotalKm, emptyLegKm, loadedLegKm, revenue, fuelCost float64, now time.Time) (*Trip, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if vehicleID == "" || loadID == "" {
		return nil, shared.NewValidationError("vehicleID/loadID", "cannot be empty")
	}
	return &Trip{
		id:                id,
		reference:         reference,
		vehicleID:         vehicleID,
		loadID:            loadID,
		phase:             PhasePlanning,
		routeTotalKm:      routeTotalKm,
		emptyLegKm:        emptyLegKm,
		loadedLegKm:       loadedLegKm,
		estimatedRevenue:  revenue,
		estimatedFuelCost: fuelCost,
		estimatedProfit:   revenue - fuelCost,
		startedAt:         now,
	}, nil
}

// Getters

func (t *Trip) ID() string                 { return t.id }
func (t *Trip) Reference() int             { return t.reference }
func (t *Trip) VehicleID() string          { return t.vehicleID }
func (t *Trip) LoadID() string             { return t.loadID }
func (t *Trip) Phase() Phase               { return t.phase }
func (t *Trip) Route() geo.Polyline        { return t.route }
func (t *Trip) RouteTotalKm() float64      { return t.routeTotalKm }
func (t *Trip) Progress() float64          { return t.progress }
func (t *Trip) ProgressFraction() float64  { return t.progress / 100.0 }
func (t *Trip) EmptyLegKm() float64        { return t.emptyLegKm }
func (t *Trip) LoadedLegKm() float64       { return t.loadedLegKm }
func (t *Trip) EstimatedRevenue() float64  { return t.estimatedRevenue }
func (t *Trip) EstimatedFuelCost() float64 { return t.estimatedFuelCost }
func (t *Trip) EstimatedProfit() float64   { return t.estimatedProfit }
func (t *Trip) StartedAt() time.Time       { return t.startedAt }
func (t *Trip) CompletedAt() *time.Time    { return t.completedAt }
func (t *Trip) DelayMinutes() float64      { return t.delayMinutes }
func (t *Trip) FollowupLoadID() string     { return t.followupLoadID }
func (t *Trip) HasRoute() bool             { return len(t.route.Points) > 0 }

func (t *Trip) clone() *Trip {
	cp := *t
	return &cp
}

// WithRoute returns a copy with the polyline attached, invalidating any
// prior route (used both on first assignment and by ADJUST_ROUTE).
func (t *Trip) WithRoute(route geo.Polyline, totalKm float64) *Trip {
	cp := t.clone()
	cp.route = route
	cp.routeTotalKm = totalKm
	return cp
}

// WithProgress returns a copy with progress advanced. Progress must be
// monotone non-decreasing; the caller (Motion) is responsible for that.
func (t *Trip) WithProgress(progress float64) *Trip {
	cp := t.clone()
	cp.progress = progress
	return cp
}

// WithPhase returns a copy transitioned to the given phase, validating
// that it is the very next phase in forward order (or a terminal phase
// reached early via cancellation).
func (t *Trip) WithPhase(phase Phase) (*Trip, error) {
	if phase == PhaseCancelled {
		cp := t.clone()
		cp.phase = PhaseCancelled
		return cp, nil
	}
	if !isNextPhase(t.phase, phase) {
		return nil, shared.NewInvariantError(fmt.Sprintf("trip %s cannot transition %s -> %s", t.id, t.phase, phase))
	}
	cp := t.clone()
	cp.phase = phase
	return cp, nil
}

func isNextPhase(current, next Phase) bool {
	for i, p := range forwardOrder {
		if p == current {
			return i+1 < len(forwardOrder) && forwardOrder[i+1] == next
		}
	}
	return false
}

// WithHold returns a copy with the hold flag set or cleared. Motion does
// not read this flag: its one-tick loading/unloading hold is keyed on the
// phase itself.
func (t *Trip) WithHold(held bool) *Trip {
	cp := t.clone()
	cp.phaseHeld = held
	return cp
}

func (t *Trip) IsHeld() bool { return t.phaseHeld }

// WithCompleted returns a copy marked completed at the given time.
func (t *Trip) WithCompleted(now time.Time) (*Trip, error) {
	done, err := t.WithPhase(PhaseCompleted)
	if err != nil {
		return nil, err
	}
	done.completedAt = &now
	done.progress = 100
	return done, nil
}

// WithCancelled returns a copy marked cancelled at the given time; legal
// from any non-terminal phase.
func (t *Trip) WithCancelled(now time.Time) *Trip {
	cp := t.clone()
	cp.phase = PhaseCancelled
	cp.completedAt = &now
	return cp
}

// WithDelayAdded returns a copy with additional delay minutes accumulated,
// as applied by Adapter's ADJUST_ROUTE action.
func (t *Trip) WithDelayAdded(minutes float64) *Trip {
	cp := t.clone()
	cp.delayMinutes += minutes
	return cp
}

// WithFollowupLoad returns a copy annotated with a follow-up load id, set
// by Adapter's FOLLOW_UP_LOAD action; Motion honors this on completion.
func (t *Trip) WithFollowupLoad(loadID string) *Trip {
	cp := t.clone()
	cp.followupLoadID = loadID
	return cp
}

// MarshalJSON renders the trip for the REST surface.
func (t *Trip) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID                string       `json:"id"`
		Reference         int          `json:"reference"`
		VehicleID         string       `json:"vehicle_id"`
		LoadID            string       `json:"load_id"`
		Phase             Phase        `json:"phase"`
		Route             geo.Polyline `json:"route"`
		RouteTotalKm      float64      `json:"route_total_km"`
		Progress          float64      `json:"progress"`
		EmptyLegKm        float64      `json:"empty_leg_km"`
		LoadedLegKm       float64      `json:"loaded_leg_km"`
		EstimatedRevenue  float64      `json:"estimated_revenue"`
		EstimatedFuelCost float64      `json:"estimated_fuel_cost"`
		EstimatedProfit   float64      `json:"estimated_profit"`
		StartedAt         time.Time    `json:"started_at"`
		CompletedAt       *time.Time   `json:"completed_at,omitempty"`
		DelayMinutes      float64      `json:"delay_minutes"`
		FollowupLoadID    string       `json:"followup_load_id,omitempty"`
	}{
		ID:                t.id,
		Reference:         t.reference,
		VehicleID:         t.vehicleID,
		LoadID:            t.loadID,
		Phase:             t.phase,
		Route:             t.route,
		RouteTotalKm:      t.routeTotalKm,
		Progress:          t.progress,
		EmptyLegKm:        t.emptyLegKm,
		LoadedLegKm:       t.loadedLegKm,
		EstimatedRevenue:  t.estimatedRevenue,
		EstimatedFuelCost: t.estimatedFuelCost,
		EstimatedProfit:   t.estimatedProfit,
		StartedAt:         t.startedAt,
		CompletedAt:       t.completedAt,
		DelayMinutes:      t.delayMinutes,
		FollowupLoadID:    t.followupLoadID,
	})
}
