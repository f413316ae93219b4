// Package motion advances every in-flight trip by one simulation tick:
// sample the route polyline at the new progress fraction, move the
// vehicle, burn fuel and driving hours, and transition trip/load/vehicle
// status at phase boundaries.
//
// Grounded on the ship navigation state machine plus its scheduler: the
// teacher drives ship arrival off a precise one-shot timer per ship
// because each transition has a single known timestamp from the external
// API. This engine has no such external clock to subscribe to, so the
// same phase machine is driven instead by a fixed-interval Tick(dt),
// recomputing "have we arrived" from accumulated progress every time
// rather than scheduling a single timer per leg.
package motion

import (
	"context"
	"sort"
	"time"

	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/routing"
	"github.com/dispatchcore/fleetengine/internal/infrastructure/metrics"
	"github.com/dispatchcore/fleetengine/internal/store"
	"github.com/dispatchcore/fleetengine/pkg/utils"
)

// Config carries the tunables one Tick needs.
type Config struct {
	TickSpeedKmh          float64
	FuelRateLoadedPer10km float64 // percent per 10km, default 0.4
	FuelRateEmptyPer10km  float64 // percent per 10km, default 0.3
	PositionEventEvery    int     // emit a position event every Nth tick per trip, default 5
}

// Result is what one Tick produced.
type Result struct {
	Events        []dispatch.Event
	TicksAdvanced int
}

// Tick advances every non-terminal trip by dt and commits the resulting
// vehicle/load/trip state to st.
func Tick(ctx context.Context, st *store.Store, router routing.Client, tickCount int64, now time.Time, dt time.Duration, cfg Config) Result {
	snap := st.Snapshot()

	tripIDs := make([]string, 0, len(snap.Trips))
	for id, t := range snap.Trips {
		if !t.Phase().IsTerminal() {
			tripIDs = append(tripIDs, id)
		}
	}
	// deterministic lexicographic order so two ticks over the same state
	// produce the same intra-tick sequence numbers.
	sort.Strings(tripIDs)

	var result Result
	seq := 0
	nextSeq := func() int { seq++; return seq }

	for _, tripID := range tripIDs {
		trip := snap.Trips[tripID]
		vehicle, hasVehicle := snap.Vehicles[trip.VehicleID()]
		load, hasLoad := snap.Loads[trip.LoadID()]
		if !hasVehicle || !hasLoad {
			continue
		}

		events := advanceTrip(ctx, st, router, trip, vehicle, load, tickCount, now, dt, cfg, nextSeq)
		result.Events = append(result.Events, events...)
		result.TicksAdvanced++
	}

	eventTypes := make([]string, len(result.Events))
	for i, e := range result.Events {
		eventTypes[i] = string(e.Type)
	}
	metrics.RecordMotionTick(eventTypes)

	return result
}

func advanceTrip(ctx context.Context, st *store.Store, router routing.Client, trip *dispatch.Trip, vehicle *fleet.Vehicle, load *freight.Load, tickCount int64, now time.Time, dt time.Duration, cfg Config, nextSeq func() int) []dispatch.Event {
	var events []dispatch.Event

	if trip.Phase() == dispatch.PhasePlanning {
		if advancePhase(st, trip, dispatch.PhaseEnRouteToPickup) == nil {
			return events
		}
		return events // movement starts next tick
	}

	// Loading/Unloading are one-tick holds with no distance to cover: the
	// hold tick itself performs the load/vehicle transition and clears the
	// route so the next leg re-requests one.
	if trip.Phase() == dispatch.PhaseLoading || trip.Phase() == dispatch.PhaseUnloading {
		return handleHoldTick(st, trip, vehicle.ID(), load, now, nextSeq)
	}

	if !trip.HasRoute() {
		origin, dest := legEndpoints(trip, vehicle, load)
		polyline, err := router.Route(ctx, origin, dest)
		if err != nil {
			return events
		}
		totalKm := polyline.TotalDistanceKm()
		_ = st.UpdateTrip(trip.ID(), func(t *dispatch.Trip) (*dispatch.Trip, error) {
			return t.WithRoute(polyline, totalKm), nil
		})
		trip = trip.WithRoute(polyline, totalKm)
	}

	if vehicle.DrivingHoursLeft() <= 0 {
		// driver must rest; trip holds in place for this tick.
		events = append(events, dispatch.NewDriverRestRequiredEvent(utils.GenerateID("evt"), now, nextSeq(), vehicle.ID()))
		return events
	}

	dtHours := dt.Hours()
	loaded := trip.Phase() == dispatch.PhaseInTransit
	fuelRate := cfg.FuelRateEmptyPer10km
	if loaded {
		fuelRate = cfg.FuelRateLoadedPer10km
	}

	routeKm := trip.RouteTotalKm()
	deltaProgress := 0.0
	if routeKm > 0 {
		maxAdvanceKm := cfg.TickSpeedKmh * dtHours
		deltaFraction := maxAdvanceKm / routeKm
		remaining := 1 - trip.ProgressFraction()
		if deltaFraction > remaining {
			deltaFraction = remaining
		}
		deltaProgress = deltaFraction
	}
	newProgressFraction := trip.ProgressFraction() + deltaProgress
	if newProgressFraction > 1 {
		newProgressFraction = 1
	}
	deltaKm := deltaProgress * routeKm

	newLocation := trip.Route().SampleAt(newProgressFraction)
	updatedVehicle := vehicle.WithMotion(newLocation, deltaKm, loaded, fuelRate, dtHours, now)
	_ = st.UpdateVehicle(vehicle.ID(), func(*fleet.Vehicle) (*fleet.Vehicle, error) {
		return updatedVehicle, nil
	})

	_ = st.UpdateTrip(trip.ID(), func(t *dispatch.Trip) (*dispatch.Trip, error) {
		return t.WithProgress(newProgressFraction * 100), nil
	})

	every := cfg.PositionEventEvery
	if every <= 0 {
		every = 5
	}
	atBoundary := newProgressFraction >= 1
	if tickCount%int64(every) == 0 || atBoundary {
		events = append(events, dispatch.NewVehiclePositionUpdate(utils.GenerateID("evt"), now, nextSeq(), vehicle.ID(), newLocation.Lat, newLocation.Lng))
	}

	if atBoundary {
		nextHoldPhase := dispatch.PhaseLoading
		if trip.Phase() == dispatch.PhaseInTransit {
			nextHoldPhase = dispatch.PhaseUnloading
		}
		_ = advancePhase(st, trip, nextHoldPhase)
	}

	return events
}

// handleHoldTick consumes the single tick a trip spends at Loading or
// Unloading: it performs the load/vehicle transition for that boundary
// and advances the trip to the next movement phase (or to completed, from
// Unloading), with progress and route reset for the next leg.
func handleHoldTick(st *store.Store, trip *dispatch.Trip, vehicleID string, load *freight.Load, now time.Time, nextSeq func() int) []dispatch.Event {
	var events []dispatch.Event

	switch trip.Phase() {
	case dispatch.PhaseLoading:
		_ = st.UpdateLoad(load.ID(), func(l *freight.Load) (*freight.Load, error) {
			return l.WithInTransit()
		})
		_ = st.UpdateVehicle(vehicleID, func(v *fleet.Vehicle) (*fleet.Vehicle, error) {
			return v.WithCargo(load.WeightTons()).WithStatus(fleet.StatusEnRouteLoaded, now), nil
		})
		_ = st.UpdateTrip(trip.ID(), func(t *dispatch.Trip) (*dispatch.Trip, error) {
			reset := t.WithProgress(0).WithRoute(geo.Polyline{}, 0)
			return reset.WithPhase(dispatch.PhaseInTransit)
		})

	case dispatch.PhaseUnloading:
		_ = st.UpdateLoad(load.ID(), func(l *freight.Load) (*freight.Load, error) {
			return l.WithDelivered()
		})
		var completed *dispatch.Trip
		_ = st.UpdateTrip(trip.ID(), func(t *dispatch.Trip) (*dispatch.Trip, error) {
			next, err := t.WithCompleted(now)
			completed = next
			return next, err
		})
		if completed != nil {
			events = append(events, dispatch.NewTripCompletedEvent(utils.GenerateID("evt"), now, nextSeq(), trip.ID()))
			_ = st.RemoveTrip(trip.ID())
			events = append(events, releaseOrFollowUp(st, vehicleID, completed.FollowupLoadID(), now, nextSeq)...)
		}
	}

	return events
}

// releaseOrFollowUp honors a trip's FollowupLoadID annotation (set by
// Adapter's FOLLOW_UP_LOAD action, spec.md §4.7): if the annotated load is
// still available, the vehicle is handed directly into a new planning-phase
// trip toward it instead of being released to idle; otherwise (no
// annotation, or the load was claimed by someone else in the meantime) the
// vehicle is released to idle as usual.
func releaseOrFollowUp(st *store.Store, vehicleID, followupLoadID string, now time.Time, nextSeq func() int) []dispatch.Event {
	if followupLoadID != "" {
		snap := st.Snapshot()
		if followupLoad, ok := snap.Loads[followupLoadID]; ok && followupLoad.Status() == freight.StatusAvailable {
			if events, err := startFollowupTrip(st, vehicleID, followupLoad, now, nextSeq); err == nil {
				return events
			}
		}
	}
	_ = st.UpdateVehicle(vehicleID, func(v *fleet.Vehicle) (*fleet.Vehicle, error) {
		return v.WithReleasedToIdle(now), nil
	})
	return nil
}

// startFollowupTrip instantiates a new planning-phase trip for vehicleID
// toward load, mirroring matcher.instantiateTrip's store writes (insert
// trip, match load, dispatch vehicle) but without a pre-fetched route: the
// polyline is requested lazily on the trip's first en_route_to_pickup tick,
// same as any freshly matched trip — Motion has no cost coefficients of its
// own to estimate profit/fuel up front, that is Matcher's job.
func startFollowupTrip(st *store.Store, vehicleID string, load *freight.Load, now time.Time, nextSeq func() int) ([]dispatch.Event, error) {
	tripID := utils.GenerateID("trip")
	reference := st.NextTripReference()
	trip, err := dispatch.NewTrip(tripID, reference, vehicleID, load.ID(), 0, 0, 0, load.Revenue(), 0, now)
	if err != nil {
		return nil, err
	}
	if err := st.InsertTrip(trip); err != nil {
		return nil, err
	}
	if err := st.UpdateLoad(load.ID(), func(l *freight.Load) (*freight.Load, error) {
		return l.WithMatched(vehicleID)
	}); err != nil {
		_ = st.RemoveTrip(tripID)
		return nil, err
	}
	if err := st.UpdateVehicle(vehicleID, func(v *fleet.Vehicle) (*fleet.Vehicle, error) {
		return v.WithCargo(0).WithDispatch(false, now), nil
	}); err != nil {
		_ = st.RemoveTrip(tripID)
		return nil, err
	}
	return []dispatch.Event{
		dispatch.NewLoadMatchedEvent(utils.GenerateID("evt"), now, nextSeq(), load.ID(), vehicleID),
		dispatch.NewTripStartedEvent(utils.GenerateID("evt"), now, nextSeq(), tripID, vehicleID, load.ID()),
	}, nil
}

// legEndpoints returns the (origin, destination) pair for the trip's
// current leg: vehicle-to-pickup while en route to pickup, pickup-to-
// delivery while in transit.
func legEndpoints(trip *dispatch.Trip, vehicle *fleet.Vehicle, load *freight.Load) (geo.Location, geo.Location) {
	if trip.Phase() == dispatch.PhaseInTransit {
		return load.Origin(), load.Destination()
	}
	return vehicle.Location(), load.Origin()
}

// advancePhase transitions the trip to the given phase in the store and
// returns the updated trip, or nil if the transition failed (another
// component raced it into a different phase).
func advancePhase(st *store.Store, trip *dispatch.Trip, phase dispatch.Phase) *dispatch.Trip {
	var updated *dispatch.Trip
	err := st.UpdateTrip(trip.ID(), func(t *dispatch.Trip) (*dispatch.Trip, error) {
		next, err := t.WithPhase(phase)
		if err != nil {
			return nil, err
		}
		updated = next
		return next, nil
	})
	if err != nil {
		return nil
	}
	return updated
}
