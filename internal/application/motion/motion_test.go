package motion_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/application/motion"
	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/store"
)

// straightLineRouter returns a two-point polyline between start and end,
// standing in for the external routing client in these tests.
type straightLineRouter struct{}

func (straightLineRouter) Route(_ context.Context, start, end geo.Location) (geo.Polyline, error) {
	return geo.Polyline{Points: []geo.Location{start, end}}, nil
}

func testConfig() motion.Config {
	return motion.Config{
		TickSpeedKmh:          600,
		FuelRateLoadedPer10km: 0.4,
		FuelRateEmptyPer10km:  0.3,
		PositionEventEvery:    1,
	}
}

func seedTrip(t *testing.T, st *store.Store, clock shared.Clock) (*fleet.Vehicle, *freight.Load, *dispatch.Trip) {
	t.Helper()
	origin := geo.Location{Lat: 0, Lng: 0}
	dest := geo.Location{Lat: 1, Lng: 1}

	v, err := fleet.NewVehicle("veh-1", "driver-1", 10, origin, nil, clock)
	require.NoError(t, err)
	st.PutVehicle(v)

	l, err := freight.NewLoad("load-1", origin, dest, 5, 1, clock.Now(), clock.Now().Add(time.Hour), clock.Now().Add(24*time.Hour))
	require.NoError(t, err)
	st.PutLoad(l)

	trip, err := dispatch.NewTrip("trip-1", 1, v.ID(), l.ID(), 100, 50, 50, 200, 40, clock.Now())
	require.NoError(t, err)
	require.NoError(t, st.InsertTrip(trip))

	return v, l, trip
}

func TestTick_PlanningTripAdvancesToEnRouteToPickupWithoutMoving(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	st := store.New(100, clock)
	seedTrip(t, st, clock)

	motion.Tick(context.Background(), st, straightLineRouter{}, 0, clock.Now(), time.Minute, testConfig())

	snap := st.Snapshot()
	assert.Equal(t, dispatch.PhaseEnRouteToPickup, snap.Trips["trip-1"].Phase())
}

func TestTick_RequestsRouteOnFirstEnRouteTick(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	st := store.New(100, clock)
	seedTrip(t, st, clock)
	now := clock.Now()

	// tick 0: planning -> en_route_to_pickup
	motion.Tick(context.Background(), st, straightLineRouter{}, 0, now, time.Minute, testConfig())
	// tick 1: en route with no route yet, so the tick fetches and stores one
	result := motion.Tick(context.Background(), st, straightLineRouter{}, 1, now, time.Hour, testConfig())

	snap := st.Snapshot()
	trip := snap.Trips["trip-1"]
	require.NotNil(t, trip)
	assert.True(t, trip.HasRoute())
	_ = result
}

func TestTick_DriverRestRequiredEventWhenHoursExhausted(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	st := store.New(100, clock)
	v, _, _ := seedTrip(t, st, clock)

	exhausted := v.WithMotion(v.Location(), 0, false, 0, v.DrivingHoursLeft(), clock.Now())
	require.NoError(t, st.UpdateVehicle(v.ID(), func(*fleet.Vehicle) (*fleet.Vehicle, error) {
		return exhausted, nil
	}))
	require.NoError(t, st.UpdateTrip("trip-1", func(tr *dispatch.Trip) (*dispatch.Trip, error) {
		return tr.WithPhase(dispatch.PhaseEnRouteToPickup)
	}))
	require.NoError(t, st.UpdateTrip("trip-1", func(tr *dispatch.Trip) (*dispatch.Trip, error) {
		return tr.WithRoute(geo.Polyline{Points: []geo.Location{{}, {Lat: 1, Lng: 1}}}, 100), nil
	}))

	result := motion.Tick(context.Background(), st, straightLineRouter{}, 0, clock.Now(), time.Hour, testConfig())

	var found bool
	for _, e := range result.Events {
		if e.Type == dispatch.EventDriverRestRequired {
			found = true
		}
	}
	assert.True(t, found, "a vehicle with no driving hours left must emit a rest-required event instead of moving")
}

func toPhase(t *testing.T, st *store.Store, tripID string, phase dispatch.Phase) {
	t.Helper()
	require.NoError(t, st.UpdateTrip(tripID, func(tr *dispatch.Trip) (*dispatch.Trip, error) {
		return tr.WithPhase(phase)
	}))
}

func TestTick_CompletionWithoutFollowupReleasesVehicleToIdle(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	st := store.New(100, clock)
	v, _, _ := seedTrip(t, st, clock)
	for _, p := range []dispatch.Phase{dispatch.PhaseEnRouteToPickup, dispatch.PhaseLoading, dispatch.PhaseInTransit, dispatch.PhaseUnloading} {
		toPhase(t, st, "trip-1", p)
	}

	motion.Tick(context.Background(), st, straightLineRouter{}, 0, clock.Now(), time.Minute, testConfig())

	snap := st.Snapshot()
	_, stillPresent := snap.Trips["trip-1"]
	assert.False(t, stillPresent, "a completed trip must be removed from the active set")
	assert.Equal(t, fleet.StatusIdle, snap.Vehicles[v.ID()].Status())
	assert.Equal(t, 0.0, snap.Vehicles[v.ID()].CurrentLoadTons())
}

func TestTick_CompletionWithFollowupLoadStartsNewTripInsteadOfIdling(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	st := store.New(100, clock)
	v, _, _ := seedTrip(t, st, clock)

	followup, err := freight.NewLoad("load-2", geo.Location{Lat: 1, Lng: 1}, geo.Location{Lat: 2, Lng: 2}, 3, 1, clock.Now(), clock.Now().Add(time.Hour), clock.Now().Add(24*time.Hour))
	require.NoError(t, err)
	st.PutLoad(followup)

	require.NoError(t, st.UpdateTrip("trip-1", func(tr *dispatch.Trip) (*dispatch.Trip, error) {
		return tr.WithFollowupLoad("load-2"), nil
	}))
	for _, p := range []dispatch.Phase{dispatch.PhaseEnRouteToPickup, dispatch.PhaseLoading, dispatch.PhaseInTransit, dispatch.PhaseUnloading} {
		toPhase(t, st, "trip-1", p)
	}

	motion.Tick(context.Background(), st, straightLineRouter{}, 0, clock.Now(), time.Minute, testConfig())

	snap := st.Snapshot()
	_, oldTripPresent := snap.Trips["trip-1"]
	assert.False(t, oldTripPresent, "the completed trip itself must still be removed")

	var newTrip *dispatch.Trip
	for _, tr := range snap.Trips {
		if tr.VehicleID() == v.ID() && tr.LoadID() == "load-2" {
			newTrip = tr
		}
	}
	require.NotNil(t, newTrip, "a new planning trip toward the follow-up load must be created")
	assert.Equal(t, dispatch.PhasePlanning, newTrip.Phase())

	updatedVehicle := snap.Vehicles[v.ID()]
	assert.NotEqual(t, fleet.StatusIdle, updatedVehicle.Status(), "the vehicle must not be released to idle when a follow-up trip starts")
	assert.Equal(t, freight.StatusMatched, snap.Loads["load-2"].Status())
}

func TestTick_UnknownTripOrVehicleIsSkippedSafely(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	st := store.New(100, clock)

	assert.NotPanics(t, func() {
		motion.Tick(context.Background(), st, straightLineRouter{}, 0, clock.Now(), time.Minute, testConfig())
	})
}
