package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/store"
)

func newTestVehicle(t *testing.T, clock shared.Clock, id string) *fleet.Vehicle {
	t.Helper()
	v, err := fleet.NewVehicle(id, "driver-1", 10, geo.Location{}, nil, clock)
	require.NoError(t, err)
	return v
}

func newTestTrip(t *testing.T, id, vehicleID, loadID string) *dispatch.Trip {
	t.Helper()
	trip, err := dispatch.NewTrip(id, 1, vehicleID, loadID, 100, 20, 80, 200, 40, time.Now())
	require.NoError(t, err)
	return trip
}

func TestSnapshot_IsIsolatedFromSubsequentWrites(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	st := store.New(10, clock)
	st.PutVehicle(newTestVehicle(t, clock, "veh-1"))

	snap := st.Snapshot()
	require.Len(t, snap.Vehicles, 1)

	st.PutVehicle(newTestVehicle(t, clock, "veh-2"))
	assert.Len(t, snap.Vehicles, 1, "a previously taken snapshot must not see later writes")
}

func TestUpdateVehicle_NotFoundForUnknownID(t *testing.T) {
	st := store.New(10, shared.NewMockClock(time.Now()))
	err := st.UpdateVehicle("missing", func(v *fleet.Vehicle) (*fleet.Vehicle, error) { return v, nil })
	assert.Error(t, err)
}

func TestInsertTrip_ConflictsOnDoubleVehicleOrLoadAssignment(t *testing.T) {
	st := store.New(10, shared.NewMockClock(time.Now()))

	trip1 := newTestTrip(t, "trip-1", "veh-1", "load-1")
	require.NoError(t, st.InsertTrip(trip1))

	sameVehicle := newTestTrip(t, "trip-2", "veh-1", "load-2")
	assert.Error(t, st.InsertTrip(sameVehicle), "a vehicle already on an active trip cannot start another")

	sameLoad := newTestTrip(t, "trip-3", "veh-2", "load-1")
	assert.Error(t, st.InsertTrip(sameLoad), "a load already on an active trip cannot start another")
}

func TestInsertTrip_AllowsVehicleReuseAfterCompletion(t *testing.T) {
	st := store.New(10, shared.NewMockClock(time.Now()))
	trip1 := newTestTrip(t, "trip-1", "veh-1", "load-1")
	require.NoError(t, st.InsertTrip(trip1))
	require.NoError(t, st.RemoveTrip("trip-1"))

	trip2 := newTestTrip(t, "trip-2", "veh-1", "load-2")
	assert.NoError(t, st.InsertTrip(trip2))
}

func TestApplyEvents_DropsOldestOnOverflow(t *testing.T) {
	st := store.New(2, shared.NewMockClock(time.Now()))
	now := time.Now()
	st.ApplyEvents([]dispatch.Event{
		dispatch.NewInternalErrorEvent("e1", now, 0, "test", "one"),
		dispatch.NewInternalErrorEvent("e2", now, 1, "test", "two"),
		dispatch.NewInternalErrorEvent("e3", now, 2, "test", "three"),
	})

	snap := st.Snapshot()
	require.Len(t, snap.Events, 2)
	assert.Equal(t, "e2", snap.Events[0].ID)
	assert.Equal(t, "e3", snap.Events[1].ID)
}

func TestEvents_FiltersByTypeAndOrdersNewestFirst(t *testing.T) {
	now := time.Now()
	snap := store.Snapshot{Events: []dispatch.Event{
		dispatch.NewInternalErrorEvent("e1", now, 0, "a", "x"),
		dispatch.NewFuelLowEvent("e2", now.Add(time.Second), 0, "veh-1", 5),
		dispatch.NewFuelLowEvent("e3", now.Add(2*time.Second), 0, "veh-2", 3),
	}}

	fuelEvents := store.Events(snap, store.EventFilter{Type: dispatch.EventFuelLow})
	require.Len(t, fuelEvents, 2)
	assert.Equal(t, "e3", fuelEvents[0].ID, "newest event must come first")

	limited := store.Events(snap, store.EventFilter{Limit: 1})
	assert.Len(t, limited, 1)
}

func TestNextTripReference_IsMonotonic(t *testing.T) {
	st := store.New(10, shared.NewMockClock(time.Now()))
	first := st.NextTripReference()
	second := st.NextTripReference()
	assert.Equal(t, first+1, second)
}

func TestCompute_SummarizesVehiclesAndLoads(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	idle := newTestVehicle(t, clock, "veh-idle")
	enRoute := newTestVehicle(t, clock, "veh-busy").WithDispatch(false, clock.Now())

	l, err := freight.NewLoad("load-1", geo.Location{}, geo.Location{Lat: 1, Lng: 1}, 5, 1, clock.Now(), clock.Now().Add(time.Hour), clock.Now().Add(2*time.Hour))
	require.NoError(t, err)

	snap := store.Snapshot{
		Vehicles: map[string]*fleet.Vehicle{idle.ID(): idle, enRoute.ID(): enRoute},
		Loads:    map[string]*freight.Load{l.ID(): l},
	}

	stats := store.Compute(snap)
	assert.Equal(t, 2, stats.TotalVehicles)
	assert.Equal(t, 1, stats.IdleVehicles)
	assert.Equal(t, 1, stats.EnRouteVehicles)
	assert.Equal(t, 1, stats.TotalLoads)
	assert.Equal(t, 1, stats.AvailableLoads)
}
