package observer_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/application/observer"
	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/store"
)

func TestCycle_IdleVehicleBeyondTimeoutTriggersIdleTimeout(t *testing.T) {
	now := time.Now()
	clock := shared.NewMockClock(now.Add(-time.Hour))
	v, err := fleet.NewVehicle("veh-1", "driver-1", 10, geo.Location{}, nil, clock)
	require.NoError(t, err)

	snap := store.Snapshot{Vehicles: map[string]*fleet.Vehicle{v.ID(): v}}
	cfg := observer.Config{IdleTimeout: 30 * time.Minute}

	result := observer.Cycle(snap, now, nil, cfg)
	assert.Contains(t, result.Triggers, observer.TriggerIdleTimeout)
}

func TestCycle_LowFuelVehicleEmitsFuelLowEvent(t *testing.T) {
	now := time.Now()
	clock := shared.NewMockClock(now)
	v, err := fleet.NewVehicle("veh-1", "driver-1", 10, geo.Location{}, nil, clock)
	require.NoError(t, err)
	low := v.WithMotion(v.Location(), 300, false, 3, 0.01, now)

	snap := store.Snapshot{Vehicles: map[string]*fleet.Vehicle{low.ID(): low}}

	result := observer.Cycle(snap, now, nil, observer.Config{})
	require.Len(t, result.Events, 1)
	assert.Equal(t, dispatch.EventFuelLow, result.Events[0].Type)
}

func TestCycle_TripNearDeliveryTriggersNearDelivery(t *testing.T) {
	now := time.Now()
	trip, err := dispatch.NewTrip("trip-1", 1, "veh-1", "load-1", 100, 20, 80, 200, 40, now)
	require.NoError(t, err)
	trip, err = trip.WithPhase(dispatch.PhaseEnRouteToPickup)
	require.NoError(t, err)
	trip = trip.WithProgress(95)

	snap := store.Snapshot{Trips: map[string]*dispatch.Trip{trip.ID(): trip}}
	cfg := observer.Config{NearDeliveryProgress: 0.9}

	result := observer.Cycle(snap, now, nil, cfg)
	assert.Contains(t, result.Triggers, observer.TriggerNearDelivery)
}

func TestCycle_StaticSignalSourceEmitsOnceThenGoesQuiet(t *testing.T) {
	now := time.Now()
	source := &observer.StaticSignalSource{Pending: []observer.Signal{
		{Kind: dispatch.EventTrafficAlert, VehicleID: "veh-1", DelayMinutes: 20, Reason: "accident"},
	}}

	first := observer.Cycle(store.Snapshot{}, now, source, observer.Config{})
	require.Len(t, first.Events, 1)
	assert.Equal(t, dispatch.EventTrafficAlert, first.Events[0].Type)

	second := observer.Cycle(store.Snapshot{}, now, source, observer.Config{})
	assert.Empty(t, second.Events, "a static source must not replay signals on later cycles")
}

func TestCycle_NewLoadPostedSignalSurfacesTheLoadForInsertion(t *testing.T) {
	now := time.Now()
	load, err := freight.NewLoad("load-9", geo.Location{}, geo.Location{Lat: 1, Lng: 1}, 5, 1, now, now.Add(time.Hour), now.Add(24*time.Hour))
	require.NoError(t, err)
	source := &observer.StaticSignalSource{Pending: []observer.Signal{
		{Kind: dispatch.EventNewLoadPosted, NewLoad: load},
	}}

	result := observer.Cycle(store.Snapshot{}, now, source, observer.Config{})

	require.Len(t, result.Events, 1)
	assert.Equal(t, dispatch.EventNewLoadPosted, result.Events[0].Type)
	require.Len(t, result.NewLoads, 1, "Cycle has no store access; the caller must insert NewLoads itself")
	assert.Equal(t, "load-9", result.NewLoads[0].ID())
}

func TestCycle_NeverPanicsEvenWithEmptySnapshot(t *testing.T) {
	assert.NotPanics(t, func() {
		observer.Cycle(store.Snapshot{}, time.Now(), nil, observer.Config{})
	})
}

func TestStochasticSignalSource_NoVehiclesNeverEmitsTrafficAlert(t *testing.T) {
	source := &observer.StochasticSignalSource{Rand: rand.New(rand.NewSource(1))}
	for i := 0; i < 50; i++ {
		for _, sig := range source.Signals(time.Now()) {
			assert.NotEqual(t, dispatch.EventTrafficAlert, sig.Kind, "no vehicle pool means no traffic alert can target one")
		}
	}
}

func TestStochasticSignalSource_EventuallyPostsANewLoad(t *testing.T) {
	source := &observer.StochasticSignalSource{
		Rand:      rand.New(rand.NewSource(7)),
		HomeDepot: geo.Location{Lat: 40, Lng: -74},
	}
	var sawNewLoad bool
	for i := 0; i < 200 && !sawNewLoad; i++ {
		for _, sig := range source.Signals(time.Now()) {
			if sig.Kind == dispatch.EventNewLoadPosted {
				sawNewLoad = true
				require.NotNil(t, sig.NewLoad)
			}
		}
	}
	assert.True(t, sawNewLoad, "run for long enough, the stochastic source must eventually post a new load")
}

func TestRandomLocationNear_StaysWithinApproximateRadius(t *testing.T) {
	base := geo.Location{Lat: 40, Lng: -74}
	r := rand.New(rand.NewSource(42))

	loc := observer.RandomLocationNear(base, 10, r)
	assert.InDelta(t, base.Lat, loc.Lat, 0.2)
	assert.InDelta(t, base.Lng, loc.Lng, 0.2)
}
