package predictor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/application/predictor"
	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/store"
)

func testConfig() predictor.Config {
	return predictor.Config{TickSpeedKmh: 60, FuelConsumptionRate: 0.1}
}

func halfwaySnapshot(t *testing.T, now time.Time, deadline time.Time) store.Snapshot {
	t.Helper()
	clock := shared.NewMockClock(now)
	v, err := fleet.NewVehicle("veh-1", "driver-1", 10, geo.Location{}, nil, clock)
	require.NoError(t, err)

	l, err := freight.NewLoad("load-1", geo.Location{}, geo.Location{Lat: 1, Lng: 1}, 5, 1, now, now.Add(time.Hour), deadline)
	require.NoError(t, err)

	trip, err := dispatch.NewTrip("trip-1", 1, v.ID(), l.ID(), 100, 20, 80, 200, 40, now)
	require.NoError(t, err)
	trip, err = trip.WithPhase(dispatch.PhaseEnRouteToPickup)
	require.NoError(t, err)
	trip = trip.WithProgress(50)

	return store.Snapshot{
		Vehicles: map[string]*fleet.Vehicle{v.ID(): v},
		Loads:    map[string]*freight.Load{l.ID(): l},
		Trips:    map[string]*dispatch.Trip{trip.ID(): trip},
	}
}

func TestPredict_SkipsTerminalTrips(t *testing.T) {
	now := time.Now()
	snap := halfwaySnapshot(t, now, now.Add(24*time.Hour))
	completed, err := snap.Trips["trip-1"].WithPhase(dispatch.PhaseLoading)
	require.NoError(t, err)
	snap.Trips["trip-1"] = completed

	cancelled := completed.WithCancelled(now)
	snap.Trips["trip-1"] = cancelled

	predictions := predictor.Predict(snap, now, testConfig())
	assert.Empty(t, predictions)
}

func TestPredict_HalfwayTripHasHalfRemainingDistance(t *testing.T) {
	now := time.Now()
	snap := halfwaySnapshot(t, now, now.Add(24*time.Hour))

	predictions := predictor.Predict(snap, now, testConfig())
	require.Len(t, predictions, 1)
	assert.InDelta(t, 50, predictions[0].RemainingKm, 1e-9)
	assert.Equal(t, predictor.OnTime, predictions[0].Status)
}

func TestPredict_FlagsDelayedWhenETAPastDeadline(t *testing.T) {
	now := time.Now()
	snap := halfwaySnapshot(t, now, now.Add(time.Second))

	predictions := predictor.Predict(snap, now, testConfig())
	require.Len(t, predictions, 1)
	assert.Equal(t, predictor.Delayed, predictions[0].Status)
	assertHasRecommendation(t, predictions[0].Recommendations, "delay-notification")
}

func TestPredict_RecommendsRefuelWhenFuelProjectedLow(t *testing.T) {
	now := time.Now()
	snap := halfwaySnapshot(t, now, now.Add(24*time.Hour))
	cfg := predictor.Config{TickSpeedKmh: 60, FuelConsumptionRate: 5}

	predictions := predictor.Predict(snap, now, cfg)
	require.Len(t, predictions, 1)
	assertHasRecommendation(t, predictions[0].Recommendations, "refuel")
}

func TestPredict_TrafficAlertSlowsEffectiveSpeed(t *testing.T) {
	now := time.Now()
	snap := halfwaySnapshot(t, now, now.Add(24*time.Hour))
	snap.Events = []dispatch.Event{
		dispatch.NewTrafficAlertEvent("evt-1", now, 0, "veh-1", 90, "congestion"),
	}

	predictions := predictor.Predict(snap, now, testConfig())
	require.Len(t, predictions, 1)
	assert.InDelta(t, 30, predictions[0].CurrentSpeedKmh, 1e-9, "90 minutes of delay must halve effective speed")
}

func assertHasRecommendation(t *testing.T, recs []predictor.Recommendation, kind string) {
	t.Helper()
	for _, r := range recs {
		if r.Kind == kind {
			return
		}
	}
	t.Fatalf("expected a %q recommendation, got %+v", kind, recs)
}
