package adapter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/application/adapter"
	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/store"
)

type stubAdvisor struct {
	text string
	err  error
}

func (s stubAdvisor) Complete(_ context.Context, _, _ string) (string, error) {
	return s.text, s.err
}

func testCfg() adapter.Config {
	return adapter.Config{
		DetourBudgetKm:    50,
		OpportunitiesTopM: 3,
		DelayFollowupMin:  20,
		FollowupMarginMin: 0.1,
	}
}

func seedInTransitTrip(t *testing.T, delayMinutes float64) *store.Store {
	t.Helper()
	clock := shared.NewMockClock(time.Now())
	st := store.New(100, clock)

	v, err := fleet.NewVehicle("veh-1", "driver-1", 10, geo.Location{}, nil, clock)
	require.NoError(t, err)
	st.PutVehicle(v)

	l, err := freight.NewLoad("load-1", geo.Location{}, geo.Location{Lat: 1, Lng: 1}, 5, 1, clock.Now(), clock.Now().Add(time.Hour), clock.Now().Add(24*time.Hour))
	require.NoError(t, err)
	matched, err := l.WithMatched(v.ID())
	require.NoError(t, err)
	st.PutLoad(matched)

	trip, err := dispatch.NewTrip("trip-1", 1, v.ID(), l.ID(), 100, 20, 80, 200, 40, clock.Now())
	require.NoError(t, err)
	for _, p := range []dispatch.Phase{dispatch.PhaseEnRouteToPickup, dispatch.PhaseLoading, dispatch.PhaseInTransit} {
		trip, err = trip.WithPhase(p)
		require.NoError(t, err)
	}
	trip = trip.WithDelayAdded(delayMinutes)
	require.NoError(t, st.InsertTrip(trip))

	return st
}

func TestCycle_NoDisturbanceTakesNoAction(t *testing.T) {
	st := seedInTransitTrip(t, 0)

	result := adapter.Cycle(context.Background(), st, nil, time.Now(), testCfg())
	assert.Empty(t, result.Decisions)
}

func TestCycle_ModerateDelayAdjustsRouteViaFallback(t *testing.T) {
	st := seedInTransitTrip(t, 5)

	result := adapter.Cycle(context.Background(), st, nil, time.Now(), testCfg())
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, adapter.ActionAdjustRoute, result.Decisions[0].Action)
	assert.Equal(t, 1, result.Adjusted)
}

func TestCycle_AdvisorChoosesContinue(t *testing.T) {
	st := seedInTransitTrip(t, 5)
	advisorClient := stubAdvisor{text: "DECISION: CONTINUE"}

	result := adapter.Cycle(context.Background(), st, advisorClient, time.Now(), testCfg())
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, adapter.ActionContinue, result.Decisions[0].Action)
}

func TestCycle_AdvisorErrorFallsBackToRuleBasedDecision(t *testing.T) {
	st := seedInTransitTrip(t, 5)
	advisorClient := stubAdvisor{err: assertErr{}}

	result := adapter.Cycle(context.Background(), st, advisorClient, time.Now(), testCfg())
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, adapter.ActionAdjustRoute, result.Decisions[0].Action)
}

func TestCycle_LowFuelIsADisturbanceEvenWithoutDelay(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	st := store.New(100, clock)

	v, err := fleet.NewVehicle("veh-1", "driver-1", 10, geo.Location{}, nil, clock)
	require.NoError(t, err)
	low := v.WithMotion(v.Location(), 300, false, 3, 0.01, clock.Now())
	st.PutVehicle(low)

	l, err := freight.NewLoad("load-1", geo.Location{}, geo.Location{Lat: 1, Lng: 1}, 5, 1, clock.Now(), clock.Now().Add(time.Hour), clock.Now().Add(24*time.Hour))
	require.NoError(t, err)
	matched, err := l.WithMatched(low.ID())
	require.NoError(t, err)
	st.PutLoad(matched)

	trip, err := dispatch.NewTrip("trip-1", 1, low.ID(), l.ID(), 100, 20, 80, 200, 40, clock.Now())
	require.NoError(t, err)
	for _, p := range []dispatch.Phase{dispatch.PhaseEnRouteToPickup, dispatch.PhaseLoading, dispatch.PhaseInTransit} {
		trip, err = trip.WithPhase(p)
		require.NoError(t, err)
	}
	require.NoError(t, st.InsertTrip(trip))

	result := adapter.Cycle(context.Background(), st, nil, clock.Now(), testCfg())
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, "low_fuel", result.Decisions[0].Disturbance)
}

func TestCycle_TrafficAlertEventAloneTriggersRouteAdjustment(t *testing.T) {
	st := seedInTransitTrip(t, 0)
	st.ApplyEvents([]dispatch.Event{
		dispatch.NewTrafficAlertEvent("evt-1", time.Now(), 0, "veh-1", 90, "congestion"),
	})

	result := adapter.Cycle(context.Background(), st, nil, time.Now(), testCfg())

	require.Len(t, result.Decisions, 1)
	assert.Equal(t, "accumulated_delay", result.Decisions[0].Disturbance)
	assert.Equal(t, adapter.ActionAdjustRoute, result.Decisions[0].Action)
}

func TestCycle_AdjustRouteInvalidatesTheCachedPolyline(t *testing.T) {
	st := seedInTransitTrip(t, 5)
	require.NoError(t, st.UpdateTrip("trip-1", func(tr *dispatch.Trip) (*dispatch.Trip, error) {
		return tr.WithRoute(geo.Polyline{Points: []geo.Location{{}, {Lat: 1}}}, 10), nil
	}))

	result := adapter.Cycle(context.Background(), st, nil, time.Now(), testCfg())
	require.Len(t, result.Decisions, 1)
	require.Equal(t, adapter.ActionAdjustRoute, result.Decisions[0].Action)

	snap := st.Snapshot()
	assert.False(t, snap.Trips["trip-1"].HasRoute(), "ADJUST_ROUTE must invalidate the cached polyline")
}

type assertErr struct{}

func (assertErr) Error() string { return "advisor unavailable" }
