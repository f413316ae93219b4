package engine_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/application/engine"
	"github.com/dispatchcore/fleetengine/internal/application/matcher"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

type noopRouter struct{}

func (noopRouter) Route(_ context.Context, start, end geo.Location) (geo.Polyline, error) {
	return geo.Polyline{Points: []geo.Location{start, end}}, nil
}

func testEngine() *engine.Engine {
	cfg := engine.Config{
		EventsRingSize:  100,
		HomeDepot:       geo.Location{Lat: 40, Lng: -74},
		ScatterRadiusKm: 20,
		Matcher: matcher.Config{
			TopK:            10,
			ProfitMarginMin: 0,
			UtilizationMin:  0,
			FallbackFanout:  10,
			Cost:            matcher.CostCoefficients{PerKm: 0.1, PerHour: 1, AssumedSpeedKmh: 60},
		},
	}
	clock := shared.NewMockClock(time.Now())
	return engine.New(noopRouter{}, nil, clock, cfg, rand.New(rand.NewSource(7)))
}

func TestInitialize_SeedsRequestedCounts(t *testing.T) {
	e := testEngine()
	result, err := e.Initialize(3, 4)
	require.NoError(t, err)

	assert.Equal(t, 3, result.VehiclesCreated)
	assert.Equal(t, 4, result.LoadsCreated)

	snap := e.State()
	assert.Len(t, snap.Vehicles, 3)
	assert.Len(t, snap.Loads, 4)
}

func TestMetrics_ReflectsInitializedFleet(t *testing.T) {
	e := testEngine()
	_, err := e.Initialize(2, 2)
	require.NoError(t, err)

	stats := e.Metrics()
	assert.Equal(t, 2, stats.TotalVehicles)
	assert.Equal(t, 2, stats.IdleVehicles)
	assert.Equal(t, 2, stats.TotalLoads)
}

func TestVehicles_FiltersByStatus(t *testing.T) {
	e := testEngine()
	_, err := e.Initialize(3, 0)
	require.NoError(t, err)

	idle := e.Vehicles("idle")
	assert.Len(t, idle, 3)

	none := e.Vehicles("maintenance")
	assert.Empty(t, none)
}

func TestMatchLoads_CreatesTripsFromIdleFleetAndAvailableLoads(t *testing.T) {
	e := testEngine()
	_, err := e.Initialize(2, 2)
	require.NoError(t, err)

	result := e.MatchLoads(context.Background())
	assert.Greater(t, result.MatchesCreated, 0)

	snap := e.State()
	assert.NotEmpty(t, snap.Trips)
}

func TestSimulateMovement_ReturnsPredictionsForActiveTrips(t *testing.T) {
	e := testEngine()
	_, err := e.Initialize(1, 1)
	require.NoError(t, err)
	e.MatchLoads(context.Background())

	result := e.SimulateMovement(context.Background())
	assert.Equal(t, 1, result.TicksAdvanced)
}

func TestCycle_NeverPanicsOnEmptyFleet(t *testing.T) {
	e := testEngine()
	assert.NotPanics(t, func() {
		e.Cycle(context.Background())
	})
}

func TestCycle_EventuallyInsertsAStochasticallyPostedLoad(t *testing.T) {
	e := testEngine()
	_, err := e.Initialize(2, 0)
	require.NoError(t, err)

	before := len(e.State().Loads)
	for i := 0; i < 500; i++ {
		e.Cycle(context.Background())
		if len(e.State().Loads) > before {
			return
		}
	}
	t.Fatal("expected a stochastically posted load to be inserted into the store within 500 cycles")
}

func TestEvents_RespectsLimit(t *testing.T) {
	e := testEngine()
	_, err := e.Initialize(1, 1)
	require.NoError(t, err)
	e.MatchLoads(context.Background())
	e.SimulateMovement(context.Background())

	events := e.Events("", 1)
	assert.LessOrEqual(t, len(events), 1)
}
