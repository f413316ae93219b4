// Package engine composes the Store, Route Cache, Advisor client, and
// Dispatch Loop into the single object the REST surface (or any other
// boundary) drives. Every method corresponds to one row of spec.md's
// endpoint table; HTTP/gRPC wiring is the caller's job (see
// cmd/dispatch-daemon), not this package's.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dispatchcore/fleetengine/internal/application/adapter"
	"github.com/dispatchcore/fleetengine/internal/application/matcher"
	"github.com/dispatchcore/fleetengine/internal/application/motion"
	"github.com/dispatchcore/fleetengine/internal/application/observer"
	"github.com/dispatchcore/fleetengine/internal/application/predictor"
	"github.com/dispatchcore/fleetengine/internal/application/scheduler"
	"github.com/dispatchcore/fleetengine/internal/domain/advisor"
	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/routing"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/store"
	"github.com/dispatchcore/fleetengine/pkg/utils"
)

// Config is the full set of tunables an Engine needs, gathered from
// infrastructure/config at startup.
type Config struct {
	MotionInterval   time.Duration
	ObserverInterval time.Duration
	MatcherInterval  time.Duration
	AdapterInterval  time.Duration

	Motion   motion.Config
	Observer observer.Config
	Matcher  matcher.Config
	Adapter  adapter.Config

	EventsRingSize  int
	HomeDepot       geo.Location
	ScatterRadiusKm float64
}

// Engine is the composite application object.
type Engine struct {
	store         *store.Store
	router        routing.Client
	advisorClient advisor.Client
	loop          *scheduler.Loop
	clock         shared.Clock
	cfg           Config
	rand          *rand.Rand
	signalSource  *compositeSignalSource
}

// New wires a fresh Engine. signalRand seeds the stochastic Observer
// source deterministically; pass a rand.New(rand.NewSource(seed)) in
// tests for reproducibility.
func New(router routing.Client, advisorClient advisor.Client, clock shared.Clock, cfg Config, signalRand *rand.Rand) *Engine {
	if signalRand == nil {
		signalRand = rand.New(rand.NewSource(1))
	}
	st := store.New(cfg.EventsRingSize, clock)
	live := &liveSignalSource{store: st, inner: &observer.StochasticSignalSource{
		Rand:            signalRand,
		HomeDepot:       cfg.HomeDepot,
		ScatterRadiusKm: cfg.ScatterRadiusKm,
	}}
	source := &compositeSignalSource{sources: []observer.SignalSource{live}}

	loop := scheduler.New(st, router, advisorClient, source, clock, scheduler.Config{
		MotionInterval:   cfg.MotionInterval,
		ObserverInterval: cfg.ObserverInterval,
		MatcherInterval:  cfg.MatcherInterval,
		AdapterInterval:  cfg.AdapterInterval,
		Motion:           cfg.Motion,
		Observer:         cfg.Observer,
		Matcher:          cfg.Matcher,
		Adapter:          cfg.Adapter,
	}, nil)

	return &Engine{
		store:         st,
		router:        router,
		advisorClient: advisorClient,
		loop:          loop,
		clock:         clock,
		cfg:           cfg,
		rand:          signalRand,
		signalSource:  source,
	}
}

// liveSignalSource refreshes the stochastic source's vehicle pool from
// the store before delegating, so the scheduler need not poke store state
// into the Observer config each cycle.
type liveSignalSource struct {
	store *store.Store
	inner *observer.StochasticSignalSource
}

func (s *liveSignalSource) Signals(now time.Time) []observer.Signal {
	snap := s.store.Snapshot()
	ids := make([]string, 0, len(snap.Vehicles))
	for id := range snap.Vehicles {
		ids = append(ids, id)
	}
	s.inner.VehicleIDs = ids
	return s.inner.Signals(now)
}

// compositeSignalSource merges the engine's always-on stochastic source
// with any one-shot signals injected via InjectSignal (e.g. a scripted
// traffic_alert for a test or an operator-triggered scenario), mirroring
// observer.StaticSignalSource's single-fire shape per source.
type compositeSignalSource struct {
	mu      sync.Mutex
	sources []observer.SignalSource
}

func (c *compositeSignalSource) Signals(now time.Time) []observer.Signal {
	c.mu.Lock()
	sources := append([]observer.SignalSource(nil), c.sources...)
	c.mu.Unlock()

	var all []observer.Signal
	for _, s := range sources {
		all = append(all, s.Signals(now)...)
	}
	return all
}

// inject appends a one-shot StaticSignalSource carrying sig; it fires on
// the next Signals call and goes quiet thereafter.
func (c *compositeSignalSource) inject(sig observer.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, &observer.StaticSignalSource{Pending: []observer.Signal{sig}})
}

// Start launches the Dispatch Loop's four agent cycles.
func (e *Engine) Start(ctx context.Context) { e.loop.Start(ctx) }

// Stop halts the Dispatch Loop.
func (e *Engine) Stop() { e.loop.Stop() }

// InitializeResult is the initialize endpoint's response.
type InitializeResult struct {
	VehiclesCreated int    `json:"vehicles_created"`
	LoadsCreated    int    `json:"loads_created"`
	Message         string `json:"message"`
}

// Initialize seeds the store with numVehicles idle vehicles and numLoads
// available loads scattered around the configured home depot.
func (e *Engine) Initialize(numVehicles, numLoads int) (InitializeResult, error) {
	now := e.clock.Now()
	depot := e.cfg.HomeDepot
	radius := e.cfg.ScatterRadiusKm
	if radius <= 0 {
		radius = 50
	}

	for i := 0; i < numVehicles; i++ {
		loc := observer.RandomLocationNear(depot, radius, e.rand)
		id := utils.GenerateID("veh")
		v, err := fleet.NewVehicle(id, utils.GenerateID("driver"), 10+e.rand.Float64()*10, loc, &depot, e.clock)
		if err != nil {
			return InitializeResult{}, err
		}
		e.store.PutVehicle(v)
	}

	for i := 0; i < numLoads; i++ {
		origin := observer.RandomLocationNear(depot, radius, e.rand)
		dest := observer.RandomLocationNear(depot, radius*3, e.rand)
		pickupStart := now
		pickupEnd := now.Add(2 * time.Hour)
		deadline := now.Add(24 * time.Hour)
		id := utils.GenerateID("load")
		l, err := freight.NewLoad(id, origin, dest, 1+e.rand.Float64()*9, 1.0+e.rand.Float64()*2, pickupStart, pickupEnd, deadline)
		if err != nil {
			return InitializeResult{}, err
		}
		e.store.PutLoad(l)
	}

	return InitializeResult{
		VehiclesCreated: numVehicles,
		LoadsCreated:    numLoads,
		Message:         fmt.Sprintf("initialized %d vehicles and %d loads", numVehicles, numLoads),
	}, nil
}

// State returns the full current Snapshot.
func (e *Engine) State() store.Snapshot { return e.store.Snapshot() }

// Metrics returns the KPI object.
func (e *Engine) Metrics() store.Stats { return store.Compute(e.store.Snapshot()) }

// Vehicles returns every vehicle, optionally filtered by status.
func (e *Engine) Vehicles(status string) []*fleet.Vehicle {
	snap := e.store.Snapshot()
	out := make([]*fleet.Vehicle, 0, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		if status != "" && string(v.Status()) != status {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Loads returns every load, optionally filtered by status.
func (e *Engine) Loads(status string) []*freight.Load {
	snap := e.store.Snapshot()
	out := make([]*freight.Load, 0, len(snap.Loads))
	for _, l := range snap.Loads {
		if status != "" && string(l.Status()) != status {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Events returns recent events, newest first, optionally filtered by type
// and capped at limit.
func (e *Engine) Events(eventType string, limit int) []dispatch.Event {
	snap := e.store.Snapshot()
	return store.Events(snap, store.EventFilter{Type: dispatch.EventType(eventType), Limit: limit})
}

// InjectSignal schedules a one-shot signal (e.g. a scripted traffic_alert)
// to be picked up by the next Observer cycle, whether that cycle runs on
// the Dispatch Loop's own cadence or via an explicit Cycle call.
func (e *Engine) InjectSignal(sig observer.Signal) {
	e.signalSource.inject(sig)
}

// AnnotateTripFollowup records followupLoadID on tripID, the same
// annotation the Adapter's FOLLOW_UP_LOAD action makes (adapter.go's
// applyAction); Motion honors it on that trip's completion by handing the
// vehicle directly into a new planning trip instead of idling it.
func (e *Engine) AnnotateTripFollowup(tripID, followupLoadID string) error {
	return e.store.UpdateTrip(tripID, func(t *dispatch.Trip) (*dispatch.Trip, error) {
		return t.WithFollowupLoad(followupLoadID), nil
	})
}

// Cycle runs the Observer once, outside its normal cadence.
func (e *Engine) Cycle(ctx context.Context) observer.Result {
	snap := e.store.Snapshot()
	result := observer.Cycle(snap, e.clock.Now(), e.signalSource, e.cfg.Observer)
	e.store.ApplyEvents(result.Events)
	for _, l := range result.NewLoads {
		e.store.PutLoad(l)
	}
	return result
}

// MatchLoadsResult is the match-loads endpoint's response.
type MatchLoadsResult struct {
	OpportunitiesAnalyzed int      `json:"opportunities_analyzed"`
	MatchesCreated        int      `json:"matches_created"`
	ApprovedMatches       []string `json:"approved_matches"`
	AdvisorReasoning      string   `json:"advisor_reasoning"`
}

// MatchLoads runs the Matcher once, outside its normal cadence.
func (e *Engine) MatchLoads(ctx context.Context) MatchLoadsResult {
	result := matcher.Cycle(ctx, e.store, e.router, e.advisorClient, e.clock.Now(), e.cfg.Matcher)
	e.store.ApplyEvents(result.Events)
	return MatchLoadsResult{
		OpportunitiesAnalyzed: result.OpportunitiesAnalyzed,
		MatchesCreated:        result.MatchesCreated,
		ApprovedMatches:       result.ApprovedPairs,
		AdvisorReasoning:      result.AdvisorReasoning,
	}
}

// ManageRoutes runs the Adapter once, outside its normal cadence, and
// returns the per-trip decisions it made.
func (e *Engine) ManageRoutes(ctx context.Context) []adapter.Decision {
	result := adapter.Cycle(ctx, e.store, e.advisorClient, e.clock.Now(), e.cfg.Adapter)
	e.store.ApplyEvents(result.Events)
	if result.Decisions == nil {
		return []adapter.Decision{}
	}
	return result.Decisions
}

// SimulateMovementResult is the simulate-movement endpoint's response.
type SimulateMovementResult struct {
	TicksAdvanced int                    `json:"ticks_advanced"`
	Predictions   []predictor.Prediction `json:"predictions"`
}

// SimulateMovement runs the Motion engine one tick, outside its normal
// cadence, and returns the resulting Predictor output.
func (e *Engine) SimulateMovement(ctx context.Context) SimulateMovementResult {
	result := motion.Tick(ctx, e.store, e.router, 1, e.clock.Now(), e.motionDt(), e.cfg.Motion)
	e.store.ApplyEvents(result.Events)

	snap := e.store.Snapshot()
	predictions := predictor.Predict(snap, e.clock.Now(), predictor.Config{
		TickSpeedKmh:        e.cfg.Motion.TickSpeedKmh,
		FuelConsumptionRate: (e.cfg.Motion.FuelRateLoadedPer10km + e.cfg.Motion.FuelRateEmptyPer10km) / 2 / 10,
	})

	return SimulateMovementResult{TicksAdvanced: result.TicksAdvanced, Predictions: predictions}
}

func (e *Engine) motionDt() time.Duration {
	if e.cfg.MotionInterval > 0 {
		return e.cfg.MotionInterval
	}
	return 3 * time.Second
}
