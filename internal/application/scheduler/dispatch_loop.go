// Package scheduler runs the Dispatch Loop: four independently paced
// agents (Motion, Observer, Matcher, Adapter) driven off their own
// tickers, plus a trigger channel that lets Observer pull Matcher or
// Adapter forward of their normal cadence.
//
// Grounded on the ship state scheduler's timer-per-concern shape, adapted
// from one-shot time.AfterFunc calls keyed by ship symbol to free-running
// time.Ticker loops keyed by agent, since the dispatch loop has no single
// external deadline to wait on the way an arrival time does.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchcore/fleetengine/internal/application/adapter"
	"github.com/dispatchcore/fleetengine/internal/application/matcher"
	"github.com/dispatchcore/fleetengine/internal/application/motion"
	"github.com/dispatchcore/fleetengine/internal/application/observer"
	"github.com/dispatchcore/fleetengine/internal/domain/advisor"
	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/routing"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/infrastructure/metrics"
	"github.com/dispatchcore/fleetengine/internal/store"
)

// Config carries every agent's cadence plus its own tunables.
type Config struct {
	MotionInterval   time.Duration
	ObserverInterval time.Duration
	MatcherInterval  time.Duration
	AdapterInterval  time.Duration

	Motion   motion.Config
	Observer observer.Config
	Matcher  matcher.Config
	Adapter  adapter.Config
}

// Loop owns the four tickers and the trigger channel, and is safe to Stop
// from any goroutine.
type Loop struct {
	store         *store.Store
	router        routing.Client
	advisorClient advisor.Client
	source        observer.SignalSource
	clock         shared.Clock
	cfg           Config

	matcherTriggers chan observer.Trigger
	adapterTriggers chan observer.Trigger

	mu        sync.Mutex
	cancel    context.CancelFunc
	running   bool
	tickCount int64

	onEvents func([]dispatch.Event)
}

// New constructs a Loop. onEvents, if non-nil, is called with every batch
// of events an agent produces, after the loop has appended that batch to
// the store's event ring.
func New(st *store.Store, router routing.Client, advisorClient advisor.Client, source observer.SignalSource, clock shared.Clock, cfg Config, onEvents func([]dispatch.Event)) *Loop {
	return &Loop{
		store:           st,
		router:          router,
		advisorClient:   advisorClient,
		source:          source,
		clock:           clock,
		cfg:             cfg,
		matcherTriggers: make(chan observer.Trigger, 16),
		adapterTriggers: make(chan observer.Trigger, 16),
		onEvents:        onEvents,
	}
}

// Start launches the four agent loops. It is a no-op if already running.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true
	l.mu.Unlock()

	go l.runMotion(runCtx)
	go l.runObserver(runCtx)
	go l.runMatcherLoop(runCtx)
	go l.runAdapterLoop(runCtx)
}

// Stop cancels every agent loop and blocks until Start may be safely
// called again.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.cancel()
	l.running = false
}

func (l *Loop) emit(events []dispatch.Event) {
	if len(events) == 0 {
		return
	}
	l.store.ApplyEvents(events)
	if l.onEvents != nil {
		l.onEvents(events)
	}
}

// runMotion ticks the Motion engine on a fixed interval. A late tick (the
// previous one still running past the next scheduled fire) is coalesced:
// the ticker channel only ever holds one pending tick, so a slow
// iteration simply skips the ticks it missed rather than queuing them.
func (l *Loop) runMotion(ctx context.Context) {
	interval := l.cfg.MotionInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			l.tickCount++
			tick := l.tickCount
			l.mu.Unlock()

			result := motion.Tick(ctx, l.store, l.router, tick, l.clock.Now(), interval, l.cfg.Motion)
			l.emit(result.Events)
		}
	}
}

// runObserver ticks the Observer agent and forwards any trigger it
// surfaces to the Matcher/Adapter loops for an early run.
func (l *Loop) runObserver(ctx context.Context) {
	interval := l.cfg.ObserverInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := l.store.Snapshot()
			result := observer.Cycle(snap, l.clock.Now(), l.source, l.cfg.Observer)
			l.emit(result.Events)
			for _, load := range result.NewLoads {
				l.store.PutLoad(load)
			}
			for _, trig := range result.Triggers {
				metrics.RecordObserverTrigger(string(trig))
				var target chan observer.Trigger
				switch trig {
				case observer.TriggerIdleTimeout, observer.TriggerHighPriorityLoad:
					target = l.matcherTriggers
				case observer.TriggerNearDelivery:
					target = l.adapterTriggers
				default:
					continue
				}
				select {
				case target <- trig:
				default: // back-pressure: drop rather than block the observer loop
				}
			}
		}
	}
}

// runMatcherLoop ticks the Matcher agent on its own interval, plus
// immediately (but never queued) whenever an idle-timeout or
// high-priority-load trigger arrives.
func (l *Loop) runMatcherLoop(ctx context.Context) {
	interval := l.cfg.MatcherInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	running := false
	var runMu sync.Mutex

	runOnce := func() {
		runMu.Lock()
		if running {
			runMu.Unlock()
			return // skip, not queue: a run is already in flight
		}
		running = true
		runMu.Unlock()
		defer func() { runMu.Lock(); running = false; runMu.Unlock() }()

		result := matcher.Cycle(ctx, l.store, l.router, l.advisorClient, l.clock.Now(), l.cfg.Matcher)
		l.emit(result.Events)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		case <-l.matcherTriggers:
			runOnce()
		}
	}
}

// runAdapterLoop ticks the Adapter agent on its own interval, plus
// immediately whenever a near-delivery trigger arrives.
func (l *Loop) runAdapterLoop(ctx context.Context) {
	interval := l.cfg.AdapterInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	running := false
	var runMu sync.Mutex

	runOnce := func() {
		runMu.Lock()
		if running {
			runMu.Unlock()
			return
		}
		running = true
		runMu.Unlock()
		defer func() { runMu.Lock(); running = false; runMu.Unlock() }()

		result := adapter.Cycle(ctx, l.store, l.advisorClient, l.clock.Now(), l.cfg.Adapter)
		l.emit(result.Events)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		case <-l.adapterTriggers:
			runOnce()
		}
	}
}
