// Package metrics exposes the engine's Prometheus collectors: one vector
// per agent cycle plus the route cache's hit/miss counters. A single
// global Registry mirrors the teacher's container-metrics pattern -
// Register once at startup, record through the package-level functions
// from anywhere in application code without passing a collector down
// every call chain.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetengine"

var (
	// Registry is the global Prometheus registry. Nil until InitRegistry
	// is called, in which case every Record* call below is a no-op.
	Registry *prometheus.Registry

	dispatchCollector *Collector
)

// InitRegistry creates the global registry. Call once at startup before
// wiring the engine if metrics collection is desired.
func InitRegistry() {
	Registry = prometheus.NewRegistry()
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool { return Registry != nil }

// Handler serves the registry's current state in the Prometheus text
// exposition format. Returns a 503-always handler if metrics were never
// initialized, so wiring it unconditionally in main.go is safe.
func Handler() http.Handler {
	if Registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Collector holds every counter/histogram/gauge the dispatch agents feed.
type Collector struct {
	motionTicks      prometheus.Counter
	motionEvents     *prometheus.CounterVec
	observerTriggers *prometheus.CounterVec
	matcherCycles    prometheus.Counter
	matchesCreated   prometheus.Counter
	matcherFallback  prometheus.Counter
	matchMargin      prometheus.Histogram
	adapterCycles    prometheus.Counter
	adapterActions   *prometheus.CounterVec
	routeCacheHits   prometheus.Counter
	routeCacheMisses prometheus.Counter
	routeFallbacks   prometheus.Counter
	advisorErrors    *prometheus.CounterVec
}

// NewCollector builds a Collector with every metric registered against
// Registry. Safe to call with a nil Registry (Register becomes a no-op).
func NewCollector() *Collector {
	return &Collector{
		motionTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "motion", Name: "ticks_total",
			Help: "Total number of Motion engine ticks processed",
		}),
		motionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "motion", Name: "events_total",
			Help: "Events emitted by the Motion engine, by type",
		}, []string{"event_type"}),
		observerTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "observer", Name: "triggers_total",
			Help: "Triggers surfaced by the Observer agent, by kind",
		}, []string{"trigger"}),
		matcherCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "matcher", Name: "cycles_total",
			Help: "Total number of Matcher cycles run",
		}),
		matchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "matcher", Name: "matches_created_total",
			Help: "Total number of vehicle-load pairings instantiated as trips",
		}),
		matcherFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "matcher", Name: "fallback_total",
			Help: "Total number of Matcher cycles that used the rule-based fallback",
		}),
		matchMargin: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "matcher", Name: "profit_margin_ratio",
			Help:    "Profit margin of approved matches",
			Buckets: []float64{0, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1.0},
		}),
		adapterCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "adapter", Name: "cycles_total",
			Help: "Total number of Adapter cycles run",
		}),
		adapterActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "adapter", Name: "actions_total",
			Help: "Actions applied by the Adapter agent, by action",
		}, []string{"action"}),
		routeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "route_cache", Name: "hits_total",
			Help: "Route cache hits",
		}),
		routeCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "route_cache", Name: "misses_total",
			Help: "Route cache misses",
		}),
		routeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "route_cache", Name: "fallbacks_total",
			Help: "Times the synthetic straight-line fallback was used in place of a routed polyline",
		}),
		advisorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "advisor", Name: "errors_total",
			Help: "Advisor client errors, by agent",
		}, []string{"agent"}),
	}
}

// Register registers every metric with Registry. A nil Registry makes
// this a no-op, so callers don't need to branch on IsEnabled().
func (c *Collector) Register() error {
	if Registry == nil {
		return nil
	}
	collectors := []prometheus.Collector{
		c.motionTicks, c.motionEvents, c.observerTriggers,
		c.matcherCycles, c.matchesCreated, c.matcherFallback, c.matchMargin,
		c.adapterCycles, c.adapterActions,
		c.routeCacheHits, c.routeCacheMisses, c.routeFallbacks,
		c.advisorErrors,
	}
	for _, col := range collectors {
		if err := Registry.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// SetGlobal installs c as the package-level collector the Record* helpers
// below feed into.
func SetGlobal(c *Collector) { dispatchCollector = c }

func RecordMotionTick(eventTypes []string) {
	if dispatchCollector == nil {
		return
	}
	dispatchCollector.motionTicks.Inc()
	for _, t := range eventTypes {
		dispatchCollector.motionEvents.WithLabelValues(t).Inc()
	}
}

func RecordObserverTrigger(trigger string) {
	if dispatchCollector != nil {
		dispatchCollector.observerTriggers.WithLabelValues(trigger).Inc()
	}
}

func RecordMatcherCycle(matchesCreated int, usedFallback bool, margins []float64) {
	if dispatchCollector == nil {
		return
	}
	dispatchCollector.matcherCycles.Inc()
	dispatchCollector.matchesCreated.Add(float64(matchesCreated))
	if usedFallback {
		dispatchCollector.matcherFallback.Inc()
	}
	for _, m := range margins {
		dispatchCollector.matchMargin.Observe(m)
	}
}

func RecordAdapterCycle(action string) {
	if dispatchCollector == nil {
		return
	}
	dispatchCollector.adapterCycles.Inc()
	dispatchCollector.adapterActions.WithLabelValues(action).Inc()
}

func RecordRouteCacheHit()      { if dispatchCollector != nil { dispatchCollector.routeCacheHits.Inc() } }
func RecordRouteCacheMiss()     { if dispatchCollector != nil { dispatchCollector.routeCacheMisses.Inc() } }
func RecordRouteFallback()      { if dispatchCollector != nil { dispatchCollector.routeFallbacks.Inc() } }
func RecordAdvisorError(agent string) {
	if dispatchCollector != nil {
		dispatchCollector.advisorErrors.WithLabelValues(agent).Inc()
	}
}
