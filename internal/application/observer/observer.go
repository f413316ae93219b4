// Package observer implements the Observer Agent: each cycle it ingests
// external signals (or a stochastic generator standing in for them),
// writes events, and surfaces triggers that let the Dispatch Loop run
// Matcher or Adapter ahead of schedule.
package observer

import (
	"math"
	"math/rand"
	"time"

	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/store"
	"github.com/dispatchcore/fleetengine/pkg/utils"
)

// Trigger is an internal marker directing the scheduler to run Matcher or
// Adapter out of schedule.
type Trigger string

const (
	TriggerIdleTimeout      Trigger = "idle_timeout"
	TriggerNearDelivery     Trigger = "near_delivery"
	TriggerHighPriorityLoad Trigger = "high_priority_load_posted"
)

// Config carries the tunables Cycle needs.
type Config struct {
	IdleTimeout          time.Duration // default 30 min
	NearDeliveryProgress float64       // default 0.9
	HighPriorityRate     float64       // rate per km above which a newly posted load is high priority
}

// SignalSource produces candidate events for one Observer cycle. The
// default StochasticSignalSource stands in for real telematics/market
// feeds in simulation; StaticSignalSource lets tests inject specific
// signals (e.g. a traffic_alert for scenario 4).
type SignalSource interface {
	Signals(now time.Time) []Signal
}

// Signal is a pre-event-ID'd observation the Observer turns into an Event.
type Signal struct {
	Kind         dispatch.EventType
	VehicleID    string
	DelayMinutes float64
	Reason       string
	NewLoad      *freight.Load
}

// StochasticSignalSource generates a small number of random traffic
// signals per cycle, seeded via an injected rand.Rand so runs are
// reproducible instead of depending on the global generator. VehicleIDs
// is refreshed by the caller each cycle from the latest snapshot so the
// source can pick a plausible target without holding a Store reference.
type StochasticSignalSource struct {
	Rand            *rand.Rand
	VehicleIDs      []string
	HomeDepot       geo.Location // center new loads are scattered around
	ScatterRadiusKm float64      // default 50 if zero
}

func (s *StochasticSignalSource) Signals(now time.Time) []Signal {
	if s.Rand == nil {
		return nil
	}
	var signals []Signal
	if len(s.VehicleIDs) > 0 && s.Rand.Float64() <= 0.1 {
		// Low-frequency stochastic noise: most cycles produce nothing.
		vehicleID := s.VehicleIDs[s.Rand.Intn(len(s.VehicleIDs))]
		delay := 5 + s.Rand.Float64()*30
		signals = append(signals, Signal{Kind: dispatch.EventTrafficAlert, VehicleID: vehicleID, DelayMinutes: delay, Reason: "congestion"})
	}
	if s.Rand.Float64() <= 0.05 {
		if load := s.randomLoad(now); load != nil {
			signals = append(signals, Signal{Kind: dispatch.EventNewLoadPosted, NewLoad: load})
		}
	}
	return signals
}

// randomLoad scatters a freshly posted load around HomeDepot, standing in
// for a market feed announcing new freight. Returns nil on the (expected
// to be rare) construction error rather than surfacing it, since Signals
// has no error channel back to the caller.
func (s *StochasticSignalSource) randomLoad(now time.Time) *freight.Load {
	radius := s.ScatterRadiusKm
	if radius <= 0 {
		radius = 50
	}
	origin := RandomLocationNear(s.HomeDepot, radius, s.Rand)
	dest := RandomLocationNear(s.HomeDepot, radius*3, s.Rand)
	pickupStart := now
	pickupEnd := now.Add(2 * time.Hour)
	deadline := now.Add(24 * time.Hour)
	load, err := freight.NewLoad(utils.GenerateID("load"), origin, dest, 1+s.Rand.Float64()*9, 1.0+s.Rand.Float64()*2, pickupStart, pickupEnd, deadline)
	if err != nil {
		return nil
	}
	return load
}

// StaticSignalSource returns a fixed, caller-supplied signal list once,
// then nothing; used in tests to inject a single scripted event.
type StaticSignalSource struct {
	Pending []Signal
	emitted bool
}

func (s *StaticSignalSource) Signals(now time.Time) []Signal {
	if s.emitted {
		return nil
	}
	s.emitted = true
	return s.Pending
}

// Result is what Cycle returns to the caller/scheduler. NewLoads carries
// any Load records an EventNewLoadPosted signal introduced; Cycle itself
// only has read access to a Snapshot, so it is the caller's job to insert
// them into the Store (spec.md §4.5: "new_load_posted (a Load record to
// insert)").
type Result struct {
	Events   []dispatch.Event
	Triggers []Trigger
	NewLoads []*freight.Load
}

// Cycle runs one Observer pass over the snapshot plus whatever the
// SignalSource produces, and returns events and triggers. It never panics
// out to the caller: any internal failure is swallowed into an
// internal_error event and the cycle still returns.
func Cycle(snap store.Snapshot, now time.Time, source SignalSource, cfg Config) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result.Events = append(result.Events, dispatch.NewInternalErrorEvent(utils.GenerateID("evt"), now, 0, "observer", "recovered panic during cycle"))
		}
	}()

	seq := 0
	nextSeq := func() int { seq++; return seq }

	for _, v := range snap.Vehicles {
		if v.Status() == fleet.StatusIdle && v.IdleDuration(now) >= cfg.IdleTimeout && cfg.IdleTimeout > 0 {
			result.Triggers = append(result.Triggers, TriggerIdleTimeout)
		}
		if v.FuelPercent() < 15 {
			result.Events = append(result.Events, dispatch.NewFuelLowEvent(utils.GenerateID("evt"), now, nextSeq(), v.ID(), v.FuelPercent()))
		}
	}

	for _, t := range snap.Trips {
		if !t.Phase().IsTerminal() && t.ProgressFraction() >= cfg.NearDeliveryProgress {
			result.Triggers = append(result.Triggers, TriggerNearDelivery)
		}
	}

	if source != nil {
		for _, sig := range source.Signals(now) {
			switch sig.Kind {
			case dispatch.EventTrafficAlert:
				result.Events = append(result.Events, dispatch.NewTrafficAlertEvent(utils.GenerateID("evt"), now, nextSeq(), sig.VehicleID, sig.DelayMinutes, sig.Reason))
			case dispatch.EventNewLoadPosted:
				if sig.NewLoad != nil {
					result.Events = append(result.Events, dispatch.NewNewLoadPostedEvent(utils.GenerateID("evt"), now, nextSeq(), sig.NewLoad.ID()))
					result.NewLoads = append(result.NewLoads, sig.NewLoad)
					if sig.NewLoad.RatePerKm() >= cfg.HighPriorityRate && cfg.HighPriorityRate > 0 {
						result.Triggers = append(result.Triggers, TriggerHighPriorityLoad)
					}
				}
			case dispatch.EventMaintenanceRequired:
				result.Events = append(result.Events, dispatch.NewMaintenanceRequiredEvent(utils.GenerateID("evt"), now, nextSeq(), sig.VehicleID, sig.Reason))
			}
		}
	}

	return result
}

// RandomLocationNear returns a location offset from base by up to radiusKm
// in a random direction, used by the stochastic source (or initialization)
// to scatter new loads/vehicles plausibly.
func RandomLocationNear(base geo.Location, radiusKm float64, r *rand.Rand) geo.Location {
	bearing := r.Float64() * 360
	distance := r.Float64() * radiusKm
	// equirectangular approximation, adequate for scattering within a
	// metro-scale radius
	const kmPerDegLat = 111.0
	rad := bearing * math.Pi / 180
	dLat := distance * math.Cos(rad) / kmPerDegLat
	dLng := distance * math.Sin(rad) / (kmPerDegLat * math.Cos(base.Lat*math.Pi/180))
	return geo.Location{Lat: base.Lat + dLat, Lng: base.Lng + dLng}
}
