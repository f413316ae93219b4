// Package adapter runs one Adapter cycle: for every in-flight trip it
// checks for a disturbance (accumulated delay, low fuel, low driving
// hours), searches for a follow-up opportunity near the trip's
// destination, asks the advisor to choose an action, and applies
// whichever of CONTINUE / ADJUST_ROUTE / FOLLOW_UP_LOAD comes back (or
// the rule-based fallback's choice, if the advisor is unavailable).
//
// Grounded on the same profitability-scoring shape as matcher.go
// (opportunity search, ranked by profit) plus the navigation strategy
// layer's disturbance-response decision: a small fixed action menu
// resolved by an external decision-maker with a deterministic fallback.
package adapter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dispatchcore/fleetengine/internal/domain/advisor"
	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/infrastructure/metrics"
	"github.com/dispatchcore/fleetengine/internal/store"
	"github.com/dispatchcore/fleetengine/pkg/utils"
)

// Action is the closed menu the advisor (or the fallback) chooses from.
type Action string

const (
	ActionContinue     Action = "CONTINUE"
	ActionAdjustRoute  Action = "ADJUST_ROUTE"
	ActionFollowUpLoad Action = "FOLLOW_UP_LOAD"
)

// Config carries the tunables one Cycle needs.
type Config struct {
	DetourBudgetKm    float64 // max extra distance a follow-up load may add
	OpportunitiesTopM int     // follow-up candidates considered per trip
	DelayFollowupMin  float64 // accumulated delay (minutes) above which FOLLOW_UP_LOAD is considered
	FollowupMarginMin float64 // minimum profit margin a follow-up opportunity needs
}

// Decision records the action taken for one trip during a cycle.
type Decision struct {
	TripID         string
	Disturbance    string
	Action         Action
	FollowupLoadID string
}

// Result is what one Cycle produced.
type Result struct {
	Events     []dispatch.Event
	Decisions  []Decision
	Adjusted   int
	FollowedUp int
}

// Cycle evaluates every in-flight trip for a disturbance and applies the
// resulting action.
func Cycle(ctx context.Context, st *store.Store, advisorClient advisor.Client, now time.Time, cfg Config) Result {
	snap := st.Snapshot()

	var result Result
	seq := 0
	nextSeq := func() int { seq++; return seq }

	for _, trip := range snap.Trips {
		if trip.Phase().IsTerminal() || trip.Phase() == dispatch.PhasePlanning {
			continue
		}
		vehicle, hasVehicle := snap.Vehicles[trip.VehicleID()]
		load, hasLoad := snap.Loads[trip.LoadID()]
		if !hasVehicle || !hasLoad {
			continue
		}

		totalDelay := sumTrafficDelayMinutes(snap.Events, vehicle.ID()) + trip.DelayMinutes()

		disturbance := detectDisturbance(totalDelay, vehicle)
		if disturbance == "" {
			continue
		}

		opportunities := findOpportunities(snap, trip, load, cfg)

		action, followupLoadID := decide(ctx, advisorClient, trip, vehicle, disturbance, totalDelay, opportunities, cfg, now)

		events, err := applyAction(st, trip, action, followupLoadID, totalDelay, now, nextSeq)
		if err != nil {
			continue
		}
		result.Events = append(result.Events, events...)
		result.Decisions = append(result.Decisions, Decision{
			TripID:         trip.ID(),
			Disturbance:    disturbance,
			Action:         action,
			FollowupLoadID: followupLoadID,
		})
		metrics.RecordAdapterCycle(string(action))
		switch action {
		case ActionAdjustRoute:
			result.Adjusted++
		case ActionFollowUpLoad:
			result.FollowedUp++
		}
	}

	return result
}

// sumTrafficDelayMinutes scans recent events for traffic_alert payloads
// addressed to vehicleID and sums their delay minutes, per spec.md §4.7's
// disturbance-detection rule ("scan recent events for this vehicle: sum of
// traffic delay minutes"). Mirrors predictor.latestTrafficFactor's event
// scan, summed rather than latest-only since the situation packet cares
// about cumulative drift, not the single worst alert.
func sumTrafficDelayMinutes(events []dispatch.Event, vehicleID string) float64 {
	var total float64
	for _, e := range events {
		if e.Type != dispatch.EventTrafficAlert {
			continue
		}
		payload, ok := e.Payload.(dispatch.TrafficAlertPayload)
		if !ok || payload.VehicleID != vehicleID {
			continue
		}
		total += payload.DelayMinutes
	}
	return total
}

// detectDisturbance reports a short reason string if the trip or its
// vehicle has drifted from plan, or "" if nothing needs attention.
// totalDelay is the sum of traffic-alert delay minutes for the vehicle
// plus the trip's own accumulated (replan-penalty) delay.
func detectDisturbance(totalDelay float64, vehicle *fleet.Vehicle) string {
	switch {
	case totalDelay > 0:
		return "accumulated_delay"
	case vehicle.FuelPercent() < 15:
		return "low_fuel"
	case vehicle.DrivingHoursLeft() < 1:
		return "low_driving_hours"
	default:
		return ""
	}
}

// opportunity is a candidate follow-up load reachable from the trip's
// destination within the detour budget.
type opportunity struct {
	load     *freight.Load
	detourKm float64
	profit   float64
	margin   float64
}

// findOpportunities ranks available loads near the trip's destination by
// profit, keeping only those within the detour budget.
func findOpportunities(snap store.Snapshot, trip *dispatch.Trip, currentLoad *freight.Load, cfg Config) []opportunity {
	var candidates []opportunity
	for _, l := range snap.Loads {
		if l.Status() != freight.StatusAvailable {
			continue
		}
		if l.ID() == currentLoad.ID() {
			continue
		}
		detourKm := geo.DistanceKm(currentLoad.Destination(), l.Origin())
		if detourKm > cfg.DetourBudgetKm {
			continue
		}
		revenue := l.Revenue()
		cost := (detourKm + l.DistanceKm()) * 0.5 // coarse per-km cost estimate; fine-grained costing is Matcher's job
		profit := revenue - cost
		margin := 0.0
		if revenue > 0 {
			margin = profit / revenue
		}
		candidates = append(candidates, opportunity{load: l, detourKm: detourKm, profit: profit, margin: margin})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].profit > candidates[j].profit })

	topM := cfg.OpportunitiesTopM
	if topM <= 0 || topM > len(candidates) {
		topM = len(candidates)
	}
	return candidates[:topM]
}

// decide consults the advisor, falling back to the rule-based decision if
// the advisor is unavailable or returns nothing parseable.
func decide(ctx context.Context, advisorClient advisor.Client, trip *dispatch.Trip, vehicle *fleet.Vehicle, disturbance string, totalDelay float64, opportunities []opportunity, cfg Config, now time.Time) (Action, string) {
	if advisorClient != nil {
		system, user := buildPrompt(trip, vehicle, disturbance, totalDelay, opportunities)
		text, err := advisorClient.Complete(ctx, system, user)
		if err == nil {
			if action, loadID, ok := parseDecision(text); ok {
				if action == ActionFollowUpLoad && !opportunityExists(opportunities, loadID) {
					ok = false
				}
				if ok {
					return action, loadID
				}
			}
		} else {
			metrics.RecordAdvisorError("adapter")
		}
	}
	return fallbackDecide(totalDelay, opportunities, cfg)
}

func opportunityExists(opportunities []opportunity, loadID string) bool {
	for _, o := range opportunities {
		if o.load.ID() == loadID {
			return true
		}
	}
	return false
}

// buildPrompt renders the decision menu, mirroring the
// "DECISION: <action>" grammar parseDecision reads.
func buildPrompt(trip *dispatch.Trip, vehicle *fleet.Vehicle, disturbance string, totalDelay float64, opportunities []opportunity) (system, user string) {
	system = "You are a trip disturbance advisor. Choose exactly one action: CONTINUE, ADJUST_ROUTE, FOLLOW_UP_LOAD. " +
		"Respond with a line \"DECISION: <action>\" and, for FOLLOW_UP_LOAD, a line \"LOAD: <load-id>\"."

	var b strings.Builder
	fmt.Fprintf(&b, "trip=%s vehicle=%s disturbance=%s delay_minutes=%.1f fuel_percent=%.1f driving_hours_left=%.1f\n",
		trip.ID(), vehicle.ID(), disturbance, totalDelay, vehicle.FuelPercent(), vehicle.DrivingHoursLeft())
	b.WriteString("opportunities:\n")
	for _, o := range opportunities {
		fmt.Fprintf(&b, "%s detour_km=%.1f profit=%.2f margin=%.2f\n", o.load.ID(), o.detourKm, o.profit, o.margin)
	}
	return system, b.String()
}

// parseDecision reads "DECISION: <action>" and an optional "LOAD: <id>"
// line out of the advisor's response.
func parseDecision(text string) (action Action, loadID string, ok bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "DECISION:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "DECISION:"))
			switch Action(raw) {
			case ActionContinue, ActionAdjustRoute, ActionFollowUpLoad:
				action = Action(raw)
				ok = true
			}
		case strings.HasPrefix(line, "LOAD:"):
			loadID = strings.TrimSpace(strings.TrimPrefix(line, "LOAD:"))
		}
	}
	if action == ActionFollowUpLoad && loadID == "" {
		return "", "", false
	}
	return action, loadID, ok
}

// fallbackDecide is the rule-based decision used when the advisor is
// unavailable: a sustained delay with a strong follow-up opportunity
// earns FOLLOW_UP_LOAD, any other delay earns ADJUST_ROUTE, and a clean
// trip earns CONTINUE.
func fallbackDecide(totalDelay float64, opportunities []opportunity, cfg Config) (Action, string) {
	if totalDelay >= cfg.DelayFollowupMin && len(opportunities) > 0 {
		top := opportunities[0]
		if top.margin >= cfg.FollowupMarginMin {
			return ActionFollowUpLoad, top.load.ID()
		}
	}
	if totalDelay > 0 {
		return ActionAdjustRoute, ""
	}
	return ActionContinue, ""
}

// applyAction commits the chosen action to st and returns the events it
// produces.
func applyAction(st *store.Store, trip *dispatch.Trip, action Action, followupLoadID string, totalDelay float64, now time.Time, nextSeq func() int) ([]dispatch.Event, error) {
	switch action {
	case ActionContinue:
		return nil, nil

	case ActionAdjustRoute:
		const replanPenalty = 10 // fixed re-plan penalty; traffic-sourced delay is scanned fresh from events each cycle
		var loggedDelay float64
		if err := st.UpdateTrip(trip.ID(), func(t *dispatch.Trip) (*dispatch.Trip, error) {
			// Invalidate the cached remaining-leg polyline so Motion re-fetches
			// a fresh route on its next tick, then accumulate the replan penalty.
			updated := t.WithRoute(geo.Polyline{}, 0).WithDelayAdded(replanPenalty)
			loggedDelay = totalDelay + replanPenalty
			return updated, nil
		}); err != nil {
			return nil, err
		}
		return []dispatch.Event{
			dispatch.NewDeliveryDelayEvent(utils.GenerateID("evt"), now, nextSeq(), trip.ID(), loggedDelay, "route_adjusted"),
		}, nil

	case ActionFollowUpLoad:
		if followupLoadID == "" {
			return nil, nil
		}
		if err := st.UpdateTrip(trip.ID(), func(t *dispatch.Trip) (*dispatch.Trip, error) {
			return t.WithFollowupLoad(followupLoadID), nil
		}); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, nil
	}
}
