// Package matcher runs one Matcher cycle: build every feasible
// (idle vehicle, available load) pairing, rank by profit margin, submit
// the top candidates to the advisor for a go/no-go ranking, and
// instantiate trips for whatever comes back approved (or, if the advisor
// is unavailable, for whatever the rule-based fallback approves).
//
// Grounded directly on the domain layer's own arbitrage-opportunity
// pattern: compute a scored, filterable, immutable opportunity value
// object per candidate, sort by the score, and hand the ranked list to a
// decision step. Here the decision step is an external advisor instead of
// a local analyzer, with the analyzer's own scoring kept as the
// rule-based fallback.
package matcher

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
	"github.com/dispatchcore/fleetengine/internal/domain/routing"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/infrastructure/metrics"
	"github.com/dispatchcore/fleetengine/internal/store"
	"github.com/dispatchcore/fleetengine/pkg/utils"
)

// Config carries the tunables one Cycle needs.
type Config struct {
	TopK            int // candidates submitted to the advisor
	ProfitMarginMin float64
	UtilizationMin  float64
	FallbackFanout  int // max pairs the rule-based fallback approves
	Cost            CostCoefficients
	RouteTimeout    time.Duration
}

// Result is what one Cycle produced.
type Result struct {
	Events               []dispatch.Event
	OpportunitiesAnalyzed int
	MatchesCreated        int
	ApprovedPairs         []string // "vehicle-id -> load-id", in approval order
	AdvisorReasoning      string
	UsedFallback          bool
}

// Cycle enumerates candidates, ranks them, consults the advisor (or the
// fallback), and commits every approved pairing to st as a new trip.
func Cycle(ctx context.Context, st *store.Store, router routing.Client, advisorClient advisor.Client, now time.Time, cfg Config) Result {
	snap := st.Snapshot()

	candidates := buildCandidates(snap, cfg.Cost)
	if len(candidates) == 0 {
		return Result{}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ProfitMargin() > candidates[j].ProfitMargin()
	})

	topK := cfg.TopK
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	shortlist := candidates[:topK]

	byPairID := make(map[string]*FeasibilityRecord, len(shortlist))
	for _, c := range shortlist {
		byPairID[c.PairID()] = c
	}

	var approved []*FeasibilityRecord
	usedFallback := false
	reasoning := ""

	if advisorClient != nil {
		system, user := buildPrompt(shortlist, cfg)
		text, err := advisorClient.Complete(ctx, system, user)
		if err == nil {
			reasoning = text
			approved = parseApproved(text, byPairID)
		} else {
			metrics.RecordAdvisorError("matcher")
		}
	}

	if len(approved) == 0 {
		approved = fallbackApprove(shortlist, cfg)
		usedFallback = true
		if reasoning == "" {
			reasoning = "advisor unavailable or returned nothing parseable; used rule-based fallback"
		}
	}

	approved = dedupePairs(approved)

	var events []dispatch.Event
	var approvedPairs []string
	seq := 0
	nextSeq := func() int { seq++; return seq }
	matched := 0

	for _, record := range approved {
		tripEvents, err := instantiateTrip(ctx, st, router, record, now, cfg, nextSeq)
		if err != nil {
			continue
		}
		events = append(events, tripEvents...)
		approvedPairs = append(approvedPairs, record.PairID())
		matched++
	}

	margins := make([]float64, 0, len(approved))
	for _, record := range approved {
		margins = append(margins, record.ProfitMargin())
	}
	metrics.RecordMatcherCycle(matched, usedFallback, margins)

	return Result{
		Events:                events,
		OpportunitiesAnalyzed: len(shortlist),
		MatchesCreated:        matched,
		ApprovedPairs:         approvedPairs,
		AdvisorReasoning:      reasoning,
		UsedFallback:          usedFallback,
	}
}

// buildCandidates pairs every idle vehicle with every load whose pickup
// window is still open and whose weight the vehicle can carry.
func buildCandidates(snap store.Snapshot, cost CostCoefficients) []*FeasibilityRecord {
	var vehicles []*fleet.Vehicle
	for _, v := range snap.Vehicles {
		if v.Status() == fleet.StatusIdle {
			vehicles = append(vehicles, v)
		}
	}
	var loads []*freight.Load
	for _, l := range snap.Loads {
		if l.Status() == freight.StatusAvailable {
			loads = append(loads, l)
		}
	}

	var candidates []*FeasibilityRecord
	for _, v := range vehicles {
		for _, l := range loads {
			if !v.HasCapacityFor(l.WeightTons()) {
				continue
			}
			if !l.IsPickupWindowOpen(snap.SnapshotAt) {
				continue
			}
			candidates = append(candidates, NewFeasibilityRecord(v, l, cost))
		}
	}
	return candidates
}

// buildPrompt renders the shortlist as pair lines the advisor can echo
// back, mirroring the "vehicle-id -> load-id" grammar parseApproved reads.
func buildPrompt(shortlist []*FeasibilityRecord, cfg Config) (system, user string) {
	system = "You are a dispatch assignment advisor. Approve pairings that meet the targets. " +
		"Respond with one approved pairing per line, each formatted exactly as \"vehicle-id -> load-id\"."

	var b strings.Builder
	fmt.Fprintf(&b, "targets: profit_margin_min=%.2f utilization_min=%.2f\n", cfg.ProfitMarginMin, cfg.UtilizationMin)
	b.WriteString("candidates:\n")
	for _, c := range shortlist {
		fmt.Fprintf(&b, "%s margin=%.2f utilization=%.2f profit=%.2f\n", c.PairID(), c.ProfitMargin(), c.Utilization(), c.Profit())
	}
	return system, b.String()
}

// parseApproved scans the advisor's text for "vehicle-id -> load-id" lines
// and resolves each back to the candidate it came from.
func parseApproved(text string, byPairID map[string]*FeasibilityRecord) []*FeasibilityRecord {
	var approved []*FeasibilityRecord
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		pairID := normalizePairLine(line)
		if pairID == "" {
			continue
		}
		if record, ok := byPairID[pairID]; ok {
			approved = append(approved, record)
		}
	}
	return approved
}

// normalizePairLine extracts "left -> right" from a line that may carry a
// leading label (e.g. "APPROVED:") or trailing annotations, returning it
// in the canonical " -> " form PairID uses, or "" if the line has no pair.
func normalizePairLine(line string) string {
	sep := "->"
	idx := strings.Index(line, sep)
	if idx < 0 {
		sep = "→"
		idx = strings.Index(line, sep)
	}
	if idx < 0 {
		return ""
	}
	left := strings.TrimSpace(line[:idx])
	if i := strings.LastIndex(left, " "); i >= 0 {
		left = left[i+1:]
	}
	if i := strings.LastIndex(left, ":"); i >= 0 {
		left = left[i+1:]
	}
	right := strings.TrimSpace(line[idx+len(sep):])
	if i := strings.IndexAny(right, " \t"); i >= 0 {
		right = right[:i]
	}
	if left == "" || right == "" {
		return ""
	}
	return left + " -> " + right
}

// fallbackApprove approves, in rank order, every candidate meeting both
// targets, up to FallbackFanout, used when the advisor is unavailable or
// returns nothing parseable.
func fallbackApprove(ranked []*FeasibilityRecord, cfg Config) []*FeasibilityRecord {
	fanout := cfg.FallbackFanout
	if fanout <= 0 {
		fanout = 1
	}
	var approved []*FeasibilityRecord
	for _, c := range ranked {
		if !c.MeetsTargets(cfg.ProfitMarginMin, cfg.UtilizationMin) {
			continue
		}
		approved = append(approved, c)
		if len(approved) >= fanout {
			break
		}
	}
	return approved
}

// dedupePairs keeps only the first (highest-ranked) appearance of any
// vehicle or load, since a single cycle may approve a vehicle or load in
// more than one candidate pairing.
func dedupePairs(approved []*FeasibilityRecord) []*FeasibilityRecord {
	seenVehicle := make(map[string]bool)
	seenLoad := make(map[string]bool)
	var out []*FeasibilityRecord
	for _, c := range approved {
		if seenVehicle[c.Vehicle().ID()] || seenLoad[c.Load().ID()] {
			continue
		}
		seenVehicle[c.Vehicle().ID()] = true
		seenLoad[c.Load().ID()] = true
		out = append(out, c)
	}
	return out
}

// instantiateTrip routes both legs, writes the vehicle/load transitions
// and the new trip to st, and returns the load_matched/trip_started
// events. Any failure (routing timeout aside, which degrades to a
// synthetic polyline rather than erroring) aborts just this pairing.
func instantiateTrip(ctx context.Context, st *store.Store, router routing.Client, record *FeasibilityRecord, now time.Time, cfg Config, nextSeq func() int) ([]dispatch.Event, error) {
	vehicle := record.Vehicle()
	load := record.Load()

	routeCtx := ctx
	var cancel context.CancelFunc
	if cfg.RouteTimeout > 0 {
		routeCtx, cancel = context.WithTimeout(ctx, cfg.RouteTimeout)
		defer cancel()
	}

	pickupLeg, err := router.Route(routeCtx, vehicle.Location(), load.Origin())
	if err != nil {
		return nil, shared.NewUnavailableError("route pickup leg", err)
	}
	deliveryLeg, err := router.Route(routeCtx, load.Origin(), load.Destination())
	if err != nil {
		return nil, shared.NewUnavailableError("route delivery leg", err)
	}

	emptyLegKm := pickupLeg.TotalDistanceKm()
	loadedLegKm := deliveryLeg.TotalDistanceKm()
	totalKm := emptyLegKm + loadedLegKm

	speed := cfg.Cost.AssumedSpeedKmh
	if speed <= 0 {
		speed = 60
	}
	fuelCost := totalKm*cfg.Cost.PerKm + (totalKm/speed)*cfg.Cost.PerHour
	revenue := load.Revenue()

	combined := append(append([]geo.Location{}, pickupLeg.Points...), deliveryLeg.Points...)
	route := geo.Polyline{Points: combined, Fallback: pickupLeg.Fallback || deliveryLeg.Fallback}

	tripID := utils.GenerateID("trip")
	reference := st.NextTripReference()
	trip, err := dispatch.NewTrip(tripID, reference, vehicle.ID(), load.ID(), totalKm, emptyLegKm, loadedLegKm, revenue, fuelCost, now)
	if err != nil {
		return nil, err
	}
	trip = trip.WithRoute(route, totalKm)

	if err := st.InsertTrip(trip); err != nil {
		return nil, err
	}
	if err := st.UpdateLoad(load.ID(), func(l *freight.Load) (*freight.Load, error) {
		return l.WithMatched(vehicle.ID())
	}); err != nil {
		_ = st.RemoveTrip(tripID)
		return nil, err
	}
	if err := st.UpdateVehicle(vehicle.ID(), func(v *fleet.Vehicle) (*fleet.Vehicle, error) {
		return v.WithDispatch(emptyLegKm == 0, now), nil
	}); err != nil {
		_ = st.RemoveTrip(tripID)
		return nil, err
	}

	return []dispatch.Event{
		dispatch.NewLoadMatchedEvent(utils.GenerateID("evt"), now, nextSeq(), load.ID(), vehicle.ID()),
		dispatch.NewTripStartedEvent(utils.GenerateID("evt"), now, nextSeq(), tripID, vehicle.ID(), load.ID()),
	}, nil
}
