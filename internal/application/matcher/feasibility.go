// Package matcher implements the Matcher Agent: for idle vehicles and
// available loads it enumerates feasible pairings, scores them, solicits
// an advisor ranking, and instantiates trips for the approved set.
//
// FeasibilityRecord is grounded directly on the domain layer's own scored,
// immutable opportunity value object (arbitrage analysis): compute once in
// a validating constructor, expose only getters, keep a derived score
// field settable after ranking.
package matcher

import (
	"fmt"

	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
)

// FeasibilityRecord is one candidate (vehicle, load) pairing with its
// computed economics.
type FeasibilityRecord struct {
	vehicle         *fleet.Vehicle
	load            *freight.Load
	pickupKm        float64
	loadedKm        float64
	totalKm         float64
	revenue         float64
	cost            float64
	profit          float64
	profitMargin    float64
	utilization     float64
	estimatedHours  float64
}

// CostCoefficients configures the per-km and per-hour cost model.
type CostCoefficients struct {
	PerKm     float64
	PerHour   float64
	AssumedSpeedKmh float64
}

// NewFeasibilityRecord computes all derived economics for a candidate
// pairing.
func NewFeasibilityRecord(vehicle *fleet.Vehicle, load *freight.Load, coef CostCoefficients) *FeasibilityRecord {
	pickupKm := geo.DistanceKm(vehicle.Location(), load.Origin())
	loadedKm := load.DistanceKm()
	totalKm := pickupKm + loadedKm

	speed := coef.AssumedSpeedKmh
	if speed <= 0 {
		speed = 60
	}
	hours := totalKm / speed

	revenue := load.Revenue()
	cost := totalKm*coef.PerKm + hours*coef.PerHour
	profit := revenue - cost

	margin := 0.0
	if revenue > 0 {
		margin = profit / revenue
	}
	utilization := 0.0
	if totalKm > 0 {
		utilization = loadedKm / totalKm
	}

	return &FeasibilityRecord{
		vehicle:        vehicle,
		load:           load,
		pickupKm:       pickupKm,
		loadedKm:       loadedKm,
		totalKm:        totalKm,
		revenue:        revenue,
		cost:           cost,
		profit:         profit,
		profitMargin:   margin,
		utilization:    utilization,
		estimatedHours: hours,
	}
}

func (f *FeasibilityRecord) Vehicle() *fleet.Vehicle   { return f.vehicle }
func (f *FeasibilityRecord) Load() *freight.Load       { return f.load }
func (f *FeasibilityRecord) PickupKm() float64         { return f.pickupKm }
func (f *FeasibilityRecord) LoadedKm() float64         { return f.loadedKm }
func (f *FeasibilityRecord) TotalKm() float64          { return f.totalKm }
func (f *FeasibilityRecord) Revenue() float64          { return f.revenue }
func (f *FeasibilityRecord) Cost() float64             { return f.cost }
func (f *FeasibilityRecord) Profit() float64           { return f.profit }
func (f *FeasibilityRecord) ProfitMargin() float64     { return f.profitMargin }
func (f *FeasibilityRecord) Utilization() float64      { return f.utilization }
func (f *FeasibilityRecord) EstimatedHours() float64   { return f.estimatedHours }

// MeetsTargets reports whether the record satisfies both quantitative
// targets the advisor prompt embeds.
func (f *FeasibilityRecord) MeetsTargets(minMargin, minUtilization float64) bool {
	return f.profitMargin >= minMargin && f.utilization >= minUtilization
}

// PairID is the "vehicle-id -> load-id" identifier the advisor prompt and
// response parsing both key off.
func (f *FeasibilityRecord) PairID() string {
	return fmt.Sprintf("%s -> %s", f.vehicle.ID(), f.load.ID())
}

func (f *FeasibilityRecord) String() string {
	return fmt.Sprintf("%s (margin=%.2f, util=%.2f, profit=%.2f)", f.PairID(), f.profitMargin, f.utilization, f.profit)
}
