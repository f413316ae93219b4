// Package predictor derives per-trip ETA, remaining distance, current
// speed, fuel-remaining-at-arrival, and on-time status from a snapshot.
// Pure function over a read-only view, grounded on the domain layer's own
// read-only query handlers: no side effects, no state held between calls.
package predictor

import (
	"time"

	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/store"
)

// Priority orders recommendation advisories.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

// Recommendation is a single advisory attached to a trip prediction.
type Recommendation struct {
	Kind     string // "refuel", "rest", "delay-notification", "on-track"
	Priority Priority
}

// OnTimeStatus is either on-time or delayed.
type OnTimeStatus string

const (
	OnTime  OnTimeStatus = "on-time"
	Delayed OnTimeStatus = "delayed"
)

// Prediction is the per-trip readout.
type Prediction struct {
	TripID             string
	RemainingKm         float64
	CurrentSpeedKmh     float64
	ETASeconds          float64
	ETATimestamp        time.Time
	FuelRemainingAtETA  float64
	Status              OnTimeStatus
	Recommendations     []Recommendation
}

// Config carries the tunables Predict needs.
type Config struct {
	TickSpeedKmh        float64
	FuelConsumptionRate float64 // percent per km, blended loaded/empty average used for the prediction readout
}

// Predict derives a Prediction for every active (non-terminal) trip in
// the snapshot.
func Predict(snap store.Snapshot, now time.Time, cfg Config) []Prediction {
	predictions := make([]Prediction, 0, len(snap.Trips))
	for _, trip := range snap.Trips {
		if trip.Phase().IsTerminal() {
			continue
		}
		load, hasLoad := snap.Loads[trip.LoadID()]

		remainingKm := (1 - trip.ProgressFraction()) * trip.RouteTotalKm()

		trafficFactor := latestTrafficFactor(snap, trip.VehicleID())
		speed := cfg.TickSpeedKmh / trafficFactor
		if speed <= 0 {
			speed = cfg.TickSpeedKmh
		}

		etaSeconds := 0.0
		if speed > 0 {
			etaSeconds = remainingKm / speed * 3600
		}
		etaSeconds += trip.DelayMinutes() * 60
		etaTimestamp := now.Add(time.Duration(etaSeconds) * time.Second)

		fuelAtETA := 0.0
		if vehicle, ok := snap.Vehicles[trip.VehicleID()]; ok {
			fuelAtETA = vehicle.FuelPercent() - cfg.FuelConsumptionRate*remainingKm
		}

		status := OnTime
		if hasLoad && etaTimestamp.After(load.DeliveryDeadline()) {
			status = Delayed
		}

		p := Prediction{
			TripID:             trip.ID(),
			RemainingKm:        remainingKm,
			CurrentSpeedKmh:    speed,
			ETASeconds:         etaSeconds,
			ETATimestamp:       etaTimestamp,
			FuelRemainingAtETA: fuelAtETA,
			Status:             status,
		}
		p.Recommendations = recommend(p, etaSeconds, vehicleDrivingHoursLeft(snap, trip.VehicleID()))
		predictions = append(predictions, p)
	}
	return predictions
}

func vehicleDrivingHoursLeft(snap store.Snapshot, vehicleID string) float64 {
	if v, ok := snap.Vehicles[vehicleID]; ok {
		return v.DrivingHoursLeft()
	}
	return 0
}

func recommend(p Prediction, etaSeconds, drivingHoursLeft float64) []Recommendation {
	var recs []Recommendation
	if p.FuelRemainingAtETA < 10 {
		recs = append(recs, Recommendation{Kind: "refuel", Priority: PriorityHigh})
	}
	etaHours := etaSeconds / 3600
	if drivingHoursLeft < etaHours {
		recs = append(recs, Recommendation{Kind: "rest", Priority: PriorityHigh})
	}
	if p.Status == Delayed {
		recs = append(recs, Recommendation{Kind: "delay-notification", Priority: PriorityLow})
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{Kind: "on-track", Priority: PriorityLow})
	}
	return recs
}

// latestTrafficFactor scans recent traffic_alert events for this vehicle
// and converts the most recent delay into a speed-reduction factor (>1
// means slower). No alert means factor 1.0.
func latestTrafficFactor(snap store.Snapshot, vehicleID string) float64 {
	var latest *dispatch.TrafficAlertPayload
	var latestTs time.Time
	for _, e := range snap.Events {
		if e.Type != dispatch.EventTrafficAlert {
			continue
		}
		payload, ok := e.Payload.(dispatch.TrafficAlertPayload)
		if !ok || payload.VehicleID != vehicleID {
			continue
		}
		if latest == nil || e.Timestamp.After(latestTs) {
			p := payload
			latest = &p
			latestTs = e.Timestamp
		}
	}
	if latest == nil {
		return 1.0
	}
	// 90 minutes of delay halves effective speed; scaled linearly and
	// floored so a short delay barely moves the estimate.
	factor := 1.0 + latest.DelayMinutes/90.0
	if factor < 1.0 {
		factor = 1.0
	}
	return factor
}
