// Package store holds the Store: the sole owner of the vehicle, load, and
// trip maps and the bounded event ring. Every other component reads a
// Snapshot or submits a mutator through one of the Update*/Insert*/Remove*
// operations; nothing outside this package holds a map reference.
//
// Grounded on the mutex-guarded in-memory registries used elsewhere in the
// domain layer (health monitor watch lists, container registries): one
// RWMutex serializes writes, Snapshot takes the read lock and hands back
// copies cheap enough that callers never need to synchronize again.
package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dispatchcore/fleetengine/internal/domain/dispatch"
	"github.com/dispatchcore/fleetengine/internal/domain/fleet"
	"github.com/dispatchcore/fleetengine/internal/domain/freight"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

// VehicleMutator edits a vehicle and returns the replacement, or an error
// to abort the update.
type VehicleMutator func(*fleet.Vehicle) (*fleet.Vehicle, error)

// LoadMutator edits a load and returns the replacement, or an error to
// abort the update.
type LoadMutator func(*freight.Load) (*freight.Load, error)

// TripMutator edits a trip and returns the replacement, or an error to
// abort the update.
type TripMutator func(*dispatch.Trip) (*dispatch.Trip, error)

// Snapshot is a read-only, internally consistent view of the Store at an
// instant. Entity values are shared (not deep-copied) since they are
// treated as immutable once published; the maps themselves are fresh
// copies so a reader can range over them without a lock.
type Snapshot struct {
	Vehicles   map[string]*fleet.Vehicle
	Loads      map[string]*freight.Load
	Trips      map[string]*dispatch.Trip
	Events     []dispatch.Event
	SnapshotAt time.Time
}

// Store is the authoritative in-memory state for vehicles, loads, trips,
// and recent events.
type Store struct {
	mu       sync.RWMutex
	vehicles map[string]*fleet.Vehicle
	loads    map[string]*freight.Load
	trips    map[string]*dispatch.Trip
	events   []dispatch.Event
	ringSize int
	clock    shared.Clock
	tripSeq  int
}

// New constructs an empty Store with the given event ring capacity.
func New(ringSize int, clock shared.Clock) *Store {
	if ringSize <= 0 {
		ringSize = 500
	}
	return &Store{
		vehicles: make(map[string]*fleet.Vehicle),
		loads:    make(map[string]*freight.Load),
		trips:    make(map[string]*dispatch.Trip),
		ringSize: ringSize,
		clock:    clock,
	}
}

// Snapshot returns a point-in-time consistent view across all collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vehicles := make(map[string]*fleet.Vehicle, len(s.vehicles))
	for k, v := range s.vehicles {
		vehicles[k] = v
	}
	loads := make(map[string]*freight.Load, len(s.loads))
	for k, v := range s.loads {
		loads[k] = v
	}
	trips := make(map[string]*dispatch.Trip, len(s.trips))
	for k, v := range s.trips {
		trips[k] = v
	}
	events := make([]dispatch.Event, len(s.events))
	copy(events, s.events)

	return Snapshot{
		Vehicles:   vehicles,
		Loads:      loads,
		Trips:      trips,
		Events:     events,
		SnapshotAt: s.clock.Now(),
	}
}

// PutVehicle inserts or replaces a vehicle outright; used by Initialize
// when seeding a brand-new vehicle record.
func (s *Store) PutVehicle(v *fleet.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID()] = v
}

// PutLoad inserts or replaces a load outright; used by Initialize and
// Observer when ingesting a newly posted load.
func (s *Store) PutLoad(l *freight.Load) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[l.ID()] = l
}

// UpdateVehicle applies mutator to the named vehicle.
func (s *Store) UpdateVehicle(id string, mutator VehicleMutator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.vehicles[id]
	if !ok {
		return shared.NewNotFoundError("vehicle", id)
	}
	updated, err := mutator(existing)
	if err != nil {
		return err
	}
	s.vehicles[id] = updated
	return nil
}

// UpdateLoad applies mutator to the named load.
func (s *Store) UpdateLoad(id string, mutator LoadMutator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.loads[id]
	if !ok {
		return shared.NewNotFoundError("load", id)
	}
	updated, err := mutator(existing)
	if err != nil {
		return err
	}
	s.loads[id] = updated
	return nil
}

// InsertTrip inserts a new trip. Conflicts if the vehicle or load is
// already referenced by another active (non-terminal) trip.
func (s *Store) InsertTrip(trip *dispatch.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.trips {
		if existing.Phase().IsTerminal() {
			continue
		}
		if existing.VehicleID() == trip.VehicleID() {
			return shared.NewConflictError("vehicle " + trip.VehicleID() + " already has an active trip")
		}
		if existing.LoadID() == trip.LoadID() {
			return shared.NewConflictError("load " + trip.LoadID() + " already has an active trip")
		}
	}
	s.trips[trip.ID()] = trip
	return nil
}

// UpdateTrip applies mutator to the named trip.
func (s *Store) UpdateTrip(id string, mutator TripMutator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.trips[id]
	if !ok {
		return shared.NewNotFoundError("trip", id)
	}
	updated, err := mutator(existing)
	if err != nil {
		return err
	}
	s.trips[id] = updated
	return nil
}

// RemoveTrip deletes the named trip from the active set.
func (s *Store) RemoveTrip(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trips[id]; !ok {
		return shared.NewNotFoundError("trip", id)
	}
	delete(s.trips, id)
	return nil
}

// ApplyEvents appends events to the ring, dropping the oldest on overflow.
func (s *Store) ApplyEvents(events []dispatch.Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)
	if overflow := len(s.events) - s.ringSize; overflow > 0 {
		s.events = s.events[overflow:]
	}
}

// NextTripReference returns a monotonic sequence number for a human
// readable trip reference, e.g. "T-0042".
func (s *Store) NextTripReference() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tripSeq++
	return s.tripSeq
}

// Stats computes the KPI object from the current state.
type Stats struct {
	TotalVehicles     int
	AvailableVehicles int
	IdleVehicles      int
	EnRouteVehicles   int
	TotalLoads        int
	AvailableLoads    int
	MatchedLoads      int
	InTransitLoads    int
	AvgUtilization    float64
	TotalKmToday      float64
}

// Compute summarizes the current snapshot into the KPI object.
func Compute(snap Snapshot) Stats {
	stats := Stats{}
	for _, v := range snap.Vehicles {
		stats.TotalVehicles++
		stats.TotalKmToday += v.TotalKmToday()
		switch v.Status() {
		case fleet.StatusIdle:
			stats.IdleVehicles++
			stats.AvailableVehicles++
		case fleet.StatusMaintenance, fleet.StatusOffline:
		default:
			if v.Status().IsEnRoute() {
				stats.EnRouteVehicles++
			}
		}
	}
	utilizationSum := 0.0
	utilizationCount := 0
	for _, l := range snap.Loads {
		stats.TotalLoads++
		switch l.Status() {
		case freight.StatusAvailable:
			stats.AvailableLoads++
		case freight.StatusMatched:
			stats.MatchedLoads++
		case freight.StatusInTransit:
			stats.InTransitLoads++
		}
	}
	for _, t := range snap.Trips {
		if t.RouteTotalKm() > 0 {
			utilizationSum += t.LoadedLegKm() / t.RouteTotalKm() * 100
			utilizationCount++
		}
	}
	if utilizationCount > 0 {
		stats.AvgUtilization = utilizationSum / float64(utilizationCount)
	}
	return stats
}

// MarshalJSON renders Stats per spec's KPI object field names.
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalVehicles     int     `json:"total_vehicles"`
		AvailableVehicles int     `json:"available_vehicles"`
		IdleVehicles      int     `json:"idle_vehicles"`
		EnRouteVehicles   int     `json:"en_route_vehicles"`
		TotalLoads        int     `json:"total_loads"`
		AvailableLoads    int     `json:"available_loads"`
		MatchedLoads      int     `json:"matched_loads"`
		InTransitLoads    int     `json:"in_transit_loads"`
		AvgUtilization    float64 `json:"avg_utilization"`
		TotalKmToday      float64 `json:"total_km_today"`
	}{
		TotalVehicles:     s.TotalVehicles,
		AvailableVehicles: s.AvailableVehicles,
		IdleVehicles:      s.IdleVehicles,
		EnRouteVehicles:   s.EnRouteVehicles,
		TotalLoads:        s.TotalLoads,
		AvailableLoads:    s.AvailableLoads,
		MatchedLoads:      s.MatchedLoads,
		InTransitLoads:    s.InTransitLoads,
		AvgUtilization:    s.AvgUtilization,
		TotalKmToday:      s.TotalKmToday,
	})
}

// EventFilter narrows Events by type and limit.
type EventFilter struct {
	Type  dispatch.EventType // empty means any
	Limit int                // 0 means no limit
}

// Events returns events from the snapshot matching the filter, newest
// first.
func Events(snap Snapshot, filter EventFilter) []dispatch.Event {
	filtered := make([]dispatch.Event, 0, len(snap.Events))
	for _, e := range snap.Events {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].SeqInTick > filtered[j].SeqInTick
		}
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})
	if filter.Limit > 0 && len(filtered) > filter.Limit {
		filtered = filtered[:filter.Limit]
	}
	return filtered
}
