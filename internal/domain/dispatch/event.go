package dispatch

import "time"

// EventType is the closed enumeration of event kinds the engine emits.
type EventType string

const (
	EventVehiclePositionUpdate EventType = "vehicle_position_update"
	EventLoadPosted            EventType = "load_posted"
	EventLoadMatched           EventType = "load_matched"
	EventTripStarted           EventType = "trip_started"
	EventTripCompleted         EventType = "trip_completed"
	EventTrafficAlert          EventType = "traffic_alert"
	EventDeliveryDelay         EventType = "delivery_delay"
	EventFuelLow               EventType = "fuel_low"
	EventMaintenanceRequired   EventType = "maintenance_required"
	EventNewLoadPosted         EventType = "new_load_posted"
	EventDriverRestRequired    EventType = "driver_rest_required"
	EventInternalError         EventType = "internal_error"
)

// Event is the append-only envelope the store retains. Payload is one of
// the typed structs below, set exclusively by the matching constructor, so
// the pairing between Type and payload contents is total (no open
// dictionary); readers recover the struct with a type assertion on Payload.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	SeqInTick int
	Payload   any
}

type VehiclePositionUpdatePayload struct {
	VehicleID string
	Lat       float64
	Lng       float64
}

type LoadPostedPayload struct {
	LoadID      string
	Origin      string
	Destination string
	WeightTons  float64
	RatePerKm   float64
}

type LoadMatchedPayload struct {
	LoadID    string
	VehicleID string
}

type TripStartedPayload struct {
	TripID    string
	VehicleID string
	LoadID    string
}

type TripCompletedPayload struct {
	TripID string
}

type TrafficAlertPayload struct {
	VehicleID    string
	DelayMinutes float64
	Reason       string
}

type DeliveryDelayPayload struct {
	TripID       string
	DelayMinutes float64
	Reason       string
}

type FuelLowPayload struct {
	VehicleID string
	Percent   float64
}

type MaintenanceRequiredPayload struct {
	VehicleID string
	Reason    string
}

type NewLoadPostedPayload struct {
	LoadID string
}

type DriverRestRequiredPayload struct {
	VehicleID string
}

type InternalErrorPayload struct {
	Source  string
	Message string
}

func NewVehiclePositionUpdate(id string, ts time.Time, seq int, vehicleID string, lat, lng float64) Event {
	return Event{ID: id, Type: EventVehiclePositionUpdate, Timestamp: ts, SeqInTick: seq, Payload: VehiclePositionUpdatePayload{VehicleID: vehicleID, Lat: lat, Lng: lng}}
}

func NewLoadPostedEvent(id string, ts time.Time, seq int, p LoadPostedPayload) Event {
	return Event{ID: id, Type: EventLoadPosted, Timestamp: ts, SeqInTick: seq, Payload: p}
}

func NewLoadMatchedEvent(id string, ts time.Time, seq int, loadID, vehicleID string) Event {
	return Event{ID: id, Type: EventLoadMatched, Timestamp: ts, SeqInTick: seq, Payload: LoadMatchedPayload{LoadID: loadID, VehicleID: vehicleID}}
}

func NewTripStartedEvent(id string, ts time.Time, seq int, tripID, vehicleID, loadID string) Event {
	return Event{ID: id, Type: EventTripStarted, Timestamp: ts, SeqInTick: seq, Payload: TripStartedPayload{TripID: tripID, VehicleID: vehicleID, LoadID: loadID}}
}

func NewTripCompletedEvent(id string, ts time.Time, seq int, tripID string) Event {
	return Event{ID: id, Type: EventTripCompleted, Timestamp: ts, SeqInTick: seq, Payload: TripCompletedPayload{TripID: tripID}}
}

func NewTrafficAlertEvent(id string, ts time.Time, seq int, vehicleID string, delayMinutes float64, reason string) Event {
	return Event{ID: id, Type: EventTrafficAlert, Timestamp: ts, SeqInTick: seq, Payload: TrafficAlertPayload{VehicleID: vehicleID, DelayMinutes: delayMinutes, Reason: reason}}
}

func NewDeliveryDelayEvent(id string, ts time.Time, seq int, tripID string, delayMinutes float64, reason string) Event {
	return Event{ID: id, Type: EventDeliveryDelay, Timestamp: ts, SeqInTick: seq, Payload: DeliveryDelayPayload{TripID: tripID, DelayMinutes: delayMinutes, Reason: reason}}
}

func NewFuelLowEvent(id string, ts time.Time, seq int, vehicleID string, percent float64) Event {
	return Event{ID: id, Type: EventFuelLow, Timestamp: ts, SeqInTick: seq, Payload: FuelLowPayload{VehicleID: vehicleID, Percent: percent}}
}

func NewMaintenanceRequiredEvent(id string, ts time.Time, seq int, vehicleID, reason string) Event {
	return Event{ID: id, Type: EventMaintenanceRequired, Timestamp: ts, SeqInTick: seq, Payload: MaintenanceRequiredPayload{VehicleID: vehicleID, Reason: reason}}
}

func NewNewLoadPostedEvent(id string, ts time.Time, seq int, loadID string) Event {
	return Event{ID: id, Type: EventNewLoadPosted, Timestamp: ts, SeqInTick: seq, Payload: NewLoadPostedPayload{LoadID: loadID}}
}

func NewDriverRestRequiredEvent(id string, ts time.Time, seq int, vehicleID string) Event {
	return Event{ID: id, Type: EventDriverRestRequired, Timestamp: ts, SeqInTick: seq, Payload: DriverRestRequiredPayload{VehicleID: vehicleID}}
}

func NewInternalErrorEvent(id string, ts time.Time, seq int, source, message string) Event {
	return Event{ID: id, Type: EventInternalError, Timestamp: ts, SeqInTick: seq, Payload: InternalErrorPayload{Source: source, Message: message}}
}
