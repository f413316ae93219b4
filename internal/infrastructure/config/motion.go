package config

import "time"

// MotionConfig holds the Motion engine's tick cadence and physical model.
type MotionConfig struct {
	// How often the Motion engine advances every active trip.
	TickPeriod time.Duration `mapstructure:"tick_period" validate:"required"`

	// Simulated travel speed in km/h.
	SpeedKmh float64 `mapstructure:"speed_kmh" validate:"required,gt=0"`

	// Fuel burn rate while carrying cargo, percent per 10km.
	FuelRateLoaded float64 `mapstructure:"fuel_rate_loaded" validate:"required,gt=0"`

	// Fuel burn rate while running empty, percent per 10km.
	FuelRateEmpty float64 `mapstructure:"fuel_rate_empty" validate:"required,gt=0"`

	// Emit a vehicle_position_update event every Nth tick per trip.
	PositionEventEvery int `mapstructure:"position_event_every" validate:"min=1"`
}

// ObserverConfig holds the Observer agent's cadence and thresholds.
type ObserverConfig struct {
	TickPeriod time.Duration `mapstructure:"tick_period" validate:"required"`

	// How long a vehicle may sit idle before an idle_timeout trigger fires.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"required"`

	// Trip progress fraction (0-1) at which a near_delivery trigger fires.
	NearDeliveryProgress float64 `mapstructure:"near_delivery_progress" validate:"required,gt=0,lte=1"`

	// Rate per km above which a newly posted load is high priority.
	HighPriorityRate float64 `mapstructure:"high_priority_rate" validate:"gte=0"`
}

// MatcherConfig holds the Matcher agent's cadence and targets.
type MatcherConfig struct {
	TickPeriod time.Duration `mapstructure:"tick_period" validate:"required"`

	// Candidates submitted to the advisor per cycle.
	TopK int `mapstructure:"top_k" validate:"required,min=1"`

	// Minimum profit margin for a fallback-approved pairing.
	ProfitMarginMin float64 `mapstructure:"profit_margin_min" validate:"gte=0"`

	// Minimum utilization for a fallback-approved pairing.
	UtilizationMin float64 `mapstructure:"utilization_min" validate:"gte=0,lte=1"`

	// Maximum pairs the rule-based fallback will approve per cycle.
	FallbackFanout int `mapstructure:"fallback_fanout" validate:"required,min=1"`

	// Cost model used to score candidates.
	PerKmCost       float64 `mapstructure:"per_km_cost" validate:"gte=0"`
	PerHourCost     float64 `mapstructure:"per_hour_cost" validate:"gte=0"`
	AssumedSpeedKmh float64 `mapstructure:"assumed_speed_kmh" validate:"gt=0"`
}

// AdapterConfig holds the Adapter agent's cadence and thresholds.
type AdapterConfig struct {
	TickPeriod time.Duration `mapstructure:"tick_period" validate:"required"`

	// Max extra distance (km) a follow-up load may add past the current
	// destination.
	DetourBudgetKm float64 `mapstructure:"detour_budget_km" validate:"gte=0"`

	// Follow-up candidates considered per disturbed trip.
	OpportunitiesTopM int `mapstructure:"opportunities_top_m" validate:"required,min=1"`

	// Accumulated delay (minutes) at or above which a follow-up load is
	// considered by the rule-based fallback.
	DelayFollowupMin float64 `mapstructure:"delay_followup_min" validate:"gte=0"`

	// Minimum profit margin a follow-up opportunity needs for the fallback
	// to choose it.
	FollowupMarginMin float64 `mapstructure:"followup_margin_min" validate:"gte=0"`
}
