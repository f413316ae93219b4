package config

import "time"

// DaemonConfig holds the dispatch daemon's own process configuration:
// its HTTP listen address and the ambient process-lifecycle concerns
// (PID file, graceful shutdown) the teacher's daemon carries regardless
// of domain.
type DaemonConfig struct {
	// HTTP listen address (host:port) for the REST surface.
	Address string `mapstructure:"address" validate:"required"`

	// PID file location.
	PIDFile string `mapstructure:"pid_file"`

	// Graceful shutdown timeout: how long Stop() waits for in-flight
	// agent cycles to finish before the process exits anyway.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`

	// Home depot vehicles/loads are scattered around on Initialize.
	HomeDepotLat float64 `mapstructure:"home_depot_lat"`
	HomeDepotLng float64 `mapstructure:"home_depot_lng"`

	// Scatter radius (km) used by Initialize.
	ScatterRadiusKm float64 `mapstructure:"scatter_radius_km" validate:"gte=0"`
}

// MetricsConfig controls whether the Prometheus registry is initialized
// and where it is served from.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
