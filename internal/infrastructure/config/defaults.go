package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Motion defaults
	if cfg.Motion.TickPeriod == 0 {
		cfg.Motion.TickPeriod = 3 * time.Second
	}
	if cfg.Motion.SpeedKmh == 0 {
		cfg.Motion.SpeedKmh = 60
	}
	if cfg.Motion.FuelRateLoaded == 0 {
		cfg.Motion.FuelRateLoaded = 0.4
	}
	if cfg.Motion.FuelRateEmpty == 0 {
		cfg.Motion.FuelRateEmpty = 0.3
	}
	if cfg.Motion.PositionEventEvery == 0 {
		cfg.Motion.PositionEventEvery = 5
	}

	// Observer defaults
	if cfg.Observer.TickPeriod == 0 {
		cfg.Observer.TickPeriod = 10 * time.Second
	}
	if cfg.Observer.IdleTimeout == 0 {
		cfg.Observer.IdleTimeout = 30 * time.Minute
	}
	if cfg.Observer.NearDeliveryProgress == 0 {
		cfg.Observer.NearDeliveryProgress = 0.9
	}

	// Matcher defaults
	if cfg.Matcher.TickPeriod == 0 {
		cfg.Matcher.TickPeriod = 30 * time.Second
	}
	if cfg.Matcher.TopK == 0 {
		cfg.Matcher.TopK = 10
	}
	if cfg.Matcher.ProfitMarginMin == 0 {
		cfg.Matcher.ProfitMarginMin = 0.12
	}
	if cfg.Matcher.UtilizationMin == 0 {
		cfg.Matcher.UtilizationMin = 0.85
	}
	if cfg.Matcher.FallbackFanout == 0 {
		cfg.Matcher.FallbackFanout = 3
	}
	if cfg.Matcher.PerKmCost == 0 {
		cfg.Matcher.PerKmCost = 0.8
	}
	if cfg.Matcher.PerHourCost == 0 {
		cfg.Matcher.PerHourCost = 25
	}
	if cfg.Matcher.AssumedSpeedKmh == 0 {
		cfg.Matcher.AssumedSpeedKmh = 60
	}

	// Adapter defaults
	if cfg.Adapter.TickPeriod == 0 {
		cfg.Adapter.TickPeriod = 30 * time.Second
	}
	if cfg.Adapter.DetourBudgetKm == 0 {
		cfg.Adapter.DetourBudgetKm = 100
	}
	if cfg.Adapter.OpportunitiesTopM == 0 {
		cfg.Adapter.OpportunitiesTopM = 5
	}
	if cfg.Adapter.DelayFollowupMin == 0 {
		cfg.Adapter.DelayFollowupMin = 45
	}
	if cfg.Adapter.FollowupMarginMin == 0 {
		cfg.Adapter.FollowupMarginMin = 0.15
	}

	// Routing defaults
	if cfg.Routing.URL == "" {
		cfg.Routing.URL = "http://localhost:8081/route"
	}
	if cfg.Routing.Timeout == 0 {
		cfg.Routing.Timeout = 15 * time.Second
	}
	if cfg.Routing.CacheSize == 0 {
		cfg.Routing.CacheSize = 1024
	}
	if cfg.Routing.CacheTTL == 0 {
		cfg.Routing.CacheTTL = time.Hour
	}

	// Advisor defaults
	if cfg.Advisor.Timeout == 0 {
		cfg.Advisor.Timeout = 20 * time.Second
	}

	// Events defaults
	if cfg.Events.RingSize == 0 {
		cfg.Events.RingSize = 500
	}

	// Daemon defaults
	if cfg.Daemon.Address == "" {
		cfg.Daemon.Address = "localhost:8080"
	}
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = "/tmp/fleetengine-daemon.pid"
	}
	if cfg.Daemon.ShutdownTimeout == 0 {
		cfg.Daemon.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Daemon.ScatterRadiusKm == 0 {
		cfg.Daemon.ScatterRadiusKm = 50
	}

	// Metrics defaults
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "localhost:9090"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.Rotation.MaxSize == 0 {
		cfg.Logging.Rotation.MaxSize = 100 // MB
	}
	if cfg.Logging.Rotation.MaxBackups == 0 {
		cfg.Logging.Rotation.MaxBackups = 3
	}
	if cfg.Logging.Rotation.MaxAge == 0 {
		cfg.Logging.Rotation.MaxAge = 28 // days
	}
}
