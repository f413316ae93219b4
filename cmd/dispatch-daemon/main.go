// Command dispatch-daemon runs the fleet dispatch engine as a long-lived
// process: it loads configuration, wires the Route Cache, advisor client,
// and Dispatch Loop into an Engine, serves the REST surface over HTTP,
// and shuts everything down cleanly on SIGINT/SIGTERM.
//
// Grounded on the teacher's cmd/spacetraders-daemon main.go for the
// overall shape (config -> PID file -> wire dependencies -> run ->
// graceful shutdown) and on its cli package for the cobra command
// construction, in place of the teacher's bare flag package.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dispatchcore/fleetengine/internal/adapters/advisorclient"
	"github.com/dispatchcore/fleetengine/internal/adapters/httpapi"
	"github.com/dispatchcore/fleetengine/internal/adapters/routingclient"
	"github.com/dispatchcore/fleetengine/internal/application/adapter"
	"github.com/dispatchcore/fleetengine/internal/application/engine"
	"github.com/dispatchcore/fleetengine/internal/application/matcher"
	"github.com/dispatchcore/fleetengine/internal/application/motion"
	"github.com/dispatchcore/fleetengine/internal/application/observer"
	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/infrastructure/config"
	"github.com/dispatchcore/fleetengine/internal/infrastructure/metrics"
	"github.com/dispatchcore/fleetengine/internal/infrastructure/pidfile"
)

var configPath string

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dispatch-daemon",
		Short: "Adaptive fleet dispatch engine daemon",
		Long: `dispatch-daemon runs the Observer/Matcher/Motion/Adapter agent loop
against an in-memory fleet state store and serves its REST surface over HTTP.`,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: search ./, ./configs, /etc/fleetengine)")
	root.AddCommand(newServeCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dispatch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustLoadConfig(configPath)
			return run(cfg)
		},
	}
}

func run(cfg *config.Config) error {
	fmt.Println("fleet dispatch engine")
	fmt.Println("======================")

	fmt.Printf("acquiring PID file lock: %s\n", cfg.Daemon.PIDFile)
	pf := pidfile.New(cfg.Daemon.PIDFile)
	if err := pf.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire PID file lock: %w", err)
	}
	defer func() {
		if err := pf.Release(); err != nil {
			log.Printf("warning: failed to release PID file: %v", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		collector := metrics.NewCollector()
		if err := collector.Register(); err != nil {
			return fmt.Errorf("failed to register metrics collector: %w", err)
		}
		metrics.SetGlobal(collector)
		fmt.Println("metrics registry initialized")
	}

	clock := shared.NewRealClock()

	routeClient := routingclient.NewHTTPClient(cfg.Routing.URL, cfg.Routing.Timeout, clock)
	routeCache, err := routingclient.NewCache(routeClient, cfg.Routing.CacheSize, cfg.Routing.CacheTTL, clock)
	if err != nil {
		return fmt.Errorf("failed to build route cache: %w", err)
	}
	fmt.Printf("routing client wired: %s (cache size %d, ttl %s)\n", cfg.Routing.URL, cfg.Routing.CacheSize, cfg.Routing.CacheTTL)

	advisorC := advisorclient.NewHTTPClient(cfg.Advisor.URL, cfg.Advisor.Timeout, clock)
	fmt.Println("advisor client wired")

	eng := engine.New(routeCache, advisorC, clock, engineConfig(cfg), rand.New(rand.NewSource(time.Now().UnixNano())))
	eng.Start(context.Background())
	defer eng.Stop()
	fmt.Println("dispatch loop started")

	server := httpapi.NewServer(cfg.Daemon.Address, eng)
	serverErrs := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrs <- err
		}
	}()
	fmt.Printf("REST surface listening on %s\n", cfg.Daemon.Address)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Address, mux); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
		fmt.Printf("metrics endpoint listening on %s\n", cfg.Metrics.Address)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		fmt.Printf("received %s, shutting down\n", s)
	case err := <-serverErrs:
		log.Printf("REST server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Daemon.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("warning: REST server shutdown: %v", err)
	}
	eng.Stop()
	fmt.Println("shutdown complete")
	return nil
}

// engineConfig maps the loaded config into the Engine's wiring shape.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		MotionInterval:   cfg.Motion.TickPeriod,
		ObserverInterval: cfg.Observer.TickPeriod,
		MatcherInterval:  cfg.Matcher.TickPeriod,
		AdapterInterval:  cfg.Adapter.TickPeriod,

		Motion: motion.Config{
			TickSpeedKmh:          cfg.Motion.SpeedKmh,
			FuelRateLoadedPer10km: cfg.Motion.FuelRateLoaded,
			FuelRateEmptyPer10km:  cfg.Motion.FuelRateEmpty,
			PositionEventEvery:    cfg.Motion.PositionEventEvery,
		},
		Observer: observer.Config{
			IdleTimeout:          cfg.Observer.IdleTimeout,
			NearDeliveryProgress: cfg.Observer.NearDeliveryProgress,
			HighPriorityRate:     cfg.Observer.HighPriorityRate,
		},
		Matcher: matcher.Config{
			TopK:            cfg.Matcher.TopK,
			ProfitMarginMin: cfg.Matcher.ProfitMarginMin,
			UtilizationMin:  cfg.Matcher.UtilizationMin,
			FallbackFanout:  cfg.Matcher.FallbackFanout,
			RouteTimeout:    cfg.Routing.Timeout,
			Cost: matcher.CostCoefficients{
				PerKm:           cfg.Matcher.PerKmCost,
				PerHour:         cfg.Matcher.PerHourCost,
				AssumedSpeedKmh: cfg.Matcher.AssumedSpeedKmh,
			},
		},
		Adapter: adapter.Config{
			DetourBudgetKm:    cfg.Adapter.DetourBudgetKm,
			OpportunitiesTopM: cfg.Adapter.OpportunitiesTopM,
			DelayFollowupMin:  cfg.Adapter.DelayFollowupMin,
			FollowupMarginMin: cfg.Adapter.FollowupMarginMin,
		},

		EventsRingSize:  cfg.Events.RingSize,
		HomeDepot:       geo.Location{Lat: cfg.Daemon.HomeDepotLat, Lng: cfg.Daemon.HomeDepotLng, Name: "home-depot"},
		ScatterRadiusKm: cfg.Daemon.ScatterRadiusKm,
	}
}
