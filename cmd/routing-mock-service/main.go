// Command routing-mock-service is a standalone HTTP server implementing
// the external routing contract from spec.md §6: given a start/end
// lat/lng pair, return a polyline in [lng, lat] order plus total distance
// and duration. It stands in for the real OR-Tools/routing-engine style
// service the production Route Cache calls, for local development (the
// BDD scenarios use an in-process router instead).
//
// Grounded on the teacher's own mock routing client (internal/adapters/
// routing.NewMockRoutingClient in the original source) generalized from
// an in-process fake into a real, separately deployable HTTP process, the
// way this engine's routing.Client is itself a network boundary rather
// than an in-process OR-Tools call.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"

	"github.com/dispatchcore/fleetengine/internal/domain/geo"
)

type routeRequest struct {
	Start [2]float64 `json:"start"`
	End   [2]float64 `json:"end"`
}

type routeResponse struct {
	Polyline  [][2]float64 `json:"polyline"`
	DistanceM float64      `json:"distance_m"`
	DurationS float64      `json:"duration_s"`
}

// averageSpeedKmh is the assumed road speed used to derive a duration
// from distance; real routing services would return this directly.
const averageSpeedKmh = 55.0

func main() {
	addr := flag.String("addr", "localhost:8081", "listen address")
	jitter := flag.Float64("jitter", 0.08, "fractional distance jitter applied to simulate real-road detours (0 disables)")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/route", handleRoute(*jitter))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	fmt.Printf("routing-mock-service: listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("routing-mock-service: %v", err)
	}
}

func handleRoute(jitter float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req routeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed body", http.StatusBadRequest)
			return
		}

		start := geo.Location{Lat: req.Start[0], Lng: req.Start[1]}
		end := geo.Location{Lat: req.End[0], Lng: req.End[1]}
		poly := geo.SyntheticPolyline(start, end)

		distanceKm := poly.TotalDistanceKm()
		if jitter > 0 {
			distanceKm *= 1 + (rand.Float64()*2-1)*jitter
		}
		durationS := distanceKm / averageSpeedKmh * 3600

		pairs := make([][2]float64, len(poly.Points))
		for i, p := range poly.Points {
			pairs[i] = [2]float64{p.Lng, p.Lat}
		}

		resp := routeResponse{
			Polyline:  pairs,
			DistanceM: distanceKm * 1000,
			DurationS: durationS,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
