package httpapi

import "github.com/gorilla/mux"

// setupRoutes wires the Handler's methods onto spec.md §6's endpoint
// table, one route per row.
func setupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/health", h.Health).Methods("GET")

	router.HandleFunc("/initialize", h.Initialize).Methods("POST")
	router.HandleFunc("/state", h.State).Methods("GET")
	router.HandleFunc("/metrics", h.Metrics).Methods("GET")
	router.HandleFunc("/vehicles", h.Vehicles).Methods("GET")
	router.HandleFunc("/loads", h.Loads).Methods("GET")
	router.HandleFunc("/events", h.Events).Methods("GET")
	router.HandleFunc("/cycle", h.Cycle).Methods("POST")
	router.HandleFunc("/match-loads", h.MatchLoads).Methods("POST")
	router.HandleFunc("/manage-routes", h.ManageRoutes).Methods("POST")
	router.HandleFunc("/simulate-movement", h.SimulateMovement).Methods("POST")
}
