package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dispatchcore/fleetengine/internal/application/engine"
)

// Handler adapts the Engine's command surface to net/http. One method per
// row of spec.md's endpoint table; no handler holds state of its own.
type Handler struct {
	engine *engine.Engine
}

// NewHandler wraps an Engine for HTTP dispatch.
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

type initializeRequest struct {
	NumVehicles int `json:"num_vehicles"`
	NumLoads    int `json:"num_loads"`
}

// Initialize handles POST /initialize.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	result, err := h.engine.Initialize(req.NumVehicles, req.NumLoads)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// State handles GET /state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.State())
}

// Metrics handles GET /metrics.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Metrics())
}

// Vehicles handles GET /vehicles?status=.
func (h *Handler) Vehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Vehicles(r.URL.Query().Get("status")))
}

// Loads handles GET /loads?status=.
func (h *Handler) Loads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Loads(r.URL.Query().Get("status")))
}

// Events handles GET /events?limit=&event_type=.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, h.engine.Events(q.Get("event_type"), limit))
}

// Cycle handles POST /cycle.
func (h *Handler) Cycle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Cycle(r.Context()))
}

// MatchLoads handles POST /match-loads.
func (h *Handler) MatchLoads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.MatchLoads(r.Context()))
}

// ManageRoutes handles POST /manage-routes.
func (h *Handler) ManageRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ManageRoutes(r.Context()))
}

// SimulateMovement handles POST /simulate-movement.
func (h *Handler) SimulateMovement(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.SimulateMovement(r.Context()))
}

// Health handles GET /health, grounded on the teacher's liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
