// Package httpapi exposes the Engine's command surface as JSON over HTTP,
// grounded on the shipping service's handler/response split: one small
// envelope helper shared by every handler instead of each handler rolling
// its own encoding.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

// envelope is the uniform response shape every endpoint returns.
type envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

// writeError maps a domain error's Kind to an HTTP status the way §7's
// propagation policy describes: NotFound surfaces as 404, Conflict as
// 409, and so on. Anything that isn't one of the named domain error
// types falls back to 500.
func writeError(w http.ResponseWriter, err error) {
	kind := kindOf(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(kind))
	_ = json.NewEncoder(w).Encode(envelope{Error: &apiError{Kind: string(kind), Message: err.Error()}})
}

func kindOf(err error) shared.ErrorKind {
	switch err.(type) {
	case *shared.NotFoundError:
		return shared.KindNotFound
	case *shared.ConflictError:
		return shared.KindConflict
	case *shared.TimeoutError:
		return shared.KindTimeout
	case *shared.UnavailableError:
		return shared.KindUnavailable
	case *shared.MalformedError, *shared.ValidationError:
		return shared.KindMalformed
	default:
		return shared.KindInvariant
	}
}

func statusForKind(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindTimeout:
		return http.StatusGatewayTimeout
	case shared.KindUnavailable:
		return http.StatusServiceUnavailable
	case shared.KindMalformed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(envelope{Error: &apiError{Kind: string(shared.KindMalformed), Message: message}})
}
