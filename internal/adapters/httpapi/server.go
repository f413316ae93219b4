package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dispatchcore/fleetengine/internal/application/engine"
)

// Server is the REST boundary in front of an Engine, grounded on the
// shipping service's transport/http server shape: a thin net/http.Server
// wrapping a mux router, Start/Stop as the only lifecycle surface a
// daemon main.go needs.
type Server struct {
	httpServer *http.Server
	handler    *Handler
}

// NewServer builds a Server listening on addr.
func NewServer(addr string, e *engine.Engine) *Server {
	h := NewHandler(e)

	router := mux.NewRouter()
	setupRoutes(router, h)

	return &Server{
		handler: h,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start runs the HTTP server; it blocks until Stop closes the listener,
// returning nil in the normal shutdown case.
func (s *Server) Start() error {
	fmt.Printf("httpapi: listening on %s\n", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// up to ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println("httpapi: shutting down")
	return s.httpServer.Shutdown(ctx)
}
