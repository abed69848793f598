// Package api is the local HTTP surface of the sync daemon. UI processes on
// the same machine read snapshots and issue cart actions over plain JSON,
// and subscribe to /ws/events for push-style repaint hints instead of
// polling.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/streamcart/cartsync/pkg/agent"
	"github.com/streamcart/cartsync/pkg/auth"
	"github.com/streamcart/cartsync/pkg/log"
	"github.com/streamcart/cartsync/pkg/restapi"
	"github.com/streamcart/cartsync/pkg/state"
)

type Server struct {
	agent  *agent.Agent
	logger *log.Logger
}

func NewServer(a *agent.Agent) *Server {
	return &Server{
		agent:  a,
		logger: log.ForComponent("api"),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// writeAgentError maps the error taxonomy of the agent and backend client
// onto HTTP statuses for local consumers.
func (s *Server) writeAgentError(w http.ResponseWriter, err error) {
	var backendErr *restapi.BackendError
	switch {
	case errors.Is(err, auth.ErrNoCredential):
		s.writeError(w, http.StatusUnauthorized, "Not logged in", "No credential present; log in through the main application")
	case errors.Is(err, restapi.ErrUnauthorized):
		s.writeError(w, http.StatusUnauthorized, "Credential rejected", "The backend rejected the stored credential")
	case errors.Is(err, agent.ErrNotWatching):
		s.writeError(w, http.StatusNotFound, "Livestream not watched", "Watch the livestream before operating on its state")
	case errors.Is(err, state.ErrUnknownItem):
		s.writeError(w, http.StatusNotFound, "Unknown cart item", err.Error())
	case errors.As(err, &backendErr):
		s.writeError(w, http.StatusBadGateway, "Backend error", backendErr.Message)
	default:
		s.writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
