package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// HandleListActiveSessions lists currently active sessions
func (s *RESTServer) HandleListActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListActiveSessions(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// HandleSessionStats returns session activity aggregates
func (s *RESTServer) HandleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetSessionStats(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, stats)
}

// HandleDisconnectSession ends an active session and revokes network
// access for its device. Disconnecting an already-ended session is not
// an error.
func (s *RESTServer) HandleDisconnectSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	disconnected, err := s.portal.DisconnectSession(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":    id,
		"disconnected": disconnected,
	})
}

// HandleListNetworkDevices lists devices currently authorized on the
// network backend
func (s *RESTServer) HandleListNetworkDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.orch.Registry().List()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"total":   len(devices),
		"backend": s.orch.Backend(),
	})
}

// HandleNetworkStatus reports which backend is active
func (s *RESTServer) HandleNetworkStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"backend":           s.orch.Backend(),
		"authorizedDevices": s.orch.Registry().Count(),
	})
}
