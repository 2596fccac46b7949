package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/shikiri/internal/apperr"
	"github.com/hyperjump/shikiri/internal/models"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	credential := r.Header.Get(apiKeyHeader)

	response, err := s.service.Handle(r.Context(), credential, query.Query)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.loader.DiskStats()
	if err != nil {
		s.logger.Error("status: disk stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenants":          stats.Tenants,
		"documents":        stats.Documents,
		"disk_usage_bytes": stats.DiskBytes,
		"credentials":      s.resolver.Size(),
	})
}

func (s *Server) handleCredentialsReload(w http.ResponseWriter, r *http.Request) {
	if err := s.resolver.Reload(r.Context()); err != nil {
		s.logger.Error("credential reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "reloaded",
		"credentials": s.resolver.Size(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondAppError maps the error taxonomy to HTTP statuses. Tenant-boundary
// failures (forbidden tenant, unavailable partition, internal violations)
// all collapse to the same generic 500 so error responses carry no signal
// about what exists on the other side of the boundary.
func (s *Server) respondAppError(w http.ResponseWriter, err error) {
	switch apperr.ErrorCode(err) {
	case apperr.EUnauthorized:
		s.respondError(w, http.StatusUnauthorized, apperr.ErrorMessage(err))
	case apperr.EInvalid:
		s.respondError(w, http.StatusBadRequest, apperr.ErrorMessage(err))
	default:
		s.logger.Error("request failed", zap.String("code", apperr.ErrorCode(err)), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
