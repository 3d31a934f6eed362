package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// History query limits.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// handleGetHistory returns the newest readings of one value.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "history not enabled")
		return
	}

	name := chi.URLParam(r, "name")
	if _, ok := s.lookup(name); !ok {
		writeNotFound(w, "unknown value: "+name)
		return
	}

	limit, ok := parseHistoryLimit(w, r)
	if !ok {
		return
	}

	readings, err := s.history.GetHistory(r.Context(), s.values.DeviceID(), name, limit)
	if err != nil {
		s.logger.Error("reading value history", "name", name, "error", err)
		writeInternalError(w, "failed to read history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":     name,
		"readings": readings,
		"count":    len(readings),
	})
}

// handleListWrites returns the newest audited write attempts.
func (s *Server) handleListWrites(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "history not enabled")
		return
	}

	limit, ok := parseHistoryLimit(w, r)
	if !ok {
		return
	}

	writes, err := s.history.ListWrites(r.Context(), s.values.DeviceID(), limit)
	if err != nil {
		s.logger.Error("reading write audit", "error", err)
		writeInternalError(w, "failed to read writes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"writes": writes,
		"count":  len(writes),
	})
}

// parseHistoryLimit reads the limit query parameter. It writes a 400 and
// returns false when the value is not a positive integer.
func parseHistoryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		writeBadRequest(w, "limit must be a positive integer")
		return 0, false
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, true
}
