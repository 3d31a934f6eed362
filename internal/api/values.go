package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lmaertin/pooldose-go/internal/history"
	"github.com/lmaertin/pooldose-go/internal/mapping"
	"github.com/lmaertin/pooldose-go/internal/values"
)

// valueResponse is one value with its mapping details.
type valueResponse struct {
	Name     string         `json:"name"`
	Kind     mapping.Kind   `json:"kind"`
	Writable bool           `json:"writable"`
	Value    values.Decoded `json:"value"`
	Options  []string       `json:"options,omitempty"`
}

// setValueRequest is the request body for PUT /values/{name}.
type setValueRequest struct {
	Value json.RawMessage `json:"value"`
}

// handleListValues returns the latest snapshot grouped by kind. The
// optional kind query parameter narrows it to one kind.
func (s *Server) handleListValues(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.values.Snapshot()
	if !ok {
		writeServiceUnavailable(w, "no snapshot available")
		return
	}

	kind := mapping.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		writeJSON(w, http.StatusOK, snapshot)
		return
	}
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown kind: "+string(kind))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		string(kind): snapshot.Kind(kind),
	})
}

// handleGetValue returns one value and its mapping entry.
func (s *Server) handleGetValue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	entry, ok := s.lookup(name)
	if !ok {
		writeNotFound(w, "unknown value: "+name)
		return
	}

	d, ok := s.values.Value(name)
	if !ok {
		writeNotFound(w, "value not available: "+name)
		return
	}

	resp := valueResponse{
		Name:     name,
		Kind:     entry.Kind,
		Writable: entry.Kind.Writable(),
		Value:    d,
	}
	if entry.Kind == mapping.KindSelect {
		resp.Options = values.SelectOptions(entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSetValue validates and dispatches a write against the latest
// snapshot.
func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req setValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Value) == 0 {
		writeBadRequest(w, "value is required")
		return
	}

	var value any
	if err := json.Unmarshal(req.Value, &value); err != nil {
		writeBadRequest(w, "invalid value")
		return
	}

	if err := s.values.Write(r.Context(), name, value, history.SourceAPI); err != nil {
		s.logger.Info("value write failed",
			"name", name,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeWriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":   name,
		"status": "accepted",
	})
}

// handleListTypes returns the logical names of the mapping grouped by kind.
func (s *Server) handleListTypes(w http.ResponseWriter, _ *http.Request) {
	if s.device.Mapping() == nil {
		writeServiceUnavailable(w, "device not connected")
		return
	}
	writeJSON(w, http.StatusOK, s.device.AvailableTypes())
}

// lookup returns the mapping entry of a logical name.
func (s *Server) lookup(name string) (mapping.Entry, bool) {
	table := s.device.Mapping()
	if table == nil {
		return mapping.Entry{}, false
	}
	return table.Lookup(name)
}
