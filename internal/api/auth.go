package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lmaertin/pooldose-go/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin authenticates an account and returns an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeServiceUnavailable(w, "authentication not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("login failed",
				"username", req.Username,
				"remote_addr", r.RemoteAddr,
			)
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login error", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	s.logger.Info("login succeeded", "username", req.Username)
	writeJSON(w, http.StatusOK, token)
}
