package api

import (
	"errors"
	"net/http"

	"github.com/lmaertin/pooldose-go/internal/monitor"
	"github.com/lmaertin/pooldose-go/internal/pooldose"
)

// deviceResponse is the body of GET /device.
type deviceResponse struct {
	DeviceID string                `json:"device_id"`
	Static   pooldose.StaticValues `json:"static"`
	Health   monitor.Health        `json:"health"`
}

// handleGetDevice returns the controller identity and its health. WiFi
// and access point keys are never served.
func (s *Server) handleGetDevice(w http.ResponseWriter, _ *http.Request) {
	static, err := s.device.StaticValues()
	if err != nil {
		if errors.Is(err, pooldose.ErrNotConnected) {
			writeServiceUnavailable(w, "device not connected")
			return
		}
		s.logger.Error("reading static values", "error", err)
		writeInternalError(w, "failed to read device identity")
		return
	}

	writeJSON(w, http.StatusOK, deviceResponse{
		DeviceID: s.values.DeviceID(),
		Static:   static.Redacted(),
		Health:   s.values.Health(),
	})
}
