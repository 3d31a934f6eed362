package api

import (
	"net/http"
)

// handleReboot asks the controller to restart. The device drops off the
// network while it boots, so polls fail until it is back.
func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	if err := s.device.Reboot(r.Context()); err != nil {
		s.logger.Error("reboot failed",
			"device_id", s.values.DeviceID(),
			"error", err,
		)
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "reboot failed: "+err.Error())
		return
	}

	s.logger.Warn("device reboot requested",
		"device_id", s.values.DeviceID(),
		"username", principal.Username,
	)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "rebooting",
		"device_id": s.values.DeviceID(),
	})
}
