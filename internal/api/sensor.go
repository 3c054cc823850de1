package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-biometric/internal/audit"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor"
	"github.com/nerrad567/gray-logic-biometric/internal/station"
)

// LEDRequest is the body of PUT /led.
type LEDRequest struct {
	Color string `json:"color"`
}

// handleSensorStatus returns the sensor state, capture counters and the
// last verdict.
func (s *Server) handleSensorStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.station.Status())
}

// handleCaptureStart initialises the sensor if needed and starts capture.
func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	err := s.station.StartCapture()
	s.station.Audit(r.Context(), audit.SourceAPI, station.ActionStart, nil, err)
	if err != nil {
		s.logger.Warn("capture start failed", "error", err)
		writeStationError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "started",
		"capture": s.station.Status().Capture,
	})
}

// handleCaptureStop stops capture and waits for the worker to exit.
func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	err := s.station.StopCapture(r.Context())
	s.station.Audit(r.Context(), audit.SourceAPI, station.ActionStop, nil, err)
	if err != nil {
		writeStationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "stopped",
		"capture": s.station.Status().Capture,
	})
}

func (s *Server) handleSetLED(w http.ResponseWriter, r *http.Request) {
	var req LEDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	color, err := sensor.ParseLEDColor(req.Color)
	if err != nil {
		writeStationError(w, err)
		return
	}
	err = s.station.SetLED(r.Context(), color)
	s.station.Audit(r.Context(), audit.SourceAPI, station.ActionLED, map[string]any{"color": color.String()}, err)
	if err != nil {
		s.logger.Warn("LED update failed", "color", color.String(), "error", err)
		writeStationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"color": color.String()})
}

func (s *Server) handleBeep(w http.ResponseWriter, r *http.Request) {
	err := s.station.Beep(r.Context())
	s.station.Audit(r.Context(), audit.SourceAPI, station.ActionBeep, nil, err)
	if err != nil {
		writeStationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
