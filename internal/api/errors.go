package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor"
	"github.com/nerrad567/gray-logic-biometric/internal/station"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "unavailable"
	ErrCodeSensor      = "sensor_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnavailable writes a 503 error response.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeStationError maps station, sensor and capture errors to responses.
func writeStationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sensor.ErrInvalidColor),
		errors.Is(err, sensor.ErrEnroll),
		errors.Is(err, station.ErrInvalidCommand),
		errors.Is(err, station.ErrUnknownCommand):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, station.ErrNoFrame):
		writeNotFound(w, err.Error())
	case errors.Is(err, capture.ErrAlreadyRunning),
		errors.Is(err, sensor.ErrNotReady),
		errors.Is(err, station.ErrSnapshotsDisabled):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, capture.ErrSessionUnavailable),
		errors.Is(err, sensor.ErrSDKInit),
		errors.Is(err, sensor.ErrOpenDevice),
		errors.Is(err, sensor.ErrDimensions),
		errors.Is(err, sensor.ErrTemplateDB):
		writeUnavailable(w, err.Error())
	case errors.Is(err, sensor.ErrLED),
		errors.Is(err, sensor.ErrParameter),
		errors.Is(err, sensor.ErrDriverPanic):
		writeError(w, http.StatusBadGateway, ErrCodeSensor, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
