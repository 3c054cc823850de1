package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-biometric/internal/health"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Sensor and capture control
		r.Get("/sensor", s.handleSensorStatus)
		r.Post("/capture/start", s.handleCaptureStart)
		r.Post("/capture/stop", s.handleCaptureStop)
		r.Put("/led", s.handleSetLED)
		r.Post("/beep", s.handleBeep)

		// Template matching
		r.Post("/verify", s.handleVerify)
		r.Post("/identify", s.handleIdentify)
		r.Post("/templates", s.handleEnroll)

		// Capture log
		r.Route("/captures", func(r chi.Router) {
			r.Get("/", s.handleListCaptures)
			r.Post("/", s.handleSaveCapture)
		})
		r.Get("/verdicts", s.handleListVerdicts)
		r.Get("/recoveries", s.handleListRecoveries)
		r.Get("/audit", s.handleListAudit)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the station health status. Unhealthy answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var status health.Status
	var reason string
	if s.health != nil {
		status, reason = s.health.Current()
	} else {
		status, reason = health.Evaluate(s.station.HealthSnapshot())
	}

	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":     "ok",
		"health":     status,
		"station_id": s.station.ID(),
		"version":    s.version,
	}
	if status == health.StatusUnhealthy {
		resp["status"] = "error"
	}
	if reason != "" {
		resp["reason"] = reason
	}
	writeJSON(w, code, resp)
}
