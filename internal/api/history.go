package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-biometric/internal/audit"
	"github.com/nerrad567/gray-logic-biometric/internal/station"
)

// parseLimit reads ?limit=. Zero means the repository default.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// handleSaveCapture writes the last published frame as a PNG.
func (s *Server) handleSaveCapture(w http.ResponseWriter, r *http.Request) {
	img, err := s.station.SaveLast(r.Context())
	s.station.Audit(r.Context(), audit.SourceAPI, station.ActionSave, nil, err)
	if err != nil {
		writeStationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	if s.captureLog == nil {
		writeUnavailable(w, "capture log not configured")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	images, err := s.captureLog.ListSavedImages(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing saved images failed", "error", err)
		writeInternalError(w, "failed to list captures")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"captures": images,
		"count":    len(images),
	})
}

func (s *Server) handleListVerdicts(w http.ResponseWriter, r *http.Request) {
	if s.captureLog == nil {
		writeUnavailable(w, "capture log not configured")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	verdicts, err := s.captureLog.ListVerdicts(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing verdicts failed", "error", err)
		writeInternalError(w, "failed to list verdicts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verdicts": verdicts,
		"count":    len(verdicts),
	})
}

func (s *Server) handleListRecoveries(w http.ResponseWriter, r *http.Request) {
	if s.captureLog == nil {
		writeUnavailable(w, "capture log not configured")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	recoveries, err := s.captureLog.ListRecoveries(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing recoveries failed", "error", err)
		writeInternalError(w, "failed to list recoveries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recoveries": recoveries,
		"count":      len(recoveries),
	})
}

// handleListAudit returns operator commands, newest first.
// Supports ?action=, ?source=, ?limit= and ?offset=.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit log not configured")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	result, err := s.audit.List(r.Context(), audit.Filter{
		Action: r.URL.Query().Get("action"),
		Source: r.URL.Query().Get("source"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("listing audit log failed", "error", err)
		writeInternalError(w, "failed to list audit log")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
