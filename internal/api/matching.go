package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-biometric/internal/audit"
)

// auditActionEnroll is the audit log action for template enrolment.
const auditActionEnroll = "enroll"

// Templates travel as base64 strings; encoding/json decodes them into []byte.

// VerifyRequest is the body of POST /verify.
type VerifyRequest struct {
	TemplateA []byte `json:"template_a"`
	TemplateB []byte `json:"template_b"`
}

// IdentifyRequest is the body of POST /identify.
type IdentifyRequest struct {
	Template []byte `json:"template"`
}

// EnrollRequest is the body of POST /templates.
type EnrollRequest struct {
	ID       *int   `json:"id"`
	Template []byte `json:"template"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body (templates must be base64)")
		return
	}
	matched, err := s.station.Verify(req.TemplateA, req.TemplateB)
	if err != nil {
		writeStationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"matched": matched})
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body (template must be base64)")
		return
	}
	result, err := s.station.Identify(req.Template)
	if err != nil {
		writeStationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body (template must be base64)")
		return
	}
	if req.ID == nil || *req.ID < 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "id must be a non-negative integer")
		return
	}
	err := s.station.Enroll(*req.ID, req.Template)
	s.station.Audit(r.Context(), audit.SourceAPI, auditActionEnroll, map[string]any{"id": *req.ID}, err)
	if err != nil {
		writeStationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"id": *req.ID})
}
