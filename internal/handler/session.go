package handler

import (
	"net/http"
)

type activityRequest struct {
	Event string `json:"event"`
}

// RecordActivity handles POST /session/activity. Unrecognized events are
// accepted but do not reset the inactivity timer.
func (s *Server) RecordActivity(w http.ResponseWriter, r *http.Request) {
	var body activityRequest
	if !decodeJSON(w, r, &body, false) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": s.d.Session.Touch(body.Event)})
}

// ResumeSession handles POST /session/resume, unlocking the console for the
// authenticated operator.
func (s *Server) ResumeSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.d.Session.Resume(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}
