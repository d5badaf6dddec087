package handler

import (
	"net/http"

	"github.com/commutewise/console/internal/domain"
)

type feedbackPatch struct {
	Status domain.FeedbackStatus `json:"status"`
}

// ListFeedback handles GET /feedback. ?status= narrows to one triage state
// and ?q= matches the reporter or the message, case-insensitively.
func (s *Server) ListFeedback(w http.ResponseWriter, r *http.Request) {
	status, ok := queryString(w, r, "status")
	if !ok {
		return
	}
	q, ok := queryString(w, r, "q")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Feedback{"data": s.d.Feedback.Filter(status, q)})
}

// ReloadFeedback handles POST /feedback/reload.
func (s *Server) ReloadFeedback(w http.ResponseWriter, r *http.Request) {
	items, err := s.d.Feedback.Reload(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Feedback{"data": items})
}

// UpdateFeedback handles PATCH /feedback/{id}. The board applies the change
// at once and rolls it back if the store rejects it.
func (s *Server) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body feedbackPatch
	if !decodeJSON(w, r, &body, false) {
		return
	}
	if err := s.d.Feedback.UpdateStatus(r.Context(), id, body.Status); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFeedback handles DELETE /feedback/{id}. Deletion always goes through
// the confirmation guard, so this opens a prompt and answers 202.
func (s *Server) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	s.openDeletion(w, r, domain.KindFeedback, id, http.StatusAccepted)
}
