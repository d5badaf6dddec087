package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
)

type deletionRequest struct {
	Kind domain.EntityKind `json:"kind"`
	ID   uuid.UUID         `json:"id"`
}

// GetDeletion handles GET /deletions. It reports the pending confirmation
// with its countdown, or 204 when none is open.
func (s *Server) GetDeletion(w http.ResponseWriter, _ *http.Request) {
	p, ok := s.d.Deletions.Pending()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RequestDeletion handles POST /deletions.
func (s *Server) RequestDeletion(w http.ResponseWriter, r *http.Request) {
	var body deletionRequest
	if !decodeJSON(w, r, &body, false) {
		return
	}
	s.openDeletion(w, r, body.Kind, body.ID, http.StatusCreated)
}

func (s *Server) openDeletion(w http.ResponseWriter, r *http.Request, kind domain.EntityKind, id uuid.UUID, status int) {
	target, message, err := s.d.Describer.Describe(r.Context(), kind, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.d.Deletions.Request(target, message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, p)
}

// ConfirmDeletion handles POST /deletions/confirm.
func (s *Server) ConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	target, err := s.d.Deletions.Confirm(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": target})
}

// CancelDeletion handles POST /deletions/cancel.
func (s *Server) CancelDeletion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.d.Deletions.Cancel()})
}
