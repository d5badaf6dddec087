package handler

import (
	"net/http"

	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/service"
)

// DashboardResponse is the overview page payload.
type DashboardResponse struct {
	Counts         domain.Counts     `json:"counts"`
	RecentFeedback []domain.Feedback `json:"recent_feedback"`
}

// GetDashboard handles GET /dashboard.
func (s *Server) GetDashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := s.d.Dashboard.Counts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recent, err := s.d.RecentFeedback.Recent(r.Context(), service.RecentFeedbackLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recent == nil {
		recent = []domain.Feedback{}
	}
	writeJSON(w, http.StatusOK, DashboardResponse{Counts: counts, RecentFeedback: recent})
}

// ListAuditLog handles GET /audit-log?limit=.
func (s *Server) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	n := service.DefaultActivityLimit
	if limit != nil {
		n = *limit
	}
	recs, err := s.d.Dashboard.Activity(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, map[string][]domain.AuditRecord{"data": recs})
}
