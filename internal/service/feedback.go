package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/repo"
)

// RecentFeedbackLimit is the number of reports shown on the dashboard.
const RecentFeedbackLimit = 5

// FeedbackService is the remote side of the feedback triage board.
type FeedbackService struct {
	feedback repo.FeedbackRepo
}

// NewFeedbackService constructs a FeedbackService backed by the provided repo.
func NewFeedbackService(feedback repo.FeedbackRepo) *FeedbackService {
	return &FeedbackService{feedback: feedback}
}

// List returns every report, newest first.
func (s *FeedbackService) List(ctx context.Context) ([]domain.Feedback, error) {
	items, err := s.feedback.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("service.FeedbackService.List: %w", err)
	}
	return items, nil
}

// Recent returns the newest limit reports.
func (s *FeedbackService) Recent(ctx context.Context, limit int) ([]domain.Feedback, error) {
	if limit <= 0 {
		limit = RecentFeedbackLimit
	}
	items, err := s.feedback.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service.FeedbackService.Recent: %w", err)
	}
	return items, nil
}

// UpdateStatus sets the triage status of one report.
// Returns domain.ErrValidation for an unknown status.
func (s *FeedbackService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error {
	if !status.Valid() {
		return fmt.Errorf("service.FeedbackService.UpdateStatus: %w: unknown status %q", domain.ErrValidation, status)
	}
	if err := s.feedback.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("service.FeedbackService.UpdateStatus: %w", err)
	}
	return nil
}

// Delete removes one report.
func (s *FeedbackService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.feedback.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.FeedbackService.Delete: %w", err)
	}
	return nil
}
