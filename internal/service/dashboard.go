package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/repo"
)

// DefaultActivityLimit is the number of admin log entries returned when the
// caller does not ask for a specific amount.
const DefaultActivityLimit = 50

// DashboardService serves the count-only overview reads and the admin
// activity log.
type DashboardService struct {
	routes   repo.RouteRepo
	stops    repo.StopRepo
	feedback repo.FeedbackRepo
	logs     repo.AuditRepo
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(routes repo.RouteRepo, stops repo.StopRepo, feedback repo.FeedbackRepo, logs repo.AuditRepo) *DashboardService {
	return &DashboardService{routes: routes, stops: stops, feedback: feedback, logs: logs}
}

// Counts returns the dashboard tiles. The four counts run concurrently.
func (s *DashboardService) Counts(ctx context.Context) (domain.Counts, error) {
	var c domain.Counts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		c.Routes, err = s.routes.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		c.Stops, err = s.stops.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		c.Feedback, err = s.feedback.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		c.ResolvedFeedback, err = s.feedback.CountByStatus(gctx, domain.FeedbackResolved)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Counts{}, fmt.Errorf("service.DashboardService.Counts: %w", err)
	}
	return c, nil
}

// Activity returns the newest admin log entries.
func (s *DashboardService) Activity(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	recs, err := s.logs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service.DashboardService.Activity: %w", err)
	}
	return recs, nil
}
