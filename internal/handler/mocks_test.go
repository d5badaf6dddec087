package handler_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/deletion"
	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/handler"
	"github.com/commutewise/console/internal/identity"
)

var (
	_ handler.StopReader        = (*mockStops)(nil)
	_ handler.RouteReader       = (*mockRoutes)(nil)
	_ handler.DeletionGuard     = (*mockGuard)(nil)
	_ handler.DeletionDescriber = (*mockDescriber)(nil)
	_ handler.FeedbackBoard     = (*mockBoard)(nil)
	_ handler.Dashboard         = (*mockDashboard)(nil)
	_ handler.RecentFeedback    = (*mockRecent)(nil)
	_ handler.Session           = (*mockSession)(nil)
)

type mockStops struct {
	getFn   func(ctx context.Context, id uuid.UUID) (domain.Stop, error)
	listFn  func(ctx context.Context, p domain.PaginationParams) ([]domain.Stop, int64, error)
	zonesFn func(ctx context.Context) ([]string, error)
}

func (m *mockStops) Get(ctx context.Context, id uuid.UUID) (domain.Stop, error) {
	return m.getFn(ctx, id)
}

func (m *mockStops) List(ctx context.Context, p domain.PaginationParams) ([]domain.Stop, int64, error) {
	return m.listFn(ctx, p)
}

func (m *mockStops) Zones(ctx context.Context) ([]string, error) { return m.zonesFn(ctx) }

type mockRoutes struct {
	getFn         func(ctx context.Context, id uuid.UUID) (domain.Route, error)
	listFn        func(ctx context.Context, p domain.PaginationParams) ([]domain.Route, int64, error)
	referencingFn func(ctx context.Context, stopID uuid.UUID) ([]domain.Route, error)
}

func (m *mockRoutes) Get(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	return m.getFn(ctx, id)
}

func (m *mockRoutes) List(ctx context.Context, p domain.PaginationParams) ([]domain.Route, int64, error) {
	return m.listFn(ctx, p)
}

func (m *mockRoutes) Referencing(ctx context.Context, stopID uuid.UUID) ([]domain.Route, error) {
	return m.referencingFn(ctx, stopID)
}

type mockGuard struct {
	requestFn func(t deletion.Target, message string) (deletion.Prompt, error)
	pendingFn func() (deletion.Prompt, bool)
	confirmFn func(ctx context.Context) (deletion.Target, error)
	cancelFn  func() bool
}

func (m *mockGuard) Request(t deletion.Target, message string) (deletion.Prompt, error) {
	return m.requestFn(t, message)
}

func (m *mockGuard) Pending() (deletion.Prompt, bool) { return m.pendingFn() }

func (m *mockGuard) Confirm(ctx context.Context) (deletion.Target, error) { return m.confirmFn(ctx) }

func (m *mockGuard) Cancel() bool { return m.cancelFn() }

type mockDescriber struct {
	describeFn func(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (deletion.Target, string, error)
}

func (m *mockDescriber) Describe(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (deletion.Target, string, error) {
	return m.describeFn(ctx, kind, id)
}

type mockBoard struct {
	filterFn       func(status, query string) []domain.Feedback
	reloadFn       func(ctx context.Context) ([]domain.Feedback, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error
	deleteFn       func(ctx context.Context, id uuid.UUID) error
}

func (m *mockBoard) Filter(status, query string) []domain.Feedback { return m.filterFn(status, query) }

func (m *mockBoard) Reload(ctx context.Context) ([]domain.Feedback, error) { return m.reloadFn(ctx) }

func (m *mockBoard) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error {
	return m.updateStatusFn(ctx, id, status)
}

func (m *mockBoard) Delete(ctx context.Context, id uuid.UUID) error { return m.deleteFn(ctx, id) }

type mockDashboard struct {
	countsFn   func(ctx context.Context) (domain.Counts, error)
	activityFn func(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}

func (m *mockDashboard) Counts(ctx context.Context) (domain.Counts, error) { return m.countsFn(ctx) }

func (m *mockDashboard) Activity(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	return m.activityFn(ctx, limit)
}

type mockRecent struct {
	recentFn func(ctx context.Context, limit int) ([]domain.Feedback, error)
}

func (m *mockRecent) Recent(ctx context.Context, limit int) ([]domain.Feedback, error) {
	return m.recentFn(ctx, limit)
}

type mockSession struct {
	touchFn  func(event string) bool
	resumeFn func(ctx context.Context) (identity.Identity, error)
}

func (m *mockSession) Touch(event string) bool { return m.touchFn(event) }

func (m *mockSession) Resume(ctx context.Context) (identity.Identity, error) {
	return m.resumeFn(ctx)
}
