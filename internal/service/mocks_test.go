package service_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/notice"
	"github.com/commutewise/console/internal/repo"
)

// Hand-written test doubles: each method is a function field, set only the
// ones a test needs.

type mockStopRepo struct {
	create    func(ctx context.Context, stop domain.Stop) (domain.Stop, error)
	getByID   func(ctx context.Context, id uuid.UUID) (domain.Stop, error)
	listByIDs func(ctx context.Context, ids []uuid.UUID) ([]domain.Stop, error)
	list      func(ctx context.Context, p domain.PaginationParams) ([]domain.Stop, int64, error)
	listZones func(ctx context.Context) ([]string, error)
	update    func(ctx context.Context, stop domain.Stop) (domain.Stop, error)
	delete    func(ctx context.Context, id uuid.UUID) error
	count     func(ctx context.Context) (int64, error)
}

func (m *mockStopRepo) Create(ctx context.Context, stop domain.Stop) (domain.Stop, error) {
	return m.create(ctx, stop)
}
func (m *mockStopRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Stop, error) {
	return m.getByID(ctx, id)
}
func (m *mockStopRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Stop, error) {
	return m.listByIDs(ctx, ids)
}
func (m *mockStopRepo) List(ctx context.Context, p domain.PaginationParams) ([]domain.Stop, int64, error) {
	return m.list(ctx, p)
}
func (m *mockStopRepo) ListZones(ctx context.Context) ([]string, error) {
	return m.listZones(ctx)
}
func (m *mockStopRepo) Update(ctx context.Context, stop domain.Stop) (domain.Stop, error) {
	return m.update(ctx, stop)
}
func (m *mockStopRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}
func (m *mockStopRepo) Count(ctx context.Context) (int64, error) {
	return m.count(ctx)
}

var _ repo.StopRepo = (*mockStopRepo)(nil)

type mockRouteRepo struct {
	create     func(ctx context.Context, r domain.Route, omitWaypoints bool) (domain.Route, error)
	getByID    func(ctx context.Context, id uuid.UUID) (domain.Route, error)
	list       func(ctx context.Context, p domain.PaginationParams) ([]domain.Route, int64, error)
	listByStop func(ctx context.Context, stopID uuid.UUID) ([]domain.Route, error)
	update     func(ctx context.Context, r domain.Route, omitWaypoints bool) (domain.Route, error)
	delete     func(ctx context.Context, id uuid.UUID) error
	count      func(ctx context.Context) (int64, error)
}

func (m *mockRouteRepo) Create(ctx context.Context, r domain.Route, omitWaypoints bool) (domain.Route, error) {
	return m.create(ctx, r, omitWaypoints)
}
func (m *mockRouteRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	return m.getByID(ctx, id)
}
func (m *mockRouteRepo) List(ctx context.Context, p domain.PaginationParams) ([]domain.Route, int64, error) {
	return m.list(ctx, p)
}
func (m *mockRouteRepo) ListByStop(ctx context.Context, stopID uuid.UUID) ([]domain.Route, error) {
	return m.listByStop(ctx, stopID)
}
func (m *mockRouteRepo) Update(ctx context.Context, r domain.Route, omitWaypoints bool) (domain.Route, error) {
	return m.update(ctx, r, omitWaypoints)
}
func (m *mockRouteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}
func (m *mockRouteRepo) Count(ctx context.Context) (int64, error) {
	return m.count(ctx)
}

var _ repo.RouteRepo = (*mockRouteRepo)(nil)

type mockFeedbackRepo struct {
	create        func(ctx context.Context, f domain.Feedback) (domain.Feedback, error)
	list          func(ctx context.Context, limit int) ([]domain.Feedback, error)
	updateStatus  func(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error
	delete        func(ctx context.Context, id uuid.UUID) error
	count         func(ctx context.Context) (int64, error)
	countByStatus func(ctx context.Context, status domain.FeedbackStatus) (int64, error)
}

func (m *mockFeedbackRepo) Create(ctx context.Context, f domain.Feedback) (domain.Feedback, error) {
	return m.create(ctx, f)
}
func (m *mockFeedbackRepo) List(ctx context.Context, limit int) ([]domain.Feedback, error) {
	return m.list(ctx, limit)
}
func (m *mockFeedbackRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error {
	return m.updateStatus(ctx, id, status)
}
func (m *mockFeedbackRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}
func (m *mockFeedbackRepo) Count(ctx context.Context) (int64, error) {
	return m.count(ctx)
}
func (m *mockFeedbackRepo) CountByStatus(ctx context.Context, status domain.FeedbackStatus) (int64, error) {
	return m.countByStatus(ctx, status)
}

var _ repo.FeedbackRepo = (*mockFeedbackRepo)(nil)

type mockAuditRepo struct {
	insert     func(ctx context.Context, rec domain.AuditRecord) error
	listRecent func(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}

func (m *mockAuditRepo) Insert(ctx context.Context, rec domain.AuditRecord) error {
	return m.insert(ctx, rec)
}
func (m *mockAuditRepo) ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	return m.listRecent(ctx, limit)
}

var _ repo.AuditRepo = (*mockAuditRepo)(nil)

// recordingAuditor keeps every record instead of writing it anywhere.
type recordingAuditor struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (a *recordingAuditor) Record(_ context.Context, action, details string) domain.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := domain.AuditRecord{ID: uuid.New(), Action: action, Details: details}
	a.records = append(a.records, rec)
	return rec
}

func (a *recordingAuditor) all() []domain.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditRecord(nil), a.records...)
}

type shownNotice struct {
	kind    notice.Kind
	message string
}

type recordingNotifier struct {
	shown []shownNotice
}

func (n *recordingNotifier) Show(kind notice.Kind, message string) {
	n.shown = append(n.shown, shownNotice{kind, message})
}
