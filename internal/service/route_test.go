package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/service"
)

type routeFixture struct {
	origin, middle, destination domain.Stop
	stops                       *service.StopService
}

func newRouteFixture() routeFixture {
	f := routeFixture{
		origin:      domain.Stop{ID: uuid.New(), Name: "Market"},
		middle:      domain.Stop{ID: uuid.New(), Name: "School"},
		destination: domain.Stop{ID: uuid.New(), Name: "Pier"},
	}
	all := []domain.Stop{f.origin, f.middle, f.destination}
	f.stops = service.NewStopService(&mockStopRepo{
		listByIDs: func(_ context.Context, ids []uuid.UUID) ([]domain.Stop, error) {
			out := []domain.Stop{}
			for _, s := range all {
				for _, id := range ids {
					if s.ID == id {
						out = append(out, s)
					}
				}
			}
			return out, nil
		},
	}, &recordingAuditor{}, 0)
	return f
}

func (f routeFixture) route() domain.Route {
	return domain.Route{
		Mode:      domain.VehicleJeep,
		Waypoints: []uuid.UUID{f.origin.ID, f.middle.ID, f.destination.ID},
		Fare:      13,
	}
}

func echoRouteRepo() *mockRouteRepo {
	echo := func(_ context.Context, r domain.Route, omit bool) (domain.Route, error) {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		if omit {
			r.Waypoints = []uuid.UUID{}
		}
		return r, nil
	}
	return &mockRouteRepo{create: echo, update: echo}
}

func TestRouteService_Save_SyncsEndpointsAndDefaultsName(t *testing.T) {
	f := newRouteFixture()
	auditor := &recordingAuditor{}
	svc := service.NewRouteService(echoRouteRepo(), f.stops, auditor, nil)

	r := f.route()
	r.Origin, r.Destination = uuid.New(), uuid.New()
	got, err := svc.Save(context.Background(), r)

	require.NoError(t, err)
	assert.False(t, got.WaypointsOmitted)
	assert.Equal(t, f.origin.ID, got.Route.Origin)
	assert.Equal(t, f.destination.ID, got.Route.Destination)
	assert.Equal(t, "Market - Pier", got.Route.Name)
	recs := auditor.all()
	require.Len(t, recs, 1)
	assert.Equal(t, "Created Route", recs[0].Action)
	assert.Equal(t, "Name: Market - Pier", recs[0].Details)
}

func TestRouteService_Save_UpdateKeepsName(t *testing.T) {
	f := newRouteFixture()
	auditor := &recordingAuditor{}
	svc := service.NewRouteService(echoRouteRepo(), f.stops, auditor, nil)

	r := f.route()
	r.ID = uuid.New()
	r.Name = "  Loop  "
	got, err := svc.Save(context.Background(), r)

	require.NoError(t, err)
	assert.Equal(t, "Loop", got.Route.Name)
	assert.Equal(t, "Updated Route", auditor.all()[0].Action)
}

func TestRouteService_Save_RetriesWithoutWaypoints(t *testing.T) {
	f := newRouteFixture()
	auditor := &recordingAuditor{}
	var attempts []bool
	routes := echoRouteRepo()
	inner := routes.create
	routes.create = func(ctx context.Context, r domain.Route, omit bool) (domain.Route, error) {
		attempts = append(attempts, omit)
		if !omit {
			return domain.Route{}, &domain.SchemaError{Field: "waypoints", Err: errors.New("column does not exist")}
		}
		return inner(ctx, r, omit)
	}
	svc := service.NewRouteService(routes, f.stops, auditor, nil)

	got, err := svc.Save(context.Background(), f.route())

	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, attempts)
	assert.True(t, got.WaypointsOmitted)
	assert.Equal(t, f.origin.ID, got.Route.Origin)
	assert.Equal(t, f.destination.ID, got.Route.Destination)
	assert.Len(t, auditor.all(), 1, "one audit record for the retried write")
}

func TestRouteService_Save_RetryFailureIsAnError(t *testing.T) {
	f := newRouteFixture()
	auditor := &recordingAuditor{}
	boom := errors.New("still broken")
	calls := 0
	svc := service.NewRouteService(&mockRouteRepo{
		create: func(_ context.Context, _ domain.Route, omit bool) (domain.Route, error) {
			calls++
			if !omit {
				return domain.Route{}, &domain.SchemaError{Field: "waypoints", Err: errors.New("rejected")}
			}
			return domain.Route{}, boom
		},
	}, f.stops, auditor, nil)

	_, err := svc.Save(context.Background(), f.route())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "retried exactly once")
	assert.Empty(t, auditor.all())
}

func TestRouteService_Save_OtherErrorsAreNotRetried(t *testing.T) {
	f := newRouteFixture()
	calls := 0
	svc := service.NewRouteService(&mockRouteRepo{
		create: func(context.Context, domain.Route, bool) (domain.Route, error) {
			calls++
			return domain.Route{}, &domain.SchemaError{Field: "fare", Err: errors.New("rejected")}
		},
	}, f.stops, &recordingAuditor{}, nil)

	_, err := svc.Save(context.Background(), f.route())

	assert.ErrorIs(t, err, domain.ErrSchemaRejected)
	assert.Equal(t, 1, calls)
}

func TestRouteService_Save_Validation(t *testing.T) {
	f := newRouteFixture()
	tests := []struct {
		name   string
		mutate func(*domain.Route)
	}{
		{"single waypoint", func(r *domain.Route) { r.Waypoints = r.Waypoints[:1]; r.Name = "x" }},
		{"empty waypoint", func(r *domain.Route) { r.Waypoints[1] = uuid.Nil }},
		{"negative fare", func(r *domain.Route) { r.Fare = -1 }},
		{"unknown mode", func(r *domain.Route) { r.Mode = "ferry" }},
		{"missing mode", func(r *domain.Route) { r.Mode = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := service.NewRouteService(echoRouteRepo(), f.stops, &recordingAuditor{}, nil)

			r := f.route()
			tc.mutate(&r)
			_, err := svc.Save(context.Background(), r)

			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRouteService_Save_DefaultNameNeedsLiveEndpoints(t *testing.T) {
	f := newRouteFixture()
	svc := service.NewRouteService(echoRouteRepo(), f.stops, &recordingAuditor{}, nil)

	r := f.route()
	r.Waypoints = []uuid.UUID{f.origin.ID, uuid.New()}
	_, err := svc.Save(context.Background(), r)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRouteService_Referencing(t *testing.T) {
	f := newRouteFixture()
	want := []domain.Route{{ID: uuid.New(), Name: "Loop"}}
	svc := service.NewRouteService(&mockRouteRepo{
		listByStop: func(_ context.Context, id uuid.UUID) ([]domain.Route, error) {
			assert.Equal(t, f.middle.ID, id)
			return want, nil
		},
	}, f.stops, &recordingAuditor{}, nil)

	got, err := svc.Referencing(context.Background(), f.middle.ID)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}
