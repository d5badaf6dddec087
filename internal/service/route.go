package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/audit"
	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/repo"
)

// StopLookup resolves stop IDs; *StopService satisfies it.
type StopLookup interface {
	Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Stop, error)
}

// RouteService implements business logic for Route operations.
type RouteService struct {
	routes repo.RouteRepo
	stops  StopLookup
	audit  Auditor
	log    *slog.Logger
}

// NewRouteService constructs a RouteService. log may be nil.
func NewRouteService(routes repo.RouteRepo, stops StopLookup, auditor Auditor, log *slog.Logger) *RouteService {
	if log == nil {
		log = slog.Default()
	}
	return &RouteService{routes: routes, stops: stops, audit: auditor, log: log}
}

// Get returns a single route.
// Returns domain.ErrNotFound if no route with that ID exists.
func (s *RouteService) Get(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	r, err := s.routes.GetByID(ctx, id)
	if err != nil {
		return domain.Route{}, fmt.Errorf("service.RouteService.Get: %w", err)
	}
	return r, nil
}

// Save creates the route when it has no ID and updates it otherwise.
//
// Origin and destination are always taken from the waypoint list. A blank
// name becomes "<origin name> - <destination name>". If the store refuses
// the waypoint list because its schema lacks the column, the write is
// retried once without it and the result reports WaypointsOmitted.
func (s *RouteService) Save(ctx context.Context, r domain.Route) (domain.RouteSaveResult, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.SyncEndpoints()
	for i, id := range r.Waypoints {
		if id == uuid.Nil {
			return domain.RouteSaveResult{}, fmt.Errorf("service.RouteService.Save: %w: waypoint %d is empty", domain.ErrValidation, i+1)
		}
	}
	if r.Name == "" && len(r.Waypoints) >= 2 {
		name, err := s.defaultName(ctx, r)
		if err != nil {
			return domain.RouteSaveResult{}, fmt.Errorf("service.RouteService.Save: %w", err)
		}
		r.Name = name
	}
	if err := validate.Struct(r); err != nil {
		return domain.RouteSaveResult{}, fmt.Errorf("service.RouteService.Save: %w", validationError(err))
	}
	if !r.Mode.Valid() {
		return domain.RouteSaveResult{}, fmt.Errorf("service.RouteService.Save: %w: unknown mode %q", domain.ErrValidation, r.Mode)
	}

	saved, err := s.write(ctx, r, false)
	omitted := false
	var schemaErr *domain.SchemaError
	if errors.As(err, &schemaErr) && schemaErr.Field == "waypoints" {
		s.log.Warn("route store rejected waypoints; retrying without them", "route", r.Name, "error", err)
		saved, err = s.write(ctx, r, true)
		omitted = true
	}
	if err != nil {
		return domain.RouteSaveResult{}, fmt.Errorf("service.RouteService.Save: %w", err)
	}

	action := audit.ActionUpdatedRoute
	if r.ID == uuid.Nil {
		action = audit.ActionCreatedRoute
	}
	s.audit.Record(ctx, action, "Name: "+saved.Name)
	return domain.RouteSaveResult{Route: saved, WaypointsOmitted: omitted}, nil
}

func (s *RouteService) write(ctx context.Context, r domain.Route, omitWaypoints bool) (domain.Route, error) {
	if r.ID == uuid.Nil {
		return s.routes.Create(ctx, r, omitWaypoints)
	}
	return s.routes.Update(ctx, r, omitWaypoints)
}

func (s *RouteService) defaultName(ctx context.Context, r domain.Route) (string, error) {
	stops, err := s.stops.Lookup(ctx, []uuid.UUID{r.Origin, r.Destination})
	if err != nil {
		return "", err
	}
	origin, ok := stops[r.Origin]
	if !ok {
		return "", fmt.Errorf("%w: origin stop no longer exists", domain.ErrValidation)
	}
	destination, ok := stops[r.Destination]
	if !ok {
		return "", fmt.Errorf("%w: destination stop no longer exists", domain.ErrValidation)
	}
	return origin.Name + " - " + destination.Name, nil
}

// List returns one page of routes and the total count.
func (s *RouteService) List(ctx context.Context, p domain.PaginationParams) ([]domain.Route, int64, error) {
	routes, total, err := s.routes.List(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.RouteService.List: %w", err)
	}
	return routes, total, nil
}

// Referencing returns the routes that pass through stopID.
func (s *RouteService) Referencing(ctx context.Context, stopID uuid.UUID) ([]domain.Route, error) {
	routes, err := s.routes.ListByStop(ctx, stopID)
	if err != nil {
		return nil, fmt.Errorf("service.RouteService.Referencing: %w", err)
	}
	return routes, nil
}

// Delete removes a route.
func (s *RouteService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.routes.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.RouteService.Delete: %w", err)
	}
	return nil
}

// Count returns the number of routes.
func (s *RouteService) Count(ctx context.Context) (int64, error) {
	n, err := s.routes.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("service.RouteService.Count: %w", err)
	}
	return n, nil
}
