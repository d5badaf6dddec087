package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/commutewise/console/internal/audit"
	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/repo"
)

// DefaultLookupTTL is how long a stop read for route coordinates stays cached.
const DefaultLookupTTL = 5 * time.Minute

// StopService implements business logic for Stop operations.
// Lookup results are cached because every route save reads the coordinates
// of all its waypoints; any write through the service evicts the stop.
type StopService struct {
	stops repo.StopRepo
	audit Auditor
	cache *cache.Cache
}

// NewStopService constructs a StopService. A ttl <= 0 uses DefaultLookupTTL.
func NewStopService(stops repo.StopRepo, auditor Auditor, ttl time.Duration) *StopService {
	if ttl <= 0 {
		ttl = DefaultLookupTTL
	}
	return &StopService{
		stops: stops,
		audit: auditor,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Get returns a single stop.
// Returns domain.ErrNotFound if no stop with that ID exists.
func (s *StopService) Get(ctx context.Context, id uuid.UUID) (domain.Stop, error) {
	st, err := s.stops.GetByID(ctx, id)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.StopService.Get: %w", err)
	}
	return st, nil
}

// Lookup returns the stops among ids that still exist, keyed by ID.
// Missing stops are simply absent from the map.
func (s *StopService) Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Stop, error) {
	out := make(map[uuid.UUID]domain.Stop, len(ids))
	queued := make(map[uuid.UUID]bool)
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := out[id]; ok || queued[id] {
			continue
		}
		if v, ok := s.cache.Get(id.String()); ok {
			st := v.(domain.Stop)
			st.Vehicles = slices.Clone(st.Vehicles)
			out[id] = st
			continue
		}
		queued[id] = true
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	found, err := s.stops.ListByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("service.StopService.Lookup: %w", err)
	}
	for _, st := range found {
		out[st.ID] = st
		s.cache.Set(st.ID.String(), st, cache.DefaultExpiration)
	}
	return out, nil
}

// Save creates the stop when it has no ID and updates it otherwise.
// The zone defaults to domain.UnassignedZone and vehicle classes are kept
// only for terminals.
// Returns domain.ErrValidation if input violates business rules.
func (s *StopService) Save(ctx context.Context, stop domain.Stop) (domain.Stop, error) {
	stop.Name = strings.TrimSpace(stop.Name)
	stop.Zone = strings.TrimSpace(stop.Zone)
	if stop.Zone == "" {
		stop.Zone = domain.UnassignedZone
	}
	if stop.Category == "" {
		stop.Category = domain.CategoryStopPoint
	}
	if err := validateStop(&stop); err != nil {
		return domain.Stop{}, fmt.Errorf("service.StopService.Save: %w", err)
	}

	var (
		saved  domain.Stop
		err    error
		action = audit.ActionUpdatedNode
	)
	if stop.ID == uuid.Nil {
		action = audit.ActionCreatedNode
		saved, err = s.stops.Create(ctx, stop)
	} else {
		saved, err = s.stops.Update(ctx, stop)
	}
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.StopService.Save: %w", err)
	}
	s.cache.Delete(saved.ID.String())
	s.audit.Record(ctx, action, "Name: "+saved.Name)
	return saved, nil
}

// List returns one page of stops and the total count.
func (s *StopService) List(ctx context.Context, p domain.PaginationParams) ([]domain.Stop, int64, error) {
	stops, total, err := s.stops.List(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.StopService.List: %w", err)
	}
	return stops, total, nil
}

// Zones returns the zone choices for the node form: the unassigned sentinel
// first, then every zone in use, sorted.
func (s *StopService) Zones(ctx context.Context) ([]string, error) {
	zones, err := s.stops.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.StopService.Zones: %w", err)
	}
	return append([]string{domain.UnassignedZone}, zones...), nil
}

// Delete removes a stop. Routes that reference it are not touched.
func (s *StopService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.stops.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.StopService.Delete: %w", err)
	}
	s.cache.Delete(id.String())
	return nil
}

// Count returns the number of stops.
func (s *StopService) Count(ctx context.Context) (int64, error) {
	n, err := s.stops.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("service.StopService.Count: %w", err)
	}
	return n, nil
}

// validateStop checks stop and normalizes its vehicle list in place.
func validateStop(stop *domain.Stop) error {
	if err := validate.Struct(stop); err != nil {
		return validationError(err)
	}
	if !stop.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", domain.ErrValidation, stop.Category)
	}
	if !stop.IsTerminal() {
		stop.Vehicles = []domain.VehicleClass{}
		return nil
	}
	vehicles := make([]domain.VehicleClass, 0, len(stop.Vehicles))
	for _, v := range stop.Vehicles {
		if !v.Valid() {
			return fmt.Errorf("%w: unknown vehicle class %q", domain.ErrValidation, v)
		}
		if !slices.Contains(vehicles, v) {
			vehicles = append(vehicles, v)
		}
	}
	stop.Vehicles = vehicles
	return nil
}
