package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/commutewise/console/internal/domain"
)

// waypointsField is the column some deployments of the routes table lack.
const waypointsField = "waypoints"

// RouteRepo defines the persistence operations for Routes.
type RouteRepo interface {
	// Create inserts a new route. With omitWaypoints the waypoints column is
	// left out of the statement entirely.
	// A write the schema refuses because of the waypoints column returns a
	// *domain.SchemaError for "waypoints".
	Create(ctx context.Context, route domain.Route, omitWaypoints bool) (domain.Route, error)

	// GetByID retrieves a single route.
	// Returns domain.ErrNotFound if no route with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error)

	// List returns one page of routes, most recently updated first, and the total count.
	List(ctx context.Context, p domain.PaginationParams) ([]domain.Route, int64, error)

	// ListByStop returns the routes whose origin, destination or waypoints
	// include stopID.
	ListByStop(ctx context.Context, stopID uuid.UUID) ([]domain.Route, error)

	// Update overwrites a route. omitWaypoints behaves as in Create.
	// Returns domain.ErrNotFound if no route with that ID exists.
	Update(ctx context.Context, route domain.Route, omitWaypoints bool) (domain.Route, error)

	// Delete removes a route.
	// Returns domain.ErrNotFound if no route with that ID exists.
	Delete(ctx context.Context, id uuid.UUID) error

	// Count returns the number of routes.
	Count(ctx context.Context) (int64, error)
}

// pgRouteRepo is the Postgres implementation of RouteRepo.
type pgRouteRepo struct {
	db db
}

// NewRouteRepo constructs a RouteRepo backed by the provided db connection.
func NewRouteRepo(db db) RouteRepo {
	return &pgRouteRepo{db: db}
}

// routeColumns never selects waypoints directly so reads keep working where
// the column is missing; to_jsonb(r) yields NULL for it in that case.
const routeColumns = `r.id, r.name, r.mode, r.origin, r.destination,
	to_jsonb(r) -> 'waypoints', r.path, r.distance_meters, r.duration_seconds,
	r.eta_minutes, r.fare, r.discounted_fare, r.strict_stops, r.created_at, r.updated_at`

// Create inserts a route and reads it back.
func (r *pgRouteRepo) Create(ctx context.Context, route domain.Route, omitWaypoints bool) (domain.Route, error) {
	cols := []string{"name", "mode", "origin", "destination", "path", "distance_meters",
		"duration_seconds", "eta_minutes", "fare", "discounted_fare", "strict_stops"}
	if !omitWaypoints {
		cols = append(cols, waypointsField)
	}
	params := make([]string, len(cols))
	for i, c := range cols {
		params[i] = "@" + c
	}
	q := `
		WITH r AS (
			INSERT INTO routes (` + strings.Join(cols, ", ") + `)
			VALUES (` + strings.Join(params, ", ") + `)
			RETURNING *
		)
		SELECT ` + routeColumns + ` FROM r`

	args, err := routeArgs(route)
	if err != nil {
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.Create: %w", err)
	}
	result, err := scanRoute(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.Create: %w", classifyRouteErr(err))
	}
	return result, nil
}

func (r *pgRouteRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	const q = `SELECT ` + routeColumns + ` FROM routes r WHERE r.id = @id`

	result, err := scanRoute(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgRouteRepo) List(ctx context.Context, p domain.PaginationParams) ([]domain.Route, int64, error) {
	const q = `
		SELECT ` + routeColumns + `
		FROM routes r
		ORDER BY r.updated_at DESC, r.id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RouteRepo.List: %w", err)
	}
	routes, err := collectRoutes(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RouteRepo.List: %w", err)
	}
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RouteRepo.List: %w", err)
	}
	return routes, total, nil
}

func (r *pgRouteRepo) ListByStop(ctx context.Context, stopID uuid.UUID) ([]domain.Route, error) {
	const q = `
		SELECT ` + routeColumns + `
		FROM routes r
		WHERE r.origin = @id
		   OR r.destination = @id
		   OR to_jsonb(r) -> 'waypoints' @> jsonb_build_array(@id_text::text)
		ORDER BY r.name`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"id": stopID, "id_text": stopID.String()})
	if err != nil {
		return nil, fmt.Errorf("repo.RouteRepo.ListByStop: %w", err)
	}
	routes, err := collectRoutes(rows)
	if err != nil {
		return nil, fmt.Errorf("repo.RouteRepo.ListByStop: %w", err)
	}
	return routes, nil
}

// Update overwrites a route and reads it back.
func (r *pgRouteRepo) Update(ctx context.Context, route domain.Route, omitWaypoints bool) (domain.Route, error) {
	sets := []string{
		"name = @name", "mode = @mode", "origin = @origin", "destination = @destination",
		"path = @path", "distance_meters = @distance_meters", "duration_seconds = @duration_seconds",
		"eta_minutes = @eta_minutes", "fare = @fare", "discounted_fare = @discounted_fare",
		"strict_stops = @strict_stops", "updated_at = now()",
	}
	if !omitWaypoints {
		sets = append(sets, "waypoints = @waypoints")
	}
	q := `
		WITH r AS (
			UPDATE routes
			SET ` + strings.Join(sets, ", ") + `
			WHERE id = @id
			RETURNING *
		)
		SELECT ` + routeColumns + ` FROM r`

	args, err := routeArgs(route)
	if err != nil {
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.Update: %w", err)
	}
	args["id"] = route.ID
	result, err := scanRoute(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.Update: %w", classifyRouteErr(err))
	}
	return result, nil
}

func (r *pgRouteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM routes WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.RouteRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.RouteRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgRouteRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM routes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo.RouteRepo.Count: %w", err)
	}
	return n, nil
}

// classifyRouteErr turns a refusal attributable to the waypoints column into
// a *domain.SchemaError. Undefined column (42703) and datatype mismatch
// (42804) are the refusals a schema without a uuid[] waypoints column raises.
func classifyRouteErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code != "42703" && pgErr.Code != "42804" {
		return err
	}
	if pgErr.ColumnName == waypointsField || strings.Contains(pgErr.Message, waypointsField) {
		return &domain.SchemaError{Field: waypointsField, Err: err}
	}
	return err
}

func routeArgs(route domain.Route) (pgx.NamedArgs, error) {
	var path []byte
	if len(route.Path) > 0 {
		b, err := geojson.NewGeometry(route.Path).MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode path: %w", err)
		}
		path = b
	}
	return pgx.NamedArgs{
		"name":             route.Name,
		"mode":             string(route.Mode),
		"origin":           route.Origin,
		"destination":      route.Destination,
		"waypoints":        toPgUUIDs(route.Waypoints),
		"path":             path,
		"distance_meters":  route.DistanceMeters,
		"duration_seconds": route.DurationSeconds,
		"eta_minutes":      route.ETAMinutes,
		"fare":             route.Fare,
		"discounted_fare":  route.DiscountedFare,
		"strict_stops":     route.StrictStops,
	}, nil
}

func collectRoutes(rows pgx.Rows) ([]domain.Route, error) {
	defer rows.Close()
	routes := []domain.Route{}
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		routes = append(routes, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return routes, nil
}

// scanRoute maps a single database row into a domain.Route. The waypoints
// arrive as a JSON array of uuid strings (or NULL) and the path as GeoJSON.
func scanRoute(s scanner) (domain.Route, error) {
	var (
		rt          domain.Route
		id          pgtype.UUID
		origin      pgtype.UUID
		destination pgtype.UUID
		mode        string
		waypoints   []uuid.UUID
		path        []byte
	)
	err := s.Scan(&id, &rt.Name, &mode, &origin, &destination, &waypoints, &path,
		&rt.DistanceMeters, &rt.DurationSeconds, &rt.ETAMinutes, &rt.Fare, &rt.DiscountedFare,
		&rt.StrictStops, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Route{}, domain.ErrNotFound
		}
		return domain.Route{}, err
	}
	rt.ID = uuid.UUID(id.Bytes)
	rt.Mode = domain.VehicleClass(mode)
	rt.Origin = uuid.UUID(origin.Bytes)
	rt.Destination = uuid.UUID(destination.Bytes)
	rt.Waypoints = waypoints
	if rt.Waypoints == nil {
		rt.Waypoints = []uuid.UUID{}
	}
	if len(path) > 0 {
		g, err := geojson.UnmarshalGeometry(path)
		if err != nil {
			return domain.Route{}, fmt.Errorf("decode path: %w", err)
		}
		if ls, ok := g.Geometry().(orb.LineString); ok {
			rt.Path = ls
		}
	}
	return rt, nil
}
