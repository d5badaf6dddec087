package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/commutewise/console/internal/domain"
)

// StopRepo defines the persistence operations for Stops.
type StopRepo interface {
	// Create inserts a new stop and returns the persisted record.
	Create(ctx context.Context, stop domain.Stop) (domain.Stop, error)

	// GetByID retrieves a single stop.
	// Returns domain.ErrNotFound if no stop with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Stop, error)

	// ListByIDs returns the stops among ids that exist, in no particular order.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Stop, error)

	// List returns one page of stops ordered by name, and the total count.
	List(ctx context.Context, p domain.PaginationParams) ([]domain.Stop, int64, error)

	// ListZones returns the distinct zones in use other than the unassigned
	// sentinel, sorted.
	ListZones(ctx context.Context) ([]string, error)

	// Update overwrites the mutable fields of a stop.
	// Returns domain.ErrNotFound if no stop with that ID exists.
	Update(ctx context.Context, stop domain.Stop) (domain.Stop, error)

	// Delete removes a stop. Routes referencing it are left untouched.
	// Returns domain.ErrNotFound if no stop with that ID exists.
	Delete(ctx context.Context, id uuid.UUID) error

	// Count returns the number of stops.
	Count(ctx context.Context) (int64, error)
}

// pgStopRepo is the Postgres implementation of StopRepo.
type pgStopRepo struct {
	db db
}

// NewStopRepo constructs a StopRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewStopRepo(db db) StopRepo {
	return &pgStopRepo{db: db}
}

const stopColumns = `id, name, category, lat, lng, zone, vehicles, created_at, updated_at`

func (r *pgStopRepo) Create(ctx context.Context, stop domain.Stop) (domain.Stop, error) {
	const q = `
		INSERT INTO stops (name, category, lat, lng, zone, vehicles)
		VALUES (@name, @category, @lat, @lng, @zone, @vehicles)
		RETURNING ` + stopColumns

	row := r.db.QueryRow(ctx, q, stopArgs(stop))
	result, err := scanStop(row)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgStopRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Stop, error) {
	const q = `SELECT ` + stopColumns + ` FROM stops WHERE id = @id`

	result, err := scanStop(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgStopRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Stop, error) {
	const q = `SELECT ` + stopColumns + ` FROM stops WHERE id = ANY(@ids)`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": toPgUUIDs(ids)})
	if err != nil {
		return nil, fmt.Errorf("repo.StopRepo.ListByIDs: %w", err)
	}
	stops, err := collectStops(rows)
	if err != nil {
		return nil, fmt.Errorf("repo.StopRepo.ListByIDs: %w", err)
	}
	return stops, nil
}

func (r *pgStopRepo) List(ctx context.Context, p domain.PaginationParams) ([]domain.Stop, int64, error) {
	const q = `
		SELECT ` + stopColumns + `
		FROM stops
		ORDER BY name, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.StopRepo.List: %w", err)
	}
	stops, err := collectStops(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.StopRepo.List: %w", err)
	}
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.StopRepo.List: %w", err)
	}
	return stops, total, nil
}

func (r *pgStopRepo) ListZones(ctx context.Context) ([]string, error) {
	const q = `
		SELECT DISTINCT zone
		FROM stops
		WHERE zone <> @unassigned AND zone <> ''
		ORDER BY zone`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"unassigned": domain.UnassignedZone})
	if err != nil {
		return nil, fmt.Errorf("repo.StopRepo.ListZones: %w", err)
	}
	zones, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("repo.StopRepo.ListZones: %w", err)
	}
	return zones, nil
}

func (r *pgStopRepo) Update(ctx context.Context, stop domain.Stop) (domain.Stop, error) {
	const q = `
		UPDATE stops
		SET name       = @name,
		    category   = @category,
		    lat        = @lat,
		    lng        = @lng,
		    zone       = @zone,
		    vehicles   = @vehicles,
		    updated_at = now()
		WHERE id = @id
		RETURNING ` + stopColumns

	args := stopArgs(stop)
	args["id"] = stop.ID
	result, err := scanStop(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgStopRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stops WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.StopRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.StopRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgStopRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM stops`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo.StopRepo.Count: %w", err)
	}
	return n, nil
}

func stopArgs(s domain.Stop) pgx.NamedArgs {
	vehicles := make([]string, len(s.Vehicles))
	for i, v := range s.Vehicles {
		vehicles[i] = string(v)
	}
	return pgx.NamedArgs{
		"name":     s.Name,
		"category": string(s.Category),
		"lat":      s.Location.Lat,
		"lng":      s.Location.Lng,
		"zone":     s.Zone,
		"vehicles": vehicles,
	}
}

func collectStops(rows pgx.Rows) ([]domain.Stop, error) {
	defer rows.Close()
	stops := []domain.Stop{}
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return stops, nil
}

// scanStop maps a single database row into a domain.Stop.
func scanStop(s scanner) (domain.Stop, error) {
	var (
		st       domain.Stop
		id       pgtype.UUID
		category string
		vehicles []string
	)
	err := s.Scan(&id, &st.Name, &category, &st.Location.Lat, &st.Location.Lng,
		&st.Zone, &vehicles, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stop{}, domain.ErrNotFound
		}
		return domain.Stop{}, err
	}
	st.ID = uuid.UUID(id.Bytes)
	st.Category = domain.StopCategory(category)
	st.Vehicles = make([]domain.VehicleClass, len(vehicles))
	for i, v := range vehicles {
		st.Vehicles[i] = domain.VehicleClass(v)
	}
	return st, nil
}
