package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/commutewise/console/internal/domain"
)

// AuditRepo stores the admin activity log.
type AuditRepo interface {
	// Insert appends one record. The record's ID and CreatedAt are kept.
	Insert(ctx context.Context, rec domain.AuditRecord) error

	// ListRecent returns the newest records first, at most limit of them.
	ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}

type pgAuditRepo struct {
	db db
}

// NewAuditRepo constructs an AuditRepo backed by the provided db connection.
func NewAuditRepo(db db) AuditRepo {
	return &pgAuditRepo{db: db}
}

func (r *pgAuditRepo) Insert(ctx context.Context, rec domain.AuditRecord) error {
	const q = `
		INSERT INTO admin_logs (id, actor_id, actor_email, action, details, created_at)
		VALUES (@id, @actor_id, @actor_email, @action, @details, @created_at)`

	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"id":          rec.ID,
		"actor_id":    rec.ActorID,
		"actor_email": rec.ActorEmail,
		"action":      rec.Action,
		"details":     rec.Details,
		"created_at":  rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("repo.AuditRepo.Insert: %w", err)
	}
	return nil
}

func (r *pgAuditRepo) ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	const q = `
		SELECT id, actor_id, actor_email, action, details, created_at
		FROM admin_logs
		ORDER BY created_at DESC, id
		LIMIT @limit`

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("repo.AuditRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	recs := []domain.AuditRecord{}
	for rows.Next() {
		var (
			rec domain.AuditRecord
			id  pgtype.UUID
		)
		if err := rows.Scan(&id, &rec.ActorID, &rec.ActorEmail, &rec.Action, &rec.Details, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("repo.AuditRepo.ListRecent: scan: %w", err)
		}
		rec.ID = uuid.UUID(id.Bytes)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.AuditRepo.ListRecent: rows: %w", err)
	}
	return recs, nil
}
