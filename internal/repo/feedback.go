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

// FeedbackRepo defines the persistence operations for rider feedback.
type FeedbackRepo interface {
	// Create inserts a rider report.
	Create(ctx context.Context, f domain.Feedback) (domain.Feedback, error)

	// List returns feedback newest first. limit <= 0 returns everything.
	List(ctx context.Context, limit int) ([]domain.Feedback, error)

	// UpdateStatus sets the triage status of one report.
	// Returns domain.ErrNotFound if no report with that ID exists.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error

	// Delete removes one report.
	// Returns domain.ErrNotFound if no report with that ID exists.
	Delete(ctx context.Context, id uuid.UUID) error

	// Count returns the number of reports.
	Count(ctx context.Context) (int64, error)

	// CountByStatus returns the number of reports with the given status.
	CountByStatus(ctx context.Context, status domain.FeedbackStatus) (int64, error)
}

type pgFeedbackRepo struct {
	db db
}

// NewFeedbackRepo constructs a FeedbackRepo backed by the provided db connection.
func NewFeedbackRepo(db db) FeedbackRepo {
	return &pgFeedbackRepo{db: db}
}

func (r *pgFeedbackRepo) Create(ctx context.Context, f domain.Feedback) (domain.Feedback, error) {
	const q = `
		INSERT INTO feedback (user_name, message, status)
		VALUES (@user_name, @message, @status)
		RETURNING id, user_name, message, status, created_at`

	if f.Status == "" {
		f.Status = domain.FeedbackPending
	}
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"user_name": f.UserName,
		"message":   f.Message,
		"status":    string(f.Status),
	})
	result, err := scanFeedback(row)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("repo.FeedbackRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgFeedbackRepo) List(ctx context.Context, limit int) ([]domain.Feedback, error) {
	q := `
		SELECT id, user_name, message, status, created_at
		FROM feedback
		ORDER BY created_at DESC, id`
	args := pgx.NamedArgs{}
	if limit > 0 {
		q += ` LIMIT @limit`
		args["limit"] = limit
	}

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.FeedbackRepo.List: %w", err)
	}
	defer rows.Close()

	items := []domain.Feedback{}
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.FeedbackRepo.List: scan: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.FeedbackRepo.List: rows: %w", err)
	}
	return items, nil
}

func (r *pgFeedbackRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error {
	const q = `UPDATE feedback SET status = @status WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "status": string(status)})
	if err != nil {
		return fmt.Errorf("repo.FeedbackRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.FeedbackRepo.UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgFeedbackRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM feedback WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.FeedbackRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.FeedbackRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgFeedbackRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM feedback`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo.FeedbackRepo.Count: %w", err)
	}
	return n, nil
}

func (r *pgFeedbackRepo) CountByStatus(ctx context.Context, status domain.FeedbackStatus) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM feedback WHERE status = @status`,
		pgx.NamedArgs{"status": string(status)}).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repo.FeedbackRepo.CountByStatus: %w", err)
	}
	return n, nil
}

func scanFeedback(s scanner) (domain.Feedback, error) {
	var (
		f      domain.Feedback
		id     pgtype.UUID
		status string
	)
	if err := s.Scan(&id, &f.UserName, &f.Message, &status, &f.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Feedback{}, domain.ErrNotFound
		}
		return domain.Feedback{}, err
	}
	f.ID = uuid.UUID(id.Bytes)
	f.Status = domain.FeedbackStatus(status)
	return f, nil
}
