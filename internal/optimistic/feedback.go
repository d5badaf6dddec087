package optimistic

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
)

// FeedbackStore is the remote side of the triage board.
type FeedbackStore interface {
	List(ctx context.Context) ([]domain.Feedback, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// FeedbackBoard holds the feedback triage list shown to the operator.
// Status changes and deletions are applied optimistically; mutations are
// serialized so a rollback never clobbers a newer edit.
type FeedbackBoard struct {
	store  FeedbackStore
	engine *Engine[[]domain.Feedback]

	write sync.Mutex // held for the whole apply/commit cycle
	mu    sync.RWMutex
	items []domain.Feedback
}

// NewFeedbackBoard constructs an empty board. Call Reload to populate it.
func NewFeedbackBoard(store FeedbackStore, observer RollbackObserver) *FeedbackBoard {
	return &FeedbackBoard{
		store:  store,
		engine: New(cloneFeedback, observer),
	}
}

// Items returns a copy of the current list, including any optimistic change
// whose write is still in flight.
func (b *FeedbackBoard) Items() []domain.Feedback {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.items)
}

// Filter returns the items matching status ("" or "all" for every status)
// whose message or user name contains query, case-insensitively.
func (b *FeedbackBoard) Filter(status, query string) []domain.Feedback {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Feedback, 0)
	for _, f := range b.Items() {
		if status != "" && status != "all" && string(f.Status) != status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(f.Message), q) && !strings.Contains(strings.ToLower(f.UserName), q) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Reload replaces the list with a full re-fetch. This is the bulk fallback,
// not part of the per-item rollback path.
func (b *FeedbackBoard) Reload(ctx context.Context) ([]domain.Feedback, error) {
	b.write.Lock()
	defer b.write.Unlock()

	items, err := b.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("optimistic.FeedbackBoard.Reload: %w", err)
	}
	if items == nil {
		items = []domain.Feedback{}
	}
	b.set(items)
	return slices.Clone(items), nil
}

// UpdateStatus marks one item with status. On failure the list is restored
// to exactly what it was before the call.
func (b *FeedbackBoard) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	return b.mutate(ctx, func(items []domain.Feedback) []domain.Feedback {
		for i := range items {
			if items[i].ID == id {
				items[i].Status = status
			}
		}
		return items
	}, func(ctx context.Context) error {
		return b.store.UpdateStatus(ctx, id, status)
	})
}

// Delete removes one item. On failure the item reappears in place.
func (b *FeedbackBoard) Delete(ctx context.Context, id uuid.UUID) error {
	return b.mutate(ctx, func(items []domain.Feedback) []domain.Feedback {
		return slices.DeleteFunc(items, func(f domain.Feedback) bool { return f.ID == id })
	}, func(ctx context.Context) error {
		return b.store.Delete(ctx, id)
	})
}

func (b *FeedbackBoard) mutate(ctx context.Context, transform func([]domain.Feedback) []domain.Feedback, write func(context.Context) error) error {
	b.write.Lock()
	defer b.write.Unlock()

	next, commit := b.engine.Apply(b.Items(), transform, func(ctx context.Context, _ []domain.Feedback) error {
		return write(ctx)
	})
	b.set(next)

	final, err := commit(ctx)
	b.set(final)
	if err != nil {
		return fmt.Errorf("optimistic.FeedbackBoard: %w", err)
	}
	return nil
}

func cloneFeedback(items []domain.Feedback) []domain.Feedback { return slices.Clone(items) }

func (b *FeedbackBoard) set(items []domain.Feedback) {
	b.mu.Lock()
	b.items = items
	b.mu.Unlock()
}
