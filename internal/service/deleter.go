package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/audit"
	"github.com/commutewise/console/internal/deletion"
	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/notice"
)

// feedbackLabelRunes caps how much of a report's message names it in a prompt.
const feedbackLabelRunes = 40

// FeedbackRemover is the triage list a confirmed feedback deletion goes
// through, so the removal is applied optimistically.
type FeedbackRemover interface {
	Items() []domain.Feedback
	Delete(ctx context.Context, id uuid.UUID) error
}

// DeletionObserver counts confirmed deletions per entity kind.
type DeletionObserver interface {
	Deleted(kind string)
}

// Notifier shows operator notices.
type Notifier interface {
	Show(kind notice.Kind, message string)
}

// EntityDeleter builds deletion prompts and carries out confirmed deletions
// for the deletion guard.
type EntityDeleter struct {
	stops    *StopService
	routes   *RouteService
	feedback FeedbackRemover
	audit    Auditor
	observer DeletionObserver
	notifier Notifier
}

// NewEntityDeleter constructs an EntityDeleter. observer and notifier may be nil.
func NewEntityDeleter(stops *StopService, routes *RouteService, feedback FeedbackRemover, auditor Auditor, observer DeletionObserver, notifier Notifier) *EntityDeleter {
	return &EntityDeleter{
		stops:    stops,
		routes:   routes,
		feedback: feedback,
		audit:    auditor,
		observer: observer,
		notifier: notifier,
	}
}

// Describe resolves the entity to delete and the confirmation message to
// show. Deleting a stop never touches the routes that use it, so the
// message for a referenced stop says how many routes will be left with a
// dangling waypoint.
func (d *EntityDeleter) Describe(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (deletion.Target, string, error) {
	t := deletion.Target{Kind: kind, ID: id}
	switch kind {
	case domain.KindStop:
		st, err := d.stops.Get(ctx, id)
		if err != nil {
			return deletion.Target{}, "", fmt.Errorf("service.EntityDeleter.Describe: %w", err)
		}
		t.Label = st.Name
		refs, err := d.routes.Referencing(ctx, id)
		if err != nil {
			return deletion.Target{}, "", fmt.Errorf("service.EntityDeleter.Describe: %w", err)
		}
		if len(refs) > 0 {
			return t, fmt.Sprintf("Are you sure you want to permanently delete '%s'? %d route(s) still pass through it and will keep a dangling reference.",
				st.Name, len(refs)), nil
		}
	case domain.KindRoute:
		r, err := d.routes.Get(ctx, id)
		if err != nil {
			return deletion.Target{}, "", fmt.Errorf("service.EntityDeleter.Describe: %w", err)
		}
		t.Label = r.Name
	case domain.KindFeedback:
		found := false
		for _, f := range d.feedback.Items() {
			if f.ID == id {
				t.Label, found = feedbackLabel(f), true
				break
			}
		}
		if !found {
			return deletion.Target{}, "", fmt.Errorf("service.EntityDeleter.Describe: feedback %s: %w", id, domain.ErrNotFound)
		}
	default:
		return deletion.Target{}, "", fmt.Errorf("service.EntityDeleter.Describe: %w: unknown kind %q", domain.ErrValidation, kind)
	}
	return t, "", nil
}

// Delete removes the target, records it in the activity log and tells the
// operator. It implements deletion.Deleter.
func (d *EntityDeleter) Delete(ctx context.Context, t deletion.Target) error {
	var (
		table string
		err   error
	)
	switch t.Kind {
	case domain.KindStop:
		table, err = "stops", d.stops.Delete(ctx, t.ID)
	case domain.KindRoute:
		table, err = "routes", d.routes.Delete(ctx, t.ID)
	case domain.KindFeedback:
		table, err = "feedback", d.feedback.Delete(ctx, t.ID)
	default:
		return fmt.Errorf("service.EntityDeleter.Delete: %w: unknown kind %q", domain.ErrValidation, t.Kind)
	}
	if err != nil {
		if d.notifier != nil {
			d.notifier.Show(notice.KindError, err.Error())
		}
		return fmt.Errorf("service.EntityDeleter.Delete: %w", err)
	}

	d.audit.Record(ctx, audit.ActionDeletedItem, fmt.Sprintf("Table: %s, ID: %s, Name: %s", table, t.ID, t.Label))
	if d.observer != nil {
		d.observer.Deleted(string(t.Kind))
	}
	if d.notifier != nil {
		d.notifier.Show(notice.KindSuccess, fmt.Sprintf("'%s' deleted.", t.Label))
	}
	return nil
}

func feedbackLabel(f domain.Feedback) string {
	msg := f.Message
	if utf8.RuneCountInString(msg) > feedbackLabelRunes {
		msg = string([]rune(msg)[:feedbackLabelRunes]) + "..."
	}
	return f.UserName + ": " + msg
}
