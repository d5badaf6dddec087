// Package audit writes the admin activity log. Recording never blocks or
// fails the mutation being audited: records are written in the background
// and sink failures are only logged and counted.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/identity"
)

// Action labels of the activity log.
const (
	ActionCreatedNode  = "Created Node"
	ActionUpdatedNode  = "Updated Node"
	ActionCreatedRoute = "Created Route"
	ActionUpdatedRoute = "Updated Route"
	ActionDeletedItem  = "Deleted Item"
)

// Sink stores or forwards one audit record.
type Sink interface {
	Write(ctx context.Context, rec domain.AuditRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec domain.AuditRecord) error

func (f SinkFunc) Write(ctx context.Context, rec domain.AuditRecord) error { return f(ctx, rec) }

// Observer counts failed sink writes.
type Observer interface {
	AuditFailure()
}

// Recorder fans every record out to its sinks in the background.
type Recorder struct {
	sinks    []Sink
	observer Observer
	log      *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

// NewRecorder returns a Recorder. Each background write is bounded by
// timeout (default 5s). observer and log may be nil.
func NewRecorder(log *slog.Logger, observer Observer, timeout time.Duration, sinks ...Sink) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{sinks: sinks, observer: observer, log: log, timeout: timeout, now: time.Now}
}

// Record builds a record for the operator in ctx and writes it to every sink
// without waiting. It returns the record that was queued.
func (r *Recorder) Record(ctx context.Context, action, details string) domain.AuditRecord {
	rec := domain.AuditRecord{
		ID:        uuid.New(),
		Action:    action,
		Details:   details,
		CreatedAt: r.now().UTC(),
	}
	if id, ok := identity.FromContext(ctx); ok {
		rec.ActorID, rec.ActorEmail = id.ID, id.Email
	}

	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		wctx, cancel := context.WithTimeout(bg, r.timeout)
		defer cancel()
		for _, s := range r.sinks {
			if err := s.Write(wctx, rec); err != nil {
				r.log.Warn("audit write failed", "action", rec.Action, "error", err)
				if r.observer != nil {
					r.observer.AuditFailure()
				}
			}
		}
	}()
	return rec
}

// Wait blocks until every queued record has been handled.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
