// Package deletion gates destructive actions behind a confirmation prompt
// that cannot be confirmed until a countdown has run out.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
)

// DefaultCountdown is the number of one-second steps before confirm unlocks.
const DefaultCountdown = 5

// Step is the length of one countdown step.
const Step = time.Second

var (
	// ErrDeletionPending is returned when a second deletion is requested
	// while one is awaiting confirmation.
	ErrDeletionPending = errors.New("a deletion is already awaiting confirmation")

	// ErrCountdownActive is returned by Confirm before the countdown ends.
	ErrCountdownActive = errors.New("confirmation countdown still running")

	// ErrNothingPending is returned by Confirm when no deletion was requested.
	ErrNothingPending = fmt.Errorf("%w: no deletion awaiting confirmation", domain.ErrNotFound)
)

// Target identifies the entity to delete.
type Target struct {
	Kind  domain.EntityKind `json:"kind"`
	ID    uuid.UUID         `json:"id"`
	Label string            `json:"label"`
}

// Deleter performs the confirmed deletion.
type Deleter interface {
	Delete(ctx context.Context, t Target) error
}

// Prompt is the open confirmation dialog.
type Prompt struct {
	Target     Target `json:"target"`
	Message    string `json:"message"`
	Remaining  int    `json:"remaining"`
	CanConfirm bool   `json:"can_confirm"`
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Guard holds at most one pending deletion. The countdown is measured from
// the moment the prompt opened, so every step lasts a full Step.
type Guard struct {
	countdown int
	clock     Clock
	deleter   Deleter
	log       *slog.Logger

	mu      sync.Mutex
	pending *Prompt
	opened  time.Time
}

// New returns a Guard. A countdown below one uses DefaultCountdown and a nil
// clock reads the wall clock.
func New(countdown int, clock Clock, deleter Deleter, log *slog.Logger) *Guard {
	if countdown < 1 {
		countdown = DefaultCountdown
	}
	if clock == nil {
		clock = wallClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guard{countdown: countdown, clock: clock, deleter: deleter, log: log}
}

// Request opens the confirmation prompt and starts the countdown.
func (g *Guard) Request(t Target, message string) (Prompt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		return g.promptLocked(), ErrDeletionPending
	}
	if message == "" {
		message = fmt.Sprintf("Are you sure you want to permanently delete '%s'?", t.Label)
	}
	g.pending = &Prompt{Target: t, Message: message}
	g.opened = g.clock.Now()
	return g.promptLocked(), nil
}

// promptLocked returns the open prompt with the countdown as of now.
func (g *Guard) promptLocked() Prompt {
	p := *g.pending
	elapsed := int(g.clock.Now().Sub(g.opened) / Step)
	p.Remaining = max(g.countdown-max(elapsed, 0), 0)
	p.CanConfirm = p.Remaining == 0
	return p
}

// Pending returns the open prompt.
func (g *Guard) Pending() (Prompt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return Prompt{}, false
	}
	return g.promptLocked(), true
}

// Confirm runs the deletion once the countdown is over. The prompt closes
// whether or not the deletion succeeds.
func (g *Guard) Confirm(ctx context.Context) (Target, error) {
	g.mu.Lock()
	if g.pending == nil {
		g.mu.Unlock()
		return Target{}, ErrNothingPending
	}
	p := g.promptLocked()
	if !p.CanConfirm {
		g.mu.Unlock()
		return p.Target, ErrCountdownActive
	}
	g.pending = nil
	g.mu.Unlock()

	if err := g.deleter.Delete(ctx, p.Target); err != nil {
		return p.Target, fmt.Errorf("deletion.Guard.Confirm: %w", err)
	}
	g.log.Info("entity deleted", "kind", p.Target.Kind, "id", p.Target.ID)
	return p.Target, nil
}

// Cancel closes the prompt without side effects. It reports whether a
// deletion was pending.
func (g *Guard) Cancel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	had := g.pending != nil
	g.pending = nil
	return had
}

// LockSession drops any pending deletion.
func (g *Guard) LockSession(context.Context) { g.Cancel() }

// UnlockSession is a no-op; a new deletion must be requested after resume.
func (g *Guard) UnlockSession(context.Context) {}
