// Package supervisor locks the console after a period without operator input.
//
// The supervisor owns the session clock. Input events reset it; Tick compares
// it against the threshold, raises a countdown warning inside the warning
// window, and locks every registered target once the threshold is reached.
// Only the supervisor moves the console into the locked state.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/commutewise/console/internal/identity"
)

const (
	DefaultThreshold     = 3 * time.Minute
	DefaultWarningWindow = 10 * time.Second
	TickInterval         = time.Second
)

// Input events that count as operator activity.
const (
	EventPointerMove = "pointer_move"
	EventPointerDown = "pointer_down"
	EventKeyDown     = "key_down"
	EventTouchStart  = "touch_start"
	EventScroll      = "scroll"
)

// Recognized reports whether event resets the session clock.
func Recognized(event string) bool {
	switch event {
	case EventPointerMove, EventPointerDown, EventKeyDown, EventTouchStart, EventScroll:
		return true
	}
	return false
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Lockable is anything that must stop accepting work while the session is
// locked.
type Lockable interface {
	LockSession(ctx context.Context)
	UnlockSession(ctx context.Context)
}

// Sessions is the identity side of expiry and resume.
type Sessions interface {
	EndSession(ctx context.Context) error
	CurrentIdentity(ctx context.Context) (identity.Identity, error)
}

// Notifier shows and clears the countdown warning.
type Notifier interface {
	Warn(remaining time.Duration)
	ClearWarning()
}

// Observer counts lockouts.
type Observer interface {
	SessionLockout()
}

// Config holds the timing of the supervisor.
type Config struct {
	Threshold     time.Duration
	WarningWindow time.Duration
}

// Supervisor is the inactivity watchdog.
type Supervisor struct {
	cfg      Config
	clock    Clock
	sessions Sessions
	notifier Notifier
	observer Observer
	log      *slog.Logger
	targets  []Lockable

	mu      sync.Mutex
	last    time.Time
	warning bool
	expired bool
}

// New returns an armed supervisor. Zero config values take the defaults.
// observer and log may be nil.
func New(cfg Config, clock Clock, sessions Sessions, notifier Notifier, observer Observer, log *slog.Logger, targets ...Lockable) *Supervisor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.WarningWindow <= 0 || cfg.WarningWindow > cfg.Threshold {
		cfg.WarningWindow = min(DefaultWarningWindow, cfg.Threshold)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		cfg:      cfg,
		clock:    clock,
		sessions: sessions,
		notifier: notifier,
		observer: observer,
		log:      log,
		targets:  targets,
		last:     clock.Now(),
	}
}

// Touch records operator input. Unrecognized events and events arriving
// after expiry are ignored; the return value reports whether the clock was
// reset.
func (s *Supervisor) Touch(event string) bool {
	if !Recognized(event) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired {
		return false
	}
	s.last = s.clock.Now()
	return true
}

// Tick evaluates the session clock once.
func (s *Supervisor) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		return
	}
	idle := s.clock.Now().Sub(s.last)
	remaining := s.cfg.Threshold - idle

	switch {
	case remaining <= 0:
		s.mu.Unlock()
		s.ForceExpire(ctx)
	case remaining <= s.cfg.WarningWindow:
		s.warning = true
		s.mu.Unlock()
		s.notifier.Warn(remaining)
	default:
		wasWarning := s.warning
		s.warning = false
		s.mu.Unlock()
		if wasWarning {
			s.notifier.ClearWarning()
		}
	}
}

// ForceExpire locks every target, clears the warning and ends the session.
// It is a no-op when already expired.
func (s *Supervisor) ForceExpire(ctx context.Context) {
	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		return
	}
	s.expired = true
	s.warning = false
	s.mu.Unlock()

	for _, t := range s.targets {
		t.LockSession(ctx)
	}
	s.notifier.ClearWarning()
	if err := s.sessions.EndSession(ctx); err != nil {
		s.log.Warn("end session failed", "error", err)
	}
	if s.observer != nil {
		s.observer.SessionLockout()
	}
	s.log.Info("session locked after inactivity", "threshold", s.cfg.Threshold)
}

// Resume re-arms the supervisor and unlocks the targets once the caller
// presents a live identity.
func (s *Supervisor) Resume(ctx context.Context) (identity.Identity, error) {
	id, err := s.sessions.CurrentIdentity(ctx)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("supervisor.Resume: %w", err)
	}

	s.mu.Lock()
	s.expired = false
	s.warning = false
	s.last = s.clock.Now()
	s.mu.Unlock()

	for _, t := range s.targets {
		t.UnlockSession(ctx)
	}
	s.log.Info("session resumed", "operator", id.ID)
	return id, nil
}

// Locked reports whether the session has expired.
func (s *Supervisor) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// Run ticks once per second until ctx is done.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
