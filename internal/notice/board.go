// Package notice holds the operator notice banner and pushes every change to
// connected consoles over websocket.
package notice

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultDismissAfter is how long a transient notice stays up.
const DefaultDismissAfter = 3 * time.Second

// Kind is the severity of a notice.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notice is the banner currently shown. Sticky notices stay until cleared.
type Notice struct {
	ID        uint64    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Sticky    bool      `json:"sticky"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher receives every banner change. n is nil when the banner clears.
type Publisher interface {
	Publish(n *Notice)
}

// Board is the single-slot notice banner. A new notice replaces the current
// one.
type Board struct {
	dismissAfter time.Duration
	publisher    Publisher

	mu      sync.Mutex
	seq     uint64
	current *Notice
	timer   *time.Timer
}

// NewBoard returns an empty board. publisher may be nil.
func NewBoard(dismissAfter time.Duration, publisher Publisher) *Board {
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	return &Board{dismissAfter: dismissAfter, publisher: publisher}
}

// Show displays a transient notice that dismisses itself.
func (b *Board) Show(kind Kind, message string) {
	b.put(kind, message, false)
}

// Warn shows the sticky inactivity countdown for the given remaining time.
func (b *Board) Warn(remaining time.Duration) {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 0 {
		secs = 0
	}
	b.put(KindWarning, fmt.Sprintf("Session expiring in %ds due to inactivity. Move mouse to cancel.", secs), true)
}

// ClearWarning removes the banner only if it is the sticky inactivity
// warning. Transient warnings run out on their own timer.
func (b *Board) ClearWarning() {
	b.mu.Lock()
	if b.current == nil || b.current.Kind != KindWarning || !b.current.Sticky {
		b.mu.Unlock()
		return
	}
	b.clearLocked()
	b.mu.Unlock()
	b.publish(nil)
}

// Dismiss removes whatever is shown.
func (b *Board) Dismiss() {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return
	}
	b.clearLocked()
	b.mu.Unlock()
	b.publish(nil)
}

// Current returns a copy of the banner, or nil.
func (b *Board) Current() *Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil
	}
	n := *b.current
	return &n
}

func (b *Board) put(kind Kind, message string, sticky bool) {
	b.mu.Lock()
	b.stopTimerLocked()
	b.seq++
	n := &Notice{ID: b.seq, Kind: kind, Message: message, Sticky: sticky, CreatedAt: time.Now()}
	b.current = n
	if !sticky {
		id := n.ID
		b.timer = time.AfterFunc(b.dismissAfter, func() { b.expire(id) })
	}
	snapshot := *n
	b.mu.Unlock()
	b.publish(&snapshot)
}

func (b *Board) expire(id uint64) {
	b.mu.Lock()
	if b.current == nil || b.current.ID != id {
		b.mu.Unlock()
		return
	}
	b.current = nil
	b.timer = nil
	b.mu.Unlock()
	b.publish(nil)
}

func (b *Board) clearLocked() {
	b.stopTimerLocked()
	b.current = nil
}

func (b *Board) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Board) publish(n *Notice) {
	if b.publisher != nil {
		b.publisher.Publish(n)
	}
}
