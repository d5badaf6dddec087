package domain

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackStatus is the triage state of a rider report.
type FeedbackStatus string

const (
	FeedbackPending  FeedbackStatus = "Pending"
	FeedbackResolved FeedbackStatus = "Resolved"
)

// Valid reports whether s is a known status.
func (s FeedbackStatus) Valid() bool {
	return s == FeedbackPending || s == FeedbackResolved
}

// Feedback is a rider report awaiting triage.
type Feedback struct {
	ID        uuid.UUID      `json:"id"`
	UserName  string         `json:"user_name"`
	Message   string         `json:"message"`
	Status    FeedbackStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditRecord is one entry of the admin activity log.
type AuditRecord struct {
	ID         uuid.UUID `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorEmail string    `json:"actor_email"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

// Counts backs the dashboard tiles.
type Counts struct {
	Routes           int64 `json:"routes"`
	Stops            int64 `json:"stops"`
	Feedback         int64 `json:"feedback"`
	ResolvedFeedback int64 `json:"resolved_feedback"`
}

// EntityKind names a deletable collection.
type EntityKind string

const (
	KindStop     EntityKind = "stop"
	KindRoute    EntityKind = "route"
	KindFeedback EntityKind = "feedback"
)
