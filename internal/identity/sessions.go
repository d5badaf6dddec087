// Package identity issues and verifies operator session tokens and carries
// the authenticated operator through request contexts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
)

const issuer = "commutewise-console"

// Identity is an authenticated operator session.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Sessions signs HS256 session tokens and tracks which of them have been
// ended. The console has a single operator at a time; the most recently
// authenticated session is the current one.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
	current string
}

// NewSessions returns a token service. secret must not be empty.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if secret == "" {
		return nil, errors.New("identity.NewSessions: empty signing secret")
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Sessions{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}, nil
}

// Issue signs a new session token for the operator.
func (s *Sessions) Issue(subject, email string) (string, Identity, error) {
	now := s.now()
	id := Identity{
		ID:        subject,
		Email:     email,
		SessionID: uuid.NewString(),
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ID:        id.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("identity.Sessions.Issue: %w", err)
	}
	return signed, id, nil
}

// Authenticate verifies a token and makes its session the current one.
func (s *Sessions) Authenticate(token string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if c.Subject == "" || c.ID == "" {
		return Identity{}, fmt.Errorf("%w: token lacks subject or id", domain.ErrUnauthenticated)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.revoked[c.ID]; gone {
		return Identity{}, fmt.Errorf("%w: session ended", domain.ErrUnauthenticated)
	}
	s.current = c.ID
	return Identity{
		ID:        c.Subject,
		Email:     c.Email,
		SessionID: c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// EndSession revokes the current session and the one carried by ctx, if any.
func (s *Sessions) EndSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	until := s.now().Add(s.ttl)
	if s.current != "" {
		s.revoked[s.current] = until
		s.current = ""
	}
	if id, ok := FromContext(ctx); ok && id.SessionID != "" {
		s.revoked[id.SessionID] = until
	}
	return nil
}

// CurrentIdentity returns the operator carried by ctx if that session is
// still live.
func (s *Sessions) CurrentIdentity(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, domain.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.revoked[id.SessionID]; gone {
		return Identity{}, fmt.Errorf("%w: session ended", domain.ErrUnauthenticated)
	}
	return id, nil
}

func (s *Sessions) pruneLocked() {
	now := s.now()
	for id, until := range s.revoked {
		if now.After(until) {
			delete(s.revoked, id)
		}
	}
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
