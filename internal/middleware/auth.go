package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/commutewise/console/internal/identity"
)

// Authenticator verifies a session token.
type Authenticator interface {
	Authenticate(token string) (identity.Identity, error)
}

// LockState reports whether the inactivity supervisor has locked the session.
type LockState interface {
	Locked() bool
}

// NewBearerAuth returns a middleware that requires a valid session token and
// stores the resolved identity in the request context. The token is read
// from the Authorization header, or from the access_token query parameter
// for websocket upgrades, which cannot carry custom headers from a browser.
func NewBearerAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing session token")
				return
			}
			id, err := auth.Authenticate(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired session token")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

// NewSessionGate returns a middleware that answers 423 Locked while the
// session is locked for inactivity.
func NewSessionGate(state LockState) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if state.Locked() {
				writeError(w, http.StatusLocked, "session_locked", "Session expired due to inactivity. Sign in again to continue.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes the API's error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error errorDetail `json:"error"`
	}{errorDetail{Code: code, Message: message}})
}
