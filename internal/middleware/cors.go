// Package middleware provides the HTTP middleware of the console server:
// request logging, CORS, body size limits, bearer authentication and the
// session-lock gate.
package middleware

import (
	"net/http"
	"slices"

	"github.com/rs/cors"
)

// preflightMaxAge is how long browsers may cache a preflight answer, in seconds.
const preflightMaxAge = 600

// NewCORSHandler allows the console front end at allowedOrigins to call the
// API with a bearer token. A "*" entry allows any origin.
// The request ID is exposed so the console can quote it in bug reports.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         preflightMaxAge,
		// Credentials are carried in the Authorization header, never cookies.
		AllowCredentials: false,
	})
	if slices.Contains(allowedOrigins, "*") {
		c = cors.AllowAll()
	}
	return c.Handler
}
