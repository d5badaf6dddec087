// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the console server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	CORSOrigins []string

	// SessionSecret signs session tokens. Required.
	SessionSecret string

	// SessionTTL is the lifetime of an issued session token. Defaults to 8h.
	SessionTTL time.Duration

	// InactivityTimeout locks the session after this long without input. Defaults to 180s.
	InactivityTimeout time.Duration

	// InactivityWarning is the window before expiry in which the countdown
	// notice is shown. Defaults to 10s.
	InactivityWarning time.Duration

	// DeleteCountdown is the number of one-second ticks before a deletion can be confirmed.
	DeleteCountdown int

	// RoutingBaseURL and RoutingProfile address the OSRM route service.
	RoutingBaseURL string
	RoutingProfile string

	// NATSURL enables the audit fan-out when set.
	NATSURL string

	// AuditSubject is the NATS subject prefix for audit records.
	AuditSubject string

	// MigrateOnStart applies pending goose migrations at boot. Defaults to true.
	MigrateOnStart bool

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Load reads configuration from environment variables and returns a Config.
// Every missing required variable and every malformed value is reported in
// one error.
func Load() (Config, error) {
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CORSOrigins:    splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RoutingBaseURL: strings.TrimRight(getEnv("ROUTING_BASE_URL", "https://router.project-osrm.org"), "/"),
		RoutingProfile: getEnv("ROUTING_PROFILE", "driving"),
		NATSURL:        os.Getenv("NATS_URL"),
		AuditSubject:   getEnv("AUDIT_SUBJECT", "console.audit"),
	}

	var missing, invalid []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	intVar := func(key string, fallback int) int {
		v, err := getInt(key, fallback)
		if err != nil {
			invalid = append(invalid, key)
		}
		return v
	}
	cfg.SessionTTL = time.Duration(intVar("SESSION_TTL_MIN", 480)) * time.Minute
	cfg.InactivityTimeout = time.Duration(intVar("INACTIVITY_TIMEOUT_SEC", 180)) * time.Second
	cfg.InactivityWarning = time.Duration(intVar("INACTIVITY_WARNING_SEC", 10)) * time.Second
	cfg.DeleteCountdown = intVar("DELETE_COUNTDOWN_TICKS", 5)
	cfg.MaxBodyBytes = int64(intVar("MAX_BODY_BYTES", 1<<20))

	migrate, err := strconv.ParseBool(getEnv("MIGRATE_ON_START", "true"))
	if err != nil {
		invalid = append(invalid, "MIGRATE_ON_START")
	}
	cfg.MigrateOnStart = migrate

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "required environment variables not set: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid values for: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt parses a positive integer variable. Unset means fallback.
func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback, fmt.Errorf("%s: %q is not a positive integer", key, v)
	}
	return n, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
