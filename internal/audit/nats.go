package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/commutewise/console/internal/domain"
)

// BrokerObserver is told when the broker connection goes up or down.
type BrokerObserver interface {
	AuditBroker(up bool)
}

// NATSSink publishes audit records as JSON on subject.<action>.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to url. m and log may be nil.
func NewNATSSink(url, subject string, m BrokerObserver, log *slog.Logger) (*NATSSink, error) {
	if log == nil {
		log = slog.Default()
	}
	setUp := func(up bool) {
		if m != nil {
			m.AuditBroker(up)
		}
	}
	nc, err := nats.Connect(url,
		nats.Name("commutewise-console"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			setUp(false)
			log.Warn("audit broker disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			setUp(true)
			log.Info("audit broker reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			setUp(false)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("audit.NewNATSSink: %w", err)
	}
	setUp(true)
	return &NATSSink{nc: nc, subject: subject}, nil
}

// Write implements Sink.
func (s *NATSSink) Write(_ context.Context, rec domain.AuditRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit.NATSSink.Write: %w", err)
	}
	if err := s.nc.Publish(subjectFor(s.subject, rec.Action), b); err != nil {
		return fmt.Errorf("audit.NATSSink.Write: %w", err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		_ = s.nc.Drain()
		s.nc.Close()
	}
}

// subjectFor appends the action as a single NATS token: "Created Node"
// becomes "created_node".
func subjectFor(base, action string) string {
	token := strings.ToLower(strings.TrimSpace(action))
	token = strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_").Replace(token)
	if token == "" {
		token = "_"
	}
	return base + "." + token
}
