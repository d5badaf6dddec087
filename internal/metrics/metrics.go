// Package metrics exposes console counters on a private Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the observer interfaces of the workflow, geometry,
// supervisor, optimistic, service and audit packages.
type Collector struct {
	reg *prometheus.Registry

	Transitions       *prometheus.CounterVec // from, to
	GeometryRequests  *prometheus.CounterVec // outcome: ok|no_path|error
	Lockouts          prometheus.Counter
	Rollbacks         prometheus.Counter
	Deletions         *prometheus.CounterVec // kind
	AuditFailures     prometheus.Counter
	AuditBrokerUp     prometheus.Gauge
	NoticeConnections prometheus.GaugeFunc
}

// NewCollector registers every metric. connections may be nil; when set it
// reports the number of open notice websockets.
func NewCollector(connections func() int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_workflow_transitions_total",
			Help: "Editor state transitions.",
		}, []string{"from", "to"}),
		GeometryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_geometry_requests_total",
			Help: "Routing service requests by outcome.",
		}, []string{"outcome"}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_session_lockouts_total",
			Help: "Sessions locked after inactivity.",
		}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_optimistic_rollbacks_total",
			Help: "Optimistic mutations restored after a failed write.",
		}),
		Deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_deletions_total",
			Help: "Confirmed deletions by entity kind.",
		}, []string{"kind"}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_audit_failures_total",
			Help: "Audit records that could not be written to a sink.",
		}),
		AuditBrokerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_audit_broker_connected",
			Help: "1 if the audit NATS connection is established, 0 otherwise.",
		}),
	}
	if connections == nil {
		connections = func() int { return 0 }
	}
	c.NoticeConnections = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "console_notice_connections",
		Help: "Open notice websocket connections.",
	}, func() float64 { return float64(connections()) })

	reg.MustRegister(
		c.Transitions, c.GeometryRequests,
		c.Lockouts, c.Rollbacks, c.Deletions,
		c.AuditFailures, c.AuditBrokerUp, c.NoticeConnections,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

func (c *Collector) WorkflowTransition(from, to string) {
	c.Transitions.WithLabelValues(from, to).Inc()
}

func (c *Collector) GeometryRequest(outcome string) {
	c.GeometryRequests.WithLabelValues(outcome).Inc()
}

func (c *Collector) SessionLockout()     { c.Lockouts.Inc() }
func (c *Collector) OptimisticRollback() { c.Rollbacks.Inc() }
func (c *Collector) Deleted(kind string) { c.Deletions.WithLabelValues(kind).Inc() }
func (c *Collector) AuditFailure()       { c.AuditFailures.Inc() }

// AuditBroker records whether the audit broker connection is up.
func (c *Collector) AuditBroker(up bool) {
	if up {
		c.AuditBrokerUp.Set(1)
		return
	}
	c.AuditBrokerUp.Set(0)
}
