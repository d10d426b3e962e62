package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's prometheus collectors. Constructed against a
// registerer so tests can use independent instances.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	ActiveParticipants prometheus.Gauge
	AttemptsCompleted  *prometheus.CounterVec
	HandshakeFailures  prometheus.Counter
	RejectedMessages   *prometheus.CounterVec
}

// New registers and returns the engine collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_engine_active_sessions",
			Help: "Number of live quiz sessions.",
		}),
		ActiveParticipants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_engine_active_participants",
			Help: "Number of participants across all live sessions.",
		}),
		AttemptsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_engine_attempts_completed_total",
			Help: "Completed attempts by completion reason.",
		}, []string{"reason"}),
		HandshakeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_engine_handshake_failures_total",
			Help: "Secure channel handshakes that failed and closed the connection.",
		}),
		RejectedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_engine_rejected_messages_total",
			Help: "Protocol messages rejected, by error code.",
		}, []string{"code"}),
	}
}
