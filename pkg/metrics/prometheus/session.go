package prometheus

import (
	"github.com/quantbridge/fixgo/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sessionMetrics is the Prometheus implementation of metrics.SessionMetrics.
type sessionMetrics struct {
	messagesIn     *prometheus.CounterVec
	messagesOut    *prometheus.CounterVec
	resendRequests prometheus.Counter
	sequenceGaps   prometheus.Counter
	sessionState   *prometheus.GaugeVec
	reconnects     prometheus.Counter
}

func init() {
	metrics.RegisterSessionMetricsConstructor(newSessionMetrics)
}

// newSessionMetrics creates a new Prometheus-backed session metrics
// instance. Returns nil if metrics are not enabled (metrics.InitRegistry
// not called with on=true).
func newSessionMetrics() metrics.SessionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &sessionMetrics{
		messagesIn: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixgo_messages_in_total",
				Help: "Total number of FIX messages received, by MsgType",
			},
			[]string{"msg_type"},
		),
		messagesOut: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixgo_messages_out_total",
				Help: "Total number of FIX messages sent, by MsgType",
			},
			[]string{"msg_type"},
		),
		resendRequests: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fixgo_resend_requests_total",
				Help: "Total number of ResendRequest messages received",
			},
		),
		sequenceGaps: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fixgo_sequence_gaps_total",
				Help: "Total number of incoming sequence number gaps detected",
			},
		),
		sessionState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fixgo_session_state",
				Help: "Current session state (1 for the active state label, 0 otherwise), by epoch",
			},
			[]string{"epoch", "state"},
		),
		reconnects: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fixgo_reconnects_total",
				Help: "Total number of times the initiator has reconnected",
			},
		),
	}
}

func (m *sessionMetrics) RecordMessageIn(msgType string) {
	if m == nil {
		return
	}
	m.messagesIn.WithLabelValues(msgType).Inc()
}

func (m *sessionMetrics) RecordMessageOut(msgType string) {
	if m == nil {
		return
	}
	m.messagesOut.WithLabelValues(msgType).Inc()
}

func (m *sessionMetrics) RecordResendRequest() {
	if m == nil {
		return
	}
	m.resendRequests.Inc()
}

func (m *sessionMetrics) RecordSequenceGap(expected, received uint32) {
	if m == nil {
		return
	}
	m.sequenceGaps.Inc()
}

func (m *sessionMetrics) SetSessionState(epoch string, state string) {
	if m == nil {
		return
	}
	m.sessionState.Reset()
	m.sessionState.WithLabelValues(epoch, state).Set(1)
}

func (m *sessionMetrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}
