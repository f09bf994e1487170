package metrics

// SessionMetrics records the per-connection counters and gauges named in
// the session engine's observability surface: message throughput, resend
// activity, sequence-gap detection, and current session state.
type SessionMetrics interface {
	RecordMessageIn(msgType string)
	RecordMessageOut(msgType string)
	RecordResendRequest()
	RecordSequenceGap(expected, received uint32)
	SetSessionState(epoch string, state string)
	RecordReconnect()
}

// NewSessionMetrics returns the Prometheus-backed SessionMetrics, or nil if
// metrics are disabled. A nil SessionMetrics is safe to hand to the engine,
// which checks for nil before every recording call.
func NewSessionMetrics() SessionMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusSessionMetrics()
}

// newPrometheusSessionMetrics is implemented in pkg/metrics/prometheus/session.go.
// The indirection avoids an import cycle between this package and the
// concrete Prometheus collectors, which must import pkg/metrics to reach
// the shared registry.
var newPrometheusSessionMetrics func() SessionMetrics

// RegisterSessionMetricsConstructor is called by
// pkg/metrics/prometheus's package init to wire the concrete constructor.
func RegisterSessionMetricsConstructor(constructor func() SessionMetrics) {
	newPrometheusSessionMetrics = constructor
}
