package prometheus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbridge/fixgo/pkg/metrics"
)

// This test process runs in its own binary, so metrics' package-level
// registry is fresh: InitRegistry has not been called by anything else yet.
func TestNewSessionMetricsRecordsAgainstRegistry(t *testing.T) {
	metrics.InitRegistry(true)
	reg := metrics.GetRegistry()

	m := newSessionMetrics()
	require.NotNil(t, m)

	m.RecordMessageIn("A")
	m.RecordMessageOut("D")
	m.RecordResendRequest()
	m.RecordSequenceGap(5, 7)
	m.SetSessionState("E1", "inSession")
	m.RecordReconnect()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSessionMetricsMethodsAreNilSafe(t *testing.T) {
	var m *sessionMetrics
	m.RecordMessageIn("A")
	m.RecordMessageOut("D")
	m.RecordResendRequest()
	m.RecordSequenceGap(1, 2)
	m.SetSessionState("E1", "inSession")
	m.RecordReconnect()
}
