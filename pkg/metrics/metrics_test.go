package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetRegistry(t *testing.T) {
	t.Helper()
	registry = nil
	enabled = false
	t.Cleanup(func() {
		registry = nil
		enabled = false
	})
}

func TestInitRegistryDisabled(t *testing.T) {
	resetRegistry(t)
	InitRegistry(false)
	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
}

func TestInitRegistryEnabled(t *testing.T) {
	resetRegistry(t)
	InitRegistry(true)
	assert.True(t, IsEnabled())
	assert.NotNil(t, GetRegistry())
}

func TestInitRegistryIsIdempotent(t *testing.T) {
	resetRegistry(t)
	InitRegistry(true)
	first := GetRegistry()

	// A second call must not replace the registry, even with a different arg.
	InitRegistry(false)
	assert.Same(t, first, GetRegistry())
	assert.True(t, IsEnabled())
}

func TestNewServerServesMetricsEndpoint(t *testing.T) {
	resetRegistry(t)
	InitRegistry(true)

	srv := NewServer(0)
	require.NotNil(t, srv.Handler)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShutdownClosesIdleServer(t *testing.T) {
	resetRegistry(t)
	InitRegistry(true)
	srv := NewServer(0)
	assert.NoError(t, Shutdown(srv, time.Second))
}
