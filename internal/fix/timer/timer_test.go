package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbridge/fixgo/internal/fix/session"
)

func TestDurationDerivations(t *testing.T) {
	assert.Equal(t, 17*time.Second, TestRequestDuration(10*time.Second))
	assert.Equal(t, 20*time.Second, LogoutDuration(10*time.Second))
}

func TestNextExpiringPicksSooner(t *testing.T) {
	ft := NewFixTimeouts(10*time.Millisecond, 100*time.Millisecond, 200*time.Millisecond)
	next := ft.NextExpiring()
	assert.Equal(t, session.EvSendHeartbeat, next.Event().Kind)
}

func TestResetHeartbeatPushesDeadlineOut(t *testing.T) {
	ft := NewFixTimeouts(5*time.Millisecond, 100*time.Millisecond, 200*time.Millisecond)
	before := ft.NextExpiring().NextInstant()
	time.Sleep(2 * time.Millisecond)
	ft.ResetHeartbeat()
	after := ft.NextExpiring().NextInstant()
	assert.True(t, after.After(before))
}

func TestStartLogoutTimeoutSwitchesNextExpiring(t *testing.T) {
	ft := NewFixTimeouts(5*time.Millisecond, 10*time.Millisecond, 50*time.Millisecond)
	ft.StartLogoutTimeout()
	next := ft.NextExpiring()
	assert.Equal(t, session.EvLogoutExpired, next.Event().Kind)
}

func TestSetDurationsRenegotiatesAll(t *testing.T) {
	ft := NewFixTimeouts(time.Second, 2*time.Second, 3*time.Second)
	ft.SetDurations(5*time.Millisecond, 100*time.Millisecond, 200*time.Millisecond)
	next := ft.NextExpiring()
	require.Equal(t, session.EvSendHeartbeat, next.Event().Kind)
	assert.True(t, next.Remaining() <= 5*time.Millisecond)
}

func TestRemainingClampsToZero(t *testing.T) {
	to := newTimeout(time.Now().Add(-time.Second), time.Second, session.Event{Kind: session.EvSendHeartbeat})
	assert.Equal(t, time.Duration(0), to.Remaining())
}
