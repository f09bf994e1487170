// Package timer implements the session's heartbeat/test-request/logout
// timeout wheel (§4.7): three independently-resettable deadlines, of which
// only the nearest relevant one matters to the engine's event loop at any
// moment.
package timer

import (
	"time"

	"github.com/quantbridge/fixgo/internal/fix/session"
)

// TestRequestDuration derives how long the session waits for activity
// before probing with a TestRequest: 1.7x the heartbeat interval, so a
// single missed heartbeat doesn't immediately trigger a probe.
func TestRequestDuration(heartbeat time.Duration) time.Duration {
	return heartbeat * 17 / 10
}

// LogoutDuration derives how long the session waits for the peer to answer
// our Logout before giving up: twice the heartbeat interval.
func LogoutDuration(heartbeat time.Duration) time.Duration {
	return heartbeat * 2
}

// Timeout is a single resettable deadline paired with the Event to raise
// when it elapses.
type Timeout struct {
	nextInstant time.Time
	duration    time.Duration
	event       session.Event
}

func newTimeout(instant time.Time, duration time.Duration, event session.Event) *Timeout {
	return &Timeout{nextInstant: instant, duration: duration, event: event}
}

// Reset pushes the deadline out by this Timeout's duration, starting from
// now.
func (t *Timeout) Reset() {
	t.nextInstant = time.Now().Add(t.duration)
}

// SetDuration changes the timeout's period and immediately resets it.
func (t *Timeout) SetDuration(d time.Duration) {
	t.duration = d
	t.Reset()
}

// NextInstant is the wall-clock time this timeout next fires.
func (t *Timeout) NextInstant() time.Time { return t.nextInstant }

// Event is the Event to feed the state machine when this timeout fires.
func (t *Timeout) Event() session.Event { return t.event }

// Remaining is the duration from now until this timeout fires, clamped to
// zero so engine.go can feed it straight into time.NewTimer.
func (t *Timeout) Remaining() time.Duration {
	d := time.Until(t.nextInstant)
	if d < 0 {
		return 0
	}
	return d
}

// FixTimeouts is the three-deadline wheel a live session drives: a
// Heartbeat deadline fires when we've been quiet too long and should send
// one ourselves; a TestRequest deadline fires when the peer has been
// quiet too long and we should probe; a Logout deadline fires when our
// own Logout has gone unanswered and the connection should be torn down. Only one of these governs NextExpiring at a time:
// the logout deadline supersedes the other two once a logout sequence
// has started.
type FixTimeouts struct {
	heartbeat     *Timeout
	testRequest   *Timeout
	logout        *Timeout
	awaitingLogout bool
}

// NewFixTimeouts builds a wheel with all three deadlines starting fresh
// from now.
func NewFixTimeouts(heartbeatDur, testRequestDur, logoutDur time.Duration) *FixTimeouts {
	now := time.Now()
	return &FixTimeouts{
		heartbeat:   newTimeout(now.Add(heartbeatDur), heartbeatDur, session.Event{Kind: session.EvSendHeartbeat}),
		testRequest: newTimeout(now.Add(testRequestDur), testRequestDur, session.Event{Kind: session.EvSendTestRequest}),
		logout:      newTimeout(now.Add(logoutDur), logoutDur, session.Event{Kind: session.EvLogoutExpired}),
	}
}

// NextExpiring returns whichever Timeout the engine should wait on next:
// the sooner of heartbeat/test-request ordinarily, or the logout deadline
// once StartLogoutTimeout has been called.
func (f *FixTimeouts) NextExpiring() *Timeout {
	switch {
	case !f.awaitingLogout && f.heartbeat.nextInstant.Before(f.testRequest.nextInstant):
		return f.heartbeat
	case !f.awaitingLogout:
		return f.testRequest
	default:
		return f.logout
	}
}

// ResetHeartbeat pushes the heartbeat deadline out again, called whenever
// we send any message (it resets the "how long since we last spoke"
// clock).
func (f *FixTimeouts) ResetHeartbeat() { f.heartbeat.Reset() }

// ResetTestRequest pushes the test-request deadline out again, called
// whenever the peer sends any message.
func (f *FixTimeouts) ResetTestRequest() { f.testRequest.Reset() }

// StartLogoutTimeout switches NextExpiring over to the logout deadline:
// our Logout was just sent, and the session now has a bounded amount of
// time to hear back before being torn down.
func (f *FixTimeouts) StartLogoutTimeout() {
	f.awaitingLogout = true
	f.logout.Reset()
}

// SetDurations renegotiates all three periods at once, as happens when an
// incoming Logon carries a different HeartBtInt than we offered.
func (f *FixTimeouts) SetDurations(heartbeatDur, testRequestDur, logoutDur time.Duration) {
	f.heartbeat.SetDuration(heartbeatDur)
	f.testRequest.SetDuration(testRequestDur)
	f.logout.SetDuration(logoutDur)
}
