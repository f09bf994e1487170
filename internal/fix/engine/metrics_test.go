package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbridge/fixgo/internal/fix/encode"
	"github.com/quantbridge/fixgo/internal/fix/tag"
)

// fakeSessionMetrics records every call for assertions, guarded by a mutex
// since the test goroutine reads it while the engine's Run loop records.
type fakeSessionMetrics struct {
	mu          sync.Mutex
	messagesIn  []string
	messagesOut []string
	resends     int
}

func (f *fakeSessionMetrics) RecordMessageIn(msgType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messagesIn = append(f.messagesIn, msgType)
}

func (f *fakeSessionMetrics) RecordMessageOut(msgType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messagesOut = append(f.messagesOut, msgType)
}

func (f *fakeSessionMetrics) RecordResendRequest() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resends++
}

func (f *fakeSessionMetrics) RecordSequenceGap(expected, received uint32) {}
func (f *fakeSessionMetrics) SetSessionState(epoch string, state string) {}
func (f *fakeSessionMetrics) RecordReconnect()                           {}

func (f *fakeSessionMetrics) snapshotIn() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messagesIn...)
}

func (f *fakeSessionMetrics) snapshotOut() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messagesOut...)
}

func TestEngineWithNilMetricsDoesNotPanic(t *testing.T) {
	e, h, remote := newTestEngine(t, Acceptor)
	assert.Nil(t, e.metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	logonResult := make(chan bool, 1)
	go func() {
		ok, err := h.Logon(ctx)
		require.NoError(t, err)
		logonResult <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	logonBytes := peerMessage(tag.MsgTypeLogon, 1, "BUYER", "SELLER", func(b *encode.MessageBuilder) {
		b.PushString(tag.EncryptMethod, "0")
		b.PushString(tag.HeartBtInt, "30")
	})
	_, err := remote.Write(logonBytes)
	require.NoError(t, err)

	select {
	case ok := <-logonResult:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for logon result")
	}

	cancel()
	<-runErr
}

func TestEngineRecordsMessageInAndOutMetrics(t *testing.T) {
	e, h, remote := newTestEngine(t, Acceptor)
	fm := &fakeSessionMetrics{}
	e.SetMetrics(fm)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	logonResult := make(chan bool, 1)
	go func() {
		ok, err := h.Logon(ctx)
		require.NoError(t, err)
		logonResult <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	logonBytes := peerMessage(tag.MsgTypeLogon, 1, "BUYER", "SELLER", func(b *encode.MessageBuilder) {
		b.PushString(tag.EncryptMethod, "0")
		b.PushString(tag.HeartBtInt, "30")
	})
	_, err := remote.Write(logonBytes)
	require.NoError(t, err)

	select {
	case ok := <-logonResult:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for logon result")
	}

	assert.Contains(t, fm.snapshotIn(), string(tag.MsgTypeLogon))
	assert.Contains(t, fm.snapshotOut(), string(tag.MsgTypeLogon))

	cancel()
	<-runErr
}
