package engine

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbridge/fixgo/internal/fix/encode"
	"github.com/quantbridge/fixgo/internal/fix/stream"
	"github.com/quantbridge/fixgo/internal/fix/tag"
	"github.com/quantbridge/fixgo/pkg/fixlog"
	"github.com/quantbridge/fixgo/pkg/store/memstore"
)

// peerMessage builds a message as the counterparty would send it: tags are
// dispatched by number regardless of where they're pushed, so CompID
// fields can simply be pushed onto the body alongside the message's own
// fields.
func peerMessage(msgType byte, msgSeqNum uint32, senderCompID, targetCompID string, extra func(*encode.MessageBuilder)) []byte {
	b := encode.NewMessageBuilder("FIX.4.2", msgType)
	b.PushString(tag.SenderCompID, senderCompID)
	b.PushString(tag.TargetCompID, targetCompID)
	if extra != nil {
		extra(b)
	}
	headers := encode.NewAdditionalHeaders(nil)
	var buf []byte
	w := writerFunc(func(p []byte) (int, error) {
		buf = append(buf, p...)
		return len(p), nil
	})
	_ = b.Build(w, msgSeqNum, headers, time.Now())
	return buf
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func newTestEngine(t *testing.T, engineType EngineType) (*Engine, *Handle, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() { local.Close(); remote.Close() })

	wireLog, err := fixlog.Open(t.TempDir(), "SELLER", "BUYER")
	require.NoError(t, err)
	t.Cleanup(func() { wireLog.Disconnect() })

	settings := Settings{
		SenderCompID: "SELLER",
		TargetCompID: "BUYER",
		BeginString:  "FIX.4.2",
		Epoch:        "E1",
		HeartBtInt:   30 * time.Second,
		EngineType:   engineType,
	}
	e, h := New(settings, local, memstore.New(), wireLog)
	return e, h, remote
}

// TestAcceptorLogonHandshake drives an Acceptor engine through a full
// Logon handshake initiated by a simulated peer, and confirms the engine
// echoes a Logon back.
func TestAcceptorLogonHandshake(t *testing.T) {
	e, h, remote := newTestEngine(t, Acceptor)

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

	// Give awaitInitialLogonRequest a moment to register before the peer
	// speaks, so the Logon reply channel is already wired up.
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

	reader := stream.NewReader(remote)
	reply, err := reader.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(reply), "35=A\x01")

	cancel()
	<-runErr
}

// TestApplicationSendIsDeliveredAfterLogon confirms a Send request queued
// after Logon is actually written to the wire.
func TestApplicationSendIsDeliveredAfterLogon(t *testing.T) {
	e, h, remote := newTestEngine(t, Acceptor)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	go func() { _, _ = h.Logon(ctx) }()
	time.Sleep(20 * time.Millisecond)

	logonBytes := peerMessage(tag.MsgTypeLogon, 1, "BUYER", "SELLER", func(b *encode.MessageBuilder) {
		b.PushString(tag.EncryptMethod, "0")
		b.PushString(tag.HeartBtInt, "30")
	})
	_, err := remote.Write(logonBytes)
	require.NoError(t, err)

	reader := stream.NewReader(remote)
	_, err = reader.ReadMessage() // consume the Logon echo
	require.NoError(t, err)

	builder := encode.NewMessageBuilder("FIX.4.2", 'D')
	builder.PushString(11, "ORDER-1")
	sendResult := make(chan bool, 1)
	go func() {
		ok, err := h.Send(ctx, builder)
		require.NoError(t, err)
		sendResult <- ok
	}()

	msg, err := reader.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "35=D\x01")
	assert.Contains(t, string(msg), "11=ORDER-1\x01")

	select {
	case ok := <-sendResult:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for send result")
	}

	cancel()
	<-runErr
}

// TestLogoutRequestEndsSession confirms an application-driven Logout
// produces a Logout message and ends the Run loop once acknowledged.
func TestLogoutRequestEndsSession(t *testing.T) {
	e, h, remote := newTestEngine(t, Acceptor)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	go func() { _, _ = h.Logon(ctx) }()
	time.Sleep(20 * time.Millisecond)

	logonBytes := peerMessage(tag.MsgTypeLogon, 1, "BUYER", "SELLER", func(b *encode.MessageBuilder) {
		b.PushString(tag.EncryptMethod, "0")
		b.PushString(tag.HeartBtInt, "30")
	})
	_, err := remote.Write(logonBytes)
	require.NoError(t, err)

	reader := stream.NewReader(remote)
	_, err = reader.ReadMessage()
	require.NoError(t, err)

	logoutResult := make(chan bool, 1)
	go func() {
		ok, _ := h.Logout(ctx)
		logoutResult <- ok
	}()

	msg, err := reader.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "35=5\x01")

	logoutReply := peerMessage(tag.MsgTypeLogout, 2, "BUYER", "SELLER", nil)
	_, err = remote.Write(logoutReply)
	require.NoError(t, err)

	select {
	case ok := <-logoutResult:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for logout result")
	}

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after logout")
	}
}
