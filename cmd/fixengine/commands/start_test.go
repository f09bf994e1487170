package commands

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbridge/fixgo/internal/fix/engine"
	"github.com/quantbridge/fixgo/pkg/config"
)

func TestSessionSettingsInitiator(t *testing.T) {
	cfg := config.SessionConfig{
		SenderCompID:     "BUYER",
		TargetCompID:     "SELLER",
		BeginString:      "FIX.4.2",
		Epoch:            "E1",
		HeartbeatTimeout: 30 * time.Second,
		EngineType:       "initiator",
		StartTime:        "08:30:00",
		ResetSeqNum:      true,
	}

	settings, err := sessionSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, engine.Initiator, settings.EngineType)
	assert.Equal(t, "BUYER", settings.SenderCompID)
	assert.Equal(t, "SELLER", settings.TargetCompID)
	assert.Equal(t, 8, settings.StartTime.Hour())
	assert.Equal(t, 30, settings.StartTime.Minute())
	assert.True(t, settings.ResetSeqNum)
}

func TestSessionSettingsAcceptor(t *testing.T) {
	cfg := config.SessionConfig{EngineType: "acceptor", StartTime: "00:00:00"}
	settings, err := sessionSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, engine.Acceptor, settings.EngineType)
}

func TestSessionSettingsUnknownEngineType(t *testing.T) {
	cfg := config.SessionConfig{EngineType: "bogus", StartTime: "00:00:00"}
	_, err := sessionSettings(cfg)
	assert.Error(t, err)
}

func TestSessionSettingsInvalidStartTime(t *testing.T) {
	cfg := config.SessionConfig{EngineType: "initiator", StartTime: "not-a-time"}
	_, err := sessionSettings(cfg)
	assert.Error(t, err)
}

func TestDialOrAcceptInitiatorConnectsToListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	accepted := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
		accepted <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := dialOrAccept(ctx, engine.Initiator, ln.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, <-accepted)
}

func TestDialOrAcceptAcceptorHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	type result struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		conn, err := dialOrAccept(ctx, engine.Acceptor, "127.0.0.1:0")
		resultCh <- result{conn, err}
	}()

	cancel()
	r := <-resultCh
	assert.Error(t, r.err)
	assert.Nil(t, r.conn)
}
