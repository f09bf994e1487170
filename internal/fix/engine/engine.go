// Package engine drives a single FIX session end to end: one goroutine
// owns the TCP connection, the session state machine, the timer wheel, and
// the outbox, multiplexing between application requests, bytes off the
// wire, and timer expirations until the session ends (§5). Everything else
// — decoding, the state machine's transition table, framing, resend replay
// — is just a library this loop calls into.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantbridge/fixgo/internal/fix/decode"
	"github.com/quantbridge/fixgo/internal/fix/encode"
	"github.com/quantbridge/fixgo/internal/fix/ferr"
	"github.com/quantbridge/fixgo/internal/fix/session"
	"github.com/quantbridge/fixgo/internal/fix/stream"
	"github.com/quantbridge/fixgo/internal/fix/tag"
	"github.com/quantbridge/fixgo/internal/fix/timer"
	"github.com/quantbridge/fixgo/internal/logger"
	"github.com/quantbridge/fixgo/pkg/bufpool"
	"github.com/quantbridge/fixgo/pkg/fixlog"
	"github.com/quantbridge/fixgo/pkg/metrics"
	"github.com/quantbridge/fixgo/pkg/store"
)

// EngineType distinguishes which side of the connection this session plays:
// an Acceptor waits for the peer's Logon, an Initiator sends its own first.
type EngineType int

const (
	Acceptor EngineType = iota
	Initiator
)

func (t EngineType) String() string {
	if t == Initiator {
		return "initiator"
	}
	return "acceptor"
}

// Settings configures one session. Epoch namespaces this session's
// sequence cursors and message history within the Store, so the same
// backing store can serve multiple CompID pairs (or multiple trading days
// for the same pair, if the caller resets Epoch on rollover).
type Settings struct {
	SenderCompID string
	TargetCompID string
	BeginString  string
	Epoch        string
	HeartBtInt   time.Duration
	EngineType   EngineType
	// StartTime is the time-of-day boundary (only its hour/minute/second
	// are used) an Initiator compares its last send against to decide
	// whether today's connection is a new session.
	StartTime   time.Time
	ResetSeqNum bool
}

type logonRequest struct{ resp chan<- bool }

type sendRequest struct {
	builder *encode.MessageBuilder
	resp    chan<- bool
}

type logoutRequest struct{ resp chan<- bool }

// request is a tagged union over the handful of things the application
// side can ask a running Engine to do.
type request struct {
	logon  *logonRequest
	send   *sendRequest
	logout *logoutRequest
}

const appRingCapacity = 1000

// appRing is the bounded, single-producer/single-consumer delivery path for
// application messages: a full ring drops the oldest entry rather than
// blocking the session loop or the reader goroutine.
type appRing struct {
	ch chan []byte
}

func newAppRing(capacity int) *appRing {
	return &appRing{ch: make(chan []byte, capacity)}
}

func (r *appRing) push(msg []byte) {
	cp := append([]byte(nil), msg...)
	for {
		select {
		case r.ch <- cp:
			return
		default:
		}
		select {
		case <-r.ch:
		default:
		}
	}
}

// Handle is the client-facing side of a running Engine: shareable across
// goroutines, it never reaches into session state directly, only enqueues
// requests and drains delivered application messages.
type Handle struct {
	requests chan request
	messages *appRing
}

// Logon asks the session to perform (or finish waiting for) its Logon
// handshake, reporting whether it succeeded.
func (h *Handle) Logon(ctx context.Context) (bool, error) {
	resp := make(chan bool, 1)
	select {
	case h.requests <- request{logon: &logonRequest{resp: resp}}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-resp:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Send queues an application message for transmission, reporting whether
// it was actually written to the wire (false if the session ended first).
func (h *Handle) Send(ctx context.Context, builder *encode.MessageBuilder) (bool, error) {
	resp := make(chan bool, 1)
	select {
	case h.requests <- request{send: &sendRequest{builder: builder, resp: resp}}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-resp:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Logout asks the session to send a Logout and wait for the peer's
// acknowledgement (or the logout timeout) before tearing down.
func (h *Handle) Logout(ctx context.Context) (bool, error) {
	resp := make(chan bool, 1)
	select {
	case h.requests <- request{logout: &logoutRequest{resp: resp}}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-resp:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Messages is the channel application-level messages (raw, framed wire
// bytes) arrive on as they're accepted by the session.
func (h *Handle) Messages() <-chan []byte { return h.ch() }

func (h *Handle) ch() <-chan []byte { return h.messages.ch }

// Engine owns one session's TCP connection, state machine, timer wheel,
// and outbox. Run drives it to completion; it is not safe to call Run
// concurrently or more than once.
type Engine struct {
	settings Settings

	conn   stream.Conn
	reader *stream.Reader

	store   store.Store
	wireLog fixlog.Logger

	additionalHeaders *encode.AdditionalHeaders

	sm       *session.StateMachine
	timeouts *timer.FixTimeouts

	requests chan request
	messages *appRing

	metrics metrics.SessionMetrics
}

// SetMetrics attaches a metrics sink the engine reports message and resend
// counters to. Passing nil (or never calling SetMetrics) disables
// reporting; every call site guards on e.metrics == nil.
func (e *Engine) SetMetrics(m metrics.SessionMetrics) {
	e.metrics = m
}

// New builds an Engine for a freshly accepted or dialed connection,
// returning both the Engine (to be handed to Run, typically in its own
// goroutine) and the Handle the application side uses to drive it.
func New(settings Settings, conn stream.Conn, st store.Store, wireLog fixlog.Logger) (*Engine, *Handle) {
	requests := make(chan request, 16)
	messages := newAppRing(appRingCapacity)
	e := &Engine{
		settings:          settings,
		conn:              conn,
		reader:            stream.NewReader(conn),
		store:             st,
		wireLog:           wireLog,
		additionalHeaders: encode.NewAdditionalHeaders(encode.CompIDHeaders(settings.SenderCompID, settings.TargetCompID)),
		requests:          requests,
		messages:          messages,
	}
	return e, &Handle{requests: requests, messages: messages}
}

type inboundMsg struct {
	raw []byte
	err error
}

// readLoop feeds every framed message (or terminal read error) off the
// wire into inbound, stopping once either a read fails or done is closed.
func (e *Engine) readLoop(inbound chan<- inboundMsg, done <-chan struct{}) {
	for {
		raw, err := e.reader.ReadMessage()
		select {
		case inbound <- inboundMsg{raw: raw, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Run drives the session from initial Logon request through to
// disconnect. It blocks until the session ends (normally or on error) or
// ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	nextIncoming, nextOutgoing, err := e.store.GetSequences(ctx, e.settings.Epoch)
	if err != nil {
		return fmt.Errorf("engine: load sequences: %w", err)
	}
	heartBtIntSecs := uint32(e.settings.HeartBtInt / time.Second)
	e.sm = session.NewStateMachine(e.settings.BeginString, heartBtIntSecs, session.NewSequences(nextIncoming, nextOutgoing))

	logon, ok := e.awaitInitialLogonRequest(ctx)
	if !ok {
		return ctx.Err()
	}
	e.sm.SetLogonRespSender(logon.resp)

	isNew, err := e.isNewSession(ctx)
	if err != nil {
		return fmt.Errorf("engine: determine new session: %w", err)
	}

	switch e.settings.EngineType {
	case Acceptor:
		e.sm.Handle(&session.Event{Kind: session.EvAccept})
	case Initiator:
		e.sm.Handle(&session.Event{Kind: session.EvConnect, ResetSeqNum: isNew || e.settings.ResetSeqNum})
	}

	e.timeouts = timer.NewFixTimeouts(e.settings.HeartBtInt, timer.TestRequestDuration(e.settings.HeartBtInt), timer.LogoutDuration(e.settings.HeartBtInt))

	inbound := make(chan inboundMsg, 1)
	readerDone := make(chan struct{})
	go e.readLoop(inbound, readerDone)
	defer close(readerDone)

	for {
		if err := e.drainOutbox(ctx); err != nil {
			return err
		}

		if session.ShouldDisconnect(e.sm) {
			derr := e.disconnect(ctx)
			ok := !session.InErrorState(e.sm) && derr == nil
			e.sm.SendLogoutResponse(ok)
			return derr
		}

		// Biased priority (§5): drain a pending request or a ready
		// inbound message before ever waiting on the timer. Go's select
		// has no native bias, so this is enforced with non-blocking
		// pre-checks ahead of the blocking select below.
		select {
		case req := <-e.requests:
			e.handleRequest(req)
			continue
		default:
		}
		select {
		case in := <-inbound:
			if err := e.processInbound(ctx, in); err != nil {
				return err
			}
			continue
		default:
		}

		next := e.timeouts.NextExpiring()
		wait := time.NewTimer(next.Remaining())
		select {
		case req := <-e.requests:
			wait.Stop()
			e.handleRequest(req)
		case in := <-inbound:
			wait.Stop()
			if err := e.processInbound(ctx, in); err != nil {
				return err
			}
		case <-wait.C:
			ev := next.Event()
			if ev.Kind == session.EvSendTestRequest {
				ev.TestRequestID = uuid.NewString()
			}
			e.sm.Handle(&ev)
			next.Reset()
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		}
	}
}

// awaitInitialLogonRequest blocks until the application side asks for a
// Logon, the only request the session honors before it has even started.
// Any Send or Logout that arrives first is answered immediately as a
// no-op, since there is no live session yet to act on them.
func (e *Engine) awaitInitialLogonRequest(ctx context.Context) (*logonRequest, bool) {
	for {
		select {
		case req := <-e.requests:
			switch {
			case req.logon != nil:
				return req.logon, true
			case req.send != nil:
				replyBool(req.send.resp, false)
			case req.logout != nil:
				replyBool(req.logout.resp, true)
			}
		case <-ctx.Done():
			return nil, false
		}
	}
}

func replyBool(ch chan<- bool, v bool) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}

func (e *Engine) handleRequest(req request) {
	switch {
	case req.send != nil:
		e.sm.OutboxPushWithSender(req.send.builder, req.send.resp)
	case req.logout != nil:
		e.sm.OutboxPushWithSender(session.BuildLogoutMessage(e.settings.BeginString), req.logout.resp)
	case req.logon != nil:
		replyBool(req.logon.resp, true)
	}
}

// drainOutbox writes every currently queued message to the wire, storing
// each for later resend and resetting the heartbeat deadline. A Logout
// clears whatever else was queued behind it and starts the logout timeout,
// matching the rule that nothing queued after a Logout is still worth
// sending.
func (e *Engine) drainOutbox(ctx context.Context) error {
	if len(e.sm.Outbox) > 0 {
		e.timeouts.ResetHeartbeat()
	}
	for {
		item, ok := e.sm.OutboxPop()
		if !ok {
			return nil
		}
		isLogout := item.Builder.MsgType() == tag.MsgTypeLogout

		msgSeqNum := e.sm.Sequences.NextOutgoing()
		buf := bytes.NewBuffer(bufpool.Get(bufpool.DefaultSmallSize)[:0])
		if err := item.Builder.Build(buf, msgSeqNum, e.additionalHeaders, time.Now()); err != nil {
			bufpool.Put(buf.Bytes())
			return fmt.Errorf("engine: build outgoing message: %w", err)
		}
		raw := buf.Bytes()

		sendErr := stream.SendMessage(e.conn, raw)
		var logErr, storeErr error
		if sendErr == nil {
			logErr = e.wireLog.LogMessage(fixlog.Outgoing, raw)
		}
		if sendErr == nil && logErr == nil {
			storeErr = e.store.StoreOutgoing(ctx, e.settings.Epoch, msgSeqNum, time.Now(), raw)
		}
		bufpool.Put(raw)
		if sendErr != nil {
			return sendErr
		}
		if logErr != nil {
			return logErr
		}
		if storeErr != nil {
			return fmt.Errorf("engine: store outgoing message: %w", storeErr)
		}

		if e.metrics != nil {
			e.metrics.RecordMessageOut(string(item.Builder.MsgType()))
		}

		if isLogout {
			e.sm.OutboxClear()
			e.sm.SetLogoutRespSender(item.RespSender)
			e.sm.Handle(&session.Event{Kind: session.EvLogoutSent})
			e.timeouts.StartLogoutTimeout()
			return nil
		}
		replyBool(item.RespSender, true)
	}
}

// processInbound handles one result from the reader goroutine: a genuine
// I/O error is fatal and ends Run, a TCPDisconnection is routed through the
// state machine like any other session error, and a successfully framed
// message is wire-logged and parsed.
func (e *Engine) processInbound(ctx context.Context, in inboundMsg) error {
	e.timeouts.ResetTestRequest()
	if in.err != nil {
		var discon *ferr.TCPDisconnection
		if errors.As(in.err, &discon) {
			e.sm.Handle(&session.Event{Kind: session.EvSessionErrorReceived, Err: in.err})
			return nil
		}
		return in.err
	}
	if err := e.wireLog.LogMessage(fixlog.Incoming, in.raw); err != nil {
		return err
	}
	return e.handleMsg(ctx, in.raw)
}

// handleMsg parses, validates, and dispatches one inbound message: a
// parse or validation failure is routed to the state machine as a session
// error instead of aborting the loop, since most such failures (a bad
// CompID, a stale SendingTime) are recoverable at the session level.
func (e *Engine) handleMsg(ctx context.Context, raw []byte) error {
	cb := &parserCallback{}
	if err := decode.Parse(raw, cb); err != nil {
		e.sm.Handle(&session.Event{Kind: session.EvSessionErrorReceived, Err: err})
		return nil
	}

	if err := validateMsg(e.settings.TargetCompID, e.settings.SenderCompID, cb); err != nil {
		e.sm.Handle(&session.Event{Kind: session.EvSessionErrorReceived, Err: err})
		return nil
	}
	if !encode.ChecksumIsValid(raw) {
		e.sm.Handle(&session.Event{Kind: session.EvSessionErrorReceived, Err: ferr.NewGarbledMessage("Checksum invalid", ferr.ChecksumIssue)})
		return nil
	}

	possDup := toPossDup(cb.possDupFlag)

	if e.metrics != nil {
		e.metrics.RecordMessageIn(string(cb.msgType))
		if cb.msgType == tag.MsgTypeResendRequest {
			e.metrics.RecordResendRequest()
		}
	}

	switch cb.msgType {
	case tag.MsgTypeLogon:
		heartBtInt := uint32(e.settings.HeartBtInt / time.Second)
		if cb.heartBtInt != nil {
			heartBtInt = *cb.heartBtInt
			d := time.Duration(heartBtInt) * time.Second
			e.timeouts.SetDurations(d, timer.TestRequestDuration(d), timer.LogoutDuration(d))
		}
		resetSeqNum := cb.resetSeqNumFlag != nil && *cb.resetSeqNumFlag == 'Y'
		e.sm.Handle(&session.Event{
			Kind:             session.EvLogonReceived,
			MsgSeqNum:        cb.msgSeqNum,
			HeartBtInt:       heartBtInt,
			EncryptMethod:    cb.encryptMethod,
			LogonResetSeqNum: resetSeqNum,
			PossDup:          possDup,
		})
	case tag.MsgTypeLogout:
		e.sm.Handle(&session.Event{Kind: session.EvLogoutReceived, MsgSeqNum: cb.msgSeqNum, PossDup: possDup})
	case tag.MsgTypeHeartbeat:
		e.sm.Handle(&session.Event{Kind: session.EvHeartbeatReceived, MsgSeqNum: cb.msgSeqNum, PossDup: possDup})
	case tag.MsgTypeSequenceReset:
		if cb.newSeqNo != nil {
			e.sm.Handle(&session.Event{
				Kind:      session.EvSequenceResetReceived,
				MsgSeqNum: cb.msgSeqNum,
				GapFill:   toGapFill(cb.gapFill),
				NewSeqNo:  *cb.newSeqNo,
				PossDup:   possDup,
			})
		}
	case tag.MsgTypeReject:
		e.sm.Handle(&session.Event{Kind: session.EvRejectReceived, MsgSeqNum: cb.msgSeqNum, PossDup: possDup})
	case tag.MsgTypeTestRequest:
		if cb.testReqID != nil {
			e.sm.Handle(&session.Event{Kind: session.EvTestRequestReceived, MsgSeqNum: cb.msgSeqNum, TestReqID: cb.testReqID, PossDup: possDup})
		}
	case tag.MsgTypeResendRequest:
		end := e.sm.Sequences.PeekOutgoing() - 1
		if cb.endSeqNo != nil && *cb.endSeqNo > 0 {
			end = *cb.endSeqNo
		}
		begin := end
		if cb.beginSeqNo != nil {
			begin = *cb.beginSeqNo
		}
		if session.ShouldResend(e.sm) {
			msgs, err := e.store.GetPrevMessages(ctx, e.settings.Epoch, begin, end, e.sm.Sequences.PeekOutgoing()-1)
			if err != nil {
				return fmt.Errorf("engine: load resend history: %w", err)
			}
			if err := e.resendMessages(msgs); err != nil {
				return fmt.Errorf("engine: resend: %w", err)
			}
		}
		e.sm.Handle(&session.Event{Kind: session.EvResendRequestReceived, MsgSeqNum: cb.msgSeqNum, BeginSeqNo: begin, EndSeqNo: end, PossDup: possDup})
	default:
		if session.ShouldPassAppMessage(e.sm, cb.msgSeqNum) {
			e.messages.push(raw)
		}
		e.sm.Handle(&session.Event{Kind: session.EvApplicationMessageReceived, MsgSeqNum: cb.msgSeqNum, PossDup: possDup})
	}
	return nil
}

// isNewSession implements the daily-reset boundary (§6's start_time
// option): only an Initiator ever resets on its own initiative, and only
// when nothing has been sent since today's boundary (including never
// having sent anything at all).
func (e *Engine) isNewSession(ctx context.Context) (bool, error) {
	if e.settings.EngineType != Initiator {
		return false, nil
	}
	lastSend, err := e.store.LastSendTime(ctx, e.settings.Epoch)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return lastSend.Before(dailyBoundary(time.Now(), e.settings.StartTime)), nil
}

// dailyBoundary combines today's UTC date with startTime's time-of-day
// component.
func dailyBoundary(now, startTime time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)
}

// disconnect persists the session's final sequence cursors, releases the
// store and wire log, and tears down the TCP connection.
func (e *Engine) disconnect(ctx context.Context) error {
	if err := e.store.SetSequences(ctx, e.settings.Epoch, e.sm.Sequences.PeekIncoming(), e.sm.Sequences.PeekOutgoing()); err != nil {
		return fmt.Errorf("engine: persist sequences: %w", err)
	}
	if err := e.store.Disconnect(ctx); err != nil {
		return fmt.Errorf("engine: store disconnect: %w", err)
	}
	if err := e.wireLog.Disconnect(); err != nil {
		return fmt.Errorf("engine: wire log disconnect: %w", err)
	}
	stream.Disconnect(e.conn)
	logger.Info("session disconnected", "sender", e.settings.SenderCompID, "target", e.settings.TargetCompID, "epoch", e.settings.Epoch, "state", e.sm.State.Kind.String())
	return nil
}
