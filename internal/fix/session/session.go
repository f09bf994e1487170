// Package session implements the FIX session-layer state machine (§4.1):
// Logon/Logout/Heartbeat/TestRequest/ResendRequest/SequenceReset handling,
// sequence-number gap detection, and the resend-request workflow. It owns
// no I/O: Handle consumes an Event and returns a Response, leaving the
// caller (internal/fix/engine) to drive timers and the wire.
package session

import (
	"strconv"

	"github.com/quantbridge/fixgo/internal/fix/encode"
	"github.com/quantbridge/fixgo/internal/fix/ferr"
	"github.com/quantbridge/fixgo/internal/fix/tag"
)

// OutboxItem is a pending outgoing message, with an optional channel to
// notify once it has actually been written to the wire (used for
// synchronous Send requests from outside the session loop).
type OutboxItem struct {
	Builder    *encode.MessageBuilder
	RespSender chan<- bool
}

// StateMachine is the session-layer core: it tracks the current State,
// the sequence-number cursors, an in-progress resend range if one is
// open, and a queue of messages the caller should flush to the wire.
type StateMachine struct {
	Outbox         []OutboxItem
	Sequences      Sequences
	BeginString    string
	HeartBtInt     uint32
	RereceiveRange *[2]uint32

	LogonRespSender  chan<- bool
	LogoutRespSender chan<- bool

	State State
}

// NewStateMachine builds a state machine starting in Start, with the
// given BeginString (the header value stamped on every outgoing message)
// and the heartbeat interval this engine offers to negotiate.
func NewStateMachine(beginString string, heartBtInt uint32, seq Sequences) *StateMachine {
	return &StateMachine{
		BeginString: beginString,
		HeartBtInt:  heartBtInt,
		Sequences:   seq,
		State:       S(Start),
	}
}

// SetLogonRespSender registers the channel to notify when the Logon
// handshake resolves (true = succeeded).
func (sm *StateMachine) SetLogonRespSender(ch chan<- bool) { sm.LogonRespSender = ch }

// SetLogoutRespSender registers the channel to notify when the session
// finishes logging out.
func (sm *StateMachine) SetLogoutRespSender(ch chan<- bool) { sm.LogoutRespSender = ch }

// SendLogonResponse notifies and clears the registered logon channel, if
// any. Safe to call even if no Logon request is outstanding.
func (sm *StateMachine) SendLogonResponse(ok bool) {
	if sm.LogonRespSender == nil {
		return
	}
	select {
	case sm.LogonRespSender <- ok:
	default:
	}
	sm.LogonRespSender = nil
}

// SendLogoutResponse notifies and clears the registered logout channel.
func (sm *StateMachine) SendLogoutResponse(ok bool) {
	if sm.LogoutRespSender == nil {
		return
	}
	select {
	case sm.LogoutRespSender <- ok:
	default:
	}
	sm.LogoutRespSender = nil
}

func (sm *StateMachine) outboxPush(b *encode.MessageBuilder) {
	sm.Outbox = append(sm.Outbox, OutboxItem{Builder: b})
}

// OutboxPushWithSender queues an externally built message (e.g. an
// application message handed in via Send), notifying resp once it has
// been written.
func (sm *StateMachine) OutboxPushWithSender(b *encode.MessageBuilder, resp chan<- bool) {
	sm.Outbox = append(sm.Outbox, OutboxItem{Builder: b, RespSender: resp})
}

// OutboxPop removes and returns the oldest queued message, if any.
func (sm *StateMachine) OutboxPop() (OutboxItem, bool) {
	if len(sm.Outbox) == 0 {
		return OutboxItem{}, false
	}
	item := sm.Outbox[0]
	sm.Outbox = sm.Outbox[1:]
	return item, true
}

// OutboxClear drops every queued message (used when a Logout is about to
// be sent: nothing queued behind it will go out).
func (sm *StateMachine) OutboxClear() { sm.Outbox = nil }

func (sm *StateMachine) outboxPushResendRequest(begin, end uint32) {
	b := encode.NewMessageBuilder(sm.BeginString, tag.MsgTypeResendRequest)
	b.PushString(tag.BeginSeqNo, strconv.FormatUint(uint64(begin), 10))
	b.PushString(tag.EndSeqNo, strconv.FormatUint(uint64(end), 10))
	sm.outboxPush(b)
}

// Handle dispatches ev to the handler for the current state and applies
// the resulting transition, if any.
func (sm *StateMachine) Handle(ev *Event) Response {
	var resp Response
	switch sm.State.Kind {
	case Start:
		resp = sm.start(ev)
	case Connected:
		resp = sm.connected(ev)
	case LogonSent:
		resp = sm.logonSent(ev)
	case LoggedIn:
		resp = sm.loggedIn(ev)
	case ExpectingResends:
		resp = sm.expectingResends(ev, *sm.State.ReturnState)
	case ExpectingTestResponse:
		resp = sm.expectingTestResponse(ev)
	case LogoutSent:
		resp = sm.logoutSent(ev)
	case End, Error:
		resp = handled()
	default:
		resp = handled()
	}
	if !resp.Handled {
		sm.State = resp.Transition
	}
	return resp
}

// processSequence implements §4.1.1: the shared sequence-gap logic every
// state (other than Start/Connected/LogonSent, which have their own Logon
// handling) runs a received message's MsgSeqNum through before reacting
// to its content.
func (sm *StateMachine) processSequence(ev *Event, returnState State) Response {
	expected := sm.Sequences.PeekIncoming()
	incoming := ev.MsgSeqNum

	switch {
	case expected == incoming:
		sm.Sequences.IncrIncoming()
		return handled()
	case expected < incoming:
		end := incoming - 1
		sm.RereceiveRange = &[2]uint32{expected, end}
		sm.outboxPushResendRequest(expected, 0)
		return transition(ExpectingResendsState(returnState))
	default: // expected > incoming
		if !ev.IsPossDup() {
			text := "MsgSeqNum too low, expecting " + strconv.FormatUint(uint64(expected), 10) +
				" but received " + strconv.FormatUint(uint64(incoming), 10)
			sm.outboxPush(buildLogoutMessageWithText(sm.BeginString, text))
			return transition(S(Error))
		}
		return handled()
	}
}

// resetExpectedIncoming applies a SequenceReset(4)'s NewSeqNo, rejecting
// it (rather than panicking or silently ignoring it) if it would move the
// cursor backward.
func (sm *StateMachine) resetExpectedIncoming(msgSeqNum, newSeqNo uint32) {
	if err := sm.Sequences.ResetIncoming(newSeqNo); err != nil {
		reason := tag.RejectValueIsIncorrect
		msgType := byte(tag.MsgTypeSequenceReset)
		sm.outboxPush(buildMessageReject(sm.BeginString, err.Error(), &reason, msgSeqNum, nil, &msgType))
	}
}

// postLogon is the superstate shared by every state from LoggedIn onward:
// garbled BeginStrings and TCP drops are fatal, a received Logout is
// echoed and ends the session, and the timer wheel's heartbeat/test
// request requests are queued here uniformly.
func (sm *StateMachine) postLogon(ev *Event) Response {
	switch ev.Kind {
	case EvSessionErrorReceived:
		if g, ok := ev.Err.(*ferr.GarbledMessage); ok && g.Kind == ferr.BeginStringIssue {
			sm.outboxPush(buildLogoutMessage(sm.BeginString))
			return transition(S(Error))
		}
		if _, ok := ev.Err.(*ferr.TCPDisconnection); ok {
			return transition(S(Error))
		}
		return handled()
	case EvLogoutReceived:
		sm.outboxPush(buildLogoutMessage(sm.BeginString))
		return transition(S(End))
	case EvSendTestRequest:
		sm.outboxPush(buildTestRequest(sm.BeginString, ev.TestRequestID))
		return transition(S(ExpectingTestResponse))
	case EvSendHeartbeat:
		sm.outboxPush(buildHeartbeat(sm.BeginString, nil))
		return handled()
	case EvLogoutSent:
		return transition(S(LogoutSent))
	case EvLogoutExpired:
		return transition(S(Error))
	default:
		return handled()
	}
}

// expectingResends implements §4.1.2: while a resend gap is open, only
// PossDup-flagged messages make progress, and only insofar as they fill
// the gap in order; a non-duplicate message or one that skips ahead of
// the expected replay sequence is ignored until the gap closes.
func (sm *StateMachine) expectingResends(ev *Event, returnState State) Response {
	if sm.RereceiveRange == nil {
		return transition(S(Error))
	}
	next := sm.RereceiveRange[0]
	end := sm.RereceiveRange[1]

	if !ev.IsPossDup() {
		if ev.Kind == EvLogoutReceived {
			sm.outboxPush(buildLogoutMessage(sm.BeginString))
			return transition(S(End))
		}
		return sm.postLogon(ev)
	}

	if ev.MsgSeqNum != next && !ev.IsSequenceReset() {
		return handled()
	}

	switch {
	case ev.Kind == EvSequenceResetReceived && ev.GapFill != nil && *ev.GapFill == tag.GapFillYes:
		next = ev.NewSeqNo
	case ev.IsSequenceReset():
		sm.resetExpectedIncoming(ev.MsgSeqNum, ev.NewSeqNo)
		sm.RereceiveRange = nil
		if returnState.Kind == End {
			sm.outboxPush(buildLogoutMessage(sm.BeginString))
		}
		return transition(returnState)
	default:
		next++
	}

	if next > end || ev.MsgSeqNum == end {
		_ = sm.Sequences.ResetIncoming(end + 1)
		sm.RereceiveRange = nil
		if returnState.Kind == End {
			sm.outboxPush(buildLogoutMessage(sm.BeginString))
		}
		return transition(returnState)
	}

	sm.RereceiveRange[0] = next
	return handled()
}

// expectingTestResponse implements §4.1: a TestRequest was sent to probe
// a suspiciously quiet connection. A Heartbeat clears it back to
// LoggedIn; anything else defers to ordinary LoggedIn handling.
func (sm *StateMachine) expectingTestResponse(ev *Event) Response {
	switch ev.Kind {
	case EvHeartbeatReceived:
		resp := sm.processSequence(ev, S(LoggedIn))
		if !resp.Handled {
			return resp
		}
		return transition(S(LoggedIn))
	case EvSendHeartbeat, EvSendTestRequest:
		return transition(S(Error))
	default:
		return sm.loggedIn(ev)
	}
}

// loggedIn is the steady-state handler: every inbound message passes
// through processSequence first, then is dispatched on its own merits.
func (sm *StateMachine) loggedIn(ev *Event) Response {
	nextState := S(LoggedIn)
	if ev.IsLogout() {
		nextState = S(End)
	}

	switch ev.Kind {
	case EvLogonReceived, EvLogoutReceived, EvHeartbeatReceived, EvApplicationMessageReceived,
		EvRejectReceived, EvResendRequestReceived, EvSequenceResetReceived, EvTestRequestReceived:
		resp := sm.processSequence(ev, nextState)
		if !resp.Handled {
			return resp
		}
	}

	switch ev.Kind {
	case EvSessionErrorReceived:
		switch e := ev.Err.(type) {
		case *ferr.MissingMsgSeqNum:
			sm.outboxPush(buildLogoutMessageWithText(sm.BeginString, e.Text))
			return transition(S(Error))
		case *ferr.MessageRejected:
			sm.Sequences.IncrIncoming()
			sm.outboxPush(buildMessageReject(sm.BeginString, e.Text, e.RejectReason, e.MsgSeqNum, e.RefTagID, e.RefMsgType))
			if e.RejectReason != nil && (*e.RejectReason == tag.RejectCompIDProblem || *e.RejectReason == tag.RejectSendingTimeAccuracyProblem) {
				sm.outboxPush(buildLogoutMessage(sm.BeginString))
				return transition(S(Error))
			}
			return handled()
		case *ferr.TCPDisconnection:
			return transition(S(Error))
		default:
			return sm.postLogon(ev)
		}
	case EvSequenceResetReceived:
		sm.resetExpectedIncoming(ev.MsgSeqNum, ev.NewSeqNo)
		return handled()
	case EvTestRequestReceived:
		sm.outboxPush(buildHeartbeat(sm.BeginString, ev.TestReqID))
		return handled()
	case EvApplicationMessageReceived:
		return handled()
	default:
		return sm.postLogon(ev)
	}
}

// start handles the session before any bytes have crossed the wire: a
// client Connects and sends the opening Logon, a server just waits to
// Accept the incoming TCP connection.
func (sm *StateMachine) start(ev *Event) Response {
	switch ev.Kind {
	case EvConnect:
		if ev.ResetSeqNum {
			sm.Sequences.Reset()
		}
		sm.outboxPush(buildLogon(sm.BeginString, sm.HeartBtInt, ev.ResetSeqNum))
		return transition(S(LogonSent))
	case EvAccept:
		return transition(S(Connected))
	default:
		return handled()
	}
}

// connected is the server-side counterpart to LogonSent: waiting for the
// initiator's Logon.
func (sm *StateMachine) connected(ev *Event) Response {
	switch ev.Kind {
	case EvSessionErrorReceived:
		if mr, ok := ev.Err.(*ferr.MessageRejected); ok {
			if mr.RejectReason == nil || *mr.RejectReason != tag.RejectCompIDProblem {
				sm.outboxPush(buildLogoutMessageWithText(sm.BeginString, mr.Text))
			}
		}
		sm.SendLogonResponse(false)
		return transition(S(Error))
	case EvLogonReceived:
		if ev.LogonResetSeqNum {
			sm.Sequences.Reset()
		}
		sm.outboxPush(buildLogon(sm.BeginString, sm.HeartBtInt, ev.LogonResetSeqNum))
		sm.SendLogonResponse(true)
		resp := sm.processSequence(ev, S(LoggedIn))
		if !resp.Handled {
			return resp
		}
		return transition(S(LoggedIn))
	default:
		return handled()
	}
}

// logonSent is the client-side counterpart: waiting for the acceptor to
// echo the Logon back.
func (sm *StateMachine) logonSent(ev *Event) Response {
	switch ev.Kind {
	case EvLogonReceived:
		sm.SendLogonResponse(true)
		resp := sm.processSequence(ev, S(LoggedIn))
		if !resp.Handled {
			return resp
		}
		return transition(S(LoggedIn))
	case EvSessionErrorReceived:
		if mr, ok := ev.Err.(*ferr.MessageRejected); ok {
			sm.outboxPush(buildLogoutMessageWithText(sm.BeginString, mr.Text))
		}
		sm.SendLogonResponse(false)
		return transition(S(Error))
	case EvLogoutSent:
		sm.SendLogonResponse(false)
		return transition(S(LogoutSent))
	default:
		return handled()
	}
}

// logoutSent is waiting for the peer to acknowledge our Logout (or for
// the logout timer to expire and force the disconnect).
func (sm *StateMachine) logoutSent(ev *Event) Response {
	switch ev.Kind {
	case EvLogonReceived, EvLogoutReceived, EvHeartbeatReceived, EvApplicationMessageReceived,
		EvRejectReceived, EvResendRequestReceived, EvSequenceResetReceived, EvTestRequestReceived:
		resp := sm.processSequence(ev, S(LogoutSent))
		if !resp.Handled {
			return resp
		}
	}
	switch ev.Kind {
	case EvLogoutReceived:
		return transition(S(End))
	case EvLogoutExpired, EvSessionErrorReceived, EvSendTestRequest, EvSendHeartbeat:
		return transition(S(Error))
	default:
		return handled()
	}
}

// ShouldPassAppMessage reports whether an application message with the
// given MsgSeqNum should be delivered to the application layer: either it
// is filling the current resend gap in order, or the session is fully
// logged in and the message is exactly the next one expected.
func ShouldPassAppMessage(sm *StateMachine, msgSeqNum uint32) bool {
	if sm.RereceiveRange != nil && msgSeqNum == sm.RereceiveRange[0] {
		return true
	}
	switch sm.State.Kind {
	case Start, End, Error, Connected, LogonSent:
		return false
	}
	return msgSeqNum == sm.Sequences.PeekIncoming()
}

// ShouldResend reports whether the session is far enough along to honor
// a ResendRequest.
func ShouldResend(sm *StateMachine) bool {
	switch sm.State.Kind {
	case LoggedIn, ExpectingResends, LogoutSent:
		return true
	default:
		return false
	}
}

// ShouldDisconnect reports whether the engine's connection loop should
// tear down the TCP connection.
func ShouldDisconnect(sm *StateMachine) bool {
	return sm.State.Kind == End || sm.State.Kind == Error
}

// InErrorState reports whether the session ended abnormally.
func InErrorState(sm *StateMachine) bool {
	return sm.State.Kind == Error
}

func buildLogoutMessageWithText(beginString, text string) *encode.MessageBuilder {
	b := encode.NewMessageBuilder(beginString, tag.MsgTypeLogout)
	if text != "" {
		b.PushString(tag.Text, text)
	}
	return b
}

func buildLogoutMessage(beginString string) *encode.MessageBuilder {
	return encode.NewMessageBuilder(beginString, tag.MsgTypeLogout)
}

// BuildLogoutMessage builds a plain Logout(5) message, exported for
// internal/fix/engine to use when an application-driven Logout request
// needs a message queued outside of any state-machine transition.
func BuildLogoutMessage(beginString string) *encode.MessageBuilder {
	return buildLogoutMessage(beginString)
}

func buildHeartbeat(beginString string, testReqID []byte) *encode.MessageBuilder {
	b := encode.NewMessageBuilder(beginString, tag.MsgTypeHeartbeat)
	if testReqID != nil {
		b.Push(tag.TestReqID, testReqID)
	}
	return b
}

func buildTestRequest(beginString string, testReqID string) *encode.MessageBuilder {
	b := encode.NewMessageBuilder(beginString, tag.MsgTypeTestRequest)
	b.PushString(tag.TestReqID, testReqID)
	return b
}

func buildLogon(beginString string, heartBtInt uint32, resetSeqNum bool) *encode.MessageBuilder {
	b := encode.NewMessageBuilder(beginString, tag.MsgTypeLogon)
	b.PushString(tag.EncryptMethod, "0")
	b.PushString(tag.HeartBtInt, strconv.FormatUint(uint64(heartBtInt), 10))
	if resetSeqNum {
		b.PushString(tag.ResetSeqNumFlag, "Y")
	}
	return b
}

func buildMessageReject(beginString, text string, reason *tag.SessionRejectReason, msgSeqNum uint32, refTagID *uint32, refMsgType *byte) *encode.MessageBuilder {
	b := encode.NewMessageBuilder(beginString, tag.MsgTypeReject)
	b.PushString(tag.RefSeqNum, strconv.FormatUint(uint64(msgSeqNum), 10))
	b.PushString(tag.Text, text)
	if refTagID != nil {
		b.PushString(tag.RefTagID, strconv.FormatUint(uint64(*refTagID), 10))
	}
	if refMsgType != nil && *refMsgType != 0 {
		b.Push(tag.RefMsgType, []byte{*refMsgType})
	}
	if reason != nil {
		b.PushString(tag.SessionRejectReason, strconv.FormatUint(uint64(*reason), 10))
	}
	return b
}
