package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // correlation id for request tracing
	KeySpanID  = "span_id"

	// ========================================================================
	// Session identity
	// ========================================================================
	KeySenderCompID = "sender_comp_id" // tag 49 on outbound
	KeyTargetCompID = "target_comp_id" // tag 56 on outbound
	KeyBeginString  = "begin_string"   // tag 8
	KeyEpoch        = "epoch"          // store partition key

	// ========================================================================
	// Message metadata
	// ========================================================================
	KeyMsgType     = "msg_type"      // tag 35
	KeyMsgSeqNum   = "msg_seq_num"   // tag 34
	KeyDirection   = "direction"     // inbound/outbound
	KeyState       = "state"         // session state machine state
	KeyEvent       = "event"         // session state machine event
	KeyFromState   = "from_state"
	KeyToState     = "to_state"

	// ========================================================================
	// Sequence & resend
	// ========================================================================
	KeyNextIncoming = "next_incoming"
	KeyNextOutgoing = "next_outgoing"
	KeyBeginSeqNo   = "begin_seq_no"
	KeyEndSeqNo     = "end_seq_no"
	KeyPossDup      = "poss_dup"

	// ========================================================================
	// I/O & framing
	// ========================================================================
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyJunkLen      = "junk_len"

	// ========================================================================
	// Connection
	// ========================================================================
	KeyClientIP     = "client_ip"
	KeyConnectionID = "connection_id"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeySource     = "source"
)

// SenderCompID returns a slog.Attr for the sender CompID.
func SenderCompID(id string) slog.Attr {
	return slog.String(KeySenderCompID, id)
}

// TargetCompID returns a slog.Attr for the target CompID.
func TargetCompID(id string) slog.Attr {
	return slog.String(KeyTargetCompID, id)
}

// Epoch returns a slog.Attr for the store's partition key.
func Epoch(epoch string) slog.Attr {
	return slog.String(KeyEpoch, epoch)
}

// MsgType returns a slog.Attr for the FIX MsgType (tag 35).
func MsgType(t string) slog.Attr {
	return slog.String(KeyMsgType, t)
}

// MsgSeqNum returns a slog.Attr for the FIX MsgSeqNum (tag 34).
func MsgSeqNum(n uint32) slog.Attr {
	return slog.Uint64(KeyMsgSeqNum, uint64(n))
}

// State returns a slog.Attr for the current session state.
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Event returns a slog.Attr for the session event being handled.
func Event(e string) slog.Attr {
	return slog.String(KeyEvent, e)
}

// Transition returns attrs describing a state transition.
func Transition(event, from, to string) []any {
	return []any{KeyEvent, event, KeyFromState, from, KeyToState, to}
}

// NextIncoming returns a slog.Attr for the expected inbound sequence number.
func NextIncoming(n uint32) slog.Attr {
	return slog.Uint64(KeyNextIncoming, uint64(n))
}

// NextOutgoing returns a slog.Attr for the next outbound sequence number.
func NextOutgoing(n uint32) slog.Attr {
	return slog.Uint64(KeyNextOutgoing, uint64(n))
}

// BeginSeqNo returns a slog.Attr for a ResendRequest's BeginSeqNo (tag 7).
func BeginSeqNo(n uint32) slog.Attr {
	return slog.Uint64(KeyBeginSeqNo, uint64(n))
}

// EndSeqNo returns a slog.Attr for a ResendRequest's EndSeqNo (tag 16).
func EndSeqNo(n uint32) slog.Attr {
	return slog.Uint64(KeyEndSeqNo, uint64(n))
}

// PossDup returns a slog.Attr indicating a retransmitted message.
func PossDup(dup bool) slog.Attr {
	return slog.Bool(KeyPossDup, dup)
}

// BytesRead returns a slog.Attr for bytes consumed off the stream.
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for bytes written to the stream.
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// JunkLen returns a slog.Attr for the length of a discarded garble interval.
func JunkLen(n int) slog.Attr {
	return slog.Int(KeyJunkLen, n)
}

// ClientIP returns a slog.Attr for the peer's IP address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ConnectionID returns a slog.Attr for a connection identifier.
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code (e.g. SessionRejectReason).
func ErrorCode(code uint32) slog.Attr {
	return slog.Uint64(KeyErrorCode, uint64(code))
}

// Source returns a slog.Attr for a subsystem name.
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}
