// Package ferr carries the session-level error taxonomy shared by the
// decode, stream, resend, and session packages. Keeping it in its own
// package avoids an import cycle between decode (which raises these
// errors while parsing) and session (which branches on them).
package ferr

import (
	"fmt"

	"github.com/quantbridge/fixgo/internal/fix/tag"
)

// GarbledMessageType classifies why a message failed basic framing checks,
// before any field-level parsing was attempted.
type GarbledMessageType int

const (
	BeginStringIssue GarbledMessageType = iota
	BodyLengthIssue
	MsgTypeIssue
	ChecksumIssue
	OtherGarble
)

func (t GarbledMessageType) String() string {
	switch t {
	case BeginStringIssue:
		return "BeginStringIssue"
	case BodyLengthIssue:
		return "BodyLengthIssue"
	case MsgTypeIssue:
		return "MsgTypeIssue"
	case ChecksumIssue:
		return "ChecksumIssue"
	default:
		return "Other"
	}
}

// GarbledMessage means the stream could not even be framed into a
// candidate FIX message: the BeginString, BodyLength, MsgType, or checksum
// fields were unparseable or inconsistent with the bytes on the wire.
type GarbledMessage struct {
	Text     string
	Kind     GarbledMessageType
}

func (e *GarbledMessage) Error() string {
	return fmt.Sprintf("garbled message (%s): %s", e.Kind, e.Text)
}

// NewGarbledMessage constructs a GarbledMessage error.
func NewGarbledMessage(text string, kind GarbledMessageType) *GarbledMessage {
	return &GarbledMessage{Text: text, Kind: kind}
}

// MissingMsgSeqNum means a message was received without tag 34, which is
// required on every FIX message and cannot be substituted for.
type MissingMsgSeqNum struct {
	Text string
}

func (e *MissingMsgSeqNum) Error() string { return e.Text }

// MessageRejected means the message parsed cleanly but failed a
// session-level validation rule: a bad CompID, a stale SendingTime, an
// unparseable field, or similar. RejectReason is optional: when it is nil,
// the Reject sent for this error carries no SessionRejectReason (373).
type MessageRejected struct {
	Text         string
	RejectReason *tag.SessionRejectReason
	MsgSeqNum    uint32
	RefTagID     *uint32
	RefMsgType   *byte
}

func (e *MessageRejected) Error() string {
	return fmt.Sprintf("message rejected: %s", e.Text)
}

// NewMessageRejected builds a MessageRejected error, deriving Text from the
// reject reason's human-readable rendering when one is given.
func NewMessageRejected(reason *tag.SessionRejectReason, seqNum uint32, tagID *uint32, msgType *byte) *MessageRejected {
	text := ""
	if reason != nil {
		text = reason.String()
	}
	return &MessageRejected{
		Text:         text,
		RejectReason: reason,
		MsgSeqNum:    seqNum,
		RefTagID:     tagID,
		RefMsgType:   msgType,
	}
}

// ResendError means a stored message could not be replayed: it failed to
// re-parse when the resend transformer rebuilt it with PossDupFlag set.
type ResendError struct{}

func (e *ResendError) Error() string { return "tried to resend a malformed message" }

// TCPDisconnection means the peer closed its half of the connection.
type TCPDisconnection struct{}

func (e *TCPDisconnection) Error() string { return "tcp peer closed their half of the connection" }

// Reason helpers for constructing a *tag.SessionRejectReason inline.
func Reason(r tag.SessionRejectReason) *tag.SessionRejectReason { return &r }

// TagID helpers for constructing a *uint32 inline.
func TagID(t uint32) *uint32 { return &t }

// MsgTypeByte helpers for constructing a *byte inline.
func MsgTypeByte(b byte) *byte { return &b }
