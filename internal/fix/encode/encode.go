// Package encode builds outgoing FIX messages field-by-field and renders
// them to the wire with BodyLength and CheckSum computed in a single
// streaming pass.
package encode

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/quantbridge/fixgo/internal/fix/tag"
)

const soh = 0x01

const timeFormat = "20060102-15:04:05.000"

// SerializedInt renders an unsigned integer into a fixed 32-byte stack
// buffer, right-to-left, avoiding a heap allocation for the common case of
// formatting a sequence number or length.
type SerializedInt struct {
	buf   [32]byte
	start int
}

// NewSerializedInt formats n in decimal.
func NewSerializedInt(n uint64) SerializedInt {
	var s SerializedInt
	s.start = len(s.buf)
	if n == 0 {
		s.start--
		s.buf[s.start] = '0'
		return s
	}
	for n > 0 {
		s.start--
		s.buf[s.start] = byte('0' + n%10)
		n /= 10
	}
	return s
}

// Bytes returns the formatted digits.
func (s SerializedInt) Bytes() []byte {
	return s.buf[s.start:]
}

// FieldEntry is a single pre-formatted header field awaiting placement in
// an AdditionalHeaders prefix or suffix.
type FieldEntry struct {
	Tag   uint32
	Value string
}

// Field constructs a FieldEntry for use with NewAdditionalHeaders.
func Field(t uint32, value string) FieldEntry {
	return FieldEntry{Tag: t, Value: value}
}

// CompIDHeaders builds the standard SenderCompID/TargetCompID header pair.
func CompIDHeaders(sender, target string) []FieldEntry {
	return []FieldEntry{
		{tag.SenderCompID, sender},
		{tag.TargetCompID, target},
	}
}

// AdditionalHeaders carries header fields that must be interleaved around
// the SendingTime(52) field: everything with a tag at or below 52 goes
// before it, everything above goes after.
type AdditionalHeaders struct {
	prefix []byte
	suffix []byte
}

// NewAdditionalHeaders splits fields at the first tag greater than
// SendingTime(52), preserving input order within each half.
func NewAdditionalHeaders(fields []FieldEntry) *AdditionalHeaders {
	at := 0
	for _, f := range fields {
		if f.Tag > tag.SendingTime {
			break
		}
		at++
	}
	return &AdditionalHeaders{
		prefix: formatFields(fields[:at]),
		suffix: formatFields(fields[at:]),
	}
}

func formatFields(fields []FieldEntry) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		buf.WriteString(strconv.FormatUint(uint64(f.Tag), 10))
		buf.WriteByte('=')
		buf.WriteString(f.Value)
		buf.WriteByte(soh)
	}
	return buf.Bytes()
}

// Len is the total byte length this contributes to a built message,
// including the SendingTime(52) field itself.
func (a *AdditionalHeaders) Len() int {
	return len(a.prefix) + 25 + len(a.suffix)
}

// writeAll writes prefix, then a freshly formatted SendingTime(52) field,
// then suffix.
func (a *AdditionalHeaders) writeAll(w io.Writer, sendingTime time.Time) error {
	if _, err := w.Write(a.prefix); err != nil {
		return err
	}
	field := fmt.Sprintf("52=%s\x01", sendingTime.UTC().Format(timeFormat))
	if len(field) != 25 {
		return fmt.Errorf("encode: SendingTime field was %d bytes, expected 25", len(field))
	}
	if _, err := io.WriteString(w, field); err != nil {
		return err
	}
	_, err := w.Write(a.suffix)
	return err
}

// MessageBuilder accumulates a message body field-by-field, deferring the
// BeginString/BodyLength/MsgSeqNum/SendingTime/BodyLength/CheckSum framing
// to Build, which is the only place that needs to know the final length.
type MessageBuilder struct {
	preamble [32]byte
	preLen   int
	msgType  byte
	main     bytes.Buffer
	Created  time.Time
}

// NewMessageBuilder starts a message of the given BeginString and MsgType.
// msgType is assumed to be a single ASCII character, true of every message
// type the session layer builds itself.
func NewMessageBuilder(beginString string, msgType byte) *MessageBuilder {
	mb := &MessageBuilder{msgType: msgType, Created: time.Now()}
	mb.preLen = copy(mb.preamble[:], "8="+beginString+"\x019=")
	return mb
}

// Push appends a tag=value field to the message body.
func (mb *MessageBuilder) Push(t uint32, value []byte) *MessageBuilder {
	mb.main.WriteString(strconv.FormatUint(uint64(t), 10))
	mb.main.WriteByte('=')
	mb.main.Write(value)
	mb.main.WriteByte(soh)
	return mb
}

// PushString is Push for a string value.
func (mb *MessageBuilder) PushString(t uint32, value string) *MessageBuilder {
	return mb.Push(t, []byte(value))
}

// MsgType returns the message's MsgType(35) value.
func (mb *MessageBuilder) MsgType() byte { return mb.msgType }

// bodyLen is the byte length contributed by the fixed MsgType(35) field
// (always 5 bytes: "35=" + one char + SOH) plus everything pushed so far.
func (mb *MessageBuilder) bodyLen() int {
	return mb.main.Len() + 5
}

// Build renders the complete wire message into w: preamble, computed
// BodyLength, MsgType, MsgSeqNum, the interleaved SendingTime header, the
// accumulated body, and a trailing CheckSum.
func (mb *MessageBuilder) Build(w io.Writer, msgSeqNum uint32, additionalHeaders *AdditionalHeaders, sendingTime time.Time) error {
	seqField := fmt.Sprintf("34=%d\x01", msgSeqNum)

	bodyLen := mb.bodyLen() + additionalHeaders.Len() + len(seqField)

	cw := newChecksumWriter(w)

	if _, err := cw.Write(mb.preamble[:mb.preLen]); err != nil {
		return err
	}
	if _, err := io.WriteString(cw, strconv.Itoa(bodyLen)); err != nil {
		return err
	}
	if _, err := cw.Write([]byte{soh}); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(cw, "35=%c\x01", mb.msgType); err != nil {
		return err
	}
	if _, err := io.WriteString(cw, seqField); err != nil {
		return err
	}
	if err := additionalHeaders.writeAll(cw, sendingTime); err != nil {
		return err
	}
	if _, err := cw.Write(mb.main.Bytes()); err != nil {
		return err
	}

	checksum := cw.Checksum()
	_, err := fmt.Fprintf(w, "10=%03d\x01", checksum)
	return err
}
