// Package decode turns a framed FIX message into a stream of tag/value
// callbacks. It never allocates per-field: values are returned as slices
// into the caller's buffer, valid only for the duration of the callback.
package decode

import (
	"fmt"
	"strconv"
	"time"

	"github.com/quantbridge/fixgo/internal/fix/ferr"
	"github.com/quantbridge/fixgo/internal/fix/tag"
)

// UnexpectedByte is raised when the field scanner encounters a byte it
// cannot place in the current FieldState (e.g. a non-digit byte where a
// tag number is expected).
type UnexpectedByte struct {
	Index   int
	Message []byte
}

func (e *UnexpectedByte) Error() string {
	return fmt.Sprintf("unexpected byte at index %d", e.Index)
}

// BadLengthField is raised when a length-prefixed tag's value is not a
// valid non-negative integer.
type BadLengthField struct {
	Tag   uint32
	Value []byte
}

func (e *BadLengthField) Error() string {
	return fmt.Sprintf("bad length field for tag %d: %q", e.Tag, e.Value)
}

// ParserCallback receives each field of a message as it is scanned,
// classified into header, body, or trailer. Returning false from Header or
// Body short-circuits the remaining scan (used by session parsing to bail
// out early on a non-session MsgType).
type ParserCallback interface {
	Header(tag uint32, value []byte) (bool, error)
	Body(tag uint32, value []byte) (bool, error)
	Trailer(tag uint32, value []byte) (bool, error)
	ParseError(err error) error
}

// fieldState tracks the scanner's position within the current tag=value\x01
// field.
type fieldState int

const (
	stateStart fieldState = iota
	stateInTag
	stateSeenEquals
	stateInField
)

const soh = 0x01

// Parse scans msg field-by-field, classifying each tag via tag.HeaderFields
// / tag.TrailerFields (body is everything else) and invoking cb. Scanning
// stops as soon as a callback returns false, or on the first error.
func Parse(msg []byte, cb ParserCallback) error {
	state := stateStart
	tagAccum := uint32(0)
	fieldStart := 0
	fieldLengths := make(map[uint32]uint32)
	pendingLenTag := uint32(0)

	i := 0
	for i < len(msg) {
		b := msg[i]
		switch state {
		case stateStart, stateInTag:
			switch {
			case b >= '0' && b <= '9':
				tagAccum = tagAccum*10 + uint32(b-'0')
				state = stateInTag
			case b == '=':
				state = stateSeenEquals
				fieldStart = i + 1
			default:
				return cb.ParseError(&UnexpectedByte{Index: i, Message: msg})
			}
		case stateSeenEquals, stateInField:
			state = stateInField
			if n, ok := fieldLengths[tagAccum]; ok {
				// This tag is itself the data tag for a length we already
				// parsed; skip ahead n bytes, tolerating embedded SOH
				// bytes in the value.
				end := i + int(n)
				if end > len(msg) {
					return cb.ParseError(&UnexpectedByte{Index: i, Message: msg})
				}
				i = end
				if i >= len(msg) || msg[i] != soh {
					return cb.ParseError(&UnexpectedByte{Index: i, Message: msg})
				}
				value := msg[fieldStart:i]
				cont, err := dispatch(cb, tagAccum, value)
				if err != nil {
					return err
				}
				delete(fieldLengths, tagAccum)
				state = stateStart
				tagAccum = 0
				i++
				if !cont {
					return nil
				}
				continue
			}
			if b == soh {
				value := msg[fieldStart:i]
				pendingLenTag = tagAccum
				if dt, ok := tag.DataLengthTags[pendingLenTag]; ok {
					n, err := strconv.ParseUint(string(value), 10, 32)
					if err != nil {
						return cb.ParseError(&BadLengthField{Tag: pendingLenTag, Value: value})
					}
					fieldLengths[dt] = uint32(n)
				}
				cont, err := dispatch(cb, tagAccum, value)
				if err != nil {
					return err
				}
				state = stateStart
				tagAccum = 0
				if !cont {
					return nil
				}
			}
		}
		i++
	}
	return nil
}

func dispatch(cb ParserCallback, t uint32, value []byte) (bool, error) {
	switch {
	case isHeaderField(t):
		return cb.Header(t, value)
	case isTrailerField(t):
		return cb.Trailer(t, value)
	default:
		return cb.Body(t, value)
	}
}

func isHeaderField(t uint32) bool {
	_, ok := tag.HeaderFields[t]
	return ok
}

func isTrailerField(t uint32) bool {
	_, ok := tag.TrailerFields[t]
	return ok
}

// ParseField parses a field value into T via strconv, wrapping failures
// so callers can distinguish a malformed field from a missing one.
func ParseField[T ~uint32 | ~uint64 | ~int](value []byte) (T, error) {
	n, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		var zero T
		return zero, err
	}
	return T(n), nil
}

const (
	timeFormatShort = "20060102-15:04:05"
	timeFormatLong  = "20060102-15:04:05.000"
)

// ParseSendingTime parses a SendingTime/OrigSendingTime value, trying the
// millisecond-precision format first and falling back to second precision.
func ParseSendingTime(value []byte) (time.Time, error) {
	s := string(value)
	if t, err := time.Parse(timeFormatLong, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(timeFormatShort, s)
}

// ParsedPeek is the result of parsing the fixed 32-byte peek window at the
// start of a message: BeginString, BodyLength, and MsgType, plus the byte
// offsets needed by the framer and the resend transformer.
type ParsedPeek struct {
	MsgType        byte
	MsgLength      uint32
	LenStart       int
	LenEnd         int
	FixedFieldsEnd int
	BodyLength     uint32
}

var expectedPrefix = []byte("8=FIX.4.2\x019=")

// ParsePeekedPrefix parses the leading bytes of a message (the framer peeks
// PeekLen of them) enough to learn BodyLength and MsgType without having
// read the whole message yet. It never validates fields beyond the fixed
// header prefix.
func ParsePeekedPrefix(peeked []byte) (*ParsedPeek, error) {
	if len(peeked) < 2 || peeked[0] != '8' || peeked[1] != '=' {
		return nil, ferr.NewGarbledMessage("missing BeginString", ferr.BeginStringIssue)
	}
	if len(peeked) < 9 || string(peeked[2:9]) != "FIX.4.2" {
		return nil, ferr.NewGarbledMessage("unexpected BeginString", ferr.BeginStringIssue)
	}
	if len(peeked) < len(expectedPrefix) || string(peeked[:len(expectedPrefix)]) != string(expectedPrefix) {
		return nil, ferr.NewGarbledMessage("malformed header prefix", ferr.OtherGarble)
	}

	lenStart := len(expectedPrefix)
	at := lenStart
	var bodyLength uint32
	for at < len(peeked) && peeked[at] >= '0' && peeked[at] <= '9' {
		digit := uint32(peeked[at] - '0')
		next := bodyLength*10 + digit
		if next < bodyLength {
			return nil, ferr.NewGarbledMessage("BodyLength overflowed", ferr.BodyLengthIssue)
		}
		bodyLength = next
		at++
	}
	if at == lenStart || at >= len(peeked) || peeked[at] != soh {
		return nil, ferr.NewGarbledMessage("BodyLength(9) was incorrect", ferr.BodyLengthIssue)
	}
	lenEnd := at
	at++

	if at+4 >= len(peeked) || string(peeked[at:at+3]) != "35=" || peeked[at+4] != soh {
		return nil, ferr.NewGarbledMessage("MsgType(35) was incorrect", ferr.MsgTypeIssue)
	}
	msgType := peeked[at+3]
	fixedFieldsEnd := at + 5

	msgLength := bodyLength + uint32(at) + 7

	return &ParsedPeek{
		MsgType:        msgType,
		MsgLength:      msgLength,
		LenStart:       lenStart,
		LenEnd:         lenEnd,
		FixedFieldsEnd: fixedFieldsEnd,
		BodyLength:     bodyLength,
	}, nil
}
