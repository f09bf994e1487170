// Package resend rebuilds a previously sent message as a replay: it marks
// PossDupFlag(43)=Y, moves the original SendingTime into OrigSendingTime
// (122), stamps a fresh SendingTime, and recomputes BodyLength and
// CheckSum around the edit.
package resend

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/quantbridge/fixgo/internal/fix/decode"
	"github.com/quantbridge/fixgo/internal/fix/encode"
	"github.com/quantbridge/fixgo/internal/fix/ferr"
)

var possDupFlagEqY = []byte("43=Y\x01")
var origSendingTimeTag = []byte("122=")

const soh = 0x01
const timeFormat = "20060102-15:04:05.000"

// Transformer holds the byte offsets of the parts of msg that need
// editing to turn it into a PossDup replay.
type Transformer struct {
	msg              []byte
	lenStart         int
	lenEnd           int
	possDupInsertAt  int
	sendingTimeStart int
	sendingTimeEnd   int
	msgType          byte
}

// NewTransformer parses msg's header enough to locate the fields the
// resend rewrite touches. msg must be the exact stored bytes of a message
// this engine previously sent.
func NewTransformer(msg []byte) (*Transformer, error) {
	if len(msg) < 32 {
		return nil, &ferr.ResendError{}
	}
	parsed, err := decode.ParsePeekedPrefix(msg[:32])
	if err != nil {
		return nil, err
	}

	insertAt, err := seqNumFieldEnd(msg, parsed.FixedFieldsEnd)
	if err != nil {
		return nil, err
	}

	start, end, err := sendingTimeIndices(msg)
	if err != nil {
		return nil, err
	}

	return &Transformer{
		msg:              msg,
		lenStart:         parsed.LenStart,
		lenEnd:           parsed.LenEnd,
		possDupInsertAt:  insertAt,
		sendingTimeStart: start,
		sendingTimeEnd:   end,
		msgType:          parsed.MsgType,
	}, nil
}

// seqNumFieldEnd finds the byte offset just past the MsgSeqNum(34) field
// that immediately follows MsgType(35) in this repo's wire format (see
// encode.MessageBuilder.Build), so PossDupFlag(43) can be inserted after
// it rather than before it.
func seqNumFieldEnd(msg []byte, start int) (int, error) {
	const prefix = "34="
	if start+len(prefix) > len(msg) || string(msg[start:start+len(prefix)]) != prefix {
		return 0, &ferr.ResendError{}
	}
	i := start + len(prefix)
	if i >= len(msg) || msg[i] < '0' || msg[i] > '9' {
		return 0, &ferr.ResendError{}
	}
	for i < len(msg) && msg[i] >= '0' && msg[i] <= '9' {
		i++
	}
	if i >= len(msg) || msg[i] != soh {
		return 0, &ferr.ResendError{}
	}
	return i + 1, nil
}

// sendingTimeIndices finds the byte range of the SendingTime(52) field's
// value: the first "\x0152=" window, then the following SOH.
func sendingTimeIndices(msg []byte) (start, end int, err error) {
	needle := []byte("\x0152=")
	idx := bytes.Index(msg, needle)
	if idx < 0 {
		return 0, 0, &ferr.ResendError{}
	}
	start = idx + len(needle)
	rel := bytes.IndexByte(msg[start:], soh)
	if rel < 0 {
		return 0, 0, &ferr.ResendError{}
	}
	return start, start + rel, nil
}

// MsgType reports the original message's MsgType(35) value.
func (t *Transformer) MsgType() byte { return t.msgType }

// Build writes the transformed (PossDup replay) message to w, stamping now
// as the new SendingTime.
func (t *Transformer) Build(w io.Writer, now time.Time) error {
	lenBytes := t.msg[t.lenStart:t.lenEnd]
	oldLen, err := strconv.ParseUint(string(lenBytes), 10, 32)
	if err != nil {
		return &ferr.ResendError{}
	}

	origSendingTime := t.msg[t.sendingTimeStart:t.sendingTimeEnd]
	newSendingTime := now.UTC().Format(timeFormat)

	newLen := oldLen + uint64(len(newSendingTime)) + uint64(len(possDupFlagEqY)) + uint64(len(origSendingTimeTag)) + 1

	var sum int
	writeCounted := func(p []byte) error {
		if _, err := w.Write(p); err != nil {
			return err
		}
		for _, b := range p {
			sum += int(b)
		}
		return nil
	}

	if err := writeCounted(t.msg[:t.lenStart]); err != nil {
		return err
	}
	if err := writeCounted(encode.NewSerializedInt(newLen).Bytes()); err != nil {
		return err
	}
	if err := writeCounted([]byte{soh}); err != nil {
		return err
	}
	if err := writeCounted(t.msg[t.lenEnd+1 : t.possDupInsertAt]); err != nil {
		return err
	}
	if err := writeCounted(possDupFlagEqY); err != nil {
		return err
	}
	if err := writeCounted(t.msg[t.possDupInsertAt:t.sendingTimeStart]); err != nil {
		return err
	}
	if err := writeCounted([]byte(newSendingTime)); err != nil {
		return err
	}
	if err := writeCounted([]byte{soh}); err != nil {
		return err
	}
	if err := writeCounted(origSendingTimeTag); err != nil {
		return err
	}
	if err := writeCounted(origSendingTime); err != nil {
		return err
	}
	if err := writeCounted([]byte{soh}); err != nil {
		return err
	}
	if err := writeCounted(t.msg[t.sendingTimeEnd+1 : len(t.msg)-7]); err != nil {
		return err
	}

	checksum := byte(sum % 256)
	_, err = fmt.Fprintf(w, "10=%03d\x01", checksum)
	return err
}
