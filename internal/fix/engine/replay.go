package engine

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/quantbridge/fixgo/internal/fix/encode"
	"github.com/quantbridge/fixgo/internal/fix/resend"
	"github.com/quantbridge/fixgo/internal/fix/stream"
	"github.com/quantbridge/fixgo/internal/fix/tag"
	"github.com/quantbridge/fixgo/pkg/fixlog"
	"github.com/quantbridge/fixgo/pkg/store"
)

// resendMessages replays a ResendRequest's fulfilment: each stored message
// is rebuilt as a PossDup replay and sent in order, except runs of
// session-level messages (Logon, Heartbeat, and the like, which a peer has
// no use for replayed) are collapsed into a single SequenceReset(GapFill)
// spanning the run.
func (e *Engine) resendMessages(messages []store.Message) error {
	sort.Slice(messages, func(i, j int) bool { return messages[i].MsgSeqNum < messages[j].MsgSeqNum })

	var sessionMsgCount uint32
	for _, m := range messages {
		transformer, err := resend.NewTransformer(m.Payload)
		if err != nil {
			return fmt.Errorf("engine: parse stored message %d for replay: %w", m.MsgSeqNum, err)
		}
		if tag.IsSessionMsgType(transformer.MsgType()) {
			sessionMsgCount++
			continue
		}
		if sessionMsgCount > 0 {
			if err := e.sendGapFill(m.MsgSeqNum-sessionMsgCount, m.MsgSeqNum); err != nil {
				return err
			}
			sessionMsgCount = 0
		}
		if err := e.sendTransformed(transformer); err != nil {
			return err
		}
	}
	if sessionMsgCount > 0 {
		last := messages[len(messages)-1].MsgSeqNum
		if err := e.sendGapFill(last-sessionMsgCount+1, last+1); err != nil {
			return err
		}
	}
	return nil
}

// sendGapFill builds and sends a SequenceReset(GapFill=Y) message that
// stands in for a run of skipped session messages: gapMsgSeqNum is the
// MsgSeqNum(34) this gap-fill message itself carries (the first seq number
// in the skipped run), newSeqNo is the NewSeqNo(36) it announces — the seq
// number of the first message after the run. The built message is itself
// run through the PossDup transformer, since it is standing in for a
// replayed run rather than an original transmission.
func (e *Engine) sendGapFill(gapMsgSeqNum, newSeqNo uint32) error {
	b := encode.NewMessageBuilder(e.settings.BeginString, tag.MsgTypeSequenceReset)
	b.PushString(tag.NewSeqNo, strconv.FormatUint(uint64(newSeqNo), 10))
	b.PushString(tag.GapFillFlag, "Y")

	var buf bytes.Buffer
	if err := b.Build(&buf, gapMsgSeqNum, e.additionalHeaders, time.Now()); err != nil {
		return fmt.Errorf("engine: build gap fill message: %w", err)
	}
	transformer, err := resend.NewTransformer(buf.Bytes())
	if err != nil {
		return fmt.Errorf("engine: transform gap fill message: %w", err)
	}
	return e.sendTransformed(transformer)
}

func (e *Engine) sendTransformed(t *resend.Transformer) error {
	var buf bytes.Buffer
	if err := t.Build(&buf, time.Now()); err != nil {
		return fmt.Errorf("engine: build replay message: %w", err)
	}
	if err := stream.SendMessage(e.conn, buf.Bytes()); err != nil {
		return err
	}
	return e.wireLog.LogMessage(fixlog.Outgoing, buf.Bytes())
}
