package engine

import (
	"time"

	"github.com/quantbridge/fixgo/internal/fix/decode"
	"github.com/quantbridge/fixgo/internal/fix/ferr"
	"github.com/quantbridge/fixgo/internal/fix/tag"
)

// parserCallback collects the header and body fields the session layer
// needs from one decoded message. Once MsgType is known not to be a
// session message, Body stops the scan early: everything else about an
// application message's payload is opaque at this layer.
type parserCallback struct {
	msgType   byte
	msgSeqNum uint32

	senderCompID []byte
	targetCompID []byte

	possDupFlag     *byte
	sendingTime     *time.Time
	origSendingTime *time.Time

	gapFill         *byte
	newSeqNo        *uint32
	testReqID       []byte
	beginSeqNo      *uint32
	endSeqNo        *uint32
	heartBtInt      *uint32
	encryptMethod   *uint32
	resetSeqNumFlag *byte
}

func (cb *parserCallback) reject(reason tag.SessionRejectReason, t uint32) error {
	return ferr.NewMessageRejected(ferr.Reason(reason), cb.msgSeqNum, ferr.TagID(t), ferr.MsgTypeByte(cb.msgType))
}

func (cb *parserCallback) Header(t uint32, value []byte) (bool, error) {
	switch t {
	case tag.MsgType:
		if len(value) != 1 {
			return false, cb.reject(tag.RejectInvalidMsgType, tag.MsgType)
		}
		cb.msgType = value[0]
	case tag.MsgSeqNum:
		n, err := decode.ParseField[uint32](value)
		if err != nil {
			return false, &ferr.MissingMsgSeqNum{Text: "Missing MsgSeqNum"}
		}
		cb.msgSeqNum = n
	case tag.TargetCompID:
		cb.targetCompID = append([]byte(nil), value...)
	case tag.SenderCompID:
		cb.senderCompID = append([]byte(nil), value...)
	case tag.PossDupFlag:
		if len(value) != 1 {
			return false, cb.reject(tag.RejectValueIsIncorrect, tag.PossDupFlag)
		}
		b := value[0]
		cb.possDupFlag = &b
	case tag.SendingTime:
		t0, err := decode.ParseSendingTime(value)
		if err != nil {
			return false, cb.reject(tag.RejectIncorrectDataFormatForValue, tag.SendingTime)
		}
		cb.sendingTime = &t0
	case tag.OrigSendingTime:
		t0, err := decode.ParseSendingTime(value)
		if err != nil {
			return false, cb.reject(tag.RejectIncorrectDataFormatForValue, tag.SendingTime)
		}
		cb.origSendingTime = &t0
	}
	return true, nil
}

func (cb *parserCallback) Body(t uint32, value []byte) (bool, error) {
	if !tag.IsSessionMsgType(cb.msgType) {
		return false, nil
	}
	switch t {
	case tag.GapFillFlag:
		if len(value) != 1 {
			return false, cb.reject(tag.RejectValueIsIncorrect, tag.GapFillFlag)
		}
		b := value[0]
		cb.gapFill = &b
	case tag.NewSeqNo:
		n, err := decode.ParseField[uint32](value)
		if err != nil {
			return false, cb.reject(tag.RejectIncorrectDataFormatForValue, tag.NewSeqNo)
		}
		cb.newSeqNo = &n
	case tag.TestReqID:
		cb.testReqID = append([]byte(nil), value...)
	case tag.BeginSeqNo:
		n, err := decode.ParseField[uint32](value)
		if err != nil {
			return false, cb.reject(tag.RejectIncorrectDataFormatForValue, tag.BeginSeqNo)
		}
		cb.beginSeqNo = &n
	case tag.EndSeqNo:
		n, err := decode.ParseField[uint32](value)
		if err != nil {
			return false, cb.reject(tag.RejectIncorrectDataFormatForValue, tag.EndSeqNo)
		}
		cb.endSeqNo = &n
	case tag.HeartBtInt:
		n, err := decode.ParseField[uint32](value)
		if err != nil {
			return false, cb.reject(tag.RejectIncorrectDataFormatForValue, tag.HeartBtInt)
		}
		cb.heartBtInt = &n
	case tag.EncryptMethod:
		n, err := decode.ParseField[uint32](value)
		if err != nil {
			return false, cb.reject(tag.RejectIncorrectDataFormatForValue, tag.EncryptMethod)
		}
		cb.encryptMethod = &n
	case tag.ResetSeqNumFlag:
		if len(value) != 1 {
			return false, cb.reject(tag.RejectValueIsIncorrect, tag.ResetSeqNumFlag)
		}
		b := value[0]
		cb.resetSeqNumFlag = &b
	}
	return true, nil
}

// Trailer is never consulted: the checksum is validated separately over the
// raw message bytes, so scanning stops the moment the trailer begins.
func (cb *parserCallback) Trailer(uint32, []byte) (bool, error) {
	return false, nil
}

func (cb *parserCallback) ParseError(err error) error {
	switch e := err.(type) {
	case *decode.BadLengthField:
		return ferr.NewMessageRejected(ferr.Reason(tag.RejectIncorrectDataFormatForValue), cb.msgSeqNum, ferr.TagID(e.Tag), nil)
	case *decode.UnexpectedByte:
		return ferr.NewGarbledMessage("invalid character in message", ferr.OtherGarble)
	default:
		return err
	}
}

var _ decode.ParserCallback = (*parserCallback)(nil)

func toPossDup(raw *byte) *tag.PossDupFlag {
	if raw == nil {
		return nil
	}
	v := tag.PossDupNo
	if *raw == byte(tag.PossDupYes) {
		v = tag.PossDupYes
	}
	return &v
}

func toGapFill(raw *byte) *tag.GapFillFlag {
	if raw == nil {
		return nil
	}
	v := tag.GapFillNo
	if *raw == byte(tag.GapFillYes) {
		v = tag.GapFillYes
	}
	return &v
}
