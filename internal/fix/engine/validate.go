package engine

import (
	"time"

	"github.com/quantbridge/fixgo/internal/fix/ferr"
	"github.com/quantbridge/fixgo/internal/fix/tag"
)

// sendingTimeTolerance bounds how far a message's SendingTime(52) may drift
// from wall-clock time in either direction before it is rejected.
const sendingTimeTolerance = 10 * time.Second

// validateMsg runs the session-level checks every inbound message must
// pass before the state machine sees it: CompID identity, a fresh
// SendingTime, a well-formed PossDupFlag (and, if set, a consistent
// OrigSendingTime), and a fully-specified range on any ResendRequest.
//
// expectedSenderCompID/expectedTargetCompID are the values this engine
// expects tags 49/56 to carry on an inbound message: the peer's CompID and
// this engine's own CompID, respectively.
func validateMsg(expectedSenderCompID, expectedTargetCompID string, cb *parserCallback) error {
	if cb.targetCompID == nil || string(cb.targetCompID) != expectedTargetCompID {
		return cb.reject(tag.RejectCompIDProblem, tag.TargetCompID)
	}
	if cb.senderCompID == nil || string(cb.senderCompID) != expectedSenderCompID {
		return cb.reject(tag.RejectCompIDProblem, tag.SenderCompID)
	}
	if cb.sendingTime == nil {
		return cb.reject(tag.RejectRequiredTagMissing, tag.SendingTime)
	}
	if !validSendingTime(*cb.sendingTime, sendingTimeTolerance) {
		return cb.reject(tag.RejectSendingTimeAccuracyProblem, tag.SendingTime)
	}

	switch {
	case cb.possDupFlag != nil && *cb.possDupFlag == 'Y':
		if err := validateDuplicate(cb, *cb.sendingTime); err != nil {
			return err
		}
	case cb.possDupFlag == nil || *cb.possDupFlag == 'N':
		// ordinary, non-duplicate message
	default:
		return cb.reject(tag.RejectValueIsIncorrect, tag.PossDupFlag)
	}

	if cb.msgType == tag.MsgTypeResendRequest && (cb.beginSeqNo == nil || cb.endSeqNo == nil) {
		return ferr.NewMessageRejected(ferr.Reason(tag.RejectRequiredTagMissing), cb.msgSeqNum, nil, ferr.MsgTypeByte(cb.msgType))
	}

	return nil
}

// validSendingTime reports whether sendingTime is within tolerance of now
// in either direction.
func validSendingTime(sendingTime time.Time, tolerance time.Duration) bool {
	now := time.Now().UTC()
	return now.Sub(sendingTime) < tolerance && sendingTime.Sub(now) < tolerance
}

// validateDuplicate applies the extra checks a PossDupFlag=Y message must
// satisfy: it must carry an OrigSendingTime, and that time must not be
// later than the message's own SendingTime (a replay can't claim to have
// originally been sent in the future).
func validateDuplicate(cb *parserCallback, sendingTime time.Time) error {
	if cb.origSendingTime == nil {
		return cb.reject(tag.RejectRequiredTagMissing, tag.OrigSendingTime)
	}
	if cb.origSendingTime.After(sendingTime) {
		return ferr.NewMessageRejected(ferr.Reason(tag.RejectSendingTimeAccuracyProblem), cb.msgSeqNum, nil, ferr.MsgTypeByte(cb.msgType))
	}
	return nil
}
