package tag

// MsgType values for the admin (session) messages the engine drives
// directly, plus the Logon/Logout/Heartbeat family referenced throughout
// the state machine.
const (
	MsgTypeHeartbeat      = '0'
	MsgTypeTestRequest    = '1'
	MsgTypeResendRequest  = '2'
	MsgTypeReject         = '3'
	MsgTypeSequenceReset  = '4'
	MsgTypeLogout         = '5'
	MsgTypeLogon          = 'A'
)

// sessionMsgTypes is the closed set from §4.1.4: all other MsgTypes are
// application messages, opaque to the engine.
var sessionMsgTypes = map[byte]struct{}{
	MsgTypeHeartbeat:     {},
	MsgTypeTestRequest:   {},
	MsgTypeResendRequest: {},
	MsgTypeReject:        {},
	MsgTypeSequenceReset: {},
	MsgTypeLogout:        {},
	MsgTypeLogon:         {},
}

// IsSessionMsgType reports whether a MsgType is one of the administrative
// messages the engine itself manages.
func IsSessionMsgType(msgType byte) bool {
	_, ok := sessionMsgTypes[msgType]
	return ok
}

// IsApplicationMsgType is the complement of IsSessionMsgType.
func IsApplicationMsgType(msgType byte) bool {
	return !IsSessionMsgType(msgType)
}

// SessionRejectReason is the tag 373 value set used on Reject(3) messages.
type SessionRejectReason uint32

const (
	RejectInvalidTagNumber                SessionRejectReason = 0
	RejectRequiredTagMissing               SessionRejectReason = 1
	RejectTagNotDefinedForThisMessageType  SessionRejectReason = 2
	RejectUndefinedTag                     SessionRejectReason = 3
	RejectTagSpecifiedWithoutAValue        SessionRejectReason = 4
	RejectValueIsIncorrect                 SessionRejectReason = 5
	RejectIncorrectDataFormatForValue      SessionRejectReason = 6
	RejectDecryptionProblem                SessionRejectReason = 7
	RejectSignatureProblem                 SessionRejectReason = 8
	RejectCompIDProblem                    SessionRejectReason = 9
	RejectSendingTimeAccuracyProblem       SessionRejectReason = 10
	RejectInvalidMsgType                   SessionRejectReason = 11
)

// String renders the human-readable reason text carried in Reject(58=Text).
func (r SessionRejectReason) String() string {
	switch r {
	case RejectInvalidTagNumber:
		return "Invalid tag number"
	case RejectRequiredTagMissing:
		return "Required tag missing"
	case RejectTagNotDefinedForThisMessageType:
		return "Tag not defined for this message type"
	case RejectUndefinedTag:
		return "Undefined tag"
	case RejectTagSpecifiedWithoutAValue:
		return "Tag specified without a value"
	case RejectValueIsIncorrect:
		return "Value is incorrect"
	case RejectIncorrectDataFormatForValue:
		return "Incorrect data format for value"
	case RejectDecryptionProblem:
		return "Decryption problem"
	case RejectSignatureProblem:
		return "Signature problem"
	case RejectCompIDProblem:
		return "CompID problem"
	case RejectSendingTimeAccuracyProblem:
		return "SendingTime accuracy problem"
	case RejectInvalidMsgType:
		return "Invalid MsgType"
	default:
		return "Unknown reject reason"
	}
}

// PossDupFlag is the tag 43 value set.
type PossDupFlag byte

const (
	PossDupNo  PossDupFlag = 'N'
	PossDupYes PossDupFlag = 'Y'
)

// GapFillFlag is the tag 123 value set.
type GapFillFlag byte

const (
	GapFillNo  GapFillFlag = 'N'
	GapFillYes GapFillFlag = 'Y'
)
