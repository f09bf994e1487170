// Package tag is the closed subset of the FIX 4.2 tag dictionary that the
// session engine needs to understand. The full tag dictionary is treated as
// a pure data table outside the core's scope; this package carries only the
// tags referenced by the state machine, encoder, decoder and resend
// transformer.
package tag

// Header fields, per the FIX 4.2 standard header.
const (
	BeginString   = 8
	BodyLength    = 9
	MsgType       = 35
	SenderCompID  = 49
	TargetCompID  = 56
	OnBehalfOfCompID = 115
	DeliverToCompID  = 128
	SecureDataLen = 90
	SecureData    = 91
	MsgSeqNum     = 34
	SenderSubID   = 50
	SenderLocationID = 142
	TargetSubID      = 57
	TargetLocationID = 143
	OnBehalfOfSubID  = 116
	DeliverToSubID   = 129
	OnBehalfOfLocationID = 145
	PossDupFlag   = 43
	PossResend    = 97
	SendingTime   = 52
	OrigSendingTime = 122
	XmlDataLen    = 212
	XmlData       = 213
	MsgEncoding   = 347
	LastMsgSeqNumProcessed = 369
	OnBehalfOfSendingTime  = 370
)

// Trailer fields.
const (
	SignatureLength = 93
	Signature       = 89
	CheckSum        = 10
)

// Body fields used by session-level (admin) messages.
const (
	EncryptMethod       = 98
	HeartBtInt          = 108
	ResetSeqNumFlag     = 141
	TestReqID           = 112
	BeginSeqNo          = 7
	EndSeqNo            = 16
	GapFillFlag         = 123
	NewSeqNo            = 36
	RefSeqNum           = 45
	RefTagID            = 371
	RefMsgType          = 372
	SessionRejectReason = 373
	Text                = 58
)

// DataLengthTags maps each length-prefixed data tag to the tag carrying its
// opaque, SOH-tolerant value. Parsing the length tag's value first is what
// lets the decoder skip over embedded SOH bytes in the paired data tag.
var DataLengthTags = map[uint32]uint32{
	93:  89,
	90:  91,
	95:  96,
	212: 213,
	348: 349,
	350: 351,
	352: 353,
	354: 355,
	356: 357,
	358: 359,
	360: 361,
	362: 363,
	364: 365,
	445: 446,
}

// HeaderFields is the closed set of tags classified as header fields.
var HeaderFields = map[uint32]struct{}{
	8: {}, 9: {}, 35: {}, 49: {}, 56: {}, 115: {}, 128: {}, 90: {}, 91: {},
	34: {}, 50: {}, 142: {}, 57: {}, 143: {}, 116: {}, 129: {}, 145: {},
	43: {}, 97: {}, 52: {}, 122: {}, 212: {}, 213: {}, 347: {}, 369: {}, 370: {},
}

// TrailerFields is the closed set of tags classified as trailer fields.
var TrailerFields = map[uint32]struct{}{
	93: {}, 89: {}, 10: {},
}
