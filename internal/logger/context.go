package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds session-scoped logging context: the FIX counterparty
// identity and the message currently being processed.
type LogContext struct {
	TraceID      string // correlation id for request tracing
	SpanID       string
	SenderCompID string // tag 49
	TargetCompID string // tag 56
	Epoch        string // store partition key
	MsgType      string // tag 35 of the message currently being handled
	ClientIP     string // peer address, without port
	StartTime    time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a session identified by its
// CompID pair and epoch.
func NewLogContext(senderCompID, targetCompID, epoch string) *LogContext {
	return &LogContext{
		SenderCompID: senderCompID,
		TargetCompID: targetCompID,
		Epoch:        epoch,
		StartTime:    time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithMsgType returns a copy with the in-flight MsgType set.
func (lc *LogContext) WithMsgType(msgType string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.MsgType = msgType
	}
	return clone
}

// WithClientIP returns a copy with the peer address set.
func (lc *LogContext) WithClientIP(addr string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ClientIP = addr
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
