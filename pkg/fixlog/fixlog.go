// Package fixlog provides the session-level wire logger required by §6:
// every raw message a session sends or receives is appended, verbatim and
// timestamped, to a per-connection file, while a one-line structured
// summary goes through the project's ordinary log/slog pipeline
// (internal/logger) so operators can follow a session without grepping
// the raw wire log.
package fixlog

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantbridge/fixgo/internal/logger"
)

// Direction distinguishes inbound from outbound messages in the wire log.
type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Incoming {
		return "IN"
	}
	return "OUT"
}

// Logger is the session-facing logging port: LogMessage is called once
// per message crossing the wire in either direction.
type Logger interface {
	LogMessage(direction Direction, raw []byte) error
	Disconnect() error
}

// FileLogger appends SOH-rendered wire traffic to <logDir>/<sender>-<target>.txt
// and mirrors a structured one-line summary through internal/logger.
type FileLogger struct {
	mu           sync.Mutex
	file         *os.File
	buf          *bufio.Writer
	senderCompID string
	targetCompID string
}

// Open creates (or appends to) the wire log file for a sender/target pair
// under logDir, creating logDir if necessary.
func Open(logDir, senderCompID, targetCompID string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("fixlog: create log dir %s: %w", logDir, err)
	}
	path := filepath.Join(logDir, fmt.Sprintf("%s-%s.txt", senderCompID, targetCompID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("fixlog: open %s: %w", path, err)
	}
	return &FileLogger{
		file:         f,
		buf:          bufio.NewWriter(f),
		senderCompID: senderCompID,
		targetCompID: targetCompID,
	}, nil
}

// soh renders tag=value separators as '|' for human-readable log output,
// matching the convention the rest of the FIX tooling uses when printing
// raw messages.
func soh(raw []byte) []byte {
	out := make([]byte, len(raw))
	for i, b := range raw {
		if b == 0x01 {
			out[i] = '|'
		} else {
			out[i] = b
		}
	}
	return out
}

// LogMessage appends one timestamped, human-readable line to the wire log
// and emits a structured debug summary via internal/logger.
func (l *FileLogger) LogMessage(direction Direction, raw []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamp := time.Now().Format("20060102-15:04:05.000000000")
	if _, err := fmt.Fprintf(l.buf, "%s %s : %s\n", stamp, direction, soh(raw)); err != nil {
		return fmt.Errorf("fixlog: write: %w", err)
	}
	if err := l.buf.Flush(); err != nil {
		return fmt.Errorf("fixlog: flush: %w", err)
	}

	ctx := logger.WithContext(context.Background(), logger.NewLogContext(l.senderCompID, l.targetCompID, ""))
	logger.DebugCtx(ctx, "fix message", "direction", direction.String(), "bytes", len(raw))
	return nil
}

// Disconnect flushes and closes the wire log file.
func (l *FileLogger) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.buf.Flush(); err != nil {
		return fmt.Errorf("fixlog: flush on close: %w", err)
	}
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
