// Package stream frames the raw TCP byte stream into discrete FIX
// messages: peeking the fixed header prefix to learn the total message
// length, then reading exactly that many bytes, with a garbled-message
// resync path for anything that doesn't parse as a well-formed header.
package stream

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"

	"github.com/quantbridge/fixgo/internal/fix/decode"
	"github.com/quantbridge/fixgo/internal/fix/ferr"
	"github.com/quantbridge/fixgo/internal/logger"
)

// PeekLen is the number of leading bytes peeked to learn BeginString,
// BodyLength, and MsgType before committing to reading the full message.
const PeekLen = 32

// Conn is the subset of net.Conn the framer needs, narrowed so it can be
// exercised against any buffered stream in tests.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
	Close() error
}

// Reader frames messages off of a buffered connection.
type Reader struct {
	r    *bufio.Reader
	conn Conn
}

// NewReader wraps conn in a framer. The buffered reader's size must be at
// least PeekLen so Peek never short-reads.
func NewReader(conn Conn) *Reader {
	return &Reader{r: bufio.NewReaderSize(conn, 64*1024), conn: conn}
}

// ReadMessage blocks until a full, length-framed message is available,
// resyncing past any garbled bytes it encounters along the way. The
// returned slice is only valid until the next call to ReadMessage.
func (r *Reader) ReadMessage() ([]byte, error) {
	for {
		peeked, err := r.peek(PeekLen)
		if err != nil {
			return nil, err
		}

		parsed, perr := decode.ParsePeekedPrefix(peeked)
		if perr != nil {
			logger.Warn("discarding garbled message prefix", logger.Err(perr))
			if err := r.flush(); err != nil {
				return nil, err
			}
			continue
		}

		msg, err := r.r.Peek(int(parsed.MsgLength))
		if err != nil {
			if errors.Is(err, bufio.ErrBufferFull) {
				// Message is larger than the read buffer; grow by reading
				// into a dedicated buffer instead of relying on Peek.
				buf := make([]byte, parsed.MsgLength)
				if _, err := io.ReadFull(r.r, buf); err != nil {
					return nil, err
				}
				return buf, nil
			}
			return nil, err
		}
		out := make([]byte, len(msg))
		copy(out, msg)
		if _, err := r.r.Discard(len(msg)); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// peek blocks until n bytes are available or the connection is closed.
func (r *Reader) peek(n int) ([]byte, error) {
	for {
		b, err := r.r.Peek(n)
		if err == nil {
			return b, nil
		}
		if errors.Is(err, io.EOF) {
			return nil, &ferr.TCPDisconnection{}
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
		// Shouldn't happen given PeekLen << buffer size, but guard anyway.
		return nil, err
	}
}

// flush implements the garbled-message resync algorithm: it discards
// bytes one at a time until it sees the start of a plausible next message
// ("8=F"), so a single corrupted message doesn't wedge the session.
func (r *Reader) flush() error {
	firstPass := true
	for {
		peek3, err := r.r.Peek(3)
		if err == nil && string(peek3) == "8=F" && !firstPass {
			return nil
		}
		firstPass = false
		if _, err := r.r.Discard(1); err != nil {
			if errors.Is(err, io.EOF) {
				return &ferr.TCPDisconnection{}
			}
			return err
		}
	}
}

// Disconnect closes the underlying connection after disabling lingering
// writes, so a half-written message is never silently buffered by the OS.
func Disconnect(conn Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	_ = conn.Close()
}

// SendMessage writes a fully framed message to conn, classifying a
// peer-closed pipe as a TCPDisconnection.
func SendMessage(conn io.Writer, msg []byte) error {
	_, err := conn.Write(msg)
	if err != nil {
		if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) {
			return &ferr.TCPDisconnection{}
		}
		return err
	}
	return nil
}
