package stream

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn lets the framer read from an in-memory buffer without a real
// socket.
type fakeConn struct {
	*bytes.Reader
	closed bool
}

func (f *fakeConn) Write(p []byte) (int, error)      { return len(p), nil }
func (f *fakeConn) SetReadDeadline(t time.Time) error { return nil }
func (f *fakeConn) Close() error                     { f.closed = true; return nil }

func TestReadMessage(t *testing.T) {
	msg := "8=FIX.4.2\x019=25\x0135=0\x0134=0\x0149=send\x0156=rec\x0110=000\x01"
	conn := &fakeConn{Reader: bytes.NewReader([]byte(msg))}
	r := NewReader(conn)

	got, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, msg, string(got))
}

func TestReadMessageResyncsPastGarbage(t *testing.T) {
	good := "8=FIX.4.2\x019=25\x0135=0\x0134=0\x0149=send\x0156=rec\x0110=000\x01"
	garbage := "garbage-not-fix"
	conn := &fakeConn{Reader: bytes.NewReader([]byte(garbage + good))}
	r := NewReader(conn)

	got, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, good, string(got))
}

func TestReadMessageEOFIsDisconnection(t *testing.T) {
	conn := &fakeConn{Reader: bytes.NewReader(nil)}
	r := NewReader(conn)

	_, err := r.ReadMessage()
	require.Error(t, err)
}

func TestSendMessage(t *testing.T) {
	var buf bytes.Buffer
	err := SendMessage(&buf, []byte("8=FIX.4.2\x01"))
	require.NoError(t, err)
	assert.Equal(t, "8=FIX.4.2\x01", buf.String())
}

func TestSendMessageClosedPipe(t *testing.T) {
	err := SendMessage(closedWriter{}, []byte("x"))
	require.Error(t, err)
}

type closedWriter struct{}

func (closedWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }
