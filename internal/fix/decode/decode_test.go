package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedField struct {
	tag   uint32
	value string
}

type recordingCallback struct {
	fields []capturedField
	err    error
}

func (r *recordingCallback) Header(t uint32, v []byte) (bool, error) {
	r.fields = append(r.fields, capturedField{t, string(v)})
	return true, nil
}

func (r *recordingCallback) Body(t uint32, v []byte) (bool, error) {
	r.fields = append(r.fields, capturedField{t, string(v)})
	return true, nil
}

func (r *recordingCallback) Trailer(t uint32, v []byte) (bool, error) {
	r.fields = append(r.fields, capturedField{t, string(v)})
	return true, nil
}

func (r *recordingCallback) ParseError(err error) error {
	r.err = err
	return err
}

func TestParseFieldIteration(t *testing.T) {
	msg := []byte("93=6\x018=A\x0189=12\x01456\x0110=123\x01")
	cb := &recordingCallback{}
	err := Parse(msg, cb)
	require.NoError(t, err)
	assert.Equal(t, []capturedField{
		{93, "6"},
		{8, "A"},
		{89, "12\x01456"},
		{10, "123"},
	}, cb.fields)
}

func TestParseFieldIterationBadLength(t *testing.T) {
	msg := []byte("93=6A\x018=A\x0189=12\x01456\x0110=123\x01")
	cb := &recordingCallback{}
	err := Parse(msg, cb)
	require.Error(t, err)
}

func TestParsePeekedPrefix(t *testing.T) {
	peeked := make([]byte, 32)
	copy(peeked, "8=FIX.4.2\x019=77\x0135=A\x0134=1\x01")

	p, err := ParsePeekedPrefix(peeked)
	require.NoError(t, err)
	assert.Equal(t, byte('A'), p.MsgType)
	assert.Equal(t, uint32(77), p.BodyLength)
	assert.Equal(t, 12, p.LenStart)
}

func TestParsePeekedPrefixBadBeginString(t *testing.T) {
	peeked := make([]byte, 32)
	copy(peeked, "8=FIX.4.1\x019=77\x0135=A\x0134=1\x01")
	_, err := ParsePeekedPrefix(peeked)
	require.Error(t, err)
}

func TestParsePeekedPrefixBadMsgType(t *testing.T) {
	peeked := make([]byte, 32)
	copy(peeked, "8=FIX.4.2\x019=77\x0136=A\x0134=1\x01")
	_, err := ParsePeekedPrefix(peeked)
	require.Error(t, err)
}
