package encode

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializedInt(t *testing.T) {
	cases := []struct {
		n    uint64
		want string
	}{
		{1, "1"},
		{1918230917, "1918230917"},
		{0, "0"},
	}
	for _, c := range cases {
		got := string(NewSerializedInt(c.n).Bytes())
		assert.Equal(t, c.want, got, strconv.FormatUint(c.n, 10))
	}
}

func TestMessageBuilder(t *testing.T) {
	mb := NewMessageBuilder("FIX.4.2", 'Q')
	mb.PushString(44, "fqwe")
	mb.PushString(88, "43")

	headers := NewAdditionalHeaders(nil)

	var buf bytes.Buffer
	err := mb.Build(&buf, 1, headers, time.Unix(0, 0).UTC())
	require.NoError(t, err)

	want := "8=FIX.4.2\x019=49\x0135=Q\x0134=1\x0152=19700101-00:00:00.000\x0144=fqwe\x0188=43\x0110=245\x01"
	assert.Equal(t, want, buf.String())
}

func TestAdditionalHeadersSplit(t *testing.T) {
	h := NewAdditionalHeaders(CompIDHeaders("asdf", "qwer"))
	assert.Equal(t, []byte("49=asdf\x01"), h.prefix)
	assert.Equal(t, []byte("56=qwer\x01"), h.suffix)
}

func TestChecksumValidOnBuiltMessage(t *testing.T) {
	mb := NewMessageBuilder("FIX.4.2", 'Q')
	mb.PushString(44, "fqwe")
	mb.PushString(88, "43")
	headers := NewAdditionalHeaders(nil)

	var buf bytes.Buffer
	require.NoError(t, mb.Build(&buf, 1, headers, time.Unix(0, 0).UTC()))

	assert.True(t, ChecksumIsValid(buf.Bytes()))

	got, err := ParseChecksum(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, byte(245), got)
}
