package encode

import (
	"fmt"
	"io"

	"github.com/quantbridge/fixgo/internal/fix/ferr"
)

// checksumWriter wraps an io.Writer, accumulating a running byte-sum mod
// 256 of everything written through it. FIX checksums are computed over
// the raw wire bytes, so this lets the builder compute one in a single
// streaming pass instead of buffering then re-scanning.
type checksumWriter struct {
	w   io.Writer
	sum int
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{w: w}
}

func (c *checksumWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	for _, b := range p[:n] {
		c.sum += int(b)
	}
	return n, err
}

func (c *checksumWriter) Checksum() byte {
	return byte(c.sum % 256)
}

// CalcChecksum computes the FIX checksum (sum of bytes mod 256) directly.
func CalcChecksum(b []byte) byte {
	sum := 0
	for _, v := range b {
		sum += int(v)
	}
	return byte(sum % 256)
}

// ChecksumIsValid reports whether msg's trailing CheckSum(10) field matches
// the checksum computed over everything preceding it.
func ChecksumIsValid(msg []byte) bool {
	want, err := ParseChecksum(msg)
	if err != nil {
		return false
	}
	if len(msg) < 7 {
		return false
	}
	return CalcChecksum(msg[:len(msg)-7]) == want
}

// ParseChecksum strictly parses the trailing "10=DDD\x01" field: exactly
// three ASCII digits, nothing more.
func ParseChecksum(msg []byte) (byte, error) {
	if len(msg) < 7 {
		return 0, fmt.Errorf("message too short for checksum trailer")
	}
	tail := msg[len(msg)-7:]
	if string(tail[:3]) != "10=" || tail[6] != soh {
		return 0, ferr.NewGarbledMessage("CheckSum(10) was incorrect", ferr.BodyLengthIssue)
	}
	var n int
	for _, b := range tail[3:6] {
		if b < '0' || b > '9' {
			return 0, ferr.NewGarbledMessage("CheckSum(10) was incorrect", ferr.BodyLengthIssue)
		}
		n = n*10 + int(b-'0')
	}
	return byte(n), nil
}
