package license

import (
	"encoding/base64"
	"errors"
	"strings"
)

const (
	wirePrefix = "VID_AUTH_"
	wireSuffix = "_END"
	shift      = 3
)

// ErrMalformedCode is returned by Decode for anything that is not a valid
// encoding. It never leaves this package.
var ErrMalformedCode = errors.New("malformed license code")

// Codec converts between plaintext and wire license codes.
type Codec struct{}

// Encode produces the wire form of plain.
func (Codec) Encode(plain string) string {
	wrapped := wirePrefix + plain + wireSuffix

	var sub strings.Builder
	sub.Grow(len(wrapped))
	for i := 0; i < len(wrapped); i++ {
		sub.WriteByte(substitute(wrapped[i]))
	}

	b64 := base64.StdEncoding.EncodeToString([]byte(sub.String()))

	out := make([]byte, len(b64))
	for i := 0; i < len(b64); i++ {
		out[i] = b64[i] + shift
	}
	return string(out)
}

// Decode reverses Encode. It returns ErrMalformedCode instead of panicking
// on any input that Encode could not have produced.
func (Codec) Decode(wire string) (string, error) {
	if wire == "" {
		return "", ErrMalformedCode
	}

	shifted := make([]byte, len(wire))
	for i := 0; i < len(wire); i++ {
		c := wire[i] - shift
		if c < 0x20 || c > 0x7e {
			return "", ErrMalformedCode
		}
		shifted[i] = c
	}

	raw, err := base64.StdEncoding.DecodeString(string(shifted))
	if err != nil {
		return "", ErrMalformedCode
	}

	for i := range raw {
		raw[i] = unsubstitute(raw[i])
	}

	s := string(raw)
	if !strings.HasPrefix(s, wirePrefix) || !strings.HasSuffix(s, wireSuffix) ||
		len(s) < len(wirePrefix)+len(wireSuffix) {
		return "", ErrMalformedCode
	}
	return s[len(wirePrefix) : len(s)-len(wireSuffix)], nil
}

// substitute rotates A-Z by -3 and 0-9 by +5.
func substitute(c byte) byte {
	switch {
	case c >= 'A' && c <= 'Z':
		return 'A' + (c-'A'+26-3)%26
	case c >= '0' && c <= '9':
		return '0' + (c-'0'+5)%10
	default:
		return c
	}
}

func unsubstitute(c byte) byte {
	switch {
	case c >= 'A' && c <= 'Z':
		return 'A' + (c-'A'+3)%26
	case c >= '0' && c <= '9':
		return '0' + (c-'0'+5)%10
	default:
		return c
	}
}
