package protocol

import (
	"errors"
	"fmt"
	"unicode/utf16"
)

// ErrMalformedPayload is returned when a response payload is not valid
// modified UTF-8.
var ErrMalformedPayload = errors.New("malformed modified UTF-8 payload")

// EncodedLen returns the number of bytes EncodeModifiedUTF8 produces for s.
func EncodedLen(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r >= 0x01 && r <= 0x7F:
			n++
		case r <= 0x7FF:
			n += 2
		case r <= 0xFFFF:
			n += 3
		default:
			n += 6
		}
	}
	return n
}

// EncodeModifiedUTF8 appends the modified UTF-8 encoding of s to dst and
// returns the extended slice. Invalid UTF-8 in s is encoded as U+FFFD.
func EncodeModifiedUTF8(dst []byte, s string) []byte {
	for _, r := range s {
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			dst = appendUnit(dst, uint16(r1))
			dst = appendUnit(dst, uint16(r2))
			continue
		}
		dst = appendUnit(dst, uint16(r))
	}
	return dst
}

func appendUnit(dst []byte, c uint16) []byte {
	switch {
	case c >= 0x01 && c <= 0x7F:
		return append(dst, byte(c))
	case c <= 0x7FF:
		return append(dst,
			0xC0|byte(c>>6),
			0x80|byte(c&0x3F))
	default:
		return append(dst,
			0xE0|byte(c>>12),
			0x80|byte((c>>6)&0x3F),
			0x80|byte(c&0x3F))
	}
}

// DecodeModifiedUTF8 decodes a modified UTF-8 payload into a Go string.
// Surrogate pairs are joined into one rune; unpaired surrogates become
// U+FFFD.
//
// Parameters:
//   - b: The payload bytes, without the length prefix.
//
// Returns:
//   - string: The decoded text.
//   - error: ErrMalformedPayload (wrapped with the offset) on a bad byte sequence.
func DecodeModifiedUTF8(b []byte) (string, error) {
	// ASCII payloads, which every server response is, need no conversion.
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch c >> 4 {
		case 0, 1, 2, 3, 4, 5, 6, 7:
			units = append(units, uint16(c))
			i++
		case 12, 13:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", fmt.Errorf("%w: bad 2-byte sequence at offset %d", ErrMalformedPayload, i)
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case 14:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", fmt.Errorf("%w: bad 3-byte sequence at offset %d", ErrMalformedPayload, i)
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", fmt.Errorf("%w: invalid byte 0x%02x at offset %d", ErrMalformedPayload, c, i)
		}
	}
	return string(utf16.Decode(units)), nil
}
