package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeModifiedUTF8_Bytes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"ascii", "A1\n", []byte{'A', '1', '\n'}},
		{"nul", "\x00", []byte{0xC0, 0x80}},
		{"two byte", "é", []byte{0xC3, 0xA9}},
		{"three byte", "☃", []byte{0xE2, 0x98, 0x83}},
		// U+1F600 is the surrogate pair D83D DE00.
		{"supplementary", "😀", []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := EncodeModifiedUTF8(nil, tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeModifiedUTF8(%q) = % x, want % x", tt.in, got, tt.want)
			}
			if EncodedLen(tt.in) != len(tt.want) {
				t.Errorf("EncodedLen(%q) = %d, want %d", tt.in, EncodedLen(tt.in), len(tt.want))
			}
		})
	}
}

func TestDecodeModifiedUTF8_Lenient(t *testing.T) {
	t.Parallel()
	// A raw zero byte is accepted on input even though it is never produced.
	got, err := DecodeModifiedUTF8([]byte{'a', 0x00, 'b'})
	if err != nil || got != "a\x00b" {
		t.Errorf("got %q, %v", got, err)
	}

	// An unpaired surrogate decodes to the replacement character.
	got, err = DecodeModifiedUTF8([]byte{0xED, 0xA0, 0xBD})
	if err != nil || got != "�" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestDecodeModifiedUTF8_Malformed(t *testing.T) {
	t.Parallel()
	tests := map[string][]byte{
		"continuation only":    {0x80},
		"truncated two byte":   {0xC3},
		"bad continuation":     {0xC3, 0x41},
		"truncated three byte": {0xE2, 0x98},
		"four byte lead":       {0xF0, 0x9F, 0x98, 0x80},
	}
	for name, in := range tests {
		in := in
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeModifiedUTF8(in); !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload for % x, got %v", in, err)
			}
		})
	}
}

// TestModifiedUTF8RoundTrip_PropertyBased checks decode(encode(s)) == s for
// valid Unicode strings, supplementary characters included.
func TestModifiedUTF8RoundTrip_PropertyBased(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("modified UTF-8 round trips", prop.ForAll(
		func(s string) bool {
			if !utf8.ValidString(s) {
				return true
			}
			enc := EncodeModifiedUTF8(nil, s)
			if len(enc) != EncodedLen(s) {
				return false
			}
			// The encoding never contains a zero byte.
			if bytes.IndexByte(enc, 0) >= 0 {
				return false
			}
			dec, err := DecodeModifiedUTF8(enc)
			return err == nil && dec == s
		},
		gen.AnyString(),
	))

	properties.Property("ascii digits are encoded as themselves", prop.ForAll(
		func(s string) bool {
			return string(EncodeModifiedUTF8(nil, s)) == s
		},
		gen.NumString(),
	))

	properties.TestingRun(t)
}

func TestEncodedLen_Digits(t *testing.T) {
	t.Parallel()
	s := "-" + strings.Repeat("7", 100) + "\n"
	if EncodedLen(s) != len(s) {
		t.Errorf("EncodedLen of ASCII text should equal its length")
	}
}
