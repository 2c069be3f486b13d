package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/agbru/fibnet/internal/errors"
)

const (
	// RequestSize is the size of a request frame in bytes.
	RequestSize = 4
	// LengthPrefixSize is the size of a response length prefix in bytes.
	LengthPrefixSize = 2
	// MaxPayload is the largest response payload a frame can carry.
	MaxPayload = 0xFFFF
)

// ErrPayloadTooLarge is returned by WriteResponse when the encoded text does
// not fit a response frame. Nothing is written in that case.
var ErrPayloadTooLarge = errors.New("response payload exceeds 65535 bytes")

func readErr(err error) error {
	return apperrors.ProtocolError{Op: "read", Cause: err}
}

func writeErr(err error) error {
	return apperrors.ProtocolError{Op: "write", Cause: err}
}

// WriteRequest writes n as one request frame.
func WriteRequest(w io.Writer, n int32) error {
	var buf [RequestSize]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	if _, err := w.Write(buf[:]); err != nil {
		return writeErr(err)
	}
	return nil
}

// ReadRequest reads one request frame. A clean end of stream before the first
// byte yields an error matching io.EOF; a stream that ends inside the frame
// yields one matching io.ErrUnexpectedEOF. Both are wrapped in
// apperrors.ProtocolError.
func ReadRequest(r io.Reader) (int32, error) {
	var buf [RequestSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readErr(err)
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

// AppendResponse appends the response frame for text to dst.
//
// Parameters:
//   - dst: The buffer to extend; may be nil.
//   - text: The response text.
//
// Returns:
//   - []byte: The extended buffer.
//   - error: ErrPayloadTooLarge if the encoded text exceeds MaxPayload bytes.
func AppendResponse(dst []byte, text string) ([]byte, error) {
	l := EncodedLen(text)
	if l > MaxPayload {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, l)
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(l))
	return EncodeModifiedUTF8(dst, text), nil
}

// WriteResponse writes text as one response frame with a single Write call,
// so a frame is never interleaved with another writer's bytes on the
// same connection.
func WriteResponse(w io.Writer, text string) error {
	frame, err := AppendResponse(make([]byte, 0, LengthPrefixSize+len(text)), text)
	if err != nil {
		return writeErr(err)
	}
	if _, err := w.Write(frame); err != nil {
		return writeErr(err)
	}
	return nil
}

// ReadResponse reads one response frame and returns its decoded text.
func ReadResponse(r io.Reader) (string, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return "", readErr(err)
	}
	payload := make([]byte, binary.BigEndian.Uint16(prefix[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		// The length prefix promised more bytes.
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", readErr(err)
	}
	text, err := DecodeModifiedUTF8(payload)
	if err != nil {
		return "", readErr(err)
	}
	return text, nil
}
