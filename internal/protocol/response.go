package protocol

import (
	"fmt"
	"math/big"
	"strings"
)

// ErrorPrefix starts the text of every error response.
const ErrorPrefix = "Error: "

// Response is the result of one request: a value on success or an error
// sentence on failure.
type Response struct {
	// Value is F(n) for a successful response, nil otherwise.
	Value *big.Int
	// Message is the error sentence for a failed response, without the
	// "Error: " prefix and trailing newline.
	Message string
}

// Success returns a successful response carrying v.
func Success(v *big.Int) Response { return Response{Value: v} }

// Failure returns an error response with the given sentence.
func Failure(message string) Response { return Response{Message: message} }

// LimitExceeded is the response to a request whose magnitude is above bound.
func LimitExceeded(bound int32) Response {
	return Failure(fmt.Sprintf("Number exceeds maximum limit of %d.", bound))
}

// ResultTooLarge is the response to a request whose result does not fit a
// response frame.
func ResultTooLarge() Response {
	return Failure(fmt.Sprintf("Result exceeds maximum response size of %d bytes.", MaxPayload))
}

// IsError reports whether r is an error response.
func (r Response) IsError() bool { return r.Value == nil }

// Text renders r as it is sent on the wire: the decimal value or
// "Error: <sentence>", followed by a newline.
func (r Response) Text() string {
	if r.IsError() {
		return ErrorPrefix + r.Message + "\n"
	}
	return r.Value.String() + "\n"
}

// ParseResponse turns response text back into a Response. The trailing
// newline is optional.
func ParseResponse(text string) (Response, error) {
	text = strings.TrimSuffix(text, "\n")
	if msg, ok := strings.CutPrefix(text, ErrorPrefix); ok {
		return Failure(msg), nil
	}
	v, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return Response{}, fmt.Errorf("response %q is neither a number nor an error", truncate(text, 40))
	}
	return Success(v), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
