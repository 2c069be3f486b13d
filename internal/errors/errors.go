package apperrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// Application exit codes define the standard exit statuses for the process.
const (
	ExitSuccess       = 0   // Indicates successful execution.
	ExitErrorGeneric  = 1   // Indicates a generic error.
	ExitErrorTimeout  = 2   // Indicates the operation timed out.
	ExitErrorNetwork  = 3   // Indicates a listener or connection failure.
	ExitErrorConfig   = 4   // Indicates a configuration error.
	ExitErrorCanceled = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ConfigError represents a user configuration error, such as an invalid port
// or an unusable limit. The server refuses to start when one is returned.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// CalculationError wraps a failure raised while computing a Fibonacci number,
// typically a context cancellation that interrupted a long computation.
type CalculationError struct {
	// Cause is the underlying error that triggered this calculation error.
	Cause error
}

// Error returns the error message from the underlying cause.
func (e CalculationError) Error() string { return e.Cause.Error() }

// Unwrap returns the original wrapped error.
func (e CalculationError) Unwrap() error { return e.Cause }

// ProtocolError reports a failure reading or writing a frame on a session.
// Op is "read" or "write".
type ProtocolError struct {
	Op    string
	Cause error
}

// Error returns a formatted message naming the failing operation.
func (e ProtocolError) Error() string {
	return fmt.Sprintf("protocol %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying I/O or codec error.
func (e ProtocolError) Unwrap() error { return e.Cause }

// ListenerError reports that the server could not bind or keep its listening
// socket. It is fatal to the server, unlike per-session errors.
type ListenerError struct {
	Addr  string
	Cause error
}

// Error returns a formatted message naming the address.
func (e ListenerError) Error() string {
	return fmt.Sprintf("listener on %s: %v", e.Addr, e.Cause)
}

// Unwrap returns the underlying network error.
func (e ListenerError) Unwrap() error { return e.Cause }

// TimeoutError represents an operation that exceeded its deadline.
type TimeoutError struct {
	// Operation is the name of the operation that timed out.
	Operation string
	// Limit is the duration after which the operation was considered timed out.
	Limit time.Duration
}

// Error returns a formatted message describing the timeout.
func (e TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Operation, e.Limit)
}

// ValidationError represents an input validation failure. It identifies which
// field failed validation and provides a human-readable explanation.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message explains the validation failure.
	Message string
}

// Error returns a formatted message describing the validation failure.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
}

// WrapError wraps an error with additional context using fmt.Errorf and %w.
//
// Parameters:
//   - err: The error to wrap.
//   - format: A format string for the context message.
//   - args: Arguments for the format string.
//
// Returns:
//   - error: The wrapped error, or nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsConnectionClosed reports whether err signals that the peer went away or
// the connection was closed locally. Sessions treat these as a normal end of
// conversation rather than a fault.
func IsConnectionClosed(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}

// ExitCode maps an error returned by a command to a process exit status.
//
// Parameters:
//   - err: The error returned by the command, or nil.
//
// Returns:
//   - int: One of the Exit* constants.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		configErr   ConfigError
		timeoutErr  TimeoutError
		listenerErr ListenerError
		netErr      net.Error
	)
	switch {
	case errors.As(err, &configErr):
		return ExitErrorConfig
	case errors.Is(err, context.Canceled):
		return ExitErrorCanceled
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return ExitErrorTimeout
	case errors.As(err, &listenerErr):
		return ExitErrorNetwork
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ExitErrorTimeout
		}
		return ExitErrorNetwork
	}
	return ExitErrorGeneric
}
