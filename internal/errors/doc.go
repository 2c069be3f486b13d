// Package apperrors defines structured application error types, allowing for
// a clear distinction between error classes (configuration, protocol,
// listener, calculation) and for carrying the underlying cause.
//
// Error Wrapping Guidelines:
// This package follows Go's error wrapping conventions using fmt.Errorf with %w.
// Every error type that carries a cause implements Unwrap() to support
// errors.Is() and errors.As(). ExitCode maps the classes to process exit codes.
package apperrors
