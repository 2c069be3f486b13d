// Package server implements the TCP listener of the Fibonacci service.
//
// A Server binds one address and runs every accepted connection in its own
// session goroutine (see package session). Sessions share only the
// read-only Handler and, when configured, a semaphore bounding concurrent
// computations. A session failure closes that session's connection and
// nothing else; only bind and accept failures surface to the caller of
// Serve.
//
// The package also provides:
//   - Controller, which starts, stops and reports on a server for
//     interactive front-ends;
//   - Metrics, a per-server Prometheus registry that observes sessions;
//   - an admin HTTP router (AdminHandler) exposing /metrics, /healthz and
//     /status.
package server
