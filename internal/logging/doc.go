// Package logging provides the structured logging interface used by the
// Fibonacci server, its sessions and the command layer. It abstracts the
// underlying implementation (zerolog by default, the standard library logger
// as a fallback) so components log consistently regardless of backend.
package logging
