// Package fibonacci computes Fibonacci numbers of signed 32-bit indices with
// arbitrary precision.
//
// The sequence is extended to negative indices with the identity
//
//	F(-n) = (-1)^(n+1) · F(n)
//
// so F(-1) = 1, F(-2) = -1, F(-8) = -21.
//
// Fibonacci is the reference function. Calculator implementations (the
// iterative recurrence, fast doubling, and fast doubling on GMP when built
// with -tags gmp) return bit-identical results and honour context
// cancellation. The engine enforces no bound; callers decide which indices
// are acceptable.
package fibonacci
