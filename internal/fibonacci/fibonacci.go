package fibonacci

//go:generate mockgen -source=fibonacci.go -destination=mocks/mock_calculator.go -package=mocks

import (
	"context"
	"math/big"

	apperrors "github.com/agbru/fibnet/internal/errors"
)

// Calculator computes F(n). Implementations must be safe for concurrent use
// and return identical values for the same n. The only error a Calculator
// returns is a context error wrapped in apperrors.CalculationError.
type Calculator interface {
	// Name returns the registry name of the implementation.
	Name() string
	// Calculate returns F(n). The returned value must not be modified by
	// the caller when it may be shared (see CachedCalculator).
	Calculate(ctx context.Context, n int32) (*big.Int, error)
}

// Fibonacci returns F(n) using the iterative recurrence. It is the reference
// every Calculator is checked against.
func Fibonacci(n int32) *big.Int {
	v, _ := iterate(context.Background(), magnitude(n))
	return applySign(v, n)
}

// magnitude returns |n| without overflowing on math.MinInt32.
func magnitude(n int32) uint32 {
	if n < 0 {
		return uint32(-int64(n))
	}
	return uint32(n)
}

// applySign turns F(|n|) into F(n): negative indices that are even give a
// negative value, odd ones stay positive.
func applySign(v *big.Int, n int32) *big.Int {
	if n < 0 && n%2 == 0 {
		v.Neg(v)
	}
	return v
}

func calcError(err error) error {
	return apperrors.CalculationError{Cause: err}
}

// ─────────────────────────────────────────────────────────────────────────────
// Iterative
// ─────────────────────────────────────────────────────────────────────────────

// Iterative computes F(n) with the O(|n|) recurrence F(k+1) = F(k) + F(k-1).
type Iterative struct{}

// Name returns "iterative".
func (Iterative) Name() string { return "iterative" }

// Calculate returns F(n), checking ctx every CancelCheckInterval steps.
func (Iterative) Calculate(ctx context.Context, n int32) (*big.Int, error) {
	v, err := iterate(ctx, magnitude(n))
	if err != nil {
		return nil, err
	}
	return applySign(v, n), nil
}

func iterate(ctx context.Context, m uint32) (*big.Int, error) {
	if m == 0 {
		return new(big.Int), nil
	}
	a, b := new(big.Int), big.NewInt(1)
	done := ctx.Done()
	for i := uint32(2); i <= m; i++ {
		if done != nil && i%CancelCheckInterval == 0 {
			select {
			case <-done:
				return nil, calcError(ctx.Err())
			default:
			}
		}
		a.Add(a, b)
		a, b = b, a
	}
	return b, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Fast doubling
// ─────────────────────────────────────────────────────────────────────────────

// FastDoubling computes F(n) in O(log |n|) big-number steps using
//
//	F(2k)   = F(k) · (2·F(k+1) − F(k))
//	F(2k+1) = F(k)² + F(k+1)²
type FastDoubling struct{}

// Name returns "fast".
func (FastDoubling) Name() string { return "fast" }

// Calculate returns F(n), checking ctx once per bit of |n|.
func (FastDoubling) Calculate(ctx context.Context, n int32) (*big.Int, error) {
	m := magnitude(n)
	a, b := new(big.Int), big.NewInt(1) // F(k), F(k+1) with k = 0
	t1, t2 := new(big.Int), new(big.Int)

	for bit := 31; bit >= 0; bit-- {
		if err := ctx.Err(); err != nil {
			return nil, calcError(err)
		}
		// t1 = F(2k) = a * (2b - a)
		t1.Lsh(b, 1).Sub(t1, a).Mul(t1, a)
		// t2 = F(2k+1) = a² + b²
		t2.Mul(a, a)
		b.Mul(b, b)
		t2.Add(t2, b)

		if m&(1<<uint(bit)) == 0 {
			a, t1 = t1, a
			b, t2 = t2, b
		} else {
			// k -> 2k+1: F(2k+1), F(2k+2) = F(2k) + F(2k+1)
			a, t2 = t2, a
			b.Add(t1, a)
		}
	}
	return applySign(a, n), nil
}
