//go:build gmp

package fibonacci

import (
	"context"
	"math/big"

	"github.com/ncw/gmp"
)

func init() {
	registerBuiltin("gmp", func() Calculator { return GMPCalculator{} })
}

// GMPCalculator runs fast doubling on GNU MP integers. It is only compiled
// with -tags gmp and requires libgmp at link time.
type GMPCalculator struct{}

// Name returns "gmp".
func (GMPCalculator) Name() string { return "gmp" }

// Calculate returns F(n) converted back to a math/big integer through its
// big-endian magnitude.
func (GMPCalculator) Calculate(ctx context.Context, n int32) (*big.Int, error) {
	m := magnitude(n)
	a, b := gmp.NewInt(0), gmp.NewInt(1)
	t1, t2 := new(gmp.Int), new(gmp.Int)

	for bit := 31; bit >= 0; bit-- {
		if err := ctx.Err(); err != nil {
			return nil, calcError(err)
		}
		t1.Lsh(b, 1)
		t1.Sub(t1, a)
		t1.Mul(t1, a)
		t2.Mul(a, a)
		b.Mul(b, b)
		t2.Add(t2, b)

		if m&(1<<uint(bit)) == 0 {
			a, t1 = t1, a
			b, t2 = t2, b
		} else {
			a, t2 = t2, a
			b.Add(t1, a)
		}
	}

	return applySign(new(big.Int).SetBytes(a.Bytes()), n), nil
}
