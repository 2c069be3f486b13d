package fibonacci

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Engine Constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	// CancelCheckInterval is the number of recurrence steps the iterative
	// calculator performs between two context checks.
	CancelCheckInterval = 4096

	// Log10Phi is log10 of the golden ratio. F(n) has about n*Log10Phi
	// decimal digits.
	Log10Phi = 0.20898764024997873

	// Log10Sqrt5 is log10(sqrt(5)), the offset of Binet's formula in log space.
	Log10Sqrt5 = 0.3494850021680094

	// DefaultCacheTTL is the expiry applied by the result cache when none is
	// given.
	DefaultCacheTTL = 10 * time.Minute
)
