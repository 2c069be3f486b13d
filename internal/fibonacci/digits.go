package fibonacci

import "math"

// EstimateDigits returns the number of decimal digits of |F(n)| predicted by
// Binet's formula, floor(|n|·log10(φ) − log10(√5)) + 1. The estimate is exact
// except possibly when the fractional part lands within floating point error
// of an integer, so callers that need an exact count should treat values
// within one digit of a threshold as undecided.
func EstimateDigits(n int32) int {
	m := magnitude(n)
	if m < 2 {
		return 1
	}
	return int(math.Floor(float64(m)*Log10Phi-Log10Sqrt5)) + 1
}

// EstimateTextLen returns the estimated length of the decimal rendering of
// F(n), including a leading minus sign for negative values.
func EstimateTextLen(n int32) int {
	l := EstimateDigits(n)
	if n < 0 && n%2 == 0 {
		l++
	}
	return l
}
