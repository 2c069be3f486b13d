package format

import (
	"strconv"
	"strings"
)

// FormatNumberString inserts thousands separators into a decimal string.
// A leading minus sign is preserved.
func FormatNumberString(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.Grow(len(sign) + len(s) + len(s)/3)
	b.WriteString(sign)
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > len(sign) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// DigitCount returns the number of decimal digits in s, ignoring a sign.
func DigitCount(s string) int {
	return len(strings.TrimPrefix(s, "-"))
}

// TruncateDigits shortens a decimal string longer than limit digits to its
// first and last edges digits around an ellipsis, followed by the digit
// count. Shorter strings, and any limit <= 2*edges, are returned unchanged.
func TruncateDigits(s string, limit, edges int) string {
	digits := DigitCount(s)
	if digits <= limit || limit <= 2*edges {
		return s
	}
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	return sign + s[:edges] + "..." + s[len(s)-edges:] + " (" + strconv.Itoa(digits) + " digits)"
}
