package config

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxSafeLimit is the largest magnitude limit L for which every response to
// a request with |n| <= L fits the 65535-byte payload of a response frame.
// F(313575) has 65533 decimal digits. F(313576) has 65534, and because even
// negative indices yield negative values, F(-313576) needs a sign, the digits
// and a newline: 65536 bytes.
const MaxSafeLimit int32 = 313575

// DefaultLimit is the limit applied when none is configured.
var DefaultLimit = LimitedTo(MaxSafeLimit)

// Limit is the magnitude bound a server enforces on request indices. The
// zero value is Unlimited.
type Limit struct {
	max     int32
	bounded bool
}

// Unlimited returns a Limit that allows every index.
func Unlimited() Limit { return Limit{} }

// LimitedTo returns a Limit that allows indices with |i| <= n.
func LimitedTo(n int32) Limit { return Limit{max: n, bounded: true} }

// Allows reports whether n is within the limit. The magnitude is computed in
// 64 bits so that math.MinInt32 is compared correctly.
func (l Limit) Allows(n int32) bool {
	if !l.bounded {
		return true
	}
	m := int64(n)
	if m < 0 {
		m = -m
	}
	return m <= int64(l.max)
}

// Max returns the bound and true, or 0 and false when unlimited.
func (l Limit) Max() (int32, bool) { return l.max, l.bounded }

// IsUnlimited reports whether no bound is enforced.
func (l Limit) IsUnlimited() bool { return !l.bounded }

// String returns "unlimited" or the decimal bound.
func (l Limit) String() string {
	if !l.bounded {
		return "unlimited"
	}
	return strconv.FormatInt(int64(l.max), 10)
}

// Set implements pflag.Value.
func (l *Limit) Set(s string) error {
	parsed, err := ParseLimit(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Type implements pflag.Value.
func (l *Limit) Type() string { return "limit" }

// Validate rejects negative bounds and bounds whose responses could overflow
// a response frame.
func (l Limit) Validate() error {
	if !l.bounded {
		return nil
	}
	if l.max < 0 {
		return fmt.Errorf("limit must not be negative, got %d", l.max)
	}
	if l.max > MaxSafeLimit {
		return fmt.Errorf("limit %d exceeds the safe maximum %d: larger results do not fit a response frame", l.max, MaxSafeLimit)
	}
	return nil
}

// ParseLimit parses a decimal bound, or one of "unlimited", "none" (any
// case) for no bound. It does not apply Validate.
//
// Parameters:
//   - s: The text to parse.
//
// Returns:
//   - Limit: The parsed limit.
//   - error: An error if s is neither a keyword nor a 32-bit integer.
func ParseLimit(s string) (Limit, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "unlimited", "none":
		return Unlimited(), nil
	case "":
		return Limit{}, fmt.Errorf("empty limit")
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return Limit{}, fmt.Errorf("invalid limit %q: must be an integer or \"unlimited\"", s)
	}
	return LimitedTo(int32(v)), nil
}
