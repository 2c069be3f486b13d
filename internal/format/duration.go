// Package format holds display helpers shared by the command-line front-ends.
package format

import (
	"fmt"
	"time"
)

// FormatExecutionDuration formats a duration for display: microseconds
// below a millisecond, milliseconds below a second, and the default
// representation otherwise.
//
// Parameters:
//   - d: The duration to format.
//
// Returns:
//   - string: A formatted string representing the duration.
func FormatExecutionDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}
