// # Naming Conventions
//
// Functions in this package follow consistent naming patterns:
//
//   - Display* functions write formatted output to an [io.Writer].
//     Examples: [DisplayResult], [DisplayQueryResult].
//
//   - Format* functions return a formatted string without performing I/O.
//     Examples: [FormatResult], [FormatQuietResult].
//
//   - Write* functions write data to files on the filesystem.
//     Examples: [WriteResultToFile].

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agbru/fibnet/internal/format"
	"github.com/agbru/fibnet/internal/protocol"
	"github.com/agbru/fibnet/internal/ui"
)

// OutputConfig holds configuration for single-query output.
type OutputConfig struct {
	// OutputFile is the path to save the result (empty for no file output).
	OutputFile string
	// Quiet prints only the response text, for scripts.
	Quiet bool
	// Verbose shows the full value instead of a truncated one.
	Verbose bool
}

// QueryResult is one answered query.
type QueryResult struct {
	// N is the requested index.
	N int32
	// Text is the response text without its trailing newline.
	Text string
	// Server is the address the query went to.
	Server string
	// Elapsed is the round-trip time.
	Elapsed time.Duration
}

// IsError reports whether the server answered with an error response.
func (q QueryResult) IsError() bool {
	return strings.HasPrefix(q.Text, protocol.ErrorPrefix)
}

// WriteResultToFile writes a query result to config.OutputFile, creating
// parent directories as needed. It does nothing when no file is set.
//
// Parameters:
//   - res: The answered query.
//   - config: Output configuration.
//
// Returns:
//   - error: An error if the file cannot be written.
func WriteResultToFile(res QueryResult, config OutputConfig) error {
	if config.OutputFile == "" {
		return nil
	}

	dir := filepath.Dir(config.OutputFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	fmt.Fprintf(file, "# Fibonacci Query Result\n")
	fmt.Fprintf(file, "# Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(file, "# Server: %s\n", res.Server)
	fmt.Fprintf(file, "# Round trip: %s\n", res.Elapsed)
	fmt.Fprintf(file, "# N: %d\n", res.N)
	if !res.IsError() {
		fmt.Fprintf(file, "# Digits: %d\n", format.DigitCount(res.Text))
	}
	fmt.Fprintf(file, "\n")
	fmt.Fprintf(file, "F(%d) =\n%s\n", res.N, res.Text)

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// FormatQuietResult returns the bare response text.
func FormatQuietResult(res QueryResult) string { return res.Text }

// DisplayQueryResult prints a single query result according to config.
//
// Parameters:
//   - out: The output writer.
//   - res: The answered query.
//   - config: Output configuration.
func DisplayQueryResult(out io.Writer, res QueryResult, config OutputConfig) {
	if config.Quiet {
		fmt.Fprintln(out, FormatQuietResult(res))
		return
	}
	fmt.Fprintln(out, ResultPrefix+FormatResult(res.Text, config.Verbose))
	if res.IsError() {
		return
	}
	fmt.Fprintf(out, "%s%s digits, round trip %s%s\n",
		ui.ColorSecondary(),
		format.FormatNumberString(fmt.Sprint(format.DigitCount(res.Text))),
		format.FormatExecutionDuration(res.Elapsed),
		ui.ColorReset())
	if config.OutputFile != "" {
		fmt.Fprintf(out, "Result saved to %s%s%s\n", ui.ColorCyan(), config.OutputFile, ui.ColorReset())
	}
}
