// Package cli implements the interactive client: a prompt loop sending each
// entered index to the server over one connection and printing the answers.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agbru/fibnet/internal/format"
	"github.com/agbru/fibnet/internal/protocol"
	"github.com/agbru/fibnet/internal/ui"
)

// Prompt and fixed messages of the interactive client.
const (
	Prompt            = "Enter a number (blank to exit): "
	InvalidInputMsg   = "Invalid input. Please enter a valid integer."
	ResultPrefix      = "Fibonacci result: "
	CommunicationFail = "Error communicating with the server: "
)

// Requester performs one round trip. *client.Conn implements it.
type Requester interface {
	Request(ctx context.Context, n int32) (string, error)
}

// REPLConfig configures a REPL.
type REPLConfig struct {
	// Timeout bounds each round trip. Zero leaves it to the connection.
	Timeout time.Duration
	// Verbose prints results in full instead of truncating long values.
	Verbose bool
	// ShowTiming appends the round-trip time to each result.
	ShowTiming bool
}

// REPL is an interactive session over one server connection.
type REPL struct {
	conn   Requester
	config REPLConfig
	in     io.Reader
	out    io.Writer
}

// NewREPL creates a REPL reading from stdin and writing to stdout.
//
// Parameters:
//   - conn: The connection requests are sent on.
//   - config: REPL configuration.
//
// Returns:
//   - *REPL: A new REPL instance.
func NewREPL(conn Requester, config REPLConfig) *REPL {
	return &REPL{conn: conn, config: config, in: os.Stdin, out: os.Stdout}
}

// SetInput sets the input reader.
func (r *REPL) SetInput(in io.Reader) { r.in = in }

// SetOutput sets the output writer.
func (r *REPL) SetOutput(out io.Writer) { r.out = out }

// Start runs the prompt loop. A blank line or the end of input ends it and
// returns nil. Lines that are not 32-bit integers are rejected locally
// without contacting the server. A communication failure is printed and
// returned; the connection is not usable afterwards.
func (r *REPL) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, ui.Paint(ui.ColorPrimary(), Prompt))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(r.out)
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			return nil
		}
		n, err := ParseIndex(input)
		if err != nil {
			fmt.Fprintln(r.out, ui.Paint(ui.ColorRed(), InvalidInputMsg))
			continue
		}

		if err := r.ask(ctx, n); err != nil {
			return err
		}
	}
}

// ParseIndex parses a decimal 32-bit signed integer, surrounding spaces
// allowed.
func ParseIndex(s string) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func (r *REPL) ask(ctx context.Context, n int32) error {
	rctx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	sp := newSpinner(r.out)
	sp.UpdateSuffix(fmt.Sprintf(" computing F(%d)...", n))
	sp.Start()
	start := time.Now()
	text, err := r.conn.Request(rctx, n)
	elapsed := time.Since(start)
	sp.Stop()

	if err != nil {
		fmt.Fprintln(r.out, ui.Paint(ui.ColorRed(), CommunicationFail+err.Error()))
		return err
	}
	DisplayResult(r.out, text, elapsed, r.config)
	return nil
}

// DisplayResult prints one server answer as "Fibonacci result: <text>".
// Error responses are highlighted; long values are truncated unless
// config.Verbose is set.
func DisplayResult(out io.Writer, text string, elapsed time.Duration, config REPLConfig) {
	fmt.Fprintln(out, ResultPrefix+FormatResult(text, config.Verbose)+timing(elapsed, config))
}

// FormatResult returns the display form of a response text.
func FormatResult(text string, verbose bool) string {
	if strings.HasPrefix(text, protocol.ErrorPrefix) {
		return ui.Paint(ui.ColorYellow(), text)
	}
	if !verbose {
		text = format.TruncateDigits(text, TruncationLimit, DisplayEdges)
	}
	return ui.Paint(ui.ColorGreen(), text)
}

func timing(elapsed time.Duration, config REPLConfig) string {
	if !config.ShowTiming {
		return ""
	}
	return ui.Paint(ui.ColorSecondary(), " ("+format.FormatExecutionDuration(elapsed)+")")
}

// IsInterrupted reports whether err ended the loop because ctx was
// canceled, e.g. by Ctrl+C.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
