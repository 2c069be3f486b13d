// Package app wires the fibnet command tree: the server, the interactive
// and single-shot clients, the server console and version reporting.
package app

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agbru/fibnet/internal/fibonacci"
	"github.com/agbru/fibnet/internal/ui"
)

// Application holds the collaborators shared by every command.
type Application struct {
	Factory fibonacci.CalculatorFactory
	In      io.Reader
	Out     io.Writer
	ErrOut  io.Writer
}

// AppOption configures an Application during construction.
type AppOption func(*Application)

// WithFactory sets a custom CalculatorFactory for the application.
func WithFactory(f fibonacci.CalculatorFactory) AppOption {
	return func(a *Application) { a.Factory = f }
}

// WithIO replaces the standard streams.
func WithIO(in io.Reader, out, errOut io.Writer) AppOption {
	return func(a *Application) {
		a.In, a.Out, a.ErrOut = in, out, errOut
	}
}

// New creates an Application bound to the process streams and the global
// calculator registry.
func New(opts ...AppOption) *Application {
	a := &Application{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}
	if a.Factory == nil {
		a.Factory = fibonacci.GlobalFactory()
	}
	return a
}

// RootCommand builds the command tree.
func (a *Application) RootCommand() *cobra.Command {
	var noColor bool

	root := &cobra.Command{
		Use:   "fibnet",
		Short: "Fibonacci numbers over a binary TCP protocol",
		Long: `fibnet serves Fibonacci numbers, negative indices included, to any
number of concurrent TCP clients, and ships the matching clients.

Each request is a 4-byte big-endian integer; each response is a 2-byte
length followed by the decimal result or an error sentence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			ui.InitTheme(noColor)
		},
	}
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.ErrOut)
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		a.serverCmd(),
		a.clientCmd(),
		a.queryCmd(),
		a.consoleCmd(),
		a.versionCmd(),
	)
	return root
}

// Run executes the command line args (without the program name).
func (a *Application) Run(ctx context.Context, args []string) error {
	root := a.RootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// reportedError marks an error the command has already shown to the user.
// It still decides the exit status.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already printed by the command that
// returned it.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}
