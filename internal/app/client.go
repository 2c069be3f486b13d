package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agbru/fibnet/internal/cli"
	"github.com/agbru/fibnet/internal/client"
	"github.com/agbru/fibnet/internal/config"
	apperrors "github.com/agbru/fibnet/internal/errors"
)

func bindClientFlags(fs *pflag.FlagSet, cfg *config.ClientConfig) {
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Server host")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Server port")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Bound for connecting and for each round trip (0 disables)")
}

func resolveClientConfig(cfg *config.ClientConfig, fs *pflag.FlagSet) error {
	if err := config.ApplyClientEnv(cfg, fs); err != nil {
		return err
	}
	return cfg.Validate()
}

func (a *Application) clientCmd() *cobra.Command {
	cfg := config.DefaultClientConfig()
	var replCfg cli.REPLConfig

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Query a server interactively",
		Long: `Open one connection to a server and prompt for indices until a blank
line or end of input.`,
		Example: "  fibnet client --host localhost --port 9000",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := resolveClientConfig(&cfg, cmd.Flags()); err != nil {
				return err
			}
			return a.runClient(cmd.Context(), cfg, replCfg)
		},
	}

	bindClientFlags(cmd.Flags(), &cfg)
	cmd.Flags().BoolVarP(&replCfg.Verbose, "verbose", "v", false, "Print long values in full")
	cmd.Flags().BoolVar(&replCfg.ShowTiming, "timing", false, "Show the round-trip time of each request")
	return cmd
}

const clientKeepAlive = 30 * time.Second

func (a *Application) runClient(ctx context.Context, cfg config.ClientConfig, replCfg cli.REPLConfig) error {
	// The connection idles between prompts, so keep-alive probes let the
	// kernel notice a vanished server.
	dialer := &net.Dialer{KeepAlive: clientKeepAlive}
	conn, err := client.Dial(ctx, cfg.Host, cfg.Port, client.WithTimeout(cfg.Timeout), client.WithDialer(dialer))
	if err != nil {
		return err
	}
	defer conn.Close()

	repl := cli.NewREPL(conn, replCfg)
	repl.SetInput(a.In)
	repl.SetOutput(a.Out)

	// Reading the terminal cannot be interrupted, so an interrupt returns
	// without waiting for the prompt loop.
	errc := make(chan error, 1)
	go func() { errc <- repl.Start(ctx) }()
	select {
	case err = <-errc:
	case <-ctx.Done():
		fmt.Fprintln(a.Out)
		return ctx.Err()
	}
	if err != nil && !cli.IsInterrupted(err) {
		// The prompt loop has printed the failure.
		return reportedError{err}
	}
	return err
}

func (a *Application) queryCmd() *cobra.Command {
	cfg := config.DefaultClientConfig()
	var outCfg cli.OutputConfig

	cmd := &cobra.Command{
		Use:   "query [flags] N",
		Short: "Send one index to a server and print the answer",
		Example: `  fibnet query 100
  fibnet query --port 9000 --output f.txt 5000
  fibnet query -- -8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cli.ParseIndex(args[0])
			if err != nil {
				return apperrors.NewConfigError("invalid index %q: must be a 32-bit integer", args[0])
			}
			if err := resolveClientConfig(&cfg, cmd.Flags()); err != nil {
				return err
			}
			outCfg.Quiet = outCfg.Quiet || cfg.Quiet
			return a.runQuery(cmd.Context(), cfg, outCfg, n)
		},
	}

	bindClientFlags(cmd.Flags(), &cfg)
	cmd.Flags().StringVarP(&outCfg.OutputFile, "output", "o", "", "Also write the result to this file")
	cmd.Flags().BoolVarP(&outCfg.Quiet, "quiet", "q", false, "Print only the response text")
	cmd.Flags().BoolVarP(&outCfg.Verbose, "verbose", "v", false, "Print long values in full")
	return cmd
}

func (a *Application) runQuery(ctx context.Context, cfg config.ClientConfig, outCfg cli.OutputConfig, n int32) error {
	start := time.Now()
	text, err := client.RequestFibonacci(ctx, cfg.Host, cfg.Port, n, client.WithTimeout(cfg.Timeout))
	if err != nil {
		return err
	}
	res := cli.QueryResult{N: n, Text: text, Server: cfg.Addr(), Elapsed: time.Since(start)}

	if err := cli.WriteResultToFile(res, outCfg); err != nil {
		return err
	}
	cli.DisplayQueryResult(a.Out, res, outCfg)
	if res.IsError() {
		return reportedError{errors.New(res.Text)}
	}
	return nil
}
