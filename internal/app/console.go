package app

import (
	"context"
	"net"

	"github.com/spf13/cobra"

	"github.com/agbru/fibnet/internal/config"
	"github.com/agbru/fibnet/internal/logging"
	"github.com/agbru/fibnet/internal/server"
	"github.com/agbru/fibnet/internal/tui"
)

func (a *Application) consoleCmd() *cobra.Command {
	cfg := config.DefaultServerConfig()
	var autoStart bool

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Start and stop a server from a terminal console",
		Long: `Open a full-screen console with port and limit fields. The server runs
inside the console process and stops when the console exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.resolveServerConfig(&cfg, cmd.Flags()); err != nil {
				return err
			}
			return a.runConsole(cmd.Context(), cfg, autoStart)
		},
	}

	bindServerFlags(cmd.Flags(), &cfg)
	cmd.Flags().BoolVar(&autoStart, "start", false, "Start the server immediately")
	return cmd
}

func (a *Application) runConsole(ctx context.Context, cfg config.ServerConfig, autoStart bool) error {
	calc, err := a.calculator(cfg)
	if err != nil {
		return err
	}
	// Log output would corrupt the full-screen view; the console shows
	// events itself.
	ctrl := server.NewController(server.Config{
		Addr:           net.JoinHostPort(cfg.Host, "0"),
		Calculator:     calc,
		ComputeWorkers: cfg.Workers,
		Logger:         logging.Nop(),
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = ctrl.Shutdown(sctx)
	}()

	return tui.Run(ctx, ctrl, tui.Options{
		Port:      cfg.Port,
		Limit:     cfg.Limit,
		Version:   Version,
		AutoStart: autoStart,
	})
}
