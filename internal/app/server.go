package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/agbru/fibnet/internal/config"
	apperrors "github.com/agbru/fibnet/internal/errors"
	"github.com/agbru/fibnet/internal/fibonacci"
	"github.com/agbru/fibnet/internal/logging"
	"github.com/agbru/fibnet/internal/server"
)

// shutdownTimeout bounds the wait for sessions after a stop signal.
const shutdownTimeout = 5 * time.Second

// bindServerFlags registers the flags shared by the server and console
// commands.
func bindServerFlags(fs *pflag.FlagSet, cfg *config.ServerConfig) {
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "TCP port to listen on (0 picks a free port)")
	fs.VarP(&cfg.Limit, "limit", "l", fmt.Sprintf("Largest accepted |n|, or \"unlimited\" (at most %d)", config.MaxSafeLimit))
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Interface to bind (default all)")
	fs.StringVar(&cfg.Algo, "algo", cfg.Algo, "Calculator: fast, iterative or gmp when built with it")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Maximum concurrent computations (0 = unbounded)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Cache computed values for this long (0 disables)")
}

// resolveServerConfig applies environment overrides and validates.
func (a *Application) resolveServerConfig(cfg *config.ServerConfig, fs *pflag.FlagSet) error {
	if err := config.ApplyServerEnv(cfg, fs); err != nil {
		return err
	}
	return cfg.Validate(a.Factory.List()...)
}

// calculator returns the configured engine, wrapped in a cache when a TTL
// is set.
func (a *Application) calculator(cfg config.ServerConfig) (fibonacci.Calculator, error) {
	calc, err := a.Factory.Get(cfg.Algo)
	if err != nil {
		return nil, apperrors.ConfigError{Message: err.Error()}
	}
	if cfg.CacheTTL > 0 {
		calc = fibonacci.NewCachedCalculator(calc, cfg.CacheTTL)
	}
	return calc, nil
}

func (a *Application) serverCmd() *cobra.Command {
	cfg := config.DefaultServerConfig()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the Fibonacci TCP server",
		Long: `Run the Fibonacci TCP server until interrupted.

Every flag can also be set through a FIBNET_ environment variable, e.g.
FIBNET_PORT or FIBNET_CACHE_TTL. Flags given on the command line win.`,
		Example: `  fibnet server --port 9000 --limit 313575
  fibnet server -p 9000 -l unlimited --admin-addr 127.0.0.1:9100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.resolveServerConfig(&cfg, cmd.Flags()); err != nil {
				return err
			}
			return a.runServer(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	bindServerFlags(fs, &cfg)
	fs.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "Serve /metrics, /healthz and /status on this address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console or json")
	return cmd
}

// runServer serves until ctx is done, then shuts the TCP and admin
// listeners down and waits for sessions up to shutdownTimeout.
func (a *Application) runServer(ctx context.Context, cfg config.ServerConfig) error {
	logger, err := logging.New(a.ErrOut, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Component: "server"})
	if err != nil {
		return apperrors.ConfigError{Message: err.Error()}
	}
	calc, err := a.calculator(cfg)
	if err != nil {
		return err
	}

	var m *server.Metrics
	if cfg.AdminAddr != "" {
		m = server.NewMetrics()
	}
	srv := server.New(server.Config{
		Addr:           cfg.Addr(),
		Limit:          cfg.Limit,
		Calculator:     calc,
		ComputeWorkers: cfg.Workers,
		Logger:         logger,
		Metrics:        m,
	})
	if err := srv.Listen(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, server.StatusLine(srv.Port(), cfg.Limit))
	logger.Info("server started",
		logging.String("addr", srv.Addr().String()),
		logging.String("limit", cfg.Limit.String()),
		logging.String("algo", calc.Name()),
		logging.Int("workers", cfg.Workers))

	var admin *http.Server
	var adminLn net.Listener
	if cfg.AdminAddr != "" {
		adminLn, err = net.Listen("tcp", cfg.AdminAddr)
		if err != nil {
			_ = srv.Close()
			return apperrors.ListenerError{Addr: cfg.AdminAddr, Cause: err}
		}
		admin = &http.Server{Handler: srv.AdminHandler(), ReadHeaderTimeout: 5 * time.Second}
		logger.Info("admin endpoint started", logging.String("addr", adminLn.Addr().String()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	if admin != nil {
		g.Go(func() error {
			if err := admin.Serve(adminLn); !errors.Is(err, http.ErrServerClosed) {
				return apperrors.ListenerError{Addr: cfg.AdminAddr, Cause: err}
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(a.Out, server.LineStopping)

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if admin != nil {
			_ = admin.Shutdown(sctx)
		}
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("sessions did not finish in time", err)
		}
		fmt.Fprintln(a.Out, server.LineStopped)
		return nil
	})
	return g.Wait()
}
