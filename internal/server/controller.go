package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/agbru/fibnet/internal/config"
	apperrors "github.com/agbru/fibnet/internal/errors"
	"github.com/agbru/fibnet/internal/logging"
)

// Status line texts reported by a Controller.
const (
	LineStopped  = "Server stopped"
	LineStopping = "Server stopping..."
)

// Status is a snapshot of a Controller.
type Status struct {
	Running        bool
	Addr           string
	Limit          config.Limit
	ActiveSessions int
	// Line is the human-readable status line, e.g. the startup banner.
	Line string
}

// Controller starts and stops a server on behalf of a front-end, such as
// the console. Each Start creates a fresh Server from the base Config. All
// methods are safe for concurrent use.
type Controller struct {
	base   Config
	logger logging.Logger

	mu   sync.Mutex
	srv  *Server
	done chan struct{}
	line string
	err  error
}

// NewController creates a stopped Controller. base supplies everything but
// the address and limit, which are chosen at Start.
func NewController(base Config) *Controller {
	l := base.Logger
	if l == nil {
		l = logging.Nop()
	}
	return &Controller{base: base, logger: l, line: LineStopped}
}

// Start binds port on the base host and serves in the background.
//
// Parameters:
//   - port: The TCP port, 0 through 65535. 0 picks a free port.
//   - limit: The magnitude limit, checked with Limit.Validate.
//
// Returns:
//   - error: ErrAlreadyStarted when running, a ConfigError for bad input, or
//     the apperrors.ListenerError of a failed bind.
func (c *Controller) Start(port int, limit config.Limit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.srv != nil {
		return ErrAlreadyStarted
	}
	if port < 0 || port > 65535 {
		return apperrors.NewConfigError("port must be between 0 and 65535, got %d", port)
	}
	if err := limit.Validate(); err != nil {
		return apperrors.ConfigError{Message: err.Error()}
	}

	cfg := c.base
	host, _, _ := net.SplitHostPort(cfg.Addr)
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.Limit = limit

	srv := New(cfg)
	if err := srv.Listen(context.Background()); err != nil {
		c.line = "Error starting server: " + err.Error()
		return err
	}
	c.srv = srv
	c.done = make(chan struct{})
	c.err = nil
	c.line = StatusLine(srv.Port(), limit)
	c.logger.Println(c.line)

	go c.serve(srv, c.done)
	return nil
}

func (c *Controller) serve(srv *Server, done chan struct{}) {
	defer close(done)
	err := srv.Serve(context.Background())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.srv != srv {
		return
	}
	// A listener failure stops the server without a Stop call.
	if err != nil {
		c.logger.Error("server stopped unexpectedly", err)
		c.err = err
		c.line = "Server error: " + err.Error()
		c.srv = nil
	}
}

// Stop closes the listener and waits for the accept loop to exit. Sessions
// already connected finish on their own. Stopping a stopped controller is a
// no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	srv, done := c.srv, c.done
	if srv == nil {
		c.mu.Unlock()
		return nil
	}
	c.line = LineStopping
	c.mu.Unlock()

	err := srv.Close()
	<-done

	c.mu.Lock()
	c.srv = nil
	c.line = LineStopped
	c.mu.Unlock()
	c.logger.Println(LineStopped)
	return err
}

// Shutdown stops the server and waits for its sessions, force-closing
// them when ctx is done.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	srv, done := c.srv, c.done
	c.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done

	c.mu.Lock()
	if c.srv == srv {
		c.srv = nil
		c.line = LineStopped
	}
	c.mu.Unlock()
	return err
}

// Err returns the listener error that last stopped the server, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{Running: c.srv != nil, Line: c.line}
	if c.srv != nil {
		st.Limit = c.srv.Limit()
		st.ActiveSessions = c.srv.ActiveSessions()
		if a := c.srv.Addr(); a != nil {
			st.Addr = a.String()
		}
	}
	return st
}

// IsListenerError reports whether err is a bind or accept failure.
func IsListenerError(err error) bool {
	var le apperrors.ListenerError
	return errors.As(err, &le)
}
