package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/agbru/fibnet/internal/config"
	apperrors "github.com/agbru/fibnet/internal/errors"
	"github.com/agbru/fibnet/internal/fibonacci"
	"github.com/agbru/fibnet/internal/logging"
	"github.com/agbru/fibnet/internal/session"
)

var (
	// ErrAlreadyStarted is returned by Listen when the server is bound.
	ErrAlreadyStarted = errors.New("server already started")
	// ErrServerClosed is returned by Listen after Close.
	ErrServerClosed = errors.New("server closed")
	// ErrNotListening is returned by Serve before Listen.
	ErrNotListening = errors.New("server is not listening")
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Config configures a Server.
type Config struct {
	// Addr is the TCP address to bind, "host:port". Port 0 picks a free port.
	Addr string
	// Limit bounds the magnitude of accepted indices.
	Limit config.Limit
	// Calculator computes the values. Defaults to the registered
	// config.DefaultAlgo engine.
	Calculator fibonacci.Calculator
	// ComputeWorkers bounds concurrent computations across sessions. Zero
	// leaves them unbounded.
	ComputeWorkers int
	// Logger receives server and session logs. Defaults to a no-op logger.
	Logger logging.Logger
	// Metrics, when set, observes sessions and serves the admin endpoint.
	Metrics *Metrics
	// Tracer overrides the global tracer used for request spans.
	Tracer trace.Tracer

	// wrapListener, when set, wraps the bound listener. Used by tests.
	wrapListener func(net.Listener) net.Listener
}

// Server accepts TCP connections and serves each one in its own session
// goroutine. Connections are independent; one failing session never affects
// another.
type Server struct {
	cfg     Config
	handler *session.Handler
	logger  logging.Logger
	metrics *Metrics

	mu      sync.Mutex
	ln      net.Listener
	closed  bool
	conns   map[net.Conn]struct{}
	started time.Time

	sessions sync.WaitGroup
	nextID   atomic.Uint64

	// baseCtx is the parent of every session. It is canceled only when
	// Shutdown gives up waiting.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a Server from cfg. It does not bind; see Listen.
func New(cfg Config) *Server {
	if cfg.Calculator == nil {
		cfg.Calculator = fibonacci.GlobalFactory().MustGet(config.DefaultAlgo)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	var sem *semaphore.Weighted
	if cfg.ComputeWorkers > 0 {
		sem = semaphore.NewWeighted(int64(cfg.ComputeWorkers))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		handler:    session.NewHandler(cfg.Limit, cfg.Calculator, sem),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		conns:      make(map[net.Conn]struct{}),
		baseCtx:    ctx,
		cancelBase: cancel,
	}
}

// Listen binds the configured address.
//
// Returns:
//   - error: ErrAlreadyStarted if already bound, ErrServerClosed after Close,
//     or an apperrors.ListenerError when the bind fails.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.ln != nil {
		return ErrAlreadyStarted
	}
	lc := listenConfig()
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return apperrors.ListenerError{Addr: s.cfg.Addr, Cause: err}
	}
	if s.cfg.wrapListener != nil {
		ln = s.cfg.wrapListener(ln)
	}
	s.ln = ln
	s.started = time.Now()
	s.logger.Info("server listening",
		logging.String("addr", ln.Addr().String()),
		logging.String("limit", s.cfg.Limit.String()),
		logging.String("algo", s.cfg.Calculator.Name()),
		logging.Int("workers", s.cfg.ComputeWorkers),
	)
	return nil
}

// Serve accepts connections until the listener is closed, by Close or by
// ctx being done, and then returns nil. A non-transient accept failure is
// returned as an apperrors.ListenerError after the listener is closed.
// Sessions started by Serve outlive it; use Shutdown to wait for them.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if isTransientAccept(err) {
				backoff = nextBackoff(backoff)
				s.logger.Error("accept failed; retrying", err, logging.Duration("backoff", backoff))
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			addr := ln.Addr().String()
			if cerr := s.Close(); cerr != nil {
				s.logger.Error("closing failed listener", cerr)
			}
			return apperrors.ListenerError{Addr: addr, Cause: err}
		}
		backoff = 0
		s.startSession(conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(d*2, maxAcceptBackoff)
}

func (s *Server) startSession(conn net.Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.sessions.Add(1)
	s.mu.Unlock()

	opts := []session.Option{session.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, session.WithObserver(s.metrics))
	}
	if s.cfg.Tracer != nil {
		opts = append(opts, session.WithTracer(s.cfg.Tracer))
	}
	sess := session.New(s.nextID.Add(1), conn, s.handler, opts...)

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			s.sessions.Done()
		}()
		// Errors are logged by the session and never reach the listener.
		_ = sess.Serve(s.baseCtx)
	}()
}

// ListenAndServe binds and then serves.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Port returns the bound TCP port, or 0 before Listen.
func (s *Server) Port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Limit returns the configured limit.
func (s *Server) Limit() config.Limit { return s.cfg.Limit }

// Uptime returns the time since Listen succeeded.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

// ActiveSessions returns the number of connections being served.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting connections. In-flight sessions keep running until
// their clients disconnect. Close is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Shutdown closes the listener and waits for sessions to finish. When ctx
// is done first, the remaining sessions are canceled, their connections
// closed, and ctx's error returned once they have exited.
func (s *Server) Shutdown(ctx context.Context) error {
	closeErr := s.Close()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelBase()
		return closeErr
	case <-ctx.Done():
	}

	s.cancelBase()
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	forced := len(s.conns)
	s.mu.Unlock()
	<-done
	s.logger.Info("forced session shutdown", logging.Int("sessions", forced))
	return ctx.Err()
}

// Option adjusts the Config used by the package-level Serve.
type Option func(*Config)

// WithHost sets the interface to bind. The default binds every interface.
func WithHost(host string) Option {
	return func(c *Config) {
		_, port, _ := net.SplitHostPort(c.Addr)
		c.Addr = net.JoinHostPort(host, port)
	}
}

// WithCalculator sets the engine.
func WithCalculator(calc fibonacci.Calculator) Option {
	return func(c *Config) { c.Calculator = calc }
}

// WithComputeWorkers bounds concurrent computations.
func WithComputeWorkers(n int) Option {
	return func(c *Config) { c.ComputeWorkers = n }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithTracer sets the request tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Config) { c.Tracer = t }
}

// Serve binds port on every interface and serves until ctx is done, which
// returns nil, or until the listener fails.
func Serve(ctx context.Context, port int, limit config.Limit, opts ...Option) error {
	cfg := Config{Addr: net.JoinHostPort("", strconv.Itoa(port)), Limit: limit}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv := New(cfg)
	if err := srv.Listen(ctx); err != nil {
		return err
	}
	srv.logger.Println(StatusLine(srv.Port(), limit))
	return srv.Serve(ctx)
}

// StatusLine formats the line announced when a server starts.
func StatusLine(port int, limit config.Limit) string {
	return fmt.Sprintf("Server running on port %d, max Fibonacci number set to: %s", port, limit)
}
