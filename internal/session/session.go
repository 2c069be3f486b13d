package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/agbru/fibnet/internal/errors"
	"github.com/agbru/fibnet/internal/logging"
	"github.com/agbru/fibnet/internal/protocol"
)

// TracerName names the tracer sessions obtain from the global provider.
const TracerName = "github.com/agbru/fibnet/internal/session"

// Observer receives session lifecycle and request events. Implementations
// must be safe for concurrent use.
type Observer interface {
	SessionOpened()
	SessionClosed(reason CloseReason)
	RequestServed(outcome Outcome, compute time.Duration)
}

type nopObserver struct{}

func (nopObserver) SessionOpened()                       {}
func (nopObserver) SessionClosed(CloseReason)            {}
func (nopObserver) RequestServed(Outcome, time.Duration) {}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithObserver sets the observer notified of session events.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithTracer sets the tracer used for per-request spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) { s.tracer = t }
}

// Session serves the request/response conversation of one connection. It is
// owned by a single goroutine: Serve must be called once.
type Session struct {
	id       uint64
	conn     net.Conn
	handler  *Handler
	logger   logging.Logger
	observer Observer
	tracer   trace.Tracer
	state    atomic.Int32
	served   atomic.Uint64
}

// New creates a session for conn. The session takes ownership of conn and
// closes it when Serve returns.
func New(id uint64, conn net.Conn, handler *Handler, opts ...Option) *Session {
	s := &Session{
		id:       id,
		conn:     conn,
		handler:  handler,
		logger:   logging.Nop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(TracerName)
	}
	return s
}

// ID returns the session identifier assigned by the server.
func (s *Session) ID() uint64 { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Served returns the number of responses written so far.
func (s *Session) Served() uint64 { return s.served.Load() }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Serve reads requests and writes responses until the peer closes the
// connection, an I/O error occurs or ctx is canceled during a computation.
// Every request is answered before the next one is read. The connection is
// closed on every return path.
//
// Serve returns nil when the peer closed the stream cleanly between two
// requests, and the terminating error otherwise.
func (s *Session) Serve(ctx context.Context) (err error) {
	remote := "unknown"
	if addr := s.conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	fields := []logging.Field{logging.Uint64("session", s.id), logging.String("remote", remote)}

	s.setState(StateOpen)
	s.observer.SessionOpened()
	s.logger.Debug("session opened", fields...)

	defer func() {
		_ = s.conn.Close()
		s.setState(StateClosed)
		reason := classify(err)
		s.observer.SessionClosed(reason)
		closeFields := append(fields, logging.String("reason", string(reason)), logging.Uint64("served", s.Served()))
		switch reason {
		case CloseEOF, CloseDisconnect:
			s.logger.Info("client disconnected", closeFields...)
		default:
			s.logger.Error("session terminated", err, closeFields...)
		}
	}()

	r := bufio.NewReader(s.conn)
	for {
		s.setState(StateReading)
		n, rerr := protocol.ReadRequest(r)
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return rerr
		}
		if err := s.serveOne(ctx, n, fields); err != nil {
			return err
		}
	}
}

func (s *Session) serveOne(ctx context.Context, n int32, fields []logging.Field) error {
	ctx, span := s.tracer.Start(ctx, "fibnet.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.Int64("fibnet.session_id", int64(s.id)),
			attribute.Int("fibnet.n", int(n)),
		),
	)
	defer span.End()

	s.setState(StateValidating)
	text, outcome, ok := s.handler.Validate(n)
	var elapsed time.Duration
	if ok {
		s.setState(StateComputing)
		start := time.Now()
		var err error
		text, outcome, err = s.handler.Compute(ctx, n)
		elapsed = time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "computation canceled")
			return err
		}
	}
	span.SetAttributes(attribute.String("fibnet.outcome", string(outcome)))

	s.setState(StateWriting)
	if err := protocol.WriteResponse(s.conn, text); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return err
	}
	s.served.Add(1)
	s.observer.RequestServed(outcome, elapsed)
	s.logger.Debug("request served", append(fields,
		logging.Int("n", int(n)),
		logging.String("outcome", string(outcome)),
		logging.Duration("compute", elapsed),
	)...)
	return nil
}

func classify(err error) CloseReason {
	var protoErr apperrors.ProtocolError
	switch {
	case err == nil:
		return CloseEOF
	case apperrors.IsContextError(err):
		return CloseCanceled
	case apperrors.IsConnectionClosed(err) && !(errors.As(err, &protoErr) && protoErr.Op == "write"):
		return CloseDisconnect
	case errors.As(err, &protoErr) && protoErr.Op == "write":
		return CloseWriteError
	}
	return CloseReadError
}
