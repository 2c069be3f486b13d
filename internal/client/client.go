// Package client talks to a Fibonacci server over its binary TCP protocol.
package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/agbru/fibnet/internal/errors"
	"github.com/agbru/fibnet/internal/protocol"
)

// ErrConnBroken is returned by Request after an earlier request failed and
// left the stream at an unknown position.
var ErrConnBroken = errors.New("connection unusable after a failed request")

type options struct {
	timeout time.Duration
	dialer  *net.Dialer
}

// Option configures Dial and RequestFibonacci.
type Option func(*options)

// WithTimeout bounds the dial and every round trip. Zero disables it; the
// context deadline, if any, still applies.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDialer sets the dialer used to connect.
func WithDialer(d *net.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// Conn is a client connection carrying any number of sequential requests.
// It is safe for concurrent use; requests are serialized.
type Conn struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration

	mu     sync.Mutex
	broken bool
}

// Dial connects to host:port.
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Conn, error) {
	o := options{dialer: &net.Dialer{}}
	for _, opt := range opts {
		opt(&o)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dctx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	nc, err := o.dialer.DialContext(dctx, "tcp", addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var ne net.Error
		if o.timeout > 0 && errors.As(err, &ne) && ne.Timeout() {
			return nil, apperrors.TimeoutError{Operation: "connect to " + addr, Limit: o.timeout}
		}
		return nil, apperrors.WrapError(err, "connect to %s", addr)
	}
	return &Conn{conn: nc, r: bufio.NewReader(nc), timeout: o.timeout}, nil
}

// RemoteAddr returns the server address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Request sends n and returns the response text without its trailing
// newline. Error responses from the server, such as a rejected index, are
// returned as text with a nil error.
//
// Cancellation of ctx and expiry of its deadline or the configured timeout
// abort the round trip and leave the Conn unusable.
func (c *Conn) Request(ctx context.Context, n int32) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return "", ErrConnBroken
	}

	text, err := c.roundTrip(ctx, n)
	if err != nil {
		c.broken = true
		return "", err
	}
	return strings.TrimSuffix(text, "\n"), nil
}

func (c *Conn) roundTrip(ctx context.Context, n int32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", err
	}
	// Cancellation interrupts blocked I/O by moving the deadline to the past.
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	text, err := c.exchange(n)
	if err == nil {
		return text, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "", apperrors.TimeoutError{Operation: "request " + strconv.Itoa(int(n)), Limit: c.timeout}
	}
	return "", err
}

func (c *Conn) exchange(n int32) (string, error) {
	if err := protocol.WriteRequest(c.conn, n); err != nil {
		return "", err
	}
	return protocol.ReadResponse(c.r)
}

// Close closes the connection.
func (c *Conn) Close() error { return c.conn.Close() }

// RequestFibonacci performs a single round trip on a fresh connection: it
// connects, sends n, reads one response and closes. The returned text has
// its trailing newline removed.
func RequestFibonacci(ctx context.Context, host string, port int, n int32, opts ...Option) (string, error) {
	c, err := Dial(ctx, host, port, opts...)
	if err != nil {
		return "", err
	}
	defer c.Close()
	return c.Request(ctx, n)
}
