package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agbru/fibnet/internal/config"
	apperrors "github.com/agbru/fibnet/internal/errors"
	"github.com/agbru/fibnet/internal/fibonacci"
	"github.com/agbru/fibnet/internal/logging"
	"github.com/agbru/fibnet/internal/protocol"
)

// startServer binds a server on a free loopback port and serves it until
// the test ends.
func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	srv := New(cfg)
	require.NoError(t, srv.Listen(context.Background()))

	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-served
	})
	return srv
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func ask(t *testing.T, conn net.Conn, n int32) string {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, protocol.WriteRequest(conn, n))
	text, err := protocol.ReadResponse(conn)
	require.NoError(t, err)
	return text
}

func want(n int32) string { return fibonacci.Fibonacci(n).String() + "\n" }

func TestServer_BoundsScenario(t *testing.T) {
	t.Parallel()
	srv := startServer(t, Config{Limit: config.LimitedTo(10)})
	conn := dial(t, srv)

	assert.Equal(t, "Error: Number exceeds maximum limit of 10.\n", ask(t, conn, 11))
	assert.Equal(t, "55\n", ask(t, conn, 10))
	assert.Equal(t, "Error: Number exceeds maximum limit of 10.\n", ask(t, conn, -11))
	assert.Equal(t, "-21\n", ask(t, conn, -8))
}

func TestServer_UnlimitedScenario(t *testing.T) {
	t.Parallel()
	srv := startServer(t, Config{Limit: config.Unlimited(), Calculator: fibonacci.Iterative{}})
	conn := dial(t, srv)

	assert.Equal(t, "0\n", ask(t, conn, 0))
	assert.Equal(t, want(1000), ask(t, conn, 1000))
	assert.Equal(t, "Error: Result exceeds maximum response size of 65535 bytes.\n", ask(t, conn, 1<<31-1))
}

func TestServer_ConcurrentClientsGetOrderedResponses(t *testing.T) {
	t.Parallel()
	srv := startServer(t, Config{Limit: config.DefaultLimit, ComputeWorkers: 2})

	const clients, requests = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

			// Pipeline every request before reading, then check order.
			indices := make([]int32, requests)
			for i := range indices {
				indices[i] = int32((c*requests+i)*37%2000 - 1000)
				if err := protocol.WriteRequest(conn, indices[i]); err != nil {
					errs <- err
					return
				}
			}
			for _, n := range indices {
				text, err := protocol.ReadResponse(conn)
				if err != nil {
					errs <- err
					return
				}
				if text != want(n) {
					errs <- fmt.Errorf("client %d: F(%d) = %.20q", c, n, text)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestServer_FaultIsolation(t *testing.T) {
	t.Parallel()
	srv := startServer(t, Config{Limit: config.DefaultLimit})

	healthy := dial(t, srv)
	assert.Equal(t, "55\n", ask(t, healthy, 10))

	broken := dial(t, srv)
	_, err := broken.Write([]byte{0x00, 0x00})
	require.NoError(t, err)
	require.NoError(t, broken.Close())

	assert.Eventually(t, func() bool { return srv.ActiveSessions() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "6765\n", ask(t, healthy, 20))

	// The listener still accepts.
	assert.Equal(t, "1\n", ask(t, dial(t, srv), 1))
}

func TestServer_ListenTwice(t *testing.T) {
	t.Parallel()
	srv := startServer(t, Config{Limit: config.DefaultLimit})
	assert.ErrorIs(t, srv.Listen(context.Background()), ErrAlreadyStarted)
}

func TestServer_ServeBeforeListen(t *testing.T) {
	t.Parallel()
	srv := New(Config{Addr: "127.0.0.1:0"})
	assert.ErrorIs(t, srv.Serve(context.Background()), ErrNotListening)
	assert.Nil(t, srv.Addr())
	assert.Zero(t, srv.Port())
}

func TestServer_ListenAfterClose(t *testing.T) {
	t.Parallel()
	srv := New(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Listen(context.Background()), ErrServerClosed)
}

func TestServer_BindFailure(t *testing.T) {
	t.Parallel()
	first := startServer(t, Config{Limit: config.DefaultLimit})

	second := New(Config{Addr: first.Addr().String()})
	err := second.Listen(context.Background())
	require.Error(t, err)

	var le apperrors.ListenerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, first.Addr().String(), le.Addr)
	assert.Equal(t, apperrors.ExitErrorNetwork, apperrors.ExitCode(err))
	assert.True(t, IsListenerError(err))
}

func TestServer_CloseKeepsSessions(t *testing.T) {
	t.Parallel()
	srv := startServer(t, Config{Limit: config.DefaultLimit})
	conn := dial(t, srv)
	assert.Equal(t, "1\n", ask(t, conn, 2))

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close(), "Close is idempotent")

	assert.Equal(t, "2\n", ask(t, conn, 3), "in-flight sessions keep running after Close")

	_, err := net.DialTimeout("tcp", srv.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err, "the listener should be closed")
}

func TestServer_ShutdownWaitsForSessions(t *testing.T) {
	t.Parallel()
	srv := startServer(t, Config{Limit: config.DefaultLimit})
	conn := dial(t, srv)
	ask(t, conn, 5)

	done := make(chan error, 1)
	go func() { done <- srv.Shutdown(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Shutdown returned before the session ended: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, conn.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return after the client left")
	}
}

func TestServer_ShutdownForcesIdleSessions(t *testing.T) {
	t.Parallel()
	srv := startServer(t, Config{Limit: config.DefaultLimit})
	conn := dial(t, srv)
	ask(t, conn, 5)
	require.Equal(t, 1, srv.ActiveSessions())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Shutdown(ctx), context.DeadlineExceeded)
	assert.Zero(t, srv.ActiveSessions())

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err := protocol.ReadResponse(conn)
	assert.Error(t, err, "the server side should have closed the connection")
}

func TestServer_ServeStopsOnContext(t *testing.T) {
	t.Parallel()
	srv := New(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, srv.Listen(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_RecordsMetrics(t *testing.T) {
	t.Parallel()
	m := NewMetrics()
	srv := startServer(t, Config{Limit: config.LimitedTo(10), Metrics: m})

	conn := dial(t, srv)
	ask(t, conn, 3)
	ask(t, conn, 99)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.activeSessions) == 0 && testutil.ToFloat64(m.sessionsTotal) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("limit_exceeded")))
}

// printLogger captures Println output.
type printLogger struct {
	testLogger
	mu    sync.Mutex
	lines []string
}

func (l *printLogger) Println(v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l *printLogger) first() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return l.lines[0]
}

var _ logging.Logger = (*printLogger)(nil)

func TestServe_PackageLevel(t *testing.T) {
	t.Parallel()
	logger := &printLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, 0, config.LimitedTo(50), WithHost("127.0.0.1"), WithLogger(logger), WithComputeWorkers(1))
	}()

	const prefix = "Server running on port "
	require.Eventually(t, func() bool { return strings.HasPrefix(logger.first(), prefix) }, 2*time.Second, 5*time.Millisecond)
	line := logger.first()
	assert.True(t, strings.HasSuffix(line, ", max Fibonacci number set to: 50"), line)

	port, err := strconv.Atoi(strings.TrimPrefix(line[:strings.Index(line, ",")], prefix))
	require.NoError(t, err)
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "12586269025\n", ask(t, conn, 50))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "Server running on port 9000, max Fibonacci number set to: 313575",
		StatusLine(9000, config.DefaultLimit))
	assert.Equal(t, "Server running on port 1, max Fibonacci number set to: unlimited",
		StatusLine(1, config.Unlimited()))
}

func TestNextBackoff(t *testing.T) {
	d := time.Duration(0)
	var seen []time.Duration
	for range 10 {
		d = nextBackoff(d)
		seen = append(seen, d)
	}
	assert.Equal(t, minAcceptBackoff, seen[0])
	assert.Equal(t, 2*minAcceptBackoff, seen[1])
	assert.Equal(t, maxAcceptBackoff, seen[len(seen)-1])
}

func TestIsTransientAccept(t *testing.T) {
	assert.True(t, isTransientAccept(&net.OpError{Op: "accept", Err: timeoutErr{}}))
	assert.False(t, isTransientAccept(errors.New("boom")))
	assert.False(t, isTransientAccept(net.ErrClosed))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// brokenListener fails every Accept with a non-transient error once fail
// is closed.
type brokenListener struct {
	net.Listener
	fail   chan struct{}
	closed atomic.Bool
}

func (l *brokenListener) Accept() (net.Conn, error) {
	<-l.fail
	return nil, errors.New("accept: device gone")
}

func (l *brokenListener) Close() error {
	l.closed.Store(true)
	return l.Listener.Close()
}

func TestServer_AcceptFailureReleasesListener(t *testing.T) {
	t.Parallel()
	broken := &brokenListener{fail: make(chan struct{})}
	srv := New(Config{
		Addr: "127.0.0.1:0",
		wrapListener: func(ln net.Listener) net.Listener {
			broken.Listener = ln
			return broken
		},
	})
	require.NoError(t, srv.Listen(context.Background()))
	addr := srv.Addr().String()

	close(broken.fail)
	err := srv.Serve(context.Background())
	require.Error(t, err)
	assert.True(t, IsListenerError(err))
	assert.True(t, broken.closed.Load())

	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err, "port should be free after the accept failure")
	_ = ln.Close()
}

func TestNew_DefaultCalculator(t *testing.T) {
	srv := New(Config{})
	assert.Equal(t, config.DefaultAlgo, srv.cfg.Calculator.Name())
}
