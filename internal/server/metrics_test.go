package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/agbru/fibnet/internal/logging"
	"github.com/agbru/fibnet/internal/session"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.handler == nil || m.Registry() == nil {
		t.Error("Metrics handler and registry should be initialized")
	}
	// Each instance owns its registry, so a second one must not panic on
	// duplicate registration.
	_ = NewMetrics()
}

func TestMetrics_SessionLifecycle(t *testing.T) {
	m := NewMetrics()

	m.SessionOpened()
	m.SessionOpened()
	if got := testutil.ToFloat64(m.activeSessions); got != 2 {
		t.Errorf("active sessions = %v, want 2", got)
	}

	m.SessionClosed(session.CloseEOF)
	m.SessionClosed(session.CloseDisconnect)
	if got := testutil.ToFloat64(m.activeSessions); got != 0 {
		t.Errorf("active sessions = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.sessionsTotal); got != 2 {
		t.Errorf("sessions total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sessionErrors.WithLabelValues("disconnect")); got != 1 {
		t.Errorf("disconnect errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.sessionErrors); got != 1 {
		t.Errorf("a clean EOF must not count as an error, got %d series", got)
	}
}

func TestMetrics_RequestServed(t *testing.T) {
	m := NewMetrics()
	m.RequestServed(session.OutcomeOK, 3*time.Millisecond)
	m.RequestServed(session.OutcomeOK, time.Millisecond)
	m.RequestServed(session.OutcomeLimitExceeded, 0)

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("limit_exceeded")); got != 1 {
		t.Errorf("limit_exceeded requests = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.WritePrometheus(rec, httptest.NewRequest("GET", "/metrics", http.NoBody))
	if !strings.Contains(rec.Body.String(), "fibnet_compute_duration_seconds_count 2") {
		t.Error("rejected requests should not be observed by the compute histogram")
	}
}

func TestMetrics_WritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.IncrementActiveRequests()
	defer m.DecrementActiveRequests()
	m.SessionOpened()
	m.RequestServed(session.OutcomeTooLarge, time.Second)

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	m.WritePrometheus(rec, req)
	body := rec.Body.String()

	for _, name := range []string{
		"fibnet_active_sessions",
		"fibnet_sessions_total",
		`fibnet_requests_total{outcome="too_large"}`,
		"fibnet_compute_duration_seconds",
		"fibnet_admin_active_requests",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output should contain %s", name)
		}
	}
}

func TestServer_metricsMiddleware(t *testing.T) {
	t.Run("Next handler is called and tracked", func(t *testing.T) {
		s := &Server{metrics: NewMetrics()}

		nextCalled := false
		handler := s.metricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			if got := testutil.ToFloat64(s.metrics.adminActive); got != 1 {
				t.Errorf("in-flight gauge = %v during the request, want 1", got)
			}
			w.WriteHeader(http.StatusOK)
		})
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("GET", "/status", http.NoBody))

		if !nextCalled {
			t.Error("next handler was not called")
		}
		if got := testutil.ToFloat64(s.metrics.adminActive); got != 0 {
			t.Errorf("in-flight gauge = %v after the request, want 0", got)
		}
		if got := testutil.ToFloat64(s.metrics.adminRequests.WithLabelValues("/status")); got != 1 {
			t.Errorf("admin requests = %v, want 1", got)
		}
	})

	t.Run("Works without metrics", func(t *testing.T) {
		s := &Server{}
		rec := httptest.NewRecorder()
		s.metricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})(rec, httptest.NewRequest("GET", "/status", http.NoBody))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestServer_handleMetrics(t *testing.T) {
	t.Run("GET returns metrics", func(t *testing.T) {
		s := &Server{metrics: NewMetrics()}
		rec := httptest.NewRecorder()
		s.handleMetrics(rec, httptest.NewRequest("GET", "/metrics", http.NoBody))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if !strings.Contains(rec.Body.String(), "fibnet_") {
			t.Error("response should contain fibnet metrics")
		}
	})

	for _, method := range []string{"POST", "PUT"} {
		t.Run(method+" returns method not allowed", func(t *testing.T) {
			s := &Server{metrics: NewMetrics(), logger: newTestLogger()}
			rec := httptest.NewRecorder()
			s.handleMetrics(rec, httptest.NewRequest(method, "/metrics", http.NoBody))

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}

// testLogger is a minimal logger for testing that implements logging.Logger.
type testLogger struct{}

func newTestLogger() *testLogger                                  { return &testLogger{} }
func (l *testLogger) Info(_ string, _ ...logging.Field)           {}
func (l *testLogger) Error(_ string, _ error, _ ...logging.Field) {}
func (l *testLogger) Debug(_ string, _ ...logging.Field)          {}
func (l *testLogger) Println(_ ...any)                            {}
