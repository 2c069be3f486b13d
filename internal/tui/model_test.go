package tui

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agbru/fibnet/internal/client"
	"github.com/agbru/fibnet/internal/config"
	apperrors "github.com/agbru/fibnet/internal/errors"
	"github.com/agbru/fibnet/internal/server"
	"github.com/agbru/fibnet/internal/ui"
)

type startCall struct {
	port  int
	limit config.Limit
}

type fakeController struct {
	mu       sync.Mutex
	startErr error
	starts   []startCall
	stops    int
	running  bool
	port     int
	limit    config.Limit
	line     string
}

func newFakeController() *fakeController {
	return &fakeController{line: server.LineStopped}
}

func (f *fakeController) Start(port int, limit config.Limit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, startCall{port, limit})
	if f.startErr != nil {
		f.line = "Error starting server: " + f.startErr.Error()
		return f.startErr
	}
	f.running, f.port, f.limit = true, port, limit
	f.line = server.StatusLine(port, limit)
	return nil
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
	f.line = server.LineStopped
	return nil
}

func (f *fakeController) Status() server.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := server.Status{Running: f.running, Line: f.line}
	if f.running {
		st.Addr = net.JoinHostPort("127.0.0.1", strconv.Itoa(f.port))
		st.Limit = f.limit
	}
	return st
}

func (f *fakeController) fail(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.line = line
}

func plainStyles(t *testing.T) {
	t.Helper()
	prev := ui.GetCurrentTheme()
	ui.SetCurrentTheme(ui.NoColorTheme)
	initTUIStyles()
	t.Cleanup(func() {
		ui.SetCurrentTheme(prev)
		initTUIStyles()
	})
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyStop  = tea.KeyMsg{Type: tea.KeyCtrlX}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyQuit  = tea.KeyMsg{Type: tea.KeyCtrlC}
)

// send applies msg and then runs the returned command once, feeding its
// message back into the model.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	next, _ = m.Update(cmd())
	return next.(Model)
}

func lastLog(m Model) string {
	lines := m.logs.Lines()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func TestModel_StartStop(t *testing.T) {
	fc := newFakeController()
	m := NewModel(fc, Options{Port: 9000, Limit: config.LimitedTo(10)})

	m = send(t, m, keyEnter)
	if len(fc.starts) != 1 || fc.starts[0].port != 9000 || fc.starts[0].limit != config.LimitedTo(10) {
		t.Fatalf("starts = %+v", fc.starts)
	}
	want := "Server running on port 9000, max Fibonacci number set to: 10"
	if got := lastLog(m); got != want {
		t.Errorf("log = %q, want %q", got, want)
	}
	if !m.status.Running || m.busy {
		t.Errorf("running=%v busy=%v after start", m.status.Running, m.busy)
	}

	m = send(t, m, keyStop)
	if fc.stops != 1 {
		t.Fatalf("stops = %d, want 1", fc.stops)
	}
	lines := m.logs.Lines()
	if len(lines) < 2 || lines[len(lines)-2] != server.LineStopping || lines[len(lines)-1] != server.LineStopped {
		t.Errorf("log tail = %q, want stopping then stopped", lines)
	}
	if m.status.Running {
		t.Error("expected stopped status")
	}
}

func TestModel_StopWhenStoppedIsNoop(t *testing.T) {
	fc := newFakeController()
	m := NewModel(fc, Options{Port: 9000, Limit: config.DefaultLimit})

	next, cmd := m.Update(keyStop)
	if cmd != nil {
		t.Error("expected no command")
	}
	if fc.stops != 0 || len(next.(Model).logs.Lines()) != 0 {
		t.Errorf("stops=%d logs=%v", fc.stops, next.(Model).logs.Lines())
	}
}

func TestModel_StartIgnoredWhileBusy(t *testing.T) {
	fc := newFakeController()
	m := NewModel(fc, Options{Port: 9000, Limit: config.DefaultLimit})

	next, cmd := m.Update(keyEnter)
	if cmd == nil {
		t.Fatal("expected start command")
	}
	if _, again := next.(Model).Update(keyEnter); again != nil {
		t.Error("expected second start to be ignored while busy")
	}
}

func TestModel_InvalidInput(t *testing.T) {
	tests := []struct {
		name, port, limit, want string
	}{
		{"port not a number", "abc", "10", "invalid port"},
		{"port out of range", "70000", "10", "invalid port"},
		{"bad limit", "9000", "many", "invalid limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeController()
			m := NewModel(fc, Options{})
			m.inputs[fieldPort].SetValue(tt.port)
			m.inputs[fieldLimit].SetValue(tt.limit)

			next, cmd := m.Update(keyEnter)
			if cmd != nil {
				t.Error("expected no command for invalid input")
			}
			if got := lastLog(next.(Model)); !strings.Contains(got, tt.want) {
				t.Errorf("log = %q, want it to contain %q", got, tt.want)
			}
			if len(fc.starts) != 0 {
				t.Error("controller must not be called")
			}
		})
	}
}

func TestModel_StartFailure(t *testing.T) {
	fc := newFakeController()
	fc.startErr = apperrors.ListenerError{Addr: ":9000", Cause: errors.New("address already in use")}
	m := NewModel(fc, Options{Port: 9000, Limit: config.DefaultLimit})

	m = send(t, m, keyEnter)
	if got := lastLog(m); !strings.HasPrefix(got, "Error starting server: ") {
		t.Errorf("log = %q", got)
	}
	if m.status.Running || m.busy {
		t.Errorf("running=%v busy=%v after failed start", m.status.Running, m.busy)
	}
}

func TestModel_FocusAndTyping(t *testing.T) {
	fc := newFakeController()
	m := NewModel(fc, Options{Port: 9000, Limit: config.DefaultLimit})

	next, _ := m.Update(keyTab)
	m = next.(Model)
	if m.focus != fieldLimit {
		t.Fatalf("focus = %d, want limit field", m.focus)
	}
	m.inputs[fieldLimit].SetValue("")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("unlimited")})
	m = next.(Model)
	if got := m.inputs[fieldLimit].Value(); got != "unlimited" {
		t.Fatalf("limit field = %q", got)
	}
	if got := m.inputs[fieldPort].Value(); got != "9000" {
		t.Errorf("port field changed to %q", got)
	}

	m = send(t, m, keyEnter)
	if len(fc.starts) != 1 || !fc.starts[0].limit.IsUnlimited() {
		t.Errorf("starts = %+v, want one unlimited start", fc.starts)
	}

	next, _ = m.Update(keyTab)
	m = next.(Model)
	if m.focus != fieldQuery {
		t.Fatalf("focus = %d, want query field", m.focus)
	}
	next, _ = m.Update(keyTab)
	if next.(Model).focus != fieldPort {
		t.Error("expected focus to wrap to the port field")
	}
}

func TestModel_TickReportsUnexpectedStop(t *testing.T) {
	fc := newFakeController()
	m := NewModel(fc, Options{Port: 9000, Limit: config.DefaultLimit})
	m = send(t, m, keyEnter)

	fc.fail("Server error: accept failed")
	next, cmd := m.Update(TickMsg(time.Now()))
	m = next.(Model)
	if cmd == nil {
		t.Error("expected the tick to reschedule itself")
	}
	if got := lastLog(m); got != "Server error: accept failed" {
		t.Errorf("log = %q", got)
	}

	// A second tick does not repeat the message.
	n := len(m.logs.Lines())
	next, _ = m.Update(TickMsg(time.Now()))
	if len(next.(Model).logs.Lines()) != n {
		t.Error("expected no new log entry")
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(newFakeController(), Options{})
	_, cmd := m.Update(keyQuit)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModel_AutoStart(t *testing.T) {
	fc := newFakeController()
	m := NewModel(fc, Options{Port: 9001, Limit: config.LimitedTo(5), AutoStart: true})
	if m.Init() == nil {
		t.Fatal("expected init commands")
	}
	// The start runs inside the returned command, not in Init itself.
	if len(fc.starts) != 0 {
		t.Error("Init must not start synchronously")
	}
}

func TestModel_View(t *testing.T) {
	plainStyles(t)
	fc := newFakeController()
	m := NewModel(fc, Options{Port: 9000, Limit: config.LimitedTo(10), Version: "v1.2.3"})

	if got := m.View(); got != "Initializing..." {
		t.Errorf("View before size = %q", got)
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = next.(Model)
	m = send(t, m, keyEnter)
	view := m.View()
	for _, want := range []string{"FibNet Console v1.2.3", "Port", "Limit", "Server running on port 9000", "127.0.0.1:9000", "Sessions", "start"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_RealController(t *testing.T) {
	ctrl := server.NewController(server.Config{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = ctrl.Stop() })

	m := NewModel(ctrl, Options{Port: 0, Limit: config.LimitedTo(10)})
	m = send(t, m, keyEnter)
	if !m.status.Running {
		t.Fatalf("server not running: %v", m.logs.Lines())
	}

	host, portStr, err := net.SplitHostPort(m.status.Addr)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	got, err := client.RequestFibonacci(context.Background(), host, port, 10, client.WithTimeout(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if got != "55" {
		t.Errorf("F(10) = %q, want 55", got)
	}

	m = send(t, m, keyStop)
	if m.status.Running || lastLog(m) != server.LineStopped {
		t.Errorf("running=%v log=%q after stop", m.status.Running, lastLog(m))
	}
}

var keyQuery = tea.KeyMsg{Type: tea.KeyCtrlR}

func TestModel_QueryRequiresRunningServer(t *testing.T) {
	fc := newFakeController()
	m := NewModel(fc, Options{Port: 9000, Limit: config.DefaultLimit})

	m.inputs[fieldQuery].SetValue("ten")
	m = send(t, m, keyQuery)
	if got := lastLog(m); got != "Invalid input. Please enter a valid integer." {
		t.Errorf("log after bad index = %q", got)
	}

	m.inputs[fieldQuery].SetValue("10")
	m = send(t, m, keyQuery)
	if got := lastLog(m); !strings.Contains(got, "Start the server") {
		t.Errorf("log while stopped = %q", got)
	}
	if got := m.inputs[fieldQuery].Value(); got != "10" {
		t.Errorf("query field cleared to %q", got)
	}
}

func TestModel_QueryRunningServer(t *testing.T) {
	ctrl := server.NewController(server.Config{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = ctrl.Stop() })

	m := NewModel(ctrl, Options{Port: 0, Limit: config.LimitedTo(10)})
	m = send(t, m, keyEnter)
	if !m.status.Running {
		t.Fatalf("server not running: %v", m.logs.Lines())
	}

	tests := []struct {
		index string
		want  string
	}{
		{"10", "Fibonacci result: 55 (n=10)"},
		{"-8", "Fibonacci result: -21 (n=-8)"},
		{"11", "Fibonacci result: Error: Number exceeds maximum limit of 10. (n=11)"},
	}
	for _, tt := range tests {
		m.inputs[fieldQuery].SetValue(tt.index)
		m = send(t, m, keyQuery)
		if got := lastLog(m); got != tt.want {
			t.Errorf("query %s logged %q, want %q", tt.index, got, tt.want)
		}
		if m.inputs[fieldQuery].Value() != "" {
			t.Errorf("query field not cleared after %s", tt.index)
		}
	}

	// Enter in the query field sends the query instead of starting.
	next, _ := m.Update(keyTab)
	m = next.(Model)
	next, _ = m.Update(keyTab)
	m = next.(Model)
	if m.focus != fieldQuery {
		t.Fatalf("focus = %d, want query field", m.focus)
	}
	m.inputs[fieldQuery].SetValue("7")
	m = send(t, m, keyEnter)
	if got := lastLog(m); got != "Fibonacci result: 13 (n=7)" {
		t.Errorf("enter in query field logged %q", got)
	}
}

func TestQueryResult_CommunicationFailure(t *testing.T) {
	kind, text := queryResult(queriedMsg{n: 3, err: errors.New("connection refused")})
	if kind != logError || text != "Error communicating with the server: connection refused" {
		t.Errorf("queryResult = %v, %q", kind, text)
	}
}
