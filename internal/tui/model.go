// Package tui implements the server console: a terminal front-end that
// starts and stops a Fibonacci server and shows its status and events.
package tui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/fibnet/internal/cli"
	"github.com/agbru/fibnet/internal/client"
	"github.com/agbru/fibnet/internal/config"
	apperrors "github.com/agbru/fibnet/internal/errors"
	"github.com/agbru/fibnet/internal/format"
	"github.com/agbru/fibnet/internal/metrics"
	"github.com/agbru/fibnet/internal/protocol"
	"github.com/agbru/fibnet/internal/server"
)

// Controller is the server surface the console drives.
// *server.Controller implements it.
type Controller interface {
	Start(port int, limit config.Limit) error
	Stop() error
	Status() server.Status
}

// Options configures the console.
type Options struct {
	// Port and Limit prefill the input fields.
	Port  int
	Limit config.Limit
	// Version is shown in the header.
	Version string
	// AutoStart starts the server with the prefilled values on launch.
	AutoStart bool
}

// Layout constants.
const (
	headerHeight          = 1
	inputHeight           = 5
	footerHeight          = 1
	minBodyHeight         = 4
	LogsPanelWidthPercent = 60
	refreshInterval       = 500 * time.Millisecond
	queryTimeout          = 10 * time.Second
)

const (
	fieldPort = iota
	fieldLimit
	fieldQuery
	fieldCount
)

// TickMsg triggers a status refresh.
type TickMsg time.Time

type startedMsg struct {
	status server.Status
	err    error
}

type stoppedMsg struct {
	err error
}

type queriedMsg struct {
	n    int32
	text string
	err  error
}

// Model is the root bubbletea model of the console.
type Model struct {
	header  HeaderModel
	logs    LogsModel
	metrics MetricsModel
	inputs  [fieldCount]textinput.Model
	focus   int
	keymap  KeyMap

	ctrl      Controller
	sampler   *metrics.Sampler
	status    server.Status
	autoStart bool
	// busy is set while a start or stop is in flight.
	busy bool

	width  int
	height int
}

// NewModel creates a console model around ctrl.
func NewModel(ctrl Controller, opts Options) Model {
	m := Model{
		header:    NewHeaderModel(opts.Version),
		logs:      NewLogsModel(),
		metrics:   NewMetricsModel(),
		keymap:    DefaultKeyMap(),
		ctrl:      ctrl,
		sampler:   metrics.NewSampler(),
		status:    ctrl.Status(),
		autoStart: opts.AutoStart,
	}

	port := textinput.New()
	port.Prompt = ""
	port.Placeholder = "9000"
	port.CharLimit = 5
	port.Width = 12
	port.SetValue(strconv.Itoa(opts.Port))

	limit := textinput.New()
	limit.Prompt = ""
	limit.Placeholder = "313575 or unlimited"
	limit.CharLimit = 11
	limit.Width = 20
	limit.SetValue(opts.Limit.String())

	query := textinput.New()
	query.Prompt = ""
	query.Placeholder = "index"
	query.CharLimit = 11
	query.Width = 12

	m.inputs[fieldPort] = port
	m.inputs[fieldLimit] = limit
	m.inputs[fieldQuery] = query
	m.inputs[fieldPort].Focus()
	return m
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, tickCmd()}
	if m.autoStart {
		port, limit, err := m.parseInputs()
		if err == nil {
			cmds = append(cmds, startCmd(m.ctrl, port, limit))
		}
	}
	return tea.Batch(cmds...)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutPanels()
		return m, nil

	case startedMsg:
		m.busy = false
		m.status = msg.status
		if msg.err != nil {
			m.logs.Add(logError, startFailure(msg.err))
			return m, nil
		}
		m.header.SetRunning(time.Now())
		m.metrics.Reset()
		m.metrics.UpdateStatus(msg.status)
		m.logs.Add(logSuccess, msg.status.Line)
		return m, nil

	case stoppedMsg:
		m.busy = false
		m.status = m.ctrl.Status()
		m.header.SetStopped()
		if msg.err != nil {
			m.logs.Add(logError, "Error stopping server: "+msg.err.Error())
		}
		m.logs.Add(logInfo, server.LineStopped)
		return m, nil

	case queriedMsg:
		m.logs.Add(queryResult(msg))
		return m, nil

	case TickMsg:
		st := m.ctrl.Status()
		// The server went down without a Stop, e.g. on an accept failure.
		if m.status.Running && !st.Running && !m.busy {
			m.header.SetStopped()
			m.logs.Add(logError, st.Line)
		}
		m.status = st
		m.metrics.UpdateStatus(st)
		m.metrics.UpdateRuntime(m.sampler.Snapshot())
		return m, tickCmd()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Query),
		key.Matches(msg, m.keymap.Start) && m.focus == fieldQuery:
		return m, m.query()

	case key.Matches(msg, m.keymap.Start):
		if m.busy {
			return m, nil
		}
		port, limit, err := m.parseInputs()
		if err != nil {
			m.logs.Add(logError, err.Error())
			return m, nil
		}
		m.busy = true
		return m, startCmd(m.ctrl, port, limit)

	case key.Matches(msg, m.keymap.Stop):
		if m.busy || !m.status.Running {
			return m, nil
		}
		m.busy = true
		m.logs.Add(logInfo, server.LineStopping)
		return m, stopCmd(m.ctrl)

	case key.Matches(msg, m.keymap.Focus):
		m.inputs[m.focus].Blur()
		m.focus = (m.focus + 1) % fieldCount
		return m, m.inputs[m.focus].Focus()

	case key.Matches(msg, m.keymap.PageUp):
		m.logs.ScrollUp(m.logs.visible())
		return m, nil

	case key.Matches(msg, m.keymap.PageDown):
		m.logs.ScrollDown(m.logs.visible())
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// parseInputs reads the port and limit fields.
func (m Model) parseInputs() (int, config.Limit, error) {
	p := strings.TrimSpace(m.inputs[fieldPort].Value())
	port, err := strconv.Atoi(p)
	if err != nil || port < 0 || port > 65535 {
		return 0, config.Limit{}, fmt.Errorf("invalid port %q: enter a number between 0 and 65535", p)
	}
	limit, err := config.ParseLimit(m.inputs[fieldLimit].Value())
	if err != nil {
		return 0, config.Limit{}, fmt.Errorf("invalid limit: %w", err)
	}
	return port, limit, nil
}

// query sends the index in the query field to the running server.
func (m *Model) query() tea.Cmd {
	raw := m.inputs[fieldQuery].Value()
	n, err := cli.ParseIndex(raw)
	if err != nil {
		m.logs.Add(logError, cli.InvalidInputMsg)
		return nil
	}
	if !m.status.Running {
		m.logs.Add(logError, "Start the server before sending a query.")
		return nil
	}
	m.inputs[fieldQuery].SetValue("")
	return queryCmd(m.status.Addr, n)
}

func queryResult(msg queriedMsg) (logKind, string) {
	if msg.err != nil {
		return logError, cli.CommunicationFail + msg.err.Error()
	}
	if strings.HasPrefix(msg.text, protocol.ErrorPrefix) {
		return logInfo, fmt.Sprintf("%s%s (n=%d)", cli.ResultPrefix, msg.text, msg.n)
	}
	text := format.TruncateDigits(msg.text, cli.TruncationLimit, cli.DisplayEdges)
	return logSuccess, fmt.Sprintf("%s%s (n=%d)", cli.ResultPrefix, text, msg.n)
}

func startFailure(err error) string {
	if server.IsListenerError(err) {
		return "Error starting server: " + err.Error()
	}
	return err.Error()
}

// View renders the console.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	logs := m.logs.View()
	rightCol := m.metrics.View()
	body := lipgloss.JoinHorizontal(lipgloss.Top, logs, rightCol)

	return lipgloss.JoinVertical(lipgloss.Left, m.header.View(), m.inputView(), body, m.footerView())
}

func (m Model) inputView() string {
	labels := [fieldCount]string{"Port", "Limit", "Query"}
	var b strings.Builder
	for i := range m.inputs {
		style := inputBlurredStyle
		if i == m.focus {
			style = inputFocusedStyle
		}
		b.WriteString(labelStyle.Render(labels[i]))
		b.WriteString(style.Render(m.inputs[i].View()))
		b.WriteString("  ")
	}
	b.WriteByte('\n')

	line := m.status.Line
	switch {
	case m.status.Running:
		line = statusRunningStyle.Render(line)
	case strings.HasPrefix(line, "Error"), strings.HasPrefix(line, "Server error"):
		line = statusErrorStyle.Render(line)
	default:
		line = statusStoppedStyle.Render(line)
	}
	b.WriteString(line)

	style := panelStyle
	if m.width > 2 {
		style = style.Width(m.width - 2)
	}
	return style.Render(b.String())
}

func (m Model) footerView() string {
	bindings := m.keymap.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, k := range bindings {
		h := k.Help()
		parts = append(parts, footerKeyStyle.Render(h.Key)+" "+footerDescStyle.Render(h.Desc))
	}
	return " " + strings.Join(parts, footerDescStyle.Render("  "))
}

func (m Model) bodyHeight() int {
	return max(m.height-headerHeight-inputHeight-footerHeight, minBodyHeight)
}

func (m *Model) layoutPanels() {
	logsWidth := m.width * LogsPanelWidthPercent / 100
	m.header.SetWidth(m.width)
	m.logs.SetSize(logsWidth, m.bodyHeight())
	m.metrics.SetWidth(m.width - logsWidth)
}

// Run starts the console and blocks until the user quits or ctx is done.
// The server is left as it is; callers stop it afterwards.
func Run(ctx context.Context, ctrl Controller, opts Options) error {
	// Rebuild styles from the current ui theme (set by the caller via InitTheme).
	initTUIStyles()

	p := tea.NewProgram(NewModel(ctrl, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return apperrors.WrapError(err, "console")
	}
	return nil
}

func startCmd(ctrl Controller, port int, limit config.Limit) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.Start(port, limit)
		return startedMsg{status: ctrl.Status(), err: err}
	}
}

func stopCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return stoppedMsg{err: ctrl.Stop()}
	}
}

// queryCmd asks the server at addr for F(n) over a fresh connection.
func queryCmd(addr string, n int32) tea.Cmd {
	return func() tea.Msg {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return queriedMsg{n: n, err: err}
		}
		if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
			host = "localhost"
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return queriedMsg{n: n, err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		text, err := client.RequestFibonacci(ctx, host, port, n, client.WithTimeout(queryTimeout))
		return queriedMsg{n: n, text: text, err: err}
	}
}

// tickCmd returns a command that sends a TickMsg after refreshInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
