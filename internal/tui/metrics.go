package tui

import (
	"fmt"
	"strings"

	"github.com/agbru/fibnet/internal/metrics"
	"github.com/agbru/fibnet/internal/server"
)

// sessionHistory is the number of ticks kept for the sessions sparkline.
const sessionHistory = 60

// MetricsModel displays the server state, runtime statistics and a
// sparkline of recent session counts.
type MetricsModel struct {
	status   server.Status
	runtime  metrics.RuntimeSnapshot
	sessions *RingBuffer
	width    int
}

// NewMetricsModel creates a new metrics panel.
func NewMetricsModel() MetricsModel {
	return MetricsModel{sessions: NewRingBuffer(sessionHistory)}
}

// SetWidth updates the available width.
func (m *MetricsModel) SetWidth(w int) {
	m.width = w
}

// UpdateStatus records a controller snapshot and its session count.
func (m *MetricsModel) UpdateStatus(st server.Status) {
	m.status = st
	m.sessions.Push(float64(st.ActiveSessions))
}

// UpdateRuntime records a runtime sample.
func (m *MetricsModel) UpdateRuntime(s metrics.RuntimeSnapshot) {
	m.runtime = s
}

// Reset clears the session history.
func (m *MetricsModel) Reset() {
	m.sessions.Reset()
}

// View renders the panel.
func (m MetricsModel) View() string {
	var b strings.Builder

	addr, limit := "-", "-"
	if m.status.Running {
		addr = m.status.Addr
		limit = m.status.Limit.String()
	}
	row(&b, "Address", addr)
	row(&b, "Limit", limit)
	row(&b, "Sessions", fmt.Sprintf("%d (peak %.0f)", m.status.ActiveSessions, m.sessions.Max()))
	row(&b, "Heap", fmt.Sprintf("%.1f MiB", m.runtime.HeapMiB()))
	row(&b, "Goroutines", fmt.Sprintf("%d", m.runtime.Goroutines))
	row(&b, "GC cycles", fmt.Sprintf("%d", m.runtime.NumGC))

	spark := m.sessions.Slice()
	if w := m.width - 4; w > 0 && len(spark) > w {
		spark = spark[len(spark)-w:]
	}
	b.WriteString(sparklineStyle.Render(RenderSparkline(spark, max(m.sessions.Max(), 1))))

	style := panelStyle
	if m.width > 2 {
		style = style.Width(m.width - 2)
	}
	return style.Render(b.String())
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(metricLabelStyle.Render(fmt.Sprintf("%-11s", label)))
	b.WriteString(metricValueStyle.Render(value))
	b.WriteByte('\n')
}
