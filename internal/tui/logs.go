package tui

import (
	"strings"
	"time"
)

// maxLogEntries bounds the event log.
const maxLogEntries = 500

type logKind int

const (
	logInfo logKind = iota
	logSuccess
	logError
)

type logEntry struct {
	at   time.Time
	kind logKind
	text string
}

// LogsModel is the scrolling event log.
type LogsModel struct {
	entries []logEntry
	// offset is the number of lines scrolled back from the newest entry.
	offset int
	width  int
	height int
}

// NewLogsModel creates an empty log.
func NewLogsModel() LogsModel {
	return LogsModel{}
}

// SetSize updates the panel dimensions, borders included.
func (l *LogsModel) SetSize(w, h int) {
	l.width = w
	l.height = h
}

// Add appends an entry, dropping the oldest beyond maxLogEntries.
func (l *LogsModel) Add(kind logKind, text string) {
	l.entries = append(l.entries, logEntry{at: time.Now(), kind: kind, text: text})
	if n := len(l.entries) - maxLogEntries; n > 0 {
		l.entries = append(l.entries[:0:0], l.entries[n:]...)
	}
	if l.offset > 0 {
		l.offset = min(l.offset+1, max(len(l.entries)-l.visible(), 0))
	}
}

// Lines returns the entry texts, oldest first.
func (l LogsModel) Lines() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.text
	}
	return out
}

// ScrollUp moves the view back by n lines.
func (l *LogsModel) ScrollUp(n int) {
	l.offset = min(l.offset+n, max(len(l.entries)-l.visible(), 0))
}

// ScrollDown moves the view forward by n lines.
func (l *LogsModel) ScrollDown(n int) {
	l.offset = max(l.offset-n, 0)
}

func (l LogsModel) visible() int {
	return max(l.height-2, 1)
}

// View renders the visible window of the log.
func (l LogsModel) View() string {
	end := len(l.entries) - l.offset
	start := max(end-l.visible(), 0)

	lines := make([]string, 0, l.visible())
	for _, e := range l.entries[start:end] {
		text := logInfoStyle.Render(e.text)
		switch e.kind {
		case logSuccess:
			text = logSuccessStyle.Render(e.text)
		case logError:
			text = logErrorStyle.Render(e.text)
		}
		lines = append(lines, logTimeStyle.Render(e.at.Format("15:04:05"))+" "+text)
	}
	for len(lines) < l.visible() {
		lines = append(lines, "")
	}

	style := panelStyle
	if l.width > 2 {
		style = style.Width(l.width - 2)
	}
	return style.Render(strings.Join(lines, "\n"))
}
