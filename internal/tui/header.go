package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/fibnet/internal/format"
)

// HeaderModel renders the top bar: title, version and server uptime.
type HeaderModel struct {
	startTime time.Time
	version   string
	width     int
}

// NewHeaderModel creates a new header.
func NewHeaderModel(version string) HeaderModel {
	return HeaderModel{version: version}
}

// SetRunning starts the uptime clock.
func (h *HeaderModel) SetRunning(now time.Time) {
	h.startTime = now
}

// SetStopped clears the uptime clock.
func (h *HeaderModel) SetStopped() {
	h.startTime = time.Time{}
}

// SetWidth updates the available width.
func (h *HeaderModel) SetWidth(w int) {
	h.width = w
}

// View renders the header.
func (h HeaderModel) View() string {
	titleText := "FibNet Console"
	if h.version != "" && h.version != "dev" {
		titleText += " " + h.version
	}
	title := titleStyle.Render(titleText)
	pipe := versionStyle.Render(" | ")

	uptime := "stopped"
	if !h.startTime.IsZero() {
		uptime = format.FormatExecutionDuration(time.Since(h.startTime).Truncate(time.Second))
	}
	elapsed := elapsedStyle.Render(fmt.Sprintf("Uptime: %s", uptime))

	leftPart := title + pipe + elapsed
	gap := max(h.width-2-lipgloss.Width(leftPart), 0)

	return headerStyle.Width(h.width).Render(leftPart + strings.Repeat(" ", gap))
}
