package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/starfield/internal/report"
	"github.com/litescript/starfield/internal/state"
)

// Styles for the dashboard
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#74C7EC"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// DashboardModel shows run progress, the data table and the event log.
type DashboardModel struct {
	width    int
	height   int
	cursor   int
	snapshot state.Snapshot
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel() DashboardModel {
	return DashboardModel{}
}

// SetSize updates the dashboard dimensions.
func (m DashboardModel) SetSize(width, height int) DashboardModel {
	m.width = width
	m.height = height
	return m
}

// UpdateData replaces the snapshot, following the newest row unless the
// user has scrolled up.
func (m DashboardModel) UpdateData(snapshot state.Snapshot) DashboardModel {
	follow := m.cursor >= len(m.snapshot.Rows)-1
	m.snapshot = snapshot
	if follow && len(snapshot.Rows) > 0 {
		m.cursor = len(snapshot.Rows) - 1
	}
	if m.cursor >= len(snapshot.Rows) {
		m.cursor = max(len(snapshot.Rows)-1, 0)
	}
	return m
}

// Update handles table navigation keys.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		rowCount := len(m.snapshot.Rows)
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < rowCount-1 {
				m.cursor++
			}
		case "home":
			m.cursor = 0
		case "end":
			if rowCount > 0 {
				m.cursor = rowCount - 1
			}
		}
	}
	return m, nil
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	var b strings.Builder

	if m.snapshot.LastError != nil {
		b.WriteString(errorStyle.Render("Error: " + m.snapshot.LastError.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderProgress())
	b.WriteString("\n")
	b.WriteString(m.renderTable())
	b.WriteString("\n")
	b.WriteString(m.renderEvents())

	return b.String()
}

func (m DashboardModel) renderProgress() string {
	var b strings.Builder
	snap := m.snapshot

	b.WriteString(titleStyle.Render("Progress"))
	b.WriteString("\n")

	barWidth := max(m.width-40, 20)
	fmt.Fprintf(&b, "  %-6s %s %5.1f%%  %d/%d\n", "Total", m.renderBar(snap.Percent()/100, barWidth), snap.Percent(), snap.Placed, snap.Total)

	unitFrac := 0.0
	if snap.Unit.Total > 0 {
		unitFrac = float64(snap.Unit.Placed) / float64(snap.Unit.Total)
	}
	fmt.Fprintf(&b, "  %-6s %s %5.1f%%  %d/%d\n",
		fmt.Sprintf("#%d", snap.Unit.Unit), m.renderBar(unitFrac, barWidth), unitFrac*100, snap.Unit.Placed, snap.Unit.Total)

	timing := fmt.Sprintf("  elapsed %s", snap.Elapsed.Round(time.Second))
	if snap.Estimate.Count > 0 {
		timing += fmt.Sprintf(" · estimate ~%d stars in ~%s", snap.Estimate.Count, snap.Estimate.Duration.Round(time.Second))
	}
	if snap.Failures > 0 {
		timing += fmt.Sprintf(" · %d abandoned batches", snap.Failures)
	}
	b.WriteString(mutedStyle.Render(timing))
	b.WriteString("\n")

	return b.String()
}

func (m DashboardModel) renderBar(frac float64, width int) string {
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return "[" + barStyle.Render(bar) + "]"
}

func (m DashboardModel) renderTable() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Brightness"))
	b.WriteString("\n")

	h := report.Headers(m.snapshot.Method)
	header := fmt.Sprintf("%-7s %-14s %-16s %-16s %-12s", h[0], h[1], "Total mag", "μ [mag/\"²]", "e^(-μ)")
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	rows := m.snapshot.Rows
	if len(rows) == 0 {
		b.WriteString("  No units reported yet\n")
		return b.String()
	}

	// Leave room for progress, headers and the event log
	maxRows := m.height - 16
	if maxRows < 5 {
		maxRows = 5
	}

	startIdx := 0
	if m.cursor >= maxRows {
		startIdx = m.cursor - maxRows + 1
	}
	endIdx := min(startIdx+maxRows, len(rows))

	for i := startIdx; i < endIdx; i++ {
		r := rows[i]
		line := fmt.Sprintf("%-7d %-14d %-16s %-16s %-12s", r.Unit, r.Count, "-", "-", "-")
		if r.HasBrightness {
			line = fmt.Sprintf("%-7d %-14d %-16.4f %-16.4f %-12.4g",
				r.Unit, r.Count, r.CombinedMagnitude, r.SurfaceBrightness, r.LinearBrightness)
		}

		if i == m.cursor {
			b.WriteString(selectedRowStyle.Render(line))
		} else {
			b.WriteString(rowStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if len(rows) > maxRows {
		b.WriteString(fmt.Sprintf("\n  Showing %d-%d of %d rows\n", startIdx+1, endIdx, len(rows)))
	}

	return b.String()
}

func (m DashboardModel) renderEvents() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Events"))
	b.WriteString("\n")

	events := m.snapshot.Events
	if len(events) > 4 {
		events = events[len(events)-4:]
	}
	if len(events) == 0 {
		b.WriteString(mutedStyle.Render("  none"))
		b.WriteString("\n")
	}
	for _, e := range events {
		line := fmt.Sprintf("  %s %-14s #%-4d %s", e.Timestamp.Format("15:04:05"), e.Type, e.Unit, truncate(e.Message, 60))
		if e.Type == state.EventFailed || e.Type == state.EventBatchFailed {
			b.WriteString(errorStyle.Render(line))
		} else {
			b.WriteString(mutedStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SelectedRow returns the index of the highlighted table row.
func (m DashboardModel) SelectedRow() int {
	return m.cursor
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
