// Package ui provides the terminal user interface using Bubble Tea.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/starfield/internal/camera"
	"github.com/litescript/starfield/internal/state"
	"github.com/litescript/starfield/internal/version"
)

// ViewMode represents the current UI view.
type ViewMode int

const (
	ViewDashboard ViewMode = iota
	ViewSky

	viewCount
)

// Msg types for Bubble Tea
type (
	// TickMsg triggers periodic UI updates.
	TickMsg time.Time

	// AnimTickMsg triggers fast animation updates.
	AnimTickMsg time.Time

	// DataUpdateMsg pushes a fresh snapshot, typically once the run ends.
	DataUpdateMsg struct {
		Snapshot state.Snapshot
	}
)

// Controller is the part of a generator the UI can drive.
type Controller interface {
	Terminate()
	Acknowledge()
}

// Model is the root Bubble Tea model.
type Model struct {
	// Dependencies
	state   *state.Manager
	control Controller
	stars   StarSource

	awaitAck bool

	// UI state
	viewMode  ViewMode
	width     int
	height    int
	ready     bool
	statusMsg string
	animTick  int

	// Sub-models
	dashboard DashboardModel
	skyView   SkyViewModel

	snapshot state.Snapshot
}

// New creates a new root UI model. ctl and stars may be nil.
func New(stateMgr *state.Manager, ctl Controller, stars StarSource, view camera.View) Model {
	return Model{
		state:     stateMgr,
		control:   ctl,
		stars:     stars,
		viewMode:  ViewDashboard,
		dashboard: NewDashboardModel(),
		skyView:   NewSkyViewModel(view),
	}
}

// WithAwaitAck makes the footer prompt for unit acknowledgements.
func (m Model) WithAwaitAck(on bool) Model {
	m.awaitAck = on
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		animTickCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.snapshot.Finished && m.control != nil {
				m.control.Terminate()
			}
			return m, tea.Quit

		case "t":
			if m.control != nil && !m.snapshot.Finished {
				m.control.Terminate()
				m.statusMsg = "Terminating..."
			}
		case "a", "enter":
			if m.control != nil && !m.snapshot.Finished {
				m.control.Acknowledge()
				if row, ok := m.snapshot.LastRow(); ok {
					m.statusMsg = fmt.Sprintf("Acknowledged unit %d", row.Unit)
				}
			}

		case "1", "d":
			m.viewMode = ViewDashboard
		case "2", "s":
			m.viewMode = ViewSky
			m.refreshStars()

		case "tab":
			m.viewMode = (m.viewMode + 1) % viewCount
			m.refreshStars()

		default:
			cmds = append(cmds, m.updateActiveView(msg))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		// Logo takes ~11 lines, footer ~2 lines
		contentHeight := msg.Height - 15
		m.dashboard = m.dashboard.SetSize(msg.Width, contentHeight)
		m.skyView = m.skyView.SetSize(msg.Width, contentHeight)

	case TickMsg:
		cmds = append(cmds, tickCmd())
		if m.state != nil {
			m.applySnapshot(m.state.Snapshot())
		}
		m.refreshStars()

	case AnimTickMsg:
		cmds = append(cmds, animTickCmd())
		m.animTick++

	case DataUpdateMsg:
		m.applySnapshot(msg.Snapshot)
		m.refreshStars()

	default:
		// Sky view animation frames
		cmds = append(cmds, m.updateActiveView(msg))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) applySnapshot(snap state.Snapshot) {
	m.snapshot = snap
	m.dashboard = m.dashboard.UpdateData(snap)
	if snap.Finished {
		m.statusMsg = ""
	}
}

// refreshStars copies the placed stars only while the sky view is visible.
func (m *Model) refreshStars() {
	if m.viewMode != ViewSky || m.stars == nil {
		return
	}
	m.skyView = m.skyView.UpdateStars(m.stars.Stars())
}

func (m *Model) updateActiveView(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.viewMode {
	case ViewDashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case ViewSky:
		m.skyView, cmd = m.skyView.Update(msg)
	}
	return cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var content string
	switch m.viewMode {
	case ViewDashboard:
		content = m.dashboard.View()
	case ViewSky:
		content = m.skyView.View()
	}

	return m.renderFrame(content)
}

func (m Model) renderFrame(content string) string {
	header := m.renderHeader()
	footer := m.renderFooter()

	return header + "\n" + content + "\n" + footer
}

func (m Model) renderHeader() string {
	return m.renderLogo() + m.renderTabs() + "\n"
}

func (m Model) renderLogo() string {
	logo := []string{
		`  ███████╗████████╗ █████╗ ██████╗ ███████╗██╗███████╗██╗     ██████╗`,
		`  ██╔════╝╚══██╔══╝██╔══██╗██╔══██╗██╔════╝██║██╔════╝██║     ██╔══██╗`,
		`  ███████╗   ██║   ███████║██████╔╝█████╗  ██║█████╗  ██║     ██║  ██║`,
		`  ╚════██║   ██║   ██╔══██║██╔══██╗██╔══╝  ██║██╔══╝  ██║     ██║  ██║`,
		`  ███████║   ██║   ██║  ██║██║  ██║██║     ██║███████╗███████╗██████╔╝`,
		`  ╚══════╝   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝     ╚═╝╚══════╝╚══════╝╚═════╝`,
	}

	var b strings.Builder
	b.WriteString("\n")

	for row, line := range logo {
		runes := []rune(line)
		lineLen := len(runes)

		for col, r := range runes {
			color := gradientColor(col, row, lineLen, len(logo))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
			b.WriteString(style.Render(string(r)))
		}
		b.WriteString("\n")
	}

	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	b.WriteString(muted.Render("  Synthetic star fields · " + m.snapshot.Method.String()))
	b.WriteString("\n")
	b.WriteString(muted.Render(fmt.Sprintf("  v%s", version.Version)))
	b.WriteString("\n\n")

	return b.String()
}

// gradientColor returns a hex color for a position in the logo gradient.
// Creates a nebula effect: blue -> purple -> magenta -> pink
func gradientColor(col, row, width, height int) string {
	xRatio := float64(col) / float64(width)
	yRatio := float64(row) / float64(height)

	// Blue (#3B82F6) -> Purple (#8B5CF6) -> Magenta (#D946EF) -> Pink (#EC4899)
	var r, g, b float64

	switch {
	case xRatio < 0.33:
		t := xRatio / 0.33
		r = 59 + t*(139-59)
		g = 130 + t*(92-130)
		b = 246
	case xRatio < 0.66:
		t := (xRatio - 0.33) / 0.33
		r = 139 + t*(217-139)
		g = 92 + t*(70-92)
		b = 246 + t*(239-246)
	default:
		t := (xRatio - 0.66) / 0.34
		r = 217 + t*(236-217)
		g = 70 + t*(72-70)
		b = 239 + t*(153-239)
	}

	// Vertical fade: brighter at top, darker toward bottom
	brightness := 1.0 - (yRatio * 0.5)

	return fmt.Sprintf("#%02X%02X%02X", clampByte(r*brightness), clampByte(g*brightness), clampByte(b*brightness))
}

func clampByte(v float64) int {
	return max(0, min(255, int(v)))
}

func (m Model) renderTabs() string {
	tabs := []string{"[1] Run", "[2] Sky"}
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	var parts []string
	for i, tab := range tabs {
		if ViewMode(i) == m.viewMode {
			parts = append(parts, activeStyle.Render("▶ "+tab))
		} else {
			parts = append(parts, dimStyle.Render("  "+tab))
		}
	}
	return "  " + strings.Join(parts, "  ")
}

func (m Model) renderFooter() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7B2CBF"))

	spinnerFrames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinner := spinnerFrames[m.animTick%len(spinnerFrames)]

	snap := m.snapshot
	var status string
	switch {
	case snap.LastError != nil:
		status = errStyle.Render("ERROR: " + snap.LastError.Error())
	case snap.Finished && snap.Terminated:
		status = dimStyle.Render(fmt.Sprintf("Terminated at %d/%d", snap.Placed, snap.Total))
	case snap.Finished:
		status = accentStyle.Render("✓") + dimStyle.Render(fmt.Sprintf(" Done: %d stars", snap.Placed))
	case snap.Started.IsZero():
		status = accentStyle.Render(spinner) + " " + m.renderShimmerText("Generating candidates...")
	default:
		status = accentStyle.Render(spinner) + " " + m.renderShimmerText("Placing stars...")
	}

	var help string
	switch {
	case snap.Finished:
		help = "q: quit | tab: switch view"
	case m.awaitAck:
		help = "a: next unit | t: terminate | q: quit"
	default:
		help = "t: terminate | q: quit | tab: switch view"
	}
	if m.viewMode == ViewDashboard {
		help = "↑↓: rows | " + help
	}

	footer := "  " + status + "  " + dimStyle.Render("|") + "  " + dimStyle.Render(help)

	if m.statusMsg != "" {
		footer += "\n  " + dimStyle.Render(m.statusMsg)
	}

	return footer
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func animTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return AnimTickMsg(t)
	})
}

// renderShimmerText renders text with a subtle moving shine effect.
func (m Model) renderShimmerText(text string) string {
	runes := []rune(text)
	textLen := len(runes)
	if textLen == 0 {
		return ""
	}

	pos := m.animTick % (textLen + 8)

	var result strings.Builder
	for i, r := range runes {
		dist := i - pos + 4
		if dist < 0 {
			dist = -dist
		}

		var r8, g8, b8 int
		switch {
		case dist <= 1:
			r8, g8, b8 = 180, 160, 220
		case dist <= 3:
			r8, g8, b8 = 140, 120, 180
		case dist <= 5:
			r8, g8, b8 = 110, 90, 150
		default:
			r8, g8, b8 = 80, 70, 120
		}

		hexColor := fmt.Sprintf("#%02X%02X%02X", r8, g8, b8)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor))
		result.WriteString(style.Render(string(r)))
	}

	return result.String()
}
