package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/litescript/starfield/internal/camera"
	"github.com/litescript/starfield/internal/scene"
)

const (
	// Pan steps in degrees
	panStepAz = 15.0
	panStepEl = 10.0

	// Animation
	animDuration  = 400 * time.Millisecond
	animFrameRate = 30 * time.Millisecond

	// Star glyphs by magnitude
	glyphStarBright  = '✶' // mag < 3
	glyphStarMedium  = '✸' // mag 3-5
	glyphStarDim     = '•' // mag 5-7
	glyphStarVeryDim = '·' // mag > 7

	colorStarBright  = "255"
	colorStarMedium  = "250"
	colorStarDim     = "244"
	colorStarVeryDim = "240"
)

// StarSource supplies the stars placed so far.
type StarSource interface {
	Stars() []scene.Star
}

// SkyViewModel draws the placed stars as the camera sees them. The
// camera can be panned away from the generator's view to show the cull
// boundary.
type SkyViewModel struct {
	width  int
	height int

	view  camera.View
	stars []scene.Star

	// Camera direction relative to the generator's view
	camAz float64
	camEl float64

	// Animation state
	animating   bool
	animStartAz float64
	animStartEl float64
	animTargAz  float64
	animTargEl  float64
	animStart   time.Time
}

// NewSkyViewModel creates a sky view looking through v.
func NewSkyViewModel(v camera.View) SkyViewModel {
	return SkyViewModel{view: v}
}

// SetSize updates the viewport size.
func (m SkyViewModel) SetSize(width, height int) SkyViewModel {
	m.width = width
	m.height = height
	return m
}

// UpdateStars replaces the stars drawn on the canvas.
func (m SkyViewModel) UpdateStars(stars []scene.Star) SkyViewModel {
	m.stars = stars
	return m
}

// animTickMsg is sent during animation
type animTickMsg time.Time

func animTick() tea.Cmd {
	return tea.Tick(animFrameRate, func(t time.Time) tea.Msg {
		return animTickMsg(t)
	})
}

// Update handles messages.
func (m SkyViewModel) Update(msg tea.Msg) (SkyViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h":
			return m.panTo(m.targetAz()-panStepAz, m.targetEl())
		case "right", "l":
			return m.panTo(m.targetAz()+panStepAz, m.targetEl())
		case "up", "k":
			return m.panTo(m.targetAz(), math.Min(m.targetEl()+panStepEl, 80))
		case "down", "j":
			return m.panTo(m.targetAz(), math.Max(m.targetEl()-panStepEl, -80))
		case "0":
			return m.panTo(0, 0)
		}

	case animTickMsg:
		if m.animating {
			return m.updateAnimation()
		}
	}

	return m, nil
}

func (m SkyViewModel) targetAz() float64 {
	if m.animating {
		return m.animTargAz
	}
	return m.camAz
}

func (m SkyViewModel) targetEl() float64 {
	if m.animating {
		return m.animTargEl
	}
	return m.camEl
}

func (m SkyViewModel) panTo(az, el float64) (SkyViewModel, tea.Cmd) {
	m.animating = true
	m.animStartAz = m.camAz
	m.animStartEl = m.camEl
	m.animTargAz = normalizeAngle(az)
	m.animTargEl = el
	m.animStart = time.Now()
	return m, animTick()
}

func (m SkyViewModel) updateAnimation() (SkyViewModel, tea.Cmd) {
	elapsed := time.Since(m.animStart)
	t := float64(elapsed) / float64(animDuration)

	if t >= 1.0 {
		m.animating = false
		m.camAz = m.animTargAz
		m.camEl = m.animTargEl
		return m, nil
	}

	// Ease-out cubic
	t = 1 - math.Pow(1-t, 3)

	m.camAz = normalizeAngle(lerpAngle(m.animStartAz, m.animTargAz, t))
	m.camEl = lerp(m.animStartEl, m.animTargEl, t)

	return m, animTick()
}

// View renders the sky view.
func (m SkyViewModel) View() string {
	if m.width < 20 || m.height < 10 {
		return "Sky view requires larger terminal"
	}

	viewHeight := m.height - 3
	canvas, inView := m.renderSkyCanvas(m.width, viewHeight)

	var b strings.Builder
	b.WriteString(m.renderHeader(inView))
	b.WriteString("\n")
	b.WriteString(canvas)
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("←→↑↓ pan · 0 reset"))

	return b.String()
}

func (m SkyViewModel) renderHeader(inView int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	title := titleStyle.Render("Sky View")
	count := dimStyle.Render(fmt.Sprintf("%d of %d stars in view", inView, len(m.stars)))
	compass := dimStyle.Render(fmt.Sprintf("Az:%+.0f° El:%+.0f°", m.camAz, m.camEl))

	return fmt.Sprintf("%s | %s | %s", title, count, compass)
}

// lookView returns the camera rotated by the current pan offsets.
func (m SkyViewModel) lookView() camera.View {
	if m.camAz == 0 && m.camEl == 0 {
		return m.view
	}
	az := mgl64.DegToRad(m.camAz)
	el := mgl64.DegToRad(m.camEl)
	dir := mgl64.Vec3{
		math.Sin(az) * math.Cos(el),
		math.Sin(el),
		-math.Cos(az) * math.Cos(el),
	}
	v := m.view.LookAt(mgl64.Vec3{}, dir, mgl64.Vec3{0, 1, 0})
	v.View = v.View.Mul4(m.view.View)
	return v
}

func (m SkyViewModel) renderSkyCanvas(width, height int) (string, int) {
	canvas := make([][]rune, height)
	colors := make([][]lipgloss.Color, height)
	mags := make([][]float64, height)
	for y := 0; y < height; y++ {
		canvas[y] = make([]rune, width)
		colors[y] = make([]lipgloss.Color, width)
		mags[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			canvas[y][x] = ' '
			colors[y][x] = "236"
			mags[y][x] = math.Inf(1)
		}
	}

	v := m.lookView()
	inView := 0
	for _, s := range m.stars {
		x, y, visible := projectToCanvas(s.Position, v, width, height)
		if !visible {
			continue
		}
		inView++

		// Brightest star wins a shared cell
		if s.Magnitude >= mags[y][x] {
			continue
		}
		mags[y][x] = s.Magnitude
		canvas[y][x], colors[y][x] = starGlyph(s.Magnitude)
	}

	var b strings.Builder
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			style := lipgloss.NewStyle().Foreground(colors[y][x])
			b.WriteString(style.Render(string(canvas[y][x])))
		}
		if y < height-1 {
			b.WriteString("\n")
		}
	}

	return b.String(), inView
}

// projectToCanvas maps a world-space point to a canvas cell. Window Y grows
// upward, canvas rows grow downward.
func projectToCanvas(p mgl64.Vec3, v camera.View, width, height int) (int, int, bool) {
	if !camera.IsVisible(p, v) {
		return 0, 0, false
	}
	w := v.Project(p)
	r := v.Viewport

	x := int((w.X() - float64(r.X)) / float64(r.Width) * float64(width))
	y := int((1 - (w.Y()-float64(r.Y))/float64(r.Height)) * float64(height))
	if x < 0 || x >= width || y < 0 || y >= height {
		return 0, 0, false
	}
	return x, y, true
}

// starGlyph returns the glyph and color for a star of the given magnitude.
func starGlyph(mag float64) (rune, lipgloss.Color) {
	switch {
	case mag < 3:
		return glyphStarBright, colorStarBright
	case mag < 5:
		return glyphStarMedium, colorStarMedium
	case mag < 7:
		return glyphStarDim, colorStarDim
	default:
		return glyphStarVeryDim, colorStarVeryDim
	}
}

// normalizeAngle wraps angle to -180..+180 range
func normalizeAngle(a float64) float64 {
	for a > 180 {
		a -= 360
	}
	for a < -180 {
		a += 360
	}
	return a
}

// lerpAngle interpolates between angles, taking shortest path
func lerpAngle(a, b, t float64) float64 {
	diff := normalizeAngle(b - a)
	return a + diff*t
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
