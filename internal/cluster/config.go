// Package cluster generates synthetic star clusters, culls them against the
// camera and places the visible stars on a pool of workers while keeping a
// running photometric aggregate.
package cluster

import (
	"fmt"
	"strings"
	"time"

	"github.com/litescript/starfield/internal/camera"
	"github.com/litescript/starfield/internal/scene"
)

// Method selects the generative model.
type Method int

const (
	MethodHalley  Method = iota // Concentric spherical shells
	MethodFractal               // Self-similar cubic lattice
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodHalley:
		return "halley"
	case MethodFractal:
		return "fractal"
	default:
		return "unknown"
	}
}

// MarshalText encodes the method by name.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a method name.
func (m *Method) UnmarshalText(text []byte) error {
	v, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "halley", "shell", "shells":
		return MethodHalley, nil
	case "fractal":
		return MethodFractal, nil
	default:
		return 0, &ConfigError{Field: "method", Reason: fmt.Sprintf("unknown method %q", s)}
	}
}

// HalleyParams configures the spherical shell model.
type HalleyParams struct {
	ShellCount         int
	ShellThickness     float64
	FirstShellDistance float64
}

// FractalParams configures the self-similar lattice model.
type FractalParams struct {
	LevelCount    int
	CountPerLevel int
	Spacing       float64
	PlaceZeroStar bool // Keep stars sitting exactly on the cluster center
}

// Config holds everything a generator needs before Start.
type Config struct {
	Method  Method
	Camera  camera.View
	Style   scene.Style
	Halley  HalleyParams
	Fractal FractalParams

	// Pace is the delay before each star is placed. Zero places as fast as
	// the workers can go.
	Pace time.Duration

	// Concurrency is the ideal worker count; zero uses the CPU count.
	Concurrency int

	// Seed drives candidate sampling. Zero picks a time-based seed.
	Seed uint64

	// AwaitAck holds each Halley shell until Acknowledge is called after
	// the previous shell has been reported.
	AwaitAck bool

	// EventBuffer is the capacity of the event channel.
	EventBuffer int
}

// MaxCandidates bounds the number of candidate points a configuration may
// produce.
const MaxCandidates = 20_000_000

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Method: MethodHalley,
		Camera: camera.Default(1600, 900),
		Style:  scene.DefaultStyle(),
		Halley: HalleyParams{
			ShellCount:         1,
			ShellThickness:     50,
			FirstShellDistance: 1.29,
		},
		Fractal: FractalParams{
			LevelCount:    3,
			CountPerLevel: 3,
			Spacing:       0,
			PlaceZeroStar: true,
		},
		Pace:        10 * time.Millisecond,
		EventBuffer: 1024,
	}
}

// Validate checks the parameters of the selected method.
func (c Config) Validate() error {
	if c.Pace < 0 {
		return &ConfigError{Field: "pace", Reason: "must not be negative"}
	}
	if c.Concurrency < 0 {
		return &ConfigError{Field: "concurrency", Reason: "must not be negative"}
	}
	if c.Camera.Viewport.Width <= 0 || c.Camera.Viewport.Height <= 0 {
		return &ConfigError{Field: "camera viewport", Reason: "must have a positive size"}
	}

	switch c.Method {
	case MethodHalley:
		return c.Halley.validate()
	case MethodFractal:
		return c.Fractal.validate()
	default:
		return &ConfigError{Field: "method", Reason: fmt.Sprintf("unsupported method %d", c.Method)}
	}
}

func (p HalleyParams) validate() error {
	switch {
	case p.ShellCount <= 0:
		return &ConfigError{Field: "shell count", Reason: "must be positive"}
	case p.ShellThickness <= 0:
		return &ConfigError{Field: "shell thickness", Reason: "must be positive"}
	case p.FirstShellDistance <= 0:
		return &ConfigError{Field: "first shell distance", Reason: "must be positive"}
	}

	candidates := 0
	for n := 0; n < p.ShellCount; n++ {
		candidates += ShellCandidateCount(p, n)
		if candidates > MaxCandidates {
			return &ConfigError{Field: "shell count", Reason: fmt.Sprintf("more than %d candidate stars", MaxCandidates)}
		}
	}
	return nil
}

func (p FractalParams) validate() error {
	switch {
	case p.LevelCount <= 0:
		return &ConfigError{Field: "level count", Reason: "must be positive"}
	case p.CountPerLevel <= 0:
		return &ConfigError{Field: "count per level", Reason: "must be positive"}
	case p.Spacing < 0:
		return &ConfigError{Field: "spacing", Reason: "must not be negative"}
	}

	if n := FractalCandidateCount(p); n > MaxCandidates {
		return &ConfigError{Field: "level count", Reason: fmt.Sprintf("%d candidate stars exceeds %d", n, MaxCandidates)}
	}
	return nil
}
