// Command starfield generates synthetic star fields and reports their
// integrated brightness in a terminal UI or as plain text.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/litescript/starfield/internal/camera"
	"github.com/litescript/starfield/internal/cluster"
	"github.com/litescript/starfield/internal/logging"
	"github.com/litescript/starfield/internal/report"
	"github.com/litescript/starfield/internal/scene"
	"github.com/litescript/starfield/internal/state"
	"github.com/litescript/starfield/internal/stream"
	"github.com/litescript/starfield/internal/ui"
	"github.com/litescript/starfield/internal/version"
)

// CLI flags for output
var (
	headlessMode bool
	estimateMode bool
	jsonPath     string
	csvPath      string
	serveAddr    string
	logPath      string
)

const progressInterval = 200 * time.Millisecond

func main() {
	cfg := cluster.DefaultConfig()

	method := flag.String("method", cfg.Method.String(), "Generative model (halley, fractal)")
	flag.IntVar(&cfg.Halley.ShellCount, "shells", cfg.Halley.ShellCount, "Halley: number of shells")
	flag.Float64Var(&cfg.Halley.ShellThickness, "thickness", cfg.Halley.ShellThickness, "Halley: shell thickness in parsecs")
	flag.Float64Var(&cfg.Halley.FirstShellDistance, "first-distance", cfg.Halley.FirstShellDistance, "Halley: inner radius of the first shell in parsecs")
	flag.IntVar(&cfg.Fractal.LevelCount, "levels", cfg.Fractal.LevelCount, "Fractal: number of levels")
	flag.IntVar(&cfg.Fractal.CountPerLevel, "per-level", cfg.Fractal.CountPerLevel, "Fractal: lattice points per axis")
	flag.Float64Var(&cfg.Fractal.Spacing, "spacing", cfg.Fractal.Spacing, "Fractal: gap between sub-clusters in parsecs")
	flag.BoolVar(&cfg.Fractal.PlaceZeroStar, "zero-star", cfg.Fractal.PlaceZeroStar, "Fractal: keep stars on the cluster center")
	flag.Float64Var(&cfg.Style.Size, "star-size", cfg.Style.Size, "Star mesh size")
	flag.Float64Var(&cfg.Style.PowerFactor, "star-power", cfg.Style.PowerFactor, "Star size growth exponent with distance")
	flag.DurationVar(&cfg.Pace, "pace", cfg.Pace, "Delay before each star is placed (e.g., 10ms, 0)")
	flag.IntVar(&cfg.Concurrency, "workers", cfg.Concurrency, "Worker count (0 = CPU count)")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Sampling seed (0 = time based)")
	flag.BoolVar(&cfg.AwaitAck, "await-ack", cfg.AwaitAck, "Halley: wait for an acknowledgement after each shell")
	width := flag.Int("width", cfg.Camera.Viewport.Width, "Camera viewport width")
	height := flag.Int("height", cfg.Camera.Viewport.Height, "Camera viewport height")
	flag.BoolVar(&estimateMode, "estimate", false, "Print the predicted star count and duration, then exit")
	flag.BoolVar(&headlessMode, "headless", false, "Print a text report instead of the TUI")
	flag.StringVar(&jsonPath, "json", "", "Export the run as JSON (use - for stdout)")
	flag.StringVar(&csvPath, "csv", "", "Export the data table as CSV (use - for stdout)")
	flag.StringVar(&serveAddr, "serve", "", "Stream events over WebSocket at this address (e.g., :8080)")
	flag.StringVar(&logPath, "log-file", "", "Write logs to this file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("starfield v%s\n", version.Version)
		return
	}

	m, err := cluster.ParseMethod(*method)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	cfg.Method = m
	cfg.Camera = camera.Default(*width, *height)

	if estimateMode {
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		report.WriteEstimate(os.Stdout, cfg.Method, cfg.Estimate())
		return
	}

	headless := headlessMode || jsonPath != "" || csvPath != "" || !term.IsTerminal(int(os.Stdout.Fd()))

	// Set up logging
	logger := logging.New(logging.ParseLevel(*logLevel))
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.SetOutput(f)
	} else if !headless {
		// Anything on stderr would tear the alt screen
		logger.SetOutput(io.Discard)
	}

	sc := scene.NewMemory()
	gen, err := cluster.New(cfg, sc, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal asks the generator to stop, a second one cancels
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Interrupted, terminating run")
		gen.Terminate()
		<-sigCh
		cancel()
	}()

	var hooks []func(cluster.Event)
	if serveAddr != "" {
		hub := stream.NewHub(stream.WithLogger(logger.Named("stream")), stream.WithController(gen))
		srv := startServer(serveAddr, hub, logger)
		defer func() {
			hub.Close()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		hooks = append(hooks, hub.Publish)
	} else if headless && cfg.AwaitAck {
		// Nothing can send the acknowledgement without a TUI or stream client
		logger.Warn("-await-ack has no effect in headless mode without -serve")
		hooks = append(hooks, gen.AutoAcknowledge())
	}

	if err := gen.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	stateMgr := state.NewManager(state.DefaultConfig())
	_, total := gen.Totals()
	stateMgr.Begin(cfg.Method, total, cfg.Estimate())

	if headless {
		if err := runHeadless(gen, stateMgr, hooks); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create TUI model
	model := ui.New(stateMgr, gen, sc, cfg.Camera).WithAwaitAck(cfg.AwaitAck)
	p := tea.NewProgram(model, tea.WithAltScreen())

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		stateMgr.Consume(gen.Events(), hooks...)
		p.Send(ui.DataUpdateMsg{Snapshot: stateMgr.Snapshot()})
	}()

	// Run TUI (blocks until quit)
	if _, err := p.Run(); err != nil {
		gen.Terminate()
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}

	gen.Terminate()
	<-consumed
	report.WriteTable(os.Stdout, stateMgr.Snapshot())
}

func startServer(addr string, hub *stream.Hub, logger *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Streaming events on ws://%s/ws", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Event stream server: %v", err)
		}
	}()
	return srv
}

// runHeadless drains the run into the state manager, showing a progress
// line on an interactive stderr, then writes the requested outputs.
func runHeadless(gen *cluster.Generator, stateMgr *state.Manager, hooks []func(cluster.Event)) error {
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		stateMgr.Consume(gen.Events(), hooks...)
	}()

	if term.IsTerminal(int(os.Stderr.Fd())) {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
	progress:
		for {
			select {
			case <-consumed:
				break progress
			case <-ticker.C:
				fmt.Fprintf(os.Stderr, "\r%s", report.ProgressLine(stateMgr.Snapshot(), 30))
			}
		}
		fmt.Fprintf(os.Stderr, "\r%s\n", report.ProgressLine(stateMgr.Snapshot(), 30))
	}
	<-consumed
	snap := stateMgr.Snapshot()

	if jsonPath != "" {
		if err := writeOutput(jsonPath, func(w io.Writer) error {
			export := report.ExportSnapshot(snap)
			export.Seed = gen.Seed()
			return export.WriteJSON(w)
		}); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	}
	if csvPath != "" {
		if err := writeOutput(csvPath, func(w io.Writer) error {
			return report.WriteCSV(w, snap)
		}); err != nil {
			return fmt.Errorf("write CSV: %w", err)
		}
	}
	if jsonPath != "-" && csvPath != "-" {
		report.WriteTable(os.Stdout, snap)
	}

	return snap.LastError
}

// writeOutput runs write against stdout for "-" or a newly created file.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
