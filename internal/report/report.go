// Package report renders run results for headless output: a text table,
// CSV and JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/starfield/internal/astro"
	"github.com/litescript/starfield/internal/cluster"
	"github.com/litescript/starfield/internal/state"
)

// Export is the JSON-serializable representation of a run.
type Export struct {
	Method     string             `json:"method"`
	Seed       uint64             `json:"seed,omitempty"`
	Camera     astro.CameraData   `json:"camera"`
	Estimate   EstimateExport     `json:"estimate"`
	Placed     int                `json:"placed"`
	Total      int                `json:"total"`
	Terminated bool               `json:"terminated"`
	Failures   int                `json:"failed_batches,omitempty"`
	Error      string             `json:"error,omitempty"`
	ElapsedMS  int64              `json:"elapsed_ms"`
	Rows       []cluster.Row      `json:"rows"`
	Chart      []state.ChartPoint `json:"chart"`
}

// EstimateExport is a JSON-friendly estimate.
type EstimateExport struct {
	Count      int   `json:"count"`
	DurationMS int64 `json:"duration_ms"`
}

// ExportSnapshot converts a state snapshot to an exportable format.
func ExportSnapshot(snap state.Snapshot) *Export {
	export := &Export{
		Method: snap.Method.String(),
		Camera: snap.Camera,
		Estimate: EstimateExport{
			Count:      snap.Estimate.Count,
			DurationMS: snap.Estimate.Duration.Milliseconds(),
		},
		Placed:     snap.Placed,
		Total:      snap.Total,
		Terminated: snap.Terminated,
		Failures:   snap.Failures,
		ElapsedMS:  snap.Elapsed.Milliseconds(),
		Rows:       snap.Rows,
		Chart:      snap.Chart,
	}
	if snap.LastError != nil {
		export.Error = snap.LastError.Error()
	}
	if export.Rows == nil {
		export.Rows = []cluster.Row{}
	}
	if export.Chart == nil {
		export.Chart = []state.ChartPoint{}
	}
	return export
}

// WriteJSON writes the export as JSON to the given writer.
func (e *Export) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// Headers returns the data table column titles for a method.
func Headers(m cluster.Method) []string {
	unit := "Shell"
	if m == cluster.MethodFractal {
		unit = "Report"
	}
	return []string{unit, "Visible stars", "Total mag", "Sky brightness [mag/arcsec²]", "e^(-μ)"}
}

// cells formats one row for the table and CSV writers. Units without
// brightness leave the photometry columns blank.
func cells(r cluster.Row) []string {
	out := []string{strconv.Itoa(r.Unit), strconv.Itoa(r.Count), "", "", ""}
	if r.HasBrightness {
		out[2] = strconv.FormatFloat(r.CombinedMagnitude, 'g', 14, 64)
		out[3] = strconv.FormatFloat(r.SurfaceBrightness, 'g', 14, 64)
		out[4] = strconv.FormatFloat(r.LinearBrightness, 'g', 14, 64)
	}
	return out
}

// WriteTable writes a text table of the run to the given writer.
func WriteTable(w io.Writer, snap state.Snapshot) {
	fmt.Fprintf(w, "%s star field: %d/%d stars placed in %s\n",
		titleCase(snap.Method.String()), snap.Placed, snap.Total, snap.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Camera: HFOV %.2f°  VFOV %.2f°  area %.0f deg² (%.4g arcsec²)\n",
		snap.Camera.HFOVDeg, snap.Camera.VFOVDeg, snap.Camera.AreaSqDeg, snap.Camera.AreaSqArcsec)
	fmt.Fprintln(w, strings.Repeat("─", 90))

	if len(snap.Rows) == 0 {
		fmt.Fprintln(w, "No units reported")
	} else {
		h := Headers(snap.Method)
		fmt.Fprintf(w, "%-7s %-14s %-18s %-30s %-14s\n", h[0], h[1], h[2], h[3], h[4])
		fmt.Fprintln(w, strings.Repeat("─", 90))
		for _, r := range snap.Rows {
			if !r.HasBrightness {
				fmt.Fprintf(w, "%-7d %-14d %-18s %-30s %-14s\n", r.Unit, r.Count, "-", "-", "-")
				continue
			}
			fmt.Fprintf(w, "%-7d %-14d %-18.6f %-30.6f %-14.6g\n",
				r.Unit, r.Count, r.CombinedMagnitude, r.SurfaceBrightness, r.LinearBrightness)
		}
	}

	fmt.Fprintln(w)
	switch {
	case snap.LastError != nil:
		fmt.Fprintf(w, "Failed: %v\n", snap.LastError)
	case snap.Terminated:
		fmt.Fprintf(w, "Terminated after %d of %d stars\n", snap.Placed, snap.Total)
	default:
		fmt.Fprintf(w, "Total: %d stars in %d units\n", snap.Placed, len(snap.Rows))
	}
	if snap.Failures > 0 {
		fmt.Fprintf(w, "Abandoned batches: %d\n", snap.Failures)
	}
}

// WriteCSV writes the data table as tab separated values. The camera
// columns are filled on the first row only.
func WriteCSV(w io.Writer, snap state.Snapshot) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	header := append(Headers(snap.Method), "HFOV [deg]", "VFOV [deg]", "Angular area [arcsec²]")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i, r := range snap.Rows {
		record := cells(r)
		if i == 0 {
			record = append(record,
				strconv.FormatFloat(snap.Camera.HFOVDeg, 'g', -1, 64),
				strconv.FormatFloat(snap.Camera.VFOVDeg, 'g', -1, 64),
				strconv.FormatFloat(snap.Camera.AreaSqArcsec, 'g', -1, 64))
		} else {
			record = append(record, "", "", "")
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", r.Unit, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteEstimate writes a one-line prediction of the configured run.
func WriteEstimate(w io.Writer, m cluster.Method, est cluster.Estimate) {
	fmt.Fprintf(w, "%s estimate: ~%d visible stars, ~%s\n",
		titleCase(m.String()), est.Count, est.Duration.Round(time.Second))
}

var (
	barFull  = lipgloss.NewStyle().Foreground(lipgloss.Color("#74C7EC"))
	barEmpty = lipgloss.NewStyle().Foreground(lipgloss.Color("#45475A"))
)

// ProgressLine renders a single-line progress bar of the given width.
func ProgressLine(snap state.Snapshot, width int) string {
	if width < 10 {
		width = 10
	}
	filled := int(snap.Percent() / 100 * float64(width))
	filled = max(0, min(filled, width))

	bar := barFull.Render(strings.Repeat("█", filled)) + barEmpty.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %5.1f%%  %d/%d  unit %d (%d/%d)",
		bar, snap.Percent(), snap.Placed, snap.Total, snap.Unit.Unit, snap.Unit.Placed, snap.Unit.Total)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
