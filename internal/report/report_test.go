package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/litescript/starfield/internal/astro"
	"github.com/litescript/starfield/internal/cluster"
	"github.com/litescript/starfield/internal/state"
)

func testSnapshot() state.Snapshot {
	bright := cluster.Row{Method: cluster.MethodHalley, Unit: 1}
	bright.Count = 42
	bright.HasBrightness = true
	bright.Brightness = astro.Brightness{CombinedMagnitude: 3.25, SurfaceBrightness: 29.9, LinearBrightness: 1e-13}

	empty := cluster.Row{Method: cluster.MethodHalley, Unit: 0}

	return state.Snapshot{
		Method:   cluster.MethodHalley,
		Camera:   astro.DefaultCameraData(),
		Estimate: cluster.Estimate{Count: 40, Duration: 2 * time.Second},
		Elapsed:  1500 * time.Millisecond,
		Placed:   42,
		Total:    42,
		Finished: true,
		Rows:     []cluster.Row{empty, bright},
		Chart:    []state.ChartPoint{{StarCount: 42, SurfaceBrightness: 29.9}},
	}
}

func TestExportSnapshot(t *testing.T) {
	snap := testSnapshot()
	snap.LastError = errors.New("scene unavailable")
	export := ExportSnapshot(snap)

	if export.Method != "halley" {
		t.Errorf("Method = %q, want halley", export.Method)
	}
	if export.ElapsedMS != 1500 {
		t.Errorf("ElapsedMS = %d, want 1500", export.ElapsedMS)
	}
	if export.Estimate.DurationMS != 2000 {
		t.Errorf("Estimate.DurationMS = %d, want 2000", export.Estimate.DurationMS)
	}
	if export.Error != "scene unavailable" {
		t.Errorf("Error = %q", export.Error)
	}
	if len(export.Rows) != 2 {
		t.Errorf("Rows = %d, want 2", len(export.Rows))
	}
}

func TestExport_WriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportSnapshot(testSnapshot()).WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["method"] != "halley" {
		t.Errorf("method = %v, want halley", decoded["method"])
	}

	rows, ok := decoded["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("rows = %v", decoded["rows"])
	}
	last := rows[1].(map[string]any)
	if last["count"] != float64(42) {
		t.Errorf("row count = %v, want 42", last["count"])
	}
	if last["method"] != "halley" {
		t.Errorf("row method = %v, want halley", last["method"])
	}
	if _, ok := last["surface_brightness"]; !ok {
		t.Error("row should flatten the brightness fields")
	}
}

func TestExport_WriteJSONSeed(t *testing.T) {
	export := ExportSnapshot(testSnapshot())
	export.Seed = 42

	var buf bytes.Buffer
	if err := export.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}
	if !strings.Contains(buf.String(), `"seed": 42`) {
		t.Errorf("export should carry the sampling seed:\n%s", buf.String())
	}
}

func TestExportSnapshot_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportSnapshot(state.Snapshot{}).WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}
	if !strings.Contains(buf.String(), `"rows": []`) {
		t.Errorf("empty run should encode an empty rows array:\n%s", buf.String())
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, testSnapshot())
	out := buf.String()

	for _, want := range []string{"Halley star field", "42/42", "Shell", "Visible stars", "HFOV", "Total: 42 stars in 2 units"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTable_Outcomes(t *testing.T) {
	tests := []struct {
		name string
		edit func(*state.Snapshot)
		want string
	}{
		{"terminated", func(s *state.Snapshot) { s.Terminated = true; s.Placed = 10 }, "Terminated after 10 of 42 stars"},
		{"failed", func(s *state.Snapshot) { s.LastError = errors.New("scene unavailable") }, "Failed: scene unavailable"},
		{"no rows", func(s *state.Snapshot) { s.Rows = nil }, "No units reported"},
		{"abandoned", func(s *state.Snapshot) { s.Failures = 2 }, "Abandoned batches: 2"},
		{"fractal", func(s *state.Snapshot) { s.Method = cluster.MethodFractal }, "Report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot()
			tt.edit(&snap)
			var buf bytes.Buffer
			WriteTable(&buf, snap)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("table missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testSnapshot()); err != nil {
		t.Fatalf("WriteCSV error: %v", err)
	}

	line, _, _ := strings.Cut(buf.String(), "\n")
	if !strings.HasPrefix(line, "Shell\t") || strings.Contains(line, ",") {
		t.Errorf("header should be tab separated: %q", line)
	}

	r := csv.NewReader(&buf)
	r.Comma = '\t'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("output is not valid TSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header + 2 rows", len(records))
	}
	if records[0][0] != "Shell" || records[0][5] != "HFOV [deg]" {
		t.Errorf("header = %v", records[0])
	}

	// Empty unit: no photometry, camera data on the first row only
	if records[1][2] != "" || records[1][5] == "" {
		t.Errorf("first row = %v", records[1])
	}
	if records[2][1] != "42" || records[2][3] != "29.9" || records[2][5] != "" {
		t.Errorf("second row = %v", records[2])
	}
}

func TestWriteEstimate(t *testing.T) {
	var buf bytes.Buffer
	WriteEstimate(&buf, cluster.MethodFractal, cluster.Estimate{Count: 757, Duration: 3 * time.Second})
	want := "Fractal estimate: ~757 visible stars, ~3s\n"
	if buf.String() != want {
		t.Errorf("WriteEstimate = %q, want %q", buf.String(), want)
	}
}

func TestProgressLine(t *testing.T) {
	snap := testSnapshot()
	snap.Placed = 21
	line := ProgressLine(snap, 20)
	if !strings.Contains(line, " 50.0%") {
		t.Errorf("ProgressLine = %q, want 50%%", line)
	}
	if !strings.Contains(line, "21/42") {
		t.Errorf("ProgressLine = %q, want 21/42", line)
	}
}
