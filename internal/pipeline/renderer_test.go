package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/callreward/internal/dataset"
	"github.com/ppiankov/callreward/internal/model"
)

func sampleReport() *model.BatchReport {
	rows := []model.ScoredSample{
		{ID: "a", Index: 0, Reward: 1, Result: &model.ScoreResult{Expected: 1, Generated: 1, Exact: 1}},
		{ID: "b|c", Index: 1, Reward: 0.5, Result: &model.ScoreResult{Expected: 1, Generated: 1, Partial: 1}},
		{ID: "d", Index: 2, Error: "decode row: bad\njson"},
	}
	summary := Summarize(rows)
	return &model.BatchReport{
		RunID:     "run-1",
		Kind:      "batch",
		Source:    "scored.jsonl",
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:  "12ms",
		Settings:  model.ReportSettings{PartialCredit: 0.5, NumericTolerance: 1e-5},
		Summary:   summary,
		Signals:   Signals(summary),
		Rows:      rows,
	}
}

func TestRenderer_Markdown(t *testing.T) {
	md := NewRenderer(true, "v0.1.0").Markdown(sampleReport(), false)

	for _, want := range []string{
		"# callreward batch report",
		"- Run: `run-1`",
		"| Mean reward | 0.7500 |",
		"| [0.9, 1.0] | 1 |",
		"**row_errors** (warning)",
		"## Lowest rewards",
		`b\|c`,
		"decode row: bad json",
		"Generated by callreward v0.1.0",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q:\n%s", want, md)
		}
	}

	// Non-verbose output lists only imperfect rows
	if strings.Contains(md, "| 0 | a |") {
		t.Error("expected perfect row to be omitted from non-verbose listing")
	}
	if !strings.Contains(NewRenderer(false, "").Markdown(sampleReport(), true), "| 0 | a |") {
		t.Error("expected verbose listing to include every row")
	}
}

func TestRenderer_Files(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(false, "test")
	report := sampleReport()

	jsonPath := filepath.Join(dir, "out", "report.json")
	if err := r.RenderJSON(report, jsonPath); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.BatchReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report JSON does not decode: %v", err)
	}
	if decoded.RunID != "run-1" || len(decoded.Rows) != 3 {
		t.Errorf("unexpected decoded report %+v", decoded)
	}

	mdPath := filepath.Join(dir, "report.md")
	if err := r.RenderMarkdown(report, mdPath, false); err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	if _, err := os.Stat(mdPath); err != nil {
		t.Error(err)
	}
}

func TestRenderer_RowsAndSummary(t *testing.T) {
	r := NewRenderer(false, "")
	report := sampleReport()

	var rows bytes.Buffer
	if err := r.RenderRows(report, &rows); err != nil {
		t.Fatal(err)
	}
	n := 0
	if err := dataset.ReadJSONL(&rows, func(int, []byte) error { n++; return nil }); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 JSONL rows, got %d", n)
	}

	var summary bytes.Buffer
	r.RenderSummary(&summary, report)
	if !strings.Contains(summary.String(), "Mean reward:  0.7500") || !strings.Contains(summary.String(), "! row_errors") {
		t.Errorf("unexpected summary:\n%s", summary.String())
	}
}
