package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/callreward/internal/dataset"
	"github.com/ppiankov/callreward/internal/model"
)

// Renderer writes batch reports as JSON, JSONL rows, Markdown and a
// terminal summary.
type Renderer struct {
	includeFooter bool
	version       string
	maxRows       int // Rows listed in Markdown when not verbose
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool, version string) *Renderer {
	return &Renderer{includeFooter: includeFooter, version: version, maxRows: 20}
}

// RenderJSON writes the full report as indented JSON
func (r *Renderer) RenderJSON(report *model.BatchReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderRows writes one scored row per line
func (r *Renderer) RenderRows(report *model.BatchReport, w io.Writer) error {
	out := dataset.NewJSONLWriter(w)
	for _, row := range report.Rows {
		if err := out.Write(row); err != nil {
			return err
		}
	}
	return out.Flush()
}

// RenderMarkdown writes a human-readable report
func (r *Renderer) RenderMarkdown(report *model.BatchReport, path string, verbose bool) error {
	return writeFile(path, []byte(r.Markdown(report, verbose)))
}

// Markdown returns the Markdown form of the report
func (r *Renderer) Markdown(report *model.BatchReport, verbose bool) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, "# callreward %s report\n\n", report.Kind)
	fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	if report.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", report.Source)
	}
	fmt.Fprintf(&b, "- Started: %s (took %s)\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"), report.Duration)
	fmt.Fprintf(&b, "- Partial credit: %g, numeric tolerance: %g\n", report.Settings.PartialCredit, report.Settings.NumericTolerance)
	if report.Settings.Provider != "" {
		fmt.Fprintf(&b, "- Provider: %s %s\n", report.Settings.Provider, report.Settings.Model)
	}

	b.WriteString("\n## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Rows | %d |\n", s.Rows)
	fmt.Fprintf(&b, "| Scored | %d |\n", s.Scored)
	fmt.Fprintf(&b, "| Errors | %d |\n", s.Errors)
	fmt.Fprintf(&b, "| Mean reward | %.4f |\n", s.MeanReward)
	fmt.Fprintf(&b, "| Min / max reward | %.4f / %.4f |\n", s.MinReward, s.MaxReward)
	fmt.Fprintf(&b, "| Perfect (1.0) | %d |\n", s.Perfect)
	fmt.Fprintf(&b, "| Zero (0.0) | %d |\n", s.Zero)
	fmt.Fprintf(&b, "| Expected calls | %d |\n", s.ExpectedCalls)
	fmt.Fprintf(&b, "| Exact / partial matches | %d / %d |\n", s.ExactMatches, s.PartialMatches)
	fmt.Fprintf(&b, "| Empty responses | %d |\n", s.EmptyResponses)
	if s.TokensUsed > 0 || s.CachedRows > 0 {
		fmt.Fprintf(&b, "| Tokens used | %d |\n", s.TokensUsed)
		fmt.Fprintf(&b, "| Cached completions | %d |\n", s.CachedRows)
	}

	b.WriteString("\n## Reward distribution\n\n")
	b.WriteString("| Range | Rows |\n|---|---|\n")
	for i, n := range s.Histogram {
		hi := ")"
		if i == len(s.Histogram)-1 {
			hi = "]"
		}
		fmt.Fprintf(&b, "| [%.1f, %.1f%s | %d |\n", float64(i)/10, float64(i+1)/10, hi, n)
	}

	if len(report.Signals) > 0 {
		b.WriteString("\n## Signals\n\n")
		for _, sig := range report.Signals {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", sig.Type, sig.Severity, sig.Description)
		}
	}

	rows := r.listedRows(report.Rows, verbose)
	if len(rows) > 0 {
		if verbose {
			b.WriteString("\n## Rows\n\n")
		} else {
			b.WriteString("\n## Lowest rewards\n\n")
		}
		b.WriteString("| # | ID | Reward | Exact | Partial | Expected | Note |\n|---|---|---|---|---|---|---|\n")
		for _, row := range rows {
			exact, partial, expected := "-", "-", "-"
			if row.Result != nil {
				exact = fmt.Sprint(row.Result.Exact)
				partial = fmt.Sprint(row.Result.Partial)
				expected = fmt.Sprint(row.Result.Expected)
			}
			note := ""
			if row.Error != "" {
				note = escapeCell(row.Error)
			}
			fmt.Fprintf(&b, "| %d | %s | %.4f | %s | %s | %s | %s |\n",
				row.Index, escapeCell(row.ID), row.Reward, exact, partial, expected, note)
		}
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "\n---\n_Generated by callreward %s. Rewards are rule-based: %s._\n", r.version, model.RewardFormula)
	}

	return b.String()
}

// listedRows returns all rows when verbose, otherwise errors and the
// lowest-reward rows up to maxRows.
func (r *Renderer) listedRows(rows []model.ScoredSample, verbose bool) []model.ScoredSample {
	if verbose {
		return rows
	}

	sorted := make([]model.ScoredSample, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		ei, ej := sorted[i].Error != "", sorted[j].Error != ""
		if ei != ej {
			return ei
		}
		return sorted[i].Reward < sorted[j].Reward
	})

	var out []model.ScoredSample
	for _, row := range sorted {
		if len(out) == r.maxRows || (row.Error == "" && row.Reward >= 1) {
			break
		}
		out = append(out, row)
	}
	return out
}

// RenderSummary prints a short summary for the terminal
func (r *Renderer) RenderSummary(w io.Writer, report *model.BatchReport) {
	s := report.Summary

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Run:          %s (%s)\n", report.RunID, report.Kind)
	fmt.Fprintf(w, "  Rows:         %d scored, %d errors\n", s.Scored, s.Errors)
	fmt.Fprintf(w, "  Mean reward:  %.4f\n", s.MeanReward)
	fmt.Fprintf(w, "  Perfect:      %d\n", s.Perfect)
	fmt.Fprintf(w, "  Zero:         %d\n", s.Zero)
	fmt.Fprintf(w, "  Matches:      %d exact, %d partial of %d expected\n", s.ExactMatches, s.PartialMatches, s.ExpectedCalls)
	if s.TokensUsed > 0 || s.CachedRows > 0 {
		fmt.Fprintf(w, "  Tokens:       %d (%d cached completions)\n", s.TokensUsed, s.CachedRows)
	}
	fmt.Fprintf(w, "  Duration:     %s\n", report.Duration)

	for _, sig := range report.Signals {
		fmt.Fprintf(w, "  ! %s: %s\n", sig.Type, sig.Description)
	}
	fmt.Fprintf(w, "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
