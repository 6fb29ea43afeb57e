package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/callreward/internal/metrics"
	"github.com/ppiankov/callreward/internal/model"
	"github.com/ppiankov/callreward/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outJSON      string
	outMD        string
	outRows      string
	outMetrics   string
	noFooter     bool
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <scored.jsonl>",
	Short: "Score a file of responses in parallel",
	Long: `Batch scores every line of a JSONL file concurrently. Each line holds a
response and either a reward sample or an explicit ground truth:

  {"sample": {...reward sample...}, "response": "..."}
  {"id": "q1", "ground_truth": {"expected_calls": [...]}, "response": "..."}

Lines that cannot be decoded are reported in place and do not stop the batch.

Example:
  callreward batch scored.jsonl
  callreward batch scored.jsonl --concurrency 16 --json report.json --md report.md
  callreward batch scored.jsonl --rows rewards.jsonl --metrics metrics.prom`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outJSON, "json", "", "output JSON report path")
	batchCmd.Flags().StringVar(&outMD, "md", "", "output Markdown report path")
	batchCmd.Flags().StringVar(&outRows, "rows", "", "output per-row rewards as JSONL (- for stdout)")
	batchCmd.Flags().StringVar(&outMetrics, "metrics", "", "write a Prometheus text snapshot to this path")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	in, err := openInput(file)
	if err != nil {
		return err
	}
	rows, err := pipeline.ReadBatchRows(in)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("read batch: %w", err)
	}

	fmt.Fprintf(os.Stderr, "⚙️  Scoring %d rows from %s with %d workers...\n", len(rows), file, cfg.Concurrency.Workers)

	m := metrics.New()
	p, err := pipeline.NewPipeline(cfg, pipeline.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	report := p.ScoreBatch(ctx, rows, cfg.Concurrency.Workers)
	report.Source = file

	if err := writeReport(cfg, report); err != nil {
		return err
	}
	if outMetrics != "" {
		if err := writeMetrics(m, outMetrics); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// writeReport renders report to the requested outputs and prints a summary
func writeReport(cfg *model.Config, report *model.BatchReport) error {
	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter, version)

	if outJSON != "" {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("write JSON report: %w", err)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD, cfg.Output.Verbose); err != nil {
			return fmt.Errorf("write Markdown report: %w", err)
		}
	}
	if outRows != "" {
		if err := writeRows(renderer, report, outRows); err != nil {
			return err
		}
	}

	renderer.RenderSummary(os.Stderr, report)
	return nil
}

func writeRows(renderer *pipeline.Renderer, report *model.BatchReport, path string) (err error) {
	if path == "-" {
		return renderer.RenderRows(report, os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	if err := renderer.RenderRows(report, f); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

func writeMetrics(m *metrics.Metrics, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	if err := m.WriteText(f); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
