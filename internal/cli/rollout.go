package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/callreward/internal/cache"
	"github.com/ppiankov/callreward/internal/dataset"
	"github.com/ppiankov/callreward/internal/llm"
	"github.com/ppiankov/callreward/internal/log"
	"github.com/ppiankov/callreward/internal/metrics"
	"github.com/ppiankov/callreward/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	llmProvider    string
	llmModel       string
	noCache        bool
	rolloutLimit   int
	rolloutTimeout time.Duration
)

// rolloutCmd represents the rollout command
var rolloutCmd = &cobra.Command{
	Use:   "rollout <samples.jsonl>",
	Short: "Generate responses with an LLM and score them",
	Long: `Rollout sends the prompt of every reward sample to an LLM provider and
scores the answer against the sample ground truth. Completions are cached
so repeated runs over the same samples do not pay for the same request twice.

Providers: openai (OPENAI_API_KEY), anthropic (ANTHROPIC_API_KEY),
ollama (OLLAMA_BASE_URL, default http://localhost:11434).

Example:
  callreward rollout data/fc/test.jsonl --llm-provider openai --llm-model gpt-4o-mini
  callreward rollout data/fc/test.jsonl --llm-provider ollama --llm-model llama3.1 \
      --concurrency 2 --rows rollout.jsonl --md rollout.md`,
	Args: cobra.ExactArgs(1),
	RunE: runRollout,
}

func init() {
	rootCmd.AddCommand(rolloutCmd)

	rolloutCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	rolloutCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	rolloutCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent completions (default from config)")
	rolloutCmd.Flags().IntVar(&rolloutLimit, "limit", 0, "only roll out the first N samples")
	rolloutCmd.Flags().StringVar(&outJSON, "json", "", "output JSON report path")
	rolloutCmd.Flags().StringVar(&outMD, "md", "", "output Markdown report path")
	rolloutCmd.Flags().StringVar(&outRows, "out", "", "output scored rows as JSONL (- for stdout)")
	rolloutCmd.Flags().StringVar(&outMetrics, "metrics", "", "write a Prometheus text snapshot to this path")
	rolloutCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the completion cache")
	rolloutCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	rolloutCmd.Flags().DurationVar(&rolloutTimeout, "timeout", time.Hour, "total timeout for the rollout")
}

func runRollout(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if concurrency > 0 {
		cfg.Concurrency.RolloutWorkers = concurrency
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}

	llmCfg := llm.ConfigFromModel(cfg.LLM, cfg.HTTP)
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	if provider == nil {
		return errors.New("no LLM provider configured (use --llm-provider or llm.provider)")
	}
	provider = llm.NewCachedProvider(provider, cache.New(cfg.Cache), llmCfg, cfg.Cache.DiskTTL, log.Default)

	in, err := openInput(file)
	if err != nil {
		return err
	}
	samples, err := dataset.ReadSamples(in)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("read samples: %w", err)
	}
	if rolloutLimit > 0 && rolloutLimit < len(samples) {
		samples = samples[:rolloutLimit]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, rolloutTimeout)
	defer cancel()

	if !provider.IsAvailable(ctx) {
		return fmt.Errorf("LLM provider %s is not available", provider.Name())
	}

	m := metrics.New()
	p, err := pipeline.NewPipeline(cfg, pipeline.WithProvider(provider), pipeline.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	fmt.Fprintf(os.Stderr, "⚙️  Rolling out %d samples with %s (%d workers)...\n",
		len(samples), provider.Name(), cfg.Concurrency.RolloutWorkers)

	report, runErr := p.Rollout(ctx, samples, cfg.Concurrency.RolloutWorkers)
	if report == nil {
		return fmt.Errorf("rollout: %w", runErr)
	}
	report.Source = file

	if err := writeReport(cfg, report); err != nil {
		return err
	}
	if outMetrics != "" {
		if err := writeMetrics(m, outMetrics); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("rollout interrupted: %w", runErr)
	}
	return nil
}
