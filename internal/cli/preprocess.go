package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/callreward/internal/dataset"
	"github.com/ppiankov/callreward/internal/extract"
	"github.com/ppiankov/callreward/internal/log"
	"github.com/spf13/cobra"
)

var (
	inputDir          string
	preprocessOutDir  string
	preprocessPolicy  string
	preprocessSplits  []string
	preprocessTimeout time.Duration
)

// preprocessCmd represents the preprocess command
var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Convert chat dialogues into reward samples",
	Long: `Preprocess reads <split>.jsonl dialogue files from a directory or an
HTTP(S) base URL and writes one reward sample per usable dialogue to
<output-dir>/<split>.jsonl.

The prompt is the first user turn. Expected calls are parsed from the
first assistant turn; dialogues without calls are skipped.

Example:
  callreward preprocess --input-dir ./data/raw --output-dir ./data/fc
  callreward preprocess --input-dir https://example.com/datasets/fc --output-dir ./data/fc
  callreward preprocess --input-dir ./raw --output-dir ./out --policy first --splits train,test`,
	Args: cobra.NoArgs,
	RunE: runPreprocess,
}

func init() {
	rootCmd.AddCommand(preprocessCmd)

	preprocessCmd.Flags().StringVar(&inputDir, "input-dir", "", "directory or base URL holding <split>.jsonl dialogues")
	preprocessCmd.Flags().StringVar(&preprocessOutDir, "output-dir", "", "directory for reward samples")
	preprocessCmd.Flags().StringVar(&preprocessPolicy, "policy", "", "ground truth policy: all or first (default from config)")
	preprocessCmd.Flags().StringSliceVar(&preprocessSplits, "splits", nil, "splits to process (default from config)")
	preprocessCmd.Flags().DurationVar(&preprocessTimeout, "timeout", 30*time.Minute, "overall preprocessing timeout")
	_ = preprocessCmd.MarkFlagRequired("input-dir")
	_ = preprocessCmd.MarkFlagRequired("output-dir")
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if preprocessPolicy != "" {
		cfg.Dataset.GroundTruthPolicy = preprocessPolicy
	}
	if len(preprocessSplits) > 0 {
		cfg.Dataset.Splits = preprocessSplits
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, preprocessTimeout)
	defer cancel()

	extractor, err := extract.NewCallExtractor(cfg.Extraction)
	if err != nil {
		return err
	}
	pre, err := dataset.NewPreprocessor(cfg.Dataset, extractor, log.Default)
	if err != nil {
		return err
	}
	src := dataset.NewSource(inputDir, dataset.NewFetcher(cfg.HTTP))

	fmt.Fprintf(os.Stderr, "⚙️  Preprocessing %v from %s (policy: %s)\n",
		cfg.Dataset.Splits, inputDir, cfg.Dataset.GroundTruthPolicy)

	stats, err := pre.Run(ctx, src, preprocessOutDir, cfg.Dataset.Splits)
	for _, s := range stats {
		if s.Missing {
			fmt.Fprintf(os.Stderr, "-  %-12s not found, skipped\n", s.Split)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %-12s read %d, wrote %d, skipped %d → %s\n",
			s.Split, s.Read, s.Written, s.Skipped, s.Output)
	}
	if err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	return nil
}
