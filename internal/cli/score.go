package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/callreward/internal/model"
	"github.com/ppiankov/callreward/internal/pipeline"
	"github.com/ppiankov/callreward/internal/score"
	"github.com/spf13/cobra"
)

var (
	responsePath  string
	groundTruth   string
	partialCredit float64
	scoreJSON     bool
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one response against a ground truth",
	Long: `Score extracts Python calls from every fenced code block of a response
and matches them against the expected calls of a ground truth object.

The ground truth is given inline as JSON or read from a file with @path.

Example:
  callreward score --response answer.md --ground-truth @truth.json
  echo "$ANSWER" | callreward score --response - \
      --ground-truth '{"expected_calls":[{"function":"f","arguments":{"x":1}}]}'
  callreward score --response answer.md --ground-truth @truth.json --partial-credit 0.25 --json`,
	Args: cobra.NoArgs,
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&responsePath, "response", "-", "response file (- for stdin)")
	scoreCmd.Flags().StringVar(&groundTruth, "ground-truth", "", "ground truth JSON, or @file")
	scoreCmd.Flags().Float64Var(&partialCredit, "partial-credit", 0.5, "credit for a tolerant match, in [0,1]")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print the full score breakdown as JSON")
	_ = scoreCmd.MarkFlagRequired("ground-truth")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("partial-credit") {
		cfg.Scoring.PartialCredit = partialCredit
	}

	response, err := readInput(responsePath)
	if err != nil {
		return err
	}
	gt, err := loadGroundTruth(groundTruth)
	if err != nil {
		return err
	}

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	sample, err := p.ScoreRequest(context.Background(), model.ScoreRequest{
		Response:    string(response),
		GroundTruth: gt,
	})
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	if !scoreJSON {
		fmt.Printf("%g\n", sample.Reward)
		if verbose && sample.Result != nil {
			printMatches(sample.Result)
		}
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sample)
}

// loadGroundTruth decodes inline JSON or an @file reference
func loadGroundTruth(arg string) (model.GroundTruth, error) {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = readInput(path); err != nil {
			return model.GroundTruth{}, err
		}
	}
	return score.DecodeGroundTruth(data)
}

func printMatches(res *model.ScoreResult) {
	fmt.Fprintf(os.Stderr, "blocks: %d, generated: %d, expected: %d (exact %d, partial %d)\n",
		res.Blocks, res.Generated, res.Expected, res.Exact, res.Partial)
	for _, m := range res.Matches {
		fmt.Fprintf(os.Stderr, "  #%d %-24s %-9s credit=%g generated=%d\n",
			m.ExpectedIndex, m.Function, m.Outcome, m.Credit, m.GeneratedIndex)
	}
}
