package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ppiankov/callreward/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	extractPolicy string
	extractJSON   bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Show the code blocks and calls found in a response",
	Long: `Extract prints every fenced code block of a response and the function
calls parsed from them, in the order the scorer sees them.

Example:
  callreward extract --response answer.md
  callreward extract --response - --policy last --json < answer.md`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&responsePath, "response", "-", "response file (- for stdin)")
	extractCmd.Flags().StringVar(&extractPolicy, "policy", "", "block policy: all, last or first (default from config)")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print blocks and calls as JSON")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if extractPolicy != "" {
		cfg.Extraction.BlockPolicy = extractPolicy
	}

	response, err := readInput(responsePath)
	if err != nil {
		return err
	}

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	ex := p.Extract(string(response))

	if extractJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"blocks": ex.Blocks,
			"calls":  ex.Calls,
		})
	}

	fmt.Printf("Blocks (%d):\n", len(ex.Blocks))
	for i, block := range ex.Blocks {
		fmt.Printf("--- block %d ---\n%s\n", i, block)
	}
	fmt.Printf("\nCalls (%d):\n", len(ex.Calls))
	for i, call := range ex.Calls {
		encoded, err := json.Marshal(call.Arguments)
		if err != nil {
			encoded = []byte(fmt.Sprintf("%v", call.Arguments))
		}
		fmt.Printf("  %d. %s %s\n", i+1, call.Function, encoded)
	}
	return nil
}
