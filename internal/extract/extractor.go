package extract

import (
	"fmt"

	"github.com/ppiankov/callreward/internal/model"
)

// BlockPolicy selects which code blocks contribute calls
type BlockPolicy string

const (
	PolicyAll   BlockPolicy = "all"   // Every block, concatenated (scoring)
	PolicyLast  BlockPolicy = "last"  // Only the last block
	PolicyFirst BlockPolicy = "first" // First call of the first block
)

// ParseBlockPolicy validates a policy name; empty means all
func ParseBlockPolicy(s string) (BlockPolicy, error) {
	switch BlockPolicy(s) {
	case "", PolicyAll:
		return PolicyAll, nil
	case PolicyLast:
		return PolicyLast, nil
	case PolicyFirst:
		return PolicyFirst, nil
	}
	return "", fmt.Errorf("unknown block policy %q (want all, last or first)", s)
}

// Extraction is the result of running block extraction and call parsing
type Extraction struct {
	Blocks []string
	Calls  []model.CallRecord
}

// CallExtractor combines the code block extractor and the call parser
type CallExtractor struct {
	blocks *CodeBlockExtractor
	parser *CallParser
	policy BlockPolicy
}

// NewCallExtractor creates an extractor from configuration
func NewCallExtractor(cfg model.ExtractionConfig) (*CallExtractor, error) {
	policy, err := ParseBlockPolicy(cfg.BlockPolicy)
	if err != nil {
		return nil, err
	}

	return &CallExtractor{
		blocks: NewCodeBlockExtractor(cfg.Language),
		parser: NewCallParser(cfg.MemoTTL),
		policy: policy,
	}, nil
}

// Policy returns the configured block policy
func (e *CallExtractor) Policy() BlockPolicy {
	return e.policy
}

// Extract applies the configured policy
func (e *CallExtractor) Extract(text string) Extraction {
	return e.ExtractWithPolicy(text, e.policy)
}

// ExtractWithPolicy extracts blocks from text and parses them under policy
func (e *CallExtractor) ExtractWithPolicy(text string, policy BlockPolicy) Extraction {
	result := Extraction{Blocks: e.blocks.Extract(text)}
	if len(result.Blocks) == 0 {
		return result
	}

	switch policy {
	case PolicyLast:
		result.Calls = append(result.Calls, e.parser.Parse(result.Blocks[len(result.Blocks)-1])...)
	case PolicyFirst:
		if calls := e.parser.Parse(result.Blocks[0]); len(calls) > 0 {
			result.Calls = append(result.Calls, calls[0])
		}
	default:
		for _, block := range result.Blocks {
			result.Calls = append(result.Calls, e.parser.Parse(block)...)
		}
	}

	return result
}

var defaultExtractor = &CallExtractor{
	blocks: defaultBlocks,
	parser: NewCallParser(0),
	policy: PolicyAll,
}

// ExtractCalls returns the calls of every python block in text
func ExtractCalls(text string) []model.CallRecord {
	return defaultExtractor.Extract(text).Calls
}

// ExtractCallsWithPolicy returns the calls selected by policy
func ExtractCallsWithPolicy(text string, policy BlockPolicy) []model.CallRecord {
	return defaultExtractor.ExtractWithPolicy(text, policy).Calls
}
