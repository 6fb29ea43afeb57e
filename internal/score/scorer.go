package score

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/ppiankov/callreward/internal/extract"
	"github.com/ppiankov/callreward/internal/model"
)

const (
	DefaultPartialCredit = 0.5
	DefaultTolerance     = 1e-5
)

// Scorer computes rewards for generated responses against ground truth
type Scorer struct {
	extractor     *extract.CallExtractor
	partialCredit float64
	tolerance     float64
}

// NewScorer creates a scorer. A nil extractor uses python blocks without memoization.
func NewScorer(cfg model.ScoringConfig, extractor *extract.CallExtractor) *Scorer {
	if extractor == nil {
		extractor, _ = extract.NewCallExtractor(model.ExtractionConfig{Language: extract.DefaultLanguage})
	}

	tolerance := cfg.NumericTolerance
	if tolerance <= 0 || math.IsNaN(tolerance) {
		tolerance = DefaultTolerance
	}

	return &Scorer{
		extractor:     extractor,
		partialCredit: clampCredit(cfg.PartialCredit),
		tolerance:     tolerance,
	}
}

// WithPartialCredit returns a copy of the scorer using a different partial credit
func (s *Scorer) WithPartialCredit(credit float64) *Scorer {
	clone := *s
	clone.partialCredit = clampCredit(credit)
	return &clone
}

// PartialCredit returns the credit awarded for a tolerant match
func (s *Scorer) PartialCredit() float64 {
	return s.partialCredit
}

// Tolerance returns the absolute numeric tolerance of ValidateArguments
func (s *Scorer) Tolerance() float64 {
	return s.tolerance
}

func clampCredit(credit float64) float64 {
	switch {
	case math.IsNaN(credit):
		return DefaultPartialCredit
	case credit < 0:
		return 0
	case credit > 1:
		return 1
	}
	return credit
}

// Score returns only the reward of Evaluate
func (s *Scorer) Score(text string, gt model.GroundTruth) float64 {
	return s.Evaluate(text, gt).Reward
}

// Evaluate extracts calls from every fenced block of text and matches them
// against the expected calls.
func (s *Scorer) Evaluate(text string, gt model.GroundTruth) model.ScoreResult {
	if len(gt.ExpectedCalls) == 0 {
		return model.ScoreResult{Formula: model.RewardFormula}
	}

	extraction := s.extractor.ExtractWithPolicy(text, extract.PolicyAll)
	result := s.EvaluateCalls(extraction.Calls, gt.ExpectedCalls)
	result.Blocks = len(extraction.Blocks)
	return result
}

// EvaluateCalls matches generated calls against expected calls.
//
// Matching is greedy: expected calls are taken in order, and each consumes
// the first unconsumed generated call with the same function name whose
// arguments are either identical (credit 1) or pass ValidateArguments
// (partial credit). Candidates satisfying neither are skipped, not consumed.
func (s *Scorer) EvaluateCalls(generated []model.CallRecord, expected []model.ExpectedCall) model.ScoreResult {
	result := model.ScoreResult{
		Expected:  len(expected),
		Generated: len(generated),
		Formula:   model.RewardFormula,
	}
	if len(expected) == 0 || len(generated) == 0 {
		return result
	}

	consumed := make([]bool, len(generated))
	total := 0.0

	for i, exp := range expected {
		match := model.CallMatch{
			ExpectedIndex:  i,
			GeneratedIndex: -1,
			Function:       exp.Function,
			Outcome:        model.OutcomeUnmatched,
		}

		for j, gen := range generated {
			if consumed[j] || exp.Function == "" || gen.Function != exp.Function {
				continue
			}

			switch {
			case Equal(map[string]any(gen.Arguments), map[string]any(exp.Arguments)):
				match.Outcome, match.Credit = model.OutcomeExact, 1.0
				result.Exact++
			case validateArguments(gen.Arguments, exp.Arguments, s.tolerance):
				match.Outcome, match.Credit = model.OutcomePartial, s.partialCredit
				result.Partial++
			default:
				continue
			}

			match.GeneratedIndex = j
			consumed[j] = true
			break
		}

		total += match.Credit
		result.Matches = append(result.Matches, match)
	}

	result.Reward = math.Min(total/float64(len(expected)), 1.0)
	return result
}

// ValidateArguments reports whether generated arguments are an acceptable
// approximation of the expected ones: identical key sets, matching value
// categories, identical strings and numbers within tolerance. Booleans,
// nulls, bytes and containers pass on category alone.
func (s *Scorer) ValidateArguments(gen, exp model.Arguments) bool {
	return validateArguments(gen, exp, s.tolerance)
}

// ValidateArguments applies the default numeric tolerance
func ValidateArguments(gen, exp model.Arguments) bool {
	return validateArguments(gen, exp, DefaultTolerance)
}

func validateArguments(gen, exp model.Arguments, tolerance float64) bool {
	if len(gen) != len(exp) {
		return false
	}
	for key := range exp {
		if _, ok := gen[key]; !ok {
			return false
		}
	}

	for key, expected := range exp {
		expected = model.NormalizeValue(expected)
		actual := model.NormalizeValue(gen[key])

		kind := KindOf(expected)
		if KindOf(actual) != kind {
			return false
		}

		switch kind {
		case KindString:
			if actual.(string) != expected.(string) {
				return false
			}
		case KindInt, KindFloat:
			if numericDistance(actual, expected) > tolerance {
				return false
			}
		}
	}

	return true
}

var defaultScorer = NewScorer(model.ScoringConfig{PartialCredit: DefaultPartialCredit, NumericTolerance: DefaultTolerance}, nil)

// ComputeScore scores text against ground truth with the given partial credit
func ComputeScore(text string, gt model.GroundTruth, partialCredit float64) float64 {
	return defaultScorer.WithPartialCredit(partialCredit).Score(text, gt)
}

// DecodeGroundTruth decodes a JSON ground truth object. Integer and float
// literals stay distinct. Entries of expected_calls that are not call
// objects are kept as unmatchable calls so they still count toward the
// denominator; a missing expected_calls list yields no expected calls.
func DecodeGroundTruth(data []byte) (model.GroundTruth, error) {
	var gt model.GroundTruth
	if err := json.Unmarshal(data, &gt); err != nil {
		return model.GroundTruth{}, fmt.Errorf("decode ground truth: %w", err)
	}
	return gt, nil
}

// GroundTruthFromMap converts a loosely typed ground truth mapping, such as
// one decoded from YAML or a generic JSON document.
func GroundTruthFromMap(m map[string]any) model.GroundTruth {
	var items []any
	switch list := m["expected_calls"].(type) {
	case []any:
		items = list
	case []map[string]any:
		for _, item := range list {
			items = append(items, item)
		}
	}

	gt := model.GroundTruth{ExpectedCalls: make([]model.ExpectedCall, 0, len(items))}
	for _, item := range items {
		gt.ExpectedCalls = append(gt.ExpectedCalls, callFromValue(item))
	}
	return gt
}

func callFromValue(v any) model.ExpectedCall {
	var entry map[string]any
	switch e := v.(type) {
	case map[string]any:
		entry = e
	case model.Arguments:
		entry = e
	case map[any]any:
		if normalized, ok := model.NormalizeValue(e).(map[string]any); ok {
			entry = normalized
		}
	}
	if entry == nil {
		return model.ExpectedCall{}
	}

	name, _ := entry["function"].(string)
	call := model.ExpectedCall{Function: name, Arguments: model.Arguments{}}

	switch args := model.NormalizeValue(entry["arguments"]).(type) {
	case map[string]any:
		call.Arguments = model.Arguments(args)
	case nil:
	default:
		call.Function = ""
	}
	return call
}
