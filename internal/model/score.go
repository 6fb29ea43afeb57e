package model

// MatchOutcome classifies how an expected call was satisfied
type MatchOutcome string

const (
	OutcomeExact     MatchOutcome = "exact"     // Same function, identical arguments
	OutcomePartial   MatchOutcome = "partial"   // Same function, arguments within tolerance
	OutcomeUnmatched MatchOutcome = "unmatched" // No unconsumed generated call qualified
)

// CallMatch records the result of matching one expected call
type CallMatch struct {
	ExpectedIndex  int          `json:"expected_index"`
	GeneratedIndex int          `json:"generated_index"` // -1 when unmatched
	Function       string       `json:"function"`
	Outcome        MatchOutcome `json:"outcome"`
	Credit         float64      `json:"credit"`
}

// ScoreResult is the transparent breakdown behind a reward
type ScoreResult struct {
	Reward    float64     `json:"reward"`    // min(total credit / expected, 1)
	Expected  int         `json:"expected"`  // Number of expected calls
	Generated int         `json:"generated"` // Number of calls extracted from the response
	Blocks    int         `json:"blocks"`    // Number of fenced code blocks found
	Exact     int         `json:"exact"`
	Partial   int         `json:"partial"`
	Matches   []CallMatch `json:"matches,omitempty"`
	Formula   string      `json:"formula"`
}

// RewardFormula documents how Reward is derived
const RewardFormula = "min(sum(credit) / expected_calls, 1.0)"
