package model

import "time"

// BatchReport is the outcome of scoring or rolling out many samples
type BatchReport struct {
	RunID     string         `json:"run_id"`
	Kind      string         `json:"kind"`             // batch | rollout
	Source    string         `json:"source,omitempty"` // Input file or URL
	StartedAt time.Time      `json:"started_at"`
	Duration  string         `json:"duration"`
	Settings  ReportSettings `json:"settings"`

	Summary BatchSummary   `json:"summary"`
	Signals []Signal       `json:"signals,omitempty"` // Diagnostics about the batch, never affect rewards
	Rows    []ScoredSample `json:"rows"`
}

// ReportSettings records the parameters rewards were computed with
type ReportSettings struct {
	PartialCredit    float64 `json:"partial_credit"`
	NumericTolerance float64 `json:"numeric_tolerance"`
	Provider         string  `json:"provider,omitempty"`
	Model            string  `json:"model,omitempty"`
}

// BatchSummary aggregates rewards over the rows of a batch
type BatchSummary struct {
	Rows           int     `json:"rows"`
	Scored         int     `json:"scored"`
	Errors         int     `json:"errors"`
	MeanReward     float64 `json:"mean_reward"`
	MinReward      float64 `json:"min_reward"`
	MaxReward      float64 `json:"max_reward"`
	Perfect        int     `json:"perfect"` // Rows with reward 1.0
	Zero           int     `json:"zero"`    // Rows with reward 0.0
	EmptyResponses int     `json:"empty_responses"`
	ExpectedCalls  int     `json:"expected_calls"`
	ExactMatches   int     `json:"exact_matches"`
	PartialMatches int     `json:"partial_matches"`
	Histogram      [10]int `json:"histogram"` // Reward deciles; 1.0 falls in the last bucket
	TokensUsed     int     `json:"tokens_used,omitempty"`
	CachedRows     int     `json:"cached_rows,omitempty"`
}

// Signal is a diagnostic observation with the data behind it
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalRowErrors      SignalType = "row_errors"      // Rows that could not be scored
	SignalEmptyResponses SignalType = "empty_responses" // Responses without any extractable call
	SignalPartialHeavy   SignalType = "partial_heavy"   // Matches mostly earned partial credit
	SignalLowReward      SignalType = "low_reward"      // Mean reward near zero
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
