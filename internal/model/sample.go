package model

// Message is a single chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Dialogue is a source record from a function-calling chat dataset
type Dialogue struct {
	Messages []Message `json:"messages"`
}

// FirstContent returns the content of the first message with the given role
func (d Dialogue) FirstContent(role string) (string, bool) {
	for _, m := range d.Messages {
		if m.Role == role {
			return m.Content, true
		}
	}
	return "", false
}

// RewardStyleRule marks samples scored by a deterministic rule
const RewardStyleRule = "rule"

// RewardModel describes how a sample is rewarded
type RewardModel struct {
	Style       string      `json:"style"`
	GroundTruth GroundTruth `json:"ground_truth"`
}

// ExtraInfo carries provenance for a reward sample
type ExtraInfo struct {
	Split                     string `json:"split"`
	Index                     int    `json:"index"`
	OriginalAssistantResponse string `json:"original_assistant_response,omitempty"`
}

// RewardSample is one persisted training example.
// Produced once per source dialogue and never modified afterwards.
type RewardSample struct {
	DataSource  string      `json:"data_source"`
	Prompt      []Message   `json:"prompt"`
	Ability     string      `json:"ability"`
	RewardModel RewardModel `json:"reward_model"`
	ExtraInfo   ExtraInfo   `json:"extra_info"`
}

// ScoreRequest pairs a candidate response with its ground truth
type ScoreRequest struct {
	ID            string      `json:"id,omitempty"`
	Response      string      `json:"response"`
	GroundTruth   GroundTruth `json:"ground_truth"`
	PartialCredit *float64    `json:"partial_credit,omitempty"` // Overrides the configured partial credit
}

// ScoredSample is one row of batch or rollout output
type ScoredSample struct {
	ID       string       `json:"id,omitempty"`
	Index    int          `json:"index"`
	Split    string       `json:"split,omitempty"`
	Response string       `json:"response,omitempty"`
	Reward   float64      `json:"reward"`
	Result   *ScoreResult `json:"result,omitempty"`
	Error    string       `json:"error,omitempty"`

	// Rollout only
	Model      string `json:"model,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
}
