package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/callreward/internal/model"
)

func TestSummarize(t *testing.T) {
	rows := []model.ScoredSample{
		{Reward: 1, Result: &model.ScoreResult{Reward: 1, Expected: 1, Generated: 1, Exact: 1}},
		{Reward: 0.5, Result: &model.ScoreResult{Reward: 0.5, Expected: 2, Generated: 2, Exact: 1}},
		{Reward: 0.25, Result: &model.ScoreResult{Reward: 0.25, Expected: 2, Generated: 1, Partial: 1}},
		{Reward: 0, Result: &model.ScoreResult{Expected: 1}},
		{Error: "boom"},
	}

	want := model.BatchSummary{
		Rows:           5,
		Scored:         4,
		Errors:         1,
		MeanReward:     0.4375,
		MinReward:      0,
		MaxReward:      1,
		Perfect:        1,
		Zero:           1,
		EmptyResponses: 1,
		ExpectedCalls:  6,
		ExactMatches:   2,
		PartialMatches: 1,
		Histogram:      [10]int{1, 0, 1, 0, 0, 1, 0, 0, 0, 1},
	}
	if diff := cmp.Diff(want, Summarize(rows)); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if diff := cmp.Diff(model.BatchSummary{}, Summarize(nil)); diff != "" {
		t.Errorf("expected zero summary (-want +got):\n%s", diff)
	}
}

func TestSignals(t *testing.T) {
	tests := []struct {
		name    string
		summary model.BatchSummary
		want    []model.SignalType
	}{
		{"healthy", model.BatchSummary{Rows: 10, Scored: 10, MeanReward: 0.9, ExactMatches: 9}, nil},
		{"errors", model.BatchSummary{Rows: 4, Scored: 3, Errors: 1, MeanReward: 0.9}, []model.SignalType{model.SignalRowErrors}},
		{"empty and low", model.BatchSummary{Rows: 5, Scored: 5, EmptyResponses: 4, MeanReward: 0.1}, []model.SignalType{model.SignalEmptyResponses, model.SignalLowReward}},
		{"partial heavy", model.BatchSummary{Rows: 2, Scored: 2, MeanReward: 0.5, ExactMatches: 1, PartialMatches: 3}, []model.SignalType{model.SignalPartialHeavy}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []model.SignalType
			for _, s := range Signals(tt.summary) {
				got = append(got, s.Type)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("signals mismatch (-want +got):\n%s", diff)
			}
		})
	}

	sig := Signals(model.BatchSummary{Rows: 3, Errors: 2, Scored: 1, MeanReward: 1})
	if sig[0].Severity != model.SeverityCritical {
		t.Errorf("expected critical severity when most rows fail, got %s", sig[0].Severity)
	}
}
