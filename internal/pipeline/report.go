package pipeline

import (
	"math"

	"github.com/ppiankov/callreward/internal/model"
)

// Summarize aggregates rewards over rows. Rows with an error are counted but
// contribute no reward.
func Summarize(rows []model.ScoredSample) model.BatchSummary {
	s := model.BatchSummary{Rows: len(rows)}
	total := 0.0

	for _, row := range rows {
		if row.Error != "" {
			s.Errors++
			continue
		}
		s.Scored++
		total += row.Reward

		if s.Scored == 1 || row.Reward < s.MinReward {
			s.MinReward = row.Reward
		}
		if row.Reward > s.MaxReward {
			s.MaxReward = row.Reward
		}
		switch row.Reward {
		case 1:
			s.Perfect++
		case 0:
			s.Zero++
		}
		s.Histogram[bucket(row.Reward)]++

		s.TokensUsed += row.TokensUsed
		if row.Cached {
			s.CachedRows++
		}

		if row.Result != nil {
			s.ExpectedCalls += row.Result.Expected
			s.ExactMatches += row.Result.Exact
			s.PartialMatches += row.Result.Partial
			if row.Result.Generated == 0 {
				s.EmptyResponses++
			}
		}
	}

	if s.Scored > 0 {
		s.MeanReward = total / float64(s.Scored)
	}
	return s
}

func bucket(reward float64) int {
	b := int(math.Floor(reward * 10))
	switch {
	case b < 0:
		return 0
	case b > 9:
		return 9
	}
	return b
}

// Signals derives diagnostics from a summary
func Signals(s model.BatchSummary) []model.Signal {
	var signals []model.Signal

	if s.Errors > 0 {
		severity := model.SeverityWarning
		if s.Errors*2 > s.Rows {
			severity = model.SeverityCritical
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalRowErrors,
			Severity:    severity,
			Description: "Some rows could not be scored",
			Data:        map[string]any{"errors": s.Errors, "rows": s.Rows},
		})
	}

	if s.Scored > 0 {
		ratio := float64(s.EmptyResponses) / float64(s.Scored)
		if ratio >= 0.2 {
			signals = append(signals, model.Signal{
				Type:        model.SignalEmptyResponses,
				Severity:    model.SeverityWarning,
				Description: "Many responses contain no extractable call",
				Data:        map[string]any{"empty": s.EmptyResponses, "scored": s.Scored, "ratio": ratio},
			})
		}

		if s.MeanReward < 0.2 {
			signals = append(signals, model.Signal{
				Type:        model.SignalLowReward,
				Severity:    model.SeverityWarning,
				Description: "Mean reward is close to zero",
				Data:        map[string]any{"mean_reward": s.MeanReward},
			})
		}
	}

	if matched := s.ExactMatches + s.PartialMatches; matched > 0 && s.PartialMatches*2 > matched {
		signals = append(signals, model.Signal{
			Type:        model.SignalPartialHeavy,
			Severity:    model.SeverityInfo,
			Description: "Most matched calls earned only partial credit",
			Data:        map[string]any{"exact": s.ExactMatches, "partial": s.PartialMatches},
		})
	}

	return signals
}
