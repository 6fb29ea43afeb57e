package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ppiankov/callreward/internal/extract"
	"github.com/ppiankov/callreward/internal/log"
	"github.com/ppiankov/callreward/internal/model"
)

var (
	// ErrNoCalls marks dialogues whose assistant turn has no usable call
	ErrNoCalls = errors.New("no function call in assistant response")
	// ErrMissingTurn marks dialogues without a user or assistant message
	ErrMissingTurn = errors.New("dialogue has no user or assistant message")
	// ErrUnencodable marks expected calls holding bytes or non-finite floats,
	// which would not read back as the same values
	ErrUnencodable = errors.New("expected call argument has no JSON form")
)

// GroundTruthPolicy selects how expected calls are taken from the reference answer
type GroundTruthPolicy string

const (
	// GroundTruthAll takes every call of every python block, as the scorer does
	GroundTruthAll GroundTruthPolicy = "all"
	// GroundTruthFirst takes only the first call of the first block and
	// skips dialogues where that call has no literal keyword arguments
	GroundTruthFirst GroundTruthPolicy = "first"
)

// ParseGroundTruthPolicy validates a policy name; empty means all
func ParseGroundTruthPolicy(s string) (GroundTruthPolicy, error) {
	switch GroundTruthPolicy(s) {
	case "", GroundTruthAll:
		return GroundTruthAll, nil
	case GroundTruthFirst:
		return GroundTruthFirst, nil
	}
	return "", fmt.Errorf("unknown ground truth policy %q (want all or first)", s)
}

// RewardSampleRow is one decoded line of a samples file
type RewardSampleRow struct {
	Line   int
	Sample model.RewardSample
	Err    error
}

// SplitStats summarizes preprocessing of one split
type SplitStats struct {
	Split   string `json:"split"`
	Source  string `json:"source"`
	Output  string `json:"output,omitempty"`
	Read    int    `json:"read"`
	Written int    `json:"written"`
	Skipped int    `json:"skipped"`
	Missing bool   `json:"missing,omitempty"`
}

// Preprocessor converts chat dialogues into reward samples
type Preprocessor struct {
	extractor  *extract.CallExtractor
	dataSource string
	ability    string
	policy     GroundTruthPolicy
	logger     log.Logger
}

// NewPreprocessor creates a preprocessor from dataset configuration
func NewPreprocessor(cfg model.DatasetConfig, extractor *extract.CallExtractor, logger log.Logger) (*Preprocessor, error) {
	policy, err := ParseGroundTruthPolicy(cfg.GroundTruthPolicy)
	if err != nil {
		return nil, err
	}
	if extractor == nil {
		extractor, _ = extract.NewCallExtractor(model.ExtractionConfig{Language: extract.DefaultLanguage})
	}
	if logger == nil {
		logger = log.Default
	}

	return &Preprocessor{
		extractor:  extractor,
		dataSource: cfg.DataSource,
		ability:    cfg.Ability,
		policy:     policy,
		logger:     logger,
	}, nil
}

// BuildSample turns one dialogue into a reward sample. The prompt is the
// first user turn; expected calls come from the first assistant turn.
func (p *Preprocessor) BuildSample(d model.Dialogue, index int, split string) (*model.RewardSample, error) {
	user, ok := d.FirstContent("user")
	if !ok {
		return nil, ErrMissingTurn
	}
	assistant, ok := d.FirstContent("assistant")
	if !ok {
		return nil, ErrMissingTurn
	}

	var calls []model.CallRecord
	switch p.policy {
	case GroundTruthFirst:
		calls = p.extractor.ExtractWithPolicy(assistant, extract.PolicyFirst).Calls
		if len(calls) == 0 || len(calls[0].Arguments) == 0 {
			return nil, ErrNoCalls
		}
	default:
		calls = p.extractor.ExtractWithPolicy(assistant, extract.PolicyAll).Calls
		if len(calls) == 0 {
			return nil, ErrNoCalls
		}
	}
	for _, c := range calls {
		if !model.Encodable(c.Arguments) {
			return nil, ErrUnencodable
		}
	}

	return &model.RewardSample{
		DataSource: p.dataSource,
		Prompt:     []model.Message{{Role: "user", Content: user}},
		Ability:    p.ability,
		RewardModel: model.RewardModel{
			Style:       model.RewardStyleRule,
			GroundTruth: model.GroundTruth{ExpectedCalls: calls},
		},
		ExtraInfo: model.ExtraInfo{
			Split:                     split,
			Index:                     index,
			OriginalAssistantResponse: assistant,
		},
	}, nil
}

// ProcessSplit reads dialogues from r and writes reward samples to w.
// Undecodable rows and rows without usable calls are skipped.
func (p *Preprocessor) ProcessSplit(ctx context.Context, r io.Reader, w io.Writer, split string) (SplitStats, error) {
	stats := SplitStats{Split: split}
	out := NewJSONLWriter(w)

	err := ReadJSONL(r, func(index int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Read++

		var d model.Dialogue
		if err := json.Unmarshal(line, &d); err != nil {
			p.logger.Warnf("%s[%d]: decode dialogue: %v", split, index, err)
			stats.Skipped++
			return nil
		}

		sample, err := p.BuildSample(d, index, split)
		if err != nil {
			p.logger.Debugf("%s[%d]: skipped: %v", split, index, err)
			stats.Skipped++
			return nil
		}

		if err := out.Write(sample); err != nil {
			// the row is dropped, the stream is intact
			var me *json.MarshalerError
			if errors.As(err, &me) {
				p.logger.Warnf("%s[%d]: skipped: %v", split, index, err)
				stats.Skipped++
				return nil
			}
			return err
		}
		stats.Written++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("process %s: %w", split, err)
	}

	if err := out.Flush(); err != nil {
		return stats, fmt.Errorf("flush %s: %w", split, err)
	}
	return stats, nil
}

// Run preprocesses every split from src into outDir/<split>.jsonl.
// Splits missing at the source are reported and skipped.
func (p *Preprocessor) Run(ctx context.Context, src Source, outDir string, splits []string) ([]SplitStats, error) {
	outDir = expandHome(outDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var all []SplitStats
	for _, split := range splits {
		stats, err := p.runSplit(ctx, src, outDir, split)
		if err != nil {
			return all, err
		}
		all = append(all, stats)
	}
	return all, nil
}

func (p *Preprocessor) runSplit(ctx context.Context, src Source, outDir, split string) (SplitStats, error) {
	in, err := src.Open(ctx, split)
	if err != nil {
		if errors.Is(err, ErrSplitNotFound) {
			p.logger.Warnf("split %s not found at %s", split, src.Location(split))
			return SplitStats{Split: split, Source: src.Location(split), Missing: true}, nil
		}
		return SplitStats{}, err
	}
	defer in.Close()

	path := filepath.Join(outDir, split+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return SplitStats{}, fmt.Errorf("create %s: %w", path, err)
	}

	stats, err := p.ProcessSplit(ctx, in, f, split)
	closeErr := f.Close()
	if err != nil {
		return stats, err
	}
	if closeErr != nil {
		return stats, fmt.Errorf("close %s: %w", path, closeErr)
	}

	stats.Source = src.Location(split)
	stats.Output = path
	return stats, nil
}
