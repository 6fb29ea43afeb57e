package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/callreward/internal/dataset"
	"github.com/ppiankov/callreward/internal/extract"
	"github.com/ppiankov/callreward/internal/llm"
	"github.com/ppiankov/callreward/internal/log"
	"github.com/ppiankov/callreward/internal/metrics"
	"github.com/ppiankov/callreward/internal/model"
	"github.com/ppiankov/callreward/internal/score"
	"github.com/ppiankov/callreward/internal/worker"
	"golang.org/x/sync/errgroup"
)

// ErrNoProvider is returned by Rollout when no LLM provider is configured
var ErrNoProvider = errors.New("no LLM provider configured")

// Pipeline orchestrates extraction, scoring and rollouts
type Pipeline struct {
	extractor *extract.CallExtractor
	scorer    *score.Scorer
	provider  llm.Provider // Optional (nil if rollouts are disabled)
	metrics   *metrics.Metrics
	logger    log.Logger
	config    *model.Config
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithProvider sets the LLM provider used by Rollout
func WithProvider(p llm.Provider) Option {
	return func(pl *Pipeline) { pl.provider = p }
}

// WithMetrics records scores and completions on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

// WithLogger sets the logger for operational events
func WithLogger(l log.Logger) Option {
	return func(pl *Pipeline) { pl.logger = l }
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	extractor, err := extract.NewCallExtractor(cfg.Extraction)
	if err != nil {
		return nil, fmt.Errorf("create extractor: %w", err)
	}

	p := &Pipeline{
		extractor: extractor,
		scorer:    score.NewScorer(cfg.Scoring, extractor),
		logger:    log.Default,
		config:    cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Extract returns the code blocks and calls found in text under the
// configured block policy.
func (p *Pipeline) Extract(text string) extract.Extraction {
	return p.extractor.Extract(text)
}

// Scorer returns the configured scorer
func (p *Pipeline) Scorer() *score.Scorer {
	return p.scorer
}

// ScoreRequest scores one response against its ground truth
func (p *Pipeline) ScoreRequest(ctx context.Context, req model.ScoreRequest) (*model.ScoredSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := p.scorer
	if req.PartialCredit != nil {
		s = s.WithPartialCredit(*req.PartialCredit)
	}

	res := s.Evaluate(req.Response, req.GroundTruth)
	p.metrics.ObserveScore(res)

	return &model.ScoredSample{ID: req.ID, Reward: res.Reward, Result: &res}, nil
}

// ScoreBatch scores every decodable row concurrently. Rows that failed to
// decode are reported with their error and do not stop the batch.
func (p *Pipeline) ScoreBatch(ctx context.Context, rows []BatchRow, concurrency int) *model.BatchReport {
	report := p.newReport("batch")
	start := time.Now()

	reqs := make([]model.ScoreRequest, 0, len(rows))
	positions := make([]int, 0, len(rows))
	report.Rows = make([]model.ScoredSample, len(rows))

	for i, row := range rows {
		if row.Err != nil {
			report.Rows[i] = model.ScoredSample{ID: row.Request.ID, Index: i, Error: row.Err.Error()}
			continue
		}
		reqs = append(reqs, row.Request)
		positions = append(positions, i)
	}

	results := worker.NewBatchProcessor(p, concurrency).ProcessRequests(ctx, reqs)
	for _, r := range results {
		i := positions[r.Index]
		if r.Error != nil {
			report.Rows[i] = model.ScoredSample{ID: r.ID, Index: i, Error: r.Error.Error()}
			continue
		}
		row := *r.Sample
		row.Index = i
		report.Rows[i] = row
	}

	p.finishReport(report, start)
	return report
}

// Rollout asks the provider to answer each sample prompt and scores the
// answer against the sample ground truth. Provider failures are recorded per
// row; cancellation of ctx is returned together with the partial report.
func (p *Pipeline) Rollout(ctx context.Context, samples []dataset.RewardSampleRow, concurrency int) (*model.BatchReport, error) {
	if p.provider == nil {
		return nil, ErrNoProvider
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	report := p.newReport("rollout")
	report.Settings.Provider = p.provider.Name()
	report.Settings.Model = p.config.LLM.Model
	report.Rows = make([]model.ScoredSample, len(samples))
	start := time.Now()

	var failures atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range samples {
		i := i
		g.Go(func() error {
			report.Rows[i] = p.rolloutOne(gctx, i, samples[i])
			if report.Rows[i].Error != "" {
				failures.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failures.Load(); n > 0 {
		p.logger.Warnf("rollout %s: %d of %d rows failed", report.RunID, n, len(samples))
	}

	p.finishReport(report, start)
	return report, ctx.Err()
}

func (p *Pipeline) rolloutOne(ctx context.Context, index int, row dataset.RewardSampleRow) model.ScoredSample {
	out := model.ScoredSample{Index: index, ID: sampleID(row.Sample)}
	if row.Err != nil {
		out.Error = row.Err.Error()
		return out
	}
	out.Split = row.Sample.ExtraInfo.Split

	if err := ctx.Err(); err != nil {
		out.Error = err.Error()
		return out
	}

	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{Messages: row.Sample.Prompt})
	if err != nil {
		p.metrics.ObserveCompletion(p.provider.Name(), "error", 0)
		p.logger.Warnf("rollout row %d: %v", index, err)
		out.Error = fmt.Sprintf("complete: %v", err)
		return out
	}

	status := "ok"
	if resp.Cached {
		status = "cached"
	}
	p.metrics.ObserveCompletion(p.provider.Name(), status, resp.TokensUsed)

	res := p.scorer.Evaluate(resp.Text, row.Sample.RewardModel.GroundTruth)
	p.metrics.ObserveScore(res)

	out.Response = resp.Text
	out.Reward = res.Reward
	out.Result = &res
	out.Model = resp.Model
	out.TokensUsed = resp.TokensUsed
	out.Cached = resp.Cached
	return out
}

func (p *Pipeline) newReport(kind string) *model.BatchReport {
	return &model.BatchReport{
		RunID:     uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
		Settings: model.ReportSettings{
			PartialCredit:    p.scorer.PartialCredit(),
			NumericTolerance: p.scorer.Tolerance(),
		},
	}
}

func (p *Pipeline) finishReport(report *model.BatchReport, start time.Time) {
	report.Duration = time.Since(start).Round(time.Millisecond).String()
	report.Summary = Summarize(report.Rows)
	report.Signals = Signals(report.Summary)
}

func sampleID(s model.RewardSample) string {
	if s.ExtraInfo.Split == "" {
		return ""
	}
	return fmt.Sprintf("%s-%d", s.ExtraInfo.Split, s.ExtraInfo.Index)
}
