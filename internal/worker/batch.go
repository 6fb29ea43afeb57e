package worker

import (
	"context"
	"sort"

	"github.com/ppiankov/callreward/internal/model"
)

// Scorer scores a single request
type Scorer interface {
	ScoreRequest(ctx context.Context, req model.ScoreRequest) (*model.ScoredSample, error)
}

// ScoreJob scores one request of a batch
type ScoreJob struct {
	Index   int
	Request model.ScoreRequest
	Scorer  Scorer
}

// Execute executes the score job
func (j *ScoreJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &ScoreResult{Index: j.Index, ID: j.Request.ID, Error: err}
	}

	sample, err := j.Scorer.ScoreRequest(ctx, j.Request)
	if err != nil {
		return &ScoreResult{Index: j.Index, ID: j.Request.ID, Error: err}
	}
	sample.Index = j.Index
	return &ScoreResult{Index: j.Index, ID: j.Request.ID, Sample: sample}
}

// ScoreResult represents the result of a score job
type ScoreResult struct {
	Index  int
	ID     string
	Sample *model.ScoredSample
	Error  error
}

// GetError returns the error from the score result
func (r *ScoreResult) GetError() error {
	return r.Error
}

// BatchProcessor scores many requests concurrently
type BatchProcessor struct {
	scorer      Scorer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(scorer Scorer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		scorer:      scorer,
		concurrency: concurrency,
	}
}

// ProcessRequests scores all requests and returns results in request order.
// A failed request yields a result with Error set; it does not stop the batch.
func (b *BatchProcessor) ProcessRequests(ctx context.Context, reqs []model.ScoreRequest) []*ScoreResult {
	if len(reqs) == 0 {
		return []*ScoreResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	submitted := 0
	for i, req := range reqs {
		if !pool.Submit(&ScoreJob{Index: i, Request: req, Scorer: b.scorer}) {
			break
		}
		submitted++
	}

	results := pool.Wait()

	out := make([]*ScoreResult, 0, len(reqs))
	done := make(map[int]bool, len(results))
	for _, r := range results {
		sr := r.(*ScoreResult)
		done[sr.Index] = true
		out = append(out, sr)
	}

	// Requests never submitted or dropped by cancellation still get a row
	for i := range reqs {
		if !done[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out = append(out, &ScoreResult{Index: i, ID: reqs[i].ID, Error: err})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
