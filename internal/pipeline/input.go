package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ppiankov/callreward/internal/dataset"
	"github.com/ppiankov/callreward/internal/model"
)

// ErrNoGroundTruth marks batch rows carrying neither a sample nor a ground truth
var ErrNoGroundTruth = errors.New("row has no ground truth")

// BatchInput is one line of a batch file. The ground truth comes from
// ground_truth when present, otherwise from the reward sample.
type BatchInput struct {
	ID            string              `json:"id,omitempty"`
	Sample        *model.RewardSample `json:"sample,omitempty"`
	GroundTruth   *model.GroundTruth  `json:"ground_truth,omitempty"`
	Response      string              `json:"response"`
	PartialCredit *float64            `json:"partial_credit,omitempty"`
}

// Request converts the input into a score request
func (in BatchInput) Request() (model.ScoreRequest, error) {
	req := model.ScoreRequest{
		ID:            in.ID,
		Response:      in.Response,
		PartialCredit: in.PartialCredit,
	}

	switch {
	case in.GroundTruth != nil:
		req.GroundTruth = *in.GroundTruth
	case in.Sample != nil:
		req.GroundTruth = in.Sample.RewardModel.GroundTruth
		if req.ID == "" {
			req.ID = sampleID(*in.Sample)
		}
	default:
		return req, ErrNoGroundTruth
	}
	return req, nil
}

// BatchRow is a decoded batch line; Err is set when it cannot be scored
type BatchRow struct {
	Line    int
	Request model.ScoreRequest
	Err     error
}

// ReadBatchRows decodes a JSONL batch file. Undecodable lines become rows
// with Err set so that they are reported in place.
func ReadBatchRows(r io.Reader) ([]BatchRow, error) {
	var rows []BatchRow
	err := dataset.ReadJSONL(r, func(index int, line []byte) error {
		row := BatchRow{Line: index}

		var in BatchInput
		dec := json.NewDecoder(bytes.NewReader(line))
		if err := dec.Decode(&in); err != nil {
			row.Err = fmt.Errorf("decode row: %w", err)
		} else if row.Request, err = in.Request(); err != nil {
			row.Err = err
		}

		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return rows, fmt.Errorf("read batch: %w", err)
	}
	return rows, nil
}

// RowsFromRequests wraps already decoded requests as batch rows
func RowsFromRequests(reqs []model.ScoreRequest) []BatchRow {
	rows := make([]BatchRow, len(reqs))
	for i, req := range reqs {
		rows[i] = BatchRow{Line: i, Request: req}
	}
	return rows
}
