package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/callreward/internal/log"
	"github.com/ppiankov/callreward/internal/model"
	"github.com/ppiankov/callreward/internal/score"
)

const assistantAnswer = "Sure.\n```python\nsearch(query=\"hotels in Rome\", limit=3)\nbook(hotel_id=42, nights=2.0)\n```"

func dialogueLine(t *testing.T, msgs ...model.Message) string {
	t.Helper()
	data, err := json.Marshal(model.Dialogue{Messages: msgs})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func newTestPreprocessor(t *testing.T, policy string) *Preprocessor {
	t.Helper()
	cfg := model.DefaultConfig().Dataset
	cfg.GroundTruthPolicy = policy
	p, err := NewPreprocessor(cfg, nil, log.Nop())
	if err != nil {
		t.Fatalf("NewPreprocessor failed: %v", err)
	}
	return p
}

func TestBuildSample(t *testing.T) {
	p := newTestPreprocessor(t, "all")
	d := model.Dialogue{Messages: []model.Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "Find me a hotel"},
		{Role: "assistant", Content: assistantAnswer},
		{Role: "user", Content: "thanks"},
	}}

	got, err := p.BuildSample(d, 7, "train")
	if err != nil {
		t.Fatalf("BuildSample failed: %v", err)
	}

	want := &model.RewardSample{
		DataSource: "fc_merged",
		Prompt:     []model.Message{{Role: "user", Content: "Find me a hotel"}},
		Ability:    "function_calling",
		RewardModel: model.RewardModel{
			Style: "rule",
			GroundTruth: model.GroundTruth{ExpectedCalls: []model.ExpectedCall{
				{Function: "search", Arguments: model.Arguments{"query": "hotels in Rome", "limit": int64(3)}},
				{Function: "book", Arguments: model.Arguments{"hotel_id": int64(42), "nights": 2.0}},
			}},
		},
		ExtraInfo: model.ExtraInfo{Split: "train", Index: 7, OriginalAssistantResponse: assistantAnswer},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildSample mismatch (-want +got):\n%s", diff)
	}

	// The reference answer always earns full reward against its own ground truth.
	if r := score.ComputeScore(assistantAnswer, got.RewardModel.GroundTruth, 0.5); r != 1.0 {
		t.Errorf("expected reference answer reward 1.0, got %v", r)
	}
}

func TestBuildSample_Skips(t *testing.T) {
	p := newTestPreprocessor(t, "all")
	tests := []struct {
		name string
		msgs []model.Message
		want error
	}{
		{"no user", []model.Message{{Role: "assistant", Content: assistantAnswer}}, ErrMissingTurn},
		{"no assistant", []model.Message{{Role: "user", Content: "hi"}}, ErrMissingTurn},
		{"no code", []model.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, ErrNoCalls},
		{"broken code", []model.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "```python\nfoo(\n```"}}, ErrNoCalls},
		{"bytes argument", []model.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "```python\nsend(payload=b\"\\x00\\x01\")\n```"}}, ErrUnencodable},
		{"nested bytes", []model.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "```python\nsend(parts=[{\"raw\": b\"x\"}])\n```"}}, ErrUnencodable},
		{"infinite float", []model.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "```python\nscale(by=1e999)\n```"}}, ErrUnencodable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.BuildSample(model.Dialogue{Messages: tt.msgs}, 0, "train")
			if err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuildSample_FirstPolicy(t *testing.T) {
	p := newTestPreprocessor(t, "first")
	d := model.Dialogue{Messages: []model.Message{
		{Role: "user", Content: "Find me a hotel"},
		{Role: "assistant", Content: assistantAnswer},
	}}

	got, err := p.BuildSample(d, 0, "test")
	if err != nil {
		t.Fatalf("BuildSample failed: %v", err)
	}
	calls := got.RewardModel.GroundTruth.ExpectedCalls
	if len(calls) != 1 || calls[0].Function != "search" {
		t.Errorf("expected only the first call, got %+v", calls)
	}

	d.Messages[1].Content = "```python\nping()\nsearch(q=1)\n```"
	if _, err := p.BuildSample(d, 0, "test"); err != ErrNoCalls {
		t.Errorf("expected ErrNoCalls for a first call without arguments, got %v", err)
	}
}

func TestNewPreprocessor_BadPolicy(t *testing.T) {
	cfg := model.DefaultConfig().Dataset
	cfg.GroundTruthPolicy = "last"
	if _, err := NewPreprocessor(cfg, nil, log.Nop()); err == nil {
		t.Error("expected error for unsupported ground truth policy")
	}
}

func TestProcessSplit(t *testing.T) {
	p := newTestPreprocessor(t, "all")
	input := strings.Join([]string{
		dialogueLine(t, model.Message{Role: "user", Content: "q1"}, model.Message{Role: "assistant", Content: assistantAnswer}),
		"{broken json",
		dialogueLine(t, model.Message{Role: "user", Content: "q2"}, model.Message{Role: "assistant", Content: "no code"}),
		dialogueLine(t, model.Message{Role: "user", Content: "q3"}, model.Message{Role: "assistant", Content: "```python\nping(x=1)\n```"}),
	}, "\n")

	var out bytes.Buffer
	stats, err := p.ProcessSplit(context.Background(), strings.NewReader(input), &out, "validation")
	if err != nil {
		t.Fatalf("ProcessSplit failed: %v", err)
	}
	if stats.Read != 4 || stats.Written != 2 || stats.Skipped != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}

	rows, err := ReadSamples(&out)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(rows))
	}
	if rows[0].Sample.ExtraInfo.Index != 0 || rows[1].Sample.ExtraInfo.Index != 3 {
		t.Errorf("expected source row indexes 0 and 3, got %d and %d",
			rows[0].Sample.ExtraInfo.Index, rows[1].Sample.ExtraInfo.Index)
	}
	for _, row := range rows {
		if row.Err != nil {
			t.Fatalf("row %d: %v", row.Line, row.Err)
		}
		s := row.Sample
		if r := score.ComputeScore(s.ExtraInfo.OriginalAssistantResponse, s.RewardModel.GroundTruth, 0.5); r != 1.0 {
			t.Errorf("row %d: expected round-trip reward 1.0, got %v", row.Line, r)
		}
	}
}

func TestProcessSplit_SkipsBytesArguments(t *testing.T) {
	p := newTestPreprocessor(t, "all")
	bytesAnswer := "```python\nupload(data=b\"aGk=\", name=\"f\")\n```"
	input := strings.Join([]string{
		dialogueLine(t, model.Message{Role: "user", Content: "q1"}, model.Message{Role: "assistant", Content: bytesAnswer}),
		dialogueLine(t, model.Message{Role: "user", Content: "q2"}, model.Message{Role: "assistant", Content: "```python\nupload(data=\"aGk=\", name=\"f\")\n```"}),
	}, "\n")

	var out bytes.Buffer
	stats, err := p.ProcessSplit(context.Background(), strings.NewReader(input), &out, "train")
	if err != nil {
		t.Fatalf("ProcessSplit failed: %v", err)
	}
	if stats.Written != 1 || stats.Skipped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	rows, err := ReadSamples(&out)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Err != nil {
		t.Fatalf("expected one clean row, got %+v", rows)
	}

	// Written samples still give the reference answer full reward after reading back.
	s := rows[0].Sample
	if s.ExtraInfo.Index != 1 {
		t.Errorf("expected source index 1, got %d", s.ExtraInfo.Index)
	}
	if r := score.ComputeScore(s.ExtraInfo.OriginalAssistantResponse, s.RewardModel.GroundTruth, 0.5); r != 1.0 {
		t.Errorf("expected round-trip reward 1.0, got %v", r)
	}
	// A base64 string in the ground truth must not reward a bytes answer.
	if r := score.ComputeScore(bytesAnswer, s.RewardModel.GroundTruth, 0.5); r != 0.0 {
		t.Errorf("expected bytes answer reward 0.0, got %v", r)
	}
}

func TestProcessSplit_Cancelled(t *testing.T) {
	p := newTestPreprocessor(t, "all")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := dialogueLine(t, model.Message{Role: "user", Content: "q"}, model.Message{Role: "assistant", Content: assistantAnswer})
	if _, err := p.ProcessSplit(ctx, strings.NewReader(input), &bytes.Buffer{}, "train"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestRun(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	line := dialogueLine(t, model.Message{Role: "user", Content: "q"}, model.Message{Role: "assistant", Content: assistantAnswer})
	if err := os.WriteFile(filepath.Join(inDir, "train.jsonl"), []byte(line+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPreprocessor(t, "all")
	stats, err := p.Run(context.Background(), NewSource(inDir, nil), outDir, []string{"train", "test"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected stats for 2 splits, got %d", len(stats))
	}
	if stats[0].Written != 1 || stats[0].Output != filepath.Join(outDir, "train.jsonl") {
		t.Errorf("unexpected train stats %+v", stats[0])
	}
	if !stats[1].Missing {
		t.Errorf("expected test split to be reported missing, got %+v", stats[1])
	}

	if _, err := os.Stat(filepath.Join(outDir, "train.jsonl")); err != nil {
		t.Errorf("expected train output file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "test.jsonl")); !os.IsNotExist(err) {
		t.Errorf("expected no test output file, got %v", err)
	}
}
