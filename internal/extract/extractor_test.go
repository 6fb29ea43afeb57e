package extract

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/callreward/internal/model"
)

const multiBlockResponse = "I'll look it up.\n" +
	"```python\nsearch(query=\"hotels\", limit=5)\nbook(hotel_id=7)\n```\n" +
	"This one is broken:\n```python\nbroken(\n```\n" +
	"And finally:\n```python\nconfirm(ok=True)\n```\n"

func TestExtractCalls_AllBlocks(t *testing.T) {
	got := ExtractCalls(multiBlockResponse)
	want := []model.CallRecord{
		{Function: "search", Arguments: model.Arguments{"query": "hotels", "limit": int64(5)}},
		{Function: "book", Arguments: model.Arguments{"hotel_id": int64(7)}},
		{Function: "confirm", Arguments: model.Arguments{"ok": true}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractCalls mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractCallsWithPolicy(t *testing.T) {
	tests := []struct {
		policy BlockPolicy
		want   []model.CallRecord
	}{
		{PolicyLast, []model.CallRecord{{Function: "confirm", Arguments: model.Arguments{"ok": true}}}},
		{PolicyFirst, []model.CallRecord{{Function: "search", Arguments: model.Arguments{"query": "hotels", "limit": int64(5)}}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			got := ExtractCallsWithPolicy(multiBlockResponse, tt.policy)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractCalls_NoBlocks(t *testing.T) {
	if got := ExtractCalls("foo(a=1) outside any fence"); len(got) != 0 {
		t.Errorf("expected no calls, got %v", got)
	}
}

func TestParseBlockPolicy(t *testing.T) {
	for _, s := range []string{"", "all", "last", "first"} {
		if _, err := ParseBlockPolicy(s); err != nil {
			t.Errorf("ParseBlockPolicy(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseBlockPolicy("middle"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestCallExtractor_FromConfig(t *testing.T) {
	e, err := NewCallExtractor(model.ExtractionConfig{Language: "python", BlockPolicy: "last", MemoTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewCallExtractor failed: %v", err)
	}
	if e.Policy() != PolicyLast {
		t.Errorf("expected last policy, got %s", e.Policy())
	}

	res := e.Extract(multiBlockResponse)
	if len(res.Blocks) != 3 {
		t.Errorf("expected 3 blocks, got %d", len(res.Blocks))
	}
	if len(res.Calls) != 1 || res.Calls[0].Function != "confirm" {
		t.Errorf("unexpected calls %+v", res.Calls)
	}

	if _, err := NewCallExtractor(model.ExtractionConfig{BlockPolicy: "bogus"}); err == nil {
		t.Error("expected error for bogus policy")
	}
}
