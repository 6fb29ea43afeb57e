package metrics

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/callreward/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveScore(t *testing.T) {
	m := New()
	m.ObserveScore(model.ScoreResult{
		Reward:    0.75,
		Expected:  2,
		Generated: 2,
		Matches: []model.CallMatch{
			{Outcome: model.OutcomeExact, Credit: 1},
			{Outcome: model.OutcomePartial, Credit: 0.5},
		},
	})
	m.ObserveScore(model.ScoreResult{Expected: 1, Matches: []model.CallMatch{{Outcome: model.OutcomeUnmatched}}})

	if got := testutil.ToFloat64(m.MatchTotal.WithLabelValues("exact")); got != 1 {
		t.Errorf("expected 1 exact match, got %v", got)
	}
	if got := testutil.ToFloat64(m.MatchTotal.WithLabelValues("unmatched")); got != 1 {
		t.Errorf("expected 1 unmatched, got %v", got)
	}
	if got := testutil.ToFloat64(m.EmptyResponses); got != 1 {
		t.Errorf("expected 1 empty response, got %v", got)
	}
	if n := testutil.CollectAndCount(m.Reward); n != 1 {
		t.Errorf("expected reward histogram to be collected, got %d", n)
	}
}

func TestObserveRequestAndCompletion(t *testing.T) {
	m := New()
	m.ObserveRequest("/v1/score", 200, 10*time.Millisecond)
	m.ObserveRequest("/v1/score", 400, time.Millisecond)
	m.ObserveRateLimited()
	m.ObserveCompletion("openai", "ok", 120)
	m.ObserveCompletion("openai", "cached", 0)

	if got := testutil.ToFloat64(m.RequestTotal.WithLabelValues("/v1/score", "400")); got != 1 {
		t.Errorf("expected one 400, got %v", got)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Errorf("expected one rate limited request, got %v", got)
	}
	if got := testutil.ToFloat64(m.TokensTotal.WithLabelValues("openai")); got != 120 {
		t.Errorf("expected 120 tokens, got %v", got)
	}

	done := m.TrackInFlight()
	if got := testutil.ToFloat64(m.InFlight); got != 1 {
		t.Errorf("expected 1 in flight, got %v", got)
	}
	done()
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("expected 0 in flight, got %v", got)
	}
}

func TestHandlerAndWriteText(t *testing.T) {
	m := New()
	m.ObserveScore(model.ScoreResult{Reward: 1, Generated: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "callreward_reward_bucket") {
		t.Errorf("unexpected metrics response %d:\n%s", rec.Code, rec.Body.String())
	}

	var buf bytes.Buffer
	if err := m.WriteText(&buf); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if !strings.Contains(buf.String(), "callreward_reward_count 1") {
		t.Errorf("expected reward count in snapshot:\n%s", buf.String())
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveScore(model.ScoreResult{})
	m.ObserveRequest("/", 200, 0)
	m.ObserveRateLimited()
	m.ObserveCompletion("x", "ok", 1)
	m.TrackInFlight()()
	if err := m.WriteText(&bytes.Buffer{}); err != nil {
		t.Errorf("expected nil metrics to be a no-op, got %v", err)
	}
}
