package metrics

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ppiankov/callreward/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

const namespace = "callreward"

// Metrics holds the collectors of one registry. All methods are safe on a
// nil receiver, which disables recording.
type Metrics struct {
	registry *prometheus.Registry

	RequestTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimited     prometheus.Counter
	Reward          prometheus.Histogram
	MatchTotal      *prometheus.CounterVec
	EmptyResponses  prometheus.Counter
	CompletionTotal *prometheus.CounterVec
	TokensTotal     *prometheus.CounterVec
	InFlight        prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
		Reward: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reward",
			Help:      "Distribution of computed rewards.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		MatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expected_calls_total",
				Help:      "Expected calls by match outcome.",
			},
			[]string{"outcome"}, // exact | partial | unmatched
		),
		EmptyResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_responses_total",
			Help:      "Scored responses from which no call could be extracted.",
		}),
		CompletionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_completions_total",
				Help:      "LLM completions by provider and status.",
			},
			[]string{"provider", "status"}, // ok | cached | error
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Tokens reported by LLM providers.",
			},
			[]string{"provider"},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_requests",
			Help:      "Requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		m.RequestTotal, m.RequestDuration, m.RateLimited,
		m.Reward, m.MatchTotal, m.EmptyResponses,
		m.CompletionTotal, m.TokensTotal, m.InFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveScore records one scored response
func (m *Metrics) ObserveScore(res model.ScoreResult) {
	if m == nil {
		return
	}
	m.Reward.Observe(res.Reward)
	if res.Generated == 0 {
		m.EmptyResponses.Inc()
	}
	for _, match := range res.Matches {
		m.MatchTotal.WithLabelValues(string(match.Outcome)).Inc()
	}
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveRateLimited records a rejected request
func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// ObserveCompletion records an LLM completion attempt
func (m *Metrics) ObserveCompletion(provider, status string, tokens int) {
	if m == nil {
		return
	}
	m.CompletionTotal.WithLabelValues(provider, status).Inc()
	if tokens > 0 {
		m.TokensTotal.WithLabelValues(provider).Add(float64(tokens))
	}
}

// TrackInFlight increments the in-flight gauge and returns its decrement
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteText writes a text snapshot of all metrics to w
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
