package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dong"

// 계산 결과 라벨 값이다.
const (
	OutcomeSuccess    = "success"
	OutcomeInvalid    = "invalid"
	OutcomeBlocked    = "blocked"
	OutcomeQuota      = "quota_exceeded"
	OutcomeAIError    = "ai_error"
	OutcomeInternal   = "internal_error"
	cacheResultHit    = "hit"
	cacheResultMiss   = "miss"
	providerResultOK  = "ok"
	providerResultErr = "error"
)

// Store 는 계산 요청과 모델 호출 통계를 저장한다.
// Prometheus 수집기와 별도로 JSON 응답용 누적값을 atomic 으로 유지한다.
type Store struct {
	registry *prometheus.Registry

	calculations    *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	tokens          *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	ledgerRejects   prometheus.Counter

	totalCalls        int64
	totalErrors       int64
	totalInputTokens  int64
	totalOutputTokens int64
	totalDurationMs   int64
}

// NewStore 는 독립 레지스트리를 가진 통계 저장소를 생성한다.
func NewStore() *Store {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Store{
		registry: registry,
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Calculation requests by prompt mode and outcome",
		}, []string{"mode", "outcome"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Completion provider calls by provider and result",
		}, []string{"provider", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Completion provider call latency",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"provider"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens reported by the completion provider",
		}, []string{"direction"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "result_cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by result",
		}, []string{"result"}),
		ledgerRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "quota_rejections_total",
			Help:      "Requests rejected by the daily usage ledger",
		}),
	}
	registry.MustRegister(s.calculations, s.providerCalls, s.providerLatency, s.tokens, s.cacheLookups, s.ledgerRejects)
	return s
}

// Registry 는 Prometheus 레지스트리를 반환한다.
func (s *Store) Registry() *prometheus.Registry {
	return s.registry
}

// Handler 는 /metrics 핸들러를 반환한다.
func (s *Store) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// RecordCalculation 은 계산 요청 한 건의 결과를 기록한다.
func (s *Store) RecordCalculation(mode string, outcome string) {
	if s == nil {
		return
	}
	s.calculations.WithLabelValues(mode, outcome).Inc()
	if outcome == OutcomeQuota {
		s.ledgerRejects.Inc()
	}
}

// RecordSuccess 는 성공한 모델 호출 통계를 기록한다.
func (s *Store) RecordSuccess(provider string, duration time.Duration, inputTokens int, outputTokens int) {
	if s == nil {
		return
	}
	s.providerCalls.WithLabelValues(provider, providerResultOK).Inc()
	s.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
	s.tokens.WithLabelValues("input").Add(float64(inputTokens))
	s.tokens.WithLabelValues("output").Add(float64(outputTokens))

	atomic.AddInt64(&s.totalCalls, 1)
	atomic.AddInt64(&s.totalInputTokens, int64(inputTokens))
	atomic.AddInt64(&s.totalOutputTokens, int64(outputTokens))
	atomic.AddInt64(&s.totalDurationMs, duration.Milliseconds())
}

// RecordError 는 실패한 모델 호출 통계를 기록한다.
func (s *Store) RecordError(provider string, duration time.Duration) {
	if s == nil {
		return
	}
	s.providerCalls.WithLabelValues(provider, providerResultErr).Inc()
	s.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())

	atomic.AddInt64(&s.totalCalls, 1)
	atomic.AddInt64(&s.totalErrors, 1)
	atomic.AddInt64(&s.totalDurationMs, duration.Milliseconds())
}

// RecordCacheLookup 은 결과 캐시 조회 결과를 기록한다.
func (s *Store) RecordCacheLookup(hit bool) {
	if s == nil {
		return
	}
	if hit {
		s.cacheLookups.WithLabelValues(cacheResultHit).Inc()
		return
	}
	s.cacheLookups.WithLabelValues(cacheResultMiss).Inc()
}

// Snapshot 는 통계 스냅샷을 반환한다.
func (s *Store) Snapshot() map[string]float64 {
	totalCalls := atomic.LoadInt64(&s.totalCalls)
	totalErrors := atomic.LoadInt64(&s.totalErrors)
	input := atomic.LoadInt64(&s.totalInputTokens)
	output := atomic.LoadInt64(&s.totalOutputTokens)
	durationMs := atomic.LoadInt64(&s.totalDurationMs)

	avgDuration := 0.0
	if totalCalls > 0 {
		avgDuration = float64(durationMs) / float64(totalCalls)
	}

	return map[string]float64{
		"total_calls":         float64(totalCalls),
		"total_errors":        float64(totalErrors),
		"total_input_tokens":  float64(input),
		"total_output_tokens": float64(output),
		"total_tokens":        float64(input + output),
		"total_duration_ms":   float64(durationMs),
		"avg_duration_ms":     avgDuration,
	}
}
