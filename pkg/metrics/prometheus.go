package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "location_insights"

// Registry holds every collector exported at /metrics.
var Registry = prometheus.NewRegistry()

var (
	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of campaign run stages.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage", "outcome"})

	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Calls made to external services.",
	}, []string{"service", "outcome"})

	llmTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_tokens_total",
		Help:      "Tokens consumed by generative model calls.",
	}, []string{"kind"})
)

func init() {
	Registry.MustRegister(
		stageDuration,
		upstreamRequests,
		llmTokens,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveStage records how long a run stage took.
func ObserveStage(stage string, elapsed time.Duration, err error) {
	stageDuration.WithLabelValues(stage, outcome(err)).Observe(elapsed.Seconds())
}

// CountUpstream records a call to an external service.
func CountUpstream(service string, err error) {
	upstreamRequests.WithLabelValues(service, outcome(err)).Inc()
}

// AddTokens records LLM token consumption.
func AddTokens(usage TokenUsage) {
	if usage.IsZero() {
		return
	}
	llmTokens.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	llmTokens.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
