package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atelierlabs/atelier/llm"
)

var (
	// Query metrics
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_queries_total",
		Help: "Total number of queries processed, by expert",
	}, []string{"expert"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atelier_run_duration_seconds",
		Help:    "Duration of full query runs in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"expert"})

	// Routing metrics
	routingFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_routing_fallbacks_total",
		Help: "Total number of routing decisions that fell back to the default expert",
	})

	// Tool metrics
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_tool_calls_total",
		Help: "Total number of tool executions",
	}, []string{"tool", "status"})

	ceilingHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_tool_call_ceiling_hits_total",
		Help: "Total number of runs stopped by the tool call ceiling",
	})

	// LLM metrics
	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_llm_requests_total",
		Help: "Total number of model requests",
	}, []string{"provider", "status"})

	llmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atelier_llm_request_duration_seconds",
		Help:    "Model request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"provider"})

	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atelier_active_sessions",
		Help: "Number of active sessions",
	})
)

// Metrics tracks metrics for a single query run
type Metrics struct {
	expert    string
	startTime time.Time
}

// NewRunMetrics creates a new metrics tracker for a query run
func NewRunMetrics(expert string) *Metrics {
	return &Metrics{
		expert:    expert,
		startTime: time.Now(),
	}
}

// RecordQuery records the start of a query
func (m *Metrics) RecordQuery() {
	queriesTotal.WithLabelValues(m.expert).Inc()
}

// RecordRunEnd records the end of a query run
func (m *Metrics) RecordRunEnd() {
	duration := time.Since(m.startTime).Seconds()
	runDuration.WithLabelValues(m.expert).Observe(duration)
}

// RecordToolCall records a tool execution
func (m *Metrics) RecordToolCall(tool string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	toolCalls.WithLabelValues(tool, status).Inc()
}

// RecordCeilingHit records a run stopped by the tool call ceiling
func (m *Metrics) RecordCeilingHit() {
	ceilingHits.Inc()
}

// RecordRoutingFallback records a routing decision that fell back to the default
func RecordRoutingFallback() {
	routingFallbacks.Inc()
}

// IncActiveSessions increments the active session gauge
func IncActiveSessions() {
	activeSessions.Inc()
}

// DecActiveSessions decrements the active session gauge
func DecActiveSessions() {
	activeSessions.Dec()
}

// LLMMiddleware returns client middleware that times and counts every model
// request by provider.
func LLMMiddleware() llm.Middleware {
	return func(next llm.CompleteFunc) llm.CompleteFunc {
		return func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			provider := llm.ResolveProvider(req.Model)
			if resp != nil && resp.Provider != "" {
				provider = resp.Provider
			}
			if provider == "" {
				provider = "unknown"
			}

			llmLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
			status := "success"
			if err != nil {
				status = "error"
			}
			llmRequests.WithLabelValues(provider, status).Inc()

			return resp, err
		}
	}
}
