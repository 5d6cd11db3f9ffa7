package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nsxbot_stage_latency_seconds",
		Help:    "Latency of each stage of a chat turn in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"stage"})

	toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nsxbot_tool_calls_total",
		Help: "Knowledge lookup calls by tool and outcome (hit/sentinel/error)",
	}, []string{"tool", "outcome"})

	turns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nsxbot_turns_total",
		Help: "Chat turns by outcome (finish/forced_finish/harmful/too_long/error)",
	}, []string{"outcome"})

	iterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nsxbot_reasoning_iterations",
		Help:    "Reasoning iterations used per turn",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	harmful = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nsxbot_harmful_total",
		Help: "Texts flagged by moderation (message/answer)",
	}, []string{"side"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// ObserveStage records one stage duration.
func ObserveStage(stage string, d time.Duration) {
	ensureRegistered()
	stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func IncToolCall(tool, outcome string) {
	ensureRegistered()
	toolCalls.WithLabelValues(tool, outcome).Inc()
}

func IncTurn(outcome string) {
	ensureRegistered()
	turns.WithLabelValues(outcome).Inc()
}

func ObserveIterations(n int) {
	ensureRegistered()
	iterations.Observe(float64(n))
}

func IncHarmful(side string) {
	ensureRegistered()
	harmful.WithLabelValues(side).Inc()
}

// Collectors exposes all collectors for registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{stageLatency, toolCalls, turns, iterations, harmful}
}
