package metrics

import (
	"sync"
	"time"
)

// Stage keys of the per-turn ledger.
const (
	StageMemoryGet    = "memory_get"
	StageSummary      = "summary"
	StageFAQAnswer    = "faq_answer"
	StageNSXScore     = "nsx_score"
	StageFAQSelection = "faq_selection"
	StageNSXAnswer    = "nsx_answer"
	StageSenseAnswer  = "sense_answer"
	StageFunctionCall = "function_call"
	StageReasoning    = "reasoning"
	StageMemorySet    = "memory_set"
	StageHistory      = "history"
	StageTotal        = "total"
)

// LatencyLedger maps stage name to elapsed time for one turn. A later
// record for the same stage replaces the earlier one. Safe for concurrent
// use by the parallel lookup workers.
type LatencyLedger struct {
	mu     sync.Mutex
	stages map[string]time.Duration
}

func NewLatencyLedger() *LatencyLedger {
	return &LatencyLedger{stages: make(map[string]time.Duration)}
}

func (l *LatencyLedger) Record(stage string, d time.Duration) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.stages[stage] = d
	l.mu.Unlock()
}

// Start returns a func that records the time elapsed since Start.
//
//	defer ledger.Start(metrics.StageReasoning)()
func (l *LatencyLedger) Start(stage string) func() {
	begin := time.Now()
	return func() { l.Record(stage, time.Since(begin)) }
}

// Get returns the recorded duration of stage.
func (l *LatencyLedger) Get(stage string) (time.Duration, bool) {
	if l == nil {
		return 0, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.stages[stage]
	return d, ok
}

// Seconds returns a copy of the ledger in seconds, the shape of the latency log.
func (l *LatencyLedger) Seconds() map[string]float64 {
	out := make(map[string]float64)
	if l == nil {
		return out
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, d := range l.stages {
		out[k] = d.Seconds()
	}
	return out
}

// Observe pushes every recorded stage into the stage latency histogram.
func (l *LatencyLedger) Observe() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, d := range l.stages {
		ObserveStage(k, d)
	}
}
