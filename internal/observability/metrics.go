package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates metrics for call processing.
type Metrics struct {
	mu sync.Mutex

	// Counters
	utteranceTotal  atomic.Int64
	utteranceFailed atomic.Int64
	callsStarted    atomic.Int64
	callsEnded      atomic.Int64

	// Per-tool metrics
	toolMetrics map[string]*ToolMetrics

	// Duration ring for recent utterances
	durations    []time.Duration
	maxDurations int
}

// ToolMetrics represents metrics for a specific tool.
type ToolMetrics struct {
	invocationCount atomic.Int64
	totalDuration   atomic.Int64 // milliseconds
	errorCount      atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		toolMetrics:  make(map[string]*ToolMetrics),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// Global metrics instance.
var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordUtterance records a processed utterance.
func (m *Metrics) RecordUtterance() {
	m.utteranceTotal.Add(1)
}

// RecordUtteranceFailure records a failed utterance.
func (m *Metrics) RecordUtteranceFailure() {
	m.utteranceFailed.Add(1)
}

// RecordCallStarted records a call start.
func (m *Metrics) RecordCallStarted() {
	m.callsStarted.Add(1)
}

// RecordCallEnded records a call end.
func (m *Metrics) RecordCallEnded() {
	m.callsEnded.Add(1)
}

// RecordDuration records an utterance round-trip duration.
func (m *Metrics) RecordDuration(duration time.Duration) {
	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		// Remove oldest duration (FIFO)
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// RecordToolInvocation records a tool dispatch with its duration and outcome.
func (m *Metrics) RecordToolInvocation(tool string, duration time.Duration, failed bool) {
	tm := m.getToolMetrics(tool)
	tm.invocationCount.Add(1)
	tm.totalDuration.Add(duration.Milliseconds())
	if failed {
		tm.errorCount.Add(1)
	}
}

// GetUtteranceTotal returns the total number of processed utterances.
func (m *Metrics) GetUtteranceTotal() int64 {
	return m.utteranceTotal.Load()
}

// GetUtteranceFailed returns the total number of failed utterances.
func (m *Metrics) GetUtteranceFailed() int64 {
	return m.utteranceFailed.Load()
}

func (m *Metrics) getToolMetrics(tool string) *ToolMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.toolMetrics[tool]; !ok {
		m.toolMetrics[tool] = &ToolMetrics{}
	}
	return m.toolMetrics[tool]
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.utteranceTotal.Store(0)
	m.utteranceFailed.Store(0)
	m.callsStarted.Store(0)
	m.callsEnded.Store(0)

	m.mu.Lock()
	m.toolMetrics = make(map[string]*ToolMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	toolSnapshots := make(map[string]*ToolMetricsSnapshot, len(m.toolMetrics))
	for tool, tm := range m.toolMetrics {
		count := tm.invocationCount.Load()
		snapshot := &ToolMetricsSnapshot{
			InvocationCount: count,
			TotalDuration:   tm.totalDuration.Load(),
			ErrorCount:      tm.errorCount.Load(),
		}
		if count > 0 {
			snapshot.AverageDuration = snapshot.TotalDuration / count
		}
		toolSnapshots[tool] = snapshot
	}

	var avgMs int64
	if len(m.durations) > 0 {
		var total time.Duration
		for _, d := range m.durations {
			total += d
		}
		avgMs = (total / time.Duration(len(m.durations))).Milliseconds()
	}

	return &MetricsSnapshot{
		UtteranceTotal:    m.utteranceTotal.Load(),
		UtteranceFailed:   m.utteranceFailed.Load(),
		CallsStarted:      m.callsStarted.Load(),
		CallsEnded:        m.callsEnded.Load(),
		ToolMetrics:       toolSnapshots,
		DurationCount:     len(m.durations),
		AverageDurationMs: avgMs,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	UtteranceTotal  int64
	UtteranceFailed int64
	CallsStarted    int64
	CallsEnded      int64
	ToolMetrics     map[string]*ToolMetricsSnapshot
	// DurationCount is the number of recent utterances in the duration ring,
	// AverageDurationMs their mean round-trip time.
	DurationCount     int
	AverageDurationMs int64
}

// ToolMetricsSnapshot represents metrics for a specific tool.
type ToolMetricsSnapshot struct {
	InvocationCount int64
	TotalDuration   int64
	ErrorCount      int64
	AverageDuration int64
}

// SuccessRate returns the utterance success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.UtteranceTotal == 0 {
		return 100.0
	}
	return float64(s.UtteranceTotal-s.UtteranceFailed) / float64(s.UtteranceTotal) * 100.0
}
