package pipeline

import (
	"slices"
	"sync"
	"time"
)

// LatencySnapshot aggregates the samples of one operation.
type LatencySnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

type sample struct {
	at time.Time
	ms int64
}

// LatencyStats keeps a rolling window of durations per named operation,
// e.g. "chunk" and "index".
type LatencyStats struct {
	mu     sync.Mutex
	maxAge time.Duration
	ops    map[string][]sample
}

func NewLatencyStats(maxAge time.Duration) *LatencyStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LatencyStats{maxAge: maxAge, ops: make(map[string][]sample)}
}

// Observe records one duration for op. Negative durations count as zero.
func (s *LatencyStats) Observe(op string, d time.Duration) {
	ms := max(d.Milliseconds(), 0)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[op] = append(s.prune(s.ops[op], now), sample{at: now, ms: ms})
}

// Snapshot returns the current aggregate for every operation with samples.
func (s *LatencyStats) Snapshot() map[string]LatencySnapshot {
	now := time.Now()
	out := make(map[string]LatencySnapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	for op, samples := range s.ops {
		samples = s.prune(samples, now)
		s.ops[op] = samples
		if len(samples) == 0 {
			continue
		}
		out[op] = summarize(samples)
	}
	return out
}

// prune drops samples older than maxAge. Samples are in arrival order.
func (s *LatencyStats) prune(samples []sample, now time.Time) []sample {
	cutoff := now.Add(-s.maxAge)
	i := 0
	for i < len(samples) && samples[i].at.Before(cutoff) {
		i++
	}
	return samples[i:]
}

func summarize(samples []sample) LatencySnapshot {
	values := make([]int64, len(samples))
	var sum int64
	for i, sm := range samples {
		values[i] = sm.ms
		sum += sm.ms
	}
	slices.Sort(values)
	return LatencySnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(len(sorted)-1) * min(max(pct, 0), 100) / 100
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return float64(sorted[len(sorted)-1])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
