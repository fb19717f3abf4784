package llm

import (
	"slices"
	"sync"
	"time"
)

type callSample struct {
	at      time.Time
	backend string
	ms      int64
	failed  bool
}

// LatencySummary aggregates call latencies over the stats window.
type LatencySummary struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// BackendStats is the per-backend part of a snapshot.
type BackendStats struct {
	Calls    int            `json:"calls"`
	Failures int            `json:"failures"`
	Latency  LatencySummary `json:"latency"`
}

// StatsSnapshot is what /api/stats/llm reports.
type StatsSnapshot struct {
	Window        string                  `json:"window"`
	Backends      map[string]BackendStats `json:"backends"`
	Fallbacks     int64                   `json:"fallbacks"`
	BudgetRefunds int64                   `json:"budget_refunds"`
	BudgetUsed    int                     `json:"budget_used"`
}

// Stats records backend calls within a rolling window. Fallback and refund
// counters are lifetime totals.
type Stats struct {
	mu        sync.Mutex
	samples   []callSample
	window    time.Duration
	fallbacks int64
	refunds   int64
	now       func() time.Time
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{samples: make([]callSample, 0, 128), window: window, now: time.Now}
}

func (s *Stats) Record(backend string, d time.Duration, err error) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, callSample{at: now, backend: backend, ms: ms, failed: err != nil})
}

func (s *Stats) Fallback() {
	s.mu.Lock()
	s.fallbacks++
	s.mu.Unlock()
}

func (s *Stats) Refund() {
	s.mu.Lock()
	s.refunds++
	s.mu.Unlock()
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())

	byBackend := map[string][]int64{}
	failures := map[string]int{}
	for _, sm := range s.samples {
		byBackend[sm.backend] = append(byBackend[sm.backend], sm.ms)
		if sm.failed {
			failures[sm.backend]++
		}
	}
	out := StatsSnapshot{
		Window:        s.window.String(),
		Backends:      make(map[string]BackendStats, len(byBackend)),
		Fallbacks:     s.fallbacks,
		BudgetRefunds: s.refunds,
	}
	for name, values := range byBackend {
		out.Backends[name] = BackendStats{
			Calls:    len(values),
			Failures: failures[name],
			Latency:  summarize(values),
		}
	}
	return out
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.samples = slices.DeleteFunc(s.samples, func(sm callSample) bool {
		return sm.at.Before(cutoff)
	})
}

func summarize(values []int64) LatencySummary {
	if len(values) == 0 {
		return LatencySummary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	var sum int64
	for _, v := range sorted {
		sum += v
	}
	return LatencySummary{
		Count: len(sorted),
		MinMs: sorted[0],
		MaxMs: sorted[len(sorted)-1],
		AvgMs: float64(sum) / float64(len(sorted)),
		P50Ms: percentile(sorted, 50),
		P95Ms: percentile(sorted, 95),
		P99Ms: percentile(sorted, 99),
	}
}

// percentile interpolates linearly between closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * pct / 100
	lower := int(rank)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(rank-float64(lower))
}
