package pipeline

import (
	"maps"
	"sync"
	"time"
)

// Stats accumulates processing counters. It is owned by the caller and safe
// for concurrent use.
type Stats struct {
	mu        sync.Mutex
	total     int64
	succeeded int64
	degraded  int64
	failed    int64
	elapsed   time.Duration
	wins      map[string]int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Total       int64            `json:"total"`
	Succeeded   int64            `json:"succeeded"`
	Degraded    int64            `json:"degraded"`
	Failed      int64            `json:"failed"`
	TotalTimeMs float64          `json:"total_time_ms"`
	AvgTimeMs   float64          `json:"avg_time_ms"`
	SuccessRate float64          `json:"success_rate"`
	BackendWins map[string]int64 `json:"backend_wins"`
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{wins: make(map[string]int64)}
}

// Record adds one processed image. A nil result counts as a failure.
func (s *Stats) Record(res *Result, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	switch {
	case err != nil || res == nil:
		s.failed++
		return
	case res.Degraded:
		s.degraded++
	default:
		s.succeeded++
	}
	s.elapsed += res.Duration
	if res.Backend != "" {
		s.wins[res.Backend]++
	}
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{BackendWins: map[string]int64{}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := StatsSnapshot{
		Total:       s.total,
		Succeeded:   s.succeeded,
		Degraded:    s.degraded,
		Failed:      s.failed,
		TotalTimeMs: float64(s.elapsed) / float64(time.Millisecond),
		BackendWins: maps.Clone(s.wins),
	}
	if done := s.succeeded + s.degraded; done > 0 {
		out.AvgTimeMs = out.TotalTimeMs / float64(done)
	}
	if s.total > 0 {
		out.SuccessRate = float64(s.succeeded) / float64(s.total)
	}
	return out
}

// Reset clears all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total, s.succeeded, s.degraded, s.failed = 0, 0, 0, 0
	s.elapsed = 0
	s.wins = make(map[string]int64)
}
