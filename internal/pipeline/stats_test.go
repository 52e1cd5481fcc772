package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	s.Record(&Result{Backend: "u2net", Duration: 20 * time.Millisecond}, nil)
	s.Record(&Result{Backend: "threshold", Degraded: true, Duration: 10 * time.Millisecond}, nil)
	s.Record(nil, errors.New("boom"))
	s.Record(&Result{Backend: "u2net"}, errors.New("late failure"))

	snap := s.Snapshot()
	assert.EqualValues(t, 4, snap.Total)
	assert.EqualValues(t, 1, snap.Succeeded)
	assert.EqualValues(t, 1, snap.Degraded)
	assert.EqualValues(t, 2, snap.Failed)
	assert.InDelta(t, 30.0, snap.TotalTimeMs, 1e-9)
	assert.InDelta(t, 15.0, snap.AvgTimeMs, 1e-9)
	assert.InDelta(t, 0.25, snap.SuccessRate, 1e-9)
	assert.Equal(t, map[string]int64{"u2net": 1, "threshold": 1}, snap.BackendWins)

	snap.BackendWins["u2net"] = 99
	assert.EqualValues(t, 1, s.Snapshot().BackendWins["u2net"])

	s.Reset()
	assert.Zero(t, s.Snapshot().Total)
	assert.Empty(t, s.Snapshot().BackendWins)
}

func TestStatsNilSafe(t *testing.T) {
	var s *Stats
	s.Record(&Result{}, nil)
	assert.NotNil(t, s.Snapshot().BackendWins)
}

func TestStatsConcurrent(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Record(&Result{Backend: "edge_fill"}, nil)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 50, s.Snapshot().BackendWins["edge_fill"])
}
