package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestStageTimerMarks(t *testing.T) {
	timer := newStageTimer(fakeClock(10 * time.Millisecond))

	assert.Equal(t, 10*time.Millisecond, timer.Mark("analyze"))
	assert.Equal(t, 10*time.Millisecond, timer.Mark("segment"))
	timer.Mark("segment")

	stages := timer.Stages()
	require.Len(t, stages, 3)
	assert.Equal(t, "analyze", stages[0].Name)

	ms := timer.Millis()
	assert.InDelta(t, 10.0, ms["analyze"], 1e-9)
	assert.InDelta(t, 20.0, ms["segment"], 1e-9)
	assert.Contains(t, timer.String(), "analyze=10ms")
}

func TestStageTimerStagesIsCopy(t *testing.T) {
	timer := NewStageTimer()
	timer.Mark("a")
	s := timer.Stages()
	s[0].Name = "changed"
	assert.Equal(t, "a", timer.Stages()[0].Name)
	assert.GreaterOrEqual(t, timer.Total(), time.Duration(0))
}

func TestGetMemoryStats(t *testing.T) {
	stats := GetMemoryStats()
	assert.Positive(t, stats.AllocBytes)
	assert.Positive(t, stats.SysBytes)
	assert.Positive(t, stats.Goroutines)
	assert.Contains(t, stats.String(), "KB")
}
