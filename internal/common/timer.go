// Package common provides shared timing and memory helpers.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Stage is one named span measured by a StageTimer.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// StageTimer measures consecutive pipeline stages. Each Mark closes the span
// that started at the previous Mark (or at construction).
type StageTimer struct {
	start  time.Time
	last   time.Time
	stages []Stage
	now    func() time.Time
}

// NewStageTimer starts a timer.
func NewStageTimer() *StageTimer {
	return newStageTimer(time.Now)
}

func newStageTimer(now func() time.Time) *StageTimer {
	t := now()
	return &StageTimer{start: t, last: t, now: now}
}

// Mark records the span since the previous mark under name and returns it.
func (t *StageTimer) Mark(name string) time.Duration {
	n := t.now()
	d := n.Sub(t.last)
	t.last = n
	t.stages = append(t.stages, Stage{Name: name, Duration: d})
	return d
}

// Stages returns the recorded spans in order.
func (t *StageTimer) Stages() []Stage {
	return append([]Stage(nil), t.stages...)
}

// Total is the time since the timer started.
func (t *StageTimer) Total() time.Duration {
	return t.now().Sub(t.start)
}

// Millis returns stage durations in milliseconds keyed by name. Repeated
// names are summed.
func (t *StageTimer) Millis() map[string]float64 {
	out := make(map[string]float64, len(t.stages))
	for _, s := range t.stages {
		out[s.Name] += float64(s.Duration) / float64(time.Millisecond)
	}
	return out
}

func (t *StageTimer) String() string {
	parts := make([]string, 0, len(t.stages))
	for _, s := range t.stages {
		parts = append(parts, fmt.Sprintf("%s=%v", s.Name, s.Duration.Round(time.Microsecond)))
	}
	return strings.Join(parts, " ")
}
