package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedLimiter(perMinute, perHour, perDay int, data int64) (*RateLimiter, *testClock) {
	clock := &testClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perHour, perDay, data)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newClockedLimiter(0, 0, 0, 0)

	for range 100 {
		require.NoError(t, rl.CheckRateLimit("user1", 100))
	}
	usage := rl.GetUsage("user1")
	assert.Equal(t, 100, usage.Today)
	assert.Equal(t, int64(10000), usage.DataToday)
}

func TestRateLimiter_MinuteWindowSlides(t *testing.T) {
	rl, clock := newClockedLimiter(2, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("user1", 0))
	clock.advance(30 * time.Second)
	require.NoError(t, rl.CheckRateLimit("user1", 0))

	err := rl.CheckRateLimit("user1", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 30*time.Second, rle.RetryAfter)

	// The first request leaves the window; the second still counts.
	clock.advance(30 * time.Second)
	require.NoError(t, rl.CheckRateLimit("user1", 0))
	assert.Error(t, rl.CheckRateLimit("user1", 0))

	// Other clients are independent.
	assert.NoError(t, rl.CheckRateLimit("user2", 0))
}

func TestRateLimiter_HourWindow(t *testing.T) {
	rl, clock := newClockedLimiter(0, 3, 0, 0)

	for range 3 {
		require.NoError(t, rl.CheckRateLimit("user1", 0))
		clock.advance(10 * time.Minute)
	}
	err := rl.CheckRateLimit("user1", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "hour", rle.Type)
	assert.Equal(t, 30*time.Minute, rle.RetryAfter)

	clock.advance(30 * time.Minute)
	assert.NoError(t, rl.CheckRateLimit("user1", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	rl, clock := newClockedLimiter(0, 0, 2, 0)
	require.NoError(t, rl.CheckRateLimit("user1", 0))
	require.NoError(t, rl.CheckRateLimit("user1", 0))

	err := rl.CheckRateLimit("user1", 0)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(2), qe.Used)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), qe.Resets)

	clock.advance(12 * time.Hour)
	assert.NoError(t, rl.CheckRateLimit("user1", 0))
}

func TestRateLimiter_DataQuota(t *testing.T) {
	rl, _ := newClockedLimiter(0, 0, 0, 1000)
	require.NoError(t, rl.CheckRateLimit("user1", 600))

	err := rl.CheckRateLimit("user1", 600)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(600), qe.Used)

	// A refused request is not charged.
	assert.NoError(t, rl.CheckRateLimit("user1", 400))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl, clock := newClockedLimiter(10, 0, 0, 0)
	require.NoError(t, rl.CheckRateLimit("old", 0))
	clock.advance(2 * time.Hour)
	require.NoError(t, rl.CheckRateLimit("new", 0))

	assert.Equal(t, 1, rl.Prune(time.Hour))
	assert.Equal(t, Usage{}, rl.GetUsage("old"))
	assert.Equal(t, 1, rl.GetUsage("new").Today)
}
