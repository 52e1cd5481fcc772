package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	pruneInterval = 10 * time.Minute
	// clientIdleTTL is how long a client without requests is remembered.
	clientIdleTTL = 25 * time.Hour
)

// RateLimiter enforces per-client request windows and daily quotas.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	clients map[string]*clientUsage
	now     func() time.Time
}

// clientUsage keeps the admitted request times of the last hour.
type clientUsage struct {
	hits     []time.Time
	dayStart time.Time
	dayCount int
	dayBytes int64
	lastSeen time.Time
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	LastMinute int
	LastHour   int
	Today      int
	DataToday  int64
}

// NewRateLimiter creates a rate limiter. A zero limit is not enforced.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit admits one request of dataSize bytes for clientID or
// explains why it is refused. Refused requests are not counted.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.client(clientID, now)
	u.trim(now)

	if err := rl.checkWindows(u, now); err != nil {
		return err
	}
	if err := rl.checkDailyQuotas(u, dataSize); err != nil {
		return err
	}

	u.hits = append(u.hits, now)
	u.dayCount++
	u.dayBytes += dataSize
	u.lastSeen = now
	return nil
}

func (rl *RateLimiter) client(id string, now time.Time) *clientUsage {
	u, ok := rl.clients[id]
	if !ok {
		u = &clientUsage{dayStart: startOfDay(now), lastSeen: now}
		rl.clients[id] = u
	}
	return u
}

// trim drops hits older than an hour and rolls the day over.
func (u *clientUsage) trim(now time.Time) {
	cut := 0
	for cut < len(u.hits) && now.Sub(u.hits[cut]) >= time.Hour {
		cut++
	}
	u.hits = u.hits[cut:]
	if day := startOfDay(now); !day.Equal(u.dayStart) {
		u.dayStart = day
		u.dayCount = 0
		u.dayBytes = 0
	}
}

// inWindow counts hits newer than window and returns the oldest of them.
func (u *clientUsage) inWindow(now time.Time, window time.Duration) (int, time.Time) {
	for i, t := range u.hits {
		if now.Sub(t) < window {
			return len(u.hits) - i, t
		}
	}
	return 0, time.Time{}
}

func (rl *RateLimiter) checkWindows(u *clientUsage, now time.Time) error {
	windows := []struct {
		name  string
		limit int
		span  time.Duration
	}{
		{"minute", rl.requestsPerMinute, time.Minute},
		{"hour", rl.requestsPerHour, time.Hour},
	}
	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		if n, oldest := u.inWindow(now, w.span); n >= w.limit {
			return &RateLimitError{Type: w.name, Limit: w.limit, RetryAfter: oldest.Add(w.span).Sub(now)}
		}
	}
	return nil
}

func (rl *RateLimiter) checkDailyQuotas(u *clientUsage, dataSize int64) error {
	resets := u.dayStart.AddDate(0, 0, 1)
	if rl.maxRequestsPerDay > 0 && u.dayCount >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.dayCount), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.dayBytes+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.dayBytes, Resets: resets}
	}
	return nil
}

// GetUsage returns current counters for a client.
func (rl *RateLimiter) GetUsage(clientID string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[clientID]
	if !ok {
		return Usage{}
	}
	now := rl.now()
	u.trim(now)
	minute, _ := u.inWindow(now, time.Minute)
	return Usage{LastMinute: minute, LastHour: len(u.hits), Today: u.dayCount, DataToday: u.dayBytes}
}

// Prune forgets clients idle for longer than ttl and returns how many.
func (rl *RateLimiter) Prune(ttl time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for id, u := range rl.clients {
		if now.Sub(u.lastSeen) > ttl {
			delete(rl.clients, id)
			n++
		}
	}
	return n
}

func (rl *RateLimiter) pruneLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Prune(clientIdleTTL); n > 0 {
				slog.Debug("pruned idle rate limit clients", "count", n)
			}
		}
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
