package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/giantswarm/authcode-server/internal/clock"
)

const (
	// DefaultRateLimitMaxEntries bounds the number of tracked identifiers
	DefaultRateLimitMaxEntries = 10000

	// DefaultRateLimitIdleTimeout is how long an identifier may stay silent before its bucket is dropped
	DefaultRateLimitIdleTimeout = 30 * time.Minute

	rateLimitCleanupInterval = 5 * time.Minute
)

type bucket struct {
	key        string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies a token bucket per identifier, typically a client IP.
// The least recently used bucket is dropped when maxEntries is reached.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*list.Element
	order      *list.List // front is most recently used
	limit      rate.Limit
	burst      int
	maxEntries int
	clock      clock.Clock
	logger     *slog.Logger
	stop       chan struct{}
	stopOnce   sync.Once

	evictions int64
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond with the
// given burst per identifier. It starts a background sweep of idle buckets;
// call Stop to end it.
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	rl := newRateLimiter(requestsPerSecond, burst, DefaultRateLimitMaxEntries, clock.Real(), logger)
	go rl.sweep()
	return rl
}

// NewRateLimiterWithClock creates a rate limiter that reads time from clk
// and does not start a background sweep. Cleanup must be called explicitly.
func NewRateLimiterWithClock(requestsPerSecond, burst, maxEntries int, clk clock.Clock, logger *slog.Logger) *RateLimiter {
	return newRateLimiter(requestsPerSecond, burst, maxEntries, clk, logger)
}

func newRateLimiter(requestsPerSecond, burst, maxEntries int, clk clock.Clock, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxEntries < 0 {
		maxEntries = DefaultRateLimitMaxEntries
	}
	return &RateLimiter{
		buckets:    make(map[string]*list.Element),
		order:      list.New(),
		limit:      rate.Limit(requestsPerSecond),
		burst:      burst,
		maxEntries: maxEntries,
		clock:      clk,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Allow reports whether one more request from key is within its limit.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, ok := rl.buckets[key]; ok {
		rl.order.MoveToFront(elem)
		b := elem.Value.(*bucket)
		b.lastAccess = now
		return b.limiter.AllowN(now, 1)
	}

	if rl.maxEntries > 0 && len(rl.buckets) >= rl.maxEntries {
		rl.evictOldest()
	}

	b := &bucket{
		key:        key,
		limiter:    rate.NewLimiter(rl.limit, rl.burst),
		lastAccess: now,
	}
	rl.buckets[key] = rl.order.PushFront(b)
	return b.limiter.AllowN(now, 1)
}

// evictOldest must be called with mu held.
func (rl *RateLimiter) evictOldest() {
	elem := rl.order.Back()
	if elem == nil {
		return
	}
	b := rl.order.Remove(elem).(*bucket)
	delete(rl.buckets, b.key)
	rl.evictions++

	rl.logger.Debug("Rate limiter evicted least recently used bucket",
		"key", b.key,
		"total_evictions", rl.evictions)
}

// Cleanup drops buckets that have been idle for longer than maxIdle and
// returns how many were removed.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	// Idle buckets collect at the back of the list
	for elem := rl.order.Back(); elem != nil; {
		b := elem.Value.(*bucket)
		if now.Sub(b.lastAccess) <= maxIdle {
			break
		}
		prev := elem.Prev()
		rl.order.Remove(elem)
		delete(rl.buckets, b.key)
		removed++
		elem = prev
	}

	if removed > 0 {
		rl.logger.Debug("Rate limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.buckets))
	}
	return removed
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup(DefaultRateLimitIdleTimeout)
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Stats holds rate limiter statistics for monitoring
type Stats struct {
	CurrentEntries int
	MaxEntries     int
	TotalEvictions int64
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		CurrentEntries: len(rl.buckets),
		MaxEntries:     rl.maxEntries,
		TotalEvictions: rl.evictions,
	}
}
