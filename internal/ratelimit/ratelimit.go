// Package ratelimit provides fixed-window request limiting keyed by
// caller identity and endpoint.
package ratelimit

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/walletguard/internal/metrics"
	"github.com/mbd888/walletguard/internal/risk"
	"github.com/mbd888/walletguard/internal/syncutil"
)

// DefaultSweepInterval is how often stale window records are collected.
// Correctness never depends on the sweep; it only bounds memory.
const DefaultSweepInterval = 5 * time.Minute

type record struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests in fixed, non-overlapping windows per
// (identity, endpoint) key. Safe for concurrent use: the check-increment
// sequence for one key runs under that key's shard lock, so two requests
// can never both observe a pre-increment count.
type Limiter struct {
	locks   syncutil.ShardedMutex
	records sync.Map // map[string]*record
	stop    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// New creates a limiter and starts its background sweep.
func New() *Limiter {
	l := &Limiter{
		stop: make(chan struct{}),
		now:  time.Now,
	}
	go l.sweep(DefaultSweepInterval)
	return l
}

// Stop terminates the sweep goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func key(identity, endpoint string) string {
	return identity + "\x00" + endpoint
}

// Check records one request against the (identity, endpoint) window and
// returns the verdict. A request arriving exactly at the window boundary
// starts a fresh window with count 1.
func (l *Limiter) Check(identity, endpoint string, maxRequests int, window time.Duration) risk.CheckResult {
	k := key(identity, endpoint)
	unlock := l.locks.Lock(k)
	defer unlock()

	now := l.now()
	var rec *record
	if v, ok := l.records.Load(k); ok {
		rec = v.(*record)
	}
	if rec == nil || !now.Before(rec.resetAt) {
		rec = &record{resetAt: now.Add(window)}
		l.records.Store(k, rec)
	}
	rec.count++

	details := map[string]any{
		"count":       rec.count,
		"maxRequests": maxRequests,
		"resetInMs":   rec.resetAt.Sub(now).Milliseconds(),
	}

	if rec.count > maxRequests {
		metrics.RateLimitDecisions.WithLabelValues("deny").Inc()
		return risk.Fail(risk.CheckRateLimit, risk.LevelMedium,
			fmt.Sprintf("rate limit exceeded: %d requests (max %d)", rec.count, maxRequests),
		).WithDetails(details)
	}
	metrics.RateLimitDecisions.WithLabelValues("allow").Inc()
	return risk.Pass(risk.CheckRateLimit, risk.LevelNone, "within rate limit").WithDetails(details)
}

// sweep drops records whose window has already closed.
func (l *Limiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := l.now()
			l.records.Range(func(k, v any) bool {
				rec := v.(*record)
				unlock := l.locks.Lock(k.(string))
				if !now.Before(rec.resetAt) {
					l.records.Delete(k)
				}
				unlock()
				return true
			})
		case <-l.stop:
			return
		}
	}
}

// Middleware returns a gin handler that applies the limit per client,
// keyed by API key when present and client IP otherwise.
func (l *Limiter) Middleware(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.ClientIP()
		if apiKey := c.GetHeader("Authorization"); apiKey != "" {
			identity = "auth:" + apiKey[:min(20, len(apiKey))]
		}

		res := l.Check(identity, c.FullPath(), maxRequests, window)
		if !res.Success {
			c.JSON(http.StatusTooManyRequests, res)
			c.Abort()
			return
		}
		c.Next()
	}
}
