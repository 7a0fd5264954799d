package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coachbook/server/internal/api/problem"
	"github.com/coachbook/server/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic   RateLimitTier = "public"
	TierMutation RateLimitTier = "mutation"
)

const (
	limiterIdleTTL      = 15 * time.Minute
	limiterCleanupEvery = 5 * time.Minute
)

// RateLimiter applies per-client token buckets. Reads use the public tier;
// POST, PUT, PATCH and DELETE use the mutation tier.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute map[RateLimitTier]int
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierPublic:   cfg.PublicPerMinute,
			TierMutation: cfg.MutationPerMinute,
		},
		now: time.Now,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		tier := tierFor(r)
		limiter := l.limiter(tier, clientKey(r))
		if limiter != nil && !limiter.Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(l.perMinute[tier])))
			problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Too many requests", problem.ErrRateLimited, "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func tierFor(r *http.Request) RateLimitTier {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return TierMutation
	default:
		return TierPublic
	}
}

func retryAfterSeconds(perMinute int) int {
	if perMinute <= 0 {
		return 60
	}
	seconds := 60 / perMinute
	if seconds < 1 {
		return 1
	}
	return seconds
}

func (l *RateLimiter) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := l.perMinute[tier]
	if limit <= 0 {
		return nil
	}

	lookup := string(tier) + ":" + key
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.limiters[lookup]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit)
	l.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// Run evicts idle limiters until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

// clientKey uses the connection address only; forwarded headers are not trusted.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
