package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides IP-based rate limiting using a token bucket per
// client.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitorLimiter
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	stopOnce sync.Once
	done     chan struct{}
}

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	Rate            float64 // requests per second
	Burst           int
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns defaults sized for a handful of
// clubhouse devices on a LAN.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            10,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewRateLimiter creates a new IP-based rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*visitorLimiter),
		rate:     rate.Limit(cfg.Rate),
		burst:    cfg.Burst,
		cleanup:  cfg.CleanupInterval,
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from the given IP should be allowed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	v, exists := rl.limiters[ip]
	if !exists {
		v = &visitorLimiter{
			limiter:  rate.NewLimiter(rl.rate, rl.burst),
			lastSeen: time.Now(),
		}
		rl.limiters[ip] = v
	} else {
		v.lastSeen = time.Now()
	}
	rl.mu.Unlock()

	return v.limiter.Allow()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.removeStale()
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) removeStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-rl.cleanup * 2)
	for ip, v := range rl.limiters {
		if v.lastSeen.Before(threshold) {
			delete(rl.limiters, ip)
		}
	}
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
}

// Middleware applies rate limiting per client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(extractIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractIP extracts the client IP from the request. RemoteAddr is
// trusted; no reverse proxy is assumed on a LAN deployment.
func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuthFailureLimiter tracks authentication failures per IP and locks an
// IP out after repeated bad credentials.
type AuthFailureLimiter struct {
	mu       sync.RWMutex
	failures map[string]*authFailure
	maxFails int
	window   time.Duration
	lockout  time.Duration
}

type authFailure struct {
	count    int
	firstAt  time.Time
	lockedAt time.Time
}

// AuthFailureLimiterConfig configures auth failure limiting.
type AuthFailureLimiterConfig struct {
	MaxFailures   int
	Window        time.Duration
	LockoutPeriod time.Duration
}

// DefaultAuthFailureLimiterConfig returns sensible defaults.
func DefaultAuthFailureLimiterConfig() AuthFailureLimiterConfig {
	return AuthFailureLimiterConfig{
		MaxFailures:   5,
		Window:        5 * time.Minute,
		LockoutPeriod: 15 * time.Minute,
	}
}

// NewAuthFailureLimiter creates a new auth failure limiter.
func NewAuthFailureLimiter(cfg AuthFailureLimiterConfig) *AuthFailureLimiter {
	return &AuthFailureLimiter{
		failures: make(map[string]*authFailure),
		maxFails: cfg.MaxFailures,
		window:   cfg.Window,
		lockout:  cfg.LockoutPeriod,
	}
}

// IsLocked reports whether an IP is currently locked out.
func (afl *AuthFailureLimiter) IsLocked(ip string) bool {
	afl.mu.RLock()
	defer afl.mu.RUnlock()

	f, exists := afl.failures[ip]
	if !exists {
		return false
	}
	if !f.lockedAt.IsZero() {
		return time.Since(f.lockedAt) < afl.lockout
	}
	return false
}

// RecordFailure records an authentication failure for an IP.
// Returns the number of remaining attempts, or -1 if now locked.
func (afl *AuthFailureLimiter) RecordFailure(ip string) int {
	afl.mu.Lock()
	defer afl.mu.Unlock()

	now := time.Now()
	f, exists := afl.failures[ip]
	if !exists {
		afl.failures[ip] = &authFailure{count: 1, firstAt: now}
		return afl.maxFails - 1
	}

	if now.Sub(f.firstAt) > afl.window {
		f.count = 1
		f.firstAt = now
		f.lockedAt = time.Time{}
		return afl.maxFails - 1
	}

	f.count++
	if f.count >= afl.maxFails {
		f.lockedAt = now
		return -1
	}
	return afl.maxFails - f.count
}

// RecordSuccess clears the failure record for an IP.
func (afl *AuthFailureLimiter) RecordSuccess(ip string) {
	afl.mu.Lock()
	defer afl.mu.Unlock()
	delete(afl.failures, ip)
}

// LockoutSecondsRemaining returns seconds until the lockout expires.
func (afl *AuthFailureLimiter) LockoutSecondsRemaining(ip string) int {
	afl.mu.RLock()
	defer afl.mu.RUnlock()

	f, exists := afl.failures[ip]
	if !exists || f.lockedAt.IsZero() {
		return 0
	}
	remaining := afl.lockout - time.Since(f.lockedAt)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Middleware blocks requests from locked-out IPs.
func (afl *AuthFailureLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if afl.IsLocked(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(afl.LockoutSecondsRemaining(ip)))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
