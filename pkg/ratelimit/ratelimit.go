// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package ratelimit provides a per-client token bucket rate limiter for the
// anonymous ceremony endpoints, which are the only part of the API an
// unauthenticated caller can hammer.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks a token bucket per client identifier.
type Limiter struct {
	mu       sync.RWMutex
	buckets  map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	enabled  bool

	cleanupInterval time.Duration
	maxIdle         time.Duration
	stopCleanup     chan struct{}
}

// Config holds rate limiter configuration.
type Config struct {
	// Enabled controls whether rate limiting is active.
	Enabled bool

	// RequestsPerMinute sets the sustained rate limit per client.
	RequestsPerMinute int

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to RequestsPerMinute.
	Burst int

	// CleanupInterval controls how often idle clients are evicted.
	// Defaults to 10 minutes.
	CleanupInterval time.Duration

	// MaxIdle is how long a client can be idle before eviction.
	// Defaults to 30 minutes.
	MaxIdle time.Duration
}

// New creates a rate limiter from the given configuration. A nil config
// yields a disabled limiter that allows everything.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{}
	}

	burst := config.Burst
	if burst == 0 {
		burst = config.RequestsPerMinute
	}
	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}
	maxIdle := config.MaxIdle
	if maxIdle == 0 {
		maxIdle = 30 * time.Minute
	}

	l := &Limiter{
		buckets:         make(map[string]*rate.Limiter),
		lastSeen:        make(map[string]time.Time),
		rate:            rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:           burst,
		enabled:         config.Enabled,
		cleanupInterval: cleanupInterval,
		maxIdle:         maxIdle,
		stopCleanup:     make(chan struct{}),
	}

	if config.Enabled {
		go l.cleanupWorker()
	}
	return l
}

// Allow reports whether a request from the given client is within limits.
func (l *Limiter) Allow(clientID string) bool {
	if !l.enabled {
		return true
	}
	return l.bucket(clientID).Allow()
}

// IsEnabled reports whether rate limiting is active.
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}

// ActiveClients returns the number of clients currently tracked.
func (l *Limiter) ActiveClients() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Stop stops the cleanup worker.
func (l *Limiter) Stop() {
	close(l.stopCleanup)
}

// bucket returns the token bucket for clientID, creating one on first use.
func (l *Limiter) bucket(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[clientID]
	if !ok {
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[clientID] = b
	}
	l.lastSeen[clientID] = time.Now()
	return b
}

func (l *Limiter) cleanupWorker() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup evicts clients that have been idle longer than maxIdle.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for clientID, seen := range l.lastSeen {
		if now.Sub(seen) > l.maxIdle {
			delete(l.buckets, clientID)
			delete(l.lastSeen, clientID)
		}
	}
}

// Middleware enforces the limiter per client IP, answering 429 when the
// client's bucket is empty.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded","code":429}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client identifier from the request. Proxied requests
// are identified by the first X-Forwarded-For entry, then X-Real-IP, then
// RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(first)
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
