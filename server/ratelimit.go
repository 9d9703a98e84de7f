package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/defenra/bidi/config"
	"github.com/defenra/bidi/utils"
)

// RateLimiter keeps a sliding window of request times per client address
type RateLimiter struct {
	mu      sync.RWMutex
	clients map[string]*clientTracker
	now     func() time.Time
}

type clientTracker struct {
	requests     []time.Time
	blockedUntil time.Time
	mu           sync.Mutex
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientTracker),
		now:     time.Now,
	}
}

// Allow records a request from ip. A client over the limit stays blocked
// for the configured duration. MaxRequests <= 0 disables limiting.
func (rl *RateLimiter) Allow(ip string, cfg config.RateLimit) (bool, string) {
	if cfg.MaxRequests <= 0 {
		return true, ""
	}

	rl.mu.Lock()
	tracker, exists := rl.clients[ip]
	if !exists {
		tracker = &clientTracker{
			requests: make([]time.Time, 0, cfg.MaxRequests),
		}
		rl.clients[ip] = tracker
	}
	rl.mu.Unlock()

	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	now := rl.now()

	if now.Before(tracker.blockedUntil) {
		remaining := tracker.blockedUntil.Sub(now).Round(time.Second)
		return false, fmt.Sprintf("rate limit exceeded, blocked for %v", remaining)
	}

	windowStart := now.Add(-time.Duration(cfg.WindowSeconds) * time.Second)
	valid := tracker.requests[:0]
	for _, t := range tracker.requests {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	tracker.requests = valid

	if len(tracker.requests) >= cfg.MaxRequests {
		tracker.blockedUntil = now.Add(time.Duration(cfg.BlockDurationSeconds) * time.Second)
		return false, fmt.Sprintf("rate limit exceeded (%d requests in %ds)", cfg.MaxRequests, cfg.WindowSeconds)
	}

	tracker.requests = append(tracker.requests, now)
	return true, ""
}

// ClientIP returns the first valid address found in the trusted proxy
// headers, falling back to the connection's remote address.
func ClientIP(r *http.Request, proxyHeaders []string) string {
	for _, header := range proxyHeaders {
		val := r.Header.Get(header)
		if val == "" {
			continue
		}
		first, _, _ := strings.Cut(val, ",")
		ip := strings.TrimSpace(first)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return ip
}

// Cleanup forgets clients with no requests in the window and no active block
func (rl *RateLimiter) Cleanup(window time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, tracker := range rl.clients {
		tracker.mu.Lock()
		idle := now.After(tracker.blockedUntil) &&
			(len(tracker.requests) == 0 || !tracker.requests[len(tracker.requests)-1].After(now.Add(-window)))
		tracker.mu.Unlock()
		if idle {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every five minutes until ctx ends
func (rl *RateLimiter) StartCleanup(ctx context.Context, window time.Duration) {
	utils.SafeGo(func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup(window)
			case <-ctx.Done():
				return
			}
		}
	}, "ratelimit-cleanup")
}

func (rl *RateLimiter) ResetIP(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, ip)
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.clients)
}
