package strava

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Strava rate limits default to 100 requests per 15 minutes and 1000 per day.
// The tracker only records what the API reports; pacing is up to the caller.

// RateLimitStatus is the last reported rate-limit state.
type RateLimitStatus struct {
	ShortLimit int
	ShortUsage int
	DailyLimit int
	DailyUsage int
}

// ShortRemaining returns the requests left in the 15-minute window.
func (s RateLimitStatus) ShortRemaining() int { return s.ShortLimit - s.ShortUsage }

// DailyRemaining returns the requests left today.
func (s RateLimitStatus) DailyRemaining() int { return s.DailyLimit - s.DailyUsage }

// RateLimitTracker follows Strava's rate-limit response headers
type RateLimitTracker struct {
	mu     sync.Mutex
	status RateLimitStatus
}

// NewRateLimitTracker creates a tracker seeded with Strava's default limits
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{status: RateLimitStatus{ShortLimit: 100, DailyLimit: 1000}}
}

// UpdateFromHeaders updates the state from Strava response headers
func (r *RateLimitTracker) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strava returns: X-RateLimit-Limit: "100,1000" and X-RateLimit-Usage: "34,512"
	if short, daily, ok := parsePair(h.Get("X-RateLimit-Usage")); ok {
		r.status.ShortUsage, r.status.DailyUsage = short, daily
	}
	if short, daily, ok := parsePair(h.Get("X-RateLimit-Limit")); ok {
		r.status.ShortLimit, r.status.DailyLimit = short, daily
	}
}

// Status returns the last reported state
func (r *RateLimitTracker) Status() RateLimitStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func parsePair(v string) (int, int, bool) {
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	a, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}
