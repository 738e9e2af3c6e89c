package antidetect

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// HostThrottle spaces out requests to the same host with a randomized gap
// so repeated lookups against one portal do not arrive in bursts.
type HostThrottle struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	minDelay time.Duration
	maxDelay time.Duration
}

// NewHostThrottle creates a throttle with a per-host gap in [minDelay, maxDelay)
func NewHostThrottle(minDelay, maxDelay time.Duration) *HostThrottle {
	return &HostThrottle{
		lastSeen: make(map[string]time.Time),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// Wait blocks until host may be contacted again or ctx is done
func (t *HostThrottle) Wait(ctx context.Context, host string) error {
	t.mu.Lock()
	now := time.Now()
	next := now
	if last, ok := t.lastSeen[host]; ok {
		if earliest := last.Add(t.randomDelay()); earliest.After(now) {
			next = earliest
		}
	}
	// Reserve the slot before sleeping so concurrent callers queue up behind it
	t.lastSeen[host] = next
	t.mu.Unlock()

	wait := next.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// randomDelay returns a random duration between minDelay and maxDelay
func (t *HostThrottle) randomDelay() time.Duration {
	if t.maxDelay <= t.minDelay {
		return t.minDelay
	}
	diff := t.maxDelay - t.minDelay
	return t.minDelay + time.Duration(rand.Int63n(int64(diff)))
}

// UserAgentRotator rotates through user agent strings
type UserAgentRotator struct {
	mu         sync.Mutex
	userAgents []string
	index      int
}

// NewUserAgentRotator creates a new user agent rotator
func NewUserAgentRotator(userAgents []string) *UserAgentRotator {
	if len(userAgents) == 0 {
		userAgents = DefaultUserAgents()
	}
	shuffled := make([]string, len(userAgents))
	copy(shuffled, userAgents)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return &UserAgentRotator{userAgents: shuffled}
}

// Next returns the next user agent in rotation
func (r *UserAgentRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ua := r.userAgents[r.index]
	r.index = (r.index + 1) % len(r.userAgents)
	return ua
}

// DefaultUserAgents are desktop browser identities used for page loads
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	}
}
