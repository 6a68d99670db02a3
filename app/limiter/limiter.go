// Package limiter gates outgoing fetches so that requests to the same domain
// stay at least a configured interval apart, regardless of which feed they
// belong to.
package limiter

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DomainLimiter keeps one token-bucket limiter per domain (refill interval =
// the configured minimum spacing, burst 1). Reservations are taken under the
// mutex, so grants within a domain are handed out in arrival order, and the
// grant slot is booked at grant time, not at request time.
type DomainLimiter struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewDomainLimiter(interval time.Duration) *DomainLimiter {
	return &DomainLimiter{
		interval: interval,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// NewDomainLimiterWithClock injects a clock. For tests.
func NewDomainLimiterWithClock(interval time.Duration, now func() time.Time) *DomainLimiter {
	l := NewDomainLimiter(interval)
	l.now = now
	return l
}

// Reserve books the next fetch slot for the domain and returns how long the
// caller must wait before starting. Zero means the fetch may start now.
func (l *DomainLimiter) Reserve(domain string) time.Duration {
	domain = strings.ToLower(domain)

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[domain] = lim
	}

	now := l.now()
	return lim.ReserveN(now, 1).DelayFrom(now)
}

// Wait blocks until the domain's next slot, or until ctx is done.
func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	delay := l.Reserve(domain)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Domain extracts the rate-limiting key from a URL. An unparseable URL maps
// to the empty domain, which still serializes correctly.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
