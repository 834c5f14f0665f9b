package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"leadmarket/config"
	"leadmarket/models"
	"leadmarket/utils"
)

// LimitStatus is a point-in-time view of one (brand, service) counter.
type LimitStatus struct {
	Brand     string
	Service   string
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type limitEntry struct {
	count   int
	resetAt time.Time
}

// RateLimiter caps calls per (brand, service) within a fixed window. A
// counter whose window has passed reads as zero even before the sweep
// removes it. State lives in process memory.
type RateLimiter struct {
	mu      sync.Mutex
	limits  config.BrandLimits
	window  time.Duration
	entries map[string]*limitEntry
	logger  *utils.Logger
	now     func() time.Time
}

// NewRateLimiter creates a RateLimiter. A non-positive window selects one
// hour.
func NewRateLimiter(limits config.BrandLimits, window time.Duration, logger *utils.Logger) *RateLimiter {
	if window <= 0 {
		window = time.Hour
	}
	return &RateLimiter{
		limits:  limits,
		window:  window,
		entries: make(map[string]*limitEntry),
		logger:  logger,
		now:     time.Now,
	}
}

func limitKey(brand, service string) string {
	return strings.ToLower(brand) + ":" + service
}

// CheckLimit reports whether a call would be allowed right now. It never
// changes state.
func (rl *RateLimiter) CheckLimit(brand, service string) LimitStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.status(brand, service, rl.now())
}

func (rl *RateLimiter) status(brand, service string, now time.Time) LimitStatus {
	limit := rl.limits.Limit(brand, service)
	st := LimitStatus{Brand: brand, Service: service, Limit: limit, ResetAt: now.Add(rl.window)}
	if e, ok := rl.entries[limitKey(brand, service)]; ok && now.Before(e.resetAt) {
		st.Count = e.count
		st.ResetAt = e.resetAt
	}
	st.Remaining = max(limit-st.Count, 0)
	st.Allowed = st.Count < limit
	return st
}

// Increment records one call and returns how many remain in the window.
// Over the limit it records nothing and returns a *models.RateLimitError.
func (rl *RateLimiter) Increment(brand, service string) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := limitKey(brand, service)
	e, ok := rl.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &limitEntry{resetAt: now.Add(rl.window)}
		rl.entries[key] = e
	}

	limit := rl.limits.Limit(brand, service)
	if e.count >= limit {
		rl.logger.Warn("[ratelimit] %s exhausted (%d/%d), resets at %s",
			key, e.count, limit, e.resetAt.Format(time.RFC3339))
		return 0, &models.RateLimitError{Brand: brand, Service: service, ResetAt: e.resetAt}
	}
	e.count++
	return limit - e.count, nil
}

// Do runs fn if the brand still has quota for service, counting the call.
func (rl *RateLimiter) Do(ctx context.Context, brand, service string, fn func(context.Context) error) error {
	if _, err := rl.Increment(brand, service); err != nil {
		return err
	}
	return fn(ctx)
}

// Status lists every service configured or tracked for brand.
func (rl *RateLimiter) Status(brand string) []LimitStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	services := make(map[string]struct{})
	for svc := range rl.limits.Brands[strings.ToLower(brand)] {
		services[svc] = struct{}{}
	}
	prefix := strings.ToLower(brand) + ":"
	for key := range rl.entries {
		if svc, ok := strings.CutPrefix(key, prefix); ok {
			services[svc] = struct{}{}
		}
	}

	now := rl.now()
	out := make([]LimitStatus, 0, len(services))
	for svc := range services {
		out = append(out, rl.status(brand, svc, now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// Reset clears the counter for (brand, service), or every counter of the
// brand when service is empty.
func (rl *RateLimiter) Reset(brand, service string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if service != "" {
		delete(rl.entries, limitKey(brand, service))
		return
	}
	prefix := strings.ToLower(brand) + ":"
	for key := range rl.entries {
		if strings.HasPrefix(key, prefix) {
			delete(rl.entries, key)
		}
	}
}

// Sweep deletes expired counters and returns how many went.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	removed := 0
	for key, e := range rl.entries {
		if !now.Before(e.resetAt) {
			delete(rl.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Sweep(); n > 0 {
				rl.logger.Debug("[ratelimit] Swept %d expired counters", n)
			}
		}
	}
}

// Limited wraps next so every dispatch spends one unit of the brand's
// quota for service. Over quota, Dispatch returns a *models.RateLimitError
// without calling next.
func (rl *RateLimiter) Limited(brand, service string, next Dispatcher) Dispatcher {
	return &limitedDispatcher{rl: rl, brand: brand, service: service, next: next}
}

type limitedDispatcher struct {
	rl      *RateLimiter
	brand   string
	service string
	next    Dispatcher
}

func (d *limitedDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	return d.rl.Do(ctx, d.brand, d.service, func(ctx context.Context) error {
		return d.next.Dispatch(ctx, n)
	})
}
