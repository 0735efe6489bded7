package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// gateEntry tracks one host's concurrency permits and request rate
type gateEntry struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// HostGate bounds concurrent requests per host and spaces request starts.
// The parallel extraction stage goes through it; the sequential crawler uses a Pacer instead.
type HostGate struct {
	entries map[string]*gateEntry
	mu      sync.Mutex
	limit   int64
	every   time.Duration
	log     *logrus.Entry
}

// NewHostGate allows maxPerHost in-flight requests per host and one request start per every.
// every <= 0 disables rate spacing.
func NewHostGate(maxPerHost int, every time.Duration, log *logrus.Entry) *HostGate {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostGate{
		entries: make(map[string]*gateEntry),
		limit:   limit,
		every:   every,
		log:     log,
	}
}

func (g *HostGate) entry(host string) *gateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[host]
	if !ok {
		limit := rate.Inf
		if g.every > 0 {
			limit = rate.Every(g.every)
		}
		e = &gateEntry{
			sem:     semaphore.NewWeighted(g.limit),
			limiter: rate.NewLimiter(limit, 1),
		}
		g.entries[host] = e
		g.log.WithFields(logrus.Fields{"host": host, "limit": g.limit, "every": g.every}).Debug("Created host gate")
	}
	return e
}

// Acquire blocks until a permit for host is free and the host's rate allows a new request.
// The returned release func must be called exactly once when the request is done.
func (g *HostGate) Acquire(ctx context.Context, host string) (release func(), err error) {
	e := g.entry(host)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		e.sem.Release(1)
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { e.sem.Release(1) }) }, nil
}

// Len returns the number of hosts gated so far
func (g *HostGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
