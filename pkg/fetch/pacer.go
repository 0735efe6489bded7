package fetch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Pacer enforces a minimum interval between consecutive requests of one crawl.
// It is not safe for concurrent use; each crawl owns its own Pacer.
type Pacer struct {
	interval    time.Duration
	lastRequest time.Time // Carries the monotonic reading from time.Now
	log         *logrus.Entry
}

// NewPacer creates a Pacer. An interval <= 0 disables pacing.
func NewPacer(interval time.Duration, log *logrus.Entry) *Pacer {
	return &Pacer{interval: interval, log: log}
}

// Wait sleeps until at least interval has elapsed since the last Mark.
// Elapsed time is subtracted, so slow fetches do not add extra delay.
// Returns ctx.Err() if cancelled while sleeping.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 || p.lastRequest.IsZero() {
		return ctx.Err()
	}

	elapsed := time.Since(p.lastRequest)
	if elapsed >= p.interval {
		return ctx.Err()
	}

	sleep := p.interval - elapsed
	p.log.WithFields(logrus.Fields{"sleep": sleep, "interval": p.interval, "elapsed": elapsed}).Debug("Pacing request")

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mark records the start of a request. Call it right before issuing the request.
func (p *Pacer) Mark() {
	p.lastRequest = time.Now()
}
