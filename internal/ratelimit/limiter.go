// Package ratelimit provides the process-wide governor for outbound Quora
// Ads API calls.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default API budget: 1800 requests per rolling hour.
const (
	DefaultCapacity = 1800
	DefaultWindow   = time.Hour
)

// Limiter admits at most capacity acquisitions in any trailing window.
// Admissions are paced at window/capacity intervals, which keeps the
// trailing-window ceiling strict rather than allowing an initial burst.
// A single Limiter instance must gate every outbound call in the process,
// regardless of how many fetch workers are running.
//
// The limiter also carries the request counter: one increment per
// completed HTTP attempt, success or failure. The counter is diagnostic
// only and is safe for concurrent use.
type Limiter struct {
	lim      *rate.Limiter
	requests atomic.Int64

	// Injectable for simulated-clock tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter admitting capacity calls per window.
func New(capacity int, window time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		lim:   rate.NewLimiter(rate.Every(window/time.Duration(capacity)), 1),
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Acquire blocks until the limiter admits one call or ctx is done.
// It never rejects while ctx is live, only delays. Admission order is
// FIFO under the underlying reservation queue.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "ratelimit: acquire")
	}

	r := l.lim.ReserveN(l.now(), 1)
	if !r.OK() {
		return eris.New("ratelimit: reservation refused")
	}

	delay := r.DelayFrom(l.now())
	if delay <= 0 {
		return nil
	}

	if err := l.sleep(ctx, delay); err != nil {
		r.CancelAt(l.now())
		return eris.Wrap(err, "ratelimit: acquire")
	}
	return nil
}

// CountRequest records one completed HTTP attempt and returns the running
// total.
func (l *Limiter) CountRequest() int64 {
	return l.requests.Add(1)
}

// Requests returns the number of HTTP attempts recorded so far.
func (l *Limiter) Requests() int64 {
	return l.requests.Load()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
