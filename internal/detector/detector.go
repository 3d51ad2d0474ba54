// Package detector implements the Failure Detector (C5): a single
// long-lived watchdog goroutine guarding a randomized timeout, rather
// than a fresh timer per heartbeat. Reset on every accepted heartbeat;
// on deadline expiry it pings the cached Tracker once before declaring
// it unreachable and invoking the election callback.
package detector

import (
	"context"
	"math/rand"
	"time"
)

// Pinger is the narrow capability the watchdog needs against the
// current Tracker: a single bounded liveness check.
type Pinger interface {
	Ping(ctx context.Context) (bool, error)
}

// Watchdog owns the failure-detection timer for one peer.
type Watchdog struct {
	min, max time.Duration
	pingFn   func(ctx context.Context) (bool, error)
	onSuspectTracker func()

	reset chan struct{}
	done  chan struct{}
}

// New returns a Watchdog with a randomized timeout drawn uniformly
// from [min, max] on every reset, calling pingTracker on deadline
// expiry to double-check before calling onSuspectTracker.
func New(min, max time.Duration, pingTracker func(ctx context.Context) (bool, error), onSuspectTracker func()) *Watchdog {
	return &Watchdog{
		min:              min,
		max:              max,
		pingFn:           pingTracker,
		onSuspectTracker: onSuspectTracker,
		reset:            make(chan struct{}, 1),
		done:             make(chan struct{}),
	}
}

func (w *Watchdog) randomTimeout() time.Duration {
	span := w.max - w.min
	if span <= 0 {
		return w.min
	}
	return w.min + time.Duration(rand.Int63n(int64(span)))
}

// Run is the watchdog's single goroutine body; call it with `go`.
// It exits when ctx is canceled.
func (w *Watchdog) Run(ctx context.Context) {
	timer := time.NewTimer(w.randomTimeout())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.reset:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.randomTimeout())
		case <-timer.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			ok, err := w.pingFn(pingCtx)
			cancel()
			if err == nil && ok {
				timer.Reset(w.randomTimeout())
				continue
			}
			w.onSuspectTracker()
			timer.Reset(w.randomTimeout())
		}
	}
}

// Heartbeat is called whenever a heartbeat RPC is received. It resets
// the deadline unconditionally — the epoch-acceptance decision is made
// by the caller (peernode), not by the watchdog itself.
func (w *Watchdog) Heartbeat() {
	select {
	case w.reset <- struct{}{}:
	default:
		// a reset is already pending; the timer will pick it up.
	}
}
