// Package heartbeat implements the Heartbeat Emitter (C7): while a
// peer is Tracker, broadcast heartbeat(epoch) to every peer.* every
// 100ms. Individual failures are swallowed — a missing peer is not the
// Tracker's problem. Exits as soon as the peer stops being Tracker.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Directory enumerates peer.* registrations.
type Directory interface {
	List(ctx context.Context, prefix string) (map[string]string, error)
}

// Caller issues heartbeat against one resolved peer endpoint.
type Caller interface {
	Heartbeat(ctx context.Context, epoch uint64) (bool, error)
}

// Pool resolves an endpoint to a Caller.
type Pool func(endpoint string) Caller

// State is the narrow role/epoch view the emitter needs.
type State interface {
	IsTracker() bool
	CurrentEpoch() uint64
	PeerID() uint64
}

// Index drops a peer that stopped answering heartbeats from the
// Tracker Index, so a later search_file/get_all_network_files doesn't
// keep offering files held by someone no longer reachable.
// index.Index satisfies this via its Forget method.
type Index interface {
	Forget(peerID uint64)
}

const peerPrefix = "peer."

// Emitter drives the 100ms heartbeat broadcast loop.
type Emitter struct {
	state  State
	dir    Directory
	pool   Pool
	log    *slog.Logger
	period time.Duration
	index  Index
}

// New returns an Emitter with the spec-default 100ms period.
func New(state State, dir Directory, pool Pool, log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{state: state, dir: dir, pool: pool, log: log, period: 100 * time.Millisecond}
}

// WithPeriod overrides the broadcast period, for tests.
func (e *Emitter) WithPeriod(period time.Duration) *Emitter {
	e.period = period
	return e
}

// WithIndex wires the Tracker Index a failed peer gets dropped from.
// Left unset, failed heartbeats are only logged (used by tests that
// don't care about index bookkeeping).
func (e *Emitter) WithIndex(index Index) *Emitter {
	e.index = index
	return e
}

// Run drives the broadcast loop until ctx is canceled or the peer
// stops being Tracker.
func (e *Emitter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.state.IsTracker() {
				return
			}
			e.broadcastOnce(ctx)
		}
	}
}

// broadcastOnce enumerates peer.* and calls heartbeat on each
// concurrently, bounded by the broadcast period. Grounded on the
// teacher's pingAllPeers fan-out, switched to errgroup per the rest of
// this module's concurrency style since per-peer errors must never
// fail the round.
func (e *Emitter) broadcastOnce(ctx context.Context) {
	records, err := e.dir.List(ctx, peerPrefix)
	if err != nil {
		e.log.Warn("heartbeat: list peers failed", "error", err)
		return
	}

	epoch := e.state.CurrentEpoch()
	selfID := e.state.PeerID()

	g, gctx := errgroup.WithContext(ctx)
	for name, endpoint := range records {
		if peerIDFromName(name) == selfID {
			continue
		}
		endpoint := endpoint
		peerID := peerIDFromName(name)
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, e.period)
			defer cancel()
			if _, err := e.pool(endpoint).Heartbeat(callCtx, epoch); err != nil {
				e.log.Debug("heartbeat failed", "endpoint", endpoint, "error", err)
				if e.index != nil {
					e.index.Forget(peerID)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func peerIDFromName(name string) uint64 {
	var id uint64
	// trims "peer." prefix and parses the remaining digits.
	if len(name) <= len(peerPrefix) {
		return 0
	}
	for _, r := range name[len(peerPrefix):] {
		if r < '0' || r > '9' {
			return id
		}
		id = id*10 + uint64(r-'0')
	}
	return id
}
