// Package election implements the Election Coordinator (C6): a
// single-pass majority vote, not a multi-round Raft-style retry with
// leader commitment. There is no log to replicate; the only safety
// property required is at most one winner per epoch.
package election

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Directory is the subset of directory.Client the coordinator needs:
// enumerate peer.* registrations to know who to canvass for votes.
type Directory interface {
	List(ctx context.Context, prefix string) (map[string]string, error)
}

// VoteCaller issues request_vote against one already-resolved peer
// endpoint. transport.Client satisfies this.
type VoteCaller interface {
	RequestVote(ctx context.Context, candidateID, newEpoch uint64) (bool, error)
}

// Pool resolves an endpoint URL to a VoteCaller. peernode adapts
// transport.Pool's Get method to it with a small closure (Get returns
// *transport.Client, not VoteCaller); tests supply an in-memory fake.
type Pool func(endpoint string) VoteCaller

// State is the narrow slice of peernode.Peer's role/epoch state the
// coordinator reads and mutates. Kept local to avoid an import cycle
// with peernode, which calls Coordinator.Run.
type State interface {
	PeerID() uint64
	CurrentEpoch() uint64
	SetCandidate(newEpoch uint64)
	BecomeTracker(ctx context.Context, newEpoch uint64) error
	SetFollower()
}

// AuditSink records election milestones for the epoch/election
// history. audit.BufferedLogger satisfies this.
type AuditSink interface {
	RecordEpochEvent(peerID, epoch uint64, kind, detail string)
}

// EventSink publishes election milestones for live observers.
// monitor.Hub satisfies this.
type EventSink interface {
	Publish(kind string, peerID, epoch uint64, data any)
}

const peerPrefix = "peer."

// Coordinator runs elections for one peer.
type Coordinator struct {
	state State
	dir   Directory
	pool  Pool
	log   *slog.Logger
	audit AuditSink
	mon   EventSink

	inProgress atomic.Bool

	voteTimeout  time.Duration
	desyncMin    time.Duration
	desyncMax    time.Duration
	retryMin     time.Duration
	retryMax     time.Duration
}

// Option configures a Coordinator's timing. Defaults match spec: 5s
// vote timeout, [250ms,1s] desync backoff, [0.5s,2s] retry backoff.
type Option func(*Coordinator)

// New returns a Coordinator with spec-default timing.
func New(state State, dir Directory, pool Pool, log *slog.Logger, audit AuditSink, mon EventSink, opts ...Option) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		state:       state,
		dir:         dir,
		pool:        pool,
		log:         log,
		audit:       audit,
		mon:         mon,
		voteTimeout: 5 * time.Second,
		desyncMin:   250 * time.Millisecond,
		desyncMax:   1 * time.Second,
		retryMin:    500 * time.Millisecond,
		retryMax:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTiming overrides the default backoff windows, primarily for
// tests that cannot afford to wait whole seconds per attempt.
func WithTiming(voteTimeout, desyncMin, desyncMax, retryMin, retryMax time.Duration) Option {
	return func(c *Coordinator) {
		c.voteTimeout = voteTimeout
		c.desyncMin = desyncMin
		c.desyncMax = desyncMax
		c.retryMin = retryMin
		c.retryMax = retryMax
	}
}

func uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// Run executes one election attempt: steps 1-6 of the election
// procedure. It returns true if this peer won and became Tracker for
// the new epoch.
func (c *Coordinator) Run(ctx context.Context) (bool, error) {
	if !c.inProgress.CompareAndSwap(false, true) {
		return false, fmt.Errorf("election: already in progress")
	}
	defer c.inProgress.Store(false)

	selfID := c.state.PeerID()
	newEpoch := c.state.CurrentEpoch() + 1
	roundID := uuid.NewString()
	c.state.SetCandidate(newEpoch)
	c.audit.RecordEpochEvent(selfID, newEpoch, "election_started", "round="+roundID)
	c.mon.Publish("election_started", selfID, newEpoch, map[string]string{"round": roundID})

	select {
	case <-time.After(uniform(c.desyncMin, c.desyncMax)):
	case <-ctx.Done():
		return false, ctx.Err()
	}

	records, err := c.dir.List(ctx, peerPrefix)
	if err != nil {
		return false, fmt.Errorf("election: list peers: %w", err)
	}

	granted, contacted := c.canvass(ctx, selfID, newEpoch, roundID, records)
	// self counts as both contacted and granted.
	n := contacted + 1
	grantedTotal := granted + 1
	quorum := n/2 + 1

	won := grantedTotal >= quorum
	if won {
		c.log.Info("election won", "peer_id", selfID, "epoch", newEpoch, "granted", grantedTotal, "contacted", n)
		c.audit.RecordEpochEvent(selfID, newEpoch, "quorum_won", fmt.Sprintf("granted=%d contacted=%d", grantedTotal, n))
		c.mon.Publish("quorum_won", selfID, newEpoch, map[string]int{"granted": grantedTotal, "contacted": n})
		if err := c.state.BecomeTracker(ctx, newEpoch); err != nil {
			return false, fmt.Errorf("election: become tracker: %w", err)
		}
		c.audit.RecordEpochEvent(selfID, newEpoch, "became_tracker", "")
		c.mon.Publish("became_tracker", selfID, newEpoch, nil)
		return true, nil
	}

	c.log.Info("election lost", "peer_id", selfID, "epoch", newEpoch, "granted", grantedTotal, "contacted", n)
	c.audit.RecordEpochEvent(selfID, newEpoch, "quorum_lost", fmt.Sprintf("granted=%d contacted=%d", grantedTotal, n))
	c.mon.Publish("quorum_lost", selfID, newEpoch, map[string]int{"granted": grantedTotal, "contacted": n})
	c.state.SetFollower()

	select {
	case <-time.After(uniform(c.retryMin, c.retryMax)):
	case <-ctx.Done():
	}
	return false, nil
}

// canvass calls request_vote on every peer.* other than self,
// concurrently, and tallies grants and successful contacts.
// Grounded on prxssh-rabbit's errgroup-based concurrent fan-out for
// gathering results from many peers under one shared deadline.
func (c *Coordinator) canvass(ctx context.Context, selfID, newEpoch uint64, roundID string, records map[string]string) (granted, contacted int) {
	type result struct {
		granted   bool
		contacted bool
	}
	results := make([]result, len(records))

	g, gctx := errgroup.WithContext(ctx)
	i := 0
	for name, endpoint := range records {
		if peerIDFromName(name) == selfID {
			continue
		}
		idx := i
		i++
		endpoint := endpoint
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, c.voteTimeout)
			defer cancel()
			ok, err := c.pool(endpoint).RequestVote(callCtx, selfID, newEpoch)
			if err != nil {
				c.log.Debug("request_vote failed", "endpoint", endpoint, "error", err)
				return nil
			}
			results[idx] = result{granted: ok, contacted: true}
			detail := "round=" + roundID + " endpoint=" + endpoint
			if ok {
				c.audit.RecordEpochEvent(selfID, newEpoch, "vote_granted", detail)
			} else {
				c.audit.RecordEpochEvent(selfID, newEpoch, "vote_refused", detail)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results[:i] {
		if r.contacted {
			contacted++
		}
		if r.granted {
			granted++
		}
	}
	return granted, contacted
}

func peerIDFromName(name string) uint64 {
	suffix := strings.TrimPrefix(name, peerPrefix)
	var id uint64
	_, _ = fmt.Sscanf(suffix, "%d", &id)
	return id
}

// Grant implements the receiver side of request_vote: grant iff
// newEpoch > currentEpoch. Deliberately does NOT also require
// newEpoch > votedForEpoch — preserved open question, not a bug.
func Grant(currentEpoch, newEpoch uint64) bool {
	return newEpoch > currentEpoch
}
