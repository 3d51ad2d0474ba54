// Package peernode is the glue binding every component into one
// runnable Peer: the role state machine, becoming-Tracker procedure,
// and the supplemental file operations the original source exposed
// that the distilled RPC surface alone doesn't cover.
package peernode

import (
	"sync"
	"time"
)

// Role is a peer's place in the election state machine.
type Role int

const (
	Follower Role = iota
	Candidate
	Tracker
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Tracker:
		return "tracker"
	default:
		return "unknown"
	}
}

// state is the single mutex-guarded block of per-peer fields read by
// the watchdog, RPC handlers, and election flow alike — mirroring the
// teacher's one `mu sync.RWMutex` guarding `ha.Manager.nodes`.
type state struct {
	mu            sync.RWMutex
	role          Role
	epoch         uint64
	votedForEpoch uint64
	lastHeartbeat time.Time
}

func (s *state) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *state) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *state) setCandidate(votedForEpoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = Candidate
	s.votedForEpoch = votedForEpoch
}

func (s *state) setFollower() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = Follower
}

func (s *state) setTracker(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = Tracker
	s.epoch = epoch
}

// acceptHeartbeat applies the §4.3 heartbeat policy and reports
// whether the epoch was adopted (i.e. was strictly higher), so the
// caller knows whether to trigger file re-registration.
func (s *state) acceptHeartbeat(epoch uint64) (accepted, adopted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case epoch > s.epoch:
		s.epoch = epoch
		s.role = Follower
		s.lastHeartbeat = time.Now()
		return true, true
	case epoch == s.epoch:
		s.lastHeartbeat = time.Now()
		return true, false
	default:
		return false, false
	}
}

// tryGrantVote applies the request_vote granting rule: grant iff
// newEpoch > currentEpoch. Deliberately does not also require
// newEpoch > votedForEpoch (preserved open question).
func (s *state) tryGrantVote(newEpoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newEpoch > s.epoch {
		s.votedForEpoch = newEpoch
		return true
	}
	return false
}
