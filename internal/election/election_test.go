package election

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDirectory struct {
	records map[string]string
}

func (f *fakeDirectory) List(ctx context.Context, prefix string) (map[string]string, error) {
	return f.records, nil
}

type fakeCaller struct {
	grant bool
	err   error
}

func (f *fakeCaller) RequestVote(ctx context.Context, candidateID, newEpoch uint64) (bool, error) {
	return f.grant, f.err
}

type fakeState struct {
	mu          sync.Mutex
	peerID      uint64
	epoch       uint64
	becameTrack uint64
}

func (f *fakeState) PeerID() uint64 { return f.peerID }
func (f *fakeState) CurrentEpoch() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epoch
}
func (f *fakeState) SetCandidate(newEpoch uint64) {}
func (f *fakeState) BecomeTracker(ctx context.Context, newEpoch uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch = newEpoch
	f.becameTrack = newEpoch
	return nil
}
func (f *fakeState) SetFollower() {}

type fakeAudit struct{ count atomic.Int64 }

func (f *fakeAudit) RecordEpochEvent(peerID, epoch uint64, kind, detail string) { f.count.Add(1) }

type fakeMonitor struct{ count atomic.Int64 }

func (f *fakeMonitor) Publish(kind string, peerID, epoch uint64, data any) { f.count.Add(1) }

func fastTiming() Option {
	return WithTiming(50*time.Millisecond, time.Millisecond, 2*time.Millisecond, time.Millisecond, 2*time.Millisecond)
}

func TestRun_WinsWithUnanimousGrants(t *testing.T) {
	dir := &fakeDirectory{records: map[string]string{
		"peer.1": "http://p1",
		"peer.2": "http://p2",
		"peer.3": "http://p3",
	}}
	pool := Pool(func(endpoint string) VoteCaller { return &fakeCaller{grant: true} })
	state := &fakeState{peerID: 1, epoch: 4}
	audit := &fakeAudit{}
	mon := &fakeMonitor{}

	c := New(state, dir, pool, nil, audit, mon, fastTiming())
	won, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !won {
		t.Fatalf("expected to win with unanimous grants")
	}
	if state.becameTrack != 5 {
		t.Fatalf("BecomeTracker called with epoch %d, want 5", state.becameTrack)
	}
}

func TestRun_LosesWithNoGrants(t *testing.T) {
	dir := &fakeDirectory{records: map[string]string{
		"peer.1": "http://p1",
		"peer.2": "http://p2",
		"peer.3": "http://p3",
	}}
	pool := Pool(func(endpoint string) VoteCaller { return &fakeCaller{grant: false} })
	state := &fakeState{peerID: 1, epoch: 4}
	audit := &fakeAudit{}
	mon := &fakeMonitor{}

	c := New(state, dir, pool, nil, audit, mon, fastTiming())
	won, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if won {
		t.Fatalf("expected to lose with no grants (self is only 1 of 3, quorum is 2)")
	}
	if state.becameTrack != 0 {
		t.Fatalf("BecomeTracker should not have been called")
	}
}

func TestRun_RejectsConcurrentElection(t *testing.T) {
	dir := &fakeDirectory{records: map[string]string{}}
	pool := Pool(func(endpoint string) VoteCaller { return &fakeCaller{grant: true} })
	state := &fakeState{peerID: 1, epoch: 1}
	audit := &fakeAudit{}
	mon := &fakeMonitor{}

	c := New(state, dir, pool, nil, audit, mon, WithTiming(50*time.Millisecond, 30*time.Millisecond, 40*time.Millisecond, time.Millisecond, 2*time.Millisecond))

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatalf("expected second concurrent Run to be rejected")
	}
	<-done
}

func TestGrant_EpochComparison(t *testing.T) {
	if Grant(5, 5) {
		t.Fatalf("Grant(5,5) should be false: new epoch must be strictly higher")
	}
	if !Grant(5, 6) {
		t.Fatalf("Grant(5,6) should be true")
	}
}
