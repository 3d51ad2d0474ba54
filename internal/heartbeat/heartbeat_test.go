package heartbeat

import (
	"context"
	"errors"
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

type countingCaller struct {
	calls *atomic.Int64
}

func (c *countingCaller) Heartbeat(ctx context.Context, epoch uint64) (bool, error) {
	c.calls.Add(1)
	return true, nil
}

type fakeState struct {
	mu      sync.Mutex
	tracker bool
	epoch   uint64
	peerID  uint64
}

func (f *fakeState) IsTracker() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracker
}
func (f *fakeState) CurrentEpoch() uint64 { return f.epoch }
func (f *fakeState) PeerID() uint64       { return f.peerID }

func TestEmitter_BroadcastsWhileTracker(t *testing.T) {
	var calls atomic.Int64
	dir := &fakeDirectory{records: map[string]string{
		"peer.2": "http://p2",
		"peer.3": "http://p3",
	}}
	pool := Pool(func(endpoint string) Caller { return &countingCaller{calls: &calls} })
	state := &fakeState{tracker: true, epoch: 5, peerID: 1}

	e := New(state, dir, pool, nil).WithPeriod(10 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	e.Run(ctx)

	if calls.Load() < 6 {
		t.Fatalf("expected at least 6 heartbeat RPCs across both peers, got %d", calls.Load())
	}
}

func TestEmitter_ExitsWhenNotTracker(t *testing.T) {
	var calls atomic.Int64
	dir := &fakeDirectory{records: map[string]string{"peer.2": "http://p2"}}
	pool := Pool(func(endpoint string) Caller { return &countingCaller{calls: &calls} })
	state := &fakeState{tracker: false, epoch: 5, peerID: 1}

	e := New(state, dir, pool, nil).WithPeriod(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("emitter did not exit after discovering it is not tracker")
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no heartbeats sent while not tracker, got %d", calls.Load())
	}
}

func TestEmitter_SkipsSelf(t *testing.T) {
	var calls atomic.Int64
	dir := &fakeDirectory{records: map[string]string{"peer.1": "http://self"}}
	pool := Pool(func(endpoint string) Caller { return &countingCaller{calls: &calls} })
	state := &fakeState{tracker: true, epoch: 1, peerID: 1}

	e := New(state, dir, pool, nil).WithPeriod(10 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	e.Run(ctx)

	if calls.Load() != 0 {
		t.Fatalf("expected no self-heartbeats, got %d", calls.Load())
	}
}

type failingCaller struct{}

func (failingCaller) Heartbeat(ctx context.Context, epoch uint64) (bool, error) {
	return false, errors.New("unreachable")
}

type fakeIndex struct {
	mu        sync.Mutex
	forgotten map[uint64]bool
}

func (f *fakeIndex) Forget(peerID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forgotten == nil {
		f.forgotten = make(map[uint64]bool)
	}
	f.forgotten[peerID] = true
}

func (f *fakeIndex) forgotAny(peerID uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forgotten[peerID]
}

func TestEmitter_ForgetsPeerOnHeartbeatFailure(t *testing.T) {
	dir := &fakeDirectory{records: map[string]string{"peer.2": "http://p2"}}
	pool := Pool(func(endpoint string) Caller { return failingCaller{} })
	state := &fakeState{tracker: true, epoch: 1, peerID: 1}
	idx := &fakeIndex{}

	e := New(state, dir, pool, nil).WithPeriod(10 * time.Millisecond).WithIndex(idx)
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	e.Run(ctx)

	if !idx.forgotAny(2) {
		t.Fatal("expected peer 2 to be forgotten from the index after a failed heartbeat")
	}
}
