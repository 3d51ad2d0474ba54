package detector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdog_SuspectsOnTimeout(t *testing.T) {
	var suspected atomic.Bool
	pingFn := func(ctx context.Context) (bool, error) { return false, nil }

	w := New(10*time.Millisecond, 15*time.Millisecond, pingFn, func() { suspected.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	deadline := time.After(200 * time.Millisecond)
	for !suspected.Load() {
		select {
		case <-deadline:
			t.Fatal("watchdog never suspected the tracker")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWatchdog_HeartbeatPreventsSuspicion(t *testing.T) {
	var suspected atomic.Bool
	pingFn := func(ctx context.Context) (bool, error) { return false, nil }

	w := New(20*time.Millisecond, 30*time.Millisecond, pingFn, func() { suspected.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	stop := time.After(120 * time.Millisecond)
loop:
	for {
		select {
		case <-stop:
			break loop
		case <-time.After(10 * time.Millisecond):
			w.Heartbeat()
		}
	}

	if suspected.Load() {
		t.Fatal("watchdog suspected the tracker despite continuous heartbeats")
	}
}

func TestWatchdog_PingSuccessCancelsSuspicion(t *testing.T) {
	var suspected atomic.Bool
	pingFn := func(ctx context.Context) (bool, error) { return true, nil }

	w := New(10*time.Millisecond, 15*time.Millisecond, pingFn, func() { suspected.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(80 * time.Millisecond)
	if suspected.Load() {
		t.Fatal("watchdog suspected the tracker despite a successful ping")
	}
}
