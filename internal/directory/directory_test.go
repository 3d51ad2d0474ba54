package directory

import (
	"context"
	"net/http/httptest"
	"testing"
)

func newTestServerAndClient(t *testing.T) (*Server, *Client, func()) {
	t.Helper()
	s := &Server{records: make(map[string]string)}
	ts := httptest.NewServer(newMux(s))
	c := NewClient(ts.URL)
	return s, c, ts.Close
}

func TestRegisterLookup(t *testing.T) {
	_, c, closeFn := newTestServerAndClient(t)
	defer closeFn()

	ctx := context.Background()
	if err := c.Register(ctx, "peer.1", "http://127.0.0.1:9101"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	endpoint, err := c.Lookup(ctx, "peer.1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if endpoint != "http://127.0.0.1:9101" {
		t.Fatalf("Lookup() = %q", endpoint)
	}
}

func TestLookup_NotFound(t *testing.T) {
	_, c, closeFn := newTestServerAndClient(t)
	defer closeFn()

	if _, err := c.Lookup(context.Background(), "peer.99"); err != ErrNotFound {
		t.Fatalf("Lookup() err = %v, want ErrNotFound", err)
	}
}

func TestListByPrefix(t *testing.T) {
	_, c, closeFn := newTestServerAndClient(t)
	defer closeFn()

	ctx := context.Background()
	_ = c.Register(ctx, "peer.1", "http://a")
	_ = c.Register(ctx, "peer.2", "http://b")
	_ = c.Register(ctx, "Tracker_Epoca_4", "http://c")

	peers, err := c.List(ctx, "peer.")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("List(peer.) = %v, want 2 entries", peers)
	}

	trackers, err := c.List(ctx, "Tracker_Epoca_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(trackers) != 1 {
		t.Fatalf("List(Tracker_Epoca_) = %v, want 1 entry", trackers)
	}
}

func TestUnregister(t *testing.T) {
	_, c, closeFn := newTestServerAndClient(t)
	defer closeFn()

	ctx := context.Background()
	_ = c.Register(ctx, "peer.1", "http://a")
	if err := c.Unregister(ctx, "peer.1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, err := c.Lookup(ctx, "peer.1"); err != ErrNotFound {
		t.Fatalf("Lookup() after Unregister err = %v, want ErrNotFound", err)
	}
}
