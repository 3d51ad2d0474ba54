package locator

import (
	"context"
	"testing"
)

type fakeDirectory struct {
	records map[string]string
	calls   int
}

func (f *fakeDirectory) List(ctx context.Context, prefix string) (map[string]string, error) {
	f.calls++
	out := make(map[string]string)
	for name, endpoint := range f.records {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out[name] = endpoint
		}
	}
	return out, nil
}

func TestFind_PicksHighestEpoch(t *testing.T) {
	dir := &fakeDirectory{records: map[string]string{
		"Tracker_Epoca_2": "http://a",
		"Tracker_Epoca_5": "http://b",
		"Tracker_Epoca_3": "http://c",
		"peer.1":          "http://d",
	}}
	l := New(dir)

	tr, err := l.Find(context.Background())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if tr.Epoch != 5 || tr.Endpoint != "http://b" {
		t.Fatalf("Find() = %+v, want epoch 5 at http://b", tr)
	}
}

func TestFind_CachesUntilInvalidated(t *testing.T) {
	dir := &fakeDirectory{records: map[string]string{"Tracker_Epoca_1": "http://a"}}
	l := New(dir)

	if _, err := l.Find(context.Background()); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if _, err := l.Find(context.Background()); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if dir.calls != 1 {
		t.Fatalf("List called %d times, want 1 (cache hit expected)", dir.calls)
	}

	l.Invalidate()
	if _, err := l.Find(context.Background()); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if dir.calls != 2 {
		t.Fatalf("List called %d times after invalidate, want 2", dir.calls)
	}
}

func TestObserveEpoch_InvalidatesOnHigherEpoch(t *testing.T) {
	dir := &fakeDirectory{records: map[string]string{"Tracker_Epoca_1": "http://a"}}
	l := New(dir)
	if _, err := l.Find(context.Background()); err != nil {
		t.Fatalf("Find: %v", err)
	}

	l.ObserveEpoch(0)
	if _, err := l.Find(context.Background()); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if dir.calls != 1 {
		t.Fatalf("List called %d times, want 1 (lower epoch should not invalidate)", dir.calls)
	}

	l.ObserveEpoch(9)
	if _, err := l.Find(context.Background()); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if dir.calls != 2 {
		t.Fatalf("List called %d times, want 2 (higher epoch should invalidate)", dir.calls)
	}
}

func TestFind_NoTrackerRegistered(t *testing.T) {
	dir := &fakeDirectory{records: map[string]string{}}
	l := New(dir)
	if _, err := l.Find(context.Background()); err == nil {
		t.Fatalf("expected error when no tracker is registered")
	}
}
