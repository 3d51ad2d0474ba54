package transport

import (
	"context"
	"net/http/httptest"
	"reflect"
	"testing"
)

type fakeHandler struct {
	isTracker bool
	index     map[uint64][]string
	files     map[string][]byte
}

func (f *fakeHandler) Ping() bool { return true }

func (f *fakeHandler) Heartbeat(epoch uint64) bool { return epoch > 0 }

func (f *fakeHandler) RequestVote(candidateID, newEpoch uint64) bool { return newEpoch > 0 }

func (f *fakeHandler) RegisterFiles(peerID uint64, files []string) bool {
	if !f.isTracker {
		return false
	}
	f.index[peerID] = files
	return true
}

func (f *fakeHandler) SearchFile(filename string) []uint64 {
	if !f.isTracker {
		return nil
	}
	var ids []uint64
	for peerID, files := range f.index {
		for _, name := range files {
			if name == filename {
				ids = append(ids, peerID)
			}
		}
	}
	return ids
}

func (f *fakeHandler) GetFileIndex() map[uint64][]string {
	if !f.isTracker {
		return nil
	}
	return f.index
}

func (f *fakeHandler) DownloadFile(filename string) ([]byte, bool) {
	data, ok := f.files[filename]
	return data, ok
}

func newTestPair(t *testing.T, h *fakeHandler) (*Client, func()) {
	t.Helper()
	s := NewServer("", h, nil)
	ts := httptest.NewServer(s.Handler())
	c := NewClient(ts.URL)
	return c, ts.Close
}

func TestPingHeartbeatVote(t *testing.T) {
	h := &fakeHandler{isTracker: true, index: map[uint64][]string{}}
	c, closeFn := newTestPair(t, h)
	defer closeFn()
	ctx := context.Background()

	ok, err := c.Ping(ctx)
	if err != nil || !ok {
		t.Fatalf("Ping() = %v, %v", ok, err)
	}

	accepted, err := c.Heartbeat(ctx, 3)
	if err != nil || !accepted {
		t.Fatalf("Heartbeat() = %v, %v", accepted, err)
	}

	granted, err := c.RequestVote(ctx, 1, 4)
	if err != nil || !granted {
		t.Fatalf("RequestVote() = %v, %v", granted, err)
	}
}

func TestRegisterAndSearch(t *testing.T) {
	h := &fakeHandler{isTracker: true, index: map[uint64][]string{}}
	c, closeFn := newTestPair(t, h)
	defer closeFn()
	ctx := context.Background()

	ok, err := c.RegisterFiles(ctx, 2, []string{"a.txt", "b.txt"})
	if err != nil || !ok {
		t.Fatalf("RegisterFiles() = %v, %v", ok, err)
	}

	ids, err := c.SearchFile(ctx, "a.txt")
	if err != nil {
		t.Fatalf("SearchFile: %v", err)
	}
	if !reflect.DeepEqual(ids, []uint64{2}) {
		t.Fatalf("SearchFile() = %v", ids)
	}

	idx, err := c.GetFileIndex(ctx)
	if err != nil {
		t.Fatalf("GetFileIndex: %v", err)
	}
	if !reflect.DeepEqual(idx[2], []string{"a.txt", "b.txt"}) {
		t.Fatalf("GetFileIndex() = %v", idx)
	}
}

func TestNonTracker_RepliesEmptyNotError(t *testing.T) {
	h := &fakeHandler{isTracker: false, index: map[uint64][]string{}}
	c, closeFn := newTestPair(t, h)
	defer closeFn()
	ctx := context.Background()

	ok, err := c.RegisterFiles(ctx, 2, []string{"a.txt"})
	if err != nil {
		t.Fatalf("RegisterFiles returned transport error on role mismatch: %v", err)
	}
	if ok {
		t.Fatalf("RegisterFiles() = true, want false for non-tracker")
	}

	ids, err := c.SearchFile(ctx, "a.txt")
	if err != nil || len(ids) != 0 {
		t.Fatalf("SearchFile() = %v, %v, want empty, nil", ids, err)
	}
}

func TestDownloadFile_Base64Roundtrip(t *testing.T) {
	h := &fakeHandler{files: map[string][]byte{"a.txt": []byte("hello world")}}
	c, closeFn := newTestPair(t, h)
	defer closeFn()

	data, err := c.DownloadFile(context.Background(), "a.txt")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("DownloadFile() = %q", data)
	}
}

func TestPool_ReusesClientPerEndpoint(t *testing.T) {
	p := NewPool()
	a := p.Get("http://peer-a")
	b := p.Get("http://peer-a")
	if a != b {
		t.Fatalf("Pool.Get() returned distinct clients for the same endpoint")
	}
	c := p.Get("http://peer-b")
	if c == a {
		t.Fatalf("Pool.Get() returned the same client for different endpoints")
	}
}
