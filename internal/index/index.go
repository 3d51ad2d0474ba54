// Package index implements the Tracker Index (C8): the in-memory
// peer_id -> set<filename> map a Tracker uses to answer search_file and
// get_all_network_files. Every peer carries one of these, pre-allocated
// and simply unused while it isn't the Tracker, per the design note on
// avoiding lazy per-role attribute creation.
package index

import (
	"sort"
	"sync"
)

// Index maps peer IDs to the set of filenames they registered.
type Index struct {
	mu    sync.RWMutex
	files map[uint64]map[string]struct{}
}

// New returns an empty Index.
func New() *Index {
	return &Index{files: make(map[uint64]map[string]struct{})}
}

// Register replaces peerID's file set with filenames. An empty slice
// clears the peer's entry rather than removing it, matching
// register_files being callable with any (possibly empty) file list.
func (idx *Index) Register(peerID uint64, filenames []string) {
	set := make(map[string]struct{}, len(filenames))
	for _, f := range filenames {
		set[f] = struct{}{}
	}
	idx.mu.Lock()
	idx.files[peerID] = set
	idx.mu.Unlock()
}

// Forget removes peerID's entry entirely, e.g. after the peer fails to
// answer a Tracker heartbeat.
func (idx *Index) Forget(peerID uint64) {
	idx.mu.Lock()
	delete(idx.files, peerID)
	idx.mu.Unlock()
}

// Search returns the sorted IDs of peers that registered filename.
func (idx *Index) Search(filename string) []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var peers []uint64
	for peerID, files := range idx.files {
		if _, ok := files[filename]; ok {
			peers = append(peers, peerID)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}

// All returns every peer's registered files, keyed by peer ID, each
// sorted — the Tracker-side data backing get_all_network_files.
func (idx *Index) All() map[uint64][]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[uint64][]string, len(idx.files))
	for peerID, files := range idx.files {
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		out[peerID] = names
	}
	return out
}

// Reset clears the index entirely, used when a peer becomes Tracker
// for a new epoch and should start from an empty index rather than
// inherit whatever the previous Tracker happened to hold in memory.
func (idx *Index) Reset() {
	idx.mu.Lock()
	idx.files = make(map[uint64]map[string]struct{})
	idx.mu.Unlock()
}
