// Package locator implements the Tracker Locator (C4): find the
// current Tracker by listing Tracker_Epoca_* registrations, picking
// the highest epoch, and caching the result until a higher epoch is
// observed or the cache is explicitly invalidated.
package locator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const trackerPrefix = "Tracker_Epoca_"

// Directory is the subset of directory.Client the locator needs.
type Directory interface {
	List(ctx context.Context, prefix string) (map[string]string, error)
}

// Tracker identifies the current Tracker by endpoint and epoch.
type Tracker struct {
	Endpoint string
	Epoch    uint64
}

// Locator resolves and caches the current Tracker's endpoint.
type Locator struct {
	dir Directory

	mu     sync.Mutex
	cached Tracker
	valid  bool
}

// New returns a Locator backed by dir.
func New(dir Directory) *Locator {
	return &Locator{dir: dir}
}

// Find returns the cached Tracker if present, otherwise refreshes
// from the directory first.
func (l *Locator) Find(ctx context.Context) (Tracker, error) {
	l.mu.Lock()
	if l.valid {
		cached := l.cached
		l.mu.Unlock()
		return cached, nil
	}
	l.mu.Unlock()
	return l.Refresh(ctx)
}

// Refresh lists Tracker_Epoca_* entries, picks the one with the
// highest trailing epoch, and replaces the cache with it.
func (l *Locator) Refresh(ctx context.Context) (Tracker, error) {
	records, err := l.dir.List(ctx, trackerPrefix)
	if err != nil {
		return Tracker{}, fmt.Errorf("locator: list trackers: %w", err)
	}
	if len(records) == 0 {
		return Tracker{}, fmt.Errorf("locator: no tracker currently registered")
	}

	var best Tracker
	found := false
	for name, endpoint := range records {
		epoch, ok := parseEpoch(name)
		if !ok {
			continue
		}
		if !found || epoch > best.Epoch {
			best = Tracker{Endpoint: endpoint, Epoch: epoch}
			found = true
		}
	}
	if !found {
		return Tracker{}, fmt.Errorf("locator: no well-formed tracker registration found")
	}

	l.mu.Lock()
	l.cached = best
	l.valid = true
	l.mu.Unlock()
	return best, nil
}

// Invalidate forces the next Find to refresh from the directory.
func (l *Locator) Invalidate() {
	l.mu.Lock()
	l.valid = false
	l.mu.Unlock()
}

// ObserveEpoch invalidates the cache if epoch is higher than the
// cached one, so a peer that learns of a newer epoch via a heartbeat
// or vote request stops trusting a stale cached Tracker.
func (l *Locator) ObserveEpoch(epoch uint64) {
	l.mu.Lock()
	if l.valid && epoch > l.cached.Epoch {
		l.valid = false
	}
	l.mu.Unlock()
}

func parseEpoch(name string) (uint64, bool) {
	if !strings.HasPrefix(name, trackerPrefix) {
		return 0, false
	}
	suffix := strings.TrimPrefix(name, trackerPrefix)
	epoch, err := strconv.ParseUint(suffix, 10, 64)
	if err != nil {
		return 0, false
	}
	return epoch, true
}

// TrackerName formats the Name Directory entry name for a Tracker at
// epoch, e.g. "Tracker_Epoca_4".
func TrackerName(epoch uint64) string {
	return fmt.Sprintf("%s%d", trackerPrefix, epoch)
}
