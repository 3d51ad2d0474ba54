package peernode

import (
	"context"
	"fmt"
	"time"
)

// files.go covers the supplemental file operations a peer exposes to
// its own CLI/user, on top of the RPC surface other peers call
// (source: peer.py's add_file/remove_file/list_files/download_file/
// network_files).

// AddFile stores content under name in the local file store and, if
// connected to a Tracker, advertises the updated manifest.
func (p *Peer) AddFile(ctx context.Context, name string, content []byte) error {
	if err := p.store.Add(name, content); err != nil {
		return fmt.Errorf("peernode: add file: %w", err)
	}
	p.registerFilesWithTracker(ctx)
	return nil
}

// RemoveFile deletes name from the local store and re-advertises the
// updated manifest.
func (p *Peer) RemoveFile(ctx context.Context, name string) error {
	if err := p.store.Remove(name); err != nil {
		return fmt.Errorf("peernode: remove file: %w", err)
	}
	p.registerFilesWithTracker(ctx)
	return nil
}

// ListLocalFiles lists what this peer physically holds.
func (p *Peer) ListLocalFiles() ([]string, error) {
	return p.store.List()
}

// NetworkFiles returns the full cluster-wide file index: served
// locally if this peer is Tracker, otherwise fetched by RPC from
// whichever peer is (source: peer.py's network_files).
func (p *Peer) NetworkFiles(ctx context.Context) (map[uint64][]string, error) {
	if p.Role() == Tracker {
		return p.index.All(), nil
	}
	tr, err := p.locator.Find(ctx)
	if err != nil {
		return nil, fmt.Errorf("peernode: locate tracker: %w", err)
	}
	idx, err := p.pool.Get(tr.Endpoint).GetFileIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("peernode: fetch file index: %w", err)
	}
	return idx, nil
}

// DownloadFileFromPeer fetches name from holderID, saves it locally,
// and retries the subsequent register_files call up to three times
// with a short pause between attempts — mirroring peer.py's
// download_file, which treats a failed post-download re-registration
// as recoverable rather than fatal.
func (p *Peer) DownloadFileFromPeer(ctx context.Context, holderID uint64, name string) error {
	endpoint, err := p.dir.Lookup(ctx, fmt.Sprintf("peer.%d", holderID))
	if err != nil {
		return fmt.Errorf("peernode: locate holder peer.%d: %w", holderID, err)
	}

	data, err := p.pool.Get(endpoint).DownloadFile(ctx, name)
	if err != nil {
		return fmt.Errorf("peernode: download %s from peer.%d: %w", name, holderID, err)
	}
	if data == nil {
		return fmt.Errorf("peernode: peer.%d does not hold %s", holderID, name)
	}

	if err := p.store.Add(name, data); err != nil {
		return fmt.Errorf("peernode: save downloaded file: %w", err)
	}

	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if p.registerFilesWithTracker(ctx) {
			return nil
		}
		if attempt < maxAttempts {
			time.Sleep(500 * time.Millisecond)
		}
	}
	return nil
}
