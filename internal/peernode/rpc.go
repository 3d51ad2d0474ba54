package peernode

import (
	"context"
	"strconv"
)

// rpc.go implements transport.Handler: the seven RPCs any peer answers
// regardless of role. Handlers stay synchronous and side-effect-light;
// anything that needs a context (directory lookups, outbound calls)
// belongs in peer.go, not here.

// Ping always succeeds — its only purpose is proving the process is
// alive and answering HTTP.
func (p *Peer) Ping() bool { return true }

// Heartbeat applies the §4.3 acceptance policy and, if the incoming
// epoch supersedes the local one, re-registers local files with the
// new Tracker in the background (source: peer.py's handle_heartbeat,
// which calls register_files_with_tracker on every higher-epoch beat).
func (p *Peer) Heartbeat(epoch uint64) bool {
	accepted, adopted := p.state.acceptHeartbeat(epoch)
	if adopted {
		p.locator.ObserveEpoch(epoch)
		p.watchdog.Heartbeat()
		p.audit.RecordEpochEvent(p.cfg.ID, epoch, "epoch_adopted", "")
		go p.registerFilesWithTracker(context.Background())
	} else if accepted {
		p.watchdog.Heartbeat()
	}
	if accepted {
		p.mon.Publish("heartbeat", p.cfg.ID, epoch, nil)
	}
	return accepted
}

// RequestVote applies the §4.4 granting rule. A grant only records
// votedForEpoch — it changes neither the current epoch nor the role, matching peer.py's
// handle_request_vote, which leaves a Candidate's own role untouched
// even after granting a vote to someone else.
func (p *Peer) RequestVote(candidateID, newEpoch uint64) bool {
	granted := p.state.tryGrantVote(newEpoch)
	if granted {
		p.audit.RecordEpochEvent(p.cfg.ID, newEpoch, "vote_granted", candidateIDDetail(candidateID))
		p.mon.Publish("vote_granted", p.cfg.ID, newEpoch, candidateID)
	}
	return granted
}

// RegisterFiles accepts a peer's file manifest iff this peer is
// currently Tracker.
func (p *Peer) RegisterFiles(peerID uint64, files []string) bool {
	if p.Role() != Tracker {
		return false
	}
	p.index.Register(peerID, files)
	p.mon.Publish("file_registered", peerID, p.CurrentEpoch(), files)
	return true
}

// SearchFile answers from the local Tracker Index iff this peer is
// Tracker; a non-Tracker reports no holders rather than erroring, per
// the preserved "stays silent" behavior.
func (p *Peer) SearchFile(filename string) []uint64 {
	if p.Role() != Tracker {
		return nil
	}
	return p.index.Search(filename)
}

// GetFileIndex returns the full Tracker Index snapshot, or nil when
// this peer is not Tracker.
func (p *Peer) GetFileIndex() map[uint64][]string {
	if p.Role() != Tracker {
		return nil
	}
	return p.index.All()
}

// DownloadFile serves a file out of the local store regardless of
// role — any peer that holds a copy can serve it, not just the
// Tracker (source: peer.py's handle_download_file has no role check).
func (p *Peer) DownloadFile(filename string) ([]byte, bool) {
	data, err := p.store.Read(filename)
	if err != nil {
		return nil, false
	}
	return data, true
}

func candidateIDDetail(candidateID uint64) string {
	return "candidate=" + strconv.FormatUint(candidateID, 10)
}
