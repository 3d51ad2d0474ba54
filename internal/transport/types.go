// Package transport implements the RPC Endpoint (C3): the seven RPCs
// of the wire surface, realized as JSON-over-HTTP routed with
// gorilla/mux, plus a client pool keyed by endpoint URL.
package transport

// HeartbeatRequest carries the Tracker's current epoch.
type HeartbeatRequest struct {
	Epoch uint64 `json:"epoch"`
}

// HeartbeatResponse reports whether the receiver accepted the epoch.
type HeartbeatResponse struct {
	Accepted bool `json:"accepted"`
}

// VoteRequest is request_vote(candidate_id, new_epoch).
type VoteRequest struct {
	CandidateID uint64 `json:"candidate_id"`
	NewEpoch    uint64 `json:"new_epoch"`
}

// VoteResponse reports whether the vote was granted.
type VoteResponse struct {
	Granted bool `json:"granted"`
}

// RegisterFilesRequest is register_files(peer_id, files).
type RegisterFilesRequest struct {
	PeerID uint64   `json:"peer_id"`
	Files  []string `json:"files"`
}

// RegisterFilesResponse reports whether the call was accepted. A
// non-Tracker replies OK: false per the wire contract rather than an
// HTTP error.
type RegisterFilesResponse struct {
	OK bool `json:"ok"`
}

// SearchFileRequest is search_file(filename).
type SearchFileRequest struct {
	Filename string `json:"filename"`
}

// SearchFileResponse is the list of peer IDs holding a filename.
type SearchFileResponse struct {
	PeerIDs []uint64 `json:"peer_ids"`
}

// FileIndexResponse is a snapshot of the Tracker's index.
type FileIndexResponse struct {
	Index map[uint64][]string `json:"index"`
}

// DownloadFileRequest is download_file(filename).
type DownloadFileRequest struct {
	Filename string `json:"filename"`
}

// DownloadFileResponse carries the file body base64-encoded, since
// JSON-over-HTTP cannot carry raw bytes — mirrors the source's own
// base64-framing of Pyro/serpent byte payloads.
type DownloadFileResponse struct {
	Data string `json:"data"`
}

// PingResponse confirms liveness.
type PingResponse struct {
	OK bool `json:"ok"`
}
