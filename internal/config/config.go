// Package config holds the typed configuration structs built once in
// cmd/trackerd and passed explicitly into constructors, instead of the
// package-level flag variables the daemon this was adapted from used.
package config

import (
	"fmt"
	"time"
)

// Peer holds everything a single peer process needs to run: its own
// identity, where to reach the Name Directory, and the timing knobs
// for heartbeats, elections, and the failure detector.
type Peer struct {
	// ID is this peer's PeerId: a positive integer, unique, assigned at
	// startup, immutable. Registered in the Name Directory as
	// "peer.<ID>".
	ID uint64

	// ListenAddr is the address the RPC endpoint binds to, e.g.
	// "127.0.0.1:9101".
	ListenAddr string

	// AdvertiseAddr is the HTTP base URL other peers use to reach this
	// one, e.g. "http://10.0.0.4:9101". Defaults to "http://" + ListenAddr
	// when empty.
	AdvertiseAddr string

	// StoreDir is the local directory backing this peer's file store.
	StoreDir string

	// DirectoryAddr is the Name Directory's base URL.
	DirectoryAddr string

	// HeartbeatInterval is how often a Tracker broadcasts heartbeats.
	HeartbeatInterval time.Duration

	// DetectorTimeoutMin/Max bound the randomized election timeout
	// window a non-Tracker peer waits before suspecting the Tracker.
	DetectorTimeoutMin time.Duration
	DetectorTimeoutMax time.Duration

	// RPCTimeout and HeartbeatTimeout are not read by any component:
	// vote calls use the election coordinator's own 5s default, each
	// heartbeat call is bounded by HeartbeatInterval, and data RPCs
	// (register_files, get_file_index, download_file) carry only the
	// deadline of the context they are called with.
	RPCTimeout        time.Duration
	HeartbeatTimeout  time.Duration

	// AuditDBPath is where the epoch/election audit trail is persisted.
	AuditDBPath string

	// MonitorAddr, when non-empty, is the address a websocket event feed
	// is served on (peer/election/heartbeat events). Empty disables it.
	MonitorAddr string
}

// DefaultPeer returns a Peer config with the timing defaults used
// throughout SPEC_FULL.md: 100ms heartbeats, 5s RPC timeout, and a
// 150-300ms randomized detector window.
func DefaultPeer(id uint64, listenAddr, directoryAddr, storeDir string) Peer {
	return Peer{
		ID:                 id,
		ListenAddr:         listenAddr,
		StoreDir:           storeDir,
		DirectoryAddr:      directoryAddr,
		HeartbeatInterval:  100 * time.Millisecond,
		DetectorTimeoutMin: 150 * time.Millisecond,
		DetectorTimeoutMax: 300 * time.Millisecond,
		RPCTimeout:         5 * time.Second,
		HeartbeatTimeout:   100 * time.Millisecond,
	}
}

// Validate checks the fields required for a peer to start.
func (c Peer) Validate() error {
	if c.ID == 0 {
		return fmt.Errorf("config: peer ID must be a positive integer")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.DirectoryAddr == "" {
		return fmt.Errorf("config: directory address is required")
	}
	if c.StoreDir == "" {
		return fmt.Errorf("config: store directory is required")
	}
	if c.DetectorTimeoutMin <= 0 || c.DetectorTimeoutMax < c.DetectorTimeoutMin {
		return fmt.Errorf("config: detector timeout window is invalid (min=%s max=%s)", c.DetectorTimeoutMin, c.DetectorTimeoutMax)
	}
	return nil
}

// Effective returns AdvertiseAddr, falling back to a plain http:// URL
// built from ListenAddr when AdvertiseAddr was left empty.
func (c Peer) Effective() string {
	if c.AdvertiseAddr != "" {
		return c.AdvertiseAddr
	}
	return "http://" + c.ListenAddr
}

// NameServer holds the reference Name Directory server's configuration.
type NameServer struct {
	ListenAddr string
}

// Cluster holds the parameters for `trackerd cluster`, which spawns N
// peer subprocesses plus one nameserver subprocess for local testing,
// mirroring the way the source's own orchestrator spun up a whole
// network from one command.
type Cluster struct {
	PeerCount int
	BasePort  int
	StoreRoot string
}
