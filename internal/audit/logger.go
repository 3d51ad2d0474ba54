// Package audit is the HMAC-chained, sqlite-buffered history of epoch
// transitions and election outcomes: "who became Tracker for which
// epoch, when, and why". Adapted from the command-audit trail this was
// based on — same batching and hash-chaining, repointed at a narrower,
// purpose-built event shape instead of a free-form user-command log.
package audit

import (
	"database/sql"
	"fmt"
	"time"
)

// EpochEvent is one row of the epoch/election history: an election
// starting, a vote being granted or refused, a peer becoming Tracker,
// or a heartbeat adopting a new epoch.
type EpochEvent struct {
	PrevHash string
	Hash     string
	PeerID   uint64
	Epoch    uint64
	Kind     string
	Detail   string
	At       time.Time
}

// Event kinds recorded by internal/election and internal/peernode.
const (
	KindElectionStarted = "election_started"
	KindVoteGranted     = "vote_granted"
	KindVoteRefused     = "vote_refused"
	KindQuorumWon       = "quorum_won"
	KindQuorumLost      = "quorum_lost"
	KindBecameTracker   = "became_tracker"
	KindEpochAdopted    = "epoch_adopted"
)

// EnsureSchema creates the epoch_events table if it does not already
// exist. Safe to call on every startup.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS epoch_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			at        INTEGER NOT NULL,
			peer_id   INTEGER NOT NULL,
			epoch     INTEGER NOT NULL,
			kind      TEXT NOT NULL,
			detail    TEXT,
			prev_hash TEXT,
			hash      TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

// Recent returns the most recent limit events, oldest first, for
// inspection by tests and the CLI.
func Recent(db *sql.DB, limit int) ([]EpochEvent, error) {
	rows, err := db.Query(`
		SELECT at, peer_id, epoch, kind, detail, prev_hash, hash
		FROM epoch_events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent events: %w", err)
	}
	defer rows.Close()

	var events []EpochEvent
	for rows.Next() {
		var e EpochEvent
		var atUnixNano int64
		if err := rows.Scan(&atUnixNano, &e.PeerID, &e.Epoch, &e.Kind, &e.Detail, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.At = time.Unix(0, atUnixNano)
		events = append(events, e)
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, rows.Err()
}
