package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BufferedLogger batches EpochEvent writes to reduce sqlite I/O during
// a storm of election activity (e.g. a partition healing and three
// peers timing out within the same randomized window).
type BufferedLogger struct {
	db            *sql.DB
	log           *slog.Logger
	buffer        []EpochEvent
	bufferMutex   sync.Mutex
	flushTicker   *time.Ticker
	stopChan      chan struct{}
	maxBuffer     int
	flushInterval time.Duration
	hmacKey       []byte
}

// NewBufferedLogger returns a BufferedLogger flushing to db, batching
// up to maxBuffer events or flushInterval, whichever comes first.
// hmacKey may be nil to disable row hashing.
func NewBufferedLogger(db *sql.DB, maxBuffer int, flushInterval time.Duration, hmacKey []byte, log *slog.Logger) *BufferedLogger {
	if maxBuffer <= 0 {
		maxBuffer = 50
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &BufferedLogger{
		db:            db,
		log:           log,
		buffer:        make([]EpochEvent, 0, maxBuffer),
		maxBuffer:     maxBuffer,
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
		hmacKey:       hmacKey,
	}
}

// Start begins the background flushing goroutine.
func (bl *BufferedLogger) Start() {
	bl.flushTicker = time.NewTicker(bl.flushInterval)
	go func() {
		for {
			select {
			case <-bl.flushTicker.C:
				if err := bl.Flush(); err != nil {
					bl.log.Warn("audit flush failed", "error", err)
				}
			case <-bl.stopChan:
				bl.flushTicker.Stop()
				if err := bl.Flush(); err != nil {
					bl.log.Warn("audit final flush failed", "error", err)
				}
				return
			}
		}
	}()
}

// Stop signals the background goroutine to flush any buffered events
// and exit. It returns without waiting for that final flush, and it
// flushes nothing if Start was never called.
func (bl *BufferedLogger) Stop() {
	close(bl.stopChan)
}

// electionCriticalKinds bypass the buffer and write directly: these
// are the events testable property 3 (quorum safety) relies on being
// durable even across a crash immediately after the win.
var electionCriticalKinds = map[string]bool{
	KindQuorumWon:     true,
	KindBecameTracker: true,
}

// Record writes an election-critical EpochEvent straight to the
// database, leaving the buffer untouched; any other event is appended
// to the buffer, which is flushed once it is full.
func (bl *BufferedLogger) Record(e EpochEvent) error {
	e.At = time.Now()

	if electionCriticalKinds[e.Kind] {
		return bl.writeDirect([]EpochEvent{e})
	}

	bl.bufferMutex.Lock()
	bl.buffer = append(bl.buffer, e)
	needFlush := len(bl.buffer) >= bl.maxBuffer
	bl.bufferMutex.Unlock()

	if needFlush {
		return bl.Flush()
	}
	return nil
}

// RecordEpochEvent is the narrow convenience method internal/election
// and internal/peernode call; it satisfies the small sink interfaces
// those packages declare locally so this package need not be imported
// by name for test doubles.
func (bl *BufferedLogger) RecordEpochEvent(peerID, epoch uint64, kind, detail string) {
	if err := bl.Record(EpochEvent{PeerID: peerID, Epoch: epoch, Kind: kind, Detail: detail}); err != nil {
		bl.log.Warn("audit record failed", "kind", kind, "error", err)
	}
}

func (bl *BufferedLogger) writeDirect(events []EpochEvent) error {
	return bl.writeBatch(events)
}

// Flush writes all buffered events to sqlite in a single transaction.
func (bl *BufferedLogger) Flush() error {
	bl.bufferMutex.Lock()
	if len(bl.buffer) == 0 {
		bl.bufferMutex.Unlock()
		return nil
	}
	events := make([]EpochEvent, len(bl.buffer))
	copy(events, bl.buffer)
	bl.buffer = bl.buffer[:0]
	bl.bufferMutex.Unlock()

	return bl.writeBatch(events)
}

func (bl *BufferedLogger) writeBatch(events []EpochEvent) error {
	if bl.db == nil {
		for _, e := range events {
			bl.log.Info("audit event (no db configured)", "kind", e.Kind, "peer_id", e.PeerID, "epoch", e.Epoch)
		}
		return nil
	}
	tx, err := bl.db.Begin()
	if err != nil {
		return fmt.Errorf("audit: begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prevHash string
	_ = tx.QueryRow(`SELECT COALESCE(hash, '') FROM epoch_events ORDER BY id DESC LIMIT 1`).Scan(&prevHash)

	stmt, err := tx.Prepare(`
		INSERT INTO epoch_events (at, peer_id, epoch, kind, detail, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("audit: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		hash := computeRowHash(bl.hmacKey, prevHash, e)
		if _, err := stmt.Exec(e.At.UnixNano(), e.PeerID, e.Epoch, e.Kind, e.Detail, prevHash, hash); err != nil {
			bl.log.Warn("audit insert failed", "kind", e.Kind, "error", err)
			continue
		}
		prevHash = hash
	}
	return tx.Commit()
}
