package peernode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trackerd/internal/audit"
	"trackerd/internal/config"
	"trackerd/internal/detector"
	"trackerd/internal/directory"
	"trackerd/internal/election"
	"trackerd/internal/heartbeat"
	"trackerd/internal/index"
	"trackerd/internal/locator"
	"trackerd/internal/monitor"
	"trackerd/internal/store"
	"trackerd/internal/transport"
)

// Peer is one node in the cluster: the role state machine plus every
// component it owns. The Tracker Index is always allocated, simply
// unused while Role != Tracker — resolving the "lazily creates the
// Tracker Index on role transition" design note without a tagged
// union for Role's associated data.
type Peer struct {
	cfg config.Peer
	log *slog.Logger

	state state
	store *store.Store
	index *index.Index

	dir  *directory.Client
	pool *transport.Pool

	locator     *locator.Locator
	watchdog    *detector.Watchdog
	coordinator *election.Coordinator
	emitter     *heartbeat.Emitter

	audit *audit.BufferedLogger
	mon   *monitor.Hub

	transportServer *transport.Server
}

// New wires every component for cfg. auditLogger and mon may be nil,
// in which case an audit logger with no database (it only logs each
// event) and a hub with no connected clients are substituted.
func New(cfg config.Peer, log *slog.Logger, auditLogger *audit.BufferedLogger, mon *monitor.Hub) (*Peer, error) {
	if log == nil {
		log = slog.Default()
	}
	st, err := store.Open(cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("peernode: open store: %w", err)
	}

	p := &Peer{
		cfg:   cfg,
		log:   log,
		store: st,
		index: index.New(),
		dir:   directory.NewClient(cfg.DirectoryAddr),
		pool:  transport.NewPool(),
		audit: auditLogger,
		mon:   mon,
	}
	if p.audit == nil {
		p.audit = audit.NewBufferedLogger(nil, 1, time.Hour, nil, log)
	}
	if p.mon == nil {
		p.mon = monitor.NewHub(log)
	}

	p.transportServer = transport.NewServer(cfg.ListenAddr, p, log)

	p.locator = locator.New(p.dir)
	p.watchdog = detector.New(cfg.DetectorTimeoutMin, cfg.DetectorTimeoutMax, p.pingCachedTracker, p.onSuspectTracker)
	p.coordinator = election.New(
		electionState{p},
		p.dir,
		election.Pool(func(endpoint string) election.VoteCaller { return p.pool.Get(endpoint) }),
		log,
		p.audit,
		electionMonitor{p.mon},
	)
	p.emitter = heartbeat.New(
		heartbeatState{p},
		p.dir,
		heartbeat.Pool(func(endpoint string) heartbeat.Caller { return p.pool.Get(endpoint) }),
		log,
	).WithPeriod(cfg.HeartbeatInterval).WithIndex(p.index)

	return p, nil
}

// PeerID returns this peer's identity.
func (p *Peer) PeerID() uint64 { return p.cfg.ID }

// Role returns the current role.
func (p *Peer) Role() Role { return p.state.Role() }

// CurrentEpoch returns the current epoch.
func (p *Peer) CurrentEpoch() uint64 { return p.state.Epoch() }

func (p *Peer) selfName() string { return fmt.Sprintf("peer.%d", p.cfg.ID) }

// Start registers this peer in the Name Directory, launches the
// watchdog, and either discovers the current Tracker or escalates
// directly to an election — mirroring the source's
// find_and_register_with_tracker startup sequence.
func (p *Peer) Start(ctx context.Context) error {
	if err := p.dir.Register(ctx, p.selfName(), p.cfg.Effective()); err != nil {
		return fmt.Errorf("peernode: register in directory: %w", err)
	}

	go p.watchdog.Run(ctx)
	go p.mon.Run(ctx.Done())
	go func() {
		if err := p.transportServer.ListenAndServe(); err != nil {
			p.log.Debug("rpc server stopped", "error", err)
		}
	}()

	if tr, err := p.locator.Find(ctx); err == nil {
		p.log.Info("found existing tracker", "endpoint", tr.Endpoint, "epoch", tr.Epoch)
		p.registerFilesWithTracker(ctx)
		return nil
	}

	p.log.Info("no tracker found at startup, starting election")
	if _, err := p.coordinator.Run(ctx); err != nil {
		p.log.Warn("startup election failed", "error", err)
	}
	return nil
}

// Close shuts down the RPC server and flushes the audit trail.
func (p *Peer) Close() error {
	if err := p.transportServer.Close(); err != nil {
		return err
	}
	return p.audit.Flush()
}

// pingCachedTracker is the watchdog's double-check before declaring
// the Tracker unreachable.
func (p *Peer) pingCachedTracker(ctx context.Context) (bool, error) {
	tr, err := p.locator.Find(ctx)
	if err != nil {
		return false, err
	}
	return p.pool.Get(tr.Endpoint).Ping(ctx)
}

// onSuspectTracker is the watchdog's escalation callback: hand off to
// the Election Coordinator (§4.3 step "only if the ping fails ...
// does it hand off to C6").
func (p *Peer) onSuspectTracker() {
	p.locator.Invalidate()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := p.coordinator.Run(ctx); err != nil {
		p.log.Debug("election attempt skipped", "error", err)
	}
}

// BecomeTracker implements §4.5 verbatim, called by the election
// coordinator on a quorum win.
func (p *Peer) BecomeTracker(ctx context.Context, newEpoch uint64) error {
	p.state.setTracker(newEpoch)

	// Step 2: best-effort unregister of any stale Tracker_Epoca_* entries.
	if existing, err := p.dir.List(ctx, "Tracker_Epoca_"); err == nil {
		for name := range existing {
			if err := p.dir.Unregister(ctx, name); err != nil {
				p.log.Warn("failed to unregister stale tracker entry", "name", name, "error", err)
			}
		}
	}

	// Step 3: seed the index with only this peer's own files.
	files, err := p.store.List()
	if err != nil {
		p.log.Warn("listing local files while becoming tracker", "error", err)
		files = nil
	}
	p.index.Reset()
	p.index.Register(p.cfg.ID, files)

	// Step 4.
	if err := p.dir.Register(ctx, locator.TrackerName(newEpoch), p.cfg.Effective()); err != nil {
		return fmt.Errorf("peernode: register as tracker: %w", err)
	}

	// Step 5.
	go p.emitter.Run(ctx)

	p.locator.Invalidate()
	return nil
}

// registerFilesWithTracker advertises the local file set to whichever
// peer is currently Tracker (source: _register_files_with_tracker).
func (p *Peer) registerFilesWithTracker(ctx context.Context) bool {
	files, err := p.store.List()
	if err != nil {
		p.log.Warn("listing local files", "error", err)
		return false
	}

	if p.Role() == Tracker {
		p.index.Register(p.cfg.ID, files)
		return true
	}

	tr, err := p.locator.Find(ctx)
	if err != nil {
		p.log.Debug("register_files: no tracker available", "error", err)
		return false
	}
	ok, err := p.pool.Get(tr.Endpoint).RegisterFiles(ctx, p.cfg.ID, files)
	if err != nil {
		p.log.Debug("register_files failed", "endpoint", tr.Endpoint, "error", err)
		return false
	}
	if !ok {
		// The cached endpoint is no longer Tracker: re-resolve and retry once.
		if tr, err = p.locator.Refresh(ctx); err != nil {
			p.log.Debug("register_files: no tracker available", "error", err)
			return false
		}
		if ok, err = p.pool.Get(tr.Endpoint).RegisterFiles(ctx, p.cfg.ID, files); err != nil {
			p.log.Debug("register_files failed", "endpoint", tr.Endpoint, "error", err)
			return false
		}
	}
	return ok
}

// electionState adapts *Peer to election.State.
type electionState struct{ p *Peer }

func (e electionState) PeerID() uint64       { return e.p.PeerID() }
func (e electionState) CurrentEpoch() uint64 { return e.p.CurrentEpoch() }
func (e electionState) SetCandidate(newEpoch uint64) {
	e.p.state.setCandidate(newEpoch)
}
func (e electionState) BecomeTracker(ctx context.Context, newEpoch uint64) error {
	return e.p.BecomeTracker(ctx, newEpoch)
}
func (e electionState) SetFollower() { e.p.state.setFollower() }

// heartbeatState adapts *Peer to heartbeat.State.
type heartbeatState struct{ p *Peer }

func (h heartbeatState) IsTracker() bool      { return h.p.Role() == Tracker }
func (h heartbeatState) CurrentEpoch() uint64 { return h.p.CurrentEpoch() }
func (h heartbeatState) PeerID() uint64       { return h.p.PeerID() }

// electionMonitor adapts *monitor.Hub to election.EventSink (a plain
// method-set match would do, but the explicit wrapper keeps the
// conversion visible at the call site above).
type electionMonitor struct{ hub *monitor.Hub }

func (m electionMonitor) Publish(kind string, peerID, epoch uint64, data any) {
	m.hub.Publish(kind, peerID, epoch, data)
}
