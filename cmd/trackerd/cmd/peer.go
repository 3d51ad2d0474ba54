package cmd

import (
	"database/sql"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/mattn/go-sqlite3"

	"trackerd/internal/audit"
	"trackerd/internal/config"
	"trackerd/internal/logging"
	"trackerd/internal/monitor"
	"trackerd/internal/peernode"
)

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run a peer node",
	Long: `Runs one peer: joins the Name Directory, serves the RPC
surface other peers call, and participates in Tracker elections and
heartbeats.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetUint64("id")
		listen, _ := cmd.Flags().GetString("listen")
		advertise, _ := cmd.Flags().GetString("advertise")
		filesDir, _ := cmd.Flags().GetString("files-dir")
		nameserver, _ := cmd.Flags().GetString("nameserver")
		auditDB, _ := cmd.Flags().GetString("audit-db")
		monitorAddr, _ := cmd.Flags().GetString("monitor-listen")

		cfg := config.DefaultPeer(id, listen, nameserver, filesDir)
		cfg.AdvertiseAddr = advertise
		cfg.AuditDBPath = auditDB
		cfg.MonitorAddr = monitorAddr
		if err := cfg.Validate(); err != nil {
			return err
		}

		log := logging.Default(fmt.Sprintf("peer.%d", cfg.ID))

		var auditLogger *audit.BufferedLogger
		if cfg.AuditDBPath != "" {
			if err := mkdirAllParent(cfg.AuditDBPath); err != nil {
				return err
			}
			db, err := sql.Open("sqlite3", cfg.AuditDBPath)
			if err != nil {
				return fmt.Errorf("peer: open audit db: %w", err)
			}
			if err := audit.EnsureSchema(db); err != nil {
				return fmt.Errorf("peer: prepare audit schema: %w", err)
			}
			key, err := audit.LoadOrCreateKey(filepath.Join(filepath.Dir(cfg.AuditDBPath), "audit.key"))
			if err != nil {
				return fmt.Errorf("peer: load audit key: %w", err)
			}
			auditLogger = audit.NewBufferedLogger(db, 50, 2*time.Second, key, log)
			auditLogger.Start()
			defer auditLogger.Stop()
		}

		mon := monitor.NewHub(log)

		p, err := peernode.New(cfg, log, auditLogger, mon)
		if err != nil {
			return fmt.Errorf("peer: %w", err)
		}
		defer p.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if cfg.MonitorAddr != "" {
			go serveMonitor(ctx, cfg.MonitorAddr, mon, log)
		}

		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("peer: start: %w", err)
		}

		log.Info("peer running", "id", cfg.ID, "listen", cfg.ListenAddr)
		<-ctx.Done()
		log.Info("peer shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(peerCmd)
	peerCmd.Flags().Uint64("id", 0, "This peer's unique PeerId (required, must be > 0)")
	peerCmd.Flags().String("listen", "", "Address the RPC endpoint binds to (required)")
	peerCmd.Flags().String("advertise", "", "HTTP base URL other peers use to reach this peer (defaults to http://<listen>)")
	peerCmd.Flags().String("files-dir", "", "Directory backing this peer's local file store (required)")
	peerCmd.Flags().String("nameserver", "", "Name Directory base URL, e.g. http://localhost:7000 (required)")
	peerCmd.Flags().String("audit-db", "", "sqlite path for the epoch/election audit trail (disabled if empty)")
	peerCmd.Flags().String("monitor-listen", "", "Address to serve the websocket event feed on (disabled if empty)")
	_ = peerCmd.MarkFlagRequired("id")
	_ = peerCmd.MarkFlagRequired("listen")
	_ = peerCmd.MarkFlagRequired("files-dir")
	_ = peerCmd.MarkFlagRequired("nameserver")
}
