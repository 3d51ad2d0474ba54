package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trackerd/internal/cmdutil"
	"trackerd/internal/config"
	"trackerd/internal/logging"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Spawn a nameserver and N peers locally, for manual/testable runs",
	Long: `Starts one nameserver subprocess and peerCount peer subprocesses,
each listening on a consecutive port starting at basePort, each with
its own file store directory under storeRoot — a local stand-in for the
GUI-driven cluster launcher that sits out of scope here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		peerCount, _ := cmd.Flags().GetInt("peers")
		nsListen, _ := cmd.Flags().GetString("nameserver-listen")
		basePort, _ := cmd.Flags().GetInt("base-port")
		storeRoot, _ := cmd.Flags().GetString("store-root")

		cfg := config.Cluster{
			PeerCount: peerCount,
			BasePort:  basePort,
			StoreRoot: storeRoot,
		}
		if cfg.PeerCount < 1 {
			return fmt.Errorf("cluster: --peers must be at least 1")
		}

		log := logging.Default("cluster")
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("cluster: locate trackerd binary: %w", err)
		}

		log.Info("spawning nameserver", "listen", nsListen)
		nsProc, err := cmdutil.Spawn(ctx, self, "nameserver", "--listen", nsListen)
		if err != nil {
			return fmt.Errorf("cluster: %w", err)
		}
		time.Sleep(200 * time.Millisecond) // give the nameserver a moment to bind

		nsURL := "http://127.0.0.1" + nsListen

		for i := 0; i < cfg.PeerCount; i++ {
			id := i + 1
			port := cfg.BasePort + i
			listen := fmt.Sprintf(":%d", port)
			storeDir := filepath.Join(cfg.StoreRoot, "peer_"+strconv.Itoa(id))

			log.Info("spawning peer", "id", id, "listen", listen)
			if _, err := cmdutil.Spawn(ctx, self, "peer",
				"--id", strconv.Itoa(id),
				"--listen", listen,
				"--nameserver", nsURL,
				"--files-dir", storeDir,
			); err != nil {
				return fmt.Errorf("cluster: spawn peer %d: %w", id, err)
			}
			time.Sleep(50 * time.Millisecond) // stagger startup, mirrors start_all_peers
		}

		log.Info("cluster running", "peers", cfg.PeerCount)
		<-ctx.Done()
		log.Info("cluster shutting down")
		_ = nsProc.Wait()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.Flags().Int("peers", 3, "Number of peer subprocesses to spawn")
	clusterCmd.Flags().String("nameserver-listen", ":7000", "Address the nameserver subprocess listens on")
	clusterCmd.Flags().Int("base-port", 7001, "First peer's listen port; subsequent peers increment from here")
	clusterCmd.Flags().String("store-root", "./cluster-files", "Root directory under which each peer gets its own store subdirectory")
}
