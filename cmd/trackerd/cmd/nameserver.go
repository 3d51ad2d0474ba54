package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trackerd/internal/config"
	"trackerd/internal/directory"
	"trackerd/internal/logging"
)

var nameserverCmd = &cobra.Command{
	Use:   "nameserver",
	Short: "Run the reference Name Directory server",
	Long: `Runs a minimal Name Directory: an in-memory registry mapping
names (peer.<id>, Tracker_Epoca_<epoch>) to HTTP endpoints, used by
peers to discover each other and the current Tracker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		cfg := config.NameServer{ListenAddr: listen}

		log := logging.Default("nameserver")
		log.Info("starting name directory", "listen", cfg.ListenAddr)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		srv := directory.NewServer(cfg.ListenAddr)
		if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("nameserver: %w", err)
		}
		log.Info("name directory stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nameserverCmd)
	nameserverCmd.Flags().String("listen", ":7000", "Address to listen on")
}
