// Package cmd holds trackerd's cobra command tree: nameserver, peer,
// cluster, and files, grounded on Snider-Mining/cmd/mining/cmd's
// layout (one file per command/command-group, package-level *cobra.Command
// vars wired together in init()).
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trackerd",
	Short: "trackerd runs a peer-to-peer file tracker with an elected tracker role",
	Long: `trackerd is a small peer-to-peer file sharing network.

Peers register themselves with a shared Name Directory, advertise the
files they hold to whichever peer currently holds the elected Tracker
role, and re-elect a Tracker by majority vote whenever the current one
stops responding.`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}
