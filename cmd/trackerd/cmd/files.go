package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"trackerd/internal/config"
	"trackerd/internal/logging"
	"trackerd/internal/peernode"
	"trackerd/internal/transport"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Add, search, download, and list files in a running cluster",
}

var filesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Copy a local file into a peer's store directory",
	Long: `There is no remote "upload" RPC on the wire surface — a peer
only ever advertises what it already holds on disk. This copies the
file directly into the target peer's files-dir; the peer picks it up
and advertises it the next time it (re-)registers with the Tracker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filesDir, _ := cmd.Flags().GetString("files-dir")
		name, _ := cmd.Flags().GetString("name")
		from, _ := cmd.Flags().GetString("from")

		content, err := os.ReadFile(from)
		if err != nil {
			return fmt.Errorf("files add: read %s: %w", from, err)
		}
		if err := os.MkdirAll(filesDir, 0o755); err != nil {
			return fmt.Errorf("files add: create %s: %w", filesDir, err)
		}
		dest := filepath.Join(filesDir, name)
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return fmt.Errorf("files add: write %s: %w", dest, err)
		}
		fmt.Printf("copied %s into %s (%d bytes); the peer will advertise it on its next tracker registration\n", name, filesDir, len(content))
		return nil
	},
}

var filesSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find which peers hold a file, via the current Tracker",
	RunE: func(cmd *cobra.Command, args []string) error {
		peerURL, _ := cmd.Flags().GetString("peer")
		name, _ := cmd.Flags().GetString("name")

		client := transport.NewClient(peerURL)
		ids, err := client.SearchFile(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("files search: %w", err)
		}
		if len(ids) == 0 {
			fmt.Printf("no peers currently hold %s\n", name)
			return nil
		}
		fmt.Printf("%s is held by peers: %v\n", name, ids)
		return nil
	},
}

var filesDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a file from the peer that holds it, via the Name Directory",
	Long: `Resolves --owner's endpoint through the Name Directory and
fetches --name from it, saving it into --files-dir and retrying
re-registration with the Tracker — the same
peernode.Peer.DownloadFileFromPeer path a peer uses internally when a
user asks it to fetch a file someone else holds (source: peer.py's
download_file_from_peer).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nameserver, _ := cmd.Flags().GetString("nameserver")
		filesDir, _ := cmd.Flags().GetString("files-dir")
		owner, _ := cmd.Flags().GetUint64("owner")
		name, _ := cmd.Flags().GetString("name")

		p, closeFn, err := ephemeralPeer(nameserver, filesDir)
		if err != nil {
			return fmt.Errorf("files download: %w", err)
		}
		defer closeFn()

		if err := p.DownloadFileFromPeer(cmd.Context(), owner, name); err != nil {
			return fmt.Errorf("files download: %w", err)
		}
		fmt.Printf("downloaded %s from peer.%d into %s\n", name, owner, filesDir)
		return nil
	},
}

var filesNetworkCmd = &cobra.Command{
	Use:   "network",
	Short: "List every file every peer currently advertises",
	Long: `Asks the current Tracker for the full peer_id -> files index
(source: peer.py's network_files), via peernode.Peer.NetworkFiles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nameserver, _ := cmd.Flags().GetString("nameserver")
		filesDir, _ := cmd.Flags().GetString("files-dir")

		p, closeFn, err := ephemeralPeer(nameserver, filesDir)
		if err != nil {
			return fmt.Errorf("files network: %w", err)
		}
		defer closeFn()

		index, err := p.NetworkFiles(cmd.Context())
		if err != nil {
			return fmt.Errorf("files network: %w", err)
		}
		if len(index) == 0 {
			fmt.Println("no files registered anywhere")
			return nil
		}
		for peerID, names := range index {
			fmt.Printf("peer.%d: %v\n", peerID, names)
		}
		return nil
	},
}

// ephemeralPeer builds a Peer wired only for one-shot CLI use against
// an already-running cluster: no listen address, never started, never
// registered in the Name Directory, never serving RPCs. It exists
// solely to reuse the directory/pool/locator plumbing a real Peer
// already has instead of duplicating that wiring in the CLI.
func ephemeralPeer(nameserver, filesDir string) (*peernode.Peer, func(), error) {
	cfg := config.Peer{
		ID:            math.MaxUint64,
		StoreDir:      filesDir,
		DirectoryAddr: nameserver,
	}
	log := logging.Default("files-cli")
	p, err := peernode.New(cfg, log, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(filesAddCmd)
	filesCmd.AddCommand(filesSearchCmd)
	filesCmd.AddCommand(filesDownloadCmd)
	filesCmd.AddCommand(filesNetworkCmd)

	filesSearchCmd.Flags().String("peer", "", "Base URL of a running peer, e.g. http://localhost:7001 (required)")
	filesSearchCmd.Flags().String("name", "", "File name (required)")
	_ = filesSearchCmd.MarkFlagRequired("peer")
	_ = filesSearchCmd.MarkFlagRequired("name")

	filesAddCmd.Flags().String("files-dir", "", "Target peer's files-dir (required)")
	filesAddCmd.Flags().String("name", "", "File name (required)")
	filesAddCmd.Flags().String("from", "", "Local path to upload (required)")
	_ = filesAddCmd.MarkFlagRequired("files-dir")
	_ = filesAddCmd.MarkFlagRequired("name")
	_ = filesAddCmd.MarkFlagRequired("from")

	for _, c := range []*cobra.Command{filesDownloadCmd, filesNetworkCmd} {
		c.Flags().String("nameserver", "", "Name Directory base URL, e.g. http://localhost:7000 (required)")
		c.Flags().String("files-dir", "", "Local scratch store used to resolve the Tracker and, for download, save the file (required)")
		_ = c.MarkFlagRequired("nameserver")
		_ = c.MarkFlagRequired("files-dir")
	}
	filesDownloadCmd.Flags().Uint64("owner", 0, "PeerId that holds the file (required)")
	filesDownloadCmd.Flags().String("name", "", "File name (required)")
	_ = filesDownloadCmd.MarkFlagRequired("owner")
	_ = filesDownloadCmd.MarkFlagRequired("name")
}
