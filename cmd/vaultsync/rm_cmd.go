package main

import (
	"github.com/openvault/vaultsync/internal/client/sync"
	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/spf13/cobra"
)

// rmCmd deletes a synced file the safe way: snapshot, delete, tombstone.
// The tombstone propagates the delete to the remote side on the next sync.
var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a vault file and mark it for remote deletion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		v, err := vault.New(cfg.VaultDir)
		if err != nil {
			return err
		}

		versions := sync.NewVersionStore(v)
		tombstones := sync.NewTombstoneStore(v, versions, cfg.DeviceID)
		return tombstones.DeleteFileWithTombstone(vault.NormPath(args[0]))
	},
}
