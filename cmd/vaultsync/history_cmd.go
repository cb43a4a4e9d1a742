package main

import (
	"fmt"
	"path/filepath"

	"github.com/openvault/vaultsync/internal/client/sync"
	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync passes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		n, _ := cmd.Flags().GetInt("count")
		store, err := sync.NewHistoryStore(filepath.Join(cfg.VaultDir, vault.VersionsDirName, "history.db"))
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Recent(n)
		if err != nil {
			return err
		}

		for _, e := range entries {
			status := "ok"
			if !e.Success {
				status = "FAILED"
			}
			fmt.Printf("%s  %-4s %-6s push=%d pull=%d del=%d merge=%d conflicts=%d errors=%d %dms\n",
				e.StartedAt, e.Mode, status, e.Pushed, e.Pulled, e.Deleted, e.Merged, e.Conflicts, e.Errors, e.ElapsedMs)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("count", "n", 20, "number of entries to show")
}
