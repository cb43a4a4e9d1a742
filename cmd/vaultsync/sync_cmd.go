package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/openvault/vaultsync/internal/client/merge"
	"github.com/openvault/vaultsync/internal/client/sync"
	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/openvault/vaultsync/internal/vaultsdk"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return err
		}

		pattern, _ := cmd.Flags().GetString("pattern")
		includeBinary, _ := cmd.Flags().GetBool("binary")
		date, _ := cmd.Flags().GetString("date")
		quick, _ := cmd.Flags().GetBool("quick")

		cmd.SilenceUsage = true
		showHeader()

		v, err := vault.New(cfg.VaultDir)
		if err != nil {
			return err
		}
		// one sync pass in flight per vault; the lock is how this process
		// keeps that promise, the engine itself never locks
		if err := v.Setup(); err != nil {
			return err
		}
		defer v.Unlock()

		sdk, err := vaultsdk.New(cfg.ServerURL, cfg.APIKey, cfg.DeviceID)
		if err != nil {
			return err
		}
		defer sdk.Close()

		if err := sdk.Sync.Health(cmd.Context()); err != nil {
			return fmt.Errorf("remote store unreachable: %w", err)
		}

		history, err := sync.NewHistoryStore(filepath.Join(cfg.VaultDir, vault.VersionsDirName, "history.db"))
		if err != nil {
			slog.Warn("sync history unavailable", "error", err)
			history = nil
		} else {
			defer history.Close()
		}

		engine := sync.NewEngine(sync.Options{
			Vault:    v,
			SDK:      sdk,
			Root:     cfg.RemoteRoot,
			DeviceID: cfg.DeviceID,
			Quick:    quick || cfg.QuickScan,
			Merger:   merge.NewJournalMerger(),
			History:  history,
			Progress: func(p sync.Progress) {
				slog.Info("transfer", "phase", p.Phase, "progress", fmt.Sprintf("%d/%d", p.Current, p.Total), "file", p.CurrentFile)
			},
		})

		var result *sync.SyncResult
		if date != "" {
			result = engine.SyncDate(cmd.Context(), date, includeBinary)
		} else {
			result = engine.Sync(cmd.Context(), pattern, includeBinary)
		}

		printResult(result)
		if !result.Success {
			return fmt.Errorf("sync failed: %v", result.Errors)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().SortFlags = false
	syncCmd.Flags().StringP("pattern", "p", "*", "filename suffix to sync, or * for all")
	syncCmd.Flags().BoolP("binary", "b", false, "include binary attachments")
	syncCmd.Flags().String("date", "", "restrict the pass to one day (YYYY-MM-DD)")
	syncCmd.Flags().Bool("quick", false, "fingerprint by mtime instead of content hash")
}

func printResult(r *sync.SyncResult) {
	fmt.Printf("pushed %d, pulled %d, deleted %d, merged %d in %s\n",
		r.Pushed, r.Pulled, r.Deleted, r.Merged, r.Elapsed.Round(1e6))
	for _, c := range r.Conflicts {
		fmt.Println("conflict:", c)
	}
	for _, e := range r.Errors {
		fmt.Println("error:", e)
	}
}
