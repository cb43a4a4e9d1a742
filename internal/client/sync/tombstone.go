package sync

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/openvault/vaultsync/internal/utils"
)

const (
	tombstoneExt = ".deleted"

	// TombstoneMaxAge is the safety net against orphaned records: any
	// tombstone older than this is pruned unconditionally.
	TombstoneMaxAge = 7 * 24 * time.Hour
)

// Tombstone marks a local deletion that still has to propagate to the
// remote side. It is cleared only once reconciled against a remote
// manifest within the same pass.
type Tombstone struct {
	Path      string    `json:"-"`
	DeletedAt time.Time `json:"deleted_at"`
	DeviceID  string    `json:"device_id"`
}

// TombstoneStore persists deletion markers under
// .tombstones/<rel-path>.deleted.
type TombstoneStore struct {
	vault    *vault.Vault
	versions *VersionStore
	deviceID string
}

func NewTombstoneStore(v *vault.Vault, versions *VersionStore, deviceID string) *TombstoneStore {
	return &TombstoneStore{
		vault:    v,
		versions: versions,
		deviceID: deviceID,
	}
}

// Create writes a tombstone for a vault-relative path, creating parent
// directories as needed.
func (s *TombstoneStore) Create(relPath string) error {
	t := &Tombstone{
		DeletedAt: time.Now().UTC(),
		DeviceID:  s.deviceID,
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tombstone %s: %w", relPath, err)
	}

	markerPath := s.markerPath(relPath)
	if err := utils.EnsureParent(markerPath); err != nil {
		return fmt.Errorf("tombstone parent %s: %w", relPath, err)
	}
	if err := os.WriteFile(markerPath, data, 0o644); err != nil {
		return fmt.Errorf("write tombstone %s: %w", relPath, err)
	}
	return nil
}

// List reads all tombstones back keyed by their original relative paths.
// A record that fails to parse is logged and skipped.
func (s *TombstoneStore) List() (map[string]*Tombstone, error) {
	tombstones := make(map[string]*Tombstone)
	if !utils.DirExists(s.vault.TombstonesDir) {
		return tombstones, nil
	}

	err := filepath.WalkDir(s.vault.TombstonesDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, tombstoneExt) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("tombstone read", "path", path, "error", err)
			return nil
		}

		var t Tombstone
		if err := json.Unmarshal(data, &t); err != nil {
			slog.Warn("tombstone parse", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(s.vault.TombstonesDir, path)
		if err != nil {
			return nil
		}
		t.Path = strings.TrimSuffix(vault.NormPath(rel), tombstoneExt)
		tombstones[t.Path] = &t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tombstones: %w", err)
	}

	return tombstones, nil
}

// Remove clears the tombstone for a path. Missing markers are a no-op.
func (s *TombstoneStore) Remove(relPath string) error {
	err := os.Remove(s.markerPath(relPath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove tombstone %s: %w", relPath, err)
	}
	return nil
}

// Prune deletes tombstones older than maxAge unconditionally. Returns the
// number pruned.
func (s *TombstoneStore) Prune(maxAge time.Duration) (int, error) {
	tombstones, err := s.List()
	if err != nil {
		return 0, err
	}

	pruned := 0
	cutoff := time.Now().Add(-maxAge)
	for path, t := range tombstones {
		if t.DeletedAt.Before(cutoff) {
			if err := s.Remove(path); err != nil {
				slog.Warn("tombstone prune", "path", path, "error", err)
				continue
			}
			pruned++
		}
	}
	return pruned, nil
}

// DeleteFileWithTombstone is the entry point for a user-initiated delete
// of a synced file: snapshot, delete, then tombstone. The snapshot comes
// first so the delete is recoverable.
func (s *TombstoneStore) DeleteFileWithTombstone(relPath string) error {
	if err := s.versions.Snapshot(relPath); err != nil {
		return err
	}
	if err := os.Remove(s.vault.AbsPath(relPath)); err != nil {
		return fmt.Errorf("delete %s: %w", relPath, err)
	}
	return s.Create(relPath)
}

func (s *TombstoneStore) markerPath(relPath string) string {
	return filepath.Join(s.vault.TombstonesDir, filepath.FromSlash(relPath)+tombstoneExt)
}
