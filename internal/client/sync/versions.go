package sync

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/openvault/vaultsync/internal/utils"
)

// maxVersions is the retention cap per file. Oldest snapshots by embedded
// timestamp are pruned first.
const maxVersions = 3

// VersionStore snapshots a file's bytes before any destructive local
// overwrite or delete. Snapshots live under
// .versions/<rel-dir>/<basename>.<epochMillis>.
type VersionStore struct {
	vault *vault.Vault
}

func NewVersionStore(v *vault.Vault) *VersionStore {
	return &VersionStore{vault: v}
}

// Snapshot copies the current bytes of a vault-relative path into the
// version tree and prunes beyond the retention cap. Missing files are a
// no-op: there is nothing to protect.
func (s *VersionStore) Snapshot(relPath string) error {
	absPath := s.vault.AbsPath(relPath)
	if !utils.FileExists(absPath) {
		return nil
	}

	base := filepath.Base(relPath)
	snapDir := filepath.Join(s.vault.VersionsDir, filepath.FromSlash(filepath.Dir(relPath)))

	// two snapshots within the same millisecond must not share a name
	millis := time.Now().UnixMilli()
	snapPath := filepath.Join(snapDir, fmt.Sprintf("%s.%d", base, millis))
	for utils.FileExists(snapPath) {
		millis++
		snapPath = filepath.Join(snapDir, fmt.Sprintf("%s.%d", base, millis))
	}

	if err := utils.CopyFile(absPath, snapPath); err != nil {
		return fmt.Errorf("snapshot %s: %w", relPath, err)
	}

	s.prune(snapDir, base)
	return nil
}

// Snapshots lists the retained snapshot paths for a file, oldest first.
func (s *VersionStore) Snapshots(relPath string) []string {
	base := filepath.Base(relPath)
	snapDir := filepath.Join(s.vault.VersionsDir, filepath.FromSlash(filepath.Dir(relPath)))
	return listSnapshots(snapDir, base)
}

func (s *VersionStore) prune(snapDir string, base string) {
	snaps := listSnapshots(snapDir, base)
	for len(snaps) > maxVersions {
		oldest := snaps[0]
		if err := os.Remove(oldest); err != nil {
			slog.Warn("version prune", "path", oldest, "error", err)
			return
		}
		snaps = snaps[1:]
	}
}

// listSnapshots returns snapshots for a basename sorted ascending by the
// embedded millisecond timestamp.
func listSnapshots(snapDir string, base string) []string {
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		return nil
	}

	type snap struct {
		path   string
		millis int64
	}
	var snaps []snap
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, base+".") {
			continue
		}
		millis, err := strconv.ParseInt(name[len(base)+1:], 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, snap{path: filepath.Join(snapDir, name), millis: millis})
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].millis < snaps[j].millis })

	paths := make([]string, len(snaps))
	for i, sn := range snaps {
		paths[i] = sn.path
	}
	return paths
}
