package sync

import (
	"log/slog"

	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/openvault/vaultsync/internal/vaultsdk"
)

// FileRecord is a side-specific, point-in-time fingerprint of one file.
// Hash is SHA-256 over the file bytes, or the stringified mtime in quick
// mode. Quick hashes are a same-side optimization and are never compared
// against full hashes.
type FileRecord struct {
	Path     string
	Hash     string
	Size     int64
	Modified int64 // unix seconds
}

// Manifest maps slash-normalized vault-relative paths to their fingerprints
// for one side of a sync pass. Manifests are ephemeral and rebuilt every pass.
type Manifest map[string]*FileRecord

// ManifestFromRemote converts the remote store's manifest response into
// the shape the diff engine consumes. A path that would resolve outside the
// vault root is dropped here so no later stage can act on it.
func ManifestFromRemote(files []vaultsdk.RemoteFile) Manifest {
	m := make(Manifest, len(files))
	for _, f := range files {
		if !vault.IsSafeRelPath(f.Path) {
			slog.Error("remote manifest path escapes vault, dropped", "path", f.Path)
			continue
		}
		m[f.Path] = &FileRecord{
			Path:     f.Path,
			Hash:     f.Hash,
			Size:     f.Size,
			Modified: f.Modified,
		}
	}
	return m
}
