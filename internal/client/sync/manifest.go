package sync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/openvault/vaultsync/internal/utils"
)

// ManifestBuilder walks the local vault and produces path → fingerprint
// records. Reserved subtrees, hidden segments (except attachments) and
// conflict copies never appear in a manifest. A file that cannot be read
// is logged and omitted; it is not fatal for the pass.
type ManifestBuilder struct {
	vault  *vault.Vault
	ignore *IgnoreList
}

func NewManifestBuilder(v *vault.Vault) *ManifestBuilder {
	ignore := NewIgnoreList(v.Root)
	ignore.Load()
	return &ManifestBuilder{
		vault:  v,
		ignore: ignore,
	}
}

// Build walks the whole vault. pattern is a literal filename suffix, or
// "*" for all files. Binary extensions are included only when requested.
// In quick mode the fingerprint is the stringified mtime instead of a
// content hash.
func (b *ManifestBuilder) Build(pattern string, includeBinary bool, quick bool) (Manifest, error) {
	manifest := make(Manifest)

	err := filepath.WalkDir(b.vault.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			slog.Warn("manifest walk", "path", path, "error", walkErr)
			return nil
		}

		relPath, err := b.vault.RelPath(path)
		if err != nil {
			return fmt.Errorf("manifest rel path: %w", err)
		}

		if d.IsDir() {
			if relPath != "." && (vault.IsReservedPath(relPath) || vault.IsHiddenPath(relPath)) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if !b.shouldInclude(relPath, pattern, includeBinary) {
			return nil
		}

		if rec := b.record(path, relPath, quick); rec != nil {
			manifest[relPath] = rec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local manifest scan: %w", err)
	}

	return manifest, nil
}

// BuildForDate enumerates the fixed per-date file set instead of walking
// the whole tree: the date-named journal file plus the same-day attachment
// directory, with a legacy month-keyed fallback filtered by filename prefix.
func (b *ManifestBuilder) BuildForDate(date string, includeBinary bool) (Manifest, error) {
	manifest := make(Manifest)

	journalRel := vault.JournalFileName(date)
	if abs := b.vault.AbsPath(journalRel); utils.FileExists(abs) {
		if rec := b.record(abs, journalRel, false); rec != nil {
			manifest[journalRel] = rec
		}
	}

	// attachments keyed by full date: .attachments/<date>/...
	dayDir := vault.AttachmentsDirName + "/" + date
	b.collectDir(manifest, dayDir, "", includeBinary)

	// legacy layout keyed by month, files prefixed with the full date:
	// .attachments/<yyyy-mm>/<date>...
	if len(date) >= 7 {
		monthDir := vault.AttachmentsDirName + "/" + date[:7]
		b.collectDir(manifest, monthDir, date, includeBinary)
	}

	return manifest, nil
}

// collectDir adds all matching files under a vault-relative directory,
// optionally filtered by a filename prefix.
func (b *ManifestBuilder) collectDir(manifest Manifest, relDir string, namePrefix string, includeBinary bool) {
	absDir := b.vault.AbsPath(relDir)
	if !utils.DirExists(absDir) {
		return
	}

	err := filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if namePrefix != "" && !strings.HasPrefix(d.Name(), namePrefix) {
			return nil
		}

		relPath, err := b.vault.RelPath(path)
		if err != nil {
			return nil
		}
		if !b.shouldInclude(relPath, "*", includeBinary) {
			return nil
		}
		if rec := b.record(path, relPath, false); rec != nil {
			manifest[relPath] = rec
		}
		return nil
	})
	if err != nil {
		slog.Warn("manifest date scan", "dir", relDir, "error", err)
	}
}

func (b *ManifestBuilder) shouldInclude(relPath string, pattern string, includeBinary bool) bool {
	if vault.IsReservedPath(relPath) || vault.IsHiddenPath(relPath) || vault.IsConflictCopy(relPath) {
		return false
	}
	if b.ignore.ShouldIgnore(relPath) {
		return false
	}
	if vault.IsBinaryPath(relPath) {
		return includeBinary
	}
	if pattern != "" && pattern != "*" && !strings.HasSuffix(relPath, pattern) {
		return false
	}
	return true
}

func (b *ManifestBuilder) record(absPath string, relPath string, quick bool) *FileRecord {
	info, err := os.Stat(absPath)
	if err != nil {
		slog.Warn("manifest stat", "path", relPath, "error", err)
		return nil
	}

	var hash string
	if quick {
		hash = strconv.FormatInt(info.ModTime().Unix(), 10)
	} else {
		hash, err = utils.FileHash(absPath)
		if err != nil {
			slog.Warn("manifest hash", "path", relPath, "error", err)
			return nil
		}
	}

	return &FileRecord{
		Path:     relPath,
		Hash:     hash,
		Size:     info.Size(),
		Modified: info.ModTime().Unix(),
	}
}
