package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/openvault/vaultsync/internal/utils"
)

const (
	// VersionsDirName holds retained prior copies of overwritten files.
	VersionsDirName = ".versions"
	// TombstonesDirName holds markers for locally deleted files.
	TombstonesDirName = ".tombstones"
	// AttachmentsDirName is the one hidden subtree that is always synced.
	AttachmentsDirName = ".attachments"
	// JournalsDirName holds date-named journal files eligible for entry merge.
	JournalsDirName = "journals"

	lockFileName = ".vaultsync.lock"
)

var ErrVaultLocked = errors.New("vault locked by another process")

// Vault describes the on-disk layout of a local knowledge vault. The engine
// never reaches outside Root; retained versions and tombstones live in
// reserved subtrees that are excluded from every manifest.
type Vault struct {
	Root          string
	VersionsDir   string
	TombstonesDir string

	flock *flock.Flock
}

func New(rootDir string) (*Vault, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root %s: %w", rootDir, err)
	}

	return &Vault{
		Root:          root,
		VersionsDir:   filepath.Join(root, VersionsDirName),
		TombstonesDir: filepath.Join(root, TombstonesDirName),
		flock:         flock.New(filepath.Join(root, lockFileName)),
	}, nil
}

// Setup creates the vault root if missing and acquires the process lock.
// The sync engine itself performs no locking; serializing sync passes is
// the caller's job, and this lock is how the CLI does it.
func (v *Vault) Setup() error {
	if err := utils.EnsureDir(v.Root); err != nil {
		return fmt.Errorf("create vault root %s: %w", v.Root, err)
	}
	return v.Lock()
}

func (v *Vault) Lock() error {
	locked, err := v.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock vault: %w", err)
	}
	if !locked {
		return ErrVaultLocked
	}
	return nil
}

func (v *Vault) Unlock() error {
	if !v.flock.Locked() {
		return nil
	}
	if err := v.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock vault: %w", err)
	}
	return os.Remove(v.flock.Path())
}

// AbsPath returns the absolute path for a vault-relative path.
func (v *Vault) AbsPath(relPath string) string {
	return filepath.Join(v.Root, filepath.FromSlash(relPath))
}

// RelPath returns the slash-normalized vault-relative path for an absolute path.
func (v *Vault) RelPath(absPath string) (string, error) {
	relPath, err := filepath.Rel(v.Root, absPath)
	if err != nil {
		return "", err
	}
	return NormPath(relPath), nil
}

// NormPath cleans a path, replaces backslashes with slashes and trims leading slashes.
func NormPath(path string) string {
	path = filepath.Clean(path)
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimLeft(path, "/")
	return path
}

// IsSafeRelPath reports whether a relative path resolves inside the vault
// root. Absolute paths and paths escaping through ".." can only come from a
// broken or hostile remote and must never reach the filesystem.
func IsSafeRelPath(relPath string) bool {
	if relPath == "" || filepath.IsAbs(relPath) ||
		strings.HasPrefix(relPath, "/") || strings.HasPrefix(relPath, "\\") {
		return false
	}
	norm := NormPath(relPath)
	return norm != ".." && !strings.HasPrefix(norm, "../")
}

// IsReservedPath reports whether the relative path lives in a reserved
// subtree that must never appear in a manifest.
func IsReservedPath(relPath string) bool {
	relPath = NormPath(relPath)
	return relPath == VersionsDirName || relPath == TombstonesDirName ||
		strings.HasPrefix(relPath, VersionsDirName+"/") ||
		strings.HasPrefix(relPath, TombstonesDirName+"/") ||
		filepath.Base(relPath) == lockFileName
}

// IsHiddenPath reports whether any path segment is hidden (dot-prefixed).
// The attachments subtree is the one hidden subtree that still syncs.
func IsHiddenPath(relPath string) bool {
	relPath = NormPath(relPath)
	if relPath == AttachmentsDirName || strings.HasPrefix(relPath, AttachmentsDirName+"/") {
		return false
	}
	for _, seg := range strings.Split(relPath, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
