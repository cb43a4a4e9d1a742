package sync

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/openvault/vaultsync/internal/utils"
	"github.com/openvault/vaultsync/internal/vaultsdk"
)

// Batch sizes. Binary payload cost dominates, so binary batches stay small
// to bound request size and timeout risk.
const (
	textBatchSize   = 50
	binaryBatchSize = 5
)

const (
	PhasePush   = "push"
	PhasePull   = "pull"
	PhaseDelete = "delete"
)

// Progress is delivered to the caller-supplied sink before each batch's
// network call. Batches run strictly one after another, so delivery order
// is deterministic; treat it as a notification, not a main-thread callback.
type Progress struct {
	Phase       string
	Current     int
	Total       int
	CurrentFile string
}

type ProgressFunc func(Progress)

// Transfer executes batched push/pull/delete operations against the remote
// store. A failed or timed-out batch contributes zero to its counter, is
// logged and recorded, and never aborts the remaining batches.
type Transfer struct {
	vault    *vault.Vault
	sdk      *vaultsdk.SDK
	versions *VersionStore
	root     string
	progress ProgressFunc
}

func NewTransfer(v *vault.Vault, sdk *vaultsdk.SDK, versions *VersionStore, root string, progress ProgressFunc) *Transfer {
	return &Transfer{
		vault:    v,
		sdk:      sdk,
		versions: versions,
		root:     root,
		progress: progress,
	}
}

// Push uploads paths in batches. The server's pushed count is
// authoritative; it may accept a subset of a batch.
func (t *Transfer) Push(ctx context.Context, paths []string, binary bool) (int, []string) {
	if len(paths) == 0 {
		return 0, nil
	}

	batchSize := textBatchSize
	if binary {
		batchSize = binaryBatchSize
	}

	pushed := 0
	var errs []string
	for start := 0; start < len(paths); start += batchSize {
		batch := paths[start:min(start+batchSize, len(paths))]

		files := make([]vaultsdk.TransferFile, 0, len(batch))
		for _, path := range batch {
			data, err := os.ReadFile(t.vault.AbsPath(path))
			if err != nil {
				slog.Warn("push read", "path", path, "error", err)
				continue
			}
			f := vaultsdk.TransferFile{Path: path, IsBinary: binary}
			if binary {
				f.Content = base64.StdEncoding.EncodeToString(data)
			} else {
				f.Content = string(data)
			}
			files = append(files, f)
		}
		if len(files) == 0 {
			continue
		}

		t.report(Progress{Phase: PhasePush, Current: start, Total: len(paths), CurrentFile: batch[0]})

		resp, err := t.sdk.Sync.Push(ctx, &vaultsdk.PushParams{Root: t.root, Files: files})
		if err != nil {
			slog.Error("push batch", "files", len(files), "error", err)
			errs = append(errs, fmt.Sprintf("push batch: %v", err))
			continue
		}
		pushed += resp.Pushed
	}

	return pushed, errs
}

// Pull downloads paths in batches and writes them into the vault. Any
// existing local file is snapshotted strictly before it is overwritten.
func (t *Transfer) Pull(ctx context.Context, paths []string, binary bool) (int, []string) {
	if len(paths) == 0 {
		return 0, nil
	}

	batchSize := textBatchSize
	if binary {
		batchSize = binaryBatchSize
	}

	pulled := 0
	var errs []string
	for start := 0; start < len(paths); start += batchSize {
		batch := paths[start:min(start+batchSize, len(paths))]

		t.report(Progress{Phase: PhasePull, Current: start, Total: len(paths), CurrentFile: batch[0]})

		resp, err := t.sdk.Sync.Pull(ctx, &vaultsdk.PullParams{Root: t.root, Paths: batch})
		if err != nil {
			slog.Error("pull batch", "files", len(batch), "error", err)
			errs = append(errs, fmt.Sprintf("pull batch: %v", err))
			continue
		}

		for _, f := range resp.Files {
			if err := t.writePulled(f); err != nil {
				slog.Error("pull write", "path", f.Path, "error", err)
				errs = append(errs, fmt.Sprintf("pull %s: %v", f.Path, err))
				continue
			}
			pulled++
		}
	}

	return pulled, errs
}

func (t *Transfer) writePulled(f vaultsdk.TransferFile) error {
	// the response path is server-controlled and may differ from what was
	// requested; it gets the same containment check as the manifest
	if !vault.IsSafeRelPath(f.Path) {
		return fmt.Errorf("remote path %q escapes vault", f.Path)
	}

	data := []byte(f.Content)
	if f.IsBinary {
		decoded, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		data = decoded
	}

	if err := t.versions.Snapshot(f.Path); err != nil {
		return err
	}

	absPath := t.vault.AbsPath(f.Path)
	if err := utils.EnsureParent(absPath); err != nil {
		return err
	}
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return err
	}

	slog.Debug("pulled", "path", f.Path, "size", humanize.Bytes(uint64(len(data))))
	return nil
}

// DeleteRemote issues one delete request carrying the whole path list.
// The server's deleted count is authoritative.
func (t *Transfer) DeleteRemote(ctx context.Context, paths []string) (int, []string) {
	if len(paths) == 0 {
		return 0, nil
	}

	t.report(Progress{Phase: PhaseDelete, Current: 0, Total: len(paths), CurrentFile: paths[0]})

	resp, err := t.sdk.Sync.Delete(ctx, &vaultsdk.DeleteParams{Root: t.root, Paths: paths})
	if err != nil {
		slog.Error("delete remote", "files", len(paths), "error", err)
		return 0, []string{fmt.Sprintf("delete remote: %v", err)}
	}

	return resp.Deleted, nil
}

func (t *Transfer) report(p Progress) {
	if t.progress != nil {
		t.progress(p)
	}
}
