package sync

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/openvault/vaultsync/internal/vaultsdk"
)

// MergeResult is the outcome of an entry-level merge of two copies of a
// journal file.
type MergeResult struct {
	MergedContent    string
	HasConflicts     bool
	ConflictEntryIDs []string
	LocalOnlyCount   int
	ServerOnlyCount  int
}

// EntryMerger merges two divergent copies of a date-named journal file at
// the entry level. The engine holds an optional implementation and invokes
// it only for journal-shaped paths.
type EntryMerger interface {
	Merge(localContent, serverContent, date string) (*MergeResult, error)
}

// ResolveOutcome aggregates what the resolver did with a batch of
// merge-classified paths.
type ResolveOutcome struct {
	// Pushes are paths whose local content is now canonical and must be
	// pushed (merged files and originals preserved next to conflict copies).
	Pushes []string
	// Conflicts are "path" or "path#entryId" records.
	Conflicts []string
	Merged    int
	Errors    []string
}

// Resolver handles merge-classified paths: entry-level merge for
// journal-shaped paths when a merger is configured, conflict copies for
// everything else. A failure on one path never aborts the others.
type Resolver struct {
	vault    *vault.Vault
	sdk      *vaultsdk.SDK
	versions *VersionStore
	merger   EntryMerger
	root     string
	deviceID string
}

func NewResolver(v *vault.Vault, sdk *vaultsdk.SDK, versions *VersionStore, merger EntryMerger, root string, deviceID string) *Resolver {
	return &Resolver{
		vault:    v,
		sdk:      sdk,
		versions: versions,
		merger:   merger,
		root:     root,
		deviceID: deviceID,
	}
}

func (r *Resolver) Resolve(ctx context.Context, toMerge []string) *ResolveOutcome {
	out := &ResolveOutcome{}
	for _, path := range toMerge {
		r.resolveOne(ctx, path, out)
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, path string, out *ResolveOutcome) {
	remoteContent, isBinary, err := r.fetchRemote(ctx, path)
	if err != nil {
		// without the remote bytes there is nothing to merge or preserve;
		// the path stays untouched and the next sync retries it
		slog.Error("resolve fetch", "path", path, "error", err)
		out.Errors = append(out.Errors, fmt.Sprintf("fetch %s: %v", path, err))
		return
	}

	if r.merger != nil && !isBinary && vault.IsJournalPath(path) {
		if r.mergeJournal(path, remoteContent, out) {
			return
		}
		// merge failed, fall through to the conflict copy strategy
	}

	r.conflictCopy(path, remoteContent, isBinary, out)
}

// mergeJournal runs the entry merger and overwrites the local file with the
// merged content. Returns false to request the conflict-copy fallback.
func (r *Resolver) mergeJournal(path string, serverContent []byte, out *ResolveOutcome) bool {
	absPath := r.vault.AbsPath(path)
	localContent, err := os.ReadFile(absPath)
	if err != nil {
		slog.Error("resolve read local", "path", path, "error", err)
		return false
	}

	date := vault.JournalDate(path)
	res, err := r.merger.Merge(string(localContent), string(serverContent), date)
	if err != nil {
		slog.Warn("entry merge failed, falling back to conflict copy", "path", path, "error", err)
		return false
	}

	// snapshot strictly before the overwrite
	if err := r.versions.Snapshot(path); err != nil {
		slog.Error("resolve snapshot", "path", path, "error", err)
		return false
	}
	if err := os.WriteFile(absPath, []byte(res.MergedContent), 0o644); err != nil {
		slog.Error("resolve write merged", "path", path, "error", err)
		out.Errors = append(out.Errors, fmt.Sprintf("write merged %s: %v", path, err))
		return true // local file intact, but don't also write a conflict copy
	}

	out.Merged++
	out.Pushes = append(out.Pushes, path)
	for _, id := range res.ConflictEntryIDs {
		out.Conflicts = append(out.Conflicts, path+"#"+id)
	}
	slog.Info("merged", "path", path, "entryConflicts", len(res.ConflictEntryIDs), "localOnly", res.LocalOnlyCount, "serverOnly", res.ServerOnlyCount)
	return true
}

// conflictCopy preserves the remote content in a sibling file and keeps the
// local content canonical at the original path.
func (r *Resolver) conflictCopy(path string, remoteContent []byte, isBinary bool, out *ResolveOutcome) {
	copyRel := vault.ConflictCopyName(path, r.deviceID, time.Now())
	copyAbs := r.vault.AbsPath(copyRel)

	if err := os.WriteFile(copyAbs, remoteContent, 0o644); err != nil {
		slog.Error("conflict copy write", "path", path, "error", err)
		out.Errors = append(out.Errors, fmt.Sprintf("conflict copy %s: %v", path, err))
		return
	}

	out.Conflicts = append(out.Conflicts, path)
	out.Pushes = append(out.Pushes, path)
	slog.Warn("conflict", "path", path, "copy", copyRel, "binary", isBinary)
}

// fetchRemote pulls one file's bytes without touching the local copy.
func (r *Resolver) fetchRemote(ctx context.Context, path string) ([]byte, bool, error) {
	resp, err := r.sdk.Sync.Pull(ctx, &vaultsdk.PullParams{
		Root:  r.root,
		Paths: []string{path},
	})
	if err != nil {
		return nil, false, err
	}
	if len(resp.Files) == 0 {
		return nil, false, fmt.Errorf("remote returned no content for %s", path)
	}

	f := resp.Files[0]
	if f.IsBinary {
		data, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			return nil, true, fmt.Errorf("decode %s: %w", path, err)
		}
		return data, true, nil
	}
	return []byte(f.Content), false, nil
}
