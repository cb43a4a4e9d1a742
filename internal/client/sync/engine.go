package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/openvault/vaultsync/internal/vaultsdk"
)

// State names the engine's position in one sync pass.
type State string

const (
	StateIdle             State = "idle"
	StateFetchingManifest State = "fetchingManifest"
	StateClassifying      State = "classifying"
	StateMerging          State = "merging"
	StateTransferring     State = "transferring"
	StateFinalizing       State = "finalizing"
	StateSuccess          State = "success"
	StateFailed           State = "failed"
)

var (
	// ErrNotReady means the engine was used before a remote endpoint was
	// configured. It fails fast with zero network calls.
	ErrNotReady = errors.New("sync: remote endpoint not configured")
)

// SyncResult is the immutable outcome of one sync invocation. Partial
// success is expected: Success may be true with non-empty Errors or
// Conflicts.
type SyncResult struct {
	Success   bool
	Pushed    int
	Pulled    int
	Deleted   int
	Merged    int
	Errors    []string
	Conflicts []string
	Elapsed   time.Duration
}

// Options wires an Engine. SDK, Merger, Progress and History are optional;
// a nil SDK makes every sync fail fast with ErrNotReady.
type Options struct {
	Vault    *vault.Vault
	SDK      *vaultsdk.SDK
	Root     string
	DeviceID string
	Quick    bool
	Merger   EntryMerger
	Progress ProgressFunc
	History  *HistoryStore
}

// Engine sequences one full-sync or date-scoped-sync pass. A single
// invocation is a strictly sequential pipeline; the engine performs no
// locking across invocations, so callers must serialize passes against the
// same vault.
type Engine struct {
	vault      *vault.Vault
	sdk        *vaultsdk.SDK
	builder    *ManifestBuilder
	versions   *VersionStore
	tombstones *TombstoneStore
	resolver   *Resolver
	transfer   *Transfer
	history    *HistoryStore
	root       string
	quick      bool
	state      State
}

func NewEngine(opts Options) *Engine {
	versions := NewVersionStore(opts.Vault)
	return &Engine{
		vault:      opts.Vault,
		sdk:        opts.SDK,
		builder:    NewManifestBuilder(opts.Vault),
		versions:   versions,
		tombstones: NewTombstoneStore(opts.Vault, versions, opts.DeviceID),
		resolver:   NewResolver(opts.Vault, opts.SDK, versions, opts.Merger, opts.Root, opts.DeviceID),
		transfer:   NewTransfer(opts.Vault, opts.SDK, versions, opts.Root, opts.Progress),
		history:    opts.History,
		root:       opts.Root,
		quick:      opts.Quick,
		state:      StateIdle,
	}
}

// State returns the engine's current pipeline state.
func (e *Engine) State() State {
	return e.state
}

// Tombstones exposes the tombstone store so the host can record explicit
// user deletes between sync passes.
func (e *Engine) Tombstones() *TombstoneStore {
	return e.tombstones
}

// Versions exposes the version store.
func (e *Engine) Versions() *VersionStore {
	return e.versions
}

// Sync runs one full two-way pass over the vault.
func (e *Engine) Sync(ctx context.Context, pattern string, includeBinary bool) *SyncResult {
	return e.run(ctx, pattern, "", includeBinary)
}

// SyncDate runs the same pipeline restricted to the fixed per-date file
// set. Tombstone propagation is deliberately skipped here; the full sync
// handles delete propagation.
func (e *Engine) SyncDate(ctx context.Context, date string, includeBinary bool) *SyncResult {
	return e.run(ctx, "*", date, includeBinary)
}

func (e *Engine) run(ctx context.Context, pattern string, date string, includeBinary bool) *SyncResult {
	start := time.Now()
	result := &SyncResult{}
	dateScoped := date != ""

	if e.sdk == nil {
		return e.fail(result, start, dateScoped, ErrNotReady)
	}

	// quick mtime fingerprints only ever pair with quick fingerprints, and
	// date-scoped enumeration always hashes content, so a date-scoped pass
	// forces full hashing on both sides.
	quick := e.quick && !dateScoped

	// fetchingManifest: a partial pass without the remote manifest cannot
	// classify anything, so any failure here is fatal for the whole pass.
	e.setState(StateFetchingManifest)
	remoteResp, err := e.sdk.Sync.Manifest(ctx, &vaultsdk.ManifestParams{
		Root:          e.root,
		Pattern:       pattern,
		IncludeBinary: includeBinary,
		Quick:         quick,
		Date:          date,
	})
	if err != nil {
		return e.fail(result, start, dateScoped, fmt.Errorf("fetch remote manifest: %w", err))
	}
	remote := ManifestFromRemote(remoteResp.Files)

	var local Manifest
	if dateScoped {
		local, err = e.builder.BuildForDate(date, includeBinary)
	} else {
		local, err = e.builder.Build(pattern, includeBinary, quick)
	}
	if err != nil {
		return e.fail(result, start, dateScoped, fmt.Errorf("build local manifest: %w", err))
	}

	// classifying
	e.setState(StateClassifying)
	tombstones := map[string]*Tombstone{}
	if !dateScoped {
		tombstones, err = e.tombstones.List()
		if err != nil {
			slog.Warn("list tombstones", "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("list tombstones: %v", err))
			tombstones = map[string]*Tombstone{}
		}
	}
	cp := Classify(local, remote, tombstones)

	// every tombstone was reconciled against this manifest: present paths
	// are queued for remote delete, absent ones need no call. Either way
	// the marker is cleared within this pass (best-effort propagation).
	for path := range tombstones {
		if err := e.tombstones.Remove(path); err != nil {
			slog.Warn("clear tombstone", "path", path, "error", err)
		}
	}

	slog.Debug("classified",
		"push", len(cp.ToPush),
		"pull", len(cp.ToPull),
		"merge", len(cp.ToMerge),
		"deleteRemote", len(cp.ToDeleteRemote),
	)

	// merging
	e.setState(StateMerging)
	if len(cp.ToMerge) > 0 {
		outcome := e.resolver.Resolve(ctx, cp.ToMerge)
		cp.ToPush = append(cp.ToPush, outcome.Pushes...)
		result.Merged = outcome.Merged
		result.Conflicts = append(result.Conflicts, outcome.Conflicts...)
		result.Errors = append(result.Errors, outcome.Errors...)
	}

	// transferring: text before binary, pushes before pulls
	e.setState(StateTransferring)
	pushText, pushBin := splitTextBinary(cp.ToPush)
	pullText, pullBin := splitTextBinary(cp.ToPull)

	n, errs := e.transfer.Push(ctx, pushText, false)
	result.Pushed += n
	result.Errors = append(result.Errors, errs...)

	n, errs = e.transfer.Push(ctx, pushBin, true)
	result.Pushed += n
	result.Errors = append(result.Errors, errs...)

	n, errs = e.transfer.Pull(ctx, pullText, false)
	result.Pulled += n
	result.Errors = append(result.Errors, errs...)

	n, errs = e.transfer.Pull(ctx, pullBin, true)
	result.Pulled += n
	result.Errors = append(result.Errors, errs...)

	if !dateScoped {
		n, errs = e.transfer.DeleteRemote(ctx, cp.ToDeleteRemote)
		result.Deleted += n
		result.Errors = append(result.Errors, errs...)
	}

	// finalizing
	e.setState(StateFinalizing)
	if !dateScoped {
		if pruned, err := e.tombstones.Prune(TombstoneMaxAge); err != nil {
			slog.Warn("prune tombstones", "error", err)
		} else if pruned > 0 {
			slog.Debug("pruned stale tombstones", "count", pruned)
		}
	}

	result.Success = true
	result.Elapsed = time.Since(start)
	e.setState(StateSuccess)
	e.record(result, start, dateScoped)

	slog.Info("sync done",
		"pushed", result.Pushed,
		"pulled", result.Pulled,
		"deleted", result.Deleted,
		"merged", result.Merged,
		"conflicts", len(result.Conflicts),
		"errors", len(result.Errors),
		"elapsed", result.Elapsed,
	)
	return result
}

// fail converts a fatal error into a failed result. The orchestrator
// boundary never lets a fault propagate unhandled.
func (e *Engine) fail(result *SyncResult, start time.Time, dateScoped bool, err error) *SyncResult {
	slog.Error("sync failed", "error", err)
	result.Success = false
	result.Errors = append(result.Errors, err.Error())
	result.Elapsed = time.Since(start)
	e.setState(StateFailed)
	e.record(result, start, dateScoped)
	return result
}

func (e *Engine) record(result *SyncResult, start time.Time, dateScoped bool) {
	if e.history == nil {
		return
	}
	mode := "full"
	if dateScoped {
		mode = "date"
	}
	if err := e.history.Record(result, start, mode); err != nil {
		slog.Warn("record sync history", "error", err)
	}
}

func (e *Engine) setState(s State) {
	e.state = s
	slog.Debug("sync state", "state", s)
}

func splitTextBinary(paths []string) (text []string, binary []string) {
	for _, p := range paths {
		if vault.IsBinaryPath(p) {
			binary = append(binary, p)
		} else {
			text = append(text, p)
		}
	}
	return text, binary
}
