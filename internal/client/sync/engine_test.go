package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openvault/vaultsync/internal/client/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, v *vault.Vault, remote *fakeRemote, merger EntryMerger) *Engine {
	t.Helper()
	return NewEngine(Options{
		Vault:    v,
		SDK:      remote.sdk(t),
		Root:     "notes",
		DeviceID: "dev1234",
		Merger:   merger,
	})
}

func TestEngineNotReady(t *testing.T) {
	v := newTestVault(t)
	e := NewEngine(Options{Vault: v, Root: "notes", DeviceID: "dev1234"})

	res := e.Sync(context.Background(), "*", false)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], ErrNotReady.Error())
	assert.Equal(t, StateFailed, e.State())
}

func TestEngineManifestFailureIsFatal(t *testing.T) {
	v := newTestVault(t)
	remote := newFakeRemote(t)
	remote.failManifest = true
	writeVaultFile(t, v, "notes/a.md", "x")

	e := newTestEngine(t, v, remote, nil)
	res := e.Sync(context.Background(), "*", false)

	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "fetch remote manifest")
	assert.Zero(t, res.Pushed)
	assert.Zero(t, res.Pulled)
}

func TestEngineConvergence(t *testing.T) {
	v := newTestVault(t)
	remote := newFakeRemote(t)
	writeVaultFile(t, v, "notes/local-only.md", "mine")
	remote.put("notes/remote-only.md", "theirs", time.Now().Unix())

	e := newTestEngine(t, v, remote, nil)
	res := e.Sync(context.Background(), "*", false)

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, res.Pulled)
	assert.Empty(t, res.Errors)
	assert.Equal(t, StateSuccess, e.State())

	data, ok := remote.get("notes/local-only.md")
	require.True(t, ok)
	assert.Equal(t, "mine", string(data))

	local, err := os.ReadFile(v.AbsPath("notes/remote-only.md"))
	require.NoError(t, err)
	assert.Equal(t, "theirs", string(local))

	t.Run("second pass is a no-op", func(t *testing.T) {
		res := e.Sync(context.Background(), "*", false)
		require.True(t, res.Success)
		assert.Zero(t, res.Pushed)
		assert.Zero(t, res.Pulled)
		assert.Zero(t, res.Deleted)
		assert.Zero(t, res.Merged)
	})
}

func TestEngineNewerSideWins(t *testing.T) {
	t.Run("local newer pushes", func(t *testing.T) {
		v := newTestVault(t)
		remote := newFakeRemote(t)
		writeVaultFile(t, v, "notes/a.md", "local edit")
		remote.put("notes/a.md", "stale remote", time.Now().Add(-time.Hour).Unix())

		res := newTestEngine(t, v, remote, nil).Sync(context.Background(), "*", false)

		require.True(t, res.Success)
		assert.Equal(t, 1, res.Pushed)
		assert.Zero(t, res.Pulled)
		data, _ := remote.get("notes/a.md")
		assert.Equal(t, "local edit", string(data))
	})

	t.Run("remote newer pulls", func(t *testing.T) {
		v := newTestVault(t)
		remote := newFakeRemote(t)
		writeVaultFile(t, v, "notes/a.md", "stale local")
		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(v.AbsPath("notes/a.md"), old, old))
		remote.put("notes/a.md", "remote edit", time.Now().Unix())

		e := newTestEngine(t, v, remote, nil)
		res := e.Sync(context.Background(), "*", false)

		require.True(t, res.Success)
		assert.Equal(t, 1, res.Pulled)
		assert.Zero(t, res.Pushed)

		data, err := os.ReadFile(v.AbsPath("notes/a.md"))
		require.NoError(t, err)
		assert.Equal(t, "remote edit", string(data))

		// stale local content survives as a snapshot
		snaps := e.Versions().Snapshots("notes/a.md")
		require.Len(t, snaps, 1)
	})
}

func TestEngineJournalMerge(t *testing.T) {
	v := newTestVault(t)
	remote := newFakeRemote(t)
	writeVaultFile(t, v, "journals/2025-01-19.md", "local entries")
	remote.put("journals/2025-01-19.md", "server entries", time.Now().Unix())

	res := newTestEngine(t, v, remote, &stubMerger{}).Sync(context.Background(), "*", false)

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Merged)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, 1, res.Pushed) // merged file becomes canonical on both sides

	want := "local entries\nserver entries"
	local, err := os.ReadFile(v.AbsPath("journals/2025-01-19.md"))
	require.NoError(t, err)
	assert.Equal(t, want, string(local))

	pushed, ok := remote.get("journals/2025-01-19.md")
	require.True(t, ok)
	assert.Equal(t, want, string(pushed))
}

func TestEngineConflictCopy(t *testing.T) {
	v := newTestVault(t)
	remote := newFakeRemote(t)
	writeVaultFile(t, v, "notes/topic.md", "local take")
	remote.put("notes/topic.md", "remote take", time.Now().Unix())

	res := newTestEngine(t, v, remote, nil).Sync(context.Background(), "*", false)

	require.True(t, res.Success)
	assert.Equal(t, []string{"notes/topic.md"}, res.Conflicts)
	assert.Equal(t, 1, res.Pushed)

	// local content is canonical everywhere
	local, err := os.ReadFile(v.AbsPath("notes/topic.md"))
	require.NoError(t, err)
	assert.Equal(t, "local take", string(local))
	data, _ := remote.get("notes/topic.md")
	assert.Equal(t, "local take", string(data))

	// remote take preserved in a conflict copy
	entries, err := os.ReadDir(v.AbsPath("notes"))
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), vault.ConflictMarker) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEngineTombstonePropagation(t *testing.T) {
	v := newTestVault(t)
	remote := newFakeRemote(t)
	remote.put("notes/doomed.md", "x", time.Now().Unix())
	remote.put("notes/kept.md", "y", time.Now().Unix())

	e := newTestEngine(t, v, remote, nil)
	require.NoError(t, e.Tombstones().Create("notes/doomed.md"))

	res := e.Sync(context.Background(), "*", false)

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.Pulled) // kept.md still comes down

	_, ok := remote.get("notes/doomed.md")
	assert.False(t, ok)

	// the marker is consumed by the pass
	tombs, err := e.Tombstones().List()
	require.NoError(t, err)
	assert.Empty(t, tombs)

	t.Run("tombstone for a remote-absent path needs no call", func(t *testing.T) {
		require.NoError(t, e.Tombstones().Create("notes/never-uploaded.md"))
		remote.deleteRequests = 0

		res := e.Sync(context.Background(), "*", false)
		require.True(t, res.Success)
		assert.Zero(t, res.Deleted)
		assert.Zero(t, remote.deleteRequests)

		tombs, err := e.Tombstones().List()
		require.NoError(t, err)
		assert.Empty(t, tombs)
	})
}

func TestEngineDateScopedForcesFullHashes(t *testing.T) {
	v := newTestVault(t)
	remote := newFakeRemote(t)

	// byte-identical journal on both sides; the remote hash is a content
	// hash, so a mtime fingerprint on either side would misclassify it
	writeVaultFile(t, v, "journals/2025-01-19.md", "## 09:00\nentry")
	remote.put("journals/2025-01-19.md", "## 09:00\nentry", time.Now().Unix())

	e := NewEngine(Options{
		Vault:    v,
		SDK:      remote.sdk(t),
		Root:     "notes",
		DeviceID: "dev1234",
		Quick:    true,
	})

	res := e.SyncDate(context.Background(), "2025-01-19", false)

	require.True(t, res.Success)
	assert.Zero(t, res.Pushed)
	assert.Zero(t, res.Pulled)
	assert.Zero(t, res.Merged)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, "false", remote.lastManifestQuery.Get("quick"))

	// no spurious conflict copy either
	entries, err := os.ReadDir(v.AbsPath("journals"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	t.Run("full pass still requests quick", func(t *testing.T) {
		res := e.Sync(context.Background(), "*", false)
		require.True(t, res.Success)
		assert.Equal(t, "true", remote.lastManifestQuery.Get("quick"))
	})
}

func TestEnginePullPathTraversal(t *testing.T) {
	v := newTestVault(t)
	remote := newFakeRemote(t)
	remote.put("../escaped.txt", "pwnd", time.Now().Unix())
	remote.put("notes/good.md", "ok", time.Now().Unix())

	res := newTestEngine(t, v, remote, nil).Sync(context.Background(), "*", false)

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Pulled)

	local, err := os.ReadFile(v.AbsPath("notes/good.md"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(local))

	// nothing landed outside the vault root
	outside := filepath.Join(v.Root, "..", "escaped.txt")
	_, err = os.Stat(outside)
	assert.True(t, os.IsNotExist(err))
}

func TestEngineFailedDatePassRecordsDateMode(t *testing.T) {
	v := newTestVault(t)
	remote := newFakeRemote(t)
	remote.failManifest = true

	history, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer history.Close()

	e := NewEngine(Options{
		Vault:    v,
		SDK:      remote.sdk(t),
		Root:     "notes",
		DeviceID: "dev1234",
		History:  history,
	})

	res := e.SyncDate(context.Background(), "2025-01-19", false)
	require.False(t, res.Success)

	entries, err := history.Recent(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "date", entries[0].Mode)
	assert.False(t, entries[0].Success)
}

func TestEngineDateScoped(t *testing.T) {
	v := newTestVault(t)
	remote := newFakeRemote(t)
	writeVaultFile(t, v, "journals/2025-01-19.md", "today")
	writeVaultFile(t, v, "notes/unrelated.md", "note")
	remote.put("notes/remote-note.md", "remote", time.Now().Unix())

	e := newTestEngine(t, v, remote, nil)
	require.NoError(t, e.Tombstones().Create("notes/old.md"))

	res := e.SyncDate(context.Background(), "2025-01-19", false)

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Pushed)
	assert.Zero(t, res.Deleted)

	// out-of-scope files move in neither direction
	_, ok := remote.get("notes/unrelated.md")
	assert.False(t, ok)

	// tombstones are untouched, left for the next full pass
	assert.Zero(t, remote.deleteRequests)
	tombs, err := e.Tombstones().List()
	require.NoError(t, err)
	assert.Contains(t, tombs, "notes/old.md")
}
