package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormPath(t *testing.T) {
	assert.Equal(t, "a/b.md", NormPath("a/b.md"))
	assert.Equal(t, "a/b.md", NormPath("/a/b.md"))
	assert.Equal(t, "a/b.md", NormPath("a\\b.md"))
	assert.Equal(t, "a/b.md", NormPath("./a/b.md"))
}

func TestIsSafeRelPath(t *testing.T) {
	assert.True(t, IsSafeRelPath("notes/a.md"))
	assert.True(t, IsSafeRelPath(".attachments/2025-01-19/rec.wav"))
	assert.True(t, IsSafeRelPath("deep/../ok.md"))

	assert.False(t, IsSafeRelPath(""))
	assert.False(t, IsSafeRelPath("/etc/passwd"))
	assert.False(t, IsSafeRelPath("\\server\\share"))
	assert.False(t, IsSafeRelPath(".."))
	assert.False(t, IsSafeRelPath("../escaped.txt"))
	assert.False(t, IsSafeRelPath("notes/../../escaped.txt"))
	assert.False(t, IsSafeRelPath("..\\escaped.txt"))
}

func TestIsReservedPath(t *testing.T) {
	assert.True(t, IsReservedPath(".versions"))
	assert.True(t, IsReservedPath(".versions/journals/x.md.123"))
	assert.True(t, IsReservedPath(".tombstones/notes/a.md.deleted"))
	assert.False(t, IsReservedPath("notes/a.md"))
	assert.False(t, IsReservedPath(".versionsish/a.md"))
}

func TestIsHiddenPath(t *testing.T) {
	assert.True(t, IsHiddenPath(".obsidian/app.json"))
	assert.True(t, IsHiddenPath("notes/.drafts/a.md"))
	assert.False(t, IsHiddenPath("notes/a.md"))

	// the attachments subtree is hidden but always synced
	assert.False(t, IsHiddenPath(".attachments/2025-01-19/rec.wav"))
	assert.False(t, IsHiddenPath(".attachments"))
}

func TestIsJournalPath(t *testing.T) {
	assert.True(t, IsJournalPath("journals/2025-01-19.md"))
	assert.False(t, IsJournalPath("journals/notes.md"))
	assert.False(t, IsJournalPath("notes/2025-01-19.md"))
	assert.False(t, IsJournalPath("2025-01-19.md"))

	assert.Equal(t, "2025-01-19", JournalDate("journals/2025-01-19.md"))
	assert.Equal(t, "", JournalDate("notes/a.md"))
}

func TestIsBinaryPath(t *testing.T) {
	assert.True(t, IsBinaryPath("x/rec.wav"))
	assert.True(t, IsBinaryPath("x/photo.JPG"))
	assert.False(t, IsBinaryPath("x/a.md"))
	assert.False(t, IsBinaryPath("x/noext"))
}

func TestConflictCopyName(t *testing.T) {
	ts := time.Date(2025, 1, 19, 10, 30, 0, 0, time.UTC)
	name := ConflictCopyName("journals/2025-01-19.md", "abc1234", ts)

	assert.Equal(t, "journals/2025-01-19.sync-conflict-2025-01-19T10-30-00Z-abc1234.md", name)
	assert.True(t, IsConflictCopy(name))
	assert.False(t, IsConflictCopy("journals/2025-01-19.md"))
	// no colons or extra dots from the timestamp survive
	assert.NotContains(t, name, ":")
}

func TestVaultPaths(t *testing.T) {
	v, err := New(t.TempDir())
	require.NoError(t, err)

	abs := v.AbsPath("notes/a.md")
	rel, err := v.RelPath(abs)
	require.NoError(t, err)
	assert.Equal(t, "notes/a.md", rel)
}

func TestVaultLock(t *testing.T) {
	v, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, v.Setup())
	require.NoError(t, v.Unlock())
}
