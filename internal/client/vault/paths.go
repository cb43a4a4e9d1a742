package vault

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ConflictMarker appears in the filename of every conflict copy.
const ConflictMarker = ".sync-conflict-"

// DateFormat is the layout of date-named journal files.
const DateFormat = "2006-01-02"

var dateNameRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// binaryExts are transferred base64-encoded and batched separately from text.
var binaryExts = map[string]struct{}{
	".wav": {}, ".mp3": {}, ".m4a": {}, ".ogg": {}, ".opus": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
	".pdf": {},
}

// IsBinaryPath reports whether the path's extension marks it as binary content.
func IsBinaryPath(path string) bool {
	_, ok := binaryExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsJournalPath reports whether a relative path is journal-shaped: a
// date-named file inside the journals subtree. Only these are eligible
// for entry-level merge.
func IsJournalPath(relPath string) bool {
	relPath = NormPath(relPath)
	if !strings.HasPrefix(relPath, JournalsDirName+"/") {
		return false
	}
	base := filepath.Base(relPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return dateNameRe.MatchString(name)
}

// JournalDate extracts the date from a journal-shaped path, or "" if the
// path is not journal-shaped.
func JournalDate(relPath string) string {
	if !IsJournalPath(relPath) {
		return ""
	}
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsConflictCopy reports whether the path names a conflict copy.
func IsConflictCopy(path string) bool {
	return strings.Contains(filepath.Base(path), ConflictMarker)
}

// ConflictCopyName builds the sibling filename that preserves a losing
// version's content: <base>.sync-conflict-<timestamp>-<deviceID><ext>.
// Colons and dots in the timestamp are replaced for filesystem safety.
func ConflictCopyName(path string, deviceID string, t time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	ts := t.UTC().Format(time.RFC3339)
	ts = strings.ReplaceAll(ts, ":", "-")
	ts = strings.ReplaceAll(ts, ".", "-")
	return fmt.Sprintf("%s%s%s-%s%s", base, ConflictMarker, ts, deviceID, ext)
}

// JournalFileName returns the relative path of the journal file for a date.
func JournalFileName(date string) string {
	return JournalsDirName + "/" + date + ".md"
}
