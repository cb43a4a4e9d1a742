// Package merge provides the built-in entry-level merger for date-named
// journal files. A journal is a markdown file whose entries start with
// "## " headings; two divergent copies are merged by taking the union of
// entries and flagging entries both sides edited.
package merge

import (
	"strings"

	"github.com/openvault/vaultsync/internal/client/sync"
	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"
)

const entryHeadingPrefix = "## "

type entry struct {
	id      string
	heading string
	body    string
}

// JournalMerger implements sync.EntryMerger for markdown journals.
type JournalMerger struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

func NewJournalMerger() *JournalMerger {
	return &JournalMerger{
		dmp: diffmatchpatch.New(),
	}
}

var _ sync.EntryMerger = (*JournalMerger)(nil)

// Merge unions the entries of both copies. Local entry order is preserved
// and server-only entries are appended in server order. An entry edited on
// both sides keeps the local body and is reported as a conflict; the date
// parameter only contextualizes logging-free merges and is unused here.
func (m *JournalMerger) Merge(localContent, serverContent, date string) (*sync.MergeResult, error) {
	localPre, localEntries := parseEntries(localContent)
	serverPre, serverEntries := parseEntries(serverContent)

	serverByID := make(map[string]*entry, len(serverEntries))
	for i := range serverEntries {
		serverByID[serverEntries[i].id] = &serverEntries[i]
	}
	localIDs := make(map[string]struct{}, len(localEntries))
	for i := range localEntries {
		localIDs[localEntries[i].id] = struct{}{}
	}

	result := &sync.MergeResult{}
	var merged []entry

	for _, le := range localEntries {
		se, both := serverByID[le.id]
		if !both {
			result.LocalOnlyCount++
			merged = append(merged, le)
			continue
		}
		if m.equalIgnoringWhitespace(le.body, se.body) {
			merged = append(merged, le)
			continue
		}
		// both sides edited the same entry: local wins, caller records the conflict
		result.HasConflicts = true
		result.ConflictEntryIDs = append(result.ConflictEntryIDs, le.id)
		merged = append(merged, le)
	}

	for _, se := range serverEntries {
		if _, both := localIDs[se.id]; both {
			continue
		}
		result.ServerOnlyCount++
		merged = append(merged, se)
	}

	preamble := localPre
	if strings.TrimSpace(preamble) == "" {
		preamble = serverPre
	}

	result.MergedContent = render(preamble, merged)
	return result, nil
}

// equalIgnoringWhitespace treats bodies that differ only in whitespace as
// equal, so a trailing-newline touch does not become an entry conflict.
func (m *JournalMerger) equalIgnoringWhitespace(a, b string) bool {
	if a == b {
		return true
	}
	diffs := m.dmp.DiffMain(a, b, false)
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			continue
		}
		if strings.TrimSpace(d.Text) != "" {
			return false
		}
	}
	return true
}

// parseEntries splits content into a preamble and "## " delimited entries.
func parseEntries(content string) (string, []entry) {
	lines := strings.Split(content, "\n")

	var preamble []string
	var entries []entry
	var cur *entry

	flush := func() {
		if cur != nil {
			cur.body = strings.TrimRight(cur.body, "\n")
			entries = append(entries, *cur)
			cur = nil
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, entryHeadingPrefix) {
			flush()
			heading := line
			cur = &entry{
				id:      slugify(strings.TrimPrefix(line, entryHeadingPrefix)),
				heading: heading,
			}
			continue
		}
		if cur == nil {
			preamble = append(preamble, line)
			continue
		}
		cur.body += line + "\n"
	}
	flush()

	return strings.TrimRight(strings.Join(preamble, "\n"), "\n"), entries
}

func render(preamble string, entries []entry) string {
	var b strings.Builder
	if strings.TrimSpace(preamble) != "" {
		b.WriteString(preamble)
		b.WriteString("\n\n")
	}
	for i, e := range entries {
		b.WriteString(e.heading)
		b.WriteString("\n")
		if e.body != "" {
			b.WriteString(e.body)
			b.WriteString("\n")
		}
		if i < len(entries)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// slugify turns an entry heading into a stable id: lowercase, spaces to
// dashes, everything else alphanumeric kept.
func slugify(heading string) string {
	heading = strings.ToLower(strings.TrimSpace(heading))
	var b strings.Builder
	for _, r := range heading {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == ':':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
