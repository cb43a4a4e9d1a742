package sync

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/openvault/vaultsync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

const ignoreFileName = ".vaultignore"

var defaultIgnoreLines = []string{
	ignoreFileName,
	"**/*.sync-conflict-*",
	// editors / OS noise
	".git",
	".vscode",
	".idea",
	"*.tmp",
	"*.swp",
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList filters paths out of the local manifest. It combines built-in
// rules with an optional .vaultignore file at the vault root, using
// gitignore pattern semantics.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir}
}

func (l *IgnoreList) Load() {
	lines := make([]string, 0, len(defaultIgnoreLines))
	lines = append(lines, defaultIgnoreLines...)

	ignorePath := filepath.Join(l.baseDir, ignoreFileName)
	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				lines = append(lines, line)
			}
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(lines...)
}

func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	if l.ignore == nil {
		l.Load()
	}
	return l.ignore.MatchesPath(relPath)
}
