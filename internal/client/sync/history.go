package sync

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openvault/vaultsync/internal/db"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS sync_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL, -- RFC3339
    mode TEXT NOT NULL,       -- full | date
    success INTEGER NOT NULL,
    pushed INTEGER NOT NULL,
    pulled INTEGER NOT NULL,
    deleted INTEGER NOT NULL,
    merged INTEGER NOT NULL,
    conflicts INTEGER NOT NULL,
    errors INTEGER NOT NULL,
    elapsed_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_started_at ON sync_history(started_at);
`

// HistoryEntry is one recorded sync pass.
type HistoryEntry struct {
	ID        int64  `db:"id"`
	StartedAt string `db:"started_at"`
	Mode      string `db:"mode"`
	Success   bool   `db:"success"`
	Pushed    int    `db:"pushed"`
	Pulled    int    `db:"pulled"`
	Deleted   int    `db:"deleted"`
	Merged    int    `db:"merged"`
	Conflicts int    `db:"conflicts"`
	Errors    int    `db:"errors"`
	ElapsedMs int64  `db:"elapsed_ms"`
}

// HistoryStore is an append-only SQLite record of sync results, used by
// the CLI's history command.
type HistoryStore struct {
	db *sqlx.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	sqldb, err := db.NewSqliteDb(db.WithPath(dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open sync history: %w", err)
	}

	if _, err := sqldb.Exec(historySchema); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("initialize sync history schema: %w", err)
	}

	return &HistoryStore{db: sqldb}, nil
}

func (s *HistoryStore) Record(result *SyncResult, startedAt time.Time, mode string) error {
	entry := HistoryEntry{
		StartedAt: startedAt.UTC().Format(time.RFC3339),
		Mode:      mode,
		Success:   result.Success,
		Pushed:    result.Pushed,
		Pulled:    result.Pulled,
		Deleted:   result.Deleted,
		Merged:    result.Merged,
		Conflicts: len(result.Conflicts),
		Errors:    len(result.Errors),
		ElapsedMs: result.Elapsed.Milliseconds(),
	}

	query := `INSERT INTO sync_history
	(started_at, mode, success, pushed, pulled, deleted, merged, conflicts, errors, elapsed_ms)
	VALUES (:started_at, :mode, :success, :pushed, :pulled, :deleted, :merged, :conflicts, :errors, :elapsed_ms)`
	if _, err := s.db.NamedExec(query, entry); err != nil {
		return fmt.Errorf("record sync history: %w", err)
	}
	return nil
}

// Recent returns the latest n entries, newest first.
func (s *HistoryStore) Recent(n int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := s.db.Select(&entries, "SELECT * FROM sync_history ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("query sync history: %w", err)
	}
	return entries, nil
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}
