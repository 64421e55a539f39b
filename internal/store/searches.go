// Package store persists per-user search state in SQLite so paging and
// playing from a search keeps working across restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"watchalong/internal/logging"
	"watchalong/internal/search"
)

// Supported database/sql driver names.
const (
	DriverCGO     = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo  = "sqlite"  // modernc.org/sqlite
	DefaultDriver = DriverCGO
)

// SearchStore implements search.Persister on SQLite.
type SearchStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

var _ search.Persister = (*SearchStore)(nil)

// Open creates or opens the search database at path. ":memory:" keeps it
// in memory.
func Open(driver, path string) (*SearchStore, error) {
	if driver == "" {
		driver = DefaultDriver
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn(driver, path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; also keeps a ":memory:" database alive across calls.
	db.SetMaxOpenConns(1)

	s := &SearchStore{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("search store opened (%s, %s)", driver, path)
	return s, nil
}

func dsn(driver, path string) string {
	if path == ":memory:" {
		return path
	}
	switch driver {
	case DriverPureGo:
		return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	default:
		return path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
}

// Close closes the database connection.
func (s *SearchStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SearchStore) Path() string {
	return s.dbPath
}

func (s *SearchStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_entries (
		user_id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		items_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_search_entries_updated ON search_entries(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveEntry replaces the stored entry for e.UserID.
func (s *SearchStore) SaveEntry(ctx context.Context, e search.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := json.Marshal(e.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_entries (user_id, channel_id, message_id, items_json, updated_at, result_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			message_id = excluded.message_id,
			items_json = excluded.items_json,
			updated_at = excluded.updated_at,
			result_count = excluded.result_count`,
		e.UserID, e.Message.ChannelID, e.Message.MessageID, string(items), e.UpdatedAt.UTC().Format(time.RFC3339Nano), len(e.Items))
	if err != nil {
		return fmt.Errorf("save search entry: %w", err)
	}
	logging.StoreDebug("saved search for %s (%d items)", e.UserID, len(e.Items))
	return nil
}

// LoadEntries returns every stored entry, most recent first.
func (s *SearchStore) LoadEntries(ctx context.Context) ([]search.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, channel_id, message_id, items_json, updated_at
		FROM search_entries ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("load search entries: %w", err)
	}
	defer rows.Close()

	var entries []search.Entry
	for rows.Next() {
		var (
			e         search.Entry
			itemsJSON string
			updated   string
		)
		if err := rows.Scan(&e.UserID, &e.Message.ChannelID, &e.Message.MessageID, &itemsJSON, &updated); err != nil {
			return nil, fmt.Errorf("scan search entry: %w", err)
		}
		if err := json.Unmarshal([]byte(itemsJSON), &e.Items); err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping corrupt search entry for %s: %v", e.UserID, err)
			continue
		}
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			logging.StoreDebug("bad updated_at for %s: %v", e.UserID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *SearchStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM search_entries").Scan(&n)
	return n, err
}
