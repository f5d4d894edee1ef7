// Package persistence stores queue state, negotiation decisions, and
// workflow run history in SQLite. A run can be resumed or audited after the
// process exits; tests use the in-memory variant.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// TaskRecord is the durable snapshot of one queue task.
type TaskRecord struct {
	ID          string
	Type        string
	Description string
	AgentRole   string
	Priority    int
	Retries     int
	State       string
	Attempts    int
	Result      string
	Error       string
	DependsOn   []string
	UpdatedAt   time.Time
}

// RunRecord is the durable outcome of one workflow run.
type RunRecord struct {
	ID         string
	SOP        string
	TaskID     string
	Success    bool
	Output     string
	Error      string
	Logs       string // JSON-encoded step logs
	StartedAt  time.Time
	FinishedAt time.Time
}

// SQLiteStore is the SQLite-backed store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath with WAL mode and
// a busy timeout, creating parent directories as needed.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore opens an in-memory store for tests. The shared cache lets
// every connection in the pool see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	return open(ctx, "file::memory:?mode=memory&cache=shared")
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// modernc.org/sqlite needs foreign keys enabled per connection via PRAGMA.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
