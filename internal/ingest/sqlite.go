package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps one table per task batch, keyed by (worker, sequence)
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	tables map[string]bool
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteStore{db: db, path: path, tables: make(map[string]bool)}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLiteStore) ensureTable(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+quoteIdent(table)+` (
		worker      TEXT NOT NULL,
		sequence    TEXT NOT NULL,
		bucket      TEXT,
		task        TEXT,
		batch       TEXT,
		unit_id     TEXT,
		try_current INTEGER,
		region      TEXT,
		type        TEXT,
		details     TEXT,
		client_time INTEGER,
		server_time INTEGER,
		PRIMARY KEY (worker, sequence)
	)`)
	if err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	s.tables[table] = true
	return nil
}

// PutIfAbsent inserts the item unless its key already exists
func (s *SQLiteStore) PutIfAbsent(ctx context.Context, table string, item Item) error {
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO `+quoteIdent(table)+`
		(worker, sequence, bucket, task, batch, unit_id, try_current, region, type, details, client_time, server_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (worker, sequence) DO NOTHING`,
		item.Worker, item.Sequence, item.Bucket, item.Task, item.Batch, item.UnitID,
		item.TryCurrent, item.Region, item.Type, item.Details, item.ClientTime, item.ServerTime)
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	if n == 0 {
		return ErrItemExists
	}
	return nil
}

// Items returns every item of a worker in a table ordered by server time
func (s *SQLiteStore) Items(ctx context.Context, table, worker string) ([]Item, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT worker, sequence, bucket, task, batch, unit_id, try_current,
		region, type, details, client_time, server_time
		FROM `+quoteIdent(table)+` WHERE worker = ? ORDER BY server_time, sequence`, worker)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Worker, &it.Sequence, &it.Bucket, &it.Task, &it.Batch, &it.UnitID,
			&it.TryCurrent, &it.Region, &it.Type, &it.Details, &it.ClientTime, &it.ServerTime); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
