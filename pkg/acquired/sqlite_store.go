package acquired

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"gpbackup/pkg/logger"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS acquired (
	id       TEXT PRIMARY KEY,
	position INTEGER NOT NULL
)`

// SQLiteStore keeps the acquired ids in a SQLite table ordered by position
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path
func NewSQLiteStore(path string, log logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create acquired table: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: log.WithField("component", "acquired"),
	}, nil
}

func (s *SQLiteStore) Location() string {
	return "sqlite:" + s.path
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load reads all ids in position order
func (s *SQLiteStore) Load(ctx context.Context) (*Set, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM acquired ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query acquired ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan acquired id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read acquired ids: %w", err)
	}

	set := NewSet(ids)
	s.logger.DebugWithFields("Acquired list loaded", map[string]interface{}{
		"path":  s.path,
		"count": set.Len(),
	})
	return set, nil
}

// Persist replaces the table contents with ids in a single transaction
func (s *SQLiteStore) Persist(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM acquired`); err != nil {
		return fmt.Errorf("failed to clear acquired ids: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO acquired (id, position) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, i); err != nil {
			return fmt.Errorf("failed to insert acquired id %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit acquired ids: %w", err)
	}

	s.logger.DebugWithFields("Acquired list saved", map[string]interface{}{
		"path":  s.path,
		"count": len(ids),
	})
	return nil
}
