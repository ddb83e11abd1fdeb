// Package audit records export downloads in a SQLite database.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded download.
type Entry struct {
	ID     int64     `json:"id"`
	User   string    `json:"user"`
	Kind   string    `json:"kind"`
	Format string    `json:"format"`
	Branch string    `json:"branch"`
	Rows   int       `json:"rows"`
	At     time.Time `json:"at"`
}

// Log is the download log.
type Log struct {
	db *sql.DB
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		kind TEXT NOT NULL,
		format TEXT NOT NULL,
		branch TEXT NOT NULL DEFAULT '',
		row_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_downloads_at ON downloads(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_downloads_user ON downloads(username)`,
}

// Open opens or creates the database at path and applies the schema. Use
// ":memory:" for a throwaway log.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	tx, err := db.Begin()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	for _, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			_ = db.Close()
			return nil, fmt.Errorf("error applying schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}
	return &Log{db: db}, nil
}

// Record stores e. A zero At is replaced with the current time.
func (l *Log) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO downloads (username, kind, format, branch, row_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.User, e.Kind, e.Format, e.Branch, e.Rows, e.At.UnixNano())
	if err != nil {
		return fmt.Errorf("error recording download: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, username, kind, format, branch, row_count, created_at FROM downloads ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying downloads: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			at int64
		)
		if err := rows.Scan(&e.ID, &e.User, &e.Kind, &e.Format, &e.Branch, &e.Rows, &at); err != nil {
			return nil, fmt.Errorf("error scanning download: %w", err)
		}
		e.At = time.Unix(0, at).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}
