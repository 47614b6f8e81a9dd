// Package sqlite stores preferences in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iamvkosarev/hablaya/internal/model"

	_ "modernc.org/sqlite"
)

const busyTimeoutMillis = 5000

const schema = `CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
)`

type PreferenceStorage struct {
	db *sql.DB
}

// Open creates the database file and schema when missing. The caller owns
// the returned storage and must Close it.
func Open(ctx context.Context, path string) (*PreferenceStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis),
		schema,
	} {
		if _, err = db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to prepare sqlite %s: %w", path, err)
		}
	}
	return &PreferenceStorage{db: db}, nil
}

func (p *PreferenceStorage) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrPreferenceNotFound
		}
		return "", fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return value, nil
}

func (p *PreferenceStorage) Set(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(
		ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}

func (p *PreferenceStorage) Close() error {
	return p.db.Close()
}
