// Package local is the on-device persisted storage backend: the in-memory
// stores wrapped with a SQLite-backed key-value table. The full collection
// is re-serialized and overwritten after every mutation, mirroring how the
// device-only revisions of the app persisted their state.
package local

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// KV is a string-keyed blob store on top of SQLite.
type KV struct {
	db *sql.DB
}

// OpenKV opens (creating if needed) the backing database at path.
func OpenKV(path string) (*KV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local db: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BLOB NOT NULL)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init local db: %w", err)
	}
	return &KV{db: db}, nil
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := k.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv[%s]: %w", key, err)
	}
	return value, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set kv[%s]: %w", key, err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	_, err := k.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete kv[%s]: %w", key, err)
	}
	return nil
}

func (k *KV) Close() error {
	return k.db.Close()
}
