package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	apperrors "vidgrab/internal/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite persists keys in a single kv table.
type SQLite struct {
	db *sql.DB
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, "migrations")
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.NewStorageError("open sqlite", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError("migrate sqlite", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("get %s", key), err)
	}
	return value, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, strftime('%s','now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("set %s", key), err)
	}
	return nil
}

func (s *SQLite) CompareAndSwap(ctx context.Context, key string, old, new []byte) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if old == nil {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, strftime('%s','now'))
			ON CONFLICT(key) DO NOTHING
		`, key, new)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE kv SET value = ?, updated_at = strftime('%s','now')
			WHERE key = ? AND value = ?
		`, new, key, old)
	}
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Sprintf("cas %s", key), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Sprintf("cas %s", key), err)
	}
	return n == 1, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("delete %s", key), err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
