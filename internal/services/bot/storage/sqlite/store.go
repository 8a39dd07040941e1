// Package sqlite implements bot storage on a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
	sqlitemigrate "github.com/k1rl3s/chessbot/internal/platform/storage/sqlitemigrate"
	"github.com/k1rl3s/chessbot/internal/services/bot/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed bot persistence. The underlying file lives
// on the mounted volume and is exclusively owned by this process.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the bot SQLite store and applies migrations. Opening an
// existing database is idempotent: prior contents survive restarts
// untouched. The journal runs in WAL mode with synchronous=NORMAL so
// committed transactions are durable against process kills.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperrors.New(apperrors.CodeStorageOpen, "storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageOpen, "open sqlite db", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageOpen, "ping sqlite db", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageOpen, "run migrations", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Checkpoint folds the WAL back into the main database file. Running it
// periodically keeps the durable on-disk state bounded, so the last
// committed write is always recoverable even after an out-of-memory kill.
func (s *Store) Checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageUnavailable, "wal checkpoint", err)
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}
