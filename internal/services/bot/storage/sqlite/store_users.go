package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/k1rl3s/chessbot/internal/services/bot/storage"
)

// CreateUser registers a player and seeds their default engine settings in
// one transaction. Registering an already-known platform id is a no-op so
// repeated start commands stay idempotent.
func (s *Store) CreateUser(ctx context.Context, user storage.UserRecord, settings storage.SettingsRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	user.ID = strings.TrimSpace(user.ID)
	user.Name = strings.TrimSpace(user.Name)
	if user.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if user.PlatformID == 0 {
		return fmt.Errorf("platform id is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if settings.ModifiedAt.IsZero() {
		settings.ModifiedAt = user.CreatedAt
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO users (
	id, platform_id, name,
	total_games, total_wins, total_draws, total_defeats,
	created_at
) VALUES (?, ?, ?, 0, 0, 0, 0, ?)
`,
		user.ID,
		user.PlatformID,
		user.Name,
		user.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check user insert: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO settings (
	user_id, min_time, max_time, threads, depth, ram_hash,
	skill_level, elo, colors, with_coords, size, modified_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		user.ID,
		settings.MinTime,
		settings.MaxTime,
		settings.Threads,
		settings.Depth,
		settings.RAMHash,
		settings.SkillLevel,
		settings.Elo,
		settings.Colors,
		settings.WithCoords,
		settings.Size,
		settings.ModifiedAt.UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert default settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// GetUser loads a player by platform id.
func (s *Store) GetUser(ctx context.Context, platformID int64) (storage.UserRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.UserRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, platform_id, name,
	total_games, total_wins, total_draws, total_defeats,
	created_at
FROM users WHERE platform_id = ?
`, platformID)
	return scanUser(row)
}

// TopUsers lists the global leaderboard: most wins first, earliest
// sign-up breaking ties.
func (s *Store) TopUsers(ctx context.Context, limit int) ([]storage.UserRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, platform_id, name,
	total_games, total_wins, total_draws, total_defeats,
	created_at
FROM users
ORDER BY total_wins DESC, created_at ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top users: %w", err)
	}
	defer rows.Close()

	var users []storage.UserRecord
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top users: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (storage.UserRecord, error) {
	var user storage.UserRecord
	var createdAt int64
	err := row.Scan(
		&user.ID,
		&user.PlatformID,
		&user.Name,
		&user.TotalGames,
		&user.TotalWins,
		&user.TotalDraws,
		&user.TotalDefeats,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	return user, nil
}
