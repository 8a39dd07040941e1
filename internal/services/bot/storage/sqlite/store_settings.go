package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/k1rl3s/chessbot/internal/services/bot/storage"
)

// GetSettings loads engine settings for a user.
func (s *Store) GetSettings(ctx context.Context, userID string) (storage.SettingsRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SettingsRecord{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.SettingsRecord{}, fmt.Errorf("user id is required")
	}

	var settings storage.SettingsRecord
	var modifiedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, min_time, max_time, threads, depth, ram_hash,
	skill_level, elo, colors, with_coords, size, modified_at
FROM settings WHERE user_id = ?
`, userID).Scan(
		&settings.UserID,
		&settings.MinTime,
		&settings.MaxTime,
		&settings.Threads,
		&settings.Depth,
		&settings.RAMHash,
		&settings.SkillLevel,
		&settings.Elo,
		&settings.Colors,
		&settings.WithCoords,
		&settings.Size,
		&modifiedAt,
	)
	if err == sql.ErrNoRows {
		return storage.SettingsRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SettingsRecord{}, fmt.Errorf("scan settings: %w", err)
	}
	settings.ModifiedAt = time.UnixMilli(modifiedAt).UTC()
	return settings, nil
}

// UpdateSettings replaces a user's engine settings.
func (s *Store) UpdateSettings(ctx context.Context, settings storage.SettingsRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	settings.UserID = strings.TrimSpace(settings.UserID)
	if settings.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if settings.ModifiedAt.IsZero() {
		settings.ModifiedAt = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE settings SET
	min_time = ?, max_time = ?, threads = ?, depth = ?, ram_hash = ?,
	skill_level = ?, elo = ?, colors = ?, with_coords = ?, size = ?,
	modified_at = ?
WHERE user_id = ?
`,
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
		settings.UserID,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check settings update: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
