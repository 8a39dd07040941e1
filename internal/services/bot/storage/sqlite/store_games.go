package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/k1rl3s/chessbot/internal/services/bot/domain"
	"github.com/k1rl3s/chessbot/internal/services/bot/storage"
)

// CreateGame starts a new active game. Any prior active game is finished
// first, as a loss for its player, inside the same transaction. It
// reports whether an old game was closed.
func (s *Store) CreateGame(ctx context.Context, game storage.GameRecord) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	game.ID = strings.TrimSpace(game.ID)
	game.UserID = strings.TrimSpace(game.UserID)
	if game.ID == "" {
		return false, fmt.Errorf("game id is required")
	}
	if game.UserID == "" {
		return false, fmt.Errorf("user id is required")
	}
	if game.Orientation != storage.OrientationWhite && game.Orientation != storage.OrientationBlack {
		return false, fmt.Errorf("orientation must be %q or %q", storage.OrientationWhite, storage.OrientationBlack)
	}
	if game.CreatedAt.IsZero() {
		game.CreatedAt = time.Now().UTC()
	}
	if game.UpdatedAt.IsZero() {
		game.UpdatedAt = game.CreatedAt
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin create game: %w", err)
	}
	defer tx.Rollback()

	old, err := activeGameTx(ctx, tx, game.UserID)
	closedOld := false
	switch {
	case err == nil:
		// The abandoned game counts as a resignation.
		if err := finishGameTx(ctx, tx, old, domain.Opponent(old.Orientation), game.CreatedAt); err != nil {
			return false, err
		}
		closedOld = true
	case err == storage.ErrNotFound:
	default:
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO games (
	id, user_id, orientation, fen, prev_moves, last_move,
	check_square, is_active, who_win, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, 1, '', ?, ?)
`,
		game.ID,
		game.UserID,
		game.Orientation,
		game.FEN,
		game.PrevMoves,
		game.LastMove,
		game.CheckSquare,
		game.CreatedAt.UTC().UnixMilli(),
		game.UpdatedAt.UTC().UnixMilli(),
	); err != nil {
		return false, fmt.Errorf("insert game: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit create game: %w", err)
	}
	return closedOld, nil
}

// ActiveGame loads the user's current game.
func (s *Store) ActiveGame(ctx context.Context, userID string) (storage.GameRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.GameRecord{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.GameRecord{}, fmt.Errorf("user id is required")
	}
	return activeGameTx(ctx, s.sqlDB, userID)
}

// UpdateActiveGame applies an accepted move to the current game. The
// update is committed before the call returns, so a caller that relays
// the engine's reply afterwards never acknowledges unpersisted state.
func (s *Store) UpdateActiveGame(ctx context.Context, userID string, update storage.GameUpdate) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE games SET
	fen = ?, prev_moves = ?, last_move = ?, check_square = ?, updated_at = ?
WHERE user_id = ? AND is_active = 1
`,
		update.FEN,
		update.PrevMoves,
		update.LastMove,
		update.CheckSquare,
		time.Now().UTC().UnixMilli(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("update active game: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check game update: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FinishActiveGame deactivates the current game, records the winner and
// bumps the owner's aggregate stats in one transaction. An empty winner
// counts as a draw.
func (s *Store) FinishActiveGame(ctx context.Context, userID string, whoWin string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if whoWin != "" && whoWin != storage.OrientationWhite && whoWin != storage.OrientationBlack {
		return fmt.Errorf("winner must be %q, %q or empty", storage.OrientationWhite, storage.OrientationBlack)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish game: %w", err)
	}
	defer tx.Rollback()

	game, err := activeGameTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	if err := finishGameTx(ctx, tx, game, whoWin, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish game: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func activeGameTx(ctx context.Context, q querier, userID string) (storage.GameRecord, error) {
	var game storage.GameRecord
	var createdAt, updatedAt int64
	err := q.QueryRowContext(ctx, `
SELECT id, user_id, orientation, fen, prev_moves, last_move,
	check_square, is_active, who_win, created_at, updated_at
FROM games WHERE user_id = ? AND is_active = 1
`, userID).Scan(
		&game.ID,
		&game.UserID,
		&game.Orientation,
		&game.FEN,
		&game.PrevMoves,
		&game.LastMove,
		&game.CheckSquare,
		&game.Active,
		&game.WhoWin,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return storage.GameRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.GameRecord{}, fmt.Errorf("scan game: %w", err)
	}
	game.CreatedAt = time.UnixMilli(createdAt).UTC()
	game.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return game, nil
}

func finishGameTx(ctx context.Context, tx *sql.Tx, game storage.GameRecord, whoWin string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `
UPDATE games SET is_active = 0, who_win = ?, updated_at = ?
WHERE id = ?
`, whoWin, now.UTC().UnixMilli(), game.ID); err != nil {
		return fmt.Errorf("deactivate game: %w", err)
	}

	wins, draws, defeats := 0, 0, 0
	switch {
	case whoWin == "":
		draws = 1
	case whoWin == game.Orientation:
		wins = 1
	default:
		defeats = 1
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE users SET
	total_games = total_games + 1,
	total_wins = total_wins + ?,
	total_draws = total_draws + ?,
	total_defeats = total_defeats + ?
WHERE id = ?
`, wins, draws, defeats, game.UserID); err != nil {
		return fmt.Errorf("update user stats: %w", err)
	}
	return nil
}
