// Package storage defines the persistence contracts for the bot. The
// database handle is owned by whoever opens it and injected into the
// components that need persistence; nothing reaches the file through a
// package-level path.
package storage

import (
	"context"
	"time"

	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing. Callers
// use this to differentiate legitimate "no such entity" states from
// transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// Orientation values stored for games and winners.
const (
	OrientationWhite = "w"
	OrientationBlack = "b"
)

// UserRecord is one registered player with aggregate results.
type UserRecord struct {
	ID           string
	PlatformID   int64
	Name         string
	TotalGames   int
	TotalWins    int
	TotalDraws   int
	TotalDefeats int
	CreatedAt    time.Time
}

// SettingsRecord holds per-user engine tuning values.
type SettingsRecord struct {
	UserID     string
	MinTime    int
	MaxTime    int
	Threads    int
	Depth      int
	RAMHash    int
	SkillLevel int
	Elo        int
	Colors     string
	WithCoords bool
	Size       int
	ModifiedAt time.Time
}

// GameRecord is one game against the engine. At most one game per user is
// active at a time; finished games keep their final position for stats.
type GameRecord struct {
	ID          string
	UserID      string
	Orientation string
	FEN         string
	PrevMoves   string
	LastMove    string
	CheckSquare string
	Active      bool
	WhoWin      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GameUpdate carries the position change applied after an accepted move.
type GameUpdate struct {
	FEN         string
	PrevMoves   string
	LastMove    string
	CheckSquare string
}

// UserStore persists players and their aggregate statistics.
type UserStore interface {
	// CreateUser registers a player with default settings. Registering an
	// existing platform id is a no-op.
	CreateUser(ctx context.Context, user UserRecord, settings SettingsRecord) error
	GetUser(ctx context.Context, platformID int64) (UserRecord, error)
	// TopUsers lists the leaderboard: most wins first, earliest sign-up
	// breaking ties.
	TopUsers(ctx context.Context, limit int) ([]UserRecord, error)
}

// SettingsStore persists per-user engine settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (SettingsRecord, error)
	UpdateSettings(ctx context.Context, settings SettingsRecord) error
}

// GameStore persists games. Mutations return only after the change is
// durably committed.
type GameStore interface {
	// CreateGame starts a new active game, finishing any prior active game
	// as a resignation in the same transaction. It reports whether an old
	// game was closed.
	CreateGame(ctx context.Context, game GameRecord) (bool, error)
	ActiveGame(ctx context.Context, userID string) (GameRecord, error)
	UpdateActiveGame(ctx context.Context, userID string, update GameUpdate) error
	// FinishActiveGame deactivates the game, records the winner and bumps
	// the owner's aggregate stats in one transaction. An empty winner
	// counts as a draw.
	FinishActiveGame(ctx context.Context, userID string, whoWin string) error
}

// Store is the full persistence surface owned by the process. The
// database file belongs to this single instance; no cross-process locking
// is layered on top.
type Store interface {
	UserStore
	SettingsStore
	GameStore

	// Checkpoint folds the write-ahead log back into the database file so
	// the durable state stays bounded and recoverable after an abrupt kill.
	Checkpoint(ctx context.Context) error
	Close() error
}
