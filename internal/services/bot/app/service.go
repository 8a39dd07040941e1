// Package app wires the bot's storage and engine client into the
// operations the chat surface exposes, and owns the process runtime
// around them.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
	"github.com/k1rl3s/chessbot/internal/platform/id"
	"github.com/k1rl3s/chessbot/internal/services/bot/domain"
	"github.com/k1rl3s/chessbot/internal/services/bot/engine"
	"github.com/k1rl3s/chessbot/internal/services/bot/storage"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

const (
	defaultTopLimit = 10
	defaultTopTTL   = time.Minute
)

// EngineClient is the engine surface the service consumes.
type EngineClient interface {
	Move(ctx context.Context, request engine.MoveRequest) (engine.MoveReply, error)
	Evaluation(ctx context.Context, fen string) (engine.Evaluation, error)
	BoardImage(ctx context.Context, request engine.BoardRequest) ([]byte, error)
	Limits(ctx context.Context) (engine.Limits, error)
	Defaults(ctx context.Context) (engine.Defaults, error)
}

// ServiceOptions tunes the service's cached views and test seams.
type ServiceOptions struct {
	// TopLimit caps the leaderboard length.
	TopLimit int
	// TopTTL bounds how long one leaderboard snapshot is reused.
	TopTTL time.Duration
	// Clock and NewID default to the real implementations.
	Clock func() time.Time
	NewID func() (string, error)
}

// Service implements the bot operations. Every mutation is durably
// committed by the store before the result is handed back, so an
// acknowledged move is never lost to a restart.
type Service struct {
	store   storage.Store
	engine  EngineClient
	clock   func() time.Time
	newID   func() (string, error)
	topTTL  time.Duration
	topSize int

	mu         sync.Mutex
	topCache   []storage.UserRecord
	topFetched time.Time
}

// NewService creates the bot service around its injected dependencies.
func NewService(store storage.Store, engineClient EngineClient, options ServiceOptions) *Service {
	if options.TopLimit <= 0 {
		options.TopLimit = defaultTopLimit
	}
	if options.TopTTL <= 0 {
		options.TopTTL = defaultTopTTL
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.NewID == nil {
		options.NewID = id.NewID
	}
	return &Service{
		store:   store,
		engine:  engineClient,
		clock:   options.Clock,
		newID:   options.NewID,
		topTTL:  options.TopTTL,
		topSize: options.TopLimit,
	}
}

// RegisterUser ensures a player exists, seeding settings from the
// engine's recommended defaults. Registering twice is a no-op.
func (s *Service) RegisterUser(ctx context.Context, platformID int64, name string) (storage.UserRecord, error) {
	defaults, err := s.engine.Defaults(ctx)
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("fetch engine defaults: %w", err)
	}
	userID, err := s.newID()
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("generate user id: %w", err)
	}

	now := s.clock().UTC()
	user := storage.UserRecord{
		ID:         userID,
		PlatformID: platformID,
		Name:       name,
		CreatedAt:  now,
	}
	if err := s.store.CreateUser(ctx, user, domain.DefaultSettings(userID, defaults, now)); err != nil {
		return storage.UserRecord{}, err
	}
	return s.store.GetUser(ctx, platformID)
}

// GameView is the state of a game as presented to the player.
type GameView struct {
	Game       storage.GameRecord
	EngineMove string
}

// StartGame begins a new game with the requested color, resigning any
// game already in progress. When the player takes black the engine opens
// and its first move is committed before the view is returned.
func (s *Service) StartGame(ctx context.Context, platformID int64, orientation string) (GameView, bool, error) {
	if err := domain.ValidateOrientation(orientation); err != nil {
		return GameView{}, false, err
	}
	user, err := s.store.GetUser(ctx, platformID)
	if err != nil {
		return GameView{}, false, err
	}
	gameID, err := s.newID()
	if err != nil {
		return GameView{}, false, fmt.Errorf("generate game id: %w", err)
	}

	now := s.clock().UTC()
	game := storage.GameRecord{
		ID:          gameID,
		UserID:      user.ID,
		Orientation: orientation,
		FEN:         StartFEN,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	closedOld, err := s.store.CreateGame(ctx, game)
	if err != nil {
		return GameView{}, false, err
	}

	view := GameView{Game: game}
	if orientation == storage.OrientationBlack {
		view, err = s.engineOpens(ctx, user, game)
		if err != nil {
			return GameView{}, closedOld, err
		}
	}
	return view, closedOld, nil
}

// engineOpens requests the engine's first move for a player on black and
// commits it before returning.
func (s *Service) engineOpens(ctx context.Context, user storage.UserRecord, game storage.GameRecord) (GameView, error) {
	settings, err := s.store.GetSettings(ctx, user.ID)
	if err != nil {
		return GameView{}, err
	}
	reply, err := s.engine.Move(ctx, engine.MoveRequest{
		Orientation: game.Orientation,
		Params:      domain.EngineParams(settings),
	})
	if err != nil {
		return GameView{}, err
	}
	update := storage.GameUpdate{
		FEN:         reply.FEN,
		PrevMoves:   reply.PrevMoves,
		LastMove:    reply.EngineMove,
		CheckSquare: reply.CheckSquare,
	}
	if err := s.store.UpdateActiveGame(ctx, user.ID, update); err != nil {
		return GameView{}, err
	}
	game.FEN = update.FEN
	game.PrevMoves = update.PrevMoves
	game.LastMove = update.LastMove
	game.CheckSquare = update.CheckSquare
	return GameView{Game: game, EngineMove: reply.EngineMove}, nil
}

// CurrentGame returns the player's game in progress.
func (s *Service) CurrentGame(ctx context.Context, platformID int64) (storage.GameRecord, error) {
	user, err := s.store.GetUser(ctx, platformID)
	if err != nil {
		return storage.GameRecord{}, err
	}
	game, err := s.store.ActiveGame(ctx, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.GameRecord{}, apperrors.New(apperrors.CodeGameNotActive, "no game in progress")
	}
	if err != nil {
		return storage.GameRecord{}, err
	}
	return game, nil
}

// ContinueGame returns the game in progress together with a rendered
// board so a player can resume after a restart.
func (s *Service) ContinueGame(ctx context.Context, platformID int64) (storage.GameRecord, []byte, error) {
	game, err := s.CurrentGame(ctx, platformID)
	if err != nil {
		return storage.GameRecord{}, nil, err
	}
	settings, err := s.store.GetSettings(ctx, game.UserID)
	if err != nil {
		return storage.GameRecord{}, nil, err
	}
	board, err := s.engine.BoardImage(ctx, engine.BoardRequest{
		FEN:         game.FEN,
		LastMove:    game.LastMove,
		CheckSquare: game.CheckSquare,
		Orientation: game.Orientation,
		Params:      domain.EngineParams(settings),
	})
	if err != nil {
		return storage.GameRecord{}, nil, err
	}
	return game, board, nil
}

// MoveResult is the outcome of one accepted player move.
type MoveResult struct {
	Game       storage.GameRecord
	EngineMove string
	Finished   bool
	WhoWin     string
}

// ApplyMove plays one player move. The position change is durably
// committed before the engine's reply is returned; a store failure after
// the engine call surfaces as an error and the move is not acknowledged.
func (s *Service) ApplyMove(ctx context.Context, platformID int64, move string) (MoveResult, error) {
	normalized := domain.NormalizeMove(move)
	if normalized == "" {
		return MoveResult{}, apperrors.New(apperrors.CodeGameEmptyMove, "move is empty")
	}

	game, err := s.CurrentGame(ctx, platformID)
	if err != nil {
		return MoveResult{}, err
	}
	settings, err := s.store.GetSettings(ctx, game.UserID)
	if err != nil {
		return MoveResult{}, err
	}

	reply, err := s.engine.Move(ctx, engine.MoveRequest{
		UserMove:    normalized,
		PrevMoves:   game.PrevMoves,
		Orientation: game.Orientation,
		Params:      domain.EngineParams(settings),
	})
	if err != nil {
		return MoveResult{}, err
	}

	update := storage.GameUpdate{
		FEN:         reply.FEN,
		PrevMoves:   reply.PrevMoves,
		LastMove:    reply.EngineMove,
		CheckSquare: reply.CheckSquare,
	}
	if err := s.store.UpdateActiveGame(ctx, game.UserID, update); err != nil {
		return MoveResult{}, err
	}
	game.FEN = update.FEN
	game.PrevMoves = update.PrevMoves
	game.LastMove = update.LastMove
	game.CheckSquare = update.CheckSquare

	result := MoveResult{Game: game, EngineMove: reply.EngineMove}
	if reply.IsEnd {
		winner, err := s.finishGame(ctx, game)
		if err != nil {
			return MoveResult{}, err
		}
		result.Finished = true
		result.WhoWin = winner
	}
	return result, nil
}

// finishGame resolves the winner of a finished position and closes the
// game with its owner's stats in one transaction.
func (s *Service) finishGame(ctx context.Context, game storage.GameRecord) (string, error) {
	evaluation, err := s.engine.Evaluation(ctx, game.FEN)
	if err != nil {
		return "", err
	}
	winner := domain.WinnerFromEvaluation(evaluation)
	if err := s.store.FinishActiveGame(ctx, game.UserID, winner); err != nil {
		return "", err
	}
	return winner, nil
}

// MoveHint returns the engine's judgement of the current position.
func (s *Service) MoveHint(ctx context.Context, platformID int64) (engine.Evaluation, error) {
	game, err := s.CurrentGame(ctx, platformID)
	if err != nil {
		return engine.Evaluation{}, err
	}
	return s.engine.Evaluation(ctx, game.FEN)
}

// Resign ends the game in progress in the engine's favor.
func (s *Service) Resign(ctx context.Context, platformID int64) (string, error) {
	game, err := s.CurrentGame(ctx, platformID)
	if err != nil {
		return "", err
	}
	winner := domain.WinnerOnResign(game.Orientation)
	if err := s.store.FinishActiveGame(ctx, game.UserID, winner); err != nil {
		return "", err
	}
	return winner, nil
}

// PlayerStats is a player's aggregate results.
type PlayerStats struct {
	User    storage.UserRecord
	WinRate float64
}

// Stats returns the player's aggregate results.
func (s *Service) Stats(ctx context.Context, platformID int64) (PlayerStats, error) {
	user, err := s.store.GetUser(ctx, platformID)
	if err != nil {
		return PlayerStats{}, err
	}
	return PlayerStats{User: user, WinRate: domain.WinRate(user)}, nil
}

// GlobalStats returns the leaderboard. One snapshot is cached with a TTL
// so repeated reads do not hit the database on every request.
func (s *Service) GlobalStats(ctx context.Context) ([]storage.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if s.topCache != nil && now.Sub(s.topFetched) < s.topTTL {
		return s.topCache, nil
	}

	top, err := s.store.TopUsers(ctx, s.topSize)
	if err != nil {
		return nil, err
	}
	s.topCache = top
	s.topFetched = now
	return top, nil
}

// Settings returns the player's engine settings.
func (s *Service) Settings(ctx context.Context, platformID int64) (storage.SettingsRecord, error) {
	user, err := s.store.GetUser(ctx, platformID)
	if err != nil {
		return storage.SettingsRecord{}, err
	}
	return s.store.GetSettings(ctx, user.ID)
}

// UpdateSetting applies one submitted settings value, clamped into the
// engine's advertised range, and commits it. The stored record is folded
// into the current limits at the same time, so values persisted under an
// older engine build drift back into range on the next update.
func (s *Service) UpdateSetting(ctx context.Context, platformID int64, key, value string) (storage.SettingsRecord, error) {
	settings, err := s.Settings(ctx, platformID)
	if err != nil {
		return storage.SettingsRecord{}, err
	}
	limits, err := s.engine.Limits(ctx)
	if err != nil {
		return storage.SettingsRecord{}, err
	}
	settings = domain.ClampSettings(settings, limits)
	if err := domain.ApplySetting(&settings, key, value, limits); err != nil {
		return storage.SettingsRecord{}, err
	}
	settings.ModifiedAt = s.clock().UTC()
	if err := s.store.UpdateSettings(ctx, settings); err != nil {
		return storage.SettingsRecord{}, err
	}
	return settings, nil
}
