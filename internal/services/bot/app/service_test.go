package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
	"github.com/k1rl3s/chessbot/internal/services/bot/engine"
	"github.com/k1rl3s/chessbot/internal/services/bot/storage"
	botsqlite "github.com/k1rl3s/chessbot/internal/services/bot/storage/sqlite"
)

type fakeEngine struct {
	defaults   engine.Defaults
	limits     engine.Limits
	moveReply  engine.MoveReply
	moveErr    error
	evaluation engine.Evaluation
	board      []byte

	moveRequests []engine.MoveRequest
}

func (f *fakeEngine) Move(_ context.Context, request engine.MoveRequest) (engine.MoveReply, error) {
	f.moveRequests = append(f.moveRequests, request)
	if f.moveErr != nil {
		return engine.MoveReply{}, f.moveErr
	}
	return f.moveReply, nil
}

func (f *fakeEngine) Evaluation(context.Context, string) (engine.Evaluation, error) {
	return f.evaluation, nil
}

func (f *fakeEngine) BoardImage(context.Context, engine.BoardRequest) ([]byte, error) {
	return f.board, nil
}

func (f *fakeEngine) Limits(context.Context) (engine.Limits, error) {
	return f.limits, nil
}

func (f *fakeEngine) Defaults(context.Context) (engine.Defaults, error) {
	return f.defaults, nil
}

func openTempBotStore(t *testing.T) *botsqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chessbot.db")
	store, err := botsqlite.Open(path)
	if err != nil {
		t.Fatalf("open bot store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close bot store: %v", err)
		}
	})
	return store
}

func newTestService(t *testing.T, fake *fakeEngine) (*Service, *botsqlite.Store) {
	t.Helper()
	store := openTempBotStore(t)
	service := NewService(store, fake, ServiceOptions{})
	return service, store
}

func TestRegisterUserSeedsEngineDefaults(t *testing.T) {
	fake := &fakeEngine{defaults: engine.Defaults{Depth: 12, Elo: 1800, Size: 800, WithCoords: true}}
	service, _ := newTestService(t, fake)

	user, err := service.RegisterUser(context.Background(), 42, "magnus")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PlatformID != 42 || user.Name != "magnus" {
		t.Fatalf("unexpected user: %+v", user)
	}

	settings, err := service.Settings(context.Background(), 42)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.Depth != 12 || settings.Elo != 1800 || !settings.WithCoords {
		t.Fatalf("settings not seeded from defaults: %+v", settings)
	}

	again, err := service.RegisterUser(context.Background(), 42, "magnus")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("second register created a new user: %q != %q", again.ID, user.ID)
	}
}

func TestStartGameAsBlackEngineOpens(t *testing.T) {
	fake := &fakeEngine{
		moveReply: engine.MoveReply{
			EngineMove: "e2e4",
			PrevMoves:  "e2e4",
			FEN:        "after-e4",
		},
	}
	service, store := newTestService(t, fake)
	registerTestUser(t, service, 42)

	view, closedOld, err := service.StartGame(context.Background(), 42, storage.OrientationBlack)
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	if closedOld {
		t.Fatal("no prior game, closedOld should be false")
	}
	if view.EngineMove != "e2e4" {
		t.Fatalf("engine move = %q, want e2e4", view.EngineMove)
	}
	if len(fake.moveRequests) != 1 || fake.moveRequests[0].UserMove != "" {
		t.Fatalf("expected one opening move request with empty user move, got %+v", fake.moveRequests)
	}

	game, err := store.ActiveGame(context.Background(), view.Game.UserID)
	if err != nil {
		t.Fatalf("active game: %v", err)
	}
	if game.FEN != "after-e4" {
		t.Fatalf("opening move not committed: fen = %q", game.FEN)
	}
}

func TestStartGameReportsClosedPriorGame(t *testing.T) {
	service, _ := newTestService(t, &fakeEngine{})
	registerTestUser(t, service, 42)

	if _, _, err := service.StartGame(context.Background(), 42, storage.OrientationWhite); err != nil {
		t.Fatalf("first game: %v", err)
	}
	_, closedOld, err := service.StartGame(context.Background(), 42, storage.OrientationWhite)
	if err != nil {
		t.Fatalf("second game: %v", err)
	}
	if !closedOld {
		t.Fatal("expected prior game to be reported closed")
	}

	stats, err := service.Stats(context.Background(), 42)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.User.TotalDefeats != 1 || stats.User.TotalGames != 1 {
		t.Fatalf("abandoned game not counted as defeat: %+v", stats.User)
	}
}

func TestStartGameRejectsBadOrientation(t *testing.T) {
	service, _ := newTestService(t, &fakeEngine{})
	registerTestUser(t, service, 42)

	_, _, err := service.StartGame(context.Background(), 42, "north")
	if !errors.Is(err, apperrors.New(apperrors.CodeGameInvalidOrientation, "")) {
		t.Fatalf("expected invalid orientation error, got %v", err)
	}
}

func TestApplyMoveCommitsBeforeReply(t *testing.T) {
	fake := &fakeEngine{
		moveReply: engine.MoveReply{
			EngineMove:  "e7e5",
			PrevMoves:   "e2e4e7e5",
			FEN:         "after-e5",
			CheckSquare: "",
		},
	}
	service, store := newTestService(t, fake)
	registerTestUser(t, service, 42)
	startTestGame(t, service, 42)

	result, err := service.ApplyMove(context.Background(), 42, " E2-E4 ")
	if err != nil {
		t.Fatalf("apply move: %v", err)
	}
	if result.EngineMove != "e7e5" {
		t.Fatalf("engine move = %q, want e7e5", result.EngineMove)
	}
	if fake.moveRequests[0].UserMove != "e2e4" {
		t.Fatalf("move not normalized: %q", fake.moveRequests[0].UserMove)
	}

	game, err := store.ActiveGame(context.Background(), result.Game.UserID)
	if err != nil {
		t.Fatalf("active game: %v", err)
	}
	if game.FEN != "after-e5" || game.PrevMoves != "e2e4e7e5" {
		t.Fatalf("move not committed before reply: %+v", game)
	}
}

func TestApplyMoveRejectsEmptyInput(t *testing.T) {
	service, _ := newTestService(t, &fakeEngine{})
	registerTestUser(t, service, 42)
	startTestGame(t, service, 42)

	_, err := service.ApplyMove(context.Background(), 42, " - ")
	if !errors.Is(err, apperrors.New(apperrors.CodeGameEmptyMove, "")) {
		t.Fatalf("expected empty move error, got %v", err)
	}
}

func TestApplyMoveIllegalLeavesStateUntouched(t *testing.T) {
	fake := &fakeEngine{}
	service, store := newTestService(t, fake)
	registerTestUser(t, service, 42)
	view := startTestGame(t, service, 42)

	fake.moveErr = apperrors.New(apperrors.CodeEngineIllegalMove, "engine rejected request")
	_, err := service.ApplyMove(context.Background(), 42, "e2e9")
	if !errors.Is(err, apperrors.New(apperrors.CodeEngineIllegalMove, "")) {
		t.Fatalf("expected illegal move error, got %v", err)
	}

	game, err := store.ActiveGame(context.Background(), view.Game.UserID)
	if err != nil {
		t.Fatalf("active game: %v", err)
	}
	if game.FEN != StartFEN || game.PrevMoves != "" {
		t.Fatalf("rejected move changed state: %+v", game)
	}
}

func TestApplyMoveWithoutGame(t *testing.T) {
	service, _ := newTestService(t, &fakeEngine{})
	registerTestUser(t, service, 42)

	_, err := service.ApplyMove(context.Background(), 42, "e2e4")
	if !errors.Is(err, apperrors.New(apperrors.CodeGameNotActive, "")) {
		t.Fatalf("expected no-active-game error, got %v", err)
	}
}

func TestApplyMoveFinishesCheckmatedGame(t *testing.T) {
	fake := &fakeEngine{
		moveReply: engine.MoveReply{
			EngineMove: "d8h4",
			FEN:        "mate-fen",
			EndType:    engine.EndTypeCheckmate,
			IsEnd:      true,
		},
		evaluation: engine.Evaluation{
			EndType: engine.EndTypeCheckmate,
			IsEnd:   true,
			WhoWin:  storage.OrientationWhite,
		},
	}
	service, store := newTestService(t, fake)
	registerTestUser(t, service, 42)
	view := startTestGame(t, service, 42)

	result, err := service.ApplyMove(context.Background(), 42, "g2g4")
	if err != nil {
		t.Fatalf("apply move: %v", err)
	}
	if !result.Finished || result.WhoWin != storage.OrientationWhite {
		t.Fatalf("unexpected result: %+v", result)
	}

	if _, err := store.ActiveGame(context.Background(), view.Game.UserID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("game still active after checkmate: %v", err)
	}
	stats, err := service.Stats(context.Background(), 42)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.User.TotalWins != 1 || stats.User.TotalGames != 1 {
		t.Fatalf("win not recorded: %+v", stats.User)
	}
	if stats.WinRate != 1 {
		t.Fatalf("win rate = %v, want 1", stats.WinRate)
	}
}

func TestResignCreditsEngine(t *testing.T) {
	service, _ := newTestService(t, &fakeEngine{})
	registerTestUser(t, service, 42)
	startTestGame(t, service, 42)

	winner, err := service.Resign(context.Background(), 42)
	if err != nil {
		t.Fatalf("resign: %v", err)
	}
	if winner != storage.OrientationBlack {
		t.Fatalf("winner = %q, want black", winner)
	}

	stats, err := service.Stats(context.Background(), 42)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.User.TotalDefeats != 1 {
		t.Fatalf("resignation not counted as defeat: %+v", stats.User)
	}
}

func TestContinueGameRendersBoard(t *testing.T) {
	fake := &fakeEngine{board: []byte{0x89, 'P', 'N', 'G'}}
	service, _ := newTestService(t, fake)
	registerTestUser(t, service, 42)
	startTestGame(t, service, 42)

	game, board, err := service.ContinueGame(context.Background(), 42)
	if err != nil {
		t.Fatalf("continue game: %v", err)
	}
	if game.FEN != StartFEN {
		t.Fatalf("fen = %q, want start position", game.FEN)
	}
	if len(board) == 0 {
		t.Fatal("expected rendered board bytes")
	}
}

func TestGlobalStatsReusesSnapshotWithinTTL(t *testing.T) {
	store := openTempBotStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	service := NewService(store, &fakeEngine{}, ServiceOptions{
		TopTTL: time.Minute,
		Clock:  func() time.Time { return clock() },
	})

	if _, err := service.RegisterUser(context.Background(), 1, "first"); err != nil {
		t.Fatalf("register: %v", err)
	}
	top, err := service.GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("global stats: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("top len = %d, want 1", len(top))
	}

	if _, err := service.RegisterUser(context.Background(), 2, "second"); err != nil {
		t.Fatalf("register second: %v", err)
	}
	top, err = service.GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("cached global stats: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("snapshot refreshed inside TTL: len = %d", len(top))
	}

	now = now.Add(2 * time.Minute)
	top, err = service.GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("refreshed global stats: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("snapshot not refreshed after TTL: len = %d", len(top))
	}
}

func TestUpdateSettingClampsToEngineLimits(t *testing.T) {
	fake := &fakeEngine{limits: engine.Limits{"depth": {Min: 1, Max: 20}}}
	service, _ := newTestService(t, fake)
	registerTestUser(t, service, 42)

	settings, err := service.UpdateSetting(context.Background(), 42, "depth", "99")
	if err != nil {
		t.Fatalf("update setting: %v", err)
	}
	if settings.Depth != 20 {
		t.Fatalf("depth = %d, want clamped 20", settings.Depth)
	}

	stored, err := service.Settings(context.Background(), 42)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if stored.Depth != 20 {
		t.Fatalf("clamped value not committed: depth = %d", stored.Depth)
	}
}

func TestUpdateSettingFoldsStaleStoredValues(t *testing.T) {
	fake := &fakeEngine{
		defaults: engine.Defaults{Depth: 40, Elo: 1800},
		limits:   engine.Limits{"depth": {Min: 1, Max: 20}, "elo": {Min: 100, Max: 3000}},
	}
	service, _ := newTestService(t, fake)
	registerTestUser(t, service, 42)

	// Depth 40 was stored under laxer limits; touching any setting folds
	// the whole record into the current ranges.
	settings, err := service.UpdateSetting(context.Background(), 42, "elo", "1500")
	if err != nil {
		t.Fatalf("update setting: %v", err)
	}
	if settings.Depth != 20 {
		t.Fatalf("stale depth = %d, want folded 20", settings.Depth)
	}
	if settings.Elo != 1500 {
		t.Fatalf("elo = %d, want 1500", settings.Elo)
	}

	stored, err := service.Settings(context.Background(), 42)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if stored.Depth != 20 {
		t.Fatalf("folded depth not committed: %d", stored.Depth)
	}
}

func TestUpdateSettingUnknownKey(t *testing.T) {
	service, _ := newTestService(t, &fakeEngine{})
	registerTestUser(t, service, 42)

	_, err := service.UpdateSetting(context.Background(), 42, "pondering", "1")
	if !errors.Is(err, apperrors.New(apperrors.CodeSettingsUnknownKey, "")) {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func registerTestUser(t *testing.T, service *Service, platformID int64) storage.UserRecord {
	t.Helper()
	user, err := service.RegisterUser(context.Background(), platformID, "player")
	if err != nil {
		t.Fatalf("register test user: %v", err)
	}
	return user
}

func startTestGame(t *testing.T, service *Service, platformID int64) GameView {
	t.Helper()
	view, _, err := service.StartGame(context.Background(), platformID, storage.OrientationWhite)
	if err != nil {
		t.Fatalf("start test game: %v", err)
	}
	return view
}
