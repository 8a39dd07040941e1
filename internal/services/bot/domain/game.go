// Package domain holds the game rules that do not depend on storage or
// transport: winner resolution, settings clamping and input hygiene. The
// chess rules themselves live with the engine; this package only decides
// how the bot reacts to what the engine reports.
package domain

import (
	"strings"

	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
	"github.com/k1rl3s/chessbot/internal/services/bot/engine"
	"github.com/k1rl3s/chessbot/internal/services/bot/storage"
)

// ValidateOrientation checks a requested player color.
func ValidateOrientation(orientation string) error {
	switch orientation {
	case storage.OrientationWhite, storage.OrientationBlack:
		return nil
	default:
		return apperrors.WithMetadata(apperrors.CodeGameInvalidOrientation,
			"orientation must be w or b",
			map[string]string{"orientation": orientation})
	}
}

// Opponent returns the opposite color.
func Opponent(orientation string) string {
	if orientation == storage.OrientationWhite {
		return storage.OrientationBlack
	}
	return storage.OrientationWhite
}

// NormalizeMove cleans user-entered move notation: surrounding space,
// dashes and case are ignored so "E2-E4" and "e2e4" read the same.
func NormalizeMove(input string) string {
	cleaned := strings.ToLower(strings.TrimSpace(input))
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	return cleaned
}

// WinnerOnResign resolves the winner when the player holding the given
// color gives up: the engine's color takes the game.
func WinnerOnResign(orientation string) string {
	return Opponent(orientation)
}

// WinnerFromEvaluation resolves the winner of a stopped game from the
// engine's judgement of its final position. A delivered checkmate names
// the winner outright; a forced mate still on the board is credited to
// the side the score favors; anything else ends as a draw.
func WinnerFromEvaluation(evaluation engine.Evaluation) string {
	if evaluation.EndType != engine.EndTypeCheckmate {
		return ""
	}
	if evaluation.IsEnd {
		return evaluation.WhoWin
	}
	switch {
	case evaluation.Value > 0:
		return storage.OrientationWhite
	case evaluation.Value < 0:
		return storage.OrientationBlack
	default:
		return ""
	}
}

// WinRate is the player's share of won games, zero-safe for new players.
func WinRate(user storage.UserRecord) float64 {
	if user.TotalGames == 0 {
		return 0
	}
	return float64(user.TotalWins) / float64(user.TotalGames)
}
