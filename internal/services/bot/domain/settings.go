package domain

import (
	"strconv"
	"time"

	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
	"github.com/k1rl3s/chessbot/internal/services/bot/engine"
	"github.com/k1rl3s/chessbot/internal/services/bot/storage"
)

// Settings keys accepted from users. They mirror the engine's limits
// document so a clamped value always lands inside an advertised range.
const (
	SettingMinTime    = "min_time"
	SettingMaxTime    = "max_time"
	SettingThreads    = "threads"
	SettingDepth      = "depth"
	SettingRAMHash    = "ram_hash"
	SettingSkillLevel = "skill_level"
	SettingElo        = "elo"
	SettingColors     = "colors"
	SettingWithCoords = "with_coords"
	SettingSize       = "size"
)

// DefaultSettings seeds a new user's record from the engine's recommended
// values.
func DefaultSettings(userID string, defaults engine.Defaults, now time.Time) storage.SettingsRecord {
	return storage.SettingsRecord{
		UserID:     userID,
		MinTime:    defaults.MinTime,
		MaxTime:    defaults.MaxTime,
		Threads:    defaults.Threads,
		Depth:      defaults.Depth,
		RAMHash:    defaults.RAMHash,
		SkillLevel: defaults.SkillLevel,
		Elo:        defaults.Elo,
		Colors:     defaults.Colors,
		WithCoords: defaults.WithCoords,
		Size:       defaults.Size,
		ModifiedAt: now,
	}
}

// EngineParams converts a stored settings record into the request shape
// the engine expects.
func EngineParams(settings storage.SettingsRecord) engine.Params {
	return engine.Params{
		MinTime:    settings.MinTime,
		MaxTime:    settings.MaxTime,
		Threads:    settings.Threads,
		Depth:      settings.Depth,
		RAMHash:    settings.RAMHash,
		SkillLevel: settings.SkillLevel,
		Elo:        settings.Elo,
		Colors:     settings.Colors,
		WithCoords: settings.WithCoords,
		Size:       settings.Size,
	}
}

// ApplySetting writes one user-submitted value into the record. Numeric
// values are clamped into the engine's advertised range for the key;
// unknown keys are rejected without touching the record.
func ApplySetting(settings *storage.SettingsRecord, key, rawValue string, limits engine.Limits) error {
	switch key {
	case SettingColors:
		settings.Colors = rawValue
		return nil
	case SettingWithCoords:
		enabled, err := strconv.ParseBool(rawValue)
		if err != nil {
			return apperrors.WithMetadata(apperrors.CodeSettingsInvalidValue,
				"with_coords must be a boolean",
				map[string]string{"value": rawValue})
		}
		settings.WithCoords = enabled
		return nil
	}

	value, err := strconv.Atoi(rawValue)
	if err != nil {
		return apperrors.WithMetadata(apperrors.CodeSettingsInvalidValue,
			"setting value must be an integer",
			map[string]string{"key": key, "value": rawValue})
	}

	switch key {
	case SettingMinTime:
		settings.MinTime = clamp(value, limits, key)
	case SettingMaxTime:
		settings.MaxTime = clamp(value, limits, key)
	case SettingThreads:
		settings.Threads = clamp(value, limits, key)
	case SettingDepth:
		settings.Depth = clamp(value, limits, key)
	case SettingRAMHash:
		settings.RAMHash = clamp(value, limits, key)
	case SettingSkillLevel:
		settings.SkillLevel = clamp(value, limits, key)
	case SettingElo:
		settings.Elo = clamp(value, limits, key)
	case SettingSize:
		settings.Size = clamp(value, limits, key)
	default:
		return apperrors.WithMetadata(apperrors.CodeSettingsUnknownKey,
			"unknown settings key",
			map[string]string{"key": key})
	}
	return nil
}

// ClampSettings folds every numeric field of a record into the engine's
// advertised ranges. Settings updates run it against fresh limits so
// values stored under an older engine build come back into range.
func ClampSettings(settings storage.SettingsRecord, limits engine.Limits) storage.SettingsRecord {
	settings.MinTime = clamp(settings.MinTime, limits, SettingMinTime)
	settings.MaxTime = clamp(settings.MaxTime, limits, SettingMaxTime)
	settings.Threads = clamp(settings.Threads, limits, SettingThreads)
	settings.Depth = clamp(settings.Depth, limits, SettingDepth)
	settings.RAMHash = clamp(settings.RAMHash, limits, SettingRAMHash)
	settings.SkillLevel = clamp(settings.SkillLevel, limits, SettingSkillLevel)
	settings.Elo = clamp(settings.Elo, limits, SettingElo)
	settings.Size = clamp(settings.Size, limits, SettingSize)
	return settings
}

func clamp(value int, limits engine.Limits, key string) int {
	bound, ok := limits[key]
	if !ok {
		return value
	}
	if value < bound.Min {
		return bound.Min
	}
	if value > bound.Max {
		return bound.Max
	}
	return value
}
