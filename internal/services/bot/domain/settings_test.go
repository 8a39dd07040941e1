package domain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
	"github.com/k1rl3s/chessbot/internal/services/bot/engine"
	"github.com/k1rl3s/chessbot/internal/services/bot/storage"
)

func testLimits() engine.Limits {
	return engine.Limits{
		SettingDepth: {Min: 1, Max: 20},
		SettingElo:   {Min: 100, Max: 3000},
		SettingSize:  {Min: 100, Max: 1200},
	}
}

func TestApplySettingClampsIntoRange(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  int
		read  func(storage.SettingsRecord) int
	}{
		{"below minimum", SettingDepth, "0", 1, func(s storage.SettingsRecord) int { return s.Depth }},
		{"above maximum", SettingElo, "9000", 3000, func(s storage.SettingsRecord) int { return s.Elo }},
		{"inside range", SettingSize, "800", 800, func(s storage.SettingsRecord) int { return s.Size }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var settings storage.SettingsRecord
			if err := ApplySetting(&settings, tc.key, tc.value, testLimits()); err != nil {
				t.Fatalf("apply %s: %v", tc.key, err)
			}
			if got := tc.read(settings); got != tc.want {
				t.Fatalf("%s = %d, want %d", tc.key, got, tc.want)
			}
		})
	}
}

func TestApplySettingRejectsUnknownKey(t *testing.T) {
	var settings storage.SettingsRecord
	err := ApplySetting(&settings, "pondering", "1", testLimits())
	if !errors.Is(err, apperrors.New(apperrors.CodeSettingsUnknownKey, "")) {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestApplySettingRejectsBadValue(t *testing.T) {
	var settings storage.SettingsRecord
	err := ApplySetting(&settings, SettingDepth, "deep", testLimits())
	if !errors.Is(err, apperrors.New(apperrors.CodeSettingsInvalidValue, "")) {
		t.Fatalf("expected invalid value error, got %v", err)
	}
	if settings.Depth != 0 {
		t.Fatalf("record changed on rejected value: depth = %d", settings.Depth)
	}
}

func TestApplySettingNonNumericKeys(t *testing.T) {
	var settings storage.SettingsRecord
	if err := ApplySetting(&settings, SettingColors, "blue", testLimits()); err != nil {
		t.Fatalf("colors: %v", err)
	}
	if settings.Colors != "blue" {
		t.Fatalf("colors = %q, want blue", settings.Colors)
	}
	if err := ApplySetting(&settings, SettingWithCoords, "true", testLimits()); err != nil {
		t.Fatalf("with_coords: %v", err)
	}
	if !settings.WithCoords {
		t.Fatal("with_coords not applied")
	}
}

func TestClampSettingsFoldsStoredValues(t *testing.T) {
	settings := storage.SettingsRecord{Depth: 99, Elo: 50, Size: 800}
	clamped := ClampSettings(settings, testLimits())
	if clamped.Depth != 20 {
		t.Fatalf("depth = %d, want 20", clamped.Depth)
	}
	if clamped.Elo != 100 {
		t.Fatalf("elo = %d, want 100", clamped.Elo)
	}
	if clamped.Size != 800 {
		t.Fatalf("size = %d, want 800", clamped.Size)
	}
}

func TestDefaultSettingsCarriesEngineDefaults(t *testing.T) {
	now := time.Now()
	defaults := engine.Defaults{Depth: 12, Elo: 1800, WithCoords: true, Size: 800, Colors: "standard"}
	settings := DefaultSettings("user-1", defaults, now)
	if settings.UserID != "user-1" {
		t.Fatalf("user id = %q", settings.UserID)
	}
	if settings.Depth != 12 || settings.Elo != 1800 || !settings.WithCoords {
		t.Fatalf("unexpected settings: %+v", settings)
	}
	if !settings.ModifiedAt.Equal(now) {
		t.Fatalf("modified at = %v, want %v", settings.ModifiedAt, now)
	}
}

func TestEngineParamsMirrorsRecord(t *testing.T) {
	settings := storage.SettingsRecord{
		MinTime: 1, MaxTime: 5, Threads: 2, Depth: 10,
		RAMHash: 64, SkillLevel: 15, Elo: 2000,
		Colors: "wood", WithCoords: true, Size: 600,
	}
	params := EngineParams(settings)
	if params.Depth != 10 || params.Elo != 2000 || params.Colors != "wood" || !params.WithCoords {
		t.Fatalf("unexpected params: %+v", params)
	}
}
