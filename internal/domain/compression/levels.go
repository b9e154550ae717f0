package compression

import (
	"fmt"
	"strings"
)

// Level selects how hard the engine works on a document.
type Level string

const (
	LevelMinimal    Level = "minimal"
	LevelBalanced   Level = "balanced"
	LevelAggressive Level = "aggressive"
)

const (
	DefaultLevel          = LevelBalanced
	MaxStreamStrength     = 9
	DefaultStreamStrength = 6
)

// Levels lists every level from gentlest to strongest.
func Levels() []Level {
	return []Level{LevelMinimal, LevelBalanced, LevelAggressive}
}

// ParseLevel accepts a level name, case-insensitively. An empty name yields the default.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultLevel, nil
	case LevelMinimal:
		return LevelMinimal, nil
	case LevelBalanced:
		return LevelBalanced, nil
	case LevelAggressive:
		return LevelAggressive, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Rank orders levels: minimal < balanced < aggressive.
func (l Level) Rank() int {
	switch l {
	case LevelMinimal:
		return 0
	case LevelAggressive:
		return 2
	default:
		return 1
	}
}

// LevelProfile holds the tuning knobs a level implies.
type LevelProfile struct {
	Level               Level   `json:"level"`
	ImageQuality        int     `json:"image_quality"`
	MaxDimension        int     `json:"max_dimension"`
	StreamStrength      int     `json:"stream_strength"`
	StripMetadata       bool    `json:"strip_metadata"`
	StripFonts          bool    `json:"strip_fonts"`
	StripAnnotations    bool    `json:"strip_annotations"`
	EscalationThreshold float64 `json:"escalation_threshold"`
}

// ProfileFor returns the fixed profile of a level. Unknown levels map to balanced.
func ProfileFor(level Level) LevelProfile {
	switch level {
	case LevelMinimal:
		return LevelProfile{
			Level:               LevelMinimal,
			ImageQuality:        95,
			MaxDimension:        2400,
			StreamStrength:      3,
			EscalationThreshold: 0.05,
		}
	case LevelAggressive:
		return LevelProfile{
			Level:               LevelAggressive,
			ImageQuality:        60,
			MaxDimension:        800,
			StreamStrength:      MaxStreamStrength,
			StripMetadata:       true,
			StripFonts:          true,
			StripAnnotations:    true,
			EscalationThreshold: 0.30,
		}
	default:
		return LevelProfile{
			Level:               LevelBalanced,
			ImageQuality:        80,
			MaxDimension:        1200,
			StreamStrength:      DefaultStreamStrength,
			StripMetadata:       true,
			StripFonts:          true,
			EscalationThreshold: 0.15,
		}
	}
}
