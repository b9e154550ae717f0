package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"compactpdf/internal/domain/compression"
	"compactpdf/internal/domain/preferences"
	"compactpdf/internal/models"
)

// PreferencesService handles user preferences operations
type PreferencesService struct {
	db *gorm.DB
}

// NewPreferencesService creates a new preferences service
func NewPreferencesService(db *gorm.DB) *PreferencesService {
	return &PreferencesService{db: db}
}

// GetPreferences gets the current user preferences
func (s *PreferencesService) GetPreferences() (*preferences.UserPreferencesData, error) {
	prefs, err := models.GetOrCreatePreferences(s.db)
	if err != nil {
		return nil, err
	}

	prefsData := prefs.GetPreferences()
	return &prefsData, nil
}

// UpdatePreferences applies the known keys in data. Values of the wrong type are ignored;
// an unknown compression level is an error.
func (s *PreferencesService) UpdatePreferences(data map[string]any) error {
	prefs, err := models.GetOrCreatePreferences(s.db)
	if err != nil {
		return err
	}

	currentPrefs := prefs.GetPreferences()

	if val, ok := data["default_compression_level"]; ok {
		if level, ok := val.(string); ok {
			parsed, err := compression.ParseLevel(level)
			if err != nil {
				return err
			}
			currentPrefs.DefaultCompressionLevel = string(parsed)
		}
	}

	if val, ok := data["default_output_folder"]; ok {
		if folder, ok := val.(string); ok {
			currentPrefs.DefaultOutputFolder = folder
		}
	}

	if val, ok := data["create_backups"]; ok {
		if create, ok := val.(bool); ok {
			currentPrefs.CreateBackups = create
		}
	}

	if val, ok := data["use_cache"]; ok {
		if use, ok := val.(bool); ok {
			currentPrefs.UseCache = use
		}
	}

	if val, ok := data["technique_override"]; ok {
		if names, ok := techniqueList(val); ok {
			currentPrefs.TechniqueOverride = names
		}
	}

	if err := prefs.SetPreferences(currentPrefs); err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return s.db.Save(prefs).Error
}

// techniqueList accepts a comma separated string, a []string or a decoded JSON array.
func techniqueList(val any) ([]string, bool) {
	var out []string
	switch v := val.(type) {
	case string:
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, name)
		}
	default:
		return nil, false
	}
	return out, true
}
