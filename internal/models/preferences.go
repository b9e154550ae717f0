package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"compactpdf/internal/common"
	"compactpdf/internal/domain/preferences"
)

// UserPreferences represents user preferences in the database
type UserPreferences struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PreferencesJSON string    `gorm:"type:text" json:"preferences_json"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultPreferences returns default preference values
func DefaultPreferences() preferences.UserPreferencesData {
	return preferences.UserPreferencesData{
		DefaultCompressionLevel: common.DefaultCompressionLevel,
		DefaultOutputFolder:     "",
		CreateBackups:           true,
		UseCache:                true,
	}
}

// GetPreferences parses the stored JSON, falling back to defaults when it is empty or corrupt.
func (up *UserPreferences) GetPreferences() preferences.UserPreferencesData {
	if up.PreferencesJSON == "" {
		return DefaultPreferences()
	}

	prefs := DefaultPreferences()
	if err := json.Unmarshal([]byte(up.PreferencesJSON), &prefs); err != nil {
		return DefaultPreferences()
	}
	return prefs
}

// SetPreferences sets the preferences data
func (up *UserPreferences) SetPreferences(prefs preferences.UserPreferencesData) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	up.PreferencesJSON = string(data)
	return nil
}

// GetOrCreatePreferences gets or creates the global preferences row (ID 1).
func GetOrCreatePreferences(db *gorm.DB) (*UserPreferences, error) {
	var prefs UserPreferences

	result := db.First(&prefs, 1)
	if result.Error == nil {
		return &prefs, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	prefs = UserPreferences{ID: 1}
	if err := prefs.SetPreferences(DefaultPreferences()); err != nil {
		return nil, err
	}
	if err := db.Create(&prefs).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}
