package application

import (
	"compactpdf/internal/domain/preferences"
)

func (a *App) GetPreferences() (*preferences.UserPreferencesData, error) {
	prefs, err := a.container.GetPreferencesRepository().GetPreferences()
	if err != nil {
		return nil, NewPreferencesError("get", err)
	}
	return prefs, nil
}

func (a *App) UpdatePreferences(data map[string]any) error {
	if err := a.container.GetPreferencesRepository().UpdatePreferences(data); err != nil {
		return NewPreferencesError("update", err)
	}
	return nil
}
