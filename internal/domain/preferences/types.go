package preferences

// Repository persists the single preferences record.
type Repository interface {
	GetPreferences() (*UserPreferencesData, error)
	UpdatePreferences(data map[string]any) error
}

// UserPreferencesData holds the settings a user can change between runs.
type UserPreferencesData struct {
	DefaultCompressionLevel string   `json:"default_compression_level"`
	DefaultOutputFolder     string   `json:"default_output_folder"`
	CreateBackups           bool     `json:"create_backups"`
	UseCache                bool     `json:"use_cache"`
	TechniqueOverride       []string `json:"technique_override,omitempty"`
}
