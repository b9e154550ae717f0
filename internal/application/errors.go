package application

import (
	"errors"
	"fmt"
)

// Application error types
var (
	ErrNoFilesProvided         = errors.New("no files provided for compression")
	ErrInvalidCompressionLevel = errors.New("invalid compression level")
	ErrPreferencesLoad         = errors.New("failed to load preferences")
	ErrFileNotFound            = errors.New("file not found")
	ErrBackupNotFound          = errors.New("backup not found")
)

// PreferencesError represents preferences-related errors
type PreferencesError struct {
	Operation string
	Err       error
}

func (e *PreferencesError) Error() string {
	return fmt.Sprintf("preferences %s failed: %v", e.Operation, e.Err)
}

func (e *PreferencesError) Unwrap() error {
	return e.Err
}

// NewPreferencesError creates a new preferences error
func NewPreferencesError(operation string, err error) *PreferencesError {
	return &PreferencesError{
		Operation: operation,
		Err:       err,
	}
}
