package models

import (
	"strings"
	"time"

	"compactpdf/internal/domain/compression"
)

// CacheEntry is a compressed output stored under its input fingerprint.
type CacheEntry struct {
	Fingerprint string    `gorm:"primaryKey;size:32" json:"fingerprint"`
	Data        []byte    `json:"-"`
	Size        int64     `json:"size"`
	Ratio       float64   `json:"ratio"`
	Techniques  string    `gorm:"type:text" json:"techniques"`
	Hits        int       `json:"hits"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `gorm:"index" json:"last_used_at"`
}

// TechniqueList splits the stored technique names.
func (c *CacheEntry) TechniqueList() []string {
	return splitList(c.Techniques)
}

// CompressionRecord is one finished run kept for statistics.
type CompressionRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          string    `gorm:"uniqueIndex;size:36" json:"run_id"`
	InputPath      string    `json:"input_path"`
	OutputPath     string    `json:"output_path"`
	Level          string    `gorm:"index;size:16" json:"level"`
	Path           string    `gorm:"size:16" json:"path"`
	Success        bool      `json:"success"`
	OriginalSize   int64     `json:"original_size"`
	FinalSize      int64     `json:"final_size"`
	SpaceSaved     int64     `json:"space_saved"`
	Ratio          float64   `json:"ratio"`
	ElapsedMillis  int64     `json:"elapsed_ms"`
	Techniques     string    `gorm:"type:text" json:"techniques"`
	Warnings       int       `json:"warnings"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	ThresholdMet   bool      `json:"threshold_met"`
	Escalated      bool      `json:"escalated"`
	PagesProcessed int       `json:"pages_processed"`
	PageFailures   int       `json:"page_failures"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// NewCompressionRecord flattens an outcome into a row.
func NewCompressionRecord(o compression.CompressionOutcome) *CompressionRecord {
	return &CompressionRecord{
		RunID:          o.RunID,
		InputPath:      o.InputPath,
		OutputPath:     o.OutputPath,
		Level:          string(o.Level),
		Path:           o.Path,
		Success:        o.Success,
		OriginalSize:   o.OriginalSize,
		FinalSize:      o.FinalSize,
		SpaceSaved:     o.SpaceSaved,
		Ratio:          o.Ratio,
		ElapsedMillis:  o.Elapsed.Milliseconds(),
		Techniques:     strings.Join(o.TechniquesUsed, ","),
		Warnings:       len(o.Warnings),
		Error:          o.Error,
		ThresholdMet:   o.ThresholdMet,
		Escalated:      o.Escalated,
		PagesProcessed: o.PagesProcessed,
		PageFailures:   o.PageFailures,
	}
}

// TechniqueList splits the stored technique names.
func (r *CompressionRecord) TechniqueList() []string {
	return splitList(r.Techniques)
}

// BackupRecord points at a copy taken before a file was overwritten.
type BackupRecord struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	OriginalPath string    `gorm:"index" json:"original_path"`
	BackupPath   string    `json:"backup_path"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// All lists every model for migration.
func All() []any {
	return []any{&UserPreferences{}, &CacheEntry{}, &CompressionRecord{}, &BackupRecord{}}
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
