package services

import (
	"context"

	"gorm.io/gorm"

	"compactpdf/internal/domain/compression"
	"compactpdf/internal/domain/statistics"
	"compactpdf/internal/models"
)

// AnalyticsService records finished runs and aggregates them.
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// Record stores one outcome.
func (s *AnalyticsService) Record(ctx context.Context, outcome compression.CompressionOutcome) error {
	return s.db.WithContext(ctx).Create(models.NewCompressionRecord(outcome)).Error
}

// Recent returns up to limit records, newest first.
func (s *AnalyticsService) Recent(ctx context.Context, limit int) ([]models.CompressionRecord, error) {
	var records []models.CompressionRecord
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// Summary aggregates every recorded run. Ratios and byte totals cover successful runs only.
func (s *AnalyticsService) Summary(ctx context.Context) (*statistics.Summary, error) {
	summary := &statistics.Summary{
		ByLevel:        map[string]int64{},
		ByPath:         map[string]int64{},
		TechniqueUsage: map[string]int64{},
	}

	var records []models.CompressionRecord
	err := s.db.WithContext(ctx).FindInBatches(&records, 500, func(tx *gorm.DB, batch int) error {
		for _, r := range records {
			accumulate(summary, r)
		}
		return nil
	}).Error
	if err != nil {
		return nil, err
	}

	if summary.SuccessfulRuns > 0 {
		summary.AverageRatio /= float64(summary.SuccessfulRuns)
	}
	return summary, nil
}

func accumulate(summary *statistics.Summary, r models.CompressionRecord) {
	summary.TotalRuns++
	summary.ByLevel[r.Level]++
	if !r.Success {
		summary.FailedRuns++
		return
	}

	summary.SuccessfulRuns++
	summary.ByPath[r.Path]++
	summary.TotalOriginalBytes += r.OriginalSize
	summary.TotalFinalBytes += r.FinalSize
	summary.TotalDataSaved += r.SpaceSaved
	summary.AverageRatio += r.Ratio
	if r.Escalated {
		summary.Escalations++
	}
	for _, t := range r.TechniqueList() {
		summary.TechniqueUsage[t]++
	}
}
