package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"compactpdf/internal/domain/compression"
	"compactpdf/internal/models"
)

// CacheService stores compressed outputs in sqlite, evicting the least recently used
// entries beyond maxEntries.
type CacheService struct {
	db         *gorm.DB
	maxEntries int
	logger     *slog.Logger
}

// NewCacheService creates a cache. maxEntries <= 0 disables eviction.
func NewCacheService(db *gorm.DB, maxEntries int, logger *slog.Logger) *CacheService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheService{db: db, maxEntries: maxEntries, logger: logger}
}

// Get returns the entry for fingerprint, or nil when there is none.
func (s *CacheService) Get(ctx context.Context, fingerprint string) (*compression.CacheHit, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).First(&entry, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&entry).Updates(map[string]any{
		"hits":         gorm.Expr("hits + 1"),
		"last_used_at": time.Now(),
	}).Error
	if err != nil {
		s.logger.Warn("Failed to touch cache entry", "fingerprint", fingerprint, "error", err)
	}

	return &compression.CacheHit{
		Data:       entry.Data,
		Ratio:      entry.Ratio,
		Techniques: entry.TechniqueList(),
		CreatedAt:  entry.CreatedAt,
	}, nil
}

// Put stores or replaces the entry for fingerprint.
func (s *CacheService) Put(ctx context.Context, fingerprint string, data []byte, ratio float64, techniques []string) error {
	now := time.Now()
	entry := models.CacheEntry{
		Fingerprint: fingerprint,
		Data:        data,
		Size:        int64(len(data)),
		Ratio:       ratio,
		Techniques:  strings.Join(techniques, ","),
		CreatedAt:   now,
		LastUsedAt:  now,
	}
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return err
	}
	return s.evict(ctx)
}

func (s *CacheService) evict(ctx context.Context) error {
	if s.maxEntries <= 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.CacheEntry{}).Count(&count).Error; err != nil {
		return err
	}
	excess := int(count) - s.maxEntries
	if excess <= 0 {
		return nil
	}

	var stale []string
	err := s.db.WithContext(ctx).Model(&models.CacheEntry{}).
		Order("last_used_at ASC").
		Limit(excess).
		Pluck("fingerprint", &stale).Error
	if err != nil {
		return err
	}

	s.logger.Debug("Evicting cache entries", "count", len(stale))
	return s.db.WithContext(ctx).Where("fingerprint IN ?", stale).Delete(&models.CacheEntry{}).Error
}

// Len returns the number of stored entries.
func (s *CacheService) Len(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.CacheEntry{}).Count(&count).Error
	return count, err
}

// Clear removes every entry.
func (s *CacheService) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&models.CacheEntry{}).Error
}
