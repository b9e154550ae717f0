package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"compactpdf/internal/common"
	"compactpdf/internal/models"
)

// BackupService copies files aside before they are overwritten and keeps at most keep copies.
type BackupService struct {
	db     *gorm.DB
	dir    string
	keep   int
	logger *slog.Logger
}

// NewBackupService creates a backup service storing copies under dir. keep <= 0 keeps everything.
func NewBackupService(db *gorm.DB, dir string, keep int, logger *slog.Logger) *BackupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupService{db: db, dir: dir, keep: keep, logger: logger}
}

// CreateBackup copies path into the backup directory and returns the backup ID.
func (s *BackupService) CreateBackup(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	id := common.GenerateUUID()
	dst := filepath.Join(s.dir, id+"_"+filepath.Base(path))
	if err := common.CopyFile(path, dst); err != nil {
		return "", fmt.Errorf("failed to copy %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	record := models.BackupRecord{
		ID:           id,
		OriginalPath: abs,
		BackupPath:   dst,
		Size:         info.Size(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		os.Remove(dst)
		return "", err
	}

	s.logger.Info("Backup created", "id", id, "file", path)
	if err := s.prune(ctx); err != nil {
		s.logger.Warn("Failed to prune backups", "error", err)
	}
	return id, nil
}

// Restore copies backup id onto targetPath, or onto the original path when targetPath is empty.
// An unknown id reports false with no error.
func (s *BackupService) Restore(ctx context.Context, backupID, targetPath string) (bool, error) {
	var record models.BackupRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", backupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if targetPath == "" {
		targetPath = record.OriginalPath
	}
	if err := common.CopyFile(record.BackupPath, targetPath); err != nil {
		return false, fmt.Errorf("failed to restore backup %s: %w", backupID, err)
	}

	s.logger.Info("Backup restored", "id", backupID, "file", targetPath)
	return true, nil
}

// List returns every backup, newest first.
func (s *BackupService) List(ctx context.Context) ([]models.BackupRecord, error) {
	var records []models.BackupRecord
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error
	return records, err
}

func (s *BackupService) prune(ctx context.Context) error {
	if s.keep <= 0 {
		return nil
	}

	records, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(records) <= s.keep {
		return nil
	}
	for _, r := range records[s.keep:] {
		if err := os.Remove(r.BackupPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := s.db.WithContext(ctx).Delete(&r).Error; err != nil {
			return err
		}
	}
	return nil
}
