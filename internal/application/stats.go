package application

import (
	"fmt"

	"compactpdf/internal/domain/statistics"
	"compactpdf/internal/models"
)

// GetStats aggregates every recorded run.
func (a *App) GetStats() (*statistics.Summary, error) {
	return a.container.GetStatisticsService().Summary(a.ctx)
}

// ListBackups returns every stored backup, newest first.
func (a *App) ListBackups() ([]models.BackupRecord, error) {
	return a.container.Backups().List(a.ctx)
}

// RestoreBackup copies a backup back over its original file, or onto target when given.
func (a *App) RestoreBackup(id, target string) error {
	ok, err := a.container.Backups().Restore(a.ctx, id, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	return nil
}

// ClearCache drops every cached result.
func (a *App) ClearCache() error {
	return a.container.Cache().Clear(a.ctx)
}

// FlushMetrics writes the run metrics to the configured textfile, if any.
func (a *App) FlushMetrics() error {
	if a.config.Metrics.Textfile == "" {
		return nil
	}
	return a.container.Metrics().WriteTextfile(a.config.Metrics.Textfile)
}
