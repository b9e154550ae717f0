// Package application is the facade the command line drives: it owns the database,
// the dependency container and the per-run decisions taken from user preferences.
package application

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"compactpdf/internal/common"
	"compactpdf/internal/config"
	"compactpdf/internal/container"
	"compactpdf/internal/database"
)

type App struct {
	ctx       context.Context
	config    *config.Config
	db        *gorm.DB
	container *container.Container
}

// New opens the database and wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		ctx:       ctx,
		config:    cfg,
		db:        db,
		container: container.New(cfg, db),
	}

	a.container.Logger().Debug("Application initialized",
		"working_directory", cfg.WorkingDir,
		"database_path", cfg.DatabasePath,
		"ghostscript_available", a.container.Ghostscript().IsAvailable())
	return a, nil
}

// Close flushes metrics and releases the database.
func (a *App) Close() error {
	if err := a.FlushMetrics(); err != nil {
		a.container.Logger().Warn("Failed to write metrics", "error", err)
	}
	return database.Close(a.db)
}

// AppStatus describes the runtime environment.
type AppStatus struct {
	Version              string `json:"version"`
	WorkingDirectory     string `json:"working_directory"`
	DatabasePath         string `json:"database_path"`
	GhostscriptPath      string `json:"ghostscript_path,omitempty"`
	GhostscriptAvailable bool   `json:"ghostscript_available"`
	Workers              int    `json:"workers"`
}

// GetAppStatus reports where the application keeps its state.
func (a *App) GetAppStatus() AppStatus {
	gs := a.container.Ghostscript()
	status := AppStatus{
		Version:              common.EngineVersion,
		WorkingDirectory:     a.config.WorkingDir,
		DatabasePath:         a.config.DatabasePath,
		GhostscriptAvailable: gs.IsAvailable(),
		Workers:              a.container.WorkerPool(nil, 0).Workers(),
	}
	if gs.IsAvailable() {
		status.GhostscriptPath = gs.Path()
	}
	return status
}
