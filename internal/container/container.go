package container

import (
	"log/slog"

	"gorm.io/gorm"

	"compactpdf/internal/analysis"
	"compactpdf/internal/app/concurrency"
	"compactpdf/internal/codec"
	"compactpdf/internal/compression"
	"compactpdf/internal/config"
	preferencesDomain "compactpdf/internal/domain/preferences"
	statisticsDomain "compactpdf/internal/domain/statistics"
	"compactpdf/internal/metrics"
	"compactpdf/internal/pdfdoc"
	"compactpdf/internal/recommend"
	"compactpdf/internal/services"
)

// Container holds all dependencies for the application
type Container struct {
	config *config.Config
	db     *gorm.DB
	logger *slog.Logger

	// Engine
	analyzer    *analysis.Analyzer
	recommender *recommend.Engine
	controller  *compression.Controller
	ghostscript *compression.Ghostscript

	// Services
	preferencesRepo *services.PreferencesService
	cache           *services.CacheService
	backups         *services.BackupService
	analytics       *services.AnalyticsService
	metrics         *metrics.Metrics
}

// New creates a new dependency injection container
func New(cfg *config.Config, db *gorm.DB) *Container {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		config: cfg,
		db:     db,
		logger: logger,
	}

	c.initEngine()
	c.initServices()
	return c
}

// initEngine wires the analysis and compression stages around one pdfcpu opener.
func (c *Container) initEngine() {
	opener := pdfdoc.NewOpener(c.logger)
	flate := codec.NewFlate()

	c.analyzer = analysis.NewAnalyzer(opener, flate, c.logger, analysis.WithTextExtractor(pdfdoc.NewTextReader()))
	c.recommender = recommend.NewEngine(nil, c.logger)
	c.ghostscript = compression.NewGhostscript(c.config.GhostscriptPath, c.logger)

	pipeline := compression.NewPipeline(flate, codec.NewRaster(), c.logger)
	orchestrator := compression.NewOrchestrator(opener, pipeline, c.logger)
	c.controller = compression.NewController(opener, orchestrator, c.logger,
		compression.WithGhostscript(c.ghostscript),
		compression.WithWorkDir(c.config.WorkingDir),
	)
}

// initServices initializes all services with their dependencies
func (c *Container) initServices() {
	c.preferencesRepo = services.NewPreferencesService(c.db)
	c.cache = services.NewCacheService(c.db, c.config.Cache.MaxEntries, c.logger)
	c.backups = services.NewBackupService(c.db, c.config.Backup.Dir, c.config.Backup.Keep, c.logger)
	c.analytics = services.NewAnalyticsService(c.db)
	c.metrics = metrics.New()
}

// Compressor builds a compressor honoring both the configuration and the user's preferences.
// A nil prefs uses the configuration alone.
func (c *Container) Compressor(prefs *preferencesDomain.UserPreferencesData) *compression.Compressor {
	useCache := c.config.Cache.Enabled
	createBackups := c.config.Backup.Enabled
	outputDir := c.config.OutputDir
	if prefs != nil {
		useCache = useCache && prefs.UseCache
		createBackups = createBackups && prefs.CreateBackups
		if prefs.DefaultOutputFolder != "" {
			outputDir = prefs.DefaultOutputFolder
		}
	}

	opts := []compression.Option{
		compression.WithObserver(c.metrics),
		compression.WithOutputDir(outputDir),
	}
	if useCache {
		opts = append(opts, compression.WithCache(c.cache))
	}
	if createBackups {
		opts = append(opts, compression.WithBackup(c.backups))
	}
	if c.config.Analytics.Enabled {
		opts = append(opts, compression.WithAnalytics(c.analytics))
	}
	return compression.NewCompressor(c.analyzer, c.recommender, c.controller, c.logger, opts...)
}

// WorkerPool returns a pool running processor. workers <= 0 uses the configured count.
func (c *Container) WorkerPool(processor concurrency.ProcessorFunc, workers int) *concurrency.WorkerPool {
	if workers <= 0 {
		workers = c.config.Workers
	}
	return concurrency.NewWorkerPool(processor, workers, c.logger)
}

// GetPreferencesRepository returns the preferences repository
func (c *Container) GetPreferencesRepository() preferencesDomain.Repository {
	return c.preferencesRepo
}

// GetStatisticsService returns the statistics service
func (c *Container) GetStatisticsService() statisticsDomain.Service {
	return c.analytics
}

func (c *Container) Backups() *services.BackupService { return c.backups }
func (c *Container) Cache() *services.CacheService    { return c.cache }
func (c *Container) Metrics() *metrics.Metrics        { return c.metrics }

// Ghostscript returns the gs wrapper, or nil when gs is unavailable.
func (c *Container) Ghostscript() *compression.Ghostscript {
	return c.ghostscript
}

// GetConfig returns the application configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// Logger returns the application logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}
