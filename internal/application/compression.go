package application

import (
	"fmt"

	"compactpdf/internal/app/concurrency"
	"compactpdf/internal/common"
	engine "compactpdf/internal/compression"
	"compactpdf/internal/domain/compression"
)

// CompressionRequest describes one compress or batch invocation.
type CompressionRequest struct {
	Files            []string
	CompressionLevel string
	// OutputPath is honored for single-file requests only.
	OutputPath string
	// OutputDir overrides the preferred output folder.
	OutputDir  string
	Techniques []string
	// Workers overrides the configured batch concurrency when positive.
	Workers int
}

// AnalysisReport is a profile together with its recommendations.
type AnalysisReport struct {
	Profile         *compression.DocumentProfile `json:"profile"`
	Recommendations compression.Recommendations  `json:"recommendations"`
}

// CompressPDF compresses a single file.
func (a *App) CompressPDF(request CompressionRequest) (compression.CompressionOutcome, error) {
	if len(request.Files) == 0 {
		return compression.CompressionOutcome{}, ErrNoFilesProvided
	}

	reqs, compressor, err := a.prepare(request)
	if err != nil {
		return compression.CompressionOutcome{}, err
	}
	if request.OutputPath != "" {
		reqs[0].OutputPath = request.OutputPath
	}
	return compressor.Compress(a.ctx, reqs[0]), nil
}

// CompressBatch compresses every file concurrently. Directories are expanded to the PDFs they hold.
func (a *App) CompressBatch(request CompressionRequest) (concurrency.BatchResult, error) {
	files, err := CollectPDFs(request.Files)
	if err != nil {
		return concurrency.BatchResult{}, err
	}
	if len(files) == 0 {
		return concurrency.BatchResult{}, ErrNoFilesProvided
	}
	request.Files = files

	reqs, compressor, err := a.prepare(request)
	if err != nil {
		return concurrency.BatchResult{}, err
	}

	pool := a.container.WorkerPool(compressor.Compress, request.Workers)
	a.container.Logger().Info("Starting batch", "files", len(reqs), "workers", pool.Workers())
	return pool.ProcessBatch(a.ctx, reqs), nil
}

// Analyze profiles a file without writing anything.
func (a *App) Analyze(path string) (*AnalysisReport, error) {
	profile, recs, err := a.container.Compressor(nil).Analyze(path)
	if err != nil {
		return nil, err
	}
	return &AnalysisReport{Profile: profile, Recommendations: recs}, nil
}

// prepare resolves the level, output locations and technique override shared by every file.
func (a *App) prepare(request CompressionRequest) ([]engine.Request, *engine.Compressor, error) {
	prefs, err := a.container.GetPreferencesRepository().GetPreferences()
	if err != nil {
		return nil, nil, NewPreferencesError("load", fmt.Errorf("%w: %v", ErrPreferencesLoad, err))
	}

	level, err := a.resolveCompressionLevel(request.CompressionLevel, prefs.DefaultCompressionLevel)
	if err != nil {
		return nil, nil, err
	}

	techniques := request.Techniques
	if len(techniques) == 0 {
		techniques = prefs.TechniqueOverride
	}

	reqs := make([]engine.Request, len(request.Files))
	for i, file := range request.Files {
		reqs[i] = engine.Request{
			InputPath:  file,
			Level:      level,
			Techniques: techniques,
		}
		if request.OutputDir != "" {
			reqs[i].OutputPath = common.DefaultOutputPath(file, request.OutputDir)
		}
	}
	return reqs, a.container.Compressor(prefs), nil
}

// resolveCompressionLevel picks the request level, then the preferred level, then the configured one.
func (a *App) resolveCompressionLevel(requested, preferred string) (compression.Level, error) {
	for _, candidate := range []string{requested, preferred} {
		if candidate == "" {
			continue
		}
		level, err := compression.ParseLevel(candidate)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidCompressionLevel, candidate)
		}
		return level, nil
	}
	return a.config.CompressionLevel(), nil
}
