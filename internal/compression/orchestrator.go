package compression

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"compactpdf/internal/domain/compression"
)

// Attempt is one serialized candidate.
type Attempt struct {
	OutputPath   string
	Size         int64
	Pages        int
	PageFailures int
	Results      []compression.PageTransformResult
	Techniques   map[string]int
	Warnings     []string
}

// TechniqueNames returns the techniques that changed something, in a stable order.
func (a *Attempt) TechniqueNames() []string {
	names := make([]string, 0, len(a.Techniques))
	for name, n := range a.Techniques {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Orchestrator runs the pipeline over every page in order and serializes the result.
type Orchestrator struct {
	opener   compression.Opener
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(opener compression.Opener, pipeline *Pipeline, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{opener: opener, pipeline: pipeline, logger: logger}
}

// Run transforms doc page by page, saves it to outputPath and verifies the file.
// Page failures become warnings. Save or verification failures are transformation errors.
func (o *Orchestrator) Run(doc compression.Document, outputPath string, s Settings) (*Attempt, error) {
	caps := doc.Capabilities()
	pages := doc.Pages()
	attempt := &Attempt{
		OutputPath: outputPath,
		Pages:      len(pages),
		Techniques: map[string]int{},
	}

	st := newRunState()
	for _, page := range pages {
		res := o.transformPage(page, s, st)
		attempt.Results = append(attempt.Results, res)
		for name, n := range res.Techniques {
			attempt.Techniques[name] += n
		}
		if res.Unmodified {
			attempt.PageFailures++
			attempt.Warnings = append(attempt.Warnings, fmt.Sprintf("page %d left unmodified: %s", res.Page, res.Errors[0]))
		}
	}

	if n, err := o.stripDocumentMetadata(doc, s); err != nil {
		attempt.Warnings = append(attempt.Warnings, fmt.Sprintf("document metadata kept: %v", err))
	} else if n > 0 {
		attempt.Techniques[compression.TechniqueMetadataRemoval] += n
	}

	opts := compression.SaveOptions{CompressStreams: true}
	if !s.Safe {
		opts.DedupeObjects = caps.ObjectDedup && s.rank() >= compression.LevelBalanced.Rank()
		opts.RemoveUnused = caps.ObjectDedup
	}
	if err := doc.Save(outputPath, opts); err != nil {
		return nil, compression.NewTransformationError("save", outputPath, err)
	}

	size, err := o.verify(outputPath, len(pages))
	if err != nil {
		return nil, err
	}
	attempt.Size = size

	o.logger.Debug("Attempt serialized",
		"file", outputPath,
		"size", size,
		"pages", attempt.Pages,
		"page_failures", attempt.PageFailures,
		"techniques", attempt.TechniqueNames())
	return attempt, nil
}

func (o *Orchestrator) transformPage(page compression.Page, s Settings, st *runState) (res compression.PageTransformResult) {
	nr := 0
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("Page transformation panicked", "page", nr, "error", r)
			res = compression.PageTransformResult{
				Page:       nr,
				Errors:     []string{fmt.Sprintf("panic: %v", r)},
				Unmodified: true,
			}
		}
	}()
	nr = page.Number()
	return o.pipeline.Transform(page, s, st)
}

func (o *Orchestrator) stripDocumentMetadata(doc compression.Document, s Settings) (int, error) {
	if !s.enabled(compression.TechniqueMetadataRemoval) || !(s.Profile.StripMetadata || s.StripAll) {
		return 0, nil
	}
	keep := []string{"Title", "Author", "Subject"}
	dropXMP := false
	if s.rank() >= compression.LevelAggressive.Rank() {
		keep = []string{"Title"}
		dropXMP = true
	}
	return doc.StripMetadata(keep, dropXMP)
}

// verify checks that the saved file exists, is non-empty, reopens and kept every page.
func (o *Orchestrator) verify(path string, pages int) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, compression.NewTransformationError("verify", path, err)
	}
	if info.Size() == 0 {
		return 0, compression.NewTransformationError("verify", path, fmt.Errorf("output is empty"))
	}

	doc, err := o.opener.Open(path)
	if err != nil {
		return 0, compression.NewTransformationError("verify", path, err)
	}
	defer doc.Close()

	if got := len(doc.Pages()); got != pages {
		return 0, compression.NewTransformationError("verify", path, fmt.Errorf("page count changed from %d to %d", pages, got))
	}
	return info.Size(), nil
}
