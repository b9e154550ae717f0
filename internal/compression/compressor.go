package compression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"compactpdf/internal/common"
	"compactpdf/internal/domain/compression"
)

// Profiler builds a DocumentProfile from a file.
type Profiler interface {
	Analyze(path string) (*compression.DocumentProfile, error)
}

// Recommender turns a profile into plans.
type Recommender interface {
	Recommend(profile compression.DocumentProfile) compression.Recommendations
	Resolve(profile compression.DocumentProfile, names []string) (compression.CompressionPlan, []string)
}

// Observer is notified of every finished outcome.
type Observer interface {
	Observe(outcome compression.CompressionOutcome)
}

// Request is one caller-facing compression request.
type Request struct {
	InputPath  string
	OutputPath string
	Level      compression.Level
	// Techniques overrides the recommended plan when non-empty.
	Techniques []string
}

// Option configures a Compressor.
type Option func(*Compressor)

func WithCache(cache compression.Cache) Option {
	return func(c *Compressor) { c.cache = cache }
}

func WithBackup(backup compression.Backup) Option {
	return func(c *Compressor) { c.backup = backup }
}

func WithAnalytics(analytics compression.Analytics) Option {
	return func(c *Compressor) { c.analytics = analytics }
}

func WithObserver(observer Observer) Option {
	return func(c *Compressor) { c.observer = observer }
}

// WithOutputDir places default outputs in dir instead of next to the input.
func WithOutputDir(dir string) Option {
	return func(c *Compressor) { c.outputDir = dir }
}

// Compressor is the entry point for compressing one document.
type Compressor struct {
	analyzer    Profiler
	recommender Recommender
	controller  *Controller
	cache       compression.Cache
	backup      compression.Backup
	analytics   compression.Analytics
	observer    Observer
	outputDir   string
	logger      *slog.Logger
}

// NewCompressor creates a new compressor instance
func NewCompressor(analyzer Profiler, recommender Recommender, controller *Controller, logger *slog.Logger, opts ...Option) *Compressor {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compressor{
		analyzer:    analyzer,
		recommender: recommender,
		controller:  controller,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze profiles a document and returns the recommendations for it.
func (c *Compressor) Analyze(path string) (*compression.DocumentProfile, compression.Recommendations, error) {
	profile, err := c.analyzer.Analyze(path)
	if err != nil {
		return nil, compression.Recommendations{}, err
	}
	return profile, c.recommender.Recommend(*profile), nil
}

// Compress runs one document end to end. The outcome is always fully populated.
func (c *Compressor) Compress(ctx context.Context, req Request) compression.CompressionOutcome {
	start := time.Now()
	level := req.Level
	if level == "" {
		level = compression.DefaultLevel
	}
	in := OutcomeInput{
		RunID:      common.GenerateUUID(),
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Level:      level,
	}
	if in.OutputPath == "" {
		in.OutputPath = common.DefaultOutputPath(req.InputPath, c.outputDir)
	}

	info, err := os.Stat(req.InputPath)
	if err == nil && info.IsDir() {
		err = errors.New("input is a directory")
	}
	if err != nil {
		return c.finish(ctx, start, in, compression.NewIOError("stat", req.InputPath, err))
	}
	in.OriginalSize = info.Size()

	profile, err := c.analyzer.Analyze(req.InputPath)
	if err != nil {
		return c.finish(ctx, start, in, err)
	}
	in.Warnings = append(in.Warnings, profile.Warnings...)

	var plan compression.CompressionPlan
	if len(req.Techniques) > 0 {
		var warnings []string
		plan, warnings = c.recommender.Resolve(*profile, req.Techniques)
		in.Warnings = append(in.Warnings, warnings...)
	} else {
		recs := c.recommender.Recommend(*profile)
		plan = recs.PlanFor(level)
		in.Warnings = append(in.Warnings, recs.Warnings...)
	}

	if common.SamePath(req.InputPath, in.OutputPath) && c.backup != nil {
		id, err := c.backup.CreateBackup(ctx, req.InputPath)
		if err != nil {
			return c.finish(ctx, start, in, compression.NewIOError("backup", req.InputPath, err))
		}
		in.BackupID = id
	}

	fingerprint := Fingerprint(req.InputPath, info.Size(), info.ModTime(), level, plan)
	if out, ok := c.fromCache(ctx, fingerprint, in); ok {
		return c.finish(ctx, start, out, nil)
	}

	res, err := c.controller.Execute(ctx, Job{
		InputPath:  req.InputPath,
		OutputPath: in.OutputPath,
		Profile:    profile,
		Plan:       plan,
		Level:      level,
	})
	if err != nil {
		return c.finish(ctx, start, in, err)
	}

	in.FinalSize = res.FinalSize
	in.Techniques = res.Techniques
	in.Warnings = append(in.Warnings, res.Warnings...)
	in.Path = res.Path
	in.ThresholdMet = res.ThresholdMet
	in.Escalated = res.Escalated
	in.PagesProcessed = res.PagesProcessed
	in.PageFailures = res.PageFailures

	if res.FinalSize < res.OriginalSize {
		c.toCache(ctx, fingerprint, in)
	}
	return c.finish(ctx, start, in, nil)
}

func (c *Compressor) fromCache(ctx context.Context, fingerprint string, in OutcomeInput) (OutcomeInput, bool) {
	if c.cache == nil {
		return in, false
	}
	hit, err := c.cache.Get(ctx, fingerprint)
	if err != nil {
		c.logger.Warn("Cache lookup failed", "file", in.InputPath, "error", err)
		return in, false
	}
	if hit == nil || int64(len(hit.Data)) >= in.OriginalSize {
		return in, false
	}
	if err := common.WriteFileAtomic(in.OutputPath, hit.Data); err != nil {
		c.logger.Warn("Cached result not written", "file", in.OutputPath, "error", err)
		return in, false
	}

	in.FinalSize = int64(len(hit.Data))
	in.Techniques = append([]string(nil), hit.Techniques...)
	in.Path = compression.PathCache
	in.ThresholdMet = true
	c.logger.Debug("Cache hit", "file", in.InputPath, "fingerprint", fingerprint)
	return in, true
}

func (c *Compressor) toCache(ctx context.Context, fingerprint string, in OutcomeInput) {
	if c.cache == nil {
		return
	}
	data, err := os.ReadFile(in.OutputPath)
	if err != nil {
		c.logger.Warn("Output not cached", "file", in.OutputPath, "error", err)
		return
	}
	ratio := 1 - float64(in.FinalSize)/float64(in.OriginalSize)
	if err := c.cache.Put(ctx, fingerprint, data, ratio, in.Techniques); err != nil {
		c.logger.Warn("Output not cached", "file", in.OutputPath, "error", err)
	}
}

func (c *Compressor) finish(ctx context.Context, start time.Time, in OutcomeInput, runErr error) compression.CompressionOutcome {
	in.Elapsed = time.Since(start)

	var out compression.CompressionOutcome
	if runErr != nil {
		out = FailedOutcome(in, runErr)
		c.logger.Error("Compression failed", "file", in.InputPath, "error", runErr)
	} else {
		out = BuildOutcome(in)
	}

	if c.analytics != nil {
		if err := c.analytics.Record(ctx, out); err != nil {
			c.logger.Warn("Analytics not recorded", "file", in.InputPath, "error", err)
		}
	}
	if c.observer != nil {
		c.observer.Observe(out)
	}
	return out
}

// Fingerprint identifies a file version together with the effective configuration.
func Fingerprint(path string, size int64, modTime time.Time, level compression.Level, plan compression.CompressionPlan) string {
	d := xxhash.New()
	for _, part := range []string{
		path,
		strconv.FormatInt(size, 10),
		strconv.FormatInt(modTime.UnixNano(), 10),
		string(level),
		strings.Join(plan.Techniques, ","),
		common.EngineVersion,
	} {
		_, _ = d.WriteString(part)
		_, _ = d.WriteString("\x00")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
