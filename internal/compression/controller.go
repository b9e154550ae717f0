package compression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"compactpdf/internal/analysis"
	"compactpdf/internal/common"
	"compactpdf/internal/domain/compression"
)

const (
	specializedScale = 0.9
	ghostscriptDPI   = 72
)

type state int

const (
	stateAnalyzed state = iota
	statePlanSelected
	stateTransformed
	stateVerified
	stateEscalated
	stateFinalized
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateAnalyzed:
		return "analyzed"
	case statePlanSelected:
		return "plan_selected"
	case stateTransformed:
		return "transformed"
	case stateVerified:
		return "verified"
	case stateEscalated:
		return "escalated"
	case stateFinalized:
		return "finalized"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

type pass int

const (
	passNone pass = iota
	passEscalated
	passSpecialized
)

// Job is one document run handed to the controller.
type Job struct {
	InputPath  string
	OutputPath string
	Profile    *compression.DocumentProfile
	Plan       compression.CompressionPlan
	Level      compression.Level
}

// Result is what the controller settled on.
type Result struct {
	Path           string
	OriginalSize   int64
	FinalSize      int64
	Techniques     []string
	Warnings       []string
	ThresholdMet   bool
	Escalated      bool
	PagesProcessed int
	PageFailures   int
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClassifier replaces the specialized-pass classifier.
func WithClassifier(fn analysis.Classifier) ControllerOption {
	return func(c *Controller) {
		if fn != nil {
			c.classifier = fn
		}
	}
}

// WithGhostscript enables the gs rewrite during escalation.
func WithGhostscript(gs *Ghostscript) ControllerOption {
	return func(c *Controller) { c.ghostscript = gs }
}

// WithWorkDir sets where intermediate candidates are written.
func WithWorkDir(dir string) ControllerOption {
	return func(c *Controller) { c.workDir = dir }
}

// Controller drives one document through transform, verification, escalation and fallback.
type Controller struct {
	opener       compression.Opener
	orchestrator *Orchestrator
	classifier   analysis.Classifier
	ghostscript  *Ghostscript
	workDir      string
	logger       *slog.Logger
}

// NewController creates a new controller
func NewController(opener compression.Opener, orchestrator *Orchestrator, logger *slog.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		opener:       opener,
		orchestrator: orchestrator,
		classifier:   analysis.LooksLikeCertificate,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type candidate struct {
	path       string
	size       int64
	pages      int
	failures   int
	techniques map[string]int
	warnings   []string
	source     string
}

type run struct {
	job      Job
	level    compression.LevelProfile
	original int64
	dir      string

	best      *candidate
	last      *candidate
	pending   pass
	escalated int
	special   bool

	path         string
	thresholdMet bool
	warnings     []string
	err          error
}

func (r *run) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// Execute runs the state machine to completion. Only I/O failures are returned as errors.
func (c *Controller) Execute(ctx context.Context, job Job) (*Result, error) {
	info, err := os.Stat(job.InputPath)
	if err != nil {
		return nil, compression.NewIOError("stat", job.InputPath, err)
	}

	dir, err := os.MkdirTemp(c.workDir, "compactpdf-*")
	if err != nil {
		return nil, compression.NewIOError("workdir", c.workDir, err)
	}
	defer os.RemoveAll(dir)

	r := &run{
		job:      job,
		level:    compression.ProfileFor(job.Level),
		original: info.Size(),
		dir:      dir,
		path:     compression.PathStandard,
	}

	st := stateAnalyzed
	for st != stateFinalized && st != stateFailed {
		next := c.step(ctx, r, st)
		c.logger.Debug("Controller transition", "file", job.InputPath, "from", st, "to", next)
		st = next
	}
	if st == stateFinalized {
		st = c.finalize(r)
	}
	if st == stateFailed {
		return nil, r.err
	}

	res := &Result{
		Path:         r.path,
		OriginalSize: r.original,
		FinalSize:    r.original,
		Warnings:     r.warnings,
		ThresholdMet: r.thresholdMet,
		Escalated:    r.escalated > 0,
	}
	if r.path != compression.PathPassthrough && r.best != nil {
		res.FinalSize = r.best.size
		res.Techniques = orderedTechniques(job.Plan, r.best.techniques)
		res.PagesProcessed = r.best.pages
		res.PageFailures = r.best.failures
	}

	c.logger.Info("Compression finished",
		"file", job.InputPath,
		"path", res.Path,
		"original_size", res.OriginalSize,
		"final_size", res.FinalSize,
		"threshold_met", res.ThresholdMet,
		"escalated", res.Escalated)
	return res, nil
}

func (c *Controller) step(ctx context.Context, r *run, st state) state {
	switch st {
	case stateAnalyzed:
		if r.job.Profile != nil && r.job.Profile.Signed {
			err := compression.NewUnsupportedFeatureError("transform", r.job.InputPath, errors.New("document is digitally signed"))
			r.warn("%v; every technique skipped", err)
			r.path = compression.PathPassthrough
			return stateFinalized
		}
		return statePlanSelected

	case statePlanSelected:
		settings := Settings{Profile: r.level, Plan: r.job.Plan, Strength: r.level.StreamStrength}
		cand, err := c.attempt(r, r.job.InputPath, "standard", settings)
		if err != nil {
			r.warn("transformation failed, safe path used: %v", err)
			c.logger.Warn("Transformation failed, falling back", "file", r.job.InputPath, "error", err)
			c.safePath(r)
			return stateFinalized
		}
		r.last = cand
		return stateTransformed

	case stateTransformed:
		c.accept(r)
		return stateVerified

	case stateVerified:
		reduction := reductionOf(r.original, r.best)
		if reduction >= r.level.EscalationThreshold {
			r.thresholdMet = true
			return stateFinalized
		}
		if r.job.Level == compression.LevelAggressive && r.escalated == 0 {
			r.pending = passEscalated
			return stateEscalated
		}
		if !r.special && r.job.Profile != nil && c.classifier(*r.job.Profile) {
			r.pending = passSpecialized
			return stateEscalated
		}
		r.warn("escalation exhausted: reduction %.1f%% below %.1f%% threshold",
			reduction*100, r.level.EscalationThreshold*100)
		return stateFinalized

	case stateEscalated:
		switch r.pending {
		case passEscalated:
			r.escalated++
			r.last = c.escalate(ctx, r)
		case passSpecialized:
			r.special = true
			r.last = c.specialize(r)
		}
		r.pending = passNone
		return stateTransformed
	}

	r.err = fmt.Errorf("unexpected controller state %s", st)
	return stateFailed
}

// accept keeps the last candidate when it beats the best one so far.
func (c *Controller) accept(r *run) {
	cand := r.last
	r.last = nil
	if cand == nil {
		return
	}
	if r.best != nil && cand.size >= r.best.size {
		c.logger.Debug("Candidate rejected", "source", cand.source, "size", cand.size, "best", r.best.size)
		return
	}

	if r.best != nil {
		cand.techniques = mergeCounts(r.best.techniques, cand.techniques)
		switch cand.source {
		case "escalated", "ghostscript":
			r.path = compression.PathEscalated
		case "specialized":
			r.path = compression.PathSpecialized
		}
	}
	r.warnings = append(r.warnings, cand.warnings...)
	r.best = cand
}

func (c *Controller) attempt(r *run, input, source string, s Settings) (*candidate, error) {
	doc, err := c.opener.Open(input)
	if err != nil {
		return nil, compression.NewTransformationError("open", input, err)
	}
	defer doc.Close()

	out := filepath.Join(r.dir, source+".pdf")
	a, err := c.orchestrator.Run(doc, out, s)
	if err != nil {
		return nil, err
	}
	return &candidate{
		path:       out,
		size:       a.Size,
		pages:      a.Pages,
		failures:   a.PageFailures,
		techniques: a.Techniques,
		warnings:   a.Warnings,
		source:     source,
	}, nil
}

// escalate reruns the best candidate with everything stripped, then optionally through gs.
func (c *Controller) escalate(ctx context.Context, r *run) *candidate {
	if r.best == nil {
		return nil
	}
	aggressive := compression.ProfileFor(compression.LevelAggressive)
	settings := Settings{
		Profile:  aggressive,
		Plan:     r.job.Plan,
		Strength: compression.MaxStreamStrength,
		StripAll: true,
	}

	var out *candidate
	cand, err := c.attempt(r, r.best.path, "escalated", settings)
	if err != nil {
		r.warn("escalated pass failed: %v", err)
	} else if cand.size < r.best.size {
		out = cand
	}

	if c.ghostscript.IsAvailable() {
		src := r.best.path
		if out != nil {
			src = out.path
		}
		if gs := c.rewrite(ctx, r, src); gs != nil {
			if out == nil || gs.size < out.size {
				if out != nil {
					gs.techniques = mergeCounts(out.techniques, gs.techniques)
				}
				out = gs
			}
		}
	}
	return out
}

func (c *Controller) rewrite(ctx context.Context, r *run, src string) *candidate {
	dst := filepath.Join(r.dir, "ghostscript.pdf")
	if err := c.ghostscript.Rewrite(ctx, src, dst, ghostscriptDPI); err != nil {
		r.warn("ghostscript rewrite failed: %v", err)
		return nil
	}
	size, err := c.orchestrator.verify(dst, r.best.pages)
	if err != nil {
		r.warn("ghostscript output rejected: %v", err)
		return nil
	}
	return &candidate{
		path:       dst,
		size:       size,
		pages:      r.best.pages,
		failures:   r.best.failures,
		techniques: map[string]int{compression.TechniqueGhostscriptRewrite: 1},
		source:     "ghostscript",
	}
}

// specialize scales pages down and strips non-interactive annotations.
func (c *Controller) specialize(r *run) *candidate {
	if r.best == nil {
		return nil
	}
	settings := Settings{
		Profile:         r.level,
		Plan:            compression.CompressionPlan{Name: "specialized", Techniques: []string{compression.TechniqueStreamCompression}},
		Strength:        compression.MaxStreamStrength,
		TrimAnnotations: true,
	}
	if c.pageScaling(r.best.path) {
		settings.Scale = specializedScale
	}

	cand, err := c.attempt(r, r.best.path, "specialized", settings)
	if err != nil {
		r.warn("specialized pass failed: %v", err)
		return nil
	}
	return cand
}

func (c *Controller) pageScaling(path string) bool {
	doc, err := c.opener.Open(path)
	if err != nil {
		return false
	}
	defer doc.Close()
	return doc.Capabilities().PageScaling
}

// safePath recompresses content streams only and saves without structural cleanup.
func (c *Controller) safePath(r *run) {
	settings := Settings{
		Profile:  r.level,
		Plan:     compression.CompressionPlan{Name: "safe", Techniques: []string{compression.TechniqueStreamCompression}},
		Strength: compression.DefaultStreamStrength,
		Safe:     true,
	}
	cand, err := c.attempt(r, r.job.InputPath, "safe", settings)
	if err != nil {
		r.warn("safe path failed, original copied: %v", err)
		c.logger.Warn("Safe path failed", "file", r.job.InputPath, "error", err)
		r.path = compression.PathPassthrough
		return
	}
	r.best = cand
	r.warnings = append(r.warnings, cand.warnings...)
	r.path = compression.PathSafe
}

// finalize writes the chosen bytes to the output path atomically.
func (c *Controller) finalize(r *run) state {
	if r.path != compression.PathPassthrough && (r.best == nil || r.best.size >= r.original) {
		r.warn("no size reduction achieved, original kept")
		r.path = compression.PathPassthrough
	}

	if r.path == compression.PathPassthrough {
		r.thresholdMet = false
		if common.SamePath(r.job.InputPath, r.job.OutputPath) {
			return stateFinalized
		}
		if err := common.CopyFile(r.job.InputPath, r.job.OutputPath); err != nil {
			r.err = compression.NewIOError("write", r.job.OutputPath, err)
			return stateFailed
		}
		return stateFinalized
	}

	data, err := os.ReadFile(r.best.path)
	if err != nil {
		r.err = compression.NewIOError("read", r.best.path, err)
		return stateFailed
	}
	if err := common.WriteFileAtomic(r.job.OutputPath, data); err != nil {
		r.err = compression.NewIOError("write", r.job.OutputPath, err)
		return stateFailed
	}
	return stateFinalized
}

func reductionOf(original int64, best *candidate) float64 {
	if best == nil || original <= 0 {
		return 0
	}
	return 1 - float64(best.size)/float64(original)
}

func mergeCounts(a, b map[string]int) map[string]int {
	out := make(map[string]int, len(a)+len(b))
	for k, v := range a {
		out[k] += v
	}
	for k, v := range b {
		out[k] += v
	}
	return out
}

// orderedTechniques lists applied techniques in plan order, then anything else alphabetically.
func orderedTechniques(plan compression.CompressionPlan, counts map[string]int) []string {
	var out []string
	seen := map[string]bool{}
	for _, name := range plan.Techniques {
		if counts[name] > 0 {
			out = append(out, name)
			seen[name] = true
		}
	}
	var extra []string
	for name, n := range counts {
		if n > 0 && !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
