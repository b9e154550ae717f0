package compression

import (
	"math"
	"time"

	"compactpdf/internal/domain/compression"
)

// OutcomeInput is everything BuildOutcome needs.
type OutcomeInput struct {
	RunID          string
	InputPath      string
	OutputPath     string
	Level          compression.Level
	OriginalSize   int64
	FinalSize      int64
	Elapsed        time.Duration
	Techniques     []string
	Warnings       []string
	Path           string
	ThresholdMet   bool
	Escalated      bool
	BackupID       string
	PagesProcessed int
	PageFailures   int
}

// BuildOutcome derives ratio, percentage and space saved from the byte counts.
func BuildOutcome(in OutcomeInput) compression.CompressionOutcome {
	ratio := 0.0
	if in.OriginalSize > 0 {
		ratio = 1 - float64(in.FinalSize)/float64(in.OriginalSize)
	}
	ratio = math.Max(0, math.Min(1, ratio))

	techniques := in.Techniques
	if techniques == nil {
		techniques = []string{}
	}

	return compression.CompressionOutcome{
		RunID:          in.RunID,
		InputPath:      in.InputPath,
		OutputPath:     in.OutputPath,
		Level:          in.Level,
		Success:        true,
		OriginalSize:   in.OriginalSize,
		FinalSize:      in.FinalSize,
		Ratio:          ratio,
		Percentage:     ratio * 100,
		SpaceSaved:     max(0, in.OriginalSize-in.FinalSize),
		Elapsed:        in.Elapsed,
		TechniquesUsed: techniques,
		Warnings:       in.Warnings,
		Path:           in.Path,
		ThresholdMet:   in.ThresholdMet,
		Escalated:      in.Escalated,
		BackupID:       in.BackupID,
		PagesProcessed: in.PagesProcessed,
		PageFailures:   in.PageFailures,
	}
}

// FailedOutcome builds a success=false outcome. Sizes are reported as unchanged.
func FailedOutcome(in OutcomeInput, err error) compression.CompressionOutcome {
	in.FinalSize = in.OriginalSize
	in.Techniques = nil
	out := BuildOutcome(in)
	out.Success = false
	out.Path = ""
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
