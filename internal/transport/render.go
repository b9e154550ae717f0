package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"compactpdf/internal/app/concurrency"
	"compactpdf/internal/application"
	"compactpdf/internal/domain/compression"
	"compactpdf/internal/domain/statistics"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printOutcome(w io.Writer, o compression.CompressionOutcome) {
	if !o.Success {
		fmt.Fprintf(w, "FAILED  %s: %s\n", o.InputPath, o.Error)
		return
	}
	fmt.Fprintf(w, "%s -> %s\n", o.InputPath, o.OutputPath)
	fmt.Fprintf(w, "  %s -> %s (%.1f%% saved, %s path, %s)\n",
		formatBytes(o.OriginalSize), formatBytes(o.FinalSize), o.Percentage, o.Path, o.Elapsed.Round(time.Millisecond))
	if len(o.TechniquesUsed) > 0 {
		fmt.Fprintf(w, "  techniques: %s\n", strings.Join(o.TechniquesUsed, ", "))
	}
	if o.BackupID != "" {
		fmt.Fprintf(w, "  backup: %s\n", o.BackupID)
	}
	for _, warning := range o.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

func printBatch(w io.Writer, r concurrency.BatchResult) {
	for _, o := range r.Outcomes {
		printOutcome(w, o)
	}
	fmt.Fprintf(w, "%d files, %d ok, %d failed, %s -> %s (%.1f%% saved)\n",
		r.TotalFiles, r.Succeeded, r.Failed,
		formatBytes(r.TotalOriginalSize), formatBytes(r.TotalCompressedSize), r.OverallRatio*100)
}

func printAnalysis(w io.Writer, report *application.AnalysisReport) {
	p := report.Profile
	fmt.Fprintf(w, "%s: %d pages, %s\n", p.Path, p.PageCount, formatBytes(p.FileSize))
	fmt.Fprintf(w, "  images: %d, fonts: %d (%d embedded), streams: %d/%d uncompressed\n",
		len(p.Images), len(p.Fonts), len(p.EmbeddedFonts()), p.UncompressedStreams, p.TotalStreams)
	fmt.Fprintf(w, "  optimization score: %.0f, reduction potential: %.0f%%\n", p.OptimizationScore, p.EstimatedReductionPotential)
	if p.Signed {
		fmt.Fprintln(w, "  digitally signed: compression will leave it unchanged")
	}

	recs := report.Recommendations
	for _, plan := range []compression.CompressionPlan{recs.Conservative, recs.Balanced, recs.Aggressive} {
		fmt.Fprintf(w, "  %-12s ~%.0f%%  %s\n", plan.Name, plan.EstimatedReduction, strings.Join(plan.Techniques, ", "))
	}
	for _, warnings := range [][]string{p.Warnings, recs.Warnings} {
		for _, warning := range warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
	}
}

func printSummary(w io.Writer, s *statistics.Summary) {
	fmt.Fprintf(w, "runs: %d (%d ok, %d failed, %d escalated)\n", s.TotalRuns, s.SuccessfulRuns, s.FailedRuns, s.Escalations)
	fmt.Fprintf(w, "bytes: %s -> %s, saved %s, average ratio %.1f%%\n",
		formatBytes(s.TotalOriginalBytes), formatBytes(s.TotalFinalBytes), formatBytes(s.TotalDataSaved), s.AverageRatio*100)
	printCounts(w, "levels", s.ByLevel)
	printCounts(w, "paths", s.ByPath)
	printCounts(w, "techniques", s.TechniqueUsage)
}

func printCounts(w io.Writer, label string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	fmt.Fprintf(w, "%s: %s\n", label, strings.Join(parts, " "))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
