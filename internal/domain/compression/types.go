package compression

import (
	"time"
)

// Technique names understood by the recommendation engine and the page pipeline.
const (
	TechniqueImageCompression  = "image_compression"
	TechniqueImageDownsampling = "image_downsampling"
	TechniqueStreamCompression = "stream_compression"
	TechniqueFontOptimization  = "font_optimization"
	TechniqueMetadataRemoval   = "metadata_removal"
)

// Names recorded for work done outside the catalog by escalation passes.
const (
	TechniqueAnnotationTrim     = "annotation_trim"
	TechniquePageScaling        = "page_scaling"
	TechniqueGhostscriptRewrite = "ghostscript_rewrite"
)

// Priority ranks a technique inside a recommendation.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// QualityImpact describes the visual cost of a technique.
type QualityImpact int

const (
	ImpactNone QualityImpact = iota
	ImpactMinimal
	ImpactModerate
	ImpactHigh
)

func (q QualityImpact) String() string {
	switch q {
	case ImpactNone:
		return "none"
	case ImpactMinimal:
		return "minimal"
	case ImpactModerate:
		return "moderate"
	case ImpactHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ImageInfo describes one raster resource found during analysis.
type ImageInfo struct {
	Page                 int     `json:"page"`
	Name                 string  `json:"name"`
	ObjectID             int     `json:"object_id"`
	Width                int     `json:"width"`
	Height               int     `json:"height"`
	BitsPerComponent     int     `json:"bits_per_component"`
	ColorSpace           string  `json:"color_space"`
	Encoding             string  `json:"encoding"`
	EstimatedSize        int64   `json:"estimated_size"`
	CompressionPotential float64 `json:"compression_potential"`
}

// FontInfo describes one font resource found during analysis.
type FontInfo struct {
	Page          int    `json:"page"`
	Name          string `json:"name"`
	Subtype       string `json:"subtype"`
	Embedded      bool   `json:"embedded"`
	EstimatedSize int64  `json:"estimated_size"`
}

// DocumentProfile is the read-only result of analyzing one document.
type DocumentProfile struct {
	Path                        string      `json:"path"`
	FileSize                    int64       `json:"file_size"`
	ModTime                     time.Time   `json:"mod_time"`
	PageCount                   int         `json:"page_count"`
	Images                      []ImageInfo `json:"images"`
	Fonts                       []FontInfo  `json:"fonts"`
	UncompressedStreams         int         `json:"uncompressed_streams"`
	TotalStreams                int         `json:"total_streams"`
	MetadataSize                int64       `json:"metadata_size"`
	TextLength                  int         `json:"text_length"`
	Keywords                    []string    `json:"keywords,omitempty"`
	Encrypted                   bool        `json:"encrypted"`
	Signed                      bool        `json:"signed"`
	HasForms                    bool        `json:"has_forms"`
	OptimizationScore           float64     `json:"optimization_score"`
	EstimatedReductionPotential float64     `json:"estimated_reduction_potential"`
	Warnings                    []string    `json:"warnings,omitempty"`
}

func (p DocumentProfile) HasImages() bool   { return len(p.Images) > 0 }
func (p DocumentProfile) HasFonts() bool    { return len(p.Fonts) > 0 }
func (p DocumentProfile) HasMetadata() bool { return p.MetadataSize > 0 }

// FileSizeMB returns the file size in mebibytes.
func (p DocumentProfile) FileSizeMB() float64 {
	return float64(p.FileSize) / (1024 * 1024)
}

// ImageBytes sums the stored size of every image.
func (p DocumentProfile) ImageBytes() int64 {
	var total int64
	for _, img := range p.Images {
		total += img.EstimatedSize
	}
	return total
}

// EmbeddedFonts returns the fonts that carry an embedded font program.
func (p DocumentProfile) EmbeddedFonts() []FontInfo {
	var fonts []FontInfo
	for _, f := range p.Fonts {
		if f.Embedded {
			fonts = append(fonts, f)
		}
	}
	return fonts
}

// EmbeddedFontBytes sums the stored size of embedded font programs.
func (p DocumentProfile) EmbeddedFontBytes() int64 {
	var total int64
	for _, f := range p.EmbeddedFonts() {
		total += f.EstimatedSize
	}
	return total
}

// TechniqueRecommendation is one entry of the technique catalog.
type TechniqueRecommendation struct {
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Priority          Priority      `json:"priority"`
	ExpectedReduction float64       `json:"expected_reduction"`
	QualityImpact     QualityImpact `json:"quality_impact"`
	RequiresImages    bool          `json:"requires_images"`
	RequiresFonts     bool          `json:"requires_fonts"`
	RequiresMetadata  bool          `json:"requires_metadata"`
	MinFileSizeMB     float64       `json:"min_file_size_mb"`
	ConflictsWith     []string      `json:"conflicts_with,omitempty"`
	DependsOn         []string      `json:"depends_on,omitempty"`
}

// IsApplicable reports whether the technique can do anything for the profile.
func (t TechniqueRecommendation) IsApplicable(profile DocumentProfile) bool {
	if t.RequiresImages && !profile.HasImages() {
		return false
	}
	if t.RequiresFonts && !profile.HasFonts() {
		return false
	}
	if t.RequiresMetadata && !profile.HasMetadata() {
		return false
	}
	if profile.FileSizeMB() < t.MinFileSizeMB {
		return false
	}
	return true
}

// Risk maps the quality impact onto 0..3.
func (t TechniqueRecommendation) Risk() int {
	return int(t.QualityImpact)
}

// ConflictsWithTechnique reports a conflict declared on this entry.
func (t TechniqueRecommendation) ConflictsWithTechnique(name string) bool {
	for _, c := range t.ConflictsWith {
		if c == name {
			return true
		}
	}
	return false
}

// CompressionPlan is an ordered set of techniques.
type CompressionPlan struct {
	Name               string   `json:"name"`
	Techniques         []string `json:"techniques"`
	EstimatedReduction float64  `json:"estimated_reduction"`
	Risk               float64  `json:"risk"`
}

// Contains reports whether the plan includes the named technique.
func (p CompressionPlan) Contains(name string) bool {
	for _, t := range p.Techniques {
		if t == name {
			return true
		}
	}
	return false
}

// Empty reports whether the plan has nothing to apply.
func (p CompressionPlan) Empty() bool {
	return len(p.Techniques) == 0
}

// Recommendations is the full output of the recommendation engine.
type Recommendations struct {
	High                    []TechniqueRecommendation `json:"high"`
	Medium                  []TechniqueRecommendation `json:"medium"`
	Low                     []TechniqueRecommendation `json:"low"`
	Conservative            CompressionPlan           `json:"conservative"`
	Balanced                CompressionPlan           `json:"balanced"`
	Aggressive              CompressionPlan           `json:"aggressive"`
	RecommendedOrder        []string                  `json:"recommended_order"`
	EstimatedTotalReduction float64                   `json:"estimated_total_reduction"`
	Warnings                []string                  `json:"warnings,omitempty"`
}

// PlanFor maps a compression level onto one of the three plans.
func (r Recommendations) PlanFor(level Level) CompressionPlan {
	switch level {
	case LevelMinimal:
		return r.Conservative
	case LevelAggressive:
		return r.Aggressive
	default:
		return r.Balanced
	}
}

// PageTransformResult summarizes the pipeline run for one page.
type PageTransformResult struct {
	Page       int            `json:"page"`
	Applied    int            `json:"applied"`
	Techniques map[string]int `json:"techniques,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	Unmodified bool           `json:"unmodified"`
}

// Outcome paths.
const (
	PathStandard    = "standard"
	PathEscalated   = "escalated"
	PathSpecialized = "specialized"
	PathSafe        = "safe"
	PathPassthrough = "passthrough"
	PathCache       = "cache"
)

// CompressionOutcome is the caller-facing result of one document run.
type CompressionOutcome struct {
	RunID          string        `json:"run_id"`
	InputPath      string        `json:"input_path"`
	OutputPath     string        `json:"output_path"`
	Level          Level         `json:"level"`
	Success        bool          `json:"success"`
	OriginalSize   int64         `json:"original_size"`
	FinalSize      int64         `json:"final_size"`
	Ratio          float64       `json:"ratio"`
	Percentage     float64       `json:"percentage"`
	SpaceSaved     int64         `json:"space_saved"`
	Elapsed        time.Duration `json:"elapsed"`
	TechniquesUsed []string      `json:"techniques_used"`
	Warnings       []string      `json:"warnings,omitempty"`
	Error          string        `json:"error,omitempty"`
	Path           string        `json:"path"`
	ThresholdMet   bool          `json:"threshold_met"`
	Escalated      bool          `json:"escalated"`
	BackupID       string        `json:"backup_id,omitempty"`
	PagesProcessed int           `json:"pages_processed"`
	PageFailures   int           `json:"page_failures"`
}
