package compression

import (
	"errors"
	"fmt"
	"log/slog"

	"compactpdf/internal/analysis"
	"compactpdf/internal/content"
	"compactpdf/internal/domain/compression"
)

const flateFilter = "FlateDecode"

// Settings is everything the pipeline needs to transform one page.
type Settings struct {
	Profile  compression.LevelProfile
	Plan     compression.CompressionPlan
	Strength int
	// StripAll runs stream, pruning and font/metadata steps at aggressive gating whatever the plan says.
	StripAll bool
	// TrimAnnotations drops every annotation except links and widgets.
	TrimAnnotations bool
	// Scale shrinks pages before any other step when set below 1.
	Scale float64
	// Safe saves without object deduplication or unused-object removal.
	Safe bool
}

func (s Settings) enabled(technique string) bool {
	return s.StripAll || s.Plan.Contains(technique)
}

func (s Settings) rank() int {
	if s.StripAll {
		return compression.LevelAggressive.Rank()
	}
	return s.Profile.Level.Rank()
}

// runState is shared by every page of one orchestrator run.
type runState struct {
	adjustedImages map[int]bool
}

func newRunState() *runState {
	return &runState{adjustedImages: map[int]bool{}}
}

// Pipeline applies the per-page steps.
type Pipeline struct {
	compressor compression.ByteCompressor
	codec      compression.RasterCodec
	logger     *slog.Logger
}

// NewPipeline creates a new page pipeline
func NewPipeline(compressor compression.ByteCompressor, codec compression.RasterCodec, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{compressor: compressor, codec: codec, logger: logger}
}

type step struct {
	technique string
	run       func(compression.Page, Settings, *runState) (int, error)
}

// Transform runs every step on page. A failing step is recorded and skipped.
func (p *Pipeline) Transform(page compression.Page, s Settings, st *runState) compression.PageTransformResult {
	if st == nil {
		st = newRunState()
	}
	result := compression.PageTransformResult{Page: page.Number(), Techniques: map[string]int{}}

	steps := []step{
		{compression.TechniquePageScaling, p.scale},
		{compression.TechniqueStreamCompression, p.recompressStream},
		{compression.TechniqueMetadataRemoval, p.pruneEntries},
		{compression.TechniqueAnnotationTrim, p.trimAnnotations},
		{compression.TechniqueImageCompression, p.adjustImages},
		{compression.TechniqueFontOptimization, p.stripFonts},
		{compression.TechniqueMetadataRemoval, p.stripPageMetadata},
	}

	for _, stp := range steps {
		// A failing step may already have changed the page; n counts what it did.
		n, err := p.runStep(page, stp, s, st)
		if n > 0 {
			result.Applied += n
			result.Techniques[stp.technique] += n
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", stp.technique, err))
			p.logger.Warn("Page step failed", "page", result.Page, "technique", stp.technique, "applied", n, "error", err)
		}
	}

	result.Unmodified = len(result.Errors) > 0 && result.Applied == 0
	return result
}

func (p *Pipeline) runStep(page compression.Page, stp step, s Settings, st *runState) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("panic: %v", r)
		}
	}()
	return stp.run(page, s, st)
}

func (p *Pipeline) scale(page compression.Page, s Settings, _ *runState) (int, error) {
	if s.Scale <= 0 || s.Scale >= 1 {
		return 0, nil
	}
	if err := page.Scale(s.Scale); err != nil {
		return 0, err
	}
	return 1, nil
}

func (p *Pipeline) recompressStream(page compression.Page, s Settings, _ *runState) (int, error) {
	if !s.enabled(compression.TechniqueStreamCompression) {
		return 0, nil
	}
	stream, err := page.ContentStream()
	if err != nil {
		return 0, err
	}
	if stream.StoredSize == 0 {
		return 0, nil
	}

	plain, err := p.compressor.Decompress(stream.Data)
	if errors.Is(err, compression.ErrNotCompressed) {
		plain = stream.Data
	} else if err != nil {
		return 0, err
	}

	packed, err := p.compressor.Compress(plain, s.Strength)
	if err != nil {
		return 0, err
	}
	if len(packed) >= stream.StoredSize {
		return 0, nil
	}
	if err := page.SetContentStream(packed, []string{flateFilter}); err != nil {
		return 0, err
	}
	return 1, nil
}

// optionalEntries lists page keys safe to drop, by minimum level rank.
var optionalEntries = []struct {
	key  string
	rank int
}{
	{"PieceInfo", 0},
	{"LastModified", 0},
	{"StructParents", 0},
	{"Thumb", 1},
	{"Group", 2},
	{"Tabs", 2},
}

func (p *Pipeline) pruneEntries(page compression.Page, s Settings, _ *runState) (int, error) {
	if !s.enabled(compression.TechniqueMetadataRemoval) {
		return 0, nil
	}
	removed := 0
	for _, e := range optionalEntries {
		if s.rank() < e.rank {
			continue
		}
		ok, err := page.RemoveEntry(e.key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func keepInteractive(subtype string) bool {
	return subtype == "Link" || subtype == "Widget"
}

func (p *Pipeline) trimAnnotations(page compression.Page, s Settings, _ *runState) (int, error) {
	trim := s.TrimAnnotations || s.StripAll ||
		(s.Profile.StripAnnotations && s.Plan.Contains(compression.TechniqueMetadataRemoval))
	if !trim {
		return 0, nil
	}
	return page.TrimAnnotations(keepInteractive)
}

func (p *Pipeline) adjustImages(page compression.Page, s Settings, st *runState) (int, error) {
	downsample := s.Plan.Contains(compression.TechniqueImageDownsampling)
	recompress := s.Plan.Contains(compression.TechniqueImageCompression)
	if !downsample && !recompress {
		return 0, nil
	}

	res, err := page.Resources()
	if err != nil {
		return 0, err
	}

	replaced := 0
	var errs []error
	for _, img := range res.Images {
		if !img.Editable || (img.ObjectID != 0 && st.adjustedImages[img.ObjectID]) {
			continue
		}
		if img.ObjectID != 0 {
			st.adjustedImages[img.ObjectID] = true
		}

		oversize := img.Width > s.Profile.MaxDimension || img.Height > s.Profile.MaxDimension
		maxW, maxH := img.Width, img.Height
		switch {
		case downsample && oversize:
			maxW, maxH = s.Profile.MaxDimension, s.Profile.MaxDimension
		case recompress && analysis.ImagePotential(img) >= analysis.HighPotentialThreshold:
		default:
			continue
		}

		ok, err := p.reencode(page, img, s.Profile.ImageQuality, maxW, maxH)
		if err != nil {
			errs = append(errs, fmt.Errorf("image %s: %w", img.Name, err))
			continue
		}
		if ok {
			replaced++
		}
	}
	if replaced == 0 && len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	for _, err := range errs {
		p.logger.Warn("Image left unchanged", "page", page.Number(), "error", err)
	}
	return replaced, nil
}

func (p *Pipeline) reencode(page compression.Page, img compression.ImageResource, quality, maxW, maxH int) (bool, error) {
	decoded, err := p.codec.Decode(compression.RasterSource{
		Data:             img.Data,
		Filter:           img.Filter,
		Width:            img.Width,
		Height:           img.Height,
		Components:       components(img.ColorSpace),
		BitsPerComponent: img.BitsPerComponent,
	})
	if err != nil {
		return false, err
	}
	enc, err := p.codec.Encode(decoded, quality, maxW, maxH)
	if err != nil {
		return false, err
	}
	if int64(len(enc.Data)) >= img.StoredSize {
		return false, nil
	}
	if err := page.ReplaceImage(img.Name, enc); err != nil {
		return false, err
	}
	return true, nil
}

func components(colorSpace string) int {
	switch colorSpace {
	case "DeviceGray", "CalGray":
		return 1
	case "DeviceCMYK":
		return 4
	default:
		return 3
	}
}

func (p *Pipeline) stripFonts(page compression.Page, s Settings, _ *runState) (int, error) {
	if !s.enabled(compression.TechniqueFontOptimization) || !(s.Profile.StripFonts || s.StripAll) {
		return 0, nil
	}
	res, err := page.Resources()
	if err != nil {
		return 0, err
	}
	if res.Forms > 0 || len(res.Fonts) == 0 {
		return 0, nil
	}

	stream, err := page.ContentStream()
	if err != nil {
		return 0, err
	}
	data := stream.Data
	if plain, err := p.compressor.Decompress(data); err == nil {
		data = plain
	} else if !errors.Is(err, compression.ErrNotCompressed) {
		return 0, err
	}
	used := content.FontsUsed(data)

	removed := 0
	for _, f := range res.Fonts {
		if used[f.Name] {
			continue
		}
		if err := page.RemoveFont(f.Name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (p *Pipeline) stripPageMetadata(page compression.Page, s Settings, _ *runState) (int, error) {
	if !s.enabled(compression.TechniqueMetadataRemoval) || !(s.Profile.StripMetadata || s.StripAll) {
		return 0, nil
	}
	ok, err := page.RemoveEntry("Metadata")
	if err != nil || !ok {
		return 0, err
	}
	return 1, nil
}
