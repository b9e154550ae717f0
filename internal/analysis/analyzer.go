// Package analysis builds a DocumentProfile describing what a PDF contains and how compressible it looks.
package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"compactpdf/internal/content"
	"compactpdf/internal/domain/compression"
)

const (
	HighPotentialThreshold = 30.0
	largeImageDimension    = 1200
	maxPotential           = 90.0
	maxReductionPotential  = 80.0
	fontPenaltyThreshold   = 5
	maxKeywordText         = 64 * 1024
)

// domainKeywords mark documents that get the specialized compression pass.
var domainKeywords = []string{"certificate", "certificado", "certificat", "diploma", "award", "conclusão"}

// Analyzer walks a document once and profiles it.
type Analyzer struct {
	opener     compression.Opener
	compressor compression.ByteCompressor
	text       compression.TextExtractor
	logger     *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTextExtractor reads page text from the file's text layer, falling back to
// scanning content streams for pages where it finds nothing.
func WithTextExtractor(text compression.TextExtractor) Option {
	return func(a *Analyzer) { a.text = text }
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(opener compression.Opener, compressor compression.ByteCompressor, logger *slog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{opener: opener, compressor: compressor, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze opens path and profiles it. Every failure is an analysis error.
func (a *Analyzer) Analyze(path string) (*compression.DocumentProfile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, compression.NewAnalysisError("stat", path, err)
	}

	doc, err := a.opener.Open(path)
	if err != nil {
		return nil, compression.NewAnalysisError("open", path, err)
	}
	defer doc.Close()

	profile, err := a.profile(doc, a.pageTexts(path, len(doc.Pages())))
	if err != nil {
		return nil, compression.NewAnalysisError("profile", path, err)
	}
	profile.Path = path
	profile.FileSize = info.Size()
	profile.ModTime = info.ModTime()
	computeScores(profile)

	a.logger.Debug("Document analyzed",
		"file", path,
		"pages", profile.PageCount,
		"images", len(profile.Images),
		"fonts", len(profile.Fonts),
		"optimization_score", profile.OptimizationScore,
		"reduction_potential", profile.EstimatedReductionPotential)
	return profile, nil
}

// pageTexts returns the text layer when the extractor reads the same page count, otherwise nil.
func (a *Analyzer) pageTexts(path string, pages int) []string {
	if a.text == nil {
		return nil
	}
	texts, err := a.text.PageTexts(path)
	if err != nil {
		a.logger.Debug("Text layer unavailable, scanning content streams", "file", path, "error", err)
		return nil
	}
	if len(texts) != pages {
		a.logger.Debug("Text layer page count mismatch", "file", path, "pages", pages, "text_pages", len(texts))
		return nil
	}
	return texts
}

// profile inspects an opened document. File size dependent scores are left to the caller.
func (a *Analyzer) profile(doc compression.Document, texts []string) (*compression.DocumentProfile, error) {
	sec := doc.Security()
	if sec.Encrypted {
		return nil, fmt.Errorf("%w: document is encrypted", compression.ErrUnsupportedFeature)
	}

	pages := doc.Pages()
	if len(pages) == 0 {
		return nil, errors.New("document has no pages")
	}

	profile := &compression.DocumentProfile{
		PageCount: len(pages),
		Signed:    sec.Signed,
	}

	var text strings.Builder
	seenImages := map[int]bool{}
	seenFonts := map[string]bool{}
	readable := 0

	for i, page := range pages {
		layer := ""
		if i < len(texts) {
			layer = strings.Join(strings.Fields(texts[i]), " ")
		}
		ok := a.profilePage(page, layer, profile, &text, seenImages, seenFonts)
		if ok {
			readable++
		}
	}
	if readable == 0 {
		return nil, errors.New("no readable pages")
	}

	md := doc.Metadata()
	profile.MetadataSize = md.Size()
	for _, v := range md.Info {
		if text.Len() < maxKeywordText {
			text.WriteByte(' ')
			text.WriteString(v)
		}
	}
	profile.Keywords = findKeywords(text.String())

	return profile, nil
}

func (a *Analyzer) profilePage(page compression.Page, layer string, profile *compression.DocumentProfile, text *strings.Builder, seenImages map[int]bool, seenFonts map[string]bool) bool {
	nr := page.Number()
	ok := true

	stream, err := page.ContentStream()
	if err != nil {
		profile.Warnings = append(profile.Warnings, fmt.Sprintf("page %d: content unreadable: %v", nr, err))
		ok = false
	} else if stream.StoredSize > 0 {
		profile.TotalStreams++
		if !stream.Compressed() {
			profile.UncompressedStreams++
		}
		extracted := layer
		if extracted == "" {
			data := stream.Data
			if plain, err := a.compressor.Decompress(data); err == nil {
				data = plain
			}
			extracted = content.ExtractText(data)
		}
		profile.TextLength += len(extracted)
		if text.Len() < maxKeywordText {
			text.WriteByte(' ')
			text.WriteString(extracted)
		}
	}

	res, err := page.Resources()
	if err != nil {
		profile.Warnings = append(profile.Warnings, fmt.Sprintf("page %d: resources unreadable: %v", nr, err))
		return false
	}

	for _, img := range res.Images {
		if img.ObjectID != 0 {
			if seenImages[img.ObjectID] {
				continue
			}
			seenImages[img.ObjectID] = true
		}
		profile.TotalStreams++
		if img.Filter == "" {
			profile.UncompressedStreams++
		}
		profile.Images = append(profile.Images, compression.ImageInfo{
			Page:                 nr,
			Name:                 img.Name,
			ObjectID:             img.ObjectID,
			Width:                img.Width,
			Height:               img.Height,
			BitsPerComponent:     img.BitsPerComponent,
			ColorSpace:           img.ColorSpace,
			Encoding:             img.Filter,
			EstimatedSize:        img.StoredSize,
			CompressionPotential: ImagePotential(img),
		})
	}

	for _, f := range res.Fonts {
		key := fontKey(f)
		if seenFonts[key] {
			continue
		}
		seenFonts[key] = true
		if f.Embedded {
			profile.TotalStreams++
			if !f.FileFiltered {
				profile.UncompressedStreams++
			}
		}
		profile.Fonts = append(profile.Fonts, compression.FontInfo{
			Page:          nr,
			Name:          f.Name,
			Subtype:       f.Subtype,
			Embedded:      f.Embedded,
			EstimatedSize: f.FileSize,
		})
	}

	if res.Forms > 0 {
		profile.HasForms = true
	}
	return ok
}

func fontKey(f compression.FontResource) string {
	base := f.BaseFont
	if base == "" {
		base = f.Name
	}
	return fmt.Sprintf("%s|%s|%d", base, f.Subtype, f.FileSize)
}

// ImagePotential estimates, in percent, how much re-encoding could shrink an image.
func ImagePotential(img compression.ImageResource) float64 {
	var p float64
	switch img.Filter {
	case "":
		p = 80
	case "FlateDecode":
		if img.BitsPerComponent >= 8 {
			p = 50
		} else {
			p = 35
		}
	case "DCTDecode":
		pixels := float64(img.Width * img.Height)
		bpp := 0.0
		if pixels > 0 {
			bpp = float64(img.StoredSize*8) / pixels
		}
		switch {
		case bpp > 2:
			p = 50
		case bpp > 1:
			p = 30
		default:
			p = 10
		}
	case "CCITTFaxDecode", "JBIG2Decode", "JPXDecode":
		p = 5
	default:
		p = 20
	}
	if img.Width > largeImageDimension || img.Height > largeImageDimension {
		p += 20
	}
	return math.Min(p, maxPotential)
}

// computeScores fills OptimizationScore and EstimatedReductionPotential.
func computeScores(p *compression.DocumentProfile) {
	score := 100.0
	uncompressedRatio := 0.0
	if p.TotalStreams > 0 {
		uncompressedRatio = float64(p.UncompressedStreams) / float64(p.TotalStreams)
		score -= uncompressedRatio * 30
	}

	if len(p.Images) > 0 {
		high := 0
		for _, img := range p.Images {
			if img.CompressionPotential > HighPotentialThreshold {
				high++
			}
		}
		score -= float64(high) / float64(len(p.Images)) * 25
	}

	if embedded := len(p.EmbeddedFonts()); embedded > fontPenaltyThreshold {
		score -= math.Min(20, float64(embedded)*2)
	}

	if p.TotalStreams > p.UncompressedStreams {
		score += 10
	}
	p.OptimizationScore = math.Max(0, math.Min(100, score))

	potential := 0.0
	if p.FileSize > 0 {
		if len(p.Images) > 0 {
			sum := 0.0
			for _, img := range p.Images {
				sum += img.CompressionPotential
			}
			avg := sum / float64(len(p.Images))
			potential += avg * math.Min(1, float64(p.ImageBytes())/float64(p.FileSize))
		}
		potential += math.Min(15, float64(p.EmbeddedFontBytes())/float64(p.FileSize)*15)
	}
	potential += uncompressedRatio * 20
	p.EstimatedReductionPotential = math.Min(maxReductionPotential, potential)
}

func findKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}
