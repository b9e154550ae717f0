package analysis

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compactpdf/internal/codec"
	"compactpdf/internal/domain/compression"
	"compactpdf/internal/pdfdoc"
	"compactpdf/internal/pdfdoc/memdoc"
	"compactpdf/internal/pdfdoc/pdftest"
)

func writeDoc(t *testing.T, f *memdoc.File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, memdoc.Write(path, f))
	return path
}

func deflate(t *testing.T, s string) []byte {
	t.Helper()
	out, err := codec.NewFlate().Compress([]byte(s), 6)
	require.NoError(t, err)
	return out
}

func TestAnalyze_TextDocument(t *testing.T) {
	path := writeDoc(t, &memdoc.File{
		Pages: []memdoc.Page{
			{Content: deflate(t, "BT\n/F1 12 Tf\n(Quarterly report) Tj\nET"), Filters: []string{"FlateDecode"},
				Fonts: []memdoc.Font{{Name: "F1", Subtype: "Type1"}}},
			{Content: []byte("BT\n/F1 12 Tf\n(Second page) Tj\nET"),
				Fonts: []memdoc.Font{{Name: "F1", Subtype: "Type1"}}},
		},
		Info: map[string]string{"Title": "Report"},
	})

	a := NewAnalyzer(memdoc.NewOpener(memdoc.Faults{}), codec.NewFlate(), nil)
	profile, err := a.Analyze(path)
	require.NoError(t, err)

	assert.Equal(t, 2, profile.PageCount)
	assert.Equal(t, 2, profile.TotalStreams)
	assert.Equal(t, 1, profile.UncompressedStreams)
	assert.Len(t, profile.Fonts, 1)
	assert.False(t, profile.HasImages())
	assert.True(t, profile.HasMetadata())
	assert.Equal(t, len("Quarterly report")+len("Second page"), profile.TextLength)
	assert.Empty(t, profile.Keywords)

	// 100 - 0.5*30 + 10
	assert.InDelta(t, 95.0, profile.OptimizationScore, 0.001)
	assert.InDelta(t, 10.0, profile.EstimatedReductionPotential, 0.001)
}

func TestAnalyze_SharedImagesCountedOnce(t *testing.T) {
	img := &memdoc.Image{Width: 1600, Height: 1600, BitsPerComponent: 8, ColorSpace: "DeviceRGB",
		Filter: "DCTDecode", Data: bytes.Repeat([]byte{1}, 1_000_000)}
	path := writeDoc(t, &memdoc.File{
		Pages: []memdoc.Page{
			{Content: []byte("q /Im1 Do Q"), Images: map[string]int{"Im1": 7}},
			{Content: []byte("q /Im1 Do Q"), Images: map[string]int{"Im1": 7}},
		},
		Images: map[int]*memdoc.Image{7: img},
	})

	a := NewAnalyzer(memdoc.NewOpener(memdoc.Faults{}), codec.NewFlate(), nil)
	profile, err := a.Analyze(path)
	require.NoError(t, err)

	require.Len(t, profile.Images, 1)
	// 8e6 bits over 2.56e6 pixels > 2 bpp, plus the large-image bonus.
	assert.Equal(t, 70.0, profile.Images[0].CompressionPotential)
	assert.Greater(t, profile.EstimatedReductionPotential, 40.0)
	assert.LessOrEqual(t, profile.EstimatedReductionPotential, 80.0)
}

func TestAnalyze_Failures(t *testing.T) {
	a := NewAnalyzer(memdoc.NewOpener(memdoc.Faults{}), codec.NewFlate(), nil)

	t.Run("missing file", func(t *testing.T) {
		_, err := a.Analyze(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorIs(t, err, compression.ErrAnalysis)
	})

	t.Run("encrypted", func(t *testing.T) {
		path := writeDoc(t, &memdoc.File{Pages: []memdoc.Page{{Content: []byte("q Q")}}, Encrypted: true})
		_, err := a.Analyze(path)
		assert.ErrorIs(t, err, compression.ErrAnalysis)
		assert.ErrorIs(t, err, compression.ErrUnsupportedFeature)
	})

	t.Run("no pages", func(t *testing.T) {
		path := writeDoc(t, &memdoc.File{})
		_, err := a.Analyze(path)
		assert.ErrorIs(t, err, compression.ErrAnalysis)
	})

	t.Run("every page unreadable", func(t *testing.T) {
		path := writeDoc(t, &memdoc.File{Pages: []memdoc.Page{{Content: []byte("q Q")}}})
		broken := NewAnalyzer(memdoc.NewOpener(memdoc.Faults{FailPages: map[int]bool{1: true}}), codec.NewFlate(), nil)
		_, err := broken.Analyze(path)
		assert.ErrorIs(t, err, compression.ErrAnalysis)
	})
}

func TestAnalyze_PartialPageFailureIsWarning(t *testing.T) {
	path := writeDoc(t, &memdoc.File{Pages: []memdoc.Page{
		{Content: []byte("BT (one) Tj ET")},
		{Content: []byte("BT (two) Tj ET")},
	}})
	a := NewAnalyzer(memdoc.NewOpener(memdoc.Faults{FailPages: map[int]bool{2: true}}), codec.NewFlate(), nil)

	profile, err := a.Analyze(path)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.PageCount)
	require.NotEmpty(t, profile.Warnings)
	assert.True(t, strings.HasPrefix(profile.Warnings[0], "page 2"))
}

func TestImagePotential(t *testing.T) {
	tests := []struct {
		name string
		img  compression.ImageResource
		want float64
	}{
		{"raw small", compression.ImageResource{Width: 100, Height: 100, BitsPerComponent: 8}, 80},
		{"raw large capped", compression.ImageResource{Width: 2000, Height: 100, BitsPerComponent: 8}, 90},
		{"flate 8 bit", compression.ImageResource{Filter: "FlateDecode", Width: 10, Height: 10, BitsPerComponent: 8}, 50},
		{"flate 1 bit", compression.ImageResource{Filter: "FlateDecode", Width: 10, Height: 10, BitsPerComponent: 1}, 35},
		{"dct dense", compression.ImageResource{Filter: "DCTDecode", Width: 10, Height: 10, StoredSize: 19}, 30},
		{"dct lean", compression.ImageResource{Filter: "DCTDecode", Width: 100, Height: 100, StoredSize: 100}, 10},
		{"jbig2", compression.ImageResource{Filter: "JBIG2Decode", Width: 10, Height: 10}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ImagePotential(tt.img))
		})
	}
}

func TestComputeScores_FontPenaltyAndClamp(t *testing.T) {
	p := &compression.DocumentProfile{FileSize: 1000, TotalStreams: 10, UncompressedStreams: 10}
	for i := 0; i < 12; i++ {
		p.Fonts = append(p.Fonts, compression.FontInfo{Name: "F", Embedded: true, EstimatedSize: 10})
	}
	computeScores(p)

	// 100 - 30 - min(20, 24), no compressed-stream bonus
	assert.InDelta(t, 50.0, p.OptimizationScore, 0.001)
	// 20 for uncompressed streams + 120/1000*15
	assert.InDelta(t, 21.8, p.EstimatedReductionPotential, 0.001)
}

func TestLooksLikeCertificate(t *testing.T) {
	image := []compression.ImageInfo{{Width: 2000, Height: 1400}}

	tests := []struct {
		name    string
		profile compression.DocumentProfile
		want    bool
	}{
		{"single image page little text", compression.DocumentProfile{PageCount: 1, Images: image, TextLength: 40}, true},
		{"keyword with text", compression.DocumentProfile{PageCount: 2, Images: image, TextLength: 5000, Keywords: []string{"certificate"}}, true},
		{"too many pages", compression.DocumentProfile{PageCount: 12, Images: image, TextLength: 10}, false},
		{"no images", compression.DocumentProfile{PageCount: 1, TextLength: 10}, false},
		{"text heavy", compression.DocumentProfile{PageCount: 1, Images: image, TextLength: 3000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeCertificate(tt.profile))
		})
	}
}

type stubText struct {
	texts []string
	err   error
}

func (s stubText) PageTexts(string) ([]string, error) { return s.texts, s.err }

func TestAnalyze_SingleLineContentIsNotCertificate(t *testing.T) {
	body := strings.Repeat("Minutes of the planning meeting held on Tuesday. ", 6)
	img := &memdoc.Image{Width: 600, Height: 400, BitsPerComponent: 8, ColorSpace: "DeviceRGB",
		Filter: "DCTDecode", Data: bytes.Repeat([]byte{1}, 10_000)}
	path := writeDoc(t, &memdoc.File{
		Pages: []memdoc.Page{{
			Content: []byte("BT /F1 12 Tf 72 720 Td (" + body + ") Tj ET q 100 0 0 80 72 500 cm /Im1 Do Q"),
			Images:  map[string]int{"Im1": 3},
		}},
		Images: map[int]*memdoc.Image{3: img},
	})

	profile, err := NewAnalyzer(memdoc.NewOpener(memdoc.Faults{}), codec.NewFlate(), nil).Analyze(path)
	require.NoError(t, err)
	assert.Equal(t, len(strings.TrimSpace(body)), profile.TextLength)
	assert.False(t, LooksLikeCertificate(*profile))
}

func TestAnalyze_TextLayer(t *testing.T) {
	path := writeDoc(t, &memdoc.File{Pages: []memdoc.Page{
		{Content: []byte("q /Im0 Do Q")},
		{Content: []byte("BT (scanned) Tj ET")},
	}})
	opener := memdoc.NewOpener(memdoc.Faults{})

	tests := []struct {
		name     string
		text     stubText
		length   int
		keywords []string
	}{
		{"layer then scan for empty pages", stubText{texts: []string{"  Certificate of\n Completion ", ""}},
			len("Certificate of Completion") + len("scanned"), []string{"certificate", "certificat"}},
		{"extractor error falls back", stubText{err: errors.New("no xref")}, len("scanned"), nil},
		{"page count mismatch falls back", stubText{texts: []string{"Certificate"}}, len("scanned"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(opener, codec.NewFlate(), nil, WithTextExtractor(tt.text))
			profile, err := a.Analyze(path)
			require.NoError(t, err)
			assert.Equal(t, tt.length, profile.TextLength)
			assert.Equal(t, tt.keywords, profile.Keywords)
		})
	}
}

func TestAnalyze_RealPDFTextLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minutes.pdf")
	require.NoError(t, pdftest.Write(path, pdftest.Options{Pages: 2, Lines: 4}))

	opener := pdfdoc.NewOpener(nil)
	scanned, err := NewAnalyzer(opener, codec.NewFlate(), nil).Analyze(path)
	require.NoError(t, err)
	layered, err := NewAnalyzer(opener, codec.NewFlate(), nil, WithTextExtractor(pdfdoc.NewTextReader())).Analyze(path)
	require.NoError(t, err)

	line := len("Page 1 line 1 of the quarterly report")
	assert.GreaterOrEqual(t, scanned.TextLength, 8*line)
	assert.GreaterOrEqual(t, layered.TextLength, 8*line)
	assert.Equal(t, 2, layered.PageCount)
}
