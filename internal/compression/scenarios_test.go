package compression

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compactpdf/internal/analysis"
	"compactpdf/internal/codec"
	"compactpdf/internal/domain/compression"
	"compactpdf/internal/pdfdoc"
	"compactpdf/internal/pdfdoc/memdoc"
	"compactpdf/internal/pdfdoc/pdftest"
	"compactpdf/internal/recommend"
)

// Ten pages, eight 1600x1600 photos, almost no text, about 5 MB on disk.
func TestScenario_PhotoHeavyAggressive(t *testing.T) {
	e := newEngine(t, memdoc.Faults{})
	input := writeDoc(t, photoDoc(10, 8, 1600, 500_000))
	require.Greater(t, fileSize(t, input), int64(5_000_000))

	out := e.compressor.Compress(context.Background(), Request{
		InputPath:  input,
		OutputPath: tempPath(t, "out.pdf"),
		Level:      compression.LevelAggressive,
	})
	require.True(t, out.Success, out.Error)
	assert.GreaterOrEqual(t, out.Ratio, 0.40)
	assert.True(t, out.ThresholdMet)
	assert.Contains(t, out.TechniquesUsed, compression.TechniqueImageCompression)

	calls := e.codec.Calls()
	require.Len(t, calls, 8)
	for _, c := range calls {
		assert.LessOrEqual(t, c.quality, 60)
		assert.LessOrEqual(t, c.width, 800)
		assert.LessOrEqual(t, c.height, 800)
	}

	saved, err := memdoc.Read(out.OutputPath)
	require.NoError(t, err)
	require.Len(t, saved.Pages, 10)
	require.Len(t, saved.Images, 8)
	for _, img := range saved.Images {
		assert.LessOrEqual(t, img.Width, 800)
		assert.LessOrEqual(t, img.Height, 800)
	}
}

// Text only, already compressed, compressed at minimal.
func TestScenario_CompressedTextMinimal(t *testing.T) {
	e := newEngine(t, memdoc.Faults{})
	strength := compression.ProfileFor(compression.LevelMinimal).StreamStrength
	input := writeDoc(t, compressedTextDoc(t, 5, 400, strength))

	out := e.compressor.Compress(context.Background(), Request{
		InputPath:  input,
		OutputPath: tempPath(t, "out.pdf"),
		Level:      compression.LevelMinimal,
	})
	require.True(t, out.Success, out.Error)
	assert.Equal(t, out.OriginalSize, out.FinalSize)
	assert.Empty(t, out.TechniquesUsed)
	assert.Zero(t, out.Ratio)
	assert.Equal(t, compression.PathPassthrough, out.Path)
}

func TestScenario_EncryptedInput(t *testing.T) {
	e := newEngine(t, memdoc.Faults{})
	f := plainTextDoc(2, 10)
	f.Encrypted = true
	input := writeDoc(t, f)
	before, err := os.ReadFile(input)
	require.NoError(t, err)

	outputPath := tempPath(t, "out.pdf")
	out := e.compressor.Compress(context.Background(), Request{InputPath: input, OutputPath: outputPath, Level: compression.LevelBalanced})
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "unsupported feature")
	assert.Equal(t, out.OriginalSize, out.FinalSize)

	_, err = os.Stat(outputPath)
	assert.True(t, os.IsNotExist(err), "nothing written")
	after, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestScenario_SerializationFailure(t *testing.T) {
	e := newEngine(t, memdoc.Faults{FailSaves: 1})
	input := writeDoc(t, plainTextDoc(4, 60))

	out := e.compressor.Compress(context.Background(), Request{
		InputPath:  input,
		OutputPath: tempPath(t, "out.pdf"),
		Level:      compression.LevelBalanced,
	})
	require.True(t, out.Success, out.Error)
	assert.LessOrEqual(t, out.FinalSize, out.OriginalSize)
	assert.Equal(t, compression.PathSafe, out.Path)

	info, err := os.Stat(out.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, out.FinalSize, info.Size())
	saved, err := memdoc.Read(out.OutputPath)
	require.NoError(t, err)
	assert.Len(t, saved.Pages, 4)
}

// The same photo-heavy run on a real PDF, serialized and reopened by pdfcpu.
func TestScenario_PhotoHeavyAggressivePDF(t *testing.T) {
	images := make([]pdftest.Image, 8)
	for i := range images {
		images[i] = pdftest.Image{Width: 1600, Height: 1600, DCT: true}
	}
	input := tempPath(t, "photos.pdf")
	require.NoError(t, pdftest.Write(input, pdftest.Options{Pages: 10, Images: images}))

	opener := pdfdoc.NewOpener(nil)
	flate := codec.NewFlate()
	orchestrator := NewOrchestrator(opener, NewPipeline(flate, codec.NewRaster(), nil), nil)
	controller := NewController(opener, orchestrator, nil, WithWorkDir(t.TempDir()), WithClassifier(analysis.Never))
	analyzer := analysis.NewAnalyzer(opener, flate, nil, analysis.WithTextExtractor(pdfdoc.NewTextReader()))
	compressor := NewCompressor(analyzer, recommend.NewEngine(nil, nil), controller, nil)

	out := compressor.Compress(context.Background(), Request{
		InputPath:  input,
		OutputPath: tempPath(t, "out.pdf"),
		Level:      compression.LevelAggressive,
	})
	require.True(t, out.Success, out.Error)
	assert.GreaterOrEqual(t, out.Ratio, 0.40)
	assert.Contains(t, out.TechniquesUsed, compression.TechniqueImageCompression)

	level := compression.ProfileFor(compression.LevelAggressive)
	assert.LessOrEqual(t, level.ImageQuality, 60)
	assert.LessOrEqual(t, level.MaxDimension, 800)

	doc, err := opener.Open(out.OutputPath)
	require.NoError(t, err)
	defer doc.Close()
	require.Len(t, doc.Pages(), 10)

	res, err := doc.Pages()[9].Resources()
	require.NoError(t, err)
	require.Len(t, res.Images, 8)
	for _, img := range res.Images {
		assert.Equal(t, "DCTDecode", img.Filter, img.Name)
		assert.LessOrEqual(t, img.Width, 800, img.Name)
		assert.LessOrEqual(t, img.Height, 800, img.Name)
	}
}
