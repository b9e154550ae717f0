package pdfdoc

import (
	"bytes"
	"compress/zlib"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compactpdf/internal/codec"
	"compactpdf/internal/domain/compression"
	"compactpdf/internal/pdfdoc/pdftest"
)

func writeSample(t *testing.T, opts pdftest.Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.pdf")
	require.NoError(t, pdftest.Write(path, opts))
	return path
}

func open(t *testing.T, path string) compression.Document {
	t.Helper()
	doc, err := NewOpener(nil).Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { doc.Close() })
	return doc
}

func TestOpen_ReadsStructure(t *testing.T) {
	path := writeSample(t, pdftest.Options{Pages: 3, Lines: 5, Title: "Quarterly", Info: map[string]string{"Author": "Ops"}})
	doc := open(t, path)

	require.Len(t, doc.Pages(), 3)
	assert.Equal(t, 2, doc.Pages()[1].Number())

	sec := doc.Security()
	assert.False(t, sec.Encrypted)
	assert.False(t, sec.Signed)

	md := doc.Metadata()
	assert.Equal(t, "Quarterly", md.Info["Title"])
	assert.Equal(t, "Ops", md.Info["Author"])
	assert.Positive(t, md.Size())

	caps := doc.Capabilities()
	assert.True(t, caps.StreamRewrite)
}

func TestOpen_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0644))

	_, err := NewOpener(nil).Open(path)
	assert.Error(t, err)

	_, err = NewOpener(nil).Open(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestPage_ContentAndResources(t *testing.T) {
	doc := open(t, writeSample(t, pdftest.Options{Pages: 1, Lines: 4}))
	page := doc.Pages()[0]

	stream, err := page.ContentStream()
	require.NoError(t, err)
	assert.False(t, stream.Compressed())
	assert.Contains(t, string(stream.Data), "line 4")
	assert.Equal(t, len(stream.Data), stream.StoredSize)

	res, err := page.Resources()
	require.NoError(t, err)
	require.Len(t, res.Fonts, 1)
	assert.Equal(t, "F1", res.Fonts[0].Name)
	assert.False(t, res.Fonts[0].Embedded)
	assert.Empty(t, res.Images)
}

func TestSave_RoundTripsRewrittenContent(t *testing.T) {
	src := writeSample(t, pdftest.Options{Pages: 2, Lines: 200, Title: "Keep", Info: map[string]string{"Keywords": "drop"}})
	doc := open(t, src)

	page := doc.Pages()[0]
	stream, err := page.ContentStream()
	require.NoError(t, err)

	var packed bytes.Buffer
	zw, err := zlib.NewWriterLevel(&packed, zlib.BestCompression)
	require.NoError(t, err)
	_, err = zw.Write(stream.Data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, page.SetContentStream(packed.Bytes(), []string{"FlateDecode"}))

	removed, err := doc.StripMetadata([]string{"Title"}, true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 1)

	out := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, doc.Save(out, compression.SaveOptions{CompressStreams: true}))

	reopened := open(t, out)
	require.Len(t, reopened.Pages(), 2)
	assert.Equal(t, "Keep", reopened.Metadata().Info["Title"])
	assert.NotContains(t, reopened.Metadata().Info, "Keywords")

	rewritten, err := reopened.Pages()[0].ContentStream()
	require.NoError(t, err)
	assert.Equal(t, []string{"FlateDecode"}, rewritten.Filters)
	assert.Less(t, rewritten.StoredSize, stream.StoredSize)

	untouched, err := reopened.Pages()[1].ContentStream()
	require.NoError(t, err)
	assert.False(t, untouched.Compressed())

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Page 2 line 1 of the quarterly report")
	assert.NotContains(t, string(raw), "Page 1 line 1", "replaced content stream is not written")
}

func TestPage_Scale(t *testing.T) {
	src := writeSample(t, pdftest.Options{Pages: 1, Lines: 2})
	doc := open(t, src)

	require.NoError(t, doc.Pages()[0].Scale(0.5))

	out := filepath.Join(t.TempDir(), "scaled.pdf")
	require.NoError(t, doc.Save(out, compression.SaveOptions{}))

	reopened := open(t, out)
	stream, err := reopened.Pages()[0].ContentStream()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(stream.Data), "q 0.5000 0 0 0.5000 0 0 cm"))
}

func TestIsPasswordError(t *testing.T) {
	assert.True(t, isPasswordError(errors.New("pdfcpu: please provide the correct password")))
	assert.True(t, isPasswordError(errors.New("unsupported encryption")))
	assert.False(t, isPasswordError(errors.New("xref corrupt")))
}

func imageNamed(t *testing.T, page compression.Page, name string) compression.ImageResource {
	t.Helper()
	res, err := page.Resources()
	require.NoError(t, err)
	for _, img := range res.Images {
		if img.Name == name {
			return img
		}
	}
	require.Failf(t, "image not found", "page %d has no %s", page.Number(), name)
	return compression.ImageResource{}
}

func TestPage_ImageResources(t *testing.T) {
	doc := open(t, writeSample(t, pdftest.Options{
		Pages:  2,
		Images: []pdftest.Image{{Width: 64, Height: 48}, {Width: 320, Height: 200, DCT: true}},
	}))

	raw := imageNamed(t, doc.Pages()[0], "Im1")
	assert.Equal(t, 64, raw.Width)
	assert.Equal(t, 48, raw.Height)
	assert.Equal(t, "", raw.Filter)
	assert.Equal(t, "DeviceRGB", raw.ColorSpace)
	assert.True(t, raw.Editable)
	assert.Len(t, raw.Data, 64*48*3)

	jpeg := imageNamed(t, doc.Pages()[0], "Im2")
	assert.Equal(t, "DCTDecode", jpeg.Filter)
	assert.True(t, jpeg.Editable)
	assert.Equal(t, int64(len(jpeg.Data)), jpeg.StoredSize)

	shared := imageNamed(t, doc.Pages()[1], "Im2")
	assert.NotZero(t, jpeg.ObjectID)
	assert.Equal(t, jpeg.ObjectID, shared.ObjectID)
}

func TestPage_ReplaceImageRoundTrip(t *testing.T) {
	doc := open(t, writeSample(t, pdftest.Options{
		Pages:  2,
		Lines:  3,
		Images: []pdftest.Image{{Width: 1600, Height: 1200, DCT: true}},
	}))
	page := doc.Pages()[0]
	before := imageNamed(t, page, "Im1")

	raster := codec.NewRaster()
	decoded, err := raster.Decode(compression.RasterSource{
		Data: before.Data, Filter: before.Filter, Width: before.Width, Height: before.Height,
		BitsPerComponent: before.BitsPerComponent, Components: 3,
	})
	require.NoError(t, err)
	encoded, err := raster.Encode(decoded, 60, 800, 800)
	require.NoError(t, err)
	require.Less(t, len(encoded.Data), len(before.Data))
	require.NoError(t, page.ReplaceImage("Im1", encoded))

	out := filepath.Join(t.TempDir(), "images.pdf")
	require.NoError(t, doc.Save(out, compression.SaveOptions{DedupeObjects: true, RemoveUnused: true, CompressStreams: true}))

	reopened := open(t, out)
	require.Len(t, reopened.Pages(), 2)
	for _, p := range reopened.Pages() {
		img := imageNamed(t, p, "Im1")
		assert.Equal(t, "DCTDecode", img.Filter)
		assert.Equal(t, 800, img.Width)
		assert.Equal(t, 600, img.Height)
		assert.Equal(t, "DeviceRGB", img.ColorSpace)
		assert.True(t, img.Editable)

		stored, err := imaging.Decode(bytes.NewReader(img.Data))
		require.NoError(t, err)
		assert.Equal(t, 800, stored.Bounds().Dx())
		assert.Equal(t, 600, stored.Bounds().Dy())
	}
}

func TestPage_RemoveFont(t *testing.T) {
	doc := open(t, writeSample(t, pdftest.Options{Pages: 2, Lines: 2, UnusedFont: true}))
	page := doc.Pages()[0]

	require.NoError(t, page.RemoveFont("F2"))
	assert.Error(t, page.RemoveFont("F9"))

	out := filepath.Join(t.TempDir(), "fonts.pdf")
	require.NoError(t, doc.Save(out, compression.SaveOptions{}))

	reopened := open(t, out)
	first, err := reopened.Pages()[0].Resources()
	require.NoError(t, err)
	require.Len(t, first.Fonts, 1)
	assert.Equal(t, "F1", first.Fonts[0].Name)

	second, err := reopened.Pages()[1].Resources()
	require.NoError(t, err)
	assert.Len(t, second.Fonts, 2)
}

func TestPage_TrimAnnotations(t *testing.T) {
	doc := open(t, writeSample(t, pdftest.Options{Pages: 1, Lines: 1, Annotations: true}))
	page := doc.Pages()[0]

	subtypes, err := page.Annotations()
	require.NoError(t, err)
	assert.Equal(t, []string{"Link", "Text"}, subtypes)

	removed, err := page.TrimAnnotations(func(subtype string) bool { return subtype == "Link" })
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	out := filepath.Join(t.TempDir(), "annots.pdf")
	require.NoError(t, doc.Save(out, compression.SaveOptions{}))

	subtypes, err = open(t, out).Pages()[0].Annotations()
	require.NoError(t, err)
	assert.Equal(t, []string{"Link"}, subtypes)
}

func TestSecurity_SignedViaSigFlags(t *testing.T) {
	doc := open(t, writeSample(t, pdftest.Options{Pages: 1, Lines: 1, Signed: true}))
	sec := doc.Security()
	assert.True(t, sec.Signed)
	assert.False(t, sec.Encrypted)
}

func TestTextReader_PageTexts(t *testing.T) {
	path := writeSample(t, pdftest.Options{Pages: 2, Lines: 3})

	texts, err := NewTextReader().PageTexts(path)
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Page 1 line 1 of the quarterly report")
	assert.Contains(t, texts[1], "Page 2 line 3")

	_, err = NewTextReader().PageTexts(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
