package compression

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"compactpdf/internal/analysis"
	"compactpdf/internal/codec"
	"compactpdf/internal/domain/compression"
	"compactpdf/internal/pdfdoc/memdoc"
	"compactpdf/internal/recommend"
)

// sizedImage is an image that only carries its bounds.
type sizedImage struct{ w, h int }

func (s sizedImage) ColorModel() color.Model { return color.RGBAModel }
func (s sizedImage) Bounds() image.Rectangle { return image.Rect(0, 0, s.w, s.h) }
func (s sizedImage) At(int, int) color.Color { return color.RGBA{} }

type encodeCall struct {
	quality, maxW, maxH int
	width, height       int
}

// fakeCodec encodes to a payload whose size tracks pixel count and quality.
type fakeCodec struct {
	mu         sync.Mutex
	calls      []encodeCall
	failDecode bool
}

func (f *fakeCodec) Decode(src compression.RasterSource) (image.Image, error) {
	if f.failDecode {
		return nil, fmt.Errorf("fake decode failure")
	}
	return sizedImage{src.Width, src.Height}, nil
}

func (f *fakeCodec) Encode(img image.Image, quality, maxW, maxH int) (compression.EncodedImage, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w > maxW || h > maxH {
		scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
		w, h = max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
	}
	f.mu.Lock()
	f.calls = append(f.calls, encodeCall{quality: quality, maxW: maxW, maxH: maxH, width: w, height: h})
	f.mu.Unlock()

	size := max(1, w*h*quality/800)
	return compression.EncodedImage{
		Data:       bytes.Repeat([]byte{0xAB}, size),
		Width:      w,
		Height:     h,
		Components: 3,
		Filter:     "DCTDecode",
	}, nil
}

func (f *fakeCodec) Calls() []encodeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]encodeCall(nil), f.calls...)
}

type engine struct {
	opener       *memdoc.Opener
	codec        *fakeCodec
	pipeline     *Pipeline
	orchestrator *Orchestrator
	controller   *Controller
	compressor   *Compressor
}

func newEngine(t *testing.T, faults memdoc.Faults, opts ...ControllerOption) *engine {
	t.Helper()
	opener := memdoc.NewOpener(faults)
	fc := &fakeCodec{}
	flate := codec.NewFlate()
	pipeline := NewPipeline(flate, fc, nil)
	orchestrator := NewOrchestrator(opener, pipeline, nil)
	opts = append([]ControllerOption{WithWorkDir(t.TempDir())}, opts...)
	controller := NewController(opener, orchestrator, nil, opts...)
	compressor := NewCompressor(analysis.NewAnalyzer(opener, flate, nil), recommend.NewEngine(nil, nil), controller, nil)
	return &engine{
		opener:       opener,
		codec:        fc,
		pipeline:     pipeline,
		orchestrator: orchestrator,
		controller:   controller,
		compressor:   compressor,
	}
}

func writeDoc(t *testing.T, f *memdoc.File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.pdf")
	require.NoError(t, memdoc.Write(path, f))
	return path
}

func openDoc(t *testing.T, opener *memdoc.Opener, path string) compression.Document {
	t.Helper()
	doc, err := opener.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { doc.Close() })
	return doc
}

func deflate(t *testing.T, data []byte, strength int) []byte {
	t.Helper()
	out, err := codec.NewFlate().Compress(data, strength)
	require.NoError(t, err)
	return out
}

// textContent builds a page content stream with n lines of text.
func textContent(page, n int) []byte {
	var sb strings.Builder
	sb.WriteString("BT /F1 11 Tf 72 720 Td\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "(Page %d line %d: the quick brown fox jumps over the lazy dog) Tj T*\n", page, i)
	}
	sb.WriteString("ET\n")
	return []byte(sb.String())
}

func plainTextDoc(pages, lines int) *memdoc.File {
	f := &memdoc.File{}
	for i := 1; i <= pages; i++ {
		f.Pages = append(f.Pages, memdoc.Page{
			Content: textContent(i, lines),
			Fonts:   []memdoc.Font{{Name: "F1", Subtype: "Type1"}},
		})
	}
	return f
}

// compressedTextDoc stores content deflated at strength, so recompressing at that strength cannot shrink it.
func compressedTextDoc(t *testing.T, pages, lines, strength int) *memdoc.File {
	f := plainTextDoc(pages, lines)
	for i := range f.Pages {
		f.Pages[i].Content = deflate(t, f.Pages[i].Content, strength)
		f.Pages[i].Filters = []string{"FlateDecode"}
	}
	return f
}

// photoDoc has one large DCT image per page on the first images pages.
func photoDoc(pages, images, side, stored int) *memdoc.File {
	f := &memdoc.File{Images: map[int]*memdoc.Image{}}
	for i := 1; i <= pages; i++ {
		p := memdoc.Page{Content: []byte("q 500 0 0 500 50 50 cm /Im0 Do Q\n")}
		if i <= images {
			f.Images[i] = &memdoc.Image{
				Width:            side,
				Height:           side,
				BitsPerComponent: 8,
				ColorSpace:       "DeviceRGB",
				Filter:           "DCTDecode",
				Data:             bytes.Repeat([]byte{byte(i)}, stored),
			}
			p.Images = map[string]int{"Im0": i}
		}
		f.Pages = append(f.Pages, p)
	}
	return f
}

func always(compression.DocumentProfile) bool { return true }

func tempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
