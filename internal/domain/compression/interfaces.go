package compression

import (
	"context"
	"image"
	"time"
)

// Opener opens PDF documents from disk.
type Opener interface {
	Open(path string) (Document, error)
}

// Capabilities is what an opened document supports. It is read once per document.
type Capabilities struct {
	ObjectDedup   bool `json:"object_dedup"`
	StreamRewrite bool `json:"stream_rewrite"`
	ImageRewrite  bool `json:"image_rewrite"`
	PageScaling   bool `json:"page_scaling"`
}

// Security flags features that block modification.
type Security struct {
	Encrypted bool
	Signed    bool
}

// Metadata is the document-level metadata summary.
type Metadata struct {
	Info    map[string]string
	XMPSize int64
}

// Size estimates the bytes metadata occupies in the file.
func (m Metadata) Size() int64 {
	size := m.XMPSize
	for k, v := range m.Info {
		size += int64(len(k) + len(v))
	}
	return size
}

// SaveOptions controls serialization.
type SaveOptions struct {
	DedupeObjects   bool
	RemoveUnused    bool
	CompressStreams bool
}

// Document is an opened PDF.
type Document interface {
	Pages() []Page
	Metadata() Metadata
	Security() Security
	Capabilities() Capabilities
	// StripMetadata removes Info entries not listed in keep and, when dropXMP is set,
	// the catalog XMP stream. It returns the number of entries removed.
	StripMetadata(keep []string, dropXMP bool) (int, error)
	Save(path string, opts SaveOptions) error
	Close() error
}

// Stream is a page content stream as stored in the file.
type Stream struct {
	Data       []byte
	Filters    []string
	StoredSize int
}

// Compressed reports whether the stream carries any filter.
func (s Stream) Compressed() bool {
	return len(s.Filters) > 0
}

// ImageResource is an image XObject referenced from a page.
type ImageResource struct {
	Name             string
	ObjectID         int
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string
	Filter           string
	Data             []byte
	StoredSize       int64
	// Editable is false for image masks, indexed or decode-mapped images the raster codec cannot rebuild.
	Editable bool
}

// FontResource is a font referenced from a page.
type FontResource struct {
	Name         string
	Subtype      string
	BaseFont     string
	Embedded     bool
	FileSize     int64
	FileFiltered bool
}

// Resources lists what a page references.
type Resources struct {
	Images []ImageResource
	Fonts  []FontResource
	Forms  int
}

// EncodedImage is the output of the raster codec.
type EncodedImage struct {
	Data       []byte
	Width      int
	Height     int
	Components int
	Filter     string
}

// ColorSpace returns the device colour space matching the component count.
func (e EncodedImage) ColorSpace() string {
	if e.Components == 1 {
		return "DeviceGray"
	}
	return "DeviceRGB"
}

// Page is one page of an opened document.
type Page interface {
	Number() int
	ContentStream() (Stream, error)
	SetContentStream(data []byte, filters []string) error
	Resources() (Resources, error)
	ReplaceImage(name string, img EncodedImage) error
	RemoveFont(name string) error
	RemoveEntry(key string) (bool, error)
	Annotations() ([]string, error)
	TrimAnnotations(keep func(subtype string) bool) (int, error)
	Scale(factor float64) error
}

// ByteCompressor compresses stream bytes at a strength in 1..9.
type ByteCompressor interface {
	Compress(data []byte, strength int) ([]byte, error)
	// Decompress returns ErrNotCompressed when data is not in the compressor's format.
	Decompress(data []byte) ([]byte, error)
}

// TextExtractor reads a file's text layer, one entry per page.
type TextExtractor interface {
	PageTexts(path string) ([]string, error)
}

// RasterSource is an encoded image handed to the raster codec.
type RasterSource struct {
	Data             []byte
	Filter           string
	Width            int
	Height           int
	Components       int
	BitsPerComponent int
}

// RasterCodec decodes and re-encodes images.
type RasterCodec interface {
	Decode(src RasterSource) (image.Image, error)
	Encode(img image.Image, quality, maxWidth, maxHeight int) (EncodedImage, error)
}

// CacheHit is a cached result.
type CacheHit struct {
	Data       []byte
	Ratio      float64
	Techniques []string
	CreatedAt  time.Time
}

// Cache stores compressed outputs by fingerprint.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*CacheHit, error)
	Put(ctx context.Context, fingerprint string, data []byte, ratio float64, techniques []string) error
}

// Backup keeps copies of files before they are overwritten.
type Backup interface {
	CreateBackup(ctx context.Context, path string) (string, error)
	Restore(ctx context.Context, backupID, targetPath string) (bool, error)
}

// Analytics records finished runs.
type Analytics interface {
	Record(ctx context.Context, outcome CompressionOutcome) error
}
