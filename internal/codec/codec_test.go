package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compactpdf/internal/domain/compression"
)

func TestFlate_RoundTrip(t *testing.T) {
	f := NewFlate()
	data := bytes.Repeat([]byte("BT /F1 12 Tf 72 712 Td (Hello) Tj ET\n"), 200)

	tests := []struct {
		name     string
		strength int
	}{
		{"fastest", 1},
		{"default", 6},
		{"best", 9},
		{"clamped low", -3},
		{"clamped high", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := f.Compress(data, tt.strength)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(data))

			out, err := f.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestFlate_DecompressPlainData(t *testing.T) {
	f := NewFlate()

	for _, input := range [][]byte{nil, []byte("q"), []byte("BT (plain) Tj ET")} {
		_, err := f.Decompress(input)
		assert.ErrorIs(t, err, compression.ErrNotCompressed)
	}
}

func TestFlate_DecompressCorrupt(t *testing.T) {
	f := NewFlate()
	compressed, err := f.Compress(bytes.Repeat([]byte("abc"), 100), 6)
	require.NoError(t, err)

	corrupt := append([]byte{}, compressed[:len(compressed)/2]...)
	_, err = f.Decompress(corrupt)
	require.Error(t, err)
	assert.NotErrorIs(t, err, compression.ErrNotCompressed)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 0xff})
		}
	}
	return img
}

func TestRaster_EncodeCapsDimensions(t *testing.T) {
	r := NewRaster()

	enc, err := r.Encode(gradient(400, 200), 60, 100, 100)
	require.NoError(t, err)

	assert.Equal(t, 100, enc.Width)
	assert.Equal(t, 50, enc.Height)
	assert.Equal(t, 3, enc.Components)
	assert.Equal(t, "DCTDecode", enc.Filter)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(enc.Data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestRaster_EncodeKeepsSmallImages(t *testing.T) {
	r := NewRaster()

	enc, err := r.Encode(gradient(64, 32), 80, 800, 800)
	require.NoError(t, err)
	assert.Equal(t, 64, enc.Width)
	assert.Equal(t, 32, enc.Height)
}

func TestRaster_DecodeSamples(t *testing.T) {
	r := NewRaster()

	t.Run("rgb", func(t *testing.T) {
		data := bytes.Repeat([]byte{10, 20, 30}, 4*3)
		img, err := r.Decode(compression.RasterSource{Data: data, Width: 4, Height: 3, Components: 3, BitsPerComponent: 8})
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
		red, green, blue, _ := img.At(2, 1).RGBA()
		assert.Equal(t, uint32(10), red>>8)
		assert.Equal(t, uint32(20), green>>8)
		assert.Equal(t, uint32(30), blue>>8)
	})

	t.Run("gray stays gray", func(t *testing.T) {
		data := bytes.Repeat([]byte{128}, 16*16)
		img, err := r.Decode(compression.RasterSource{Data: data, Width: 16, Height: 16, Components: 1, BitsPerComponent: 8})
		require.NoError(t, err)

		enc, err := r.Encode(img, 70, 8, 8)
		require.NoError(t, err)
		assert.Equal(t, 1, enc.Components)
		assert.Equal(t, "DeviceGray", enc.ColorSpace())
	})

	t.Run("short data", func(t *testing.T) {
		_, err := r.Decode(compression.RasterSource{Data: []byte{1, 2}, Width: 4, Height: 4, Components: 3, BitsPerComponent: 8})
		assert.Error(t, err)
	})

	t.Run("unsupported depth", func(t *testing.T) {
		_, err := r.Decode(compression.RasterSource{Data: make([]byte, 64), Width: 4, Height: 4, Components: 1, BitsPerComponent: 1})
		assert.Error(t, err)
	})
}

func TestRaster_DecodeJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(50, 40), &jpeg.Options{Quality: 90}))

	r := NewRaster()
	img, err := r.Decode(compression.RasterSource{Data: buf.Bytes(), Filter: "DCTDecode"})
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
}
