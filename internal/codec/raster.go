package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"compactpdf/internal/domain/compression"
)

const filterDCT = "DCTDecode"

// Raster decodes PDF image payloads and re-encodes them as baseline JPEG.
type Raster struct{}

// NewRaster creates a new raster codec
func NewRaster() *Raster {
	return &Raster{}
}

// Decode turns a JPEG payload or raw 8-bit samples into an image.
func (r *Raster) Decode(src compression.RasterSource) (image.Image, error) {
	if src.Filter == filterDCT {
		img, err := imaging.Decode(bytes.NewReader(src.Data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		return img, nil
	}
	return decodeSamples(src)
}

// Encode fits img into maxWidth x maxHeight (0 disables the cap) and writes a JPEG at quality.
func (r *Raster) Encode(img image.Image, quality, maxWidth, maxHeight int) (compression.EncodedImage, error) {
	gray := isGray(img)

	out := img
	b := img.Bounds()
	if maxWidth > 0 && maxHeight > 0 && (b.Dx() > maxWidth || b.Dy() > maxHeight) {
		out = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}
	if gray {
		out = toGray(out)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return compression.EncodedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}

	components := 3
	if gray {
		components = 1
	}
	ob := out.Bounds()
	return compression.EncodedImage{
		Data:       buf.Bytes(),
		Width:      ob.Dx(),
		Height:     ob.Dy(),
		Components: components,
		Filter:     filterDCT,
	}, nil
}

func decodeSamples(src compression.RasterSource) (image.Image, error) {
	if src.BitsPerComponent != 8 {
		return nil, fmt.Errorf("unsupported bits per component %d", src.BitsPerComponent)
	}
	if src.Width <= 0 || src.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", src.Width, src.Height)
	}
	need := src.Width * src.Height * src.Components
	if len(src.Data) < need {
		return nil, fmt.Errorf("short sample data: have %d bytes, need %d", len(src.Data), need)
	}

	rect := image.Rect(0, 0, src.Width, src.Height)
	switch src.Components {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, src.Data[:need])
		return img, nil
	case 3:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < need; i, j = i+3, j+4 {
			img.Pix[j] = src.Data[i]
			img.Pix[j+1] = src.Data[i+1]
			img.Pix[j+2] = src.Data[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	}
	return nil, fmt.Errorf("unsupported component count %d", src.Components)
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return img.ColorModel() == color.GrayModel
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
