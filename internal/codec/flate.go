// Package codec provides the byte compressor and raster codec used by the page pipeline.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"compactpdf/internal/domain/compression"
)

// Flate compresses PDF streams with zlib framing, which is what /FlateDecode expects.
type Flate struct{}

// NewFlate creates a new Flate compressor
func NewFlate() *Flate {
	return &Flate{}
}

// Compress deflates data at strength 1..9; values outside the range are clamped.
func (f *Flate) Compress(data []byte, strength int) ([]byte, error) {
	if strength < zlib.BestSpeed {
		strength = zlib.BestSpeed
	}
	if strength > zlib.BestCompression {
		strength = zlib.BestCompression
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, strength)
	if err != nil {
		return nil, fmt.Errorf("create zlib writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish deflate: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates zlib data. Data without a zlib header yields ErrNotCompressed.
func (f *Flate) Decompress(data []byte) ([]byte, error) {
	if !hasZlibHeader(data) {
		return nil, compression.ErrNotCompressed
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, compression.ErrNotCompressed
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

// hasZlibHeader checks the CMF/FLG pair of RFC 1950.
func hasZlibHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	if cmf&0x0f != 8 || cmf>>4 > 7 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}
