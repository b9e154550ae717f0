// Package pdftest writes small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/disintegration/imaging"
)

// Image is an image XObject drawn on every page.
type Image struct {
	Width  int
	Height int
	// DCT stores the samples as a JPEG, otherwise as raw 8-bit DeviceRGB bytes.
	DCT bool
	// Quality of the JPEG encoding, 95 when zero.
	Quality int
}

// Options shapes the generated document.
type Options struct {
	Pages int
	// Lines of text per page, written to an unfiltered content stream.
	Lines int
	Title string
	// Info adds extra document information entries.
	Info map[string]string
	// Images are shared by all pages under the names Im1, Im2, ...
	Images []Image
	// UnusedFont adds a Courier resource F2 that no content stream selects.
	UnusedFont bool
	// Annotations puts a Link and a Text annotation on the first page.
	Annotations bool
	// Signed adds an AcroForm with a signature field and SigFlags 3.
	Signed bool
}

// Build returns the bytes of a PDF with one Helvetica text stream per page.
func Build(opts Options) []byte {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}

	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("") // filled once the page tree exists
	pages := add("")
	fonts := fmt.Sprintf("/F1 %d 0 R", add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"))
	if opts.UnusedFont {
		fonts += fmt.Sprintf(" /F2 %d 0 R", add("<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>"))
	}

	var xobjects []string
	for i, img := range opts.Images {
		ref := add(imageObject(img, i+1))
		xobjects = append(xobjects, fmt.Sprintf("/Im%d %d 0 R", i+1, ref))
	}

	resources := fmt.Sprintf("<< /Font << %s >>", fonts)
	if len(xobjects) > 0 {
		resources += fmt.Sprintf(" /XObject << %s >>", strings.Join(xobjects, " "))
	}
	resources += " >>"

	var firstAnnots []string
	if opts.Annotations {
		link := add("<< /Type /Annot /Subtype /Link /Rect [72 700 200 720] /Border [0 0 0] /A << /S /URI /URI (https://example.com) >> >>")
		note := add("<< /Type /Annot /Subtype /Text /Rect [300 700 320 720] /Contents (Reviewed) >>")
		firstAnnots = append(firstAnnots, fmt.Sprintf("%d 0 R", link), fmt.Sprintf("%d 0 R", note))
	}
	var acroForm string
	if opts.Signed {
		sig := add("<< /Type /Annot /Subtype /Widget /FT /Sig /T (Signature1) /Rect [0 0 0 0] /F 132 >>")
		firstAnnots = append(firstAnnots, fmt.Sprintf("%d 0 R", sig))
		acroForm = fmt.Sprintf(" /AcroForm << /Fields [%d 0 R] /SigFlags 3 >>", sig)
	}

	var kids []string
	for p := 1; p <= opts.Pages; p++ {
		content := pageContent(p, opts.Lines, len(opts.Images))
		stream := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		annots := ""
		if p == 1 && len(firstAnnots) > 0 {
			annots = fmt.Sprintf(" /Annots [%s]", strings.Join(firstAnnots, " "))
		}
		page := add(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources %s /Contents %d 0 R%s >>",
			pages, resources, stream, annots))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R%s >>", pages, acroForm)
	objects[pages-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), opts.Pages)

	var info strings.Builder
	info.WriteString("<< /Producer (pdftest) /Creator (pdftest)")
	if opts.Title != "" {
		fmt.Fprintf(&info, " /Title (%s)", opts.Title)
	}
	for k, v := range opts.Info {
		fmt.Fprintf(&info, " /%s (%s)", k, v)
	}
	info.WriteString(" >>")
	infoObj := add(info.String())

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, catalog, infoObj, xref)
	return buf.Bytes()
}

// Write builds a document and stores it at path.
func Write(path string, opts Options) error {
	return os.WriteFile(path, Build(opts), 0644)
}

func pageContent(page, lines, images int) string {
	var b strings.Builder
	b.WriteString("BT /F1 10 Tf 72 760 Td 12 TL\n")
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "(Page %d line %d of the quarterly report) '\n", page, i+1)
	}
	b.WriteString("ET")
	for i := 1; i <= images; i++ {
		fmt.Fprintf(&b, "\nq 120 0 0 90 %d 100 cm /Im%d Do Q", 40+(i-1)%4*130, i)
	}
	return b.String()
}

func imageObject(img Image, seed int) string {
	data := Samples(img.Width, img.Height, seed)
	filter := ""
	if img.DCT {
		data = jpegBytes(img, data)
		filter = " /Filter /DCTDecode"
	}
	return fmt.Sprintf(
		"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8%s /Length %d >>\nstream\n%s\nendstream",
		img.Width, img.Height, filter, len(data), data)
}

// Samples returns w*h RGB triplets: a gradient with deterministic grain, so encoders cannot collapse it.
func Samples(w, h, seed int) []byte {
	out := make([]byte, 0, w*h*3)
	state := uint32(seed)*2654435761 + 1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			state ^= state << 13
			state ^= state >> 17
			state ^= state << 5
			grain := int(state%48) - 24
			out = append(out,
				clamp(x*255/max(1, w-1)+grain),
				clamp(y*255/max(1, h-1)+grain),
				clamp((x+y+seed*40)%256+grain))
		}
	}
	return out
}

func jpegBytes(img Image, samples []byte) []byte {
	quality := img.Quality
	if quality == 0 {
		quality = 95
	}
	raster := imaging.New(img.Width, img.Height, color.NRGBA{})
	for i, j := 0, 0; i+2 < len(samples); i, j = i+3, j+4 {
		raster.Pix[j] = samples[i]
		raster.Pix[j+1] = samples[i+1]
		raster.Pix[j+2] = samples[i+2]
		raster.Pix[j+3] = 0xff
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, raster, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		panic(fmt.Sprintf("pdftest: encode jpeg: %v", err))
	}
	return buf.Bytes()
}

func clamp(v int) byte {
	return byte(min(255, max(0, v)))
}
