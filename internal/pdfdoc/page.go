package pdfdoc

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"compactpdf/internal/domain/compression"
)

const filterDCT = "DCTDecode"

// Page addresses one page of a Document by its 1-based number.
type Page struct {
	doc *Document
	nr  int
}

func (p *Page) Number() int {
	return p.nr
}

func (p *Page) dict() (types.Dict, error) {
	pd, _, _, err := p.doc.ctx.PageDict(p.nr, false)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", p.nr, err)
	}
	if pd == nil {
		return nil, fmt.Errorf("page %d: missing page dictionary", p.nr)
	}
	return pd, nil
}

// inherited walks the page tree upwards for an inheritable attribute.
func (p *Page) inherited(pd types.Dict, key string) types.Object {
	d := pd
	for depth := 0; d != nil && depth < 64; depth++ {
		if o, ok := d[key]; ok {
			return p.doc.deref(o)
		}
		parent, ok := p.doc.dict(d["Parent"])
		if !ok {
			return nil
		}
		d = parent
	}
	return nil
}

// ContentStream returns a single unfiltered-or-Flate stream as stored, otherwise the decoded concatenation.
func (p *Page) ContentStream() (compression.Stream, error) {
	pd, err := p.dict()
	if err != nil {
		return compression.Stream{}, err
	}
	ref, ok := pd["Contents"]
	if !ok {
		return compression.Stream{}, nil
	}

	switch obj := p.doc.deref(ref).(type) {
	case types.StreamDict:
		if len(obj.FilterPipeline) == 0 || plainFlate(obj) {
			return compression.Stream{Data: obj.Raw, Filters: filterNames(obj), StoredSize: len(obj.Raw)}, nil
		}
		data, err := decodeStream(obj)
		if err != nil {
			return compression.Stream{}, fmt.Errorf("page %d content: %w", p.nr, err)
		}
		return compression.Stream{Data: data, Filters: filterNames(obj), StoredSize: len(obj.Raw)}, nil

	case types.Array:
		var buf bytes.Buffer
		var filters []string
		stored := 0
		for _, el := range obj {
			sd, ok := p.doc.deref(el).(types.StreamDict)
			if !ok {
				continue
			}
			data, err := decodeStream(sd)
			if err != nil {
				return compression.Stream{}, fmt.Errorf("page %d content: %w", p.nr, err)
			}
			buf.Write(data)
			buf.WriteByte('\n')
			stored += len(sd.Raw)
			for _, f := range filterNames(sd) {
				if !contains(filters, f) {
					filters = append(filters, f)
				}
			}
		}
		return compression.Stream{Data: buf.Bytes(), Filters: filters, StoredSize: stored}, nil
	}

	return compression.Stream{}, fmt.Errorf("page %d: unexpected content object", p.nr)
}

func decodeStream(sd types.StreamDict) ([]byte, error) {
	if err := sd.Decode(); err != nil {
		return nil, err
	}
	return sd.Content, nil
}

// SetContentStream points the page at a new stream object holding data.
func (p *Page) SetContentStream(data []byte, filters []string) error {
	if len(filters) > 1 {
		return fmt.Errorf("page %d: filter chains are not supported", p.nr)
	}
	pd, err := p.dict()
	if err != nil {
		return err
	}

	filter := ""
	if len(filters) == 1 {
		filter = filters[0]
	}
	ir, err := p.doc.ctx.IndRefForNewObject(newStream(data, filter))
	if err != nil {
		return fmt.Errorf("page %d: new content object: %w", p.nr, err)
	}
	pd["Contents"] = *ir
	return nil
}

func (p *Page) resourceDict(pd types.Dict) types.Dict {
	res, _ := p.inherited(pd, "Resources").(types.Dict)
	return res
}

func (p *Page) Resources() (compression.Resources, error) {
	pd, err := p.dict()
	if err != nil {
		return compression.Resources{}, err
	}
	var out compression.Resources
	res := p.resourceDict(pd)
	if res == nil {
		return out, nil
	}

	if xobjects, ok := p.doc.dict(res["XObject"]); ok {
		for resName, ref := range xobjects {
			_, sd, ok := p.doc.streamEntry(ref)
			if !ok {
				continue
			}
			switch name(sd.Dict["Subtype"]) {
			case "Image":
				img := p.imageResource(resName, ref, sd)
				out.Images = append(out.Images, img)
			case "Form":
				out.Forms++
			}
		}
	}

	if fonts, ok := p.doc.dict(res["Font"]); ok {
		for resName, ref := range fonts {
			fd, ok := p.doc.dict(ref)
			if !ok {
				continue
			}
			out.Fonts = append(out.Fonts, p.fontResource(resName, fd))
		}
	}
	return out, nil
}

func (p *Page) imageResource(resName string, ref types.Object, sd types.StreamDict) compression.ImageResource {
	img := compression.ImageResource{
		Name:             resName,
		StoredSize:       int64(len(sd.Raw)),
		BitsPerComponent: 8,
	}
	if ir, ok := ref.(types.IndirectRef); ok {
		img.ObjectID = int(ir.ObjectNumber)
	}
	if w, ok := number(p.doc.deref(sd.Dict["Width"])); ok {
		img.Width = int(w)
	}
	if h, ok := number(p.doc.deref(sd.Dict["Height"])); ok {
		img.Height = int(h)
	}
	if bpc, ok := number(p.doc.deref(sd.Dict["BitsPerComponent"])); ok {
		img.BitsPerComponent = int(bpc)
	}
	filters := filterNames(sd)
	if len(filters) > 0 {
		img.Filter = filters[len(filters)-1]
	}

	cs, components := p.colorSpace(sd.Dict["ColorSpace"])
	img.ColorSpace = cs

	if mask, ok := p.doc.deref(sd.Dict["ImageMask"]).(types.Boolean); ok && bool(mask) {
		return img
	}
	if _, ok := sd.Dict["Decode"]; ok {
		return img
	}
	if components != 1 && components != 3 || img.BitsPerComponent != 8 || len(filters) > 1 {
		return img
	}

	switch {
	case img.Filter == filterDCT:
		img.Data = sd.Raw
		img.Editable = true
	case len(filters) == 0 || img.Filter == "FlateDecode":
		data, err := decodeStream(sd)
		if err != nil || len(data) < img.Width*img.Height*components {
			return img
		}
		img.Data = data
		img.Editable = true
	}
	return img
}

// colorSpace names a colour space and returns its component count, 0 when the codec cannot handle it.
func (p *Page) colorSpace(o types.Object) (string, int) {
	switch cs := p.doc.deref(o).(type) {
	case types.Name:
		switch cs {
		case "DeviceGray", "CalGray":
			return string(cs), 1
		case "DeviceRGB", "CalRGB":
			return string(cs), 3
		}
		return string(cs), 0
	case types.Array:
		if len(cs) == 0 {
			return "", 0
		}
		family := name(cs[0])
		if family == "ICCBased" && len(cs) > 1 {
			if _, sd, ok := p.doc.streamEntry(cs[1]); ok {
				if n, ok := number(p.doc.deref(sd.Dict["N"])); ok && (n == 1 || n == 3) {
					return family, int(n)
				}
			}
		}
		return family, 0
	}
	return "", 0
}

func (p *Page) fontResource(resName string, fd types.Dict) compression.FontResource {
	font := compression.FontResource{
		Name:     resName,
		Subtype:  name(fd["Subtype"]),
		BaseFont: name(fd["BaseFont"]),
	}

	descriptor, ok := p.doc.dict(fd["FontDescriptor"])
	if !ok {
		if descendants, ok := p.doc.deref(fd["DescendantFonts"]).(types.Array); ok && len(descendants) > 0 {
			if child, ok := p.doc.dict(descendants[0]); ok {
				descriptor, _ = p.doc.dict(child["FontDescriptor"])
			}
		}
	}
	if descriptor == nil {
		return font
	}

	for _, key := range []string{"FontFile", "FontFile2", "FontFile3"} {
		if _, sd, ok := p.doc.streamEntry(descriptor[key]); ok {
			font.Embedded = true
			font.FileSize = int64(len(sd.Raw))
			font.FileFiltered = len(sd.FilterPipeline) > 0
			break
		}
	}
	return font
}

// ReplaceImage rewrites the image object in place, so every page sharing it sees the new encoding.
func (p *Page) ReplaceImage(resName string, img compression.EncodedImage) error {
	pd, err := p.dict()
	if err != nil {
		return err
	}
	res := p.resourceDict(pd)
	xobjects, ok := p.doc.dict(res["XObject"])
	if !ok {
		return fmt.Errorf("page %d: no XObject resources", p.nr)
	}
	entry, sd, ok := p.doc.streamEntry(xobjects[resName])
	if !ok {
		return fmt.Errorf("page %d: image %s is not an indirect stream", p.nr, resName)
	}

	sd.Raw = img.Data
	sd.Content = nil
	sd.FilterPipeline = []types.PDFFilter{{Name: img.Filter}}
	l := int64(len(img.Data))
	sd.StreamLength = &l

	sd.Dict["Filter"] = types.Name(img.Filter)
	sd.Dict["Length"] = types.Integer(len(img.Data))
	sd.Dict["Width"] = types.Integer(img.Width)
	sd.Dict["Height"] = types.Integer(img.Height)
	sd.Dict["BitsPerComponent"] = types.Integer(8)
	sd.Dict["ColorSpace"] = types.Name(img.ColorSpace())
	delete(sd.Dict, "DecodeParms")
	delete(sd.Dict, "Decode")

	entry.Object = sd
	return nil
}

// RemoveFont drops a font from a page-private copy of the resources.
func (p *Page) RemoveFont(resName string) error {
	pd, err := p.dict()
	if err != nil {
		return err
	}
	res := p.resourceDict(pd)
	if res == nil {
		return fmt.Errorf("page %d: no resources", p.nr)
	}
	fonts, ok := p.doc.dict(res["Font"])
	if !ok {
		return fmt.Errorf("page %d: no font resources", p.nr)
	}
	if _, ok := fonts[resName]; !ok {
		return fmt.Errorf("page %d: font %s not found", p.nr, resName)
	}

	newFonts := copyDict(fonts)
	delete(newFonts, resName)
	newRes := copyDict(res)
	newRes["Font"] = newFonts
	pd["Resources"] = newRes
	return nil
}

func (p *Page) RemoveEntry(key string) (bool, error) {
	pd, err := p.dict()
	if err != nil {
		return false, err
	}
	if _, ok := pd[key]; !ok {
		return false, nil
	}
	delete(pd, key)
	return true, nil
}

func (p *Page) Annotations() ([]string, error) {
	pd, err := p.dict()
	if err != nil {
		return nil, err
	}
	annots, _ := p.doc.deref(pd["Annots"]).(types.Array)
	subtypes := make([]string, 0, len(annots))
	for _, ref := range annots {
		ad, _ := p.doc.dict(ref)
		subtypes = append(subtypes, name(ad["Subtype"]))
	}
	return subtypes, nil
}

func (p *Page) TrimAnnotations(keep func(subtype string) bool) (int, error) {
	pd, err := p.dict()
	if err != nil {
		return 0, err
	}
	annots, ok := p.doc.deref(pd["Annots"]).(types.Array)
	if !ok {
		return 0, nil
	}

	kept := types.Array{}
	for _, ref := range annots {
		ad, _ := p.doc.dict(ref)
		if keep(name(ad["Subtype"])) {
			kept = append(kept, ref)
		}
	}
	removed := len(annots) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if len(kept) == 0 {
		delete(pd, "Annots")
	} else {
		pd["Annots"] = kept
	}
	return removed, nil
}

// Scale shrinks the page uniformly: content, page boxes and annotation rectangles.
func (p *Page) Scale(factor float64) error {
	if factor <= 0 || factor > 1 {
		return fmt.Errorf("page %d: invalid scale factor %.3f", p.nr, factor)
	}
	pd, err := p.dict()
	if err != nil {
		return err
	}

	content, err := p.decodedContent(pd)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "q %.4f 0 0 %.4f 0 0 cm\n", factor, factor)
	buf.Write(content)
	buf.WriteString("\nQ\n")
	if err := p.SetContentStream(buf.Bytes(), nil); err != nil {
		return err
	}

	for _, key := range []string{"MediaBox", "CropBox"} {
		if box, ok := p.inherited(pd, key).(types.Array); ok {
			pd[key] = scaleArray(box, factor)
		}
	}
	for _, key := range []string{"BleedBox", "TrimBox", "ArtBox"} {
		if box, ok := p.doc.deref(pd[key]).(types.Array); ok {
			pd[key] = scaleArray(box, factor)
		}
	}

	if annots, ok := p.doc.deref(pd["Annots"]).(types.Array); ok {
		for _, ref := range annots {
			ad, ok := p.doc.dict(ref)
			if !ok {
				continue
			}
			if rect, ok := p.doc.deref(ad["Rect"]).(types.Array); ok {
				ad["Rect"] = scaleArray(rect, factor)
			}
		}
	}
	return nil
}

func (p *Page) decodedContent(pd types.Dict) ([]byte, error) {
	switch obj := p.doc.deref(pd["Contents"]).(type) {
	case types.StreamDict:
		return decodeStream(obj)
	case types.Array:
		var buf bytes.Buffer
		for _, el := range obj {
			sd, ok := p.doc.deref(el).(types.StreamDict)
			if !ok {
				continue
			}
			data, err := decodeStream(sd)
			if err != nil {
				return nil, err
			}
			buf.Write(data)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("page %d: unexpected content object", p.nr)
}

func scaleArray(a types.Array, factor float64) types.Array {
	out := make(types.Array, len(a))
	for i, v := range a {
		if n, ok := number(v); ok {
			out[i] = types.Float(n * factor)
		} else {
			out[i] = v
		}
	}
	return out
}
