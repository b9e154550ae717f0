// Package memdoc is a JSON-backed document model for exercising the engine without real PDFs.
// Files written here are not PDFs; their size still tracks the payload they carry.
package memdoc

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"compactpdf/internal/domain/compression"
)

// Image is a shared image object.
type Image struct {
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	BitsPerComponent int    `json:"bpc"`
	ColorSpace       string `json:"color_space"`
	Filter           string `json:"filter"`
	Data             []byte `json:"data"`
	Locked           bool   `json:"locked,omitempty"`
}

// Font is a page font resource.
type Font struct {
	Name     string `json:"name"`
	Subtype  string `json:"subtype"`
	Embedded bool   `json:"embedded"`
	Program  []byte `json:"program,omitempty"`
}

// Page is a page record.
type Page struct {
	Content []byte            `json:"content"`
	Filters []string          `json:"filters,omitempty"`
	Images  map[string]int    `json:"images,omitempty"`
	Fonts   []Font            `json:"fonts,omitempty"`
	Forms   int               `json:"forms,omitempty"`
	Entries map[string]string `json:"entries,omitempty"`
	Annots  []string          `json:"annots,omitempty"`
	Scale   float64           `json:"scale,omitempty"`
}

// File is the serialized document.
type File struct {
	Pages        []Page                    `json:"pages"`
	Images       map[int]*Image            `json:"images,omitempty"`
	Info         map[string]string         `json:"info,omitempty"`
	XMP          []byte                    `json:"xmp,omitempty"`
	Encrypted    bool                      `json:"encrypted,omitempty"`
	Signed       bool                      `json:"signed,omitempty"`
	Capabilities *compression.Capabilities `json:"capabilities,omitempty"`
	// Padding stands in for bytes the engine cannot touch.
	Padding []byte `json:"padding,omitempty"`
}

// Write stores f at path.
func Write(path string, f *File) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads a file written by Write or Document.Save.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("memdoc: %w", err)
	}
	return &f, nil
}

// Faults injects failures into documents opened by an Opener.
type Faults struct {
	// FailPages makes every operation on the listed page numbers fail.
	FailPages map[int]bool
	// PanicPages makes every operation on the listed page numbers panic.
	PanicPages map[int]bool
	// FailSaves is the number of Save calls that fail before saves succeed.
	FailSaves int
	// EmptySaves is the number of Save calls that write an empty file.
	EmptySaves int
}

// Opener opens memdoc files and counts calls.
type Opener struct {
	Faults Faults

	mu    sync.Mutex
	opens int
	saves int
}

// NewOpener creates an opener with the given faults.
func NewOpener(faults Faults) *Opener {
	return &Opener{Faults: faults}
}

func (o *Opener) Open(path string) (compression.Document, error) {
	o.mu.Lock()
	o.opens++
	o.mu.Unlock()

	f, err := Read(path)
	if err != nil {
		return nil, err
	}
	if f.Images == nil {
		f.Images = map[int]*Image{}
	}
	doc := &Document{file: f, opener: o}
	for i := range f.Pages {
		doc.pages = append(doc.pages, &pageHandle{doc: doc, idx: i})
	}
	return doc, nil
}

// Opens returns how many documents were opened.
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// Saves returns how many Save calls were made, failed ones included.
func (o *Opener) Saves() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.saves
}

func (o *Opener) nextSave() (fail, empty bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.saves++
	if o.Faults.FailSaves > 0 {
		o.Faults.FailSaves--
		return true, false
	}
	if o.Faults.EmptySaves > 0 {
		o.Faults.EmptySaves--
		return false, true
	}
	return false, false
}

// Document is an opened memdoc file.
type Document struct {
	file   *File
	pages  []compression.Page
	opener *Opener
}

func (d *Document) Pages() []compression.Page { return d.pages }

func (d *Document) Metadata() compression.Metadata {
	info := make(map[string]string, len(d.file.Info))
	for k, v := range d.file.Info {
		info[k] = v
	}
	return compression.Metadata{Info: info, XMPSize: int64(len(d.file.XMP))}
}

func (d *Document) Security() compression.Security {
	return compression.Security{Encrypted: d.file.Encrypted, Signed: d.file.Signed}
}

func (d *Document) Capabilities() compression.Capabilities {
	if d.file.Capabilities != nil {
		return *d.file.Capabilities
	}
	return compression.Capabilities{ObjectDedup: true, StreamRewrite: true, ImageRewrite: true, PageScaling: true}
}

func (d *Document) StripMetadata(keep []string, dropXMP bool) (int, error) {
	removed := 0
	for k := range d.file.Info {
		if !contains(keep, k) {
			delete(d.file.Info, k)
			removed++
		}
	}
	if dropXMP && len(d.file.XMP) > 0 {
		d.file.XMP = nil
		removed++
	}
	return removed, nil
}

func (d *Document) Save(path string, opts compression.SaveOptions) error {
	fail, empty := d.opener.nextSave()
	if fail {
		return fmt.Errorf("memdoc: simulated serialization failure")
	}
	if empty {
		return os.WriteFile(path, nil, 0o644)
	}

	out := *d.file
	if opts.RemoveUnused {
		used := map[int]bool{}
		for _, p := range out.Pages {
			for _, id := range p.Images {
				used[id] = true
			}
		}
		images := map[int]*Image{}
		for id, img := range out.Images {
			if used[id] {
				images[id] = img
			}
		}
		out.Images = images
	}
	return Write(path, &out)
}

func (d *Document) Close() error { return nil }

type pageHandle struct {
	doc *Document
	idx int
}

func (p *pageHandle) page() (*Page, error) {
	nr := p.idx + 1
	if p.doc.opener.Faults.PanicPages[nr] {
		panic(fmt.Sprintf("memdoc: simulated panic on page %d", nr))
	}
	if p.doc.opener.Faults.FailPages[nr] {
		return nil, fmt.Errorf("memdoc: simulated failure on page %d", nr)
	}
	return &p.doc.file.Pages[p.idx], nil
}

func (p *pageHandle) Number() int { return p.idx + 1 }

func (p *pageHandle) ContentStream() (compression.Stream, error) {
	pg, err := p.page()
	if err != nil {
		return compression.Stream{}, err
	}
	return compression.Stream{Data: pg.Content, Filters: pg.Filters, StoredSize: len(pg.Content)}, nil
}

func (p *pageHandle) SetContentStream(data []byte, filters []string) error {
	pg, err := p.page()
	if err != nil {
		return err
	}
	pg.Content = data
	pg.Filters = filters
	return nil
}

func (p *pageHandle) Resources() (compression.Resources, error) {
	pg, err := p.page()
	if err != nil {
		return compression.Resources{}, err
	}
	var res compression.Resources

	names := make([]string, 0, len(pg.Images))
	for n := range pg.Images {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		id := pg.Images[n]
		img, ok := p.doc.file.Images[id]
		if !ok {
			continue
		}
		res.Images = append(res.Images, compression.ImageResource{
			Name:             n,
			ObjectID:         id,
			Width:            img.Width,
			Height:           img.Height,
			BitsPerComponent: img.BitsPerComponent,
			ColorSpace:       img.ColorSpace,
			Filter:           img.Filter,
			Data:             img.Data,
			StoredSize:       int64(len(img.Data)),
			Editable:         !img.Locked,
		})
	}
	for _, f := range pg.Fonts {
		res.Fonts = append(res.Fonts, compression.FontResource{
			Name:     f.Name,
			Subtype:  f.Subtype,
			Embedded: f.Embedded,
			FileSize: int64(len(f.Program)),
		})
	}
	res.Forms = pg.Forms
	return res, nil
}

func (p *pageHandle) ReplaceImage(name string, enc compression.EncodedImage) error {
	pg, err := p.page()
	if err != nil {
		return err
	}
	id, ok := pg.Images[name]
	if !ok {
		return fmt.Errorf("memdoc: image %s not found", name)
	}
	p.doc.file.Images[id] = &Image{
		Width:            enc.Width,
		Height:           enc.Height,
		BitsPerComponent: 8,
		ColorSpace:       enc.ColorSpace(),
		Filter:           enc.Filter,
		Data:             enc.Data,
	}
	return nil
}

func (p *pageHandle) RemoveFont(name string) error {
	pg, err := p.page()
	if err != nil {
		return err
	}
	for i, f := range pg.Fonts {
		if f.Name == name {
			pg.Fonts = append(pg.Fonts[:i:i], pg.Fonts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memdoc: font %s not found", name)
}

func (p *pageHandle) RemoveEntry(key string) (bool, error) {
	pg, err := p.page()
	if err != nil {
		return false, err
	}
	if _, ok := pg.Entries[key]; !ok {
		return false, nil
	}
	delete(pg.Entries, key)
	return true, nil
}

func (p *pageHandle) Annotations() ([]string, error) {
	pg, err := p.page()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), pg.Annots...), nil
}

func (p *pageHandle) TrimAnnotations(keep func(subtype string) bool) (int, error) {
	pg, err := p.page()
	if err != nil {
		return 0, err
	}
	var kept []string
	for _, a := range pg.Annots {
		if keep(a) {
			kept = append(kept, a)
		}
	}
	removed := len(pg.Annots) - len(kept)
	pg.Annots = kept
	return removed, nil
}

func (p *pageHandle) Scale(factor float64) error {
	pg, err := p.page()
	if err != nil {
		return err
	}
	if pg.Scale == 0 {
		pg.Scale = 1
	}
	pg.Scale *= factor
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
