// Package pdfdoc implements the engine's document model on top of pdfcpu.
package pdfdoc

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"compactpdf/internal/domain/compression"
)

// sigFlagSignaturesExist is bit 1 of the AcroForm SigFlags entry.
const sigFlagSignaturesExist = 1

// Opener reads PDF files into pdfcpu contexts.
type Opener struct {
	logger *slog.Logger
}

// NewOpener creates a new opener
func NewOpener(logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{logger: logger}
}

// Open reads and validates path. Password-protected files fail with ErrUnsupportedFeature.
func (o *Opener) Open(path string) (compression.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		if isPasswordError(err) {
			return nil, fmt.Errorf("%w: encrypted document: %v", compression.ErrUnsupportedFeature, err)
		}
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("pdfcpu validate: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("pdfcpu page count: %w", err)
	}

	doc := &Document{ctx: ctx, path: path, logger: o.logger}
	doc.pages = make([]compression.Page, 0, ctx.PageCount)
	for nr := 1; nr <= ctx.PageCount; nr++ {
		doc.pages = append(doc.pages, &Page{doc: doc, nr: nr})
	}

	o.logger.Debug("Opened document", "file", path, "pages", ctx.PageCount)
	return doc, nil
}

func isPasswordError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

// Document is a pdfcpu context exposed through the engine's document interface.
type Document struct {
	ctx    *model.Context
	path   string
	pages  []compression.Page
	logger *slog.Logger
}

func (d *Document) Pages() []compression.Page {
	return d.pages
}

func (d *Document) Capabilities() compression.Capabilities {
	return compression.Capabilities{
		ObjectDedup:   true,
		StreamRewrite: true,
		ImageRewrite:  true,
		PageScaling:   true,
	}
}

func (d *Document) Security() compression.Security {
	sec := compression.Security{Encrypted: d.ctx.Encrypt != nil}

	root, err := d.rootDict()
	if err != nil {
		return sec
	}
	acroForm, ok := d.dict(root["AcroForm"])
	if !ok {
		return sec
	}
	if flags, ok := number(d.deref(acroForm["SigFlags"])); ok && int(flags)&sigFlagSignaturesExist != 0 {
		sec.Signed = true
	}
	return sec
}

func (d *Document) Metadata() compression.Metadata {
	md := compression.Metadata{Info: map[string]string{}}

	if d.ctx.Info != nil {
		if info, ok := d.dict(*d.ctx.Info); ok {
			for k, v := range info {
				md.Info[k] = textValue(d.deref(v))
			}
		}
	}

	if root, err := d.rootDict(); err == nil {
		if sd, ok := d.deref(root["Metadata"]).(types.StreamDict); ok {
			md.XMPSize = int64(len(sd.Raw))
		}
	}
	return md
}

func (d *Document) StripMetadata(keep []string, dropXMP bool) (int, error) {
	removed := 0

	if d.ctx.Info != nil {
		if info, ok := d.dict(*d.ctx.Info); ok {
			for k := range info {
				if !contains(keep, k) {
					delete(info, k)
					removed++
				}
			}
		}
	}

	if dropXMP {
		root, err := d.rootDict()
		if err != nil {
			return removed, err
		}
		if _, ok := root["Metadata"]; ok {
			delete(root, "Metadata")
			removed++
		}
	}
	return removed, nil
}

// Save serializes the context. Dedupe runs pdfcpu's optimizer; compressed output uses object streams.
// RemoveUnused needs no work here: pdfcpu only writes objects reachable from the trailer.
func (d *Document) Save(path string, opts compression.SaveOptions) error {
	if opts.DedupeObjects {
		if err := api.OptimizeContext(d.ctx); err != nil {
			return fmt.Errorf("pdfcpu optimize: %w", err)
		}
	}

	useObjectStreams := opts.CompressStreams && opts.DedupeObjects
	d.ctx.Configuration.WriteObjectStream = useObjectStreams
	d.ctx.Configuration.WriteXRefStream = useObjectStreams

	if err := api.WriteContextFile(d.ctx, path); err != nil {
		return fmt.Errorf("pdfcpu write: %w", err)
	}
	return nil
}

func (d *Document) Close() error {
	d.ctx = nil
	d.pages = nil
	return nil
}

func (d *Document) rootDict() (types.Dict, error) {
	if d.ctx.Root == nil {
		return nil, fmt.Errorf("missing document catalog")
	}
	root, ok := d.dict(*d.ctx.Root)
	if !ok {
		return nil, fmt.Errorf("document catalog is not a dictionary")
	}
	return root, nil
}

func (d *Document) deref(o types.Object) types.Object {
	if o == nil {
		return nil
	}
	obj, err := d.ctx.Dereference(o)
	if err != nil {
		d.logger.Debug("Dereference failed", "file", d.path, "error", err)
		return nil
	}
	return obj
}

func (d *Document) dict(o types.Object) (types.Dict, bool) {
	dict, ok := d.deref(o).(types.Dict)
	return dict, ok
}

// streamEntry returns the table entry holding the stream behind an indirect reference.
func (d *Document) streamEntry(o types.Object) (*model.XRefTableEntry, types.StreamDict, bool) {
	ir, ok := o.(types.IndirectRef)
	if !ok {
		return nil, types.StreamDict{}, false
	}
	entry, found := d.ctx.Table[int(ir.ObjectNumber)]
	if !found || entry == nil || entry.Free {
		return nil, types.StreamDict{}, false
	}
	sd, ok := entry.Object.(types.StreamDict)
	return entry, sd, ok
}
