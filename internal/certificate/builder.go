// Package certificate renders the official cooperative registration
// certificate as a single A4 portrait PDF page.
package certificate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/locale"
	"coopregistry/portal-backend/pkg/pdf"
)

// Image slot names used in layouts, logs and metrics.
const (
	ImageWatermark = "watermark"
	ImageEmblem    = "emblem"
	ImagePhoto     = "chairman_photo"
	ImageQRCode    = "verification_qr"
)

// ErrFontRequired is returned when the output needs glyphs the core fonts lack.
var ErrFontRequired = pdf.ErrFontRequired

// Options holds the fixed geometry of the certificate, in millimetres and points.
type Options struct {
	Watermark string
	Emblem    string

	Margin     float64
	EmblemTop  float64
	EmblemSize float64
	LabelWidth float64

	HeaderSize  float64
	MottoSize   float64
	TitleSize   float64
	LicenseSize float64
	FontSize    float64

	HeaderLineHeight float64
	LineHeight       float64
	ExtraSpacing     float64
	BoxWidth         float64

	PhotoSize       float64
	SignatureOffset float64
	QRSize          float64
	// VerifyURL is a printf pattern taking the license number; empty disables the QR code.
	VerifyURL string
	Compress  bool
}

// DefaultOptions returns the standard certificate geometry
func DefaultOptions() Options {
	return Options{
		Watermark:        "watermark.png",
		Emblem:           "emblem.png",
		Margin:           20,
		EmblemTop:        10,
		EmblemSize:       22,
		LabelWidth:       58,
		HeaderSize:       13,
		MottoSize:        11,
		TitleSize:        16,
		LicenseSize:      12,
		FontSize:         11,
		HeaderLineHeight: 7,
		LineHeight:       7,
		ExtraSpacing:     2,
		BoxWidth:         5,
		PhotoSize:        30,
		SignatureOffset:  50,
		QRSize:           24,
		Compress:         true,
	}
}

func (o Options) validate() error {
	textHeight := o.FontSize * 25.4 / 72
	if o.LineHeight <= textHeight {
		return fmt.Errorf("line height %.2fmm must exceed text height %.2fmm", o.LineHeight, textHeight)
	}
	if o.ExtraSpacing < 0 {
		return fmt.Errorf("extra spacing must not be negative")
	}
	if o.Margin*2+o.LabelWidth >= 210 {
		return fmt.Errorf("margins and label column leave no room for values")
	}
	return nil
}

// Observer is told about best-effort failures.
type Observer interface {
	AssetFailed(asset string)
}

// Result is a rendered certificate.
type Result struct {
	Filename string
	Data     []byte
	Layout   Layout
}

// Builder renders certificates. It holds no per-render state and is safe
// for concurrent use.
type Builder struct {
	assets   AssetLoader
	photos   AssetLoader
	fonts    *pdf.FontSet
	opts     Options
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// NewBuilder creates a Builder. assets resolves the watermark and emblem,
// photos resolves chairman photo references; either may be nil.
func NewBuilder(assets, photos AssetLoader, fonts *pdf.FontSet, opts Options, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		assets: assets,
		photos: photos,
		fonts:  fonts,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock sets the clock used for document metadata.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithObserver registers an observer for skipped assets.
func (b *Builder) WithObserver(o Observer) *Builder {
	b.observer = o
	return b
}

// Filename returns the saved name of a certificate.
func Filename(l locale.Locale, licenseNumber string) string {
	return pdf.SafeFilename(DocumentLabel(l) + "-" + licenseNumber + ".pdf")
}

// render is the state of one certificate render.
type render struct {
	ctx    context.Context
	doc    *gofpdf.Fpdf
	ts     *pdf.Typesetter
	layout *Layout
	cur    cursor
	labels labels
}

// Build renders rec in locale l.
func (b *Builder) Build(ctx context.Context, rec Record, l locale.Locale) (*Result, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := b.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid certificate options: %w", err)
	}

	lbl := labelsFor(l)
	values := rec.values(l)
	issued := IssuedAt(l, rec.IssuanceLocation, rec.IssuanceDate)

	needUnicode := l.NeedsUnicodeFont() || !pdf.FitsCoreFont(rec.NameLao, rec.NameEnglish, rec.CooperativeType,
		rec.ChairmanName, rec.ChairmanNationality, rec.CapitalInWords, rec.OfficeAddress, rec.TaxID,
		rec.Purpose, rec.SupervisingAuthority, rec.LicenseNumber, issued)

	doc := pdf.New(pdf.PageOptions{
		Orientation: "P",
		SizeName:    "A4",
		Margin:      b.opts.Margin,
		Title:       lbl.title + " " + rec.LicenseNumber,
		Created:     b.now(),
		Compress:    b.opts.Compress,
	})
	doc.SetAutoPageBreak(false, 0)

	ts, err := pdf.NewTypesetter(doc, b.fonts, needUnicode)
	if err != nil {
		if errors.Is(err, pdf.ErrFontRequired) {
			return nil, fmt.Errorf("certificate in %q: %w", l, ErrFontRequired)
		}
		return nil, err
	}

	doc.AddPage()
	pageW, pageH := doc.GetPageSize()
	r := &render{
		ctx:    ctx,
		doc:    doc,
		ts:     ts,
		layout: &Layout{PageWidth: pageW, PageHeight: pageH},
		labels: lbl,
	}

	// Lower layers first: watermark, then emblem.
	b.placeImage(r, ImageWatermark, b.assets, b.opts.Watermark, false, 0, 0, pageW, pageH)
	b.placeImage(r, ImageEmblem, b.assets, b.opts.Emblem, false,
		(pageW-b.opts.EmblemSize)/2, b.opts.EmblemTop, b.opts.EmblemSize, b.opts.EmblemSize)

	r.cur.y = b.opts.EmblemTop + b.opts.EmblemSize + 2
	b.drawHeader(r, "state", lbl.state, "B", b.opts.HeaderSize)
	b.drawHeader(r, "motto", lbl.motto, "", b.opts.MottoSize)
	r.cur.advance(b.opts.ExtraSpacing * 2)
	b.drawHeader(r, "title", lbl.title, "B", b.opts.TitleSize)
	b.drawHeader(r, "license", lbl.license+" "+rec.LicenseNumber, "B", b.opts.LicenseSize)
	r.cur.advance(b.opts.ExtraSpacing * 2)

	for _, key := range FieldOrder {
		b.drawField(r, key, lbl.fields[key], values[key])
	}

	if rec.ChairmanPhoto != "" {
		x := pageW - b.opts.Margin - b.opts.PhotoSize
		if b.placeImage(r, ImagePhoto, b.photos, rec.ChairmanPhoto, true, x, r.cur.y, b.opts.PhotoSize, b.opts.PhotoSize) {
			r.cur.advance(b.opts.PhotoSize)
		}
	}
	r.layout.Cursor = r.cur.y

	b.drawSignature(r, rec, issued)

	if doc.Err() {
		return nil, fmt.Errorf("failed to draw certificate: %w", doc.Error())
	}
	data, err := pdf.Output(doc)
	if err != nil {
		return nil, err
	}

	return &Result{
		Filename: Filename(l, rec.LicenseNumber),
		Data:     data,
		Layout:   *r.layout,
	}, nil
}

// Export renders rec and hands the document to saver.
func (b *Builder) Export(ctx context.Context, rec Record, l locale.Locale, saver pdf.Saver) (*Result, error) {
	res, err := b.Build(ctx, rec, l)
	if err != nil {
		return nil, err
	}
	if err := saver.Save(ctx, res.Filename, res.Data); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", res.Filename, err)
	}
	return res, nil
}

func (b *Builder) drawHeader(r *render, key, text, style string, size float64) {
	r.ts.SetFont(style, size)
	h := r.ts.TextHeight()
	top := r.cur.y

	contentW := r.layout.PageWidth - 2*b.opts.Margin
	r.doc.SetXY(b.opts.Margin, top)
	r.ts.Cell(contentW, h, text, "", 0, "C", false)

	r.layout.Headers = append(r.layout.Headers, Placement{Key: key, Top: top, Bottom: top + h, Lines: 1})
	lineHeight := b.opts.HeaderLineHeight
	if h >= lineHeight {
		lineHeight = h + 1
	}
	r.cur.advance(lineHeight)
}

// drawField prints one labeled field at the cursor and advances past it.
func (b *Builder) drawField(r *render, key, label, value string) {
	valueX := b.opts.Margin + b.opts.LabelWidth
	valueW := r.layout.PageWidth - b.opts.Margin - valueX
	top := r.cur.y

	r.ts.SetFont("", b.opts.FontSize)
	textH := r.ts.TextHeight()
	r.doc.SetXY(b.opts.Margin, top)
	r.ts.Cell(b.opts.LabelWidth, textH, label+":", "", 0, "L", false)

	r.ts.SetFont("B", b.opts.FontSize)
	var lines []string
	right := valueX + valueW
	switch {
	case key == FieldTaxID:
		lines = []string{value}
		right = b.drawBoxedGlyphs(r, valueX, top, textH, valueW, value)
	case wrapped[key]:
		lines = r.ts.Split(value, valueW)
		for i, line := range lines {
			r.doc.SetXY(valueX, top+float64(i)*b.opts.LineHeight)
			r.ts.CellEncoded(valueW, textH, line, "", 0, "L", false)
		}
	default:
		lines = []string{value}
		r.doc.SetXY(valueX, top)
		r.ts.Cell(valueW, textH, value, "", 0, "L", false)
	}

	n := len(lines)
	r.layout.Fields = append(r.layout.Fields, Placement{
		Key:    key,
		Top:    top,
		Bottom: top + float64(n-1)*b.opts.LineHeight + textH,
		Right:  right,
		Lines:  n,
	})

	if wrapped[key] {
		r.cur.advance(b.opts.LineHeight*float64(n) + b.opts.ExtraSpacing)
	} else {
		r.cur.advance(b.opts.LineHeight)
	}
}

// drawBoxedGlyphs prints each character of value in its own box, narrowing
// the boxes when the value would not fit in maxW. It returns the right edge.
func (b *Builder) drawBoxedGlyphs(r *render, x, top, h, maxW float64, value string) float64 {
	box, gap := b.opts.BoxWidth, 0.8
	var glyphs, breaks int
	for _, ch := range value {
		if ch == ' ' || ch == '-' {
			breaks++
		} else {
			glyphs++
		}
	}
	if glyphs == 0 {
		return x
	}
	if natural := float64(glyphs)*(box+gap) - gap + float64(breaks)*gap*2; natural > maxW {
		scale := maxW / natural
		box, gap = box*scale, gap*scale
	}

	right := x
	for _, ch := range value {
		if ch == ' ' || ch == '-' {
			x += gap * 2
			continue
		}
		r.doc.SetXY(x, top)
		r.ts.Cell(box, h, string(ch), "1", 0, "C", false)
		right = x + box
		x += box + gap
	}
	return right
}

// drawSignature pins the issuance line, role caption and QR code to a fixed
// offset from the page bottom.
func (b *Builder) drawSignature(r *render, rec Record, issued string) {
	pageW, pageH := r.layout.PageWidth, r.layout.PageHeight
	top := pageH - b.opts.SignatureOffset
	r.layout.SignatureTop = top

	if r.cur.y > top {
		r.layout.Overflow = true
		b.logger.Warn("certificate content overlaps signature block",
			zap.String("license_number", rec.LicenseNumber),
			zap.Float64("cursor_mm", r.cur.y),
			zap.Float64("signature_top_mm", top),
		)
	}

	colX := pageW / 2
	colW := pageW/2 - b.opts.Margin

	r.ts.SetFont("", b.opts.FontSize)
	r.doc.SetXY(colX, top)
	r.ts.Cell(colW, r.ts.TextHeight(), issued, "", 0, "C", false)

	r.ts.SetFont("B", b.opts.FontSize)
	r.doc.SetXY(colX, top+b.opts.LineHeight)
	r.ts.Cell(colW, r.ts.TextHeight(), r.labels.signatureRole, "", 0, "C", false)

	if b.opts.VerifyURL == "" {
		return
	}
	verify := fmt.Sprintf(b.opts.VerifyURL, rec.LicenseNumber)
	loader := AssetLoaderFunc(func(ctx context.Context, ref string) ([]byte, error) {
		return qrcode.Encode(ref, qrcode.Medium, 256)
	})
	b.placeImage(r, ImageQRCode, loader, verify, false, b.opts.Margin, top, b.opts.QRSize, b.opts.QRSize)
}

// placeImage loads, registers and draws one image. Any failure is logged and
// recorded as skipped; the render continues without the image.
func (b *Builder) placeImage(r *render, slot string, loader AssetLoader, ref string, square bool, x, y, w, h float64) bool {
	if strings.TrimSpace(ref) == "" {
		return false
	}

	err := func() error {
		if loader == nil {
			return fmt.Errorf("no loader configured")
		}
		data, err := loader.Load(r.ctx, ref)
		if err != nil {
			return err
		}
		if square {
			if data, err = SquarePhoto(data); err != nil {
				return err
			}
		}
		_, err = pdf.RegisterImage(r.doc, slot, data)
		return err
	}()
	if err != nil {
		b.logger.Warn("certificate image skipped",
			zap.String("image", slot),
			zap.String("ref", ref),
			zap.Error(err),
		)
		if b.observer != nil {
			b.observer.AssetFailed(slot)
		}
		r.layout.Skipped = append(r.layout.Skipped, slot)
		return false
	}

	pdf.DrawImage(r.doc, slot, x, y, w, h)
	r.layout.Images = append(r.layout.Images, ImagePlacement{Name: slot, X: x, Y: y, W: w, H: h})
	return true
}
