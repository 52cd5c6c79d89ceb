// Package snapshot turns a rendered HTML element into a one-page PDF by
// capturing it as a bitmap in a headless browser.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"coopregistry/portal-backend/pkg/pdf"
)

const (
	// PageWidth is the fixed page width in millimetres (A4).
	PageWidth = 210.0
	// Scale is the device scale factor used for captures.
	Scale = 2.0
)

// ErrElementNotFound is returned by capturers when the element is absent.
var ErrElementNotFound = errors.New("snapshot: element not found")

// Target identifies the element to capture.
type Target struct {
	// URL of the page rendering the element.
	URL string `json:"url"`
	// ElementID is the DOM id of the element.
	ElementID string `json:"element_id"`
}

// Request is one snapshot export.
type Request struct {
	Target
	Filename string `json:"filename"`
	Title    string `json:"title"`
}

// Capture is a rasterized element.
type Capture struct {
	Image  []byte
	Width  int
	Height int
}

// Capturer rasterizes one element of a page at the given device scale.
type Capturer interface {
	CaptureElement(ctx context.Context, target Target, scale float64) (*Capture, error)
}

// Observer is told when a capture produced nothing.
type Observer interface {
	SnapshotSkipped(reason string)
}

// Result is a rendered snapshot document.
type Result struct {
	Filename    string
	Data        []byte
	PageWidth   float64
	PageHeight  float64
	Orientation string
}

// Builder produces snapshot PDFs
type Builder struct {
	capturer Capturer
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
	compress bool
}

// NewBuilder creates a Builder over capturer
func NewBuilder(capturer Capturer, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{capturer: capturer, logger: logger, now: time.Now, compress: true}
}

// WithClock sets the clock used for document metadata.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithObserver registers an observer for skipped captures.
func (b *Builder) WithObserver(o Observer) *Builder {
	b.observer = o
	return b
}

// Filename returns the saved name for a request.
func Filename(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".pdf")
	if name == "" {
		name = "snapshot"
	}
	return pdf.SafeFilename(name) + ".pdf"
}

// PageSize returns the page height and orientation for a capture of
// w by h pixels on a PageWidth-wide page.
func PageSize(w, h int) (float64, string) {
	height := PageWidth * float64(h) / float64(w)
	if w > h {
		return height, "L"
	}
	return height, "P"
}

// Build captures the requested element. A missing element is logged and
// yields (nil, nil): nothing is produced and no error is returned.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.ElementID) == "" {
		return nil, fmt.Errorf("element id is required")
	}

	capture, err := b.capturer.CaptureElement(ctx, req.Target, Scale)
	if errors.Is(err, ErrElementNotFound) {
		b.logger.Warn("snapshot element not found, nothing exported",
			zap.String("element_id", req.ElementID),
			zap.String("url", req.URL),
		)
		if b.observer != nil {
			b.observer.SnapshotSkipped("element_not_found")
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s: %w", req.ElementID, err)
	}
	if capture == nil || capture.Width <= 0 || capture.Height <= 0 {
		return nil, fmt.Errorf("capture of %s is empty", req.ElementID)
	}

	height, orientation := PageSize(capture.Width, capture.Height)
	// gofpdf swaps width and height for landscape pages.
	size := gofpdf.SizeType{Wd: PageWidth, Ht: height}
	if orientation == "L" {
		size = gofpdf.SizeType{Wd: height, Ht: PageWidth}
	}

	doc := pdf.New(pdf.PageOptions{
		Orientation: orientation,
		Size:        size,
		Title:       req.Title,
		Created:     b.now(),
		Compress:    b.compress,
	})
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	if _, err := pdf.RegisterImage(doc, "snapshot", capture.Image); err != nil {
		return nil, fmt.Errorf("failed to embed capture of %s: %w", req.ElementID, err)
	}
	pageW, pageH := doc.GetPageSize()
	pdf.DrawImage(doc, "snapshot", 0, 0, pageW, pageH)

	data, err := pdf.Output(doc)
	if err != nil {
		return nil, err
	}
	return &Result{
		Filename:    Filename(req.Filename),
		Data:        data,
		PageWidth:   pageW,
		PageHeight:  pageH,
		Orientation: orientation,
	}, nil
}

// Export builds the snapshot and saves it. It reports false when the
// element was missing and nothing was saved.
func (b *Builder) Export(ctx context.Context, req Request, saver pdf.Saver) (bool, error) {
	res, err := b.Build(ctx, req)
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, nil
	}
	if err := saver.Save(ctx, res.Filename, res.Data); err != nil {
		return false, fmt.Errorf("failed to save %s: %w", res.Filename, err)
	}
	return true, nil
}
