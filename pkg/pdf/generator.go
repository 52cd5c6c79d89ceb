// Package pdf wraps the gofpdf plumbing shared by the certificate, table and
// snapshot builders: page setup, font selection, image registration and saving.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PageOptions configures a new document.
type PageOptions struct {
	Orientation string // "P" or "L"
	Size        gofpdf.SizeType
	SizeName    string // used when Size is zero, e.g. "A4"
	Margin      float64
	Title       string
	Author      string
	Created     time.Time
	Compress    bool
}

// New creates a millimetre-based document without page breaks configured.
func New(opts PageOptions) *gofpdf.Fpdf {
	orientation := opts.Orientation
	if orientation == "" {
		orientation = "P"
	}
	sizeName := opts.SizeName
	if sizeName == "" && opts.Size.Wd == 0 {
		sizeName = "A4"
	}

	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		SizeStr:        sizeName,
		Size:           opts.Size,
	})
	doc.SetMargins(opts.Margin, opts.Margin, opts.Margin)
	doc.SetCompression(opts.Compress)
	if opts.Title != "" {
		doc.SetTitle(opts.Title, true)
	}
	if opts.Author != "" {
		doc.SetAuthor(opts.Author, true)
	}
	doc.SetCreator("coopregistry", false)
	if !opts.Created.IsZero() {
		doc.SetCreationDate(opts.Created)
	}
	return doc
}

// Output serialises the document, surfacing any error recorded while drawing.
func Output(doc *gofpdf.Fpdf) ([]byte, error) {
	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	return buf.Bytes(), nil
}
