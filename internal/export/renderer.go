package export

import (
	"context"
	"fmt"
	"time"

	"coopregistry/portal-backend/pkg/pdf"
)

// Renderer dispatches a Spec to the generator for the requested format.
type Renderer struct {
	pdf   *PDFGenerator
	excel *ExcelExporter
	csv   *CSVExporter
}

// NewRenderer creates a Renderer with default options for every format.
func NewRenderer(fonts *pdf.FontSet) *Renderer {
	return &Renderer{
		pdf:   NewPDFGenerator(DefaultPDFOptions(), fonts),
		excel: NewExcelExporter(DefaultExcelOptions()),
		csv:   NewCSVExporter(DefaultCSVOptions()),
	}
}

// NewRendererWith creates a Renderer from explicit generators. A nil
// generator leaves its format unavailable.
func NewRendererWith(p *PDFGenerator, x *ExcelExporter, c *CSVExporter) *Renderer {
	return &Renderer{pdf: p, excel: x, csv: c}
}

// WithClock sets the clock of every generator.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	if r.pdf != nil {
		r.pdf.now = now
	}
	if r.excel != nil {
		r.excel.now = now
	}
	return r
}

// Render produces spec in format f.
func (r *Renderer) Render(spec Spec, f Format) (*Result, error) {
	switch {
	case f == FormatPDF && r.pdf != nil:
		return r.pdf.Generate(spec)
	case f == FormatXLSX && r.excel != nil:
		return r.excel.Generate(spec)
	case f == FormatCSV && r.csv != nil:
		return r.csv.Generate(spec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// Export renders spec and hands the document to saver.
func (r *Renderer) Export(ctx context.Context, spec Spec, f Format, saver pdf.Saver) (*Result, error) {
	res, err := r.Render(spec, f)
	if err != nil {
		return nil, err
	}
	if err := saver.Save(ctx, res.Filename, res.Data); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", res.Filename, err)
	}
	return res, nil
}
