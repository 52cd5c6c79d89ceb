package export

import (
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"coopregistry/portal-backend/internal/locale"
	"coopregistry/portal-backend/pkg/pdf"
)

// PDFGenerator generates paginated PDF tables
type PDFGenerator struct {
	options PDFOptions
	fonts   *pdf.FontSet
	now     func() time.Time
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string     `json:"page_size"` // A4, Letter, Legal
	IncludePageNum bool       `json:"include_page_num"`
	HeaderColor    PDFColor   `json:"header_color"`
	AlternateRows  bool       `json:"alternate_rows"`
	AlternateColor PDFColor   `json:"alternate_color"`
	FontSize       float64    `json:"font_size"`
	HeaderFontSize float64    `json:"header_font_size"`
	TitleFontSize  float64    `json:"title_font_size"`
	RowHeight      float64    `json:"row_height"`
	HeaderHeight   float64    `json:"header_height"`
	Margins        PDFMargins `json:"margins"`
	Compress       bool       `json:"compress"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		IncludePageNum: true,
		HeaderColor:    PDFColor{R: 32, G: 96, B: 64},
		AlternateRows:  true,
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontSize:       9,
		HeaderFontSize: 10,
		TitleFontSize:  16,
		RowHeight:      7,
		HeaderHeight:   8,
		Margins: PDFMargins{
			Left:   15,
			Right:  15,
			Top:    20,
			Bottom: 20,
		},
		Compress: true,
	}
}

// NewPDFGenerator creates a new PDF generator. fonts may be nil when only
// Latin text is exported.
func NewPDFGenerator(options PDFOptions, fonts *pdf.FontSet) *PDFGenerator {
	return &PDFGenerator{
		options: options,
		fonts:   fonts,
		now:     time.Now,
	}
}

// WithClock sets the clock used for the date stamp.
func (g *PDFGenerator) WithClock(now func() time.Time) *PDFGenerator {
	g.now = now
	return g
}

type table struct {
	doc    *gofpdf.Fpdf
	ts     *pdf.Typesetter
	spec   Spec
	widths []float64
}

// Generate renders spec as a PDF document
func (g *PDFGenerator) Generate(spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	orientation := "P"
	if spec.Orientation == Landscape {
		orientation = "L"
	}
	doc := pdf.New(pdf.PageOptions{
		Orientation: orientation,
		SizeName:    g.options.PageSize,
		Title:       spec.Title,
		Created:     g.now(),
		Compress:    g.options.Compress,
	})
	doc.SetMargins(g.options.Margins.Left, g.options.Margins.Top, g.options.Margins.Right)
	doc.SetAutoPageBreak(false, g.options.Margins.Bottom)

	ts, err := pdf.NewTypesetter(doc, g.fonts, spec.Locale.NeedsUnicodeFont() || !specFitsCoreFont(spec))
	if err != nil {
		return nil, fmt.Errorf("export %q: %w", spec.Title, err)
	}
	t := &table{doc: doc, ts: ts, spec: spec}

	g.setFooter(t)
	doc.AddPage()

	g.addTitle(t)
	if spec.Subtitle != "" {
		g.addSubtitle(t)
	}
	g.addDate(t)
	doc.Ln(6)

	res := &Result{
		Filename:    spec.FilenameFor(FormatPDF),
		ContentType: FormatPDF.ContentType(),
	}
	if spec.HasTable() {
		t.widths = g.calculateColumnWidths(t)
		g.addTableHeader(t)
		g.addTableData(t)
		res.TableDrawn = true
		res.Rows = len(spec.Rows)
	}

	res.Pages = doc.PageCount()
	data, err := pdf.Output(doc)
	if err != nil {
		return nil, err
	}
	res.Data = data
	return res, nil
}

func specFitsCoreFont(spec Spec) bool {
	if !pdf.FitsCoreFont(spec.Title, spec.Subtitle) || !pdf.FitsCoreFont(spec.Headers...) {
		return false
	}
	for _, row := range spec.Rows {
		for _, col := range spec.Columns {
			if !pdf.FitsCoreFont(Cell(spec.Locale, row, col)) {
				return false
			}
		}
	}
	return true
}

// addTitle adds the report title
func (g *PDFGenerator) addTitle(t *table) {
	t.ts.SetFont("B", g.options.TitleFontSize)
	t.doc.SetTextColor(0, 0, 0)
	t.ts.Cell(0, 10, t.spec.Title, "", 1, "C", false)
}

// addSubtitle adds the report subtitle
func (g *PDFGenerator) addSubtitle(t *table) {
	t.ts.SetFont("", g.options.FontSize+2)
	t.doc.SetTextColor(100, 100, 100)
	t.ts.Cell(0, 8, t.spec.Subtitle, "", 1, "C", false)
}

// addDate adds the generation date stamp
func (g *PDFGenerator) addDate(t *table) {
	t.ts.SetFont("", g.options.FontSize)
	t.doc.SetTextColor(128, 128, 128)
	t.ts.Cell(0, 6, DateStamp(t.spec.Locale, g.now()), "", 1, "R", false)
}

// DateStamp is the localized "generated on" line printed under the title.
func DateStamp(l locale.Locale, at time.Time) string {
	if l == locale.English {
		return "Generated: " + l.FormatTime(at)
	}
	return "ວັນທີອອກ: " + l.FormatTime(at)
}

// calculateColumnWidths sizes columns to their widest sampled content,
// scaled down to fit the printable width.
func (g *PDFGenerator) calculateColumnWidths(t *table) []float64 {
	pageWidth, _ := t.doc.GetPageSize()
	availableWidth := pageWidth - g.options.Margins.Left - g.options.Margins.Right
	widths := make([]float64, len(t.spec.Columns))

	t.ts.SetFont("B", g.options.HeaderFontSize)
	for i, label := range t.spec.Headers {
		if w := t.ts.Width(label) + 4; w > widths[i] {
			widths[i] = w
		}
	}

	t.ts.SetFont("", g.options.FontSize)
	sample := t.spec.Rows
	if len(sample) > 100 {
		sample = sample[:100]
	}
	for _, row := range sample {
		for i, col := range t.spec.Columns {
			if w := t.ts.Width(Cell(t.spec.Locale, row, col)) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > availableWidth {
		scale := availableWidth / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

// addTableHeader adds the table header row
func (g *PDFGenerator) addTableHeader(t *table) {
	t.ts.SetFont("B", g.options.HeaderFontSize)
	t.doc.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	t.doc.SetTextColor(255, 255, 255)
	t.doc.SetDrawColor(160, 160, 160)

	for i, label := range t.spec.Headers {
		t.ts.CellEncoded(t.widths[i], g.options.HeaderHeight, fit(t.ts, label, t.widths[i]), "1", 0, "C", true)
	}
	t.doc.Ln(-1)
}

// addTableData adds the data rows, starting a new page with a repeated
// header whenever the next row would cross the bottom margin.
func (g *PDFGenerator) addTableData(t *table) {
	_, pageHeight := t.doc.GetPageSize()
	g.resetRowStyle(t)

	for i, row := range t.spec.Rows {
		if t.doc.GetY()+g.options.RowHeight > pageHeight-g.options.Margins.Bottom {
			t.doc.AddPage()
			g.addTableHeader(t)
			g.resetRowStyle(t)
		}

		if g.options.AlternateRows && i%2 == 1 {
			t.doc.SetFillColor(g.options.AlternateColor.R, g.options.AlternateColor.G, g.options.AlternateColor.B)
		} else {
			t.doc.SetFillColor(255, 255, 255)
		}

		for j, col := range t.spec.Columns {
			text := fit(t.ts, Cell(t.spec.Locale, row, col), t.widths[j])
			t.ts.CellEncoded(t.widths[j], g.options.RowHeight, text, "1", 0, "L", true)
		}
		t.doc.Ln(-1)
	}
}

func (g *PDFGenerator) resetRowStyle(t *table) {
	t.ts.SetFont("", g.options.FontSize)
	t.doc.SetTextColor(0, 0, 0)
}

// setFooter sets up the page footer
func (g *PDFGenerator) setFooter(t *table) {
	if !g.options.IncludePageNum {
		return
	}
	t.doc.SetFooterFunc(func() {
		t.doc.SetY(-15)
		t.ts.SetFont("", 8)
		t.doc.SetTextColor(128, 128, 128)
		label := "Page %d"
		if t.spec.Locale != locale.English {
			label = "ໜ້າ %d"
		}
		t.ts.Cell(0, 10, fmt.Sprintf(label, t.doc.PageNo()), "", 0, "C", false)
	})
}

// fit truncates s on rune boundaries so it fits in a cell of width w and
// returns it encoded for the active font.
func fit(ts *pdf.Typesetter, s string, w float64) string {
	limit := w - 2
	if ts.Width(s) <= limit {
		return ts.Encode(s)
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		candidate := string(runes[:n]) + "..."
		if ts.Width(candidate) <= limit {
			return ts.Encode(candidate)
		}
	}
	return ts.Encode("")
}
