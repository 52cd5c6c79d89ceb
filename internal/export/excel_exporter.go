package export

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter exports a Spec to an XLSX workbook
type ExcelExporter struct {
	options ExcelOptions
	now     func() time.Time
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string            `json:"sheet_name"`
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	NumberFormat string            `json:"number_format"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	DataStyle    *ExcelStyleConfig `json:"data_style,omitempty"`
	AutoWidth    bool              `json:"auto_width"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
	WrapText  bool   `json:"wrap_text"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Registry",
		FreezeHeader: true,
		AutoFilter:   true,
		NumberFormat: "#,##0.##",
		AutoWidth:    true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "206040",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
		},
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	return &ExcelExporter{options: options, now: time.Now}
}

// Generate renders spec as a workbook: title, date stamp, blank row, then
// the header and data rows.
func (e *ExcelExporter) Generate(spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	file := excelize.NewFile()
	defer file.Close()

	sheet := e.options.SheetName
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	file.SetCellValue(sheet, "A1", spec.Title)
	file.SetCellValue(sheet, "A2", DateStamp(spec.Locale, e.now()))
	if titleStyle, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err == nil {
		file.SetCellStyle(sheet, "A1", "A1", titleStyle)
	}

	res := &Result{
		Filename:    spec.FilenameFor(FormatXLSX),
		ContentType: FormatXLSX.ContentType(),
		Pages:       1,
	}

	if spec.HasTable() {
		const headerRow = 4
		if err := e.writeHeader(file, spec, headerRow); err != nil {
			return nil, err
		}
		if err := e.writeRows(file, spec, headerRow+1); err != nil {
			return nil, err
		}
		res.TableDrawn = true
		res.Rows = len(spec.Rows)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	res.Data = buf.Bytes()
	return res, nil
}

// writeHeader writes the header labels with styling
func (e *ExcelExporter) writeHeader(file *excelize.File, spec Spec, row int) error {
	sheet := e.options.SheetName

	headerStyleID := 0
	if e.options.HeaderStyle != nil {
		style, err := createStyle(file, e.options.HeaderStyle)
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		headerStyleID = style
	}

	for i, label := range spec.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		file.SetCellValue(sheet, cell, label)
		if headerStyleID > 0 {
			file.SetCellStyle(sheet, cell, cell, headerStyleID)
		}
	}

	if e.options.FreezeHeader {
		topLeft, _ := excelize.CoordinatesToCellName(1, row+1)
		file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      row,
			TopLeftCell: topLeft,
			ActivePane:  "bottomLeft",
		})
	}
	if e.options.AutoFilter {
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(spec.Headers), row+len(spec.Rows))
		if err := file.AutoFilter(sheet, first+":"+last, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}
	return nil
}

// writeRows writes data rows; numbers stay numeric so they sum in Excel.
func (e *ExcelExporter) writeRows(file *excelize.File, spec Spec, startRow int) error {
	sheet := e.options.SheetName

	dataStyleID := 0
	if e.options.DataStyle != nil {
		style, err := createStyle(file, e.options.DataStyle)
		if err != nil {
			return fmt.Errorf("failed to create data style: %w", err)
		}
		dataStyleID = style
	}
	numberStyleID := 0
	if e.options.NumberFormat != "" {
		style, err := file.NewStyle(&excelize.Style{CustomNumFmt: &e.options.NumberFormat})
		if err != nil {
			return fmt.Errorf("failed to create number style: %w", err)
		}
		numberStyleID = style
	}

	widths := make([]int, len(spec.Columns))
	for i, label := range spec.Headers {
		widths[i] = utf8.RuneCountInString(label)
	}

	for rowIdx, row := range spec.Rows {
		for colIdx, col := range spec.Columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, startRow+rowIdx)
			styleID := dataStyleID

			switch v := row[col].(type) {
			case float64, float32, int, int32, int64:
				if err := file.SetCellValue(sheet, cell, v); err != nil {
					return fmt.Errorf("failed to set cell value: %w", err)
				}
				if numberStyleID > 0 {
					styleID = numberStyleID
				}
			default:
				if err := file.SetCellValue(sheet, cell, Cell(spec.Locale, row, col)); err != nil {
					return fmt.Errorf("failed to set cell value: %w", err)
				}
			}
			if styleID > 0 {
				file.SetCellStyle(sheet, cell, cell, styleID)
			}

			if n := utf8.RuneCountInString(Cell(spec.Locale, row, col)); n > widths[colIdx] {
				widths[colIdx] = n
			}
		}
	}

	if e.options.AutoWidth {
		for i, w := range widths {
			width := float64(w) * 1.2
			if width < 10 {
				width = 10
			}
			if width > 50 {
				width = 50
			}
			name, _ := excelize.ColumnNumberToName(i + 1)
			file.SetColWidth(sheet, name, name, width)
		}
	}
	return nil
}

// createStyle creates an Excel style from config
func createStyle(file *excelize.File, config *ExcelStyleConfig) (int, error) {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}
	if config.Alignment != "" || config.WrapText {
		style.Alignment = &excelize.Alignment{
			Horizontal: config.Alignment,
			WrapText:   config.WrapText,
		}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return file.NewStyle(style)
}
