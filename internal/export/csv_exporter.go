package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter exports a Spec to CSV
type CSVExporter struct {
	options CSVOptions
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter rune `json:"delimiter"` // Field delimiter (default: comma)
	UseCRLF   bool `json:"use_crlf"`
	// IncludeBOM prefixes a UTF-8 byte order mark so spreadsheet programs
	// detect Lao text correctly.
	IncludeBOM bool `json:"include_bom"`
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:  ',',
		IncludeBOM: true,
	}
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(options CSVOptions) *CSVExporter {
	return &CSVExporter{options: options}
}

// Generate renders spec as CSV: the header row followed by data rows.
// Title and date are not part of the CSV body.
func (e *CSVExporter) Generate(spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if e.options.IncludeBOM {
		buf.WriteString("\uFEFF")
	}
	writer := csv.NewWriter(&buf)
	if e.options.Delimiter != 0 {
		writer.Comma = e.options.Delimiter
	}
	writer.UseCRLF = e.options.UseCRLF

	res := &Result{
		Filename:    spec.FilenameFor(FormatCSV),
		ContentType: FormatCSV.ContentType(),
		Pages:       1,
	}

	if spec.HasTable() {
		if err := writer.Write(spec.Headers); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		for _, row := range spec.Rows {
			record := make([]string, len(spec.Columns))
			for i, col := range spec.Columns {
				record[i] = Cell(spec.Locale, row, col)
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
		res.TableDrawn = true
		res.Rows = len(spec.Rows)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	res.Data = buf.Bytes()
	return res, nil
}
