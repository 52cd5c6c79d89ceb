// Package export renders tabular data as PDF, XLSX or CSV documents.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"coopregistry/portal-backend/internal/locale"
)

var (
	// ErrArity is returned when columns and headers differ in length.
	ErrArity = errors.New("columns and headers must have the same length")
	// ErrUnsupportedFormat is returned for unknown output formats.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Format is an output document format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts pdf, xlsx (or excel) and csv; empty means pdf.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return FormatPDF, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/pdf"
	}
}

// Orientation of the printed page
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Spec describes one tabular export. Rows map column keys to display values;
// a missing key renders as an empty cell.
type Spec struct {
	Title       string                   `json:"title"`
	Subtitle    string                   `json:"subtitle,omitempty"`
	Locale      locale.Locale            `json:"locale"`
	Orientation Orientation              `json:"orientation"`
	Columns     []string                 `json:"columns"`
	Headers     []string                 `json:"headers"`
	Rows        []map[string]interface{} `json:"data"`
	Filename    string                   `json:"filename"`
}

// Validate rejects specs whose columns and headers cannot be paired.
func (s Spec) Validate() error {
	if len(s.Columns) != len(s.Headers) {
		return fmt.Errorf("%w: %d columns, %d headers", ErrArity, len(s.Columns), len(s.Headers))
	}
	return nil
}

// HasTable reports whether the spec produces a table region.
func (s Spec) HasTable() bool {
	return len(s.Columns) > 0 && len(s.Headers) > 0 && len(s.Rows) > 0
}

// FilenameFor returns the saved name of the export in format f.
func (s Spec) FilenameFor(f Format) string {
	name := strings.TrimSpace(s.Filename)
	if name == "" {
		name = "export"
	}
	name = strings.TrimSuffix(name, "."+string(f))
	return strings.NewReplacer("/", "-", "\\", "-").Replace(name) + "." + string(f)
}

// Cell returns the display text of row at column key.
func Cell(l locale.Locale, row map[string]interface{}, key string) string {
	v, ok := row[key]
	if !ok {
		return ""
	}
	return formatValue(l, v)
}

func formatValue(l locale.Locale, val interface{}) string {
	if val == nil {
		return ""
	}

	switch v := val.(type) {
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return l.FormatTime(v)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return l.FormatTime(*v)
	case float64:
		return l.FormatAmount(v)
	case float32:
		return l.FormatAmount(float64(v))
	case int:
		return l.FormatCount(v)
	case int64:
		return l.FormatCount(int(v))
	case int32:
		return l.FormatCount(int(v))
	case bool:
		if l == locale.English {
			if v {
				return "Yes"
			}
			return "No"
		}
		if v {
			return "ແມ່ນ"
		}
		return "ບໍ່"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Result is a rendered export.
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
	// TableDrawn is false when the spec had no rows, columns or headers.
	TableDrawn bool
	Pages      int
	Rows       int
}
