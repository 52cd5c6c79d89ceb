package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
)

// CoreFamily is the built-in font used when no TrueType font is configured.
const CoreFamily = "Helvetica"

// ErrFontRequired is returned when text needs glyphs outside the core fonts
// and no TrueType font has been configured.
var ErrFontRequired = errors.New("pdf: a unicode font is required")

// FontSet is a TrueType family with regular and (optionally) bold faces.
type FontSet struct {
	Family  string
	Regular []byte
	Bold    []byte
}

// LoadFontSet reads font files from disk. An empty regular path yields nil.
func LoadFontSet(family, regularPath, boldPath string) (*FontSet, error) {
	if regularPath == "" {
		return nil, nil
	}
	regular, err := os.ReadFile(regularPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", regularPath, err)
	}
	set := &FontSet{Family: family, Regular: regular}
	if boldPath != "" {
		bold, err := os.ReadFile(boldPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", boldPath, err)
		}
		set.Bold = bold
	}
	return set, nil
}

// Typesetter binds a document to one font family and the text encoding that
// family needs. Core fonts take cp1252 bytes; TrueType fonts take UTF-8.
type Typesetter struct {
	doc     *gofpdf.Fpdf
	family  string
	unicode bool
	encode  func(string) string
}

// NewTypesetter registers fonts on doc. With a nil FontSet it falls back to
// the core family, unless unicode output is required.
func NewTypesetter(doc *gofpdf.Fpdf, fonts *FontSet, requireUnicode bool) (*Typesetter, error) {
	if fonts != nil && len(fonts.Regular) > 0 {
		family := fonts.Family
		if family == "" {
			family = "Body"
		}
		bold := fonts.Bold
		if len(bold) == 0 {
			bold = fonts.Regular
		}
		doc.AddUTF8FontFromBytes(family, "", fonts.Regular)
		doc.AddUTF8FontFromBytes(family, "B", bold)
		if err := doc.Error(); err != nil {
			return nil, fmt.Errorf("failed to load font %s: %w", family, err)
		}
		return &Typesetter{doc: doc, family: family, unicode: true, encode: clampBMP}, nil
	}
	if requireUnicode {
		return nil, ErrFontRequired
	}
	return &Typesetter{
		doc:    doc,
		family: CoreFamily,
		encode: doc.UnicodeTranslatorFromDescriptor(""),
	}, nil
}

// clampBMP replaces runes gofpdf cannot index in its UTF-8 width tables.
func clampBMP(s string) string {
	for _, r := range s {
		if r > 0xFFFF || r == utf8.RuneError {
			return strings.Map(func(r rune) rune {
				if r > 0xFFFF || r == utf8.RuneError {
					return '?'
				}
				return r
			}, s)
		}
	}
	return s
}

func (t *Typesetter) Doc() *gofpdf.Fpdf { return t.doc }
func (t *Typesetter) Family() string    { return t.family }
func (t *Typesetter) Unicode() bool     { return t.unicode }

// SetFont selects a style ("" or "B") at size points.
func (t *Typesetter) SetFont(style string, size float64) {
	t.doc.SetFont(t.family, style, size)
}

// TextHeight is the current font size in user units.
func (t *Typesetter) TextHeight() float64 {
	_, h := t.doc.GetFontSize()
	return h
}

// Encode converts UTF-8 text into what the active font expects.
func (t *Typesetter) Encode(s string) string {
	return t.encode(s)
}

// Width measures s in the current font.
func (t *Typesetter) Width(s string) float64 {
	return t.doc.GetStringWidth(t.encode(s))
}

// Split wraps s to width w and returns encoded lines, always at least one.
func (t *Typesetter) Split(s string, w float64) []string {
	enc := t.encode(s)
	var lines []string
	if t.unicode {
		lines = t.doc.SplitText(enc, w)
	} else {
		for _, line := range t.doc.SplitLines([]byte(enc), w) {
			lines = append(lines, string(line))
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// Cell draws s in a cell; see gofpdf CellFormat.
func (t *Typesetter) Cell(w, h float64, s, border string, ln int, align string, fill bool) {
	t.doc.CellFormat(w, h, t.encode(s), border, ln, align, fill, 0, "")
}

// CellEncoded draws text already returned by Split or Encode.
func (t *Typesetter) CellEncoded(w, h float64, enc, border string, ln int, align string, fill bool) {
	t.doc.CellFormat(w, h, enc, border, ln, align, fill, 0, "")
}

const cp1252Extras = "€‚ƒ„…†‡ˆ‰Š‹ŒŽ‘’“”•–—˜™š›œžŸ"

// FitsCoreFont reports whether every rune of s exists in the core fonts' cp1252 encoding.
func FitsCoreFont(s ...string) bool {
	for _, str := range s {
		for _, r := range str {
			if r <= 0xFF {
				continue
			}
			if !strings.ContainsRune(cp1252Extras, r) {
				return false
			}
		}
	}
	return true
}
