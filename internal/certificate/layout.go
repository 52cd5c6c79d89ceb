package certificate

// Placement is the vertical extent of one printed block, in millimetres
// from the top of the page.
type Placement struct {
	Key    string  `json:"key"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right,omitempty"`
	Lines  int     `json:"lines"`
}

// ImagePlacement records where an image was drawn.
type ImagePlacement struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

// Layout is the trace of one certificate render.
type Layout struct {
	PageWidth    float64          `json:"page_width"`
	PageHeight   float64          `json:"page_height"`
	Headers      []Placement      `json:"headers"`
	Fields       []Placement      `json:"fields"`
	Images       []ImagePlacement `json:"images"`
	Skipped      []string         `json:"skipped,omitempty"`
	Cursor       float64          `json:"cursor"`
	SignatureTop float64          `json:"signature_top"`
	// Overflow is set when content reaches into the bottom-anchored
	// signature block. The block is never moved; the overlap is reported.
	Overflow bool `json:"overflow"`
}

// Field returns the placement of a field key.
func (l *Layout) Field(key string) (Placement, bool) {
	for _, p := range l.Fields {
		if p.Key == key {
			return p, true
		}
	}
	return Placement{}, false
}

// Image returns the placement of a drawn image.
func (l *Layout) Image(name string) (ImagePlacement, bool) {
	for _, p := range l.Images {
		if p.Name == name {
			return p, true
		}
	}
	return ImagePlacement{}, false
}

// cursor is the running top-to-bottom position. It only moves down.
type cursor struct {
	y float64
}

func (c *cursor) advance(d float64) {
	if d > 0 {
		c.y += d
	}
}
