package pdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/jung-kurt/gofpdf"
)

// ImageInfo describes a decoded image header.
type ImageInfo struct {
	Type   string // gofpdf image type: PNG, JPG or GIF
	Width  int
	Height int
}

// Inspect reads the image header without decoding pixels.
func Inspect(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("empty image")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode image: %w", err)
	}
	info := ImageInfo{Width: cfg.Width, Height: cfg.Height}
	switch format {
	case "png":
		info.Type = "PNG"
	case "jpeg":
		info.Type = "JPG"
	case "gif":
		info.Type = "GIF"
	default:
		return ImageInfo{}, fmt.Errorf("unsupported image format %q", format)
	}
	return info, nil
}

// RegisterImage validates data and registers it on doc under name. gofpdf
// errors are sticky, so a rejected image clears the document error state
// before returning; the document stays usable either way.
func RegisterImage(doc *gofpdf.Fpdf, name string, data []byte) (ImageInfo, error) {
	if doc.Err() {
		return ImageInfo{}, fmt.Errorf("document already failed: %w", doc.Error())
	}
	info, err := Inspect(data)
	if err != nil {
		return ImageInfo{}, err
	}
	doc.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: info.Type}, bytes.NewReader(data))
	if doc.Err() {
		err := doc.Error()
		doc.ClearError()
		return ImageInfo{}, fmt.Errorf("failed to register image %s: %w", name, err)
	}
	return info, nil
}

// DrawImage places a registered image in the box (x, y, w, h).
func DrawImage(doc *gofpdf.Fpdf, name string, x, y, w, h float64) {
	doc.ImageOptions(name, x, y, w, h, false, gofpdf.ImageOptions{}, 0, "")
}
