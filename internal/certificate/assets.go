package certificate

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"

	"golang.org/x/image/draw"
)

// AssetLoader resolves an image reference to its bytes.
type AssetLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// AssetLoaderFunc adapts a function to AssetLoader
type AssetLoaderFunc func(ctx context.Context, ref string) ([]byte, error)

func (f AssetLoaderFunc) Load(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

// FSAssets loads bundled images from a filesystem.
type FSAssets struct {
	FS fs.FS
}

func (a FSAssets) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.FS == nil {
		return nil, fmt.Errorf("no asset filesystem configured")
	}
	return fs.ReadFile(a.FS, ref)
}

//go:embed assets/*.png
var bundled embed.FS

// BundledAssets loads the watermark and emblem shipped with the binary.
func BundledAssets() FSAssets {
	sub, err := fs.Sub(bundled, "assets")
	if err != nil {
		panic(err)
	}
	return FSAssets{FS: sub}
}

// LayeredAssets tries each loader in order and returns the first image found.
type LayeredAssets []AssetLoader

func (l LayeredAssets) Load(ctx context.Context, ref string) ([]byte, error) {
	var errs []error
	for _, loader := range l {
		data, err := loader.Load(ctx, ref)
		if err == nil {
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("asset %q: no loaders configured", ref)
	}
	return nil, errors.Join(errs...)
}

const photoPixels = 600

// SquarePhoto centre-crops an image to a square and scales it to
// photoPixels per side, re-encoded as JPEG.
func SquarePhoto(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode photo: %w", err)
	}

	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side == 0 {
		return nil, fmt.Errorf("photo has no pixels")
	}
	crop := image.Rect(0, 0, side, side).Add(image.Pt(
		b.Min.X+(b.Dx()-side)/2,
		b.Min.Y+(b.Dy()-side)/2,
	))

	dst := image.NewRGBA(image.Rect(0, 0, photoPixels, photoPixels))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode photo: %w", err)
	}
	return buf.Bytes(), nil
}
