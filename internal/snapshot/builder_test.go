package snapshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"coopregistry/portal-backend/pkg/pdf"
)

type fakeCapturer struct {
	capture *Capture
	err     error
	calls   []Target
	scales  []float64
}

func (f *fakeCapturer) CaptureElement(ctx context.Context, target Target, scale float64) (*Capture, error) {
	f.calls = append(f.calls, target)
	f.scales = append(f.scales, scale)
	return f.capture, f.err
}

type countingObserver struct{ skipped []string }

func (o *countingObserver) SnapshotSkipped(reason string) { o.skipped = append(o.skipped, reason) }

func pngCapture(t *testing.T, w, h int) *Capture {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &Capture{Image: buf.Bytes(), Width: w, Height: h}
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

func TestBuild_MissingElementIsNoop(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	capturer := &fakeCapturer{err: ErrElementNotFound}
	obs := &countingObserver{}
	b := NewBuilder(capturer, zap.New(core)).WithObserver(obs)

	saved := false
	saver := pdf.SaverFunc(func(ctx context.Context, filename string, data []byte) error {
		saved = true
		return nil
	})

	ok, err := b.Export(context.Background(), Request{
		Target:   Target{URL: "http://localhost/views/directory", ElementID: "does-not-exist"},
		Filename: "directory",
	}, saver)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, saved)
	assert.Equal(t, []string{"element_not_found"}, obs.skipped)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "does-not-exist", logs.All()[0].ContextMap()["element_id"])
}

func TestBuild_CaptureErrorIsReturned(t *testing.T) {
	boom := errors.New("browser unavailable")
	b := NewBuilder(&fakeCapturer{err: boom}, nil)

	res, err := b.Build(context.Background(), Request{Target: Target{ElementID: "certificate"}})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
}

func TestBuild_RequiresElementID(t *testing.T) {
	capturer := &fakeCapturer{}
	_, err := NewBuilder(capturer, nil).Build(context.Background(), Request{})
	assert.Error(t, err)
	assert.Empty(t, capturer.calls)
}

func TestBuild_PortraitPageMatchesAspectRatio(t *testing.T) {
	capturer := &fakeCapturer{capture: pngCapture(t, 400, 600)}
	b := NewBuilder(capturer, nil).WithClock(fixedClock)

	res, err := b.Build(context.Background(), Request{
		Target:   Target{URL: "http://localhost/views/certificate/1", ElementID: "certificate"},
		Filename: "certificate-preview",
		Title:    "Certificate preview",
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, []float64{Scale}, capturer.scales)
	assert.Equal(t, "P", res.Orientation)
	assert.InDelta(t, 210.0, res.PageWidth, 0.01)
	assert.InDelta(t, 315.0, res.PageHeight, 0.01)
	assert.Equal(t, "certificate-preview.pdf", res.Filename)
	assert.True(t, bytes.HasPrefix(res.Data, []byte("%PDF-")))
}

func TestBuild_LandscapeWhenWiderThanTall(t *testing.T) {
	capturer := &fakeCapturer{capture: pngCapture(t, 800, 400)}
	res, err := NewBuilder(capturer, nil).Build(context.Background(), Request{
		Target:   Target{ElementID: "directory"},
		Filename: "directory",
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "L", res.Orientation)
	assert.InDelta(t, 210.0, res.PageWidth, 0.01)
	assert.InDelta(t, 105.0, res.PageHeight, 0.01)
}

func TestBuild_InvalidBitmap(t *testing.T) {
	capturer := &fakeCapturer{capture: &Capture{Image: []byte("not an image"), Width: 10, Height: 10}}
	_, err := NewBuilder(capturer, nil).Build(context.Background(), Request{Target: Target{ElementID: "x"}})
	assert.Error(t, err)
}

func TestExport_SavesUnderFilename(t *testing.T) {
	capturer := &fakeCapturer{capture: pngCapture(t, 300, 300)}
	var saved string
	saver := pdf.SaverFunc(func(ctx context.Context, filename string, data []byte) error {
		saved = filename
		return nil
	})

	ok, err := NewBuilder(capturer, nil).Export(context.Background(), Request{
		Target:   Target{ElementID: "members"},
		Filename: "members/2024",
	}, saver)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "members-2024.pdf", saved)
}

func TestPageSize(t *testing.T) {
	h, o := PageSize(1000, 1000)
	assert.Equal(t, "P", o)
	assert.InDelta(t, 210.0, h, 0.0001)

	h, o = PageSize(2100, 700)
	assert.Equal(t, "L", o)
	assert.InDelta(t, 70.0, h, 0.0001)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "snapshot.pdf", Filename(""))
	assert.Equal(t, "report.pdf", Filename("report.pdf"))
}
