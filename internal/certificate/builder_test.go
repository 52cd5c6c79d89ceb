package certificate

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/locale"
	"coopregistry/portal-backend/pkg/pdf"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 20, G: 90, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testAssets(t *testing.T) fstest.MapFS {
	return fstest.MapFS{
		"watermark.png": {Data: testPNG(t, 21, 30)},
		"emblem.png":    {Data: testPNG(t, 16, 16)},
	}
}

func testRecord() Record {
	return Record{
		LicenseNumber:        "LA-2024-0017",
		RegistrationDate:     "2024-03-05",
		ApplicationDate:      "2024-02-12",
		IssuanceDate:         "2024-03-08",
		NameLao:              "Sahakon Khao Hom Naxaythong",
		NameEnglish:          "Khao Hom Rice Cooperative",
		CooperativeType:      "Agricultural production",
		ChairmanName:         "Somphone Keomany",
		ChairmanNationality:  "Lao",
		RegisteredCapital:    150000000,
		CapitalInWords:       "One hundred fifty million kip",
		OfficeAddress:        "Ban Nongteng, Naxaythong District, Vientiane Capital",
		TaxID:                "1234567890",
		IssuanceLocation:     "Vientiane",
		MemberCount:          48,
		Purpose:              "Grow, mill and market fragrant rice for members",
		SupervisingAuthority: "Department of Agriculture and Forestry",
	}
}

type countingObserver struct {
	failed []string
}

func (o *countingObserver) AssetFailed(asset string) {
	o.failed = append(o.failed, asset)
}

func newTestBuilder(assets, photos AssetLoader, opts Options) *Builder {
	opts.Compress = false
	clock := func() time.Time { return time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC) }
	return NewBuilder(assets, photos, nil, opts, zap.NewNop()).WithClock(clock)
}

func TestBuild_CompletesWithoutPhoto(t *testing.T) {
	b := newTestBuilder(FSAssets{FS: testAssets(t)}, nil, DefaultOptions())

	res, err := b.Build(context.Background(), testRecord(), locale.English)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Data)
	assert.True(t, bytes.HasPrefix(res.Data, []byte("%PDF-")))
	assert.Equal(t, "Cooperative-Certificate-LA-2024-0017.pdf", res.Filename)
	assert.Empty(t, res.Layout.Skipped)
	assert.InDelta(t, 210.0, res.Layout.PageWidth, 0.01)
	assert.InDelta(t, 297.0, res.Layout.PageHeight, 0.01)

	_, ok := res.Layout.Image(ImageWatermark)
	assert.True(t, ok)
	_, ok = res.Layout.Image(ImageEmblem)
	assert.True(t, ok)
	_, ok = res.Layout.Image(ImagePhoto)
	assert.False(t, ok)

	var keys []string
	for _, f := range res.Layout.Fields {
		keys = append(keys, f.Key)
	}
	if diff := cmp.Diff(FieldOrder, keys); diff != "" {
		t.Errorf("field order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_FieldPositionsStrictlyIncrease(t *testing.T) {
	long := strings.Repeat("irrigation, seed storage and collective marketing of produce ", 6)
	cases := []struct {
		name                      string
		address, purpose, capital string
	}{
		{"all short", "Ban Phonsa", "Rice", "Ten million kip"},
		{"long address", long, "Rice", "Ten million kip"},
		{"long purpose", "Ban Phonsa", long, "Ten million kip"},
		{"long capital", "Ban Phonsa", "Rice", long},
		{"all long", long, long, long},
		{"explicit line breaks", "line one\nline two", "a\nb\nc\nd", "x\ny"},
		{"empty free text", "", "", ""},
	}

	b := newTestBuilder(FSAssets{FS: testAssets(t)}, nil, DefaultOptions())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := testRecord()
			rec.OfficeAddress = tc.address
			rec.Purpose = tc.purpose
			rec.CapitalInWords = tc.capital

			res, err := b.Build(context.Background(), rec, locale.English)
			require.NoError(t, err)

			blocks := append(append([]Placement{}, res.Layout.Headers...), res.Layout.Fields...)
			require.Len(t, res.Layout.Fields, len(FieldOrder))
			for i := 1; i < len(blocks); i++ {
				prev, next := blocks[i-1], blocks[i]
				assert.Greater(t, next.Top, prev.Bottom, "%s must start below the end of %s", next.Key, prev.Key)
				assert.GreaterOrEqual(t, prev.Bottom, prev.Top)
			}
		})
	}

	rec := testRecord()
	rec.OfficeAddress = long
	res, err := b.Build(context.Background(), rec, locale.English)
	require.NoError(t, err)
	address, _ := res.Layout.Field(FieldOfficeAddress)
	assert.Greater(t, address.Lines, 1)
}

func TestBuild_WrappedGapProportionalToLineCount(t *testing.T) {
	opts := DefaultOptions()
	b := newTestBuilder(FSAssets{FS: testAssets(t)}, nil, opts)

	gap := func(capital string) (float64, int) {
		rec := testRecord()
		rec.CapitalInWords = capital
		res, err := b.Build(context.Background(), rec, locale.English)
		require.NoError(t, err)
		words, ok := res.Layout.Field(FieldCapitalInWords)
		require.True(t, ok)
		next, ok := res.Layout.Field(FieldMembers)
		require.True(t, ok)
		return next.Top - words.Top, words.Lines
	}

	short, shortLines := gap("One hundred fifty million kip")
	long, longLines := gap("One hundred fifty million\nkip only, paid in full\nby the founding members")
	require.Equal(t, 1, shortLines)
	require.Equal(t, 3, longLines)
	assert.InDelta(t, 2*opts.LineHeight, long-short, 1e-9)
	assert.InDelta(t, opts.LineHeight+opts.ExtraSpacing, short, 1e-9)
}

func TestBuild_WatermarkFailureDoesNotBlockContent(t *testing.T) {
	assets := testAssets(t)
	assets["watermark.png"] = &fstest.MapFile{Data: []byte("<html>not found</html>")}
	obs := &countingObserver{}
	b := newTestBuilder(FSAssets{FS: assets}, nil, DefaultOptions()).WithObserver(obs)

	res, err := b.Build(context.Background(), testRecord(), locale.English)
	require.NoError(t, err)

	assert.Equal(t, []string{ImageWatermark}, res.Layout.Skipped)
	assert.Equal(t, []string{ImageWatermark}, obs.failed)
	_, ok := res.Layout.Image(ImageEmblem)
	assert.True(t, ok)
	assert.Len(t, res.Layout.Headers, 4)
	assert.Len(t, res.Layout.Fields, len(FieldOrder))

	for _, text := range []string{
		"Certificate of Cooperative Registration",
		"License No. LA-2024-0017",
		"Registered capital:",
		"Khao Hom Rice Cooperative",
		"150,000,000 LAK",
		"Department of Agriculture and Forestry",
	} {
		assert.True(t, bytes.Contains(res.Data, []byte(text)), "missing %q", text)
	}
}

func TestBuild_EveryImageFailsIndependently(t *testing.T) {
	assets := fstest.MapFS{"watermark.png": {Data: testPNG(t, 10, 14)}}
	photos := AssetLoaderFunc(func(ctx context.Context, ref string) ([]byte, error) {
		return nil, errors.New("object storage unavailable")
	})
	b := newTestBuilder(FSAssets{FS: assets}, photos, DefaultOptions())

	rec := testRecord()
	rec.ChairmanPhoto = "photos/chairman.jpg"
	res, err := b.Build(context.Background(), rec, locale.English)
	require.NoError(t, err)

	assert.Equal(t, []string{ImageEmblem, ImagePhoto}, res.Layout.Skipped)
	_, ok := res.Layout.Image(ImageWatermark)
	assert.True(t, ok)
	assert.Len(t, res.Layout.Fields, len(FieldOrder))
	assert.True(t, bytes.Contains(res.Data, []byte("Somphone Keomany")))
}

func TestBuild_PhotoRightAlignedAtCursor(t *testing.T) {
	opts := DefaultOptions()
	photos := AssetLoaderFunc(func(ctx context.Context, ref string) ([]byte, error) {
		return testPNG(t, 80, 120), nil
	})
	b := newTestBuilder(FSAssets{FS: testAssets(t)}, photos, opts)

	rec := testRecord()
	rec.ChairmanPhoto = "photos/chairman.png"
	res, err := b.Build(context.Background(), rec, locale.English)
	require.NoError(t, err)

	photo, ok := res.Layout.Image(ImagePhoto)
	require.True(t, ok)
	last := res.Layout.Fields[len(res.Layout.Fields)-1]
	assert.InDelta(t, res.Layout.PageWidth-opts.Margin-opts.PhotoSize, photo.X, 1e-9)
	assert.Greater(t, photo.Y, last.Bottom)
	assert.Equal(t, opts.PhotoSize, photo.W)
	assert.Equal(t, opts.PhotoSize, photo.H)
	assert.InDelta(t, photo.Y+opts.PhotoSize, res.Layout.Cursor, 1e-9)
}

func TestBuild_SignatureAnchoredToPageBottom(t *testing.T) {
	opts := DefaultOptions()
	b := newTestBuilder(FSAssets{FS: testAssets(t)}, nil, opts)

	short, err := b.Build(context.Background(), testRecord(), locale.English)
	require.NoError(t, err)
	assert.False(t, short.Layout.Overflow)

	rec := testRecord()
	rec.Purpose = strings.Repeat("collective farming\n", 30)
	long, err := b.Build(context.Background(), rec, locale.English)
	require.NoError(t, err)

	assert.InDelta(t, long.Layout.PageHeight-opts.SignatureOffset, long.Layout.SignatureTop, 1e-9)
	assert.Equal(t, short.Layout.SignatureTop, long.Layout.SignatureTop)
	assert.True(t, long.Layout.Overflow)
	assert.Greater(t, long.Layout.Cursor, long.Layout.SignatureTop)
}

func TestBuild_VerificationQRCode(t *testing.T) {
	opts := DefaultOptions()
	opts.VerifyURL = "https://registry.example.la/verify/%s"
	b := newTestBuilder(FSAssets{FS: testAssets(t)}, nil, opts)

	res, err := b.Build(context.Background(), testRecord(), locale.English)
	require.NoError(t, err)

	qr, ok := res.Layout.Image(ImageQRCode)
	require.True(t, ok)
	assert.Equal(t, res.Layout.SignatureTop, qr.Y)
	assert.Equal(t, opts.Margin, qr.X)
}

func TestBuild_Deterministic(t *testing.T) {
	b := newTestBuilder(FSAssets{FS: testAssets(t)}, nil, DefaultOptions())

	first, err := b.Build(context.Background(), testRecord(), locale.English)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), testRecord(), locale.English)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Layout, second.Layout); diff != "" {
		t.Errorf("layout differs between renders (-first +second):\n%s", diff)
	}
}

func TestBuild_UnicodeWithoutFont(t *testing.T) {
	b := newTestBuilder(FSAssets{FS: testAssets(t)}, nil, DefaultOptions())

	_, err := b.Build(context.Background(), testRecord(), locale.Lao)
	assert.ErrorIs(t, err, ErrFontRequired)

	rec := testRecord()
	rec.NameLao = "ສະຫະກອນເຂົ້າຫອມ"
	_, err = b.Build(context.Background(), rec, locale.English)
	assert.ErrorIs(t, err, ErrFontRequired)
}

func TestBuild_LaoWithFont(t *testing.T) {
	path := os.Getenv("COOP_TEST_FONT")
	if path == "" {
		t.Skip("COOP_TEST_FONT not set")
	}
	fonts, err := pdf.LoadFontSet("Phetsarath", path, "")
	require.NoError(t, err)

	b := NewBuilder(FSAssets{FS: testAssets(t)}, nil, fonts, DefaultOptions(), zap.NewNop())
	rec := testRecord()
	rec.NameLao = "ສະຫະກອນເຂົ້າຫອມ"
	res, err := b.Build(context.Background(), rec, locale.Lao)
	require.NoError(t, err)
	assert.Equal(t, "ໃບທະບຽນສະຫະກອນ-LA-2024-0017.pdf", res.Filename)
}

func TestExport(t *testing.T) {
	b := newTestBuilder(FSAssets{FS: testAssets(t)}, nil, DefaultOptions())

	var saved string
	saver := pdf.SaverFunc(func(ctx context.Context, filename string, data []byte) error {
		saved = filename
		return nil
	})

	_, err := b.Export(context.Background(), testRecord(), locale.English, saver)
	require.NoError(t, err)
	assert.Equal(t, "Cooperative-Certificate-LA-2024-0017.pdf", saved)

	saved = ""
	rec := testRecord()
	rec.NameEnglish = " "
	_, err = b.Export(context.Background(), rec, locale.English, saver)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Empty(t, saved)
}

func TestFilename_ReplacesPathSeparators(t *testing.T) {
	assert.Equal(t, "Cooperative-Certificate-12-2024.pdf", Filename(locale.English, "12/2024"))
	assert.Equal(t, "ໃບທະບຽນສະຫະກອນ-001.pdf", Filename(locale.Lao, "001"))
}

func TestRecordValidate(t *testing.T) {
	rec := testRecord()
	assert.NoError(t, rec.Validate())

	rec.LicenseNumber = ""
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)

	rec = testRecord()
	rec.RegisteredCapital = -1
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)

	rec = testRecord()
	rec.MemberCount = -3
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)
}

func TestSquarePhoto(t *testing.T) {
	out, err := SquarePhoto(testPNG(t, 80, 120))
	require.NoError(t, err)

	info, err := pdf.Inspect(out)
	require.NoError(t, err)
	assert.Equal(t, "JPG", info.Type)
	assert.Equal(t, photoPixels, info.Width)
	assert.Equal(t, photoPixels, info.Height)

	_, err = SquarePhoto([]byte("nope"))
	assert.Error(t, err)
}

func TestBuild_BundledAssets(t *testing.T) {
	obs := &countingObserver{}
	b := newTestBuilder(BundledAssets(), nil, DefaultOptions()).WithObserver(obs)

	res, err := b.Build(context.Background(), testRecord(), locale.English)
	require.NoError(t, err)
	assert.Empty(t, res.Layout.Skipped)
	assert.Empty(t, obs.failed)

	_, ok := res.Layout.Image(ImageWatermark)
	assert.True(t, ok)
	_, ok = res.Layout.Image(ImageEmblem)
	assert.True(t, ok)
}

func TestLayeredAssets(t *testing.T) {
	ctx := context.Background()
	override := testPNG(t, 4, 4)
	assets := LayeredAssets{
		FSAssets{FS: fstest.MapFS{"emblem.png": {Data: override}}},
		BundledAssets(),
	}

	emblem, err := assets.Load(ctx, "emblem.png")
	require.NoError(t, err)
	assert.Equal(t, override, emblem)

	watermark, err := assets.Load(ctx, "watermark.png")
	require.NoError(t, err)
	info, err := pdf.Inspect(watermark)
	require.NoError(t, err)
	assert.Equal(t, "PNG", info.Type)

	_, err = assets.Load(ctx, "seal.png")
	assert.Error(t, err)

	_, err = LayeredAssets{}.Load(ctx, "emblem.png")
	assert.Error(t, err)
}

func TestBuild_LongTaxIDStaysInsideMargin(t *testing.T) {
	opts := DefaultOptions()
	b := newTestBuilder(FSAssets{FS: testAssets(t)}, nil, opts)

	for _, taxID := range []string{"1234567890", strings.Repeat("9876543210", 5), "12-34 56-78-90-12-34-56-78-90-12"} {
		rec := testRecord()
		rec.TaxID = taxID

		res, err := b.Build(context.Background(), rec, locale.English)
		require.NoError(t, err, taxID)

		field, ok := res.Layout.Field(FieldTaxID)
		require.True(t, ok)
		assert.Greater(t, field.Right, opts.Margin+opts.LabelWidth, taxID)
		assert.LessOrEqual(t, field.Right, res.Layout.PageWidth-opts.Margin+1e-6, taxID)
	}
}
