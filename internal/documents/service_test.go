package documents

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"coopregistry/portal-backend/internal/certificate"
	"coopregistry/portal-backend/internal/cooperatives"
	"coopregistry/portal-backend/internal/export"
	"coopregistry/portal-backend/internal/locale"
	"coopregistry/portal-backend/internal/metrics"
	"coopregistry/portal-backend/internal/notifications"
	"coopregistry/portal-backend/internal/snapshot"
	"coopregistry/portal-backend/pkg/repository"
	"coopregistry/portal-backend/pkg/resource"
	"coopregistry/portal-backend/pkg/storage"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, doc *Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, q repository.Query) (*repository.Page[Document], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Page[Document]), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockRegistry is a mock implementation of the Registry interface
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) CertificateRecord(ctx context.Context, id uuid.UUID) (certificate.Record, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(certificate.Record), args.Error(1)
}

func (m *MockRegistry) DirectorySpec(ctx context.Context, l locale.Locale, q repository.Query) (export.Spec, error) {
	args := m.Called(ctx, l, q)
	return args.Get(0).(export.Spec), args.Error(1)
}

func (m *MockRegistry) MembersSpec(ctx context.Context, cooperativeID uuid.UUID, l locale.Locale) (export.Spec, error) {
	args := m.Called(ctx, cooperativeID, l)
	return args.Get(0).(export.Spec), args.Error(1)
}

type fakeCapturer struct {
	capture *snapshot.Capture
	err     error
	targets []snapshot.Target
}

func (f *fakeCapturer) CaptureElement(ctx context.Context, target snapshot.Target, scale float64) (*snapshot.Capture, error) {
	f.targets = append(f.targets, target)
	return f.capture, f.err
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []notifications.WebSocketMessage
}

func (b *recordingBroadcaster) Broadcast(msg notifications.WebSocketMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return nil
}

func (b *recordingBroadcaster) SendToUser(userID string, msg notifications.WebSocketMessage) error {
	msg.Target = userID
	return b.Broadcast(msg)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{B: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testRecord() certificate.Record {
	return certificate.Record{
		LicenseNumber:     "LA-2024-0017",
		RegistrationDate:  "2024-03-05",
		IssuanceDate:      "2024-03-08",
		NameLao:           "Sahakon Khao Hom",
		NameEnglish:       "Khao Hom Rice Cooperative",
		RegisteredCapital: 150000000,
		IssuanceLocation:  "Vientiane",
		MemberCount:       48,
	}
}

type fixture struct {
	service   *Service
	repo      *MockRepository
	registry  *MockRegistry
	store     *storage.MemoryClient
	capturer  *fakeCapturer
	broadcast *recordingBroadcaster
	metrics   *prometheus.Registry
}

var fixedNow = func() time.Time { return time.Date(2024, 3, 8, 10, 30, 0, 0, time.UTC) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      new(MockRepository),
		registry:  new(MockRegistry),
		store:     storage.NewMemoryClient(),
		capturer:  &fakeCapturer{},
		broadcast: &recordingBroadcaster{},
		metrics:   prometheus.NewRegistry(),
	}

	assets := certificate.FSAssets{FS: fstest.MapFS{
		"watermark.png": {Data: testPNG(t, 21, 30)},
		"emblem.png":    {Data: testPNG(t, 16, 16)},
	}}
	certOpts := certificate.DefaultOptions()
	certOpts.Compress = false
	tableOpts := export.DefaultPDFOptions()
	tableOpts.Compress = false

	builders := Builders{
		Certificates: certificate.NewBuilder(assets, nil, nil, certOpts, nil).WithClock(fixedNow),
		Tables: export.NewRendererWith(
			export.NewPDFGenerator(tableOpts, nil),
			export.NewExcelExporter(export.DefaultExcelOptions()),
			export.NewCSVExporter(export.DefaultCSVOptions()),
		).WithClock(fixedNow),
		Snapshots: snapshot.NewBuilder(f.capturer, nil).WithClock(fixedNow),
	}
	f.service = NewService(f.repo, f.registry, builders, f.store, Options{
		Bucket:      "documents",
		ViewBaseURL: "http://portal.test/",
	}, nil).
		WithNotifier(notifications.NewService(f.broadcast, nil)).
		WithMetrics(metrics.NewDocumentMetrics(f.metrics)).
		WithClock(fixedNow)
	return f
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestGenerateCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coopID := uuid.New()

	f.registry.On("CertificateRecord", ctx, coopID).Return(testRecord(), nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*documents.Document")).Return(nil)

	g, err := f.service.GenerateCertificate(ctx, CertificateRequest{CooperativeID: coopID, Locale: "en", RequestedBy: "user-1"})
	require.NoError(t, err)

	doc := g.Document
	assert.Equal(t, KindCertificate, doc.Kind)
	assert.Equal(t, "Cooperative-Certificate-LA-2024-0017.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, int64(len(g.Data)), doc.Size)
	assert.Equal(t, &coopID, doc.CooperativeID)
	assert.Equal(t, "en", doc.Locale)
	assert.Equal(t, "user-1", doc.CreatedBy)
	assert.Equal(t, "certificates/2024/03/08/"+doc.ID.String()+"/Cooperative-Certificate-LA-2024-0017.pdf", doc.StorageKey)
	assert.True(t, bytes.HasPrefix(g.Data, []byte("%PDF-")))

	ct, ok := f.store.ContentType("documents", doc.StorageKey)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", ct)

	require.Len(t, f.broadcast.messages, 1)
	msg := f.broadcast.messages[0]
	assert.Equal(t, notifications.WSMessageTypeDocumentGenerated, msg.Type)
	assert.Equal(t, "user-1", msg.Target)
	assert.Equal(t, doc.ID.String(), msg.Data["document_id"])

	assert.Equal(t, 1.0, counterValue(t, f.metrics, "documents_generated_total"))

	f.registry.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestGenerateCertificate_NotApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coopID := uuid.New()

	f.registry.On("CertificateRecord", ctx, coopID).Return(certificate.Record{}, cooperatives.ErrNotCertifiable)

	_, err := f.service.GenerateCertificate(ctx, CertificateRequest{CooperativeID: coopID, Locale: "en"})
	assert.ErrorIs(t, err, cooperatives.ErrNotCertifiable)
	assert.Zero(t, f.store.Len())
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGenerateCertificate_InvalidLocale(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.GenerateCertificate(context.Background(), CertificateRequest{CooperativeID: uuid.New(), Locale: "fr"})
	assert.ErrorIs(t, err, resource.ErrValidation)
}

func TestArchive_RecordFailureRemovesObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.On("Create", ctx, mock.AnythingOfType("*documents.Document")).Return(assert.AnError)

	spec := export.Spec{Title: "Members", Locale: locale.English, Columns: []string{"a"}, Headers: []string{"A"}}
	_, err := f.service.ExportTable(ctx, spec, "csv", "")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, f.store.Len())
	assert.Empty(t, f.broadcast.messages)
}

func TestExportTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.On("Create", ctx, mock.AnythingOfType("*documents.Document")).Return(nil)

	spec := export.Spec{
		Title:    "Harvest",
		Locale:   locale.English,
		Columns:  []string{"crop", "tonnes"},
		Headers:  []string{"Crop", "Tonnes"},
		Rows:     []map[string]interface{}{{"crop": "Rice", "tonnes": 12}, {"crop": "Coffee"}},
		Filename: "harvest-2024",
	}
	g, err := f.service.ExportTable(ctx, spec, "csv", "")
	require.NoError(t, err)

	assert.Equal(t, KindTable, g.Document.Kind)
	assert.Equal(t, "harvest-2024.csv", g.Document.Filename)
	assert.Contains(t, string(g.Data), "Coffee,\n")
	assert.Nil(t, g.Document.CooperativeID)

	require.Len(t, f.broadcast.messages, 1)
	assert.Equal(t, "all", f.broadcast.messages[0].Target)
}

func TestExportTable_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	spec := export.Spec{Title: "Harvest", Columns: []string{"crop", "tonnes"}, Headers: []string{"Crop"}}
	_, err := f.service.ExportTable(ctx, spec, "pdf", "")
	assert.ErrorIs(t, err, resource.ErrValidation)
	assert.ErrorIs(t, err, export.ErrArity)

	_, err = f.service.ExportTable(ctx, export.Spec{Title: "Harvest"}, "docx", "")
	assert.ErrorIs(t, err, resource.ErrValidation)
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestExportDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := repository.Query{Page: 1, PageSize: 20}.WithFilter("status", "approved")

	f.registry.On("DirectorySpec", ctx, locale.Lao, q).Return(export.Spec{
		Title:    "ລາຍຊື່ສະຫະກອນ",
		Locale:   locale.Lao,
		Columns:  []string{"license_number"},
		Headers:  []string{"ເລກທະບຽນ"},
		Rows:     []map[string]interface{}{{"license_number": "LA-1"}},
		Filename: "cooperative-directory",
	}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*documents.Document")).Return(nil)

	g, err := f.service.ExportDirectory(ctx, "lo", q, "xlsx", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "cooperative-directory.xlsx", g.Document.Filename)
	assert.Equal(t, export.FormatXLSX.ContentType(), g.Document.ContentType)
	assert.Equal(t, "lo", g.Document.Locale)
	f.registry.AssertExpectations(t)
}

func TestExportMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coopID := uuid.New()

	f.registry.On("MembersSpec", ctx, coopID, locale.English).Return(export.Spec{
		Title:    "Khao Hom Rice Cooperative",
		Locale:   locale.English,
		Columns:  []string{"full_name"},
		Headers:  []string{"Full name"},
		Filename: "members-LA-1",
	}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*documents.Document")).Return(nil)

	g, err := f.service.ExportMembers(ctx, coopID, "en", "pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "members-LA-1.pdf", g.Document.Filename)
	assert.Equal(t, &coopID, g.Document.CooperativeID)
}

func TestExportSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img := testPNG(t, 400, 600)
	f.capturer.capture = &snapshot.Capture{Image: img, Width: 400, Height: 600}
	f.repo.On("Create", ctx, mock.AnythingOfType("*documents.Document")).Return(nil)

	g, err := f.service.ExportSnapshot(ctx, SnapshotRequest{
		Path:      "/directory?locale=en",
		ElementID: "directory",
		Filename:  "directory-2024",
	})
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, KindSnapshot, g.Document.Kind)
	assert.Equal(t, "directory-2024.pdf", g.Document.Filename)

	require.Len(t, f.capturer.targets, 1)
	assert.Equal(t, "http://portal.test/directory?locale=en", f.capturer.targets[0].URL)
	assert.Equal(t, "directory", f.capturer.targets[0].ElementID)
}

func TestExportSnapshot_MissingElementProducesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.capturer.err = snapshot.ErrElementNotFound

	g, err := f.service.ExportSnapshot(ctx, SnapshotRequest{Path: "/directory", ElementID: "missing", RequestedBy: "user-3"})
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.Zero(t, f.store.Len())
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	require.Len(t, f.broadcast.messages, 1)
	assert.Equal(t, notifications.WSMessageTypeDocumentSkipped, f.broadcast.messages[0].Type)
	assert.Equal(t, "element_not_found", f.broadcast.messages[0].Data["reason"])
}

func TestExportSnapshot_OnlyPortalPaths(t *testing.T) {
	f := newFixture(t)
	for _, p := range []string{"http://example.com/", "//example.com/x", "directory", ""} {
		_, err := f.service.ExportSnapshot(context.Background(), SnapshotRequest{Path: p, ElementID: "x"})
		assert.ErrorIs(t, err, resource.ErrValidation, p)
	}
	assert.Empty(t, f.capturer.targets)
}

func TestExportSnapshot_Unavailable(t *testing.T) {
	svc := NewService(new(MockRepository), new(MockRegistry), Builders{}, storage.NewMemoryClient(), Options{}, nil)
	_, err := svc.ExportSnapshot(context.Background(), SnapshotRequest{Path: "/", ElementID: "x"})
	assert.ErrorIs(t, err, ErrSnapshotUnavailable)
}

func TestDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := &Document{ID: uuid.New(), Filename: "a.pdf", Bucket: "documents", StorageKey: "tables/a.pdf"}
	require.NoError(t, f.store.Upload(ctx, "documents", "tables/a.pdf", bytes.NewReader([]byte("%PDF-1.3")), "application/pdf"))

	f.repo.On("Get", ctx, doc.ID).Return(doc, nil)

	got, body, err := f.service.Download(ctx, doc.ID)
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "%PDF-1.3", string(data))
	assert.Equal(t, doc, got)

	missing := &Document{ID: uuid.New(), Bucket: "documents", StorageKey: "tables/gone.pdf"}
	f.repo.On("Get", ctx, missing.ID).Return(missing, nil)
	_, _, err = f.service.Download(ctx, missing.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := &Document{ID: uuid.New(), Bucket: "documents", StorageKey: "tables/a.pdf"}
	require.NoError(t, f.store.Upload(ctx, "documents", "tables/a.pdf", bytes.NewReader(nil), "application/pdf"))

	f.repo.On("Get", ctx, doc.ID).Return(doc, nil)
	f.repo.On("Delete", ctx, doc.ID).Return(nil)

	require.NoError(t, f.service.Delete(ctx, doc.ID))
	assert.Zero(t, f.store.Len())
	f.repo.AssertExpectations(t)
}
