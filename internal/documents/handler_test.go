package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"coopregistry/portal-backend/internal/certificate"
	"coopregistry/portal-backend/internal/cooperatives"
	"coopregistry/portal-backend/internal/snapshot"
	"coopregistry/portal-backend/pkg/repository"
)

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.service, nil).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_GenerateCertificate(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	coopID := uuid.New()

	rec := testRecord()
	rec.LicenseNumber = "LA 01"
	f.registry.On("CertificateRecord", mock.Anything, coopID).Return(rec, nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*documents.Document")).Return(nil)

	w := do(r, http.MethodPost, "/api/v1/cooperatives/"+coopID.String()+"/certificate?locale=en", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Cooperative-Certificate-LA 01.pdf"`, w.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, w.Header().Get("X-Document-ID"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestHandler_GenerateCertificate_Errors(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	pending, missing := uuid.New(), uuid.New()

	f.registry.On("CertificateRecord", mock.Anything, pending).Return(certificate.Record{}, cooperatives.ErrNotCertifiable)
	f.registry.On("CertificateRecord", mock.Anything, missing).Return(certificate.Record{}, repository.ErrNotFound)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/v1/cooperatives/"+pending.String()+"/certificate", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/cooperatives/"+missing.String()+"/certificate", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/cooperatives/nope/certificate", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/cooperatives/"+pending.String()+"/certificate?locale=fr", nil).Code)
}

func TestHandler_MissingFontIsUnavailable(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	coopID := uuid.New()
	f.registry.On("CertificateRecord", mock.Anything, coopID).Return(testRecord(), nil)

	w := do(r, http.MethodPost, "/api/v1/cooperatives/"+coopID.String()+"/certificate?locale=lo", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "documents.font_path")

	w = do(r, http.MethodPost, "/api/v1/exports/table", gin.H{
		"title":   "ລາຍຊື່ສະຫະກອນ",
		"locale":  "lo",
		"columns": []string{"name"},
		"headers": []string{"ຊື່"},
		"data":    []gin.H{{"name": "ສະຫະກອນ"}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandler_ExportTable(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*documents.Document")).Return(nil)

	w := do(r, http.MethodPost, "/api/v1/exports/table", gin.H{
		"title":    "Harvest",
		"locale":   "en",
		"columns":  []string{"crop"},
		"headers":  []string{"Crop"},
		"data":     []gin.H{{"crop": "Rice"}},
		"filename": "harvest",
		"format":   "csv",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename=harvest.csv`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "Crop\nRice\n")

	w = do(r, http.MethodPost, "/api/v1/exports/table", gin.H{"title": "Harvest", "columns": []string{"a", "b"}, "headers": []string{"A"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ExportSnapshot(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	f.capturer.err = snapshot.ErrElementNotFound
	w := do(r, http.MethodPost, "/api/v1/exports/snapshot", gin.H{"path": "/directory", "element_id": "missing"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())

	w = do(r, http.MethodPost, "/api/v1/exports/snapshot", gin.H{"path": "/directory"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.capturer.err = nil
	f.capturer.capture = &snapshot.Capture{Image: testPNG(t, 300, 200), Width: 300, Height: 200}
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*documents.Document")).Return(nil)
	w = do(r, http.MethodPost, "/api/v1/exports/snapshot", gin.H{"path": "/directory", "element_id": "directory", "filename": "dir"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename=dir.pdf`, w.Header().Get("Content-Disposition"))
}

func TestHandler_ListAndDownload(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	ctx := context.Background()

	doc := Document{ID: uuid.New(), Kind: KindTable, Filename: "harvest.csv", ContentType: "text/csv; charset=utf-8", Size: 5, Bucket: "documents", StorageKey: "tables/harvest.csv"}
	require.NoError(t, f.store.Upload(ctx, "documents", doc.StorageKey, bytes.NewReader([]byte("a,b\n1")), doc.ContentType))

	f.repo.On("List", mock.Anything, repository.Query{Page: 1, PageSize: 20}.WithFilter("kind", "table")).
		Return(&repository.Page[Document]{Items: []Document{doc}, Total: 1, Page: 1, PageSize: 20, TotalPages: 1}, nil)
	f.repo.On("Get", mock.Anything, doc.ID).Return(&doc, nil)

	w := do(r, http.MethodGet, "/api/v1/documents?kind=table", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page repository.Page[Document]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "harvest.csv", page.Items[0].Filename)

	w = do(r, http.MethodGet, "/api/v1/documents/"+doc.ID.String()+"/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a,b\n1", w.Body.String())
	assert.Equal(t, "attachment; filename=harvest.csv", w.Header().Get("Content-Disposition"))

	w = do(r, http.MethodGet, "/api/v1/documents/"+doc.ID.String()+"/link?ttl=60", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "memory://documents/tables%2Fharvest.csv")
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/documents/"+doc.ID.String()+"/link?ttl=0", nil).Code)
}
