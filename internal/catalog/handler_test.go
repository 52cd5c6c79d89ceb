package catalog

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopregistry/portal-backend/pkg/repository"
)

func setup(t *testing.T, write ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	categories := repository.NewMemory[Category]()
	categories.Seed(
		Category{Name: "Rice farming", Type: "crop"},
		Category{Name: "Coffee", Type: "crop"},
		Category{Name: "Cattle", Type: "livestock"},
	)
	h := NewHandler(categories, repository.NewMemory[Organization](), nil)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"), write...)
	return r
}

func request(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCategories_ListFilters(t *testing.T) {
	r := setup(t)

	w := request(r, http.MethodGet, "/api/v1/categories?type=CROP", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page repository.Page[Category]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.EqualValues(t, 2, page.Total)

	w = request(r, http.MethodGet, "/api/v1/categories?search=catt&unknown=1", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Cattle", page.Items[0].Name)
}

func TestCategories_CRUD(t *testing.T) {
	r := setup(t)

	w := request(r, http.MethodPost, "/api/v1/categories", `{"name":"Fishery","type":"aquaculture"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = request(r, http.MethodPut, "/api/v1/categories/"+created.ID.String(), `{"name":"Fish farming","type":"aquaculture"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = request(r, http.MethodGet, "/api/v1/categories/"+created.ID.String(), "")
	assert.Contains(t, w.Body.String(), "Fish farming")

	w = request(r, http.MethodDelete, "/api/v1/categories/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = request(r, http.MethodGet, "/api/v1/categories/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrganizations_Validation(t *testing.T) {
	r := setup(t)

	w := request(r, http.MethodPost, "/api/v1/organizations", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(r, http.MethodPost, "/api/v1/organizations", `{"name":"DAFO","email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email is invalid")
}

func TestWriteMiddleware(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }
	r := setup(t, deny)

	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPost, "/api/v1/categories", `{"name":"x"}`).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/categories", "").Code)
}
