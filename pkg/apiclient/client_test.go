package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopregistry/portal-backend/pkg/repository"
)

type category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Type string    `json:"type"`
}

type headerLog struct {
	mu     sync.Mutex
	values []string
}

func (l *headerLog) add(v string) {
	l.mu.Lock()
	l.values = append(l.values, v)
	l.mu.Unlock()
}

func (l *headerLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.values...)
}

func newServer(t *testing.T) (*httptest.Server, *headerLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	seen := &headerLog{}
	known := uuid.MustParse("4d1f6f1e-0000-4000-8000-000000000001")

	r := gin.New()
	r.Use(func(c *gin.Context) {
		seen.add(c.GetHeader("Authorization"))
		c.Next()
	})
	r.POST("/api/v1/auth/login", func(c *gin.Context) {
		var req map[string]string
		_ = c.ShouldBindJSON(&req)
		if req["password"] != "secret" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": "tok-1", "token_type": "Bearer", "role": "admin"})
	})
	api := r.Group("/api/v1/categories")
	api.GET("", func(c *gin.Context) {
		size, _ := strconv.Atoi(c.Query("page_size"))
		c.JSON(http.StatusOK, gin.H{
			"data":        []category{{ID: known, Name: "Rice", Type: c.Query("type")}},
			"total":       1,
			"page":        1,
			"page_size":   size,
			"total_pages": 1,
		})
	})
	api.GET("/:id", func(c *gin.Context) {
		if c.Param("id") != known.String() {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": category{ID: known, Name: "Rice"}, "allowed_transitions": []string{}})
	})
	api.POST("", func(c *gin.Context) {
		var in category
		_ = c.ShouldBindJSON(&in)
		in.ID = known
		c.JSON(http.StatusCreated, in)
	})
	api.PUT("/:id", func(c *gin.Context) {
		var in category
		_ = c.ShouldBindJSON(&in)
		in.ID = uuid.MustParse(c.Param("id"))
		c.JSON(http.StatusOK, in)
	})
	api.DELETE("/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/api/v1/exports/snapshot", func(c *gin.Context) {
		var in map[string]string
		_ = c.ShouldBindJSON(&in)
		if in["element_id"] == "missing" {
			c.Status(http.StatusNoContent)
			return
		}
		c.Header("Content-Disposition", `attachment; filename*=utf-8''%E0%BA%A5%E0%BA%97.pdf`)
		c.Header("X-Document-ID", "doc-1")
		c.Data(http.StatusCreated, "application/pdf", []byte("%PDF-1.3"))
	})
	r.GET("/broken", func(c *gin.Context) { c.String(http.StatusBadGateway, "upstream down\n") })

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestClient_CRUD(t *testing.T) {
	srv, seen := newServer(t)
	ctx := context.Background()
	api := New(srv.URL+"/", WithToken("preset"))
	categories := NewClient[category](api, "api/v1/categories/")

	page, err := categories.List(ctx, repository.Query{PageSize: 5}.WithFilter("type", "crop"))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "crop", page.Items[0].Type)
	assert.Equal(t, 5, page.PageSize)

	got, err := categories.Get(ctx, page.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Rice", got.Name)

	_, err = categories.Get(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.EqualError(t, err, "api returned status 404: record not found")

	created, err := categories.Create(ctx, &category{Name: "Coffee"})
	require.NoError(t, err)
	assert.Equal(t, "Coffee", created.Name)
	assert.NotEqual(t, uuid.Nil, created.ID)

	id := uuid.New()
	updated, err := categories.Update(ctx, id, &category{Name: "Tea"})
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)

	require.NoError(t, categories.Delete(ctx, id))

	for _, h := range seen.all() {
		assert.Equal(t, "Bearer preset", h)
	}
}

func TestAPI_Login(t *testing.T) {
	srv, seen := newServer(t)
	ctx := context.Background()
	api := New(srv.URL)

	_, err := api.Login(ctx, "admin", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid credentials", apiErr.Message)

	token, err := api.Login(ctx, "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.AccessToken)

	_, err = NewClient[category](api, "/api/v1/categories").List(ctx, repository.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "", "Bearer tok-1"}, seen.all())
}

func TestAPI_Download(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	api := New(srv.URL)

	f, err := api.Download(ctx, http.MethodPost, "/api/v1/exports/snapshot", nil, map[string]string{"element_id": "directory"})
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "ລທ.pdf", f.Filename)
	assert.Equal(t, "doc-1", f.DocumentID)
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.Equal(t, []byte("%PDF-1.3"), f.Data)

	f, err = api.Download(ctx, http.MethodPost, "/api/v1/exports/snapshot", nil, map[string]string{"element_id": "missing"})
	require.NoError(t, err)
	assert.Nil(t, f)

	err = api.Do(ctx, http.MethodGet, "/broken", nil, nil, new(json.RawMessage))
	require.ErrorAs(t, err, new(*APIError))
	assert.Contains(t, err.Error(), "502: upstream down")
}
