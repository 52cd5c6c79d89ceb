package users

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopregistry/portal-backend/pkg/repository"
)

func TestEnsureAdminAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(repository.NewMemory[User](), nil)

	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "change-me-now"))
	require.NoError(t, svc.EnsureAdmin(ctx, "other", "change-me-too"))

	u, err := svc.Authenticate(ctx, "ADMIN", "change-me-now")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, u.Role)
	assert.NotEqual(t, "change-me-now", u.PasswordHash)

	_, err = svc.Authenticate(ctx, "admin", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "other", "change-me-too")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_DisabledAccount(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory[User]()
	svc := NewService(repo, nil)

	u := &User{Username: "keo", Password: "long-enough"}
	require.NoError(t, Validate(u))
	require.NoError(t, HashPassword(ctx, u, nil))
	u.Status = StatusDisabled
	require.NoError(t, repo.Create(ctx, u))

	_, err := svc.Authenticate(ctx, "keo", "long-enough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHashPassword_KeepsExistingOnUpdate(t *testing.T) {
	ctx := context.Background()
	existing := &User{PasswordHash: "$2a$10$existing"}

	u := &User{Username: "keo"}
	require.NoError(t, HashPassword(ctx, u, existing))
	assert.Equal(t, existing.PasswordHash, u.PasswordHash)

	assert.Error(t, HashPassword(ctx, &User{Username: "keo"}, nil))
	assert.Error(t, HashPassword(ctx, &User{Username: "keo", Password: "short"}, nil))
}

func TestValidate(t *testing.T) {
	u := &User{Username: "keo"}
	require.NoError(t, Validate(u))
	assert.Equal(t, RoleViewer, u.Role)
	assert.Equal(t, StatusActive, u.Status)

	assert.Error(t, Validate(&User{Username: "keo", Role: "root"}))
	assert.Error(t, Validate(&User{}))
}

func TestRoutes_NeverExposeHash(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(repository.NewMemory[User](), nil)
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users",
		bytes.NewBufferString(`{"username":"noy","password":"secret-pass","role":"registrar"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret-pass")
	assert.NotContains(t, w.Body.String(), "$2a$")

	u, err := svc.Authenticate(context.Background(), "noy", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, RoleRegistrar, u.Role)
}
