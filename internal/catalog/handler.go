package catalog

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coopregistry/portal-backend/pkg/repository"
	"coopregistry/portal-backend/pkg/resource"
)

// Handler serves the category and organization endpoints
type Handler struct {
	categories    *resource.Handler[Category, *Category]
	organizations *resource.Handler[Organization, *Organization]
}

func NewHandler(categories repository.Repository[Category], organizations repository.Repository[Organization], logger *zap.Logger) *Handler {
	return &Handler{
		categories: resource.NewHandler[Category, *Category](categories, resource.Options[Category]{
			Filters:  []string{"type"},
			Validate: validateCategory,
		}, logger),
		organizations: resource.NewHandler[Organization, *Organization](organizations, resource.Options[Organization]{
			Filters:  []string{"type", "province"},
			Validate: validateOrganization,
		}, logger),
	}
}

// RegisterRoutes mounts /categories and /organizations. Writes go through
// the given middleware; reads are open to any authenticated user.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	categories := rg.Group("/categories")
	{
		categories.GET("", h.categories.List)
		categories.GET("/:id", h.categories.Get)
		categories.POST("", with(write, h.categories.Create)...)
		categories.PUT("/:id", with(write, h.categories.Update)...)
		categories.DELETE("/:id", with(write, h.categories.Delete)...)
	}
	organizations := rg.Group("/organizations")
	{
		organizations.GET("", h.organizations.List)
		organizations.GET("/:id", h.organizations.Get)
		organizations.POST("", with(write, h.organizations.Create)...)
		organizations.PUT("/:id", with(write, h.organizations.Update)...)
		organizations.DELETE("/:id", with(write, h.organizations.Delete)...)
	}
}

func with(middleware []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(middleware)+1)
	return append(append(chain, middleware...), h)
}
