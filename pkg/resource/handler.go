package resource

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"coopregistry/portal-backend/pkg/repository"
)

// Options customise a Handler.
type Options[T any] struct {
	// Filters are the query keys passed through as repository filters.
	Filters []string
	// Validate rejects a decoded body before it is stored.
	Validate func(item *T) error
	// BeforeSave runs after validation. existing is nil on create.
	BeforeSave func(ctx context.Context, item, existing *T) error
}

// Handler serves CRUD endpoints for one repository.
type Handler[T any, PT repository.EntityPtr[T]] struct {
	repo   repository.Repository[T]
	opts   Options[T]
	logger *zap.Logger
}

// NewHandler creates a handler over repo
func NewHandler[T any, PT repository.EntityPtr[T]](repo repository.Repository[T], opts Options[T], logger *zap.Logger) *Handler[T, PT] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler[T, PT]{repo: repo, opts: opts, logger: logger}
}

// RegisterRoutes mounts the endpoints under rg at path.
func (h *Handler[T, PT]) RegisterRoutes(rg *gin.RouterGroup, path string, middleware ...gin.HandlerFunc) {
	group := rg.Group(path, middleware...)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", h.Create)
		group.PUT("/:id", h.Update)
		group.DELETE("/:id", h.Delete)
	}
}

func (h *Handler[T, PT]) List(c *gin.Context) {
	page, err := h.repo.List(c.Request.Context(), ParseQuery(c, h.opts.Filters...))
	if err != nil {
		WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler[T, PT]) Get(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}
	item, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler[T, PT]) Create(c *gin.Context) {
	item := new(T)
	if err := c.ShouldBindJSON(item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	PT(item).SetID(uuid.Nil)
	if err := h.prepare(c.Request.Context(), item, nil); err != nil {
		WriteError(c, h.logger, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), item); err != nil {
		WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler[T, PT]) Update(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}
	existing, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		WriteError(c, h.logger, err)
		return
	}

	item := new(T)
	if err := c.ShouldBindJSON(item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	PT(item).SetID(id)
	if err := h.prepare(c.Request.Context(), item, existing); err != nil {
		WriteError(c, h.logger, err)
		return
	}
	if err := h.repo.Update(c.Request.Context(), item); err != nil {
		WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler[T, PT]) Delete(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		WriteError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler[T, PT]) prepare(ctx context.Context, item, existing *T) error {
	if h.opts.Validate != nil {
		if err := h.opts.Validate(item); err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
	}
	if h.opts.BeforeSave != nil {
		return h.opts.BeforeSave(ctx, item, existing)
	}
	return nil
}
