package cooperatives

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/auth"
	"coopregistry/portal-backend/pkg/repository"
	"coopregistry/portal-backend/pkg/resource"
)

var listFilters = []string{"type", "cooperative_type", "status", "province", "license_number", "category_id", "organization_id"}

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the back-office endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	coops := rg.Group("/cooperatives")
	{
		coops.GET("", h.List)
		coops.POST("", h.Create)
		coops.GET("/:id", h.Get)
		coops.PUT("/:id", h.Update)
		coops.DELETE("/:id", h.Delete)
		coops.POST("/:id/status", h.Transition)
		coops.GET("/:id/members", h.ListMembers)
		coops.POST("/:id/members", h.AddMember)
		coops.PUT("/:id/members/:member_id", h.UpdateMember)
		coops.DELETE("/:id/members/:member_id", h.RemoveMember)
	}
}

// RegisterPublicRoutes mounts the read-only directory of approved cooperatives.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	public := rg.Group("/cooperatives")
	{
		public.GET("", h.PublicList)
		public.GET("/:id", h.PublicGet)
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotCertifiable) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	resource.WriteError(c, h.logger, err)
}

func (h *Handler) List(c *gin.Context) {
	page, err := h.service.List(c.Request.Context(), resource.ParseQuery(c, listFilters...))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) Create(c *gin.Context) {
	var coop Cooperative
	if err := c.ShouldBindJSON(&coop); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.Create(c.Request.Context(), &coop); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coop)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	coop, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":                coop,
		"allowed_transitions": h.service.AllowedTransitions(coop),
	})
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	var coop Cooperative
	if err := c.ShouldBindJSON(&coop); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	coop.ID = id
	if err := h.service.Update(c.Request.Context(), &coop); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, coop)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type transitionRequest struct {
	Status Status `json:"status" binding:"required"`
}

func (h *Handler) Transition(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	coop, err := h.service.Transition(c.Request.Context(), id, req.Status, auth.Subject(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, coop)
}

func (h *Handler) ListMembers(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	page, err := h.service.ListMembers(c.Request.Context(), id, resource.ParseQuery(c, "role", "gender"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) AddMember(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	var m Member
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.AddMember(c.Request.Context(), id, &m); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) UpdateMember(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	memberID, ok := resource.ParseID(c, "member_id")
	if !ok {
		return
	}
	var m Member
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m.ID = memberID
	if err := h.service.UpdateMember(c.Request.Context(), id, &m); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	memberID, ok := resource.ParseID(c, "member_id")
	if !ok {
		return
	}
	if err := h.service.RemoveMember(c.Request.Context(), id, memberID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PublicList lists approved cooperatives only.
func (h *Handler) PublicList(c *gin.Context) {
	q := resource.ParseQuery(c, "type", "province").WithFilter("status", string(StatusApproved))
	page, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) PublicGet(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	coop, err := h.service.Get(c.Request.Context(), id)
	if err == nil && coop.Status != StatusApproved {
		err = repository.ErrNotFound
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, coop)
}
