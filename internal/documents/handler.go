package documents

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/auth"
	"coopregistry/portal-backend/internal/cooperatives"
	"coopregistry/portal-backend/internal/export"
	"coopregistry/portal-backend/pkg/pdf"
	"coopregistry/portal-backend/pkg/resource"
)

var (
	listFilters      = []string{"kind", "cooperative_id", "created_by", "locale"}
	directoryFilters = []string{"status", "type", "province", "category_id", "organization_id"}
)

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

// RegisterRoutes mounts the generation and archive endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/cooperatives/:id/certificate", h.GenerateCertificate)

	exports := rg.Group("/exports")
	{
		exports.POST("/table", h.ExportTable)
		exports.GET("/directory", h.ExportDirectory)
		exports.GET("/members/:id", h.ExportMembers)
		exports.POST("/snapshot", h.ExportSnapshot)
	}

	docs := rg.Group("/documents")
	{
		docs.GET("", h.List)
		docs.GET("/:id", h.GetMetadata)
		docs.GET("/:id/download", h.Download)
		docs.GET("/:id/link", h.Link)
		docs.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cooperatives.ErrNotCertifiable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSnapshotUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, pdf.ErrFontRequired):
		h.logger.Warn("Document needs a Unicode font but none is configured", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no Unicode font is configured for Lao text; set documents.font_path"})
	default:
		resource.WriteError(c, h.logger, err)
	}
}

// attachment writes a generated file as a download.
func attachment(c *gin.Context, g *Generated) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": g.Document.Filename}))
	c.Header("X-Document-ID", g.Document.ID.String())
	c.Data(http.StatusCreated, g.Document.ContentType, g.Data)
}

func (h *Handler) GenerateCertificate(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	g, err := h.service.GenerateCertificate(c.Request.Context(), CertificateRequest{
		CooperativeID: id,
		Locale:        c.Query("locale"),
		RequestedBy:   auth.Subject(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	attachment(c, g)
}

type tableRequest struct {
	export.Spec
	Format string `json:"format"`
}

func (h *Handler) ExportTable(c *gin.Context) {
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.service.ExportTable(c.Request.Context(), req.Spec, req.Format, auth.Subject(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	attachment(c, g)
}

func (h *Handler) ExportDirectory(c *gin.Context) {
	q := resource.ParseQuery(c, directoryFilters...)
	g, err := h.service.ExportDirectory(c.Request.Context(), c.Query("locale"), q, c.Query("format"), auth.Subject(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	attachment(c, g)
}

func (h *Handler) ExportMembers(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	g, err := h.service.ExportMembers(c.Request.Context(), id, c.Query("locale"), c.Query("format"), auth.Subject(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	attachment(c, g)
}

// ExportSnapshot answers 204 when the requested element was not on the page.
func (h *Handler) ExportSnapshot(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.RequestedBy = auth.Subject(c)

	g, err := h.service.ExportSnapshot(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if g == nil {
		c.Status(http.StatusNoContent)
		return
	}
	attachment(c, g)
}

func (h *Handler) List(c *gin.Context) {
	page, err := h.service.List(c.Request.Context(), resource.ParseQuery(c, listFilters...))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetMetadata(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Download(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	doc, body, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, doc.Size, doc.ContentType, body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}),
	})
}

// Link returns a presigned download URL valid for ttl seconds (default 900).
func (h *Handler) Link(c *gin.Context) {
	id, ok := resource.ParseID(c, "id")
	if !ok {
		return
	}
	ttl := 15 * time.Minute
	if s := c.Query("ttl"); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil || secs < 1 || secs > 86400 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttl must be between 1 and 86400 seconds"})
			return
		}
		ttl = time.Duration(secs) * time.Second
	}
	u, err := h.service.PresignedURL(c.Request.Context(), id, ttl)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u, "expires_in": int(ttl.Seconds())})
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
