// Package views renders the server-side HTML pages of the public registry.
// The pages double as snapshot sources for the document builders.
package views

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/certificate"
	"coopregistry/portal-backend/internal/cooperatives"
	"coopregistry/portal-backend/internal/export"
	"coopregistry/portal-backend/internal/locale"
	"coopregistry/portal-backend/pkg/repository"
)

// Element ids of the capturable page regions.
const (
	CertificateElement = "certificate"
	DirectoryElement   = "directory"
)

//go:embed templates/*.html
var templateFS embed.FS

type chrome struct {
	home      string
	directory string
	approved  string
}

var chromes = map[locale.Locale]chrome{
	locale.English: {home: "Home", directory: "Cooperative directory", approved: "%s registered cooperatives"},
	locale.Lao:     {home: "ໜ້າຫຼັກ", directory: "ລາຍຊື່ສະຫະກອນ", approved: "ສະຫະກອນທີ່ຈົດທະບຽນແລ້ວ %s ແຫ່ງ"},
}

// Page carries the fields shared by every view.
type Page struct {
	Lang      string
	Title     string
	Home      string
	Directory string
}

// Handler serves the HTML views
type Handler struct {
	coops     *cooperatives.Service
	templates *template.Template
	logger    *zap.Logger
}

// NewHandler parses the embedded templates.
func NewHandler(coops *cooperatives.Service, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.New("views").Funcs(template.FuncMap{
		"glyphs": glyphs,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse view templates: %w", err)
	}
	return &Handler{coops: coops, templates: tmpl, logger: logger}, nil
}

// RegisterRoutes registers the public pages.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.Home)
	r.GET("/directory", h.Directory)
	r.GET("/views/cooperatives/:id/certificate", h.Certificate)
}

// CertificatePath is the page holding the certificate preview of a cooperative.
func CertificatePath(id uuid.UUID, l locale.Locale) string {
	return fmt.Sprintf("/views/cooperatives/%s/certificate?locale=%s", id, l)
}

// DirectoryPath is the page holding the public directory table.
func DirectoryPath(l locale.Locale, search string) string {
	v := url.Values{"locale": {string(l)}}
	if search != "" {
		v.Set("search", search)
	}
	return "/directory?" + v.Encode()
}

func (h *Handler) pageFor(c *gin.Context) (Page, locale.Locale, bool) {
	l, err := locale.Parse(c.Query("locale"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return Page{}, "", false
	}
	ch := chromes[l]
	return Page{Lang: string(l), Home: ch.home, Directory: ch.directory}, l, true
}

func (h *Handler) html(c *gin.Context, name string, data interface{}) {
	c.Render(http.StatusOK, render.HTML{Template: h.templates, Name: name, Data: data})
}

// Home renders the landing page
func (h *Handler) Home(c *gin.Context) {
	p, l, ok := h.pageFor(c)
	if !ok {
		return
	}
	approved, err := h.coops.List(c.Request.Context(), repository.Query{PageSize: 1}.WithFilter("status", string(cooperatives.StatusApproved)))
	if err != nil {
		h.logger.Error("failed to count cooperatives", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	p.Title = p.Home
	h.html(c, "home.html", struct {
		Page
		Heading  certificate.Heading
		Approved string
	}{
		Page:     p,
		Heading:  certificate.HeadingFor(l),
		Approved: fmt.Sprintf(chromes[l].approved, l.FormatCount(int(approved.Total))),
	})
}

// Directory renders the approved cooperatives as a table
func (h *Handler) Directory(c *gin.Context) {
	p, l, ok := h.pageFor(c)
	if !ok {
		return
	}
	q := repository.Query{Search: c.Query("search")}.WithFilter("status", string(cooperatives.StatusApproved))
	spec, err := h.coops.DirectorySpec(c.Request.Context(), l, q)
	if err != nil {
		h.logger.Error("failed to load directory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	spec.Subtitle = ""

	rows := make([][]string, len(spec.Rows))
	for i, row := range spec.Rows {
		rows[i] = make([]string, len(spec.Columns))
		for j, key := range spec.Columns {
			rows[i][j] = export.Cell(l, row, key)
		}
	}
	p.Title = spec.Title
	h.html(c, "directory.html", struct {
		Page
		Spec export.Spec
		Rows [][]string
	}{Page: p, Spec: spec, Rows: rows})
}

// Certificate renders the certificate preview of an approved cooperative
func (h *Handler) Certificate(c *gin.Context) {
	p, l, ok := h.pageFor(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	rec, err := h.coops.CertificateRecord(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, cooperatives.ErrNotCertifiable) {
		c.JSON(http.StatusNotFound, gin.H{"error": "certificate not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load certificate", zap.String("id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	heading := certificate.HeadingFor(l)
	p.Title = heading.Title + " " + rec.LicenseNumber
	h.html(c, "certificate.html", struct {
		Page
		Heading  certificate.Heading
		Record   certificate.Record
		Lines    []certificate.Line
		IssuedAt string
	}{
		Page:     p,
		Heading:  heading,
		Record:   rec,
		Lines:    rec.Lines(l),
		IssuedAt: certificate.IssuedAt(l, rec.IssuanceLocation, rec.IssuanceDate),
	})
}

// glyphs splits s into characters, skipping spaces, for boxed rendering.
func glyphs(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		if r == ' ' {
			continue
		}
		out = append(out, string(r))
	}
	return out
}
