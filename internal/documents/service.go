package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/certificate"
	"coopregistry/portal-backend/internal/export"
	"coopregistry/portal-backend/internal/locale"
	"coopregistry/portal-backend/internal/metrics"
	"coopregistry/portal-backend/internal/notifications"
	"coopregistry/portal-backend/internal/snapshot"
	"coopregistry/portal-backend/pkg/repository"
	"coopregistry/portal-backend/pkg/resource"
	"coopregistry/portal-backend/pkg/storage"
)

// ErrSnapshotUnavailable is returned when no headless browser is configured.
var ErrSnapshotUnavailable = errors.New("snapshot capture is not configured")

// Registry supplies the data documents are built from
type Registry interface {
	CertificateRecord(ctx context.Context, id uuid.UUID) (certificate.Record, error)
	DirectorySpec(ctx context.Context, l locale.Locale, q repository.Query) (export.Spec, error)
	MembersSpec(ctx context.Context, cooperativeID uuid.UUID, l locale.Locale) (export.Spec, error)
}

// Builders are the document builders a Service drives. Snapshots may be nil.
type Builders struct {
	Certificates *certificate.Builder
	Tables       *export.Renderer
	Snapshots    *snapshot.Builder
}

// Options configure where documents are archived and captured from
type Options struct {
	Bucket string
	// ViewBaseURL is prefixed to snapshot paths, e.g. "http://localhost:8080".
	ViewBaseURL string
}

// Service builds documents, archives them and records their metadata
type Service struct {
	repo     Repository
	registry Registry
	builders Builders
	store    storage.S3Client
	opts     Options
	notifier *notifications.Service
	metrics  *metrics.DocumentMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a document service
func NewService(repo Repository, registry Registry, builders Builders, store storage.S3Client, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		registry: registry,
		builders: builders,
		store:    store,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNotifier sets the notifier told about generated documents.
func (s *Service) WithNotifier(n *notifications.Service) *Service {
	s.notifier = n
	return s
}

// WithMetrics sets the metrics updated after each generation.
func (s *Service) WithMetrics(m *metrics.DocumentMetrics) *Service {
	s.metrics = m
	return s
}

// WithClock sets the clock used for archive timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GenerateCertificate renders the certificate of an approved cooperative.
func (s *Service) GenerateCertificate(ctx context.Context, req CertificateRequest) (*Generated, error) {
	l, err := locale.Parse(req.Locale)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", resource.ErrValidation, err)
	}
	rec, err := s.registry.CertificateRecord(ctx, req.CooperativeID)
	if err != nil {
		return nil, err
	}

	started := s.now()
	res, err := s.builders.Certificates.Build(ctx, rec, l)
	if err != nil {
		return nil, fmt.Errorf("failed to build certificate: %w", err)
	}
	if res.Layout.Overflow {
		s.logger.Warn("certificate content reaches the signature block",
			zap.String("license_number", rec.LicenseNumber))
	}

	id := req.CooperativeID
	return s.archive(ctx, archiveRequest{
		kind:          KindCertificate,
		filename:      res.Filename,
		contentType:   "application/pdf",
		data:          res.Data,
		cooperativeID: &id,
		locale:        l,
		requestedBy:   req.RequestedBy,
		started:       started,
	})
}

// ExportTable renders a caller supplied table.
func (s *Service) ExportTable(ctx context.Context, spec export.Spec, format, requestedBy string) (*Generated, error) {
	return s.exportSpec(ctx, spec, format, nil, requestedBy)
}

// ExportDirectory renders the cooperative directory selected by q.
func (s *Service) ExportDirectory(ctx context.Context, lang string, q repository.Query, format, requestedBy string) (*Generated, error) {
	l, err := locale.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", resource.ErrValidation, err)
	}
	spec, err := s.registry.DirectorySpec(ctx, l, q)
	if err != nil {
		return nil, err
	}
	return s.exportSpec(ctx, spec, format, nil, requestedBy)
}

// ExportMembers renders the member list of one cooperative.
func (s *Service) ExportMembers(ctx context.Context, cooperativeID uuid.UUID, lang, format, requestedBy string) (*Generated, error) {
	l, err := locale.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", resource.ErrValidation, err)
	}
	spec, err := s.registry.MembersSpec(ctx, cooperativeID, l)
	if err != nil {
		return nil, err
	}
	return s.exportSpec(ctx, spec, format, &cooperativeID, requestedBy)
}

func (s *Service) exportSpec(ctx context.Context, spec export.Spec, format string, cooperativeID *uuid.UUID, requestedBy string) (*Generated, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", resource.ErrValidation, err)
	}
	if spec.Locale == "" {
		spec.Locale = locale.Lao
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", resource.ErrValidation, err)
	}

	started := s.now()
	res, err := s.builders.Tables.Render(spec, f)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s export: %w", f, err)
	}
	return s.archive(ctx, archiveRequest{
		kind:          KindTable,
		filename:      res.Filename,
		contentType:   res.ContentType,
		data:          res.Data,
		cooperativeID: cooperativeID,
		locale:        spec.Locale,
		requestedBy:   requestedBy,
		started:       started,
	})
}

// ExportSnapshot captures one element of a portal view. It returns nil and
// no error when the element does not exist on the page.
func (s *Service) ExportSnapshot(ctx context.Context, req SnapshotRequest) (*Generated, error) {
	if s.builders.Snapshots == nil {
		return nil, ErrSnapshotUnavailable
	}
	target, err := s.viewURL(req.Path)
	if err != nil {
		return nil, err
	}

	started := s.now()
	res, err := s.builders.Snapshots.Build(ctx, snapshot.Request{
		Target:   snapshot.Target{URL: target, ElementID: req.ElementID},
		Filename: req.Filename,
		Title:    req.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s: %w", req.Path, err)
	}
	if res == nil {
		s.notifier.DocumentSkipped(ctx, notifications.DocumentEvent{
			Kind:        string(KindSnapshot),
			Filename:    snapshot.Filename(req.Filename),
			RequestedBy: req.RequestedBy,
			Reason:      "element_not_found",
		})
		return nil, nil
	}
	return s.archive(ctx, archiveRequest{
		kind:        KindSnapshot,
		filename:    res.Filename,
		contentType: "application/pdf",
		data:        res.Data,
		requestedBy: req.RequestedBy,
		started:     started,
	})
}

// viewURL resolves a portal path against the view base URL. Only paths on
// the portal itself may be captured.
func (s *Service) viewURL(p string) (string, error) {
	u, err := url.Parse(p)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "", fmt.Errorf("%w: path must be a portal path such as /directory", resource.ErrValidation)
	}
	return strings.TrimSuffix(s.opts.ViewBaseURL, "/") + u.RequestURI(), nil
}

type archiveRequest struct {
	kind          Kind
	filename      string
	contentType   string
	data          []byte
	cooperativeID *uuid.UUID
	locale        locale.Locale
	requestedBy   string
	started       time.Time
}

// archive uploads a built document, records it and tells listeners.
func (s *Service) archive(ctx context.Context, req archiveRequest) (*Generated, error) {
	now := s.now().UTC()
	doc := &Document{
		ID:            uuid.New(),
		Kind:          req.kind,
		Filename:      req.filename,
		ContentType:   req.contentType,
		Size:          int64(len(req.data)),
		Bucket:        s.opts.Bucket,
		CooperativeID: req.cooperativeID,
		Locale:        string(req.locale),
		CreatedBy:     req.requestedBy,
		CreatedAt:     now,
	}
	doc.StorageKey = StorageKey(doc)

	if err := s.store.Upload(ctx, doc.Bucket, doc.StorageKey, bytes.NewReader(req.data), doc.ContentType); err != nil {
		return nil, fmt.Errorf("failed to archive %s: %w", doc.Filename, err)
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if derr := s.store.Delete(ctx, doc.Bucket, doc.StorageKey); derr != nil {
			s.logger.Warn("failed to remove orphaned object", zap.String("key", doc.StorageKey), zap.Error(derr))
		}
		return nil, err
	}

	s.metrics.ObserveGenerated(string(doc.Kind), doc.Locale, s.now().Sub(req.started))
	s.notifier.DocumentGenerated(ctx, notifications.DocumentEvent{
		DocumentID:    doc.ID.String(),
		Kind:          string(doc.Kind),
		Filename:      doc.Filename,
		CooperativeID: optionalID(doc.CooperativeID),
		Locale:        doc.Locale,
		Size:          doc.Size,
		RequestedBy:   doc.CreatedBy,
	})
	s.logger.Info("document generated",
		zap.String("id", doc.ID.String()),
		zap.String("kind", string(doc.Kind)),
		zap.String("filename", doc.Filename),
		zap.Int64("size", doc.Size),
	)
	return &Generated{Document: doc, Data: req.data}, nil
}

// StorageKey returns the object key a document is archived under.
func StorageKey(doc *Document) string {
	return path.Join(
		string(doc.Kind)+"s",
		doc.CreatedAt.Format("2006/01/02"),
		doc.ID.String(),
		doc.Filename,
	)
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// Get returns the metadata of a document.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.repo.Get(ctx, id)
}

// List lists archived documents, newest first.
func (s *Service) List(ctx context.Context, q repository.Query) (*repository.Page[Document], error) {
	return s.repo.List(ctx, q)
}

// Download opens the archived file of a document. The caller closes it.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (*Document, io.ReadCloser, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.store.Download(ctx, doc.Bucket, doc.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, fmt.Errorf("%w: archived file of %s is missing", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download %s: %w", doc.Filename, err)
	}
	return doc, body, nil
}

// PresignedURL returns a time limited download link for a document.
func (s *Service) PresignedURL(ctx context.Context, id uuid.UUID, ttl time.Duration) (string, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.store.GetPresignedURL(ctx, doc.Bucket, doc.StorageKey, ttl)
}

// Delete removes a document and its archived file.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.Bucket, doc.StorageKey); err != nil {
		s.logger.Warn("failed to delete archived file", zap.String("key", doc.StorageKey), zap.Error(err))
	}
	return nil
}
