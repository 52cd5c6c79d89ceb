package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/export"
	"coopregistry/portal-backend/internal/locale"
	"coopregistry/portal-backend/internal/metrics"
	"coopregistry/portal-backend/pkg/repository"
)

// DirectorySource builds the directory table for a locale and query.
type DirectorySource interface {
	DirectorySpec(ctx context.Context, l locale.Locale, q repository.Query) (export.Spec, error)
}

// Notifier is told about completed deliveries.
type Notifier interface {
	ExportDelivered(ctx context.Context, schedule, filename string, recipients int)
}

// Execution reports one run of a schedule
type Execution struct {
	Schedule   string        `json:"schedule"`
	Filename   string        `json:"filename"`
	Rows       int           `json:"rows"`
	Recipients int           `json:"recipients"`
	ArchiveKey string        `json:"archive_key,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Executor renders scheduled exports and hands them to the delivery manager
type Executor struct {
	source   DirectorySource
	renderer *export.Renderer
	delivery *DeliveryManager
	notifier Notifier
	metrics  *metrics.DocumentMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewExecutor creates a new executor
func NewExecutor(source DirectorySource, renderer *export.Renderer, delivery *DeliveryManager, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		source:   source,
		renderer: renderer,
		delivery: delivery,
		logger:   logger,
		now:      time.Now,
	}
}

func (e *Executor) WithNotifier(n Notifier) *Executor {
	e.notifier = n
	return e
}

func (e *Executor) WithMetrics(m *metrics.DocumentMetrics) *Executor {
	e.metrics = m
	return e
}

func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute renders the directory for s and delivers it. Email and archive
// are attempted independently; their errors are joined.
func (e *Executor) Execute(ctx context.Context, s Schedule) (*Execution, error) {
	started := e.now()

	q := repository.Query{}
	if s.Status != "" {
		q = q.WithFilter("status", s.Status)
	}
	spec, err := e.source.DirectorySpec(ctx, s.Locale, q)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", s.Name, err)
	}
	spec.Filename = fmt.Sprintf("%s-%s", s.Name, started.Format("2006-01-02"))

	res, err := e.renderer.Render(spec, s.Format)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: failed to render: %w", s.Name, err)
	}
	e.metrics.ObserveGenerated("table", string(s.Locale), e.now().Sub(started))

	exec := &Execution{
		Schedule:  s.Name,
		Filename:  res.Filename,
		Rows:      res.Rows,
		StartedAt: started,
	}

	var errs []error
	if len(s.Recipients) > 0 {
		err := e.delivery.DeliverByEmail(ctx, &EmailDelivery{
			To:      s.Recipients,
			Subject: fmt.Sprintf("%s (%s)", spec.Title, started.Format("2006-01-02")),
			Body:    fmt.Sprintf("The scheduled export %q is attached (%d cooperatives).", s.Name, res.Rows),
			Attachments: []Attachment{{
				Name:        res.Filename,
				Data:        res.Data,
				ContentType: res.ContentType,
			}},
		})
		e.metrics.ObserveDelivery("email", err)
		if err != nil {
			errs = append(errs, err)
		} else {
			exec.Recipients = len(s.Recipients)
		}
	}
	if s.Archive {
		key, err := e.delivery.DeliverToS3(ctx, &S3Delivery{
			Key:         path.Join(s.Name, started.Format("2006/01/02"), res.Filename),
			Data:        res.Data,
			ContentType: res.ContentType,
		})
		e.metrics.ObserveDelivery("archive", err)
		if err != nil {
			errs = append(errs, err)
		} else {
			exec.ArchiveKey = key
		}
	}
	exec.Duration = e.now().Sub(started)

	if err := errors.Join(errs...); err != nil {
		return exec, fmt.Errorf("schedule %s: %w", s.Name, err)
	}
	if e.notifier != nil {
		e.notifier.ExportDelivered(ctx, s.Name, res.Filename, exec.Recipients)
	}
	e.logger.Info("Scheduled export delivered",
		zap.String("schedule", s.Name),
		zap.String("filename", res.Filename),
		zap.Int("rows", res.Rows),
		zap.Int("recipients", exec.Recipients),
		zap.String("archive_key", exec.ArchiveKey),
		zap.Duration("duration", exec.Duration))
	return exec, nil
}
