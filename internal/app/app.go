// Package app assembles the registry services from configuration. The API
// server and the export worker share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/auth"
	"coopregistry/portal-backend/internal/catalog"
	"coopregistry/portal-backend/internal/certificate"
	"coopregistry/portal-backend/internal/config"
	"coopregistry/portal-backend/internal/cooperatives"
	"coopregistry/portal-backend/internal/dashboard"
	"coopregistry/portal-backend/internal/database"
	"coopregistry/portal-backend/internal/documents"
	"coopregistry/portal-backend/internal/export"
	"coopregistry/portal-backend/internal/metrics"
	"coopregistry/portal-backend/internal/notifications"
	"coopregistry/portal-backend/internal/notifications/websocket"
	"coopregistry/portal-backend/internal/snapshot"
	"coopregistry/portal-backend/internal/users"
	"coopregistry/portal-backend/pkg/pdf"
	"coopregistry/portal-backend/pkg/repository"
	"coopregistry/portal-backend/pkg/storage"
)

const (
	demoDatabase = "file:coopregistry-demo?mode=memory&cache=shared"
	demoSecret   = "demo-only-secret"
	demoPassword = "demo-admin"
)

// App holds the wired services of one process.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB       *database.DB
	Store    storage.S3Client
	Registry *prometheus.Registry

	Metrics       *metrics.DocumentMetrics
	HTTPMetrics   *metrics.HTTPMetrics
	WebSocket     *websocket.Manager
	Notifications *notifications.Service

	Users        *users.Service
	Auth         *auth.Service
	Categories   repository.Repository[catalog.Category]
	Orgs         repository.Repository[catalog.Organization]
	Cooperatives *cooperatives.Service
	Dashboard    *dashboard.Aggregator
	Renderer     *export.Renderer
	Documents    *documents.Service

	capturer *snapshot.RodCapturer
}

// New opens the database and storage and builds every service. In demo mode
// the registry lives in SQLite, in memory unless a SQLite database is
// configured, and is seeded with sample data.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	secret := cfg.Security.JWTSecret
	dbConfig := cfg.Database
	if cfg.Demo {
		logger.Warn("Running in demo mode with seeded sample data")
		if dbConfig.Driver != "sqlite" {
			dbConfig = config.DatabaseConfig{Driver: "sqlite", Path: demoDatabase}
		}
		if secret == "" {
			secret = demoSecret
		}
	}
	if secret == "" {
		return nil, errors.New("security.jwt_secret is required")
	}

	db, err := database.Open(ctx, dbConfig, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := db.Migrate(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Storage.Enabled {
		a.Store, err = storage.NewS3Client(ctx, storage.S3Options{
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			AccessKey:    cfg.Storage.AccessKey,
			SecretKey:    cfg.Storage.SecretKey,
			UsePathStyle: cfg.Storage.UsePathStyle,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
	} else {
		logger.Warn("Object storage disabled; documents are archived in memory")
		a.Store = storage.NewMemoryClient()
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewDocumentMetrics(a.Registry)
	a.HTTPMetrics = metrics.NewHTTPMetrics(a.Registry)

	a.WebSocket = websocket.NewManager(logger.Named("websocket"))
	if len(cfg.Security.AllowedOrigins) > 0 {
		a.WebSocket.AllowOrigins(cfg.Security.AllowedOrigins...)
	}
	a.Notifications = notifications.NewService(a.WebSocket, logger.Named("notifications"))

	a.Users = users.NewService(repository.NewGorm[users.User](db.Gorm, users.Schema), logger)
	a.Auth = auth.NewService(a.Users, secret, cfg.Security.TokenTTL)
	a.Categories = repository.NewGorm[catalog.Category](db.Gorm, catalog.CategorySchema)
	a.Orgs = repository.NewGorm[catalog.Organization](db.Gorm, catalog.OrganizationSchema)

	a.Cooperatives = cooperatives.NewService(
		repository.NewGorm[cooperatives.Cooperative](db.Gorm, cooperatives.CooperativeSchema),
		repository.NewGorm[cooperatives.Member](db.Gorm, cooperatives.MemberSchema),
		logger,
	)
	a.Dashboard = dashboard.NewAggregator(a.Cooperatives, logger.Named("dashboard"), dashboard.DefaultAggregatorConfig())
	a.Cooperatives.WithNotifier(a.Notifications).WithNotifier(a.Dashboard)

	if err := a.buildDocuments(); err != nil {
		a.Close()
		return nil, err
	}

	password := cfg.Security.AdminPassword
	if cfg.Demo && password == "" {
		password = demoPassword
		logger.Warn("Demo administrator uses the default password", zap.String("username", cfg.Security.AdminUsername))
	}
	if password != "" {
		if err := a.Users.EnsureAdmin(ctx, cfg.Security.AdminUsername, password); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create administrator: %w", err)
		}
	}

	if cfg.Demo {
		if err := seedDemo(ctx, a); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}
	return a, nil
}

func (a *App) buildDocuments() error {
	cfg := a.Config
	fonts, err := pdf.LoadFontSet(cfg.Documents.FontFamily, cfg.Documents.FontPath, cfg.Documents.FontBoldPath)
	if err != nil {
		return err
	}
	if fonts == nil {
		a.Logger.Warn("No Unicode font configured; Lao documents cannot be generated")
	}

	opts := certificate.DefaultOptions()
	opts.Watermark = cfg.Documents.Watermark
	opts.Emblem = cfg.Documents.Emblem
	opts.VerifyURL = cfg.Documents.VerifyURL
	opts.Compress = cfg.Documents.Compress

	bucket := cfg.Storage.Bucket
	photos := certificate.AssetLoaderFunc(func(ctx context.Context, key string) ([]byte, error) {
		body, err := a.Store.Download(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return io.ReadAll(body)
	})
	var assets certificate.AssetLoader = certificate.BundledAssets()
	if cfg.Documents.AssetDir != "" {
		assets = certificate.LayeredAssets{
			certificate.FSAssets{FS: os.DirFS(cfg.Documents.AssetDir)},
			assets,
		}
	}
	certificates := certificate.NewBuilder(
		assets,
		photos, fonts, opts, a.Logger.Named("certificate"),
	).WithObserver(a.Metrics)

	a.Renderer = export.NewRenderer(fonts)

	var snapshots *snapshot.Builder
	if cfg.Browser.Enabled {
		a.capturer = snapshot.NewRodCapturer(snapshot.BrowserConfig{
			ControlURL:     cfg.Browser.ControlURL,
			Bin:            cfg.Browser.Bin,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
			Timeout:        cfg.Browser.Timeout,
		}, a.Logger.Named("browser"))
		snapshots = snapshot.NewBuilder(a.capturer, a.Logger.Named("snapshot")).WithObserver(a.Metrics)
	}

	a.Documents = documents.NewService(
		documents.NewRepository(a.DB.SQL),
		a.Cooperatives,
		documents.Builders{Certificates: certificates, Tables: a.Renderer, Snapshots: snapshots},
		a.Store,
		documents.Options{Bucket: bucket, ViewBaseURL: cfg.Server.PublicURL},
		a.Logger.Named("documents"),
	).WithNotifier(a.Notifications).WithMetrics(a.Metrics)
	return nil
}

// Close releases the browser, the WebSocket hub and the database.
func (a *App) Close() {
	if a.capturer != nil {
		if err := a.capturer.Close(); err != nil {
			a.Logger.Warn("Failed to close browser", zap.Error(err))
		}
	}
	if a.Dashboard != nil {
		a.Dashboard.Stop()
	}
	if a.WebSocket != nil {
		a.WebSocket.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}

// Uptime reports how long ago start was, rounded to seconds.
func Uptime(start time.Time) string {
	return time.Since(start).Round(time.Second).String()
}
