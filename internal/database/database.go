// Package database opens the registry database once and shares the pool
// between gorm (registry records) and sqlx (document archive metadata).
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"coopregistry/portal-backend/internal/catalog"
	"coopregistry/portal-backend/internal/config"
	"coopregistry/portal-backend/internal/cooperatives"
	"coopregistry/portal-backend/internal/documents"
	"coopregistry/portal-backend/internal/users"
)

// DB is one connection pool seen through both data access libraries.
type DB struct {
	Gorm *gorm.DB
	SQL  *sqlx.DB
}

// Open connects using cfg.Driver ("postgres" or "sqlite").
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gcfg := &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		sqlDB *sqlx.DB
		gdb   *gorm.DB
		err   error
	)
	switch cfg.Driver {
	case "postgres", "":
		sqlDB, err = sqlx.ConnectContext(ctx, "postgres", cfg.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		gdb, err = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB.DB}), gcfg)
	case "sqlite":
		gdb, err = gorm.Open(sqlite.Open(cfg.Path), gcfg)
		if err != nil {
			break
		}
		pool, perr := gdb.DB()
		if perr != nil {
			err = perr
			break
		}
		sqlDB = sqlx.NewDb(pool, "sqlite3")
		err = sqlDB.PingContext(ctx)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if cfg.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	logger.Info("Connected to database",
		zap.String("driver", cfg.Driver),
		zap.String("database", describe(cfg)))
	return &DB{Gorm: gdb, SQL: sqlDB}, nil
}

// Migrate creates or updates every table the portal uses.
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.Gorm.WithContext(ctx).AutoMigrate(
		&catalog.Category{},
		&catalog.Organization{},
		&users.User{},
		&cooperatives.Cooperative{},
		&cooperatives.Member{},
	); err != nil {
		return fmt.Errorf("failed to migrate registry tables: %w", err)
	}
	if _, err := d.SQL.ExecContext(ctx, documents.Schema); err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

// describe names the database without credentials.
func describe(cfg config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" {
		return cfg.Path
	}
	return fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.DBName)
}
