package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"coopregistry/portal-backend/pkg/repository"
)

// Repository stores document metadata
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, q repository.Query) (*repository.Page[Document], error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// filterColumns maps query filters onto columns
var filterColumns = map[string]string{
	"kind":           "kind",
	"cooperative_id": "cooperative_id",
	"created_by":     "created_by",
	"locale":         "locale",
}

type sqlRepository struct {
	db *sqlx.DB
}

// NewRepository returns a Repository over db. Placeholders are rebound for
// the driver db was opened with.
func NewRepository(db *sqlx.DB) Repository {
	return &sqlRepository{db: db}
}

func (r *sqlRepository) Create(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, kind, filename, content_type, size, bucket, storage_key,
			cooperative_id, locale, created_by, created_at
		) VALUES (
			:id, :kind, :filename, :content_type, :size, :bucket, :storage_key,
			:cooperative_id, :locale, :created_by, :created_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

func (r *sqlRepository) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, r.db.Rebind("SELECT * FROM documents WHERE id = ?"), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	return &doc, nil
}

func (r *sqlRepository) List(ctx context.Context, q repository.Query) (*repository.Page[Document], error) {
	q = q.Normalize()

	where := " WHERE 1=1"
	var args []interface{}
	if search := strings.TrimSpace(q.Search); search != "" {
		where += " AND LOWER(filename) LIKE ?"
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	for key, value := range q.Filters {
		column, ok := filterColumns[key]
		if !ok {
			continue
		}
		where += fmt.Sprintf(" AND %s = ?", column)
		args = append(args, value)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM documents"+where), args...); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	docs := []Document{}
	query := r.db.Rebind("SELECT * FROM documents" + where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?")
	if err := r.db.SelectContext(ctx, &docs, query, append(args, q.PageSize, q.Offset())...); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	pages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return &repository.Page[Document]{Items: docs, Total: total, Page: q.Page, PageSize: q.PageSize, TotalPages: pages}, nil
}

func (r *sqlRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM documents WHERE id = ?"), id.String())
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
