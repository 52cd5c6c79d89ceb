package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSchema maps the query contract onto table columns.
type GormSchema struct {
	// SearchColumns are matched case-insensitively against Query.Search.
	SearchColumns []string
	// FilterColumns maps filter keys to columns; unknown keys are ignored.
	FilterColumns map[string]string
	// OrderBy defaults to "created_at DESC".
	OrderBy string
	// Preload lists associations loaded with every read.
	Preload []string
}

// Gorm is the database-backed Repository.
type Gorm[T any, PT EntityPtr[T]] struct {
	db     *gorm.DB
	schema GormSchema
}

// NewGorm creates a repository over db
func NewGorm[T any, PT EntityPtr[T]](db *gorm.DB, schema GormSchema) *Gorm[T, PT] {
	if schema.OrderBy == "" {
		schema.OrderBy = "created_at DESC"
	}
	return &Gorm[T, PT]{db: db, schema: schema}
}

func (r *Gorm[T, PT]) query(ctx context.Context) *gorm.DB {
	tx := r.db.WithContext(ctx)
	for _, assoc := range r.schema.Preload {
		tx = tx.Preload(assoc)
	}
	return tx
}

func (r *Gorm[T, PT]) Create(ctx context.Context, item *T) error {
	p := PT(item)
	if p.GetID() == uuid.Nil {
		p.SetID(uuid.New())
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (r *Gorm[T, PT]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var item T
	err := r.query(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &item, nil
}

func (r *Gorm[T, PT]) Update(ctx context.Context, item *T) error {
	id := PT(item).GetID()
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Select("*").Omit("id", "created_at", clause.Associations).Updates(item)
	if res.Error != nil {
		return fmt.Errorf("failed to update record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Gorm[T, PT]) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("failed to delete record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Gorm[T, PT]) List(ctx context.Context, q Query) (*Page[T], error) {
	q = q.Normalize()

	var total int64
	if err := r.filtered(r.db.WithContext(ctx), q).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	var items []T
	err := r.filtered(r.query(ctx), q).
		Order(r.schema.OrderBy).
		Offset(q.Offset()).
		Limit(q.PageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return newPage(items, total, q), nil
}

func (r *Gorm[T, PT]) filtered(tx *gorm.DB, q Query) *gorm.DB {
	tx = tx.Model(new(T))
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" && len(r.schema.SearchColumns) > 0 {
		clauses := make([]string, 0, len(r.schema.SearchColumns))
		args := make([]interface{}, 0, len(r.schema.SearchColumns))
		for _, col := range r.schema.SearchColumns {
			clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", col))
			args = append(args, "%"+search+"%")
		}
		tx = tx.Where(strings.Join(clauses, " OR "), args...)
	}
	for key, value := range q.Filters {
		col, ok := r.schema.FilterColumns[key]
		if !ok || value == "" {
			continue
		}
		tx = tx.Where(fmt.Sprintf("LOWER(CAST(%s AS TEXT)) = ?", col), strings.ToLower(value))
	}
	return tx
}
