package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	Type      string
	CreatedAt time.Time
}

func (c *category) GetID() uuid.UUID   { return c.ID }
func (c *category) SetID(id uuid.UUID) { c.ID = id }
func (c *category) SearchText() string { return c.Name }
func (c *category) FilterValue(field string) (string, bool) {
	if field == "type" {
		return c.Type, true
	}
	return "", false
}

func seedCategories(t *testing.T, repo Repository[category]) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		typ := "crop"
		if i%5 == 0 {
			typ = "livestock"
		}
		c := &category{Name: fmt.Sprintf("Category %02d", i), Type: typ, CreatedAt: time.Unix(int64(1700000000+i), 0)}
		require.NoError(t, repo.Create(ctx, c))
		require.NotEqual(t, uuid.Nil, c.ID)
	}
}

func TestQueryNormalize(t *testing.T) {
	q := Query{}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)

	q = Query{Page: 3, PageSize: 1000}.Normalize()
	assert.Equal(t, MaxPageSize, q.PageSize)
	assert.Equal(t, 200, q.Offset())
}

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory[category]()

	c := &category{Name: "Rice", Type: "crop"}
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rice", got.Name)

	// returned values are copies
	got.Name = "Mutated"
	again, _ := repo.Get(ctx, c.ID)
	assert.Equal(t, "Rice", again.Name)

	c.Name = "Sticky rice"
	require.NoError(t, repo.Update(ctx, c))
	again, _ = repo.Get(ctx, c.ID)
	assert.Equal(t, "Sticky rice", again.Name)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.Get(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, c.ID), ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, c), ErrNotFound)
}

func TestMemory_ListPaginationAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory[category]()
	seedCategories(t, repo)

	page, err := repo.List(ctx, Query{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 10)
	assert.Equal(t, "Category 10", page.Items[0].Name)

	page, err = repo.List(ctx, Query{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)

	page, err = repo.List(ctx, Query{Filters: map[string]string{"type": "LIVESTOCK"}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)

	page, err = repo.List(ctx, Query{Search: "category 1"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), page.Total)

	// unknown filters are ignored
	page, err = repo.List(ctx, Query{Filters: map[string]string{"colour": "red"}})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)

	page, err = repo.List(ctx, Query{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestMemory_FreshInstances(t *testing.T) {
	a := NewMemory[category]()
	b := NewMemory[category]()
	require.NoError(t, a.Create(context.Background(), &category{Name: "only in a"}))

	page, err := b.List(context.Background(), Query{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestMemory_LatencyHonoursContext(t *testing.T) {
	repo := NewMemory[category](WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := repo.List(ctx, Query{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAll(t *testing.T) {
	repo := NewMemory[category]()
	for i := 0; i < 230; i++ {
		repo.Seed(category{Name: fmt.Sprintf("c%d", i), Type: "crop"})
	}

	items, err := All[category](context.Background(), repo, Query{})
	require.NoError(t, err)
	assert.Len(t, items, 230)
}

func setupGorm(t *testing.T) *Gorm[category, *category] {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&category{}))
	return NewGorm[category](db, GormSchema{
		SearchColumns: []string{"name"},
		FilterColumns: map[string]string{"type": "type"},
		OrderBy:       "created_at ASC",
	})
}

func TestGorm_CRUDAndList(t *testing.T) {
	ctx := context.Background()
	repo := setupGorm(t)
	seedCategories(t, repo)

	page, err := repo.List(ctx, Query{Page: 1, PageSize: 10, Filters: map[string]string{"type": "livestock"}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, "Category 00", page.Items[0].Name)

	page, err = repo.List(ctx, Query{Search: "CATEGORY 2", PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Items, 3)

	item := page.Items[0]
	item.Name = "Renamed"
	require.NoError(t, repo.Update(ctx, &item))
	got, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	require.NoError(t, repo.Delete(ctx, item.ID))
	_, err = repo.Get(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), ErrNotFound)
}
