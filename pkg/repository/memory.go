package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local Repository. Each instance owns its data, so
// tests construct a fresh one per case.
type Memory[T any, PT EntityPtr[T]] struct {
	mu      sync.RWMutex
	items   map[uuid.UUID]T
	order   []uuid.UUID
	latency time.Duration
}

// MemoryOption configures a Memory repository
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	latency time.Duration
}

// WithLatency delays every call, mimicking a remote store.
func WithLatency(d time.Duration) MemoryOption {
	return func(o *memoryOptions) { o.latency = d }
}

// NewMemory creates an empty in-memory repository
func NewMemory[T any, PT EntityPtr[T]](opts ...MemoryOption) *Memory[T, PT] {
	var o memoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory[T, PT]{
		items:   make(map[uuid.UUID]T),
		latency: o.latency,
	}
}

// Seed inserts items without latency; ids are assigned when missing.
func (m *Memory[T, PT]) Seed(items ...T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range items {
		item := items[i]
		p := PT(&item)
		if p.GetID() == uuid.Nil {
			p.SetID(uuid.New())
		}
		if _, exists := m.items[p.GetID()]; !exists {
			m.order = append(m.order, p.GetID())
		}
		m.items[p.GetID()] = item
	}
}

func (m *Memory[T, PT]) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Memory[T, PT]) Create(ctx context.Context, item *T) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	p := PT(item)
	if p.GetID() == uuid.Nil {
		p.SetID(uuid.New())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[p.GetID()]; !exists {
		m.order = append(m.order, p.GetID())
	}
	m.items[p.GetID()] = *item
	return nil
}

func (m *Memory[T, PT]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (m *Memory[T, PT]) Update(ctx context.Context, item *T) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	id := PT(item).GetID()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	m.items[id] = *item
	return nil
}

func (m *Memory[T, PT]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory[T, PT]) List(ctx context.Context, q Query) (*Page[T], error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	q = q.Normalize()
	search := strings.ToLower(strings.TrimSpace(q.Search))

	m.mu.RLock()
	var matched []T
	for _, id := range m.order {
		item := m.items[id]
		if matches(PT(&item), search, q.Filters) {
			matched = append(matched, item)
		}
	}
	m.mu.RUnlock()

	total := int64(len(matched))
	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return newPage(matched[start:end], total, q), nil
}

func matches(e Entity, search string, filters map[string]string) bool {
	if search != "" && !strings.Contains(strings.ToLower(e.SearchText()), search) {
		return false
	}
	for field, want := range filters {
		if want == "" {
			continue
		}
		got, ok := e.FilterValue(field)
		if !ok {
			continue
		}
		if !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}
