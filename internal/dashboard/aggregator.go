// Package dashboard computes registry totals for the back-office home page.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/cooperatives"
	"coopregistry/portal-backend/pkg/repository"
)

const summaryPrefix = "summary:"

// Source lists cooperatives across all pages.
type Source interface {
	All(ctx context.Context, q repository.Query) ([]cooperatives.Cooperative, error)
}

// Summary is the registry overview shown on the dashboard
type Summary struct {
	Province          string         `json:"province,omitempty"`
	TotalCooperatives int            `json:"total_cooperatives"`
	ByStatus          map[string]int `json:"by_status"`
	ByType            map[string]int `json:"by_type"`
	ByProvince        map[string]int `json:"by_province"`
	TotalMembers      int            `json:"total_members"`
	// TotalCapital sums the registered capital of approved cooperatives, in kip.
	TotalCapital float64   `json:"total_capital"`
	ComputedAt   time.Time `json:"computed_at"`
}

// AggregatorConfig configuration for the aggregator
type AggregatorConfig struct {
	CacheTTL time.Duration `json:"cache_ttl"`
}

// DefaultAggregatorConfig returns default configuration
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{CacheTTL: 5 * time.Minute}
}

// Aggregator handles dashboard data aggregation
type Aggregator struct {
	source Source
	cache  *AggregateCache[*Summary]
	logger *zap.Logger
	now    func() time.Time
}

// NewAggregator creates a new aggregator. Stop releases its cache.
func NewAggregator(source Source, logger *zap.Logger, config AggregatorConfig) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultAggregatorConfig().CacheTTL
	}
	return &Aggregator{
		source: source,
		cache:  NewAggregateCache[*Summary](config.CacheTTL),
		logger: logger,
		now:    time.Now,
	}
}

// WithClock sets the clock used for ComputedAt and cache expiry.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	a.cache.WithClock(now)
	return a
}

// Summary returns the registry totals, optionally restricted to one
// province. Results are cached until the TTL lapses or a status changes.
func (a *Aggregator) Summary(ctx context.Context, province string) (*Summary, error) {
	return a.cache.GetOrSet(summaryPrefix+province, func() (*Summary, error) {
		return a.compute(ctx, province)
	})
}

// Refresh drops cached summaries so the next call recomputes them.
func (a *Aggregator) Refresh() {
	a.cache.DeleteByPrefix(summaryPrefix)
}

// StatusChanged invalidates the cache when a cooperative changes status.
func (a *Aggregator) StatusChanged(ctx context.Context, cooperativeID, from, to, by string) {
	a.Refresh()
}

// CacheStats reports how often summaries were served from cache.
func (a *Aggregator) CacheStats() CacheStats {
	return a.cache.Stats()
}

// Stop releases the cache cleanup loop.
func (a *Aggregator) Stop() {
	a.cache.Stop()
}

func (a *Aggregator) compute(ctx context.Context, province string) (*Summary, error) {
	q := repository.Query{}
	if province != "" {
		q = q.WithFilter("province", province)
	}
	coops, err := a.source.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load cooperatives: %w", err)
	}

	summary := &Summary{
		Province:          province,
		TotalCooperatives: len(coops),
		ByStatus:          make(map[string]int),
		ByType:            make(map[string]int),
		ByProvince:        make(map[string]int),
		ComputedAt:        a.now().UTC(),
	}
	for _, c := range coops {
		summary.ByStatus[string(c.Status)]++
		summary.ByType[orUnknown(c.CooperativeType)]++
		summary.ByProvince[orUnknown(c.Province)]++
		summary.TotalMembers += c.MemberCount
		if c.Status == cooperatives.StatusApproved {
			summary.TotalCapital += c.RegisteredCapital
		}
	}

	a.logger.Debug("dashboard summary computed",
		zap.String("province", province),
		zap.Int("cooperatives", summary.TotalCooperatives),
	)
	return summary, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
