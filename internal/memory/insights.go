package memory

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/jeanpaul/secexpert/internal/store"
)

const (
	defaultGlobalInsights     = 20
	defaultTechnologyInsights = 10
)

// Aggregator records vulnerability insights and serves them ranked by
// frequency. Ranked lists are cached briefly; every local write moves the
// cache to a new generation so the writer always reads its own writes.
type Aggregator struct {
	store      InsightStore
	cache      *ristretto.Cache
	ttl        time.Duration
	generation atomic.Uint64
}

// NewAggregator builds an aggregator. A ttl of zero disables caching.
func NewAggregator(s InsightStore, ttl time.Duration) (*Aggregator, error) {
	a := &Aggregator{store: s, ttl: ttl}
	if ttl <= 0 {
		return a, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("insight cache: %w", err)
	}
	a.cache = cache
	return a, nil
}

// RecordInsight upserts the triple: new rows start at frequency 1, existing
// rows gain one and take the new recommendation.
func (a *Aggregator) RecordInsight(ctx context.Context, technology, vulnerabilityType string, level store.RiskLevel, recommendation string) error {
	err := a.store.UpsertInsight(ctx, technology, vulnerabilityType, level, recommendation)
	a.invalidate()
	return err
}

// TopInsights returns insights ranked by frequency, then recency. A
// non-positive limit means 20 globally or 10 for a single technology.
func (a *Aggregator) TopInsights(ctx context.Context, technology string, limit int) ([]store.SecurityInsight, error) {
	technology = strings.ToLower(strings.TrimSpace(technology))
	if limit <= 0 {
		limit = defaultGlobalInsights
		if technology != "" {
			limit = defaultTechnologyInsights
		}
	}

	gen := a.generation.Load()
	key := fmt.Sprintf("%d|%s|%d", gen, technology, limit)
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			return cloneInsights(v.([]store.SecurityInsight)), nil
		}
	}

	rows, err := a.store.ListInsights(ctx, technology, limit)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.SetWithTTL(key, cloneInsights(rows), 1, a.ttl)
	}
	return rows, nil
}

func (a *Aggregator) invalidate() {
	a.generation.Add(1)
	if a.cache != nil {
		a.cache.Clear()
	}
}

// Close releases the cache.
func (a *Aggregator) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

func cloneInsights(in []store.SecurityInsight) []store.SecurityInsight {
	out := make([]store.SecurityInsight, len(in))
	copy(out, in)
	return out
}
