package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/secexpert/internal/config"
	"github.com/jeanpaul/secexpert/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), config.StoreConfig{
		Path:             filepath.Join(t.TempDir(), "memory.db"),
		MaxRetries:       1,
		RetryBaseDelayMS: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type testMemory struct {
	store      *store.Store
	matcher    *Matcher
	aggregator *Aggregator
	composer   *Composer
	recorder   *Recorder
}

func newTestMemory(t *testing.T) *testMemory {
	t.Helper()
	s := newTestStore(t)
	agg, err := NewAggregator(s, time.Minute)
	require.NoError(t, err)
	t.Cleanup(agg.Close)
	m := NewMatcher(s)
	return &testMemory{
		store:      s,
		matcher:    m,
		aggregator: agg,
		composer:   NewComposer(m, agg, s, DefaultLimits(), nil),
		recorder:   NewRecorder(s, agg, nil),
	}
}

var errBroken = errors.New("disk i/o error")

// brokenStore fails every read.
type brokenStore struct{}

func (brokenStore) FindByFingerprint(context.Context, string, int) ([]store.Conversation, error) {
	return nil, errBroken
}

func (brokenStore) FindByKeywordLike(context.Context, string, int) ([]store.Conversation, error) {
	return nil, errBroken
}

func (brokenStore) ListSessionHistory(context.Context, string, int) ([]store.Conversation, error) {
	return nil, errBroken
}

func (brokenStore) UpsertInsight(context.Context, string, string, store.RiskLevel, string) error {
	return errBroken
}

func (brokenStore) ListInsights(context.Context, string, int) ([]store.SecurityInsight, error) {
	return nil, errBroken
}

// countingInsights records the limit TopInsights asked for.
type countingInsights struct {
	calls     int
	lastLimit int
	rows      []store.SecurityInsight
}

func (c *countingInsights) UpsertInsight(context.Context, string, string, store.RiskLevel, string) error {
	return nil
}

func (c *countingInsights) ListInsights(_ context.Context, _ string, limit int) ([]store.SecurityInsight, error) {
	c.calls++
	c.lastLimit = limit
	return c.rows, nil
}
