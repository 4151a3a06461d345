package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/secexpert/internal/store"
)

func TestTopInsightsDefaultLimits(t *testing.T) {
	fake := &countingInsights{}
	agg, err := NewAggregator(fake, 0)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = agg.TopInsights(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 20, fake.lastLimit)

	_, err = agg.TopInsights(ctx, "docker", -1)
	require.NoError(t, err)
	assert.Equal(t, 10, fake.lastLimit)

	_, err = agg.TopInsights(ctx, "docker", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, fake.lastLimit)
}

func TestRecordInsightReadsOwnWrites(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, mem.aggregator.RecordInsight(ctx, "sql", "Injection", store.RiskHigh, "a"))
	first, err := mem.aggregator.TopInsights(ctx, "sql", 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, first[0].Frequency)

	// let the cache admit the first read
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, mem.aggregator.RecordInsight(ctx, "sql", "Injection", store.RiskHigh, "b"))
	second, err := mem.aggregator.TopInsights(ctx, "sql", 5)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].Frequency)
	assert.Equal(t, "b", second[0].Recommendation)
}

func TestTopInsightsRanking(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, mem.aggregator.RecordInsight(ctx, "aws", "Open buckets", store.RiskHigh, ""))
	}
	require.NoError(t, mem.aggregator.RecordInsight(ctx, "aws", "Weak IAM", store.RiskMedium, ""))
	require.NoError(t, mem.aggregator.RecordInsight(ctx, "xss", "Stored", store.RiskHigh, ""))

	got, err := mem.aggregator.TopInsights(ctx, "aws", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Open buckets", got[0].VulnerabilityType)
	assert.Equal(t, 3, got[0].Frequency)

	all, err := mem.aggregator.TopInsights(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordInsightStoreError(t *testing.T) {
	agg, err := NewAggregator(brokenStore{}, time.Minute)
	require.NoError(t, err)
	defer agg.Close()
	err = agg.RecordInsight(context.Background(), "sql", "x", store.RiskHigh, "")
	assert.ErrorIs(t, err, errBroken)
}
