package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/secexpert/internal/config"
	"github.com/jeanpaul/secexpert/internal/store"
)

func TestComposeEmptyStoreReturnsInput(t *testing.T) {
	mem := newTestMemory(t)
	out, had := mem.composer.Compose(context.Background(), "React + Firebase", "session-1")
	assert.False(t, had)
	assert.Equal(t, "React + Firebase", out)
}

func TestComposeStoreFailureReturnsInput(t *testing.T) {
	agg, err := NewAggregator(brokenStore{}, 0)
	require.NoError(t, err)
	c := NewComposer(NewMatcher(brokenStore{}), agg, brokenStore{}, DefaultLimits(), nil)

	out, had := c.Compose(context.Background(), "React + Firebase", "s")
	assert.False(t, had)
	assert.Equal(t, "React + Firebase", out)
}

func TestComposeSections(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()

	insertConv(t, mem.store, "other", "Docker Flask", "Prior analysis found container escape paths.")
	insertConv(t, mem.store, "me", "Go CLI", "irrelevant")
	require.NoError(t, mem.aggregator.RecordInsight(ctx, "docker", "Privileged container", store.RiskHigh, "Drop capabilities"))

	out, had := mem.composer.Compose(ctx, "Docker Flask", "me")
	require.True(t, had)

	sim := strings.Index(out, "Previous Similar Analyses")
	ins := strings.Index(out, "Relevant Security Insights")
	hist := strings.Index(out, "Recent Analysis History")
	cur := strings.Index(out, "Current Analysis Request")
	require.True(t, sim >= 0 && ins > sim && hist > ins && cur > hist, out)

	assert.Contains(t, out, "container escape")
	assert.Contains(t, out, "Privileged container (High risk, seen 1 times): Drop capabilities")
	assert.Contains(t, out, "Go CLI")
	assert.True(t, strings.Contains(out[cur:], "Docker Flask"))
	assert.Contains(t, out, "recur")
}

func TestComposeOnlyInsights(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()
	require.NoError(t, mem.aggregator.RecordInsight(ctx, "redis", "No AUTH", store.RiskHigh, "Enable requirepass"))

	out, had := mem.composer.Compose(ctx, "Redis sessions", "")
	require.True(t, had)
	assert.NotContains(t, out, "Previous Similar Analyses")
	assert.NotContains(t, out, "Recent Analysis History")
	assert.Contains(t, out, "No AUTH")
}

func TestComposeBoundedByLimitsNotHistory(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()
	text := "React Node Docker AWS Redis"
	longAnalysis := strings.Repeat("x", 5000)

	rows := make([]store.Conversation, 0, 1200)
	for i := 0; i < 1200; i++ {
		rows = append(rows, store.Conversation{
			SessionID:            "s1",
			TechStackText:        fmt.Sprintf("%s variant %d %s", text, i, strings.Repeat("y", 500)),
			TechStackFingerprint: Fingerprint(fmt.Sprintf("v%d", i)),
			AnalysisText:         longAnalysis,
			Risks:                []string{},
			Recommendations:      []string{},
		})
	}
	require.NoError(t, mem.store.DB().CreateInBatches(&rows, 200).Error)

	for _, tech := range []string{"react", "node", "docker", "aws", "redis"} {
		for j := 0; j < 10; j++ {
			require.NoError(t, mem.aggregator.RecordInsight(ctx, tech, fmt.Sprintf("vuln %d", j), store.RiskHigh, strings.Repeat("r", 1000)))
		}
	}

	out, had := mem.composer.Compose(ctx, text, "s1")
	require.True(t, had)

	l := DefaultLimits()
	assert.Equal(t, l.SimilarLimit, strings.Count(out, "### Similar Analysis"))
	assert.Equal(t, l.MaxTechnologies*l.InsightsPerTechnology, strings.Count(out, "seen 1 times"))
	assert.NotContains(t, out, "### aws")
	assert.Less(t, len(out), len(text)+5000)
}

func TestLimitsFromConfig(t *testing.T) {
	l := LimitsFromConfig(config.MemoryConfig{SimilarLimit: 5})
	assert.Equal(t, 5, l.SimilarLimit)
	assert.Equal(t, 200, l.SimilarExcerpt)
}
