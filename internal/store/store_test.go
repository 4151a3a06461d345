package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/secexpert/internal/config"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	cfg := config.StoreConfig{
		Path:             filepath.Join(t.TempDir(), "test.db"),
		MaxRetries:       2,
		RetryBaseDelayMS: 1,
		BusyTimeoutMS:    1000,
	}
	s, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s.now = clock.Now
	return s, clock
}

func TestParseRiskLevel(t *testing.T) {
	for in, want := range map[string]RiskLevel{"low": RiskLow, "MEDIUM": RiskMedium, " High ": RiskHigh} {
		got, err := ParseRiskLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRiskLevel("critical")
	assert.Error(t, err)
}

func TestInsertAndFindByFingerprint(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.InsertConversation(ctx, &Conversation{
			SessionID:            "s1",
			TechStackText:        "React Node",
			TechStackFingerprint: "fp-1",
			AnalysisText:         fmt.Sprintf("analysis %d", i),
			Risks:                []string{"XSS: reflected"},
		})
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	_, err := s.InsertConversation(ctx, &Conversation{SessionID: "s2", TechStackText: "Go", TechStackFingerprint: "fp-2"})
	require.NoError(t, err)

	got, err := s.FindByFingerprint(ctx, "fp-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "analysis 2", got[0].AnalysisText)
	assert.Equal(t, "analysis 1", got[1].AnalysisText)
	assert.Equal(t, []string{"XSS: reflected"}, []string(got[0].Risks))

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestInsertNeverOverwrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	c := &Conversation{SessionID: "s", TechStackText: "a", TechStackFingerprint: "a"}
	id1, err := s.InsertConversation(ctx, c)
	require.NoError(t, err)
	id2, err := s.InsertConversation(ctx, c)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestFindByKeywordLike(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"React with Firebase", "Django at night", "react_native app", "100% node"} {
		_, err := s.InsertConversation(ctx, &Conversation{SessionID: "s", TechStackText: text, TechStackFingerprint: text})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	got, err := s.FindByKeywordLike(ctx, "REACT", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "react_native app", got[0].TechStackText)

	got, err = s.FindByKeywordLike(ctx, "t_n", 10)
	require.NoError(t, err)
	require.Len(t, got, 1, "underscore must match literally")

	got, err = s.FindByKeywordLike(ctx, "0%", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100% node", got[0].TechStackText)

	got, err = s.FindByKeywordLike(ctx, "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertInsightIdempotence(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertInsight(ctx, "sql", "Injection", RiskHigh, "use params"))
	require.NoError(t, s.UpsertInsight(ctx, "sql", "Injection", RiskHigh, "use params"))

	got, err := s.ListInsights(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Frequency)
}

func TestUpsertInsightRefreshesExisting(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.UpsertInsight(ctx, "sql", "Injection", RiskHigh, "old advice"))
	}
	before, err := s.GetInsight(ctx, "sql", "Injection", RiskHigh)
	require.NoError(t, err)
	require.Equal(t, 5, before.Frequency)

	clock.Advance(time.Hour)
	require.NoError(t, s.UpsertInsight(ctx, "sql", "Injection", RiskHigh, "use prepared statements"))

	after, err := s.GetInsight(ctx, "sql", "Injection", RiskHigh)
	require.NoError(t, err)
	assert.Equal(t, 6, after.Frequency)
	assert.Equal(t, "use prepared statements", after.Recommendation)
	assert.True(t, after.LastSeen.After(before.LastSeen))
	assert.Equal(t, before.ID, after.ID)
}

func TestUpsertInsightDistinctLevels(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertInsight(ctx, "docker", "Privileged containers", RiskHigh, ""))
	require.NoError(t, s.UpsertInsight(ctx, "docker", "Privileged containers", RiskLow, ""))

	got, err := s.ListInsights(ctx, "docker", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListInsightsOrdering(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertInsight(ctx, "aws", "Open buckets", RiskHigh, ""))
	clock.Advance(time.Minute)
	require.NoError(t, s.UpsertInsight(ctx, "aws", "Weak IAM", RiskHigh, ""))
	require.NoError(t, s.UpsertInsight(ctx, "aws", "Weak IAM", RiskHigh, ""))
	clock.Advance(time.Minute)
	require.NoError(t, s.UpsertInsight(ctx, "aws", "Unencrypted EBS", RiskMedium, ""))
	require.NoError(t, s.UpsertInsight(ctx, "xss", "Reflected", RiskHigh, ""))

	got, err := s.ListInsights(ctx, "AWS", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Weak IAM", got[0].VulnerabilityType)
	assert.Equal(t, "Unencrypted EBS", got[1].VulnerabilityType)
	assert.Equal(t, "Open buckets", got[2].VulnerabilityType)

	all, err := s.ListInsights(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetInsightNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.GetInsight(context.Background(), "sql", "nope", RiskLow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionHistory(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.InsertConversation(ctx, &Conversation{SessionID: "me", TechStackText: fmt.Sprintf("stack %d", i), TechStackFingerprint: "x"})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	_, err := s.InsertConversation(ctx, &Conversation{SessionID: "other", TechStackText: "nope", TechStackFingerprint: "x"})
	require.NoError(t, err)

	got, err := s.ListSessionHistory(ctx, "me", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "stack 4", got[0].TechStackText)
	assert.Equal(t, "stack 2", got[2].TechStackText)
}

func TestPatterns(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	seed := []AnalysisPattern{
		{Name: "spa", Keywords: []string{"React", "Vue"}, CommonRisks: []string{"XSS"}},
		{Name: "k8s", Keywords: []string{"kubernetes"}},
	}
	require.NoError(t, s.SeedPatterns(ctx, seed))

	p, err := s.ReinforcePattern(ctx, "k8s", 2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, p.Score)
	assert.Equal(t, 1, p.TimesMatched)
	require.NotNil(t, p.LastMatched)

	// reseeding keeps learned fields
	seed[1].Keywords = []string{"kubernetes", "helm"}
	require.NoError(t, s.SeedPatterns(ctx, seed))

	list, err := s.ListPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "k8s", list[0].Name)
	assert.Equal(t, 2.5, list[0].Score)
	assert.Equal(t, []string{"kubernetes", "helm"}, []string(list[0].Keywords))
	assert.Equal(t, []string{"react", "vue"}, []string(list[1].Keywords))

	_, err = s.ReinforcePattern(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedPatternsLeavesInputUntouched(t *testing.T) {
	s, _ := newTestStore(t)
	keywords := []string{" Docker ", "Kubernetes"}
	seed := []AnalysisPattern{{Name: "containers", Keywords: keywords}}

	require.NoError(t, s.SeedPatterns(context.Background(), seed))
	assert.Equal(t, []string{" Docker ", "Kubernetes"}, keywords)
	assert.Equal(t, []string{" Docker ", "Kubernetes"}, []string(seed[0].Keywords))

	list, err := s.ListPatterns(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"docker", "kubernetes"}, []string(list[0].Keywords))
}

func TestPreferencesLastWriteWins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetPreference(ctx, "s1", "verbosity", "low"))
	require.NoError(t, s.SetPreference(ctx, "s1", "verbosity", "high"))
	require.NoError(t, s.SetPreference(ctx, "s1", "format", "md"))
	require.NoError(t, s.SetPreference(ctx, "s2", "verbosity", "low"))

	prefs, err := s.Preferences(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, "format", prefs[0].PreferenceKey)
	assert.Equal(t, "high", prefs[1].PreferenceValue)

	assert.Error(t, s.SetPreference(ctx, "", "k", "v"))
}

func TestResetAndStats(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertConversation(ctx, &Conversation{SessionID: "s", TechStackText: "a", TechStackFingerprint: "a"})
	require.NoError(t, err)
	require.NoError(t, s.UpsertInsight(ctx, "sql", "Injection", RiskHigh, ""))
	require.NoError(t, s.SeedPatterns(ctx, []AnalysisPattern{{Name: "p"}}))
	require.NoError(t, s.SetPreference(ctx, "s", "k", "v"))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Conversations: 1, Insights: 1, Patterns: 1, Preferences: 1}, st)

	require.NoError(t, s.Reset(ctx))
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.db")
	cfg := config.StoreConfig{Path: path, MaxRetries: 1, RetryBaseDelayMS: 1}
	ctx := context.Background()

	s, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = s.InsertConversation(ctx, &Conversation{SessionID: "s", TechStackText: "a", TechStackFingerprint: "a"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer s2.Close()
	n, err := s2.CountConversations(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{}, nil)
	assert.Error(t, err)
}
