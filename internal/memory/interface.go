// Package memory implements retrieval over past analyses: similarity lookup,
// frequency-ranked insights, prompt enrichment and result write-back.
package memory

import (
	"context"

	"github.com/jeanpaul/secexpert/internal/store"
)

// ConversationReader is the read side the matcher and composer need.
type ConversationReader interface {
	FindByFingerprint(ctx context.Context, fingerprint string, limit int) ([]store.Conversation, error)
	FindByKeywordLike(ctx context.Context, keyword string, limit int) ([]store.Conversation, error)
	ListSessionHistory(ctx context.Context, sessionID string, limit int) ([]store.Conversation, error)
}

type ConversationWriter interface {
	InsertConversation(ctx context.Context, c *store.Conversation) (uint, error)
}

type InsightStore interface {
	UpsertInsight(ctx context.Context, technology, vulnerabilityType string, level store.RiskLevel, recommendation string) error
	ListInsights(ctx context.Context, technology string, limit int) ([]store.SecurityInsight, error)
}

type PatternStore interface {
	ListPatterns(ctx context.Context) ([]store.AnalysisPattern, error)
	ReinforcePattern(ctx context.Context, name string, delta float64) (*store.AnalysisPattern, error)
}

// Store is everything the memory layer reads and writes.
type Store interface {
	ConversationReader
	ConversationWriter
	InsightStore
	PatternStore
}

var _ Store = (*store.Store)(nil)
