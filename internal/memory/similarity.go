package memory

import (
	"context"
	"strings"

	"github.com/jeanpaul/secexpert/internal/store"
)

const keywordTokens = 3

type Matcher struct {
	store ConversationReader
}

func NewMatcher(s ConversationReader) *Matcher {
	return &Matcher{store: s}
}

// FindSimilar returns up to limit past conversations for text. Exact
// fingerprint matches win outright; otherwise the first few tokens are used
// as substring queries and the results are deduplicated by stack text.
func (m *Matcher) FindSimilar(ctx context.Context, text string, limit int) ([]store.Conversation, error) {
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return nil, nil
	}

	exact, err := m.store.FindByFingerprint(ctx, Fingerprint(text), limit)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		if len(exact) > limit {
			exact = exact[:limit]
		}
		return exact, nil
	}

	var candidates []store.Conversation
	for _, kw := range Keywords(text, keywordTokens) {
		rows, err := m.store.FindByKeywordLike(ctx, kw, limit)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, rows...)
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]store.Conversation, 0, limit)
	for _, c := range candidates {
		if seen[c.TechStackText] {
			continue
		}
		seen[c.TechStackText] = true
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
