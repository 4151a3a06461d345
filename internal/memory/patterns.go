package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/jeanpaul/secexpert/internal/store"
)

// PatternMatch is a stored pattern whose keywords overlap a stack description.
type PatternMatch struct {
	Pattern store.AnalysisPattern
	Matched []string
}

type PatternMatcher struct {
	store PatternStore
}

func NewPatternMatcher(s PatternStore) *PatternMatcher {
	return &PatternMatcher{store: s}
}

// Match ranks patterns by keyword overlap with text, then by learned score.
// Patterns with no overlapping keyword are omitted.
func (m *PatternMatcher) Match(ctx context.Context, text string, limit int) ([]PatternMatch, error) {
	norm := Normalize(text)
	if norm == "" {
		return nil, nil
	}
	patterns, err := m.store.ListPatterns(ctx)
	if err != nil {
		return nil, err
	}

	var out []PatternMatch
	for _, p := range patterns {
		var matched []string
		for _, kw := range p.Keywords {
			if kw != "" && strings.Contains(norm, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			out = append(out, PatternMatch{Pattern: p, Matched: matched})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Matched) != len(out[j].Matched) {
			return len(out[i].Matched) > len(out[j].Matched)
		}
		if out[i].Pattern.Score != out[j].Pattern.Score {
			return out[i].Pattern.Score > out[j].Pattern.Score
		}
		return out[i].Pattern.Name < out[j].Pattern.Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reinforce credits a pattern that proved useful.
func (m *PatternMatcher) Reinforce(ctx context.Context, name string, delta float64) (*store.AnalysisPattern, error) {
	return m.store.ReinforcePattern(ctx, name, delta)
}
