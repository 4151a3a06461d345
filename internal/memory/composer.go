package memory

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jeanpaul/secexpert/internal/config"
	"github.com/jeanpaul/secexpert/internal/logger"
	"github.com/jeanpaul/secexpert/internal/store"
)

// Limits bounds every section of the enriched prompt.
type Limits struct {
	SimilarLimit          int
	SimilarExcerpt        int
	InsightsPerTechnology int
	MaxTechnologies       int
	HistoryLimit          int
	HistoryExcerpt        int
}

func DefaultLimits() Limits {
	return Limits{
		SimilarLimit:          2,
		SimilarExcerpt:        200,
		InsightsPerTechnology: 2,
		MaxTechnologies:       3,
		HistoryLimit:          3,
		HistoryExcerpt:        150,
	}
}

// LimitsFromConfig fills unset values from DefaultLimits.
func LimitsFromConfig(c config.MemoryConfig) Limits {
	l := DefaultLimits()
	pick := func(v int, def *int) {
		if v > 0 {
			*def = v
		}
	}
	pick(c.SimilarLimit, &l.SimilarLimit)
	pick(c.SimilarExcerpt, &l.SimilarExcerpt)
	pick(c.InsightsPerTechnology, &l.InsightsPerTechnology)
	pick(c.MaxTechnologies, &l.MaxTechnologies)
	pick(c.HistoryLimit, &l.HistoryLimit)
	pick(c.HistoryExcerpt, &l.HistoryExcerpt)
	return l
}

type Composer struct {
	matcher    *Matcher
	aggregator *Aggregator
	history    ConversationReader
	limits     Limits
	log        *logger.Logger
}

func NewComposer(m *Matcher, a *Aggregator, history ConversationReader, limits Limits, log *logger.Logger) *Composer {
	if log == nil {
		log = logger.Nop()
	}
	return &Composer{matcher: m, aggregator: a, history: history, limits: limits, log: log}
}

type insightGroup struct {
	technology string
	insights   []store.SecurityInsight
}

// Compose enriches text with retrieved context. It returns the original
// text and false when nothing relevant exists or any lookup fails.
func (c *Composer) Compose(ctx context.Context, text, sessionID string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return text, false
	}

	var (
		similar []store.Conversation
		groups  []insightGroup
		history []store.Conversation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		similar, err = c.matcher.FindSimilar(gctx, text, c.limits.SimilarLimit)
		return err
	})
	g.Go(func() error {
		techs := DetectTechnologies(text)
		if len(techs) > c.limits.MaxTechnologies {
			techs = techs[:c.limits.MaxTechnologies]
		}
		for _, tech := range techs {
			rows, err := c.aggregator.TopInsights(gctx, tech, c.limits.InsightsPerTechnology)
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				groups = append(groups, insightGroup{technology: tech, insights: rows})
			}
		}
		return nil
	})
	g.Go(func() error {
		if sessionID == "" {
			return nil
		}
		var err error
		history, err = c.history.ListSessionHistory(gctx, sessionID, c.limits.HistoryLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		c.log.Warn("context lookup failed, using original request", "error", err)
		return text, false
	}

	if len(similar) == 0 && len(groups) == 0 && len(history) == 0 {
		return text, false
	}

	var b strings.Builder
	if len(similar) > 0 {
		b.WriteString("## Previous Similar Analyses\n")
		for i, conv := range similar {
			fmt.Fprintf(&b, "### Similar Analysis %d\n", i+1)
			fmt.Fprintf(&b, "Tech stack: %s\n", truncate(conv.TechStackText, c.limits.SimilarExcerpt))
			fmt.Fprintf(&b, "Key findings: %s...\n\n", truncate(conv.AnalysisText, c.limits.SimilarExcerpt))
		}
	}
	if len(groups) > 0 {
		b.WriteString("## Relevant Security Insights\n")
		for _, grp := range groups {
			fmt.Fprintf(&b, "### %s\n", grp.technology)
			for _, in := range grp.insights {
				fmt.Fprintf(&b, "- %s (%s risk, seen %d times): %s\n",
					truncate(in.VulnerabilityType, c.limits.SimilarExcerpt), in.RiskLevel, in.Frequency,
					truncate(in.Recommendation, c.limits.SimilarExcerpt))
			}
			b.WriteString("\n")
		}
	}
	if len(history) > 0 {
		b.WriteString("## Recent Analysis History\n")
		for _, conv := range history {
			fmt.Fprintf(&b, "- %s: %s\n", conv.CreatedAt.Format("2006-01-02"), truncate(conv.TechStackText, c.limits.HistoryExcerpt))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Current Analysis Request\n")
	b.WriteString(text)
	b.WriteString("\n\nUse the context above to inform the analysis. Give extra weight to findings that recur across previous analyses and insights.\n")
	return b.String(), true
}
