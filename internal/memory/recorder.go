package memory

import (
	"context"
	"strings"

	"github.com/jeanpaul/secexpert/internal/logger"
	"github.com/jeanpaul/secexpert/internal/store"
)

// DeferralRecommendation is filed with insights extracted from a report,
// which carries no per-risk advice in a parseable form.
const DeferralRecommendation = "Review detailed analysis for specific recommendations"

type Recorder struct {
	conversations ConversationWriter
	aggregator    *Aggregator
	log           *logger.Logger
}

func NewRecorder(w ConversationWriter, a *Aggregator, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{conversations: w, aggregator: a, log: log}
}

// RecordResult persists one conversation for the analysis and files an
// insight for every risk that names a known technical term. Only a failed
// conversation insert is returned; insight failures are logged. text is the
// user's original stack description, never the enriched prompt.
func (r *Recorder) RecordResult(ctx context.Context, text, sessionID, analysis string) error {
	return r.record(ctx, text, sessionID, analysis, "")
}

// RecordInterviewedResult is RecordResult for analyses preceded by an
// interview; the transcript is stored with the conversation.
func (r *Recorder) RecordInterviewedResult(ctx context.Context, text, sessionID, analysis, transcript string) error {
	return r.record(ctx, text, sessionID, analysis, transcript)
}

func (r *Recorder) record(ctx context.Context, text, sessionID, analysis, transcript string) error {
	parsed := ParseAnalysis(analysis)

	conv := &store.Conversation{
		SessionID:            sessionID,
		TechStackText:        text,
		TechStackFingerprint: Fingerprint(text),
		AnalysisText:         analysis,
		Risks:                nonNil(parsed.Risks),
		Recommendations:      nonNil(parsed.Recommendations),
		InterviewTranscript:  transcript,
	}
	id, err := r.conversations.InsertConversation(ctx, conv)
	if err != nil {
		return err
	}

	filed := 0
	for _, risk := range parsed.Risks {
		vulnType, description, ok := SplitRisk(risk)
		if !ok {
			continue
		}
		if vulnType == "" {
			vulnType = "General Security Risk"
		}
		term, ok := VocabularyTerm(description)
		if !ok {
			continue
		}
		// the conversation is already committed, so a failed insight is not fatal
		if err := r.aggregator.RecordInsight(ctx, term, vulnType, store.RiskHigh, DeferralRecommendation); err != nil {
			r.log.Error("recording insight failed",
				"conversation_id", id,
				"technology", term,
				"vulnerability_type", vulnType,
				"error", err,
			)
			continue
		}
		filed++
	}

	r.log.Debug("analysis recorded",
		"conversation_id", id,
		"session_id", sessionID,
		"risks", len(parsed.Risks),
		"recommendations", len(parsed.Recommendations),
		"insights", filed,
	)
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Excerpt shortens text to n runes for display.
func Excerpt(text string, n int) string {
	t := strings.TrimSpace(text)
	if len([]rune(t)) <= n {
		return t
	}
	return truncate(t, n) + "..."
}
