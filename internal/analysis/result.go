package analysis

import (
	"time"

	"github.com/jeanpaul/secexpert/internal/store"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	TypeInterviewQuestion = "interview_question"
	TypeFinalAnalysis     = "final_analysis"
)

// Result is the outcome of one orchestrator call. It is always returned,
// never an error, so callers can serialize it as is.
type Result struct {
	Status      string `json:"status"`
	Type        string `json:"type,omitempty"`
	Analysis    string `json:"analysis,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
	TechStack   string `json:"techStack"`
	SessionID   string `json:"sessionId"`
	ContextUsed bool   `json:"contextUsed,omitempty"`
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

// HistoryResult lists a session's past analyses, newest first.
type HistoryResult struct {
	Status    string               `json:"status"`
	SessionID string               `json:"sessionId"`
	History   []store.Conversation `json:"history"`
	Error     string               `json:"error,omitempty"`
	Timestamp string               `json:"timestamp"`
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
