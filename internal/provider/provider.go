package provider

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type StreamChunk struct {
	Delta    string
	Thinking string // reasoning text from models that emit <think> blocks
	Done     bool
	Error    error
}

// Options tunes a single completion. Zero values use provider defaults.
type Options struct {
	Temperature *float64
	MaxTokens   int
}

type Provider interface {
	Chat(ctx context.Context, msgs []Message, opts Options) (<-chan StreamChunk, error)
	Name() string
	Models(ctx context.Context) ([]string, error)
}

func Float(v float64) *float64 { return &v }
