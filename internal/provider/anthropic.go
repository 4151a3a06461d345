package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(baseURL, apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: model}
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

func (a *AnthropicProvider) ModelName() string { return a.model }

func (a *AnthropicProvider) Models(ctx context.Context) ([]string, error) {
	page, err := a.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func (a *AnthropicProvider) Chat(ctx context.Context, msgs []Message, opts Options) (<-chan StreamChunk, error) {
	var system []string
	var messages []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("anthropic: no user message to send")
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}

	stream := a.client.Messages.NewStreaming(ctx, params)

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := evt.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					ch <- StreamChunk{Delta: delta.Text}
				case anthropic.ThinkingDelta:
					ch <- StreamChunk{Thinking: delta.Thinking}
				}
			case anthropic.MessageStopEvent:
				ch <- StreamChunk{Done: true}
				return
			}
		}
		if err := stream.Err(); err != nil {
			ch <- StreamChunk{Error: fmt.Errorf("anthropic: %w", err), Done: true}
			return
		}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}
