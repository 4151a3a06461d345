package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIProvider speaks the OpenAI chat-completions protocol, which also
// covers Ollama and other compatible servers.
type OpenAIProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAI(name, baseURL, apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
	}
}

func (o *OpenAIProvider) Name() string { return o.name }

func (o *OpenAIProvider) ModelName() string { return o.model }

func (o *OpenAIProvider) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	o.authorize(req)
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %s: %w", o.name, friendlyProviderError(err), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider %s: %s", o.name, parseProviderError(resp.StatusCode, body))
	}
	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	models := make([]string, len(result.Data))
	for i, m := range result.Data {
		models[i] = m.ID
	}
	return models, nil
}

type oaiRequest struct {
	Model       string         `json:"model"`
	Messages    []oaiMessage   `json:"messages"`
	Stream      bool           `json:"stream"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Options     map[string]any `json:"options,omitempty"` // Ollama-specific parameters
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type oaiStreamChunk struct {
	Choices []oaiChoice `json:"choices"`
}

func (o *OpenAIProvider) authorize(req *http.Request) {
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
}

func (o *OpenAIProvider) Chat(ctx context.Context, msgs []Message, opts Options) (<-chan StreamChunk, error) {
	oaiMsgs := make([]oaiMessage, len(msgs))
	for i, m := range msgs {
		oaiMsgs[i] = oaiMessage{Role: string(m.Role), Content: m.Content}
	}

	reqBody := oaiRequest{
		Model:       o.model,
		Messages:    oaiMsgs,
		Stream:      true,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	// Ollama defaults to a 2048 token context, too small for an analysis prompt
	if strings.Contains(o.baseURL, "11434") || strings.Contains(o.baseURL, "localhost") {
		reqBody.Options = map[string]any{"num_ctx": 32768}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	o.authorize(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %s: %w", o.name, friendlyProviderError(err), err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("provider %s: %s", o.name, parseProviderError(resp.StatusCode, body))
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		var think thinkSplitter
		send := func(chunks []StreamChunk) {
			for _, c := range chunks {
				ch <- c
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				send(think.flush())
				ch <- StreamChunk{Done: true}
				return
			}
			var chunk oaiStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				send(think.feed(content))
			}
			if chunk.Choices[0].FinishReason != nil {
				send(think.flush())
				ch <- StreamChunk{Done: true}
				return
			}
		}

		send(think.flush())
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Error: err, Done: true}
			return
		}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

// thinkSplitter separates <think>...</think> reasoning from answer text.
// Tags may arrive split across deltas, so a possible partial tag at the end
// of the buffer is held back until the next delta.
type thinkSplitter struct {
	inThink bool
	buf     string
}

func (t *thinkSplitter) feed(s string) []StreamChunk {
	t.buf += s
	var out []StreamChunk
	for {
		tag := "<think>"
		if t.inThink {
			tag = "</think>"
		}
		if i := strings.Index(t.buf, tag); i >= 0 {
			out = t.emit(out, t.buf[:i])
			t.buf = t.buf[i+len(tag):]
			t.inThink = !t.inThink
			continue
		}
		keep := partialSuffix(t.buf, tag)
		out = t.emit(out, t.buf[:len(t.buf)-keep])
		t.buf = t.buf[len(t.buf)-keep:]
		return out
	}
}

func (t *thinkSplitter) flush() []StreamChunk {
	out := t.emit(nil, t.buf)
	t.buf = ""
	return out
}

func (t *thinkSplitter) emit(out []StreamChunk, text string) []StreamChunk {
	if text == "" {
		return out
	}
	if t.inThink {
		return append(out, StreamChunk{Thinking: text})
	}
	return append(out, StreamChunk{Delta: text})
}

// partialSuffix is the length of the longest proper prefix of tag that s
// ends with.
func partialSuffix(s, tag string) int {
	n := len(tag) - 1
	if len(s) < n {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
