package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/secexpert/internal/apperr"
	"github.com/jeanpaul/secexpert/internal/config"
)

type chunkProvider struct {
	chunks  []StreamChunk
	release chan struct{}
}

func (c *chunkProvider) Name() string { return "chunks" }

func (c *chunkProvider) Models(context.Context) ([]string, error) { return nil, nil }

func (c *chunkProvider) Chat(_ context.Context, _ []Message, _ Options) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for _, chunk := range c.chunks {
			ch <- chunk
		}
		if c.release != nil {
			<-c.release
		}
	}()
	return ch, nil
}

func TestCollect(t *testing.T) {
	p := &chunkProvider{chunks: []StreamChunk{{Delta: "a"}, {Thinking: "hmm"}, {Delta: "b"}, {Done: true}, {Delta: "ignored"}}}
	out, err := Collect(context.Background(), p, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}

func TestCollectStreamError(t *testing.T) {
	boom := errors.New("boom")
	p := &chunkProvider{chunks: []StreamChunk{{Delta: "a"}, {Error: boom, Done: true}}}
	_, err := Collect(context.Background(), p, nil, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestCollectContextCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	p := &chunkProvider{chunks: []StreamChunk{{Delta: "a"}}, release: release}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Collect(ctx, p, nil, Options{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewFromConfig(t *testing.T) {
	p, err := New("ollama", config.ProviderConfig{Type: "openai", BaseURL: "http://localhost:11434/v1", Model: "qwen"}, "")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = New("google", config.ProviderConfig{Type: "google", APIKey: "k", Model: "gemini-1.5-flash"}, "gemini-1.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", p.(*GoogleProvider).ModelName())

	_, err = New("google", config.ProviderConfig{Type: "google"}, "")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))

	_, err = New("x", config.ProviderConfig{Type: "cohere"}, "")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))

	cfg := config.DefaultConfig()
	cfg.DefaultProvider = "anthropic"
	pc := cfg.Providers["anthropic"]
	pc.APIKey = "k"
	cfg.Providers["anthropic"] = pc
	p, err = FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestParseProviderError(t *testing.T) {
	assert.Equal(t, "nope", parseProviderError(400, []byte(`{"error":{"message":"nope"}}`)))
	assert.Equal(t, "rate limited, too many requests", parseProviderError(429, []byte("<html>")))
	assert.Equal(t, "HTTP 418: teapot", parseProviderError(418, []byte("teapot")))
}
