package provider

import (
	"context"
	"strings"
)

// Collect drains a chat stream into a single string. Thinking text is
// discarded.
func Collect(ctx context.Context, p Provider, msgs []Message, opts Options) (string, error) {
	ch, err := p.Chat(ctx, msgs, opts)
	if err != nil {
		return "", err
	}
	// the producer goroutine must always be able to finish
	defer drain(ch)

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return sb.String(), nil
			}
			if chunk.Error != nil {
				return "", chunk.Error
			}
			sb.WriteString(chunk.Delta)
			if chunk.Done {
				return sb.String(), nil
			}
		}
	}
}

func drain(ch <-chan StreamChunk) {
	go func() {
		for range ch {
		}
	}()
}
