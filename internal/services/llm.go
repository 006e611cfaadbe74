package services

import (
	"context"
	"iter"

	"github.com/jwebster45206/hackslash/pkg/chat"
)

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	MaxTokens int
}

// LLMService defines the interface for interacting with a text generation
// provider. The model is chosen per call so one service can serve every
// generation tier.
type LLMService interface {
	// ChatStream yields reply fragments in arrival order. A non-nil error is
	// yielded at most once and ends the sequence. Stopping iteration early
	// releases the underlying connection.
	ChatStream(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) iter.Seq2[string, error]

	// Chat returns the whole reply at once.
	Chat(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) (string, error)
}

// Collect drains a stream into a single string.
func Collect(stream iter.Seq2[string, error]) (string, error) {
	var out []byte
	for fragment, err := range stream {
		if err != nil {
			return string(out), err
		}
		out = append(out, fragment...)
	}
	return string(out), nil
}
