package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/jwebster45206/hackslash/pkg/chat"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiService implements LLMService for Google Gemini.
type GeminiService struct {
	client *genai.Client
	logger *slog.Logger
}

// NewGeminiService creates a Gemini client. Close releases it.
func NewGeminiService(ctx context.Context, apiKey string, logger *slog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiService{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (g *GeminiService) Close() error {
	return g.client.Close()
}

// geminiConversation splits messages into a system instruction, prior
// history and the final user text that is sent.
func geminiConversation(messages []chat.ChatMessage) (*genai.Content, []*genai.Content, string, error) {
	systemPrompt, conversation := chat.SplitSystem(messages)
	conversation = chat.NormalizeTurns(conversation, conversationOpener)
	if len(conversation) == 0 {
		return nil, nil, "", fmt.Errorf("no messages provided")
	}
	last := conversation[len(conversation)-1]
	if last.Role != chat.ChatRoleUser {
		return nil, nil, "", fmt.Errorf("last message must come from the user, got %q", last.Role)
	}

	var system *genai.Content
	if systemPrompt != "" {
		system = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	history := make([]*genai.Content, 0, len(conversation)-1)
	for _, m := range conversation[:len(conversation)-1] {
		role := "user"
		if m.Role == chat.ChatRoleAgent {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return system, history, last.Content, nil
}

func (g *GeminiService) session(model string, messages []chat.ChatMessage, opts GenerateOptions) (*genai.ChatSession, string, error) {
	system, history, text, err := geminiConversation(messages)
	if err != nil {
		return nil, "", err
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	m := g.client.GenerativeModel(model)
	m.SystemInstruction = system
	m.SetMaxOutputTokens(int32(maxTokens))

	cs := m.StartChat()
	cs.History = history
	return cs, text, nil
}

// ChatStream streams the reply's text parts.
func (g *GeminiService) ChatStream(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		cs, text, err := g.session(model, messages, opts)
		if err != nil {
			yield("", err)
			return
		}

		it := cs.SendMessageStream(ctx, genai.Text(text))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("Gemini stream failed: %w", err))
				return
			}
			for _, part := range firstCandidateParts(resp) {
				if t, ok := part.(genai.Text); ok && t != "" {
					if !yield(string(t), nil) {
						return
					}
				}
			}
		}
	}
}

// Chat returns the full reply.
func (g *GeminiService) Chat(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
	cs, text, err := g.session(model, messages, opts)
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("Gemini request failed: %w", err)
	}

	var out string
	for _, part := range firstCandidateParts(resp) {
		if t, ok := part.(genai.Text); ok {
			out += string(t)
		}
	}
	return out, nil
}

func firstCandidateParts(resp *genai.GenerateContentResponse) []genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}
