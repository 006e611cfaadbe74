package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/hackslash/pkg/chat"
	"github.com/tidwall/gjson"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"

	// conversationOpener stands in for a missing first user turn; the
	// Messages API requires the conversation to start with one.
	conversationOpener = "(conversation start)"
)

// AnthropicService implements LLMService for Anthropic Claude
type AnthropicService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []chat.ChatMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

func NewAnthropicService(apiKey, baseURL string, logger *slog.Logger) *AnthropicService {
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	return &AnthropicService{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

func (a *AnthropicService) post(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions, stream bool) (*http.Response, error) {
	systemPrompt, conversation := chat.SplitSystem(messages)
	conversation = chat.NormalizeTurns(conversation, conversationOpener)
	if len(conversation) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody, err := json.Marshal(anthropicChatRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  conversation,
		System:    systemPrompt,
		Stream:    stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set required Anthropic headers
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ChatStream streams text deltas from the Messages API.
func (a *AnthropicService) ChatStream(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := a.post(ctx, model, messages, opts, true)
		if err != nil {
			yield("", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		err = readSSE(resp.Body, func(data []byte) (bool, error) {
			switch gjson.GetBytes(data, "type").String() {
			case "content_block_delta":
				text := gjson.GetBytes(data, "delta.text").String()
				if text == "" {
					return true, nil
				}
				return yield(text, nil), nil
			case "message_stop":
				return false, nil
			case "error":
				return false, fmt.Errorf("API error: %s", gjson.GetBytes(data, "error.message").String())
			default:
				return true, nil
			}
		})
		if err != nil {
			yield("", err)
		}
	}
}

// Chat requests a non-streaming message and joins its text blocks.
func (a *AnthropicService) Chat(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
	resp, err := a.post(ctx, model, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return "", fmt.Errorf("API error: %s", msg.String())
	}

	// Extract text content from the response
	var responseText strings.Builder
	for _, block := range gjson.GetBytes(body, "content").Array() {
		if block.Get("type").String() == "text" {
			responseText.WriteString(block.Get("text").String())
		}
	}
	return responseText.String(), nil
}
