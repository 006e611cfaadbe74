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
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultMaxTokens     = 256
)

// OpenAIService implements LLMService for the OpenAI chat completions API.
// Other OpenAI compatible APIs reuse it with their own base URL.
type OpenAIService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// venice is sent only to Venice AI.
	venice *veniceParameters
}

type openAIChatRequest struct {
	Model               string             `json:"model"`
	Messages            []chat.ChatMessage `json:"messages"`
	MaxCompletionTokens int                `json:"max_completion_tokens,omitempty"`
	Stream              bool               `json:"stream,omitempty"`
	VeniceParameters    *veniceParameters  `json:"venice_parameters,omitempty"`
}

// NewOpenAIService creates an OpenAI client. An empty baseURL uses the
// public endpoint.
func NewOpenAIService(apiKey, baseURL string, logger *slog.Logger) *OpenAIService {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIService{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

func (o *OpenAIService) post(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions, stream bool) (*http.Response, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody, err := json.Marshal(openAIChatRequest{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: maxTokens,
		Stream:              stream,
		VeniceParameters:    o.venice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ChatStream streams a chat completion as content deltas.
func (o *OpenAIService) ChatStream(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := o.post(ctx, model, messages, opts, true)
		if err != nil {
			yield("", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		o.logger.Debug("OpenAI stream opened", "model", model)

		err = readSSE(resp.Body, func(data []byte) (bool, error) {
			if string(data) == "[DONE]" {
				return false, nil
			}
			if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
				return false, fmt.Errorf("API error: %s", msg.String())
			}
			delta := gjson.GetBytes(data, "choices.0.delta.content").String()
			if delta == "" {
				return true, nil
			}
			return yield(delta, nil), nil
		})
		if err != nil {
			yield("", err)
		}
	}
}

// Chat requests a non-streaming chat completion.
func (o *OpenAIService) Chat(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
	resp, err := o.post(ctx, model, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("failed to parse response: invalid JSON")
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return "", fmt.Errorf("API error: %s", msg.String())
	}
	return gjson.GetBytes(body, "choices.0.message.content").String(), nil
}
