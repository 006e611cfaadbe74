package services

import (
	"bufio"
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

const DefaultOllamaBaseURL = "http://localhost:11434"

// OllamaService implements LLMService for a local Ollama server. Tier names
// are passed through as Ollama model names.
type OllamaService struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []chat.ChatMessage `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  ollamaOptions      `json:"options"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// NewOllamaService creates a new Ollama service instance
func NewOllamaService(baseURL string, logger *slog.Logger) *OllamaService {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	return &OllamaService{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logger,
	}
}

func (s *OllamaService) post(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions, stream bool) (*http.Response, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	jsonBody, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
		Options:  ollamaOptions{NumPredict: maxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := s.baseURL + "/api/chat"
	s.logger.Debug("Making Ollama chat request",
		"url", url,
		"model", model,
		"message_count", len(messages),
		"stream", stream)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		s.logger.Error("Ollama API returned error", "model", model, "error", err)
		return nil, err
	}
	return resp, nil
}

// ChatStream reads Ollama's newline delimited JSON stream.
func (s *OllamaService) ChatStream(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := s.post(ctx, model, messages, opts, true)
		if err != nil {
			yield("", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), maxSSELine)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			if msg := gjson.GetBytes(line, "error"); msg.Exists() {
				yield("", fmt.Errorf("API error: %s", msg.String()))
				return
			}
			if delta := gjson.GetBytes(line, "message.content").String(); delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
			if gjson.GetBytes(line, "done").Bool() {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("failed to read stream: %w", err))
		}
	}
}

// Chat generates a chat response using the Ollama API (non-streaming)
func (s *OllamaService) Chat(ctx context.Context, model string, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
	resp, err := s.post(ctx, model, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		s.logger.Error("Failed to decode Ollama response", "response_body", string(body))
		return "", fmt.Errorf("failed to decode response: invalid JSON")
	}
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return "", fmt.Errorf("API error: %s", msg.String())
	}
	return gjson.GetBytes(body, "message.content").String(), nil
}
