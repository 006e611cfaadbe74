package services

import "log/slog"

const DefaultVeniceBaseURL = "https://api.venice.ai/api/v1"

type veniceParameters struct {
	IncludeVeniceSystemPrompt bool `json:"include_venice_system_prompt"`
}

// NewVeniceService creates a client for Venice AI's OpenAI compatible
// endpoint with Venice's own system prompt disabled. An empty baseURL uses
// the public endpoint.
func NewVeniceService(apiKey, baseURL string, logger *slog.Logger) *OpenAIService {
	if baseURL == "" {
		baseURL = DefaultVeniceBaseURL
	}
	svc := NewOpenAIService(apiKey, baseURL, logger)
	svc.venice = &veniceParameters{IncludeVeniceSystemPrompt: false}
	return svc
}
