package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/jwebster45206/hackslash/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVeniceService_DisablesVeniceSystemPrompt(t *testing.T) {
	var req map[string]any
	srv := sseServer(t, http.StatusOK, openAIChunk("hi")+"data: [DONE]\n\n", &req)
	svc := NewVeniceService("venice-key", srv.URL, discardLogger())

	text, err := Collect(svc.ChatStream(context.Background(), "llama-3.3-70b", []chat.ChatMessage{chat.User("hi")}, GenerateOptions{}))
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	params, ok := req["venice_parameters"].(map[string]any)
	require.True(t, ok, "venice_parameters missing from %v", req)
	assert.Equal(t, false, params["include_venice_system_prompt"])
}

func TestVeniceService_DefaultBaseURL(t *testing.T) {
	svc := NewVeniceService("k", "", discardLogger())
	assert.Equal(t, DefaultVeniceBaseURL, svc.baseURL)
}

func TestOpenAIService_OmitsVeniceParameters(t *testing.T) {
	var req map[string]any
	srv := sseServer(t, http.StatusOK, "data: [DONE]\n\n", &req)
	svc := NewOpenAIService("sk", srv.URL, discardLogger())

	_, err := Collect(svc.ChatStream(context.Background(), "gpt-4", []chat.ChatMessage{chat.User("hi")}, GenerateOptions{}))
	require.NoError(t, err)
	assert.NotContains(t, req, "venice_parameters")
}
