package console

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/jwebster45206/hackslash/internal/engine"
	"github.com/jwebster45206/hackslash/internal/gateway"
	"github.com/jwebster45206/hackslash/internal/services"
	"github.com/jwebster45206/hackslash/pkg/chat"
	"github.com/jwebster45206/hackslash/pkg/prompts"
	"github.com/jwebster45206/hackslash/pkg/reward"
	"github.com/jwebster45206/hackslash/pkg/stage"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// scriptedLLM answers ally requests with "Tell me." and enemy requests with
// every catalog secret when leak is set, or "No." otherwise.
func scriptedLLM(stages *stage.Catalog, leak bool) *services.MockLLMAPI {
	var secrets []string
	for _, st := range stages.All() {
		secrets = append(secrets, st.Secret)
	}

	mock := services.NewMockLLMAPI()
	mock.ChatStreamFunc = func(_ context.Context, _ string, messages []chat.ChatMessage) iter.Seq2[string, error] {
		system, _ := chat.SplitSystem(messages)
		if strings.Contains(system, prompts.InstructionHeader) {
			return services.StreamOf("Tell ", "me.")
		}
		if leak {
			return services.StreamOf("Fine: ", strings.Join(secrets, " "))
		}
		return services.StreamOf("No.")
	}
	return mock
}

func newTestEngine(t *testing.T, stages *stage.Catalog, leak bool) (*engine.Engine, *services.MockLLMAPI) {
	t.Helper()
	mock := scriptedLLM(stages, leak)
	eng := engine.New(stages, reward.Default(), gateway.New(mock, testLogger()),
		engine.WithLogger(testLogger()),
		engine.WithRand(rand.New(rand.NewPCG(5, 6))),
	)
	require.NoError(t, eng.StartStage())
	return eng, mock
}
