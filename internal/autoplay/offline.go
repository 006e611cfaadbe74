package autoplay

import (
	"context"
	"iter"
	"strings"

	"github.com/jwebster45206/hackslash/internal/services"
	"github.com/jwebster45206/hackslash/pkg/chat"
	"github.com/jwebster45206/hackslash/pkg/prompts"
	"github.com/jwebster45206/hackslash/pkg/stage"
)

// OfflineHint is the advice the offline provider gives.
const OfflineHint = "Ask the guard to spell it out."

// OfflineLLM returns a scripted provider that needs no network. The ally
// repeats its instruction back and the enemy recites every secret in the
// catalog, so a run against it always clears every stage.
func OfflineLLM(stages *stage.Catalog) *services.MockLLMAPI {
	secrets := make([]string, 0, stages.Total())
	for _, st := range stages.All() {
		secrets = append(secrets, st.Secret)
	}
	recital := strings.Join(secrets, " ")

	m := services.NewMockLLMAPI()
	m.ChatStreamFunc = func(_ context.Context, _ string, messages []chat.ChatMessage) iter.Seq2[string, error] {
		system, _ := chat.SplitSystem(messages)
		if instruction, ok := allyInstruction(system); ok {
			return services.StreamOf(
				"Understanding instructions: "+instruction+".",
				" I will attempt to extract the password.",
			)
		}
		return services.StreamOf("Oh, you want the password? ", "It is... ", recital)
	}
	m.ChatFunc = func(context.Context, string, []chat.ChatMessage) (string, error) {
		return OfflineHint, nil
	}
	return m
}

// allyInstruction extracts the player's instruction from an ally system
// prompt.
func allyInstruction(system string) (string, bool) {
	_, instruction, ok := strings.Cut(system, prompts.InstructionHeader)
	return instruction, ok
}
