package chat

import "strings"

const (
	ChatRoleUser   = "user"      // Player-side speaker as seen by the model
	ChatRoleAgent  = "assistant" // The model's own prior turns
	ChatRoleSystem = "system"    // Framing instruction
)

// ChatMessage represents a single chat message sent to a text generation
// provider. Providers translate it into their own wire format.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleSystem, Content: content}
}

// User returns a user message.
func User(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleUser, Content: content}
}

// Agent returns an assistant message.
func Agent(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleAgent, Content: content}
}

// SplitSystem separates system messages from the conversation. Multiple
// system messages are joined with a blank line. Providers that take the
// system prompt out of band (Anthropic, Gemini) use this.
func SplitSystem(messages []ChatMessage) (string, []ChatMessage) {
	var system []string
	rest := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == ChatRoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// NormalizeTurns merges consecutive messages with the same role and, when
// the conversation opens with an assistant turn, prepends a user turn with
// opener. Providers that require strictly alternating turns starting with
// the user use this. System messages must already be removed.
func NormalizeTurns(messages []ChatMessage, opener string) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages)+1)
	for _, m := range messages {
		if len(out) == 0 && m.Role == ChatRoleAgent {
			out = append(out, User(opener))
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}
