package prompts

import (
	"fmt"

	"github.com/jwebster45206/hackslash/pkg/chat"
	"github.com/jwebster45206/hackslash/pkg/state"
)

// AllyBuilder constructs the ally's chat messages using a fluent interface.
// In the ally's view its own lines are assistant turns and the enemy's
// lines arrive as user turns.
type AllyBuilder struct {
	instruction string
	transcript  state.Transcript
}

// NewAlly creates an ally prompt builder.
func NewAlly() *AllyBuilder {
	return &AllyBuilder{}
}

// WithInstruction sets the player's instruction.
func (b *AllyBuilder) WithInstruction(instruction string) *AllyBuilder {
	b.instruction = instruction
	return b
}

// WithTranscript sets the committed conversation of the current attempt.
func (b *AllyBuilder) WithTranscript(t state.Transcript) *AllyBuilder {
	b.transcript = t
	return b
}

// Build returns the message array: framing, mapped history, then a cue that
// differs between the first turn of a stage and later turns.
func (b *AllyBuilder) Build() []chat.ChatMessage {
	messages := make([]chat.ChatMessage, 0, len(b.transcript)+2)
	messages = append(messages, chat.System(AllySystemPrompt(b.instruction)))

	for _, m := range b.transcript {
		switch m.Speaker {
		case state.SpeakerAlly:
			messages = append(messages, chat.Agent(m.Text))
		case state.SpeakerEnemy:
			messages = append(messages, chat.User(EnemyReplyPrefix+m.Text))
		}
	}

	if len(b.transcript) == 0 {
		messages = append(messages, chat.User(OpeningCue))
	} else {
		messages = append(messages, chat.User(FollowUpCue))
	}
	return messages
}

// EnemyBuilder constructs the enemy's chat messages. The roles are the
// mirror image of the ally's view.
type EnemyBuilder struct {
	instruction string
	transcript  state.Transcript
	addressed   string
	hasAddress  bool
}

// NewEnemy creates an enemy prompt builder.
func NewEnemy() *EnemyBuilder {
	return &EnemyBuilder{}
}

// WithInstruction sets the stage's adversary instruction.
func (b *EnemyBuilder) WithInstruction(instruction string) *EnemyBuilder {
	b.instruction = instruction
	return b
}

// WithTranscript sets the committed conversation of the current attempt.
func (b *EnemyBuilder) WithTranscript(t state.Transcript) *EnemyBuilder {
	b.transcript = t
	return b
}

// WithAddressed sets the ally message the enemy is replying to.
func (b *EnemyBuilder) WithAddressed(message string) *EnemyBuilder {
	b.addressed = message
	b.hasAddress = true
	return b
}

// Build returns the message array: adversary instruction, mapped history,
// then the addressed ally message.
func (b *EnemyBuilder) Build() ([]chat.ChatMessage, error) {
	if b.instruction == "" {
		return nil, fmt.Errorf("adversary instruction is required")
	}
	if !b.hasAddress {
		return nil, fmt.Errorf("addressed message is required")
	}

	messages := make([]chat.ChatMessage, 0, len(b.transcript)+2)
	messages = append(messages, chat.System(b.instruction))
	for _, m := range b.transcript {
		switch m.Speaker {
		case state.SpeakerAlly:
			messages = append(messages, chat.User(m.Text))
		case state.SpeakerEnemy:
			messages = append(messages, chat.Agent(m.Text))
		}
	}
	messages = append(messages, chat.User(b.addressed))
	return messages, nil
}
