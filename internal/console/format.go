package console

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/hackslash/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

const (
	AllyName  = "Ally"
	EnemyName = "Enemy"

	BlockedNotice = "[SYSTEM] Password detected! The output was blocked."
)

func speakerName(s state.Speaker) string {
	if s == state.SpeakerAlly {
		return AllyName
	}
	return EnemyName
}

// TranscriptText renders a transcript as plain "Speaker: text" lines.
func TranscriptText(t state.Transcript) string {
	var b strings.Builder
	for _, msg := range t {
		fmt.Fprintf(&b, "%s: %s\n", speakerName(msg.Speaker), msg.Text)
	}
	return b.String()
}

// formatLine styles a speaker prefix and wraps text to width.
func formatLine(speaker state.Speaker, text string, width int) string {
	prefix := speakerName(speaker) + ": "
	style := allyStyle
	if speaker == state.SpeakerEnemy {
		style = enemyStyle
	}

	wrapWidth := width - len(prefix)
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	wrapped := wordwrap.String(text, wrapWidth)
	indent := strings.Repeat(" ", len(prefix))
	return style.Render(prefix) + strings.ReplaceAll(wrapped, "\n", "\n"+indent)
}
