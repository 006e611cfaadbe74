package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwebster45206/hackslash/internal/engine"
	"github.com/jwebster45206/hackslash/internal/services/events"
	"github.com/tidwall/pretty"
)

// formatWatched renders one followed event as a single line. Fragment
// events are skipped.
func formatWatched(m events.Message) (string, bool) {
	if m.Type == engine.EventAllyChunk || m.Type == engine.EventEnemyChunk {
		return "", false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[stage %d] %s", m.Stage, m.Type)
	switch m.Type {
	case engine.EventAllyDone:
		fmt.Fprintf(&b, " ally: %s", m.Text)
	case engine.EventEnemyDone:
		fmt.Fprintf(&b, " enemy: %s", m.Text)
		if m.Suppressed {
			b.WriteString(" (blocked)")
		}
	case engine.EventTurnResult:
		fmt.Fprintf(&b, " turn %d: %s", m.Turn, m.Status)
	case engine.EventTurnError:
		fmt.Fprintf(&b, " %s", m.Error)
	case engine.EventRewardsOffered, engine.EventRewardApplied:
		fmt.Fprintf(&b, " %s", strings.Join(m.Rewards, ", "))
	}
	return b.String(), true
}

// watchedJSON renders a followed event as indented JSON, chunks included.
func watchedJSON(m events.Message) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	return strings.TrimRight(string(pretty.Pretty(b)), "\n"), nil
}
