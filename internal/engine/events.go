package engine

import (
	"context"

	"github.com/jwebster45206/hackslash/pkg/reward"
)

// EventType names an engine event.
type EventType string

const (
	// Turn events, in the order a turn emits them.
	EventAllyChunk  EventType = "ally.chunk"
	EventAllyDone   EventType = "ally.done"
	EventEnemyChunk EventType = "enemy.chunk"
	EventEnemyDone  EventType = "enemy.done"
	EventTurnResult EventType = "turn.result"
	EventTurnError  EventType = "turn.error"

	// Progression events, reported to the observer only.
	EventStageStarted   EventType = "stage.started"
	EventRewardsOffered EventType = "rewards.offered"
	EventRewardApplied  EventType = "reward.applied"
	EventVictory        EventType = "game.victory"
	EventSessionReset   EventType = "session.reset"
)

// TurnStatus classifies a resolved turn.
type TurnStatus string

const (
	StatusClear    TurnStatus = "clear"
	StatusFailed   TurnStatus = "failed"
	StatusContinue TurnStatus = "continue"
)

// Event is one step of a turn or a progression change. Fields not relevant
// to Type are zero.
type Event struct {
	Type EventType `json:"type"`

	// Text is the fragment for chunk events and the full message for done
	// events. For enemy.done it is the displayed text.
	Text string `json:"text,omitempty"`

	// RawText is the unfiltered enemy reply on enemy.done. It may contain the
	// secret and is never published.
	RawText string `json:"-"`

	Suppressed bool            `json:"suppressed,omitempty"`
	Status     TurnStatus      `json:"status,omitempty"`
	Turn       int             `json:"turn,omitempty"`
	Stage      int             `json:"stage,omitempty"`
	Rewards    []reward.Reward `json:"rewards,omitempty"`
	Err        error           `json:"-"`
}

// Observer receives the events the engine emits, including progression
// changes. On a stage with an output filter the enemy.chunk fragments are
// withheld. Observe must not block for long; it runs on the caller's
// goroutine.
type Observer interface {
	Observe(ctx context.Context, sessionID string, ev Event)
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, string, Event) {}
