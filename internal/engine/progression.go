package engine

import (
	"context"
	"fmt"

	"github.com/jwebster45206/hackslash/pkg/prompts"
	"github.com/jwebster45206/hackslash/pkg/reward"
	"github.com/jwebster45206/hackslash/pkg/stage"
	"github.com/jwebster45206/hackslash/pkg/state"
)

// NoConversationHint is returned by AnalyzeFailure when there is nothing to
// analyze.
const NoConversationHint = "No conversation took place."

// SettleStageClear resolves a cleared attempt. On the last stage the session
// becomes victorious and nil is returned. Otherwise up to reward.OfferSize
// distinct eligible rewards are sampled, stored as pending and returned.
// If nothing is eligible the session moves straight on to the next stage.
func (e *Engine) SettleStageClear() ([]reward.Reward, error) {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	if e.s.Outcome != state.OutcomeCleared {
		e.mu.Unlock()
		return nil, ErrNotCleared
	}
	if e.s.settled {
		e.mu.Unlock()
		return nil, ErrAlreadySettled
	}
	e.s.settled = true

	id := e.s.ID
	ord := e.s.Capability.StageOrdinal
	var events []Event
	var offer []reward.Reward

	switch {
	case ord >= e.stages.Total():
		e.s.Terminal.Victorious = true
		events = append(events, Event{Type: EventVictory, Stage: ord})
	default:
		offer = e.rewards.Offer(e.rng, e.s.Capability, e.ladder, reward.OfferSize)
		if len(offer) == 0 {
			e.advanceLocked()
			events = append(events, Event{Type: EventStageStarted, Stage: e.s.Capability.StageOrdinal})
			break
		}
		e.s.PendingRewards = offer
		events = append(events, Event{Type: EventRewardsOffered, Stage: ord, Rewards: offer})
	}
	e.mu.Unlock()

	e.logger.Info("Stage clear settled", "session_id", id, "stage", ord, "offered", len(offer))
	e.notify(context.Background(), id, events...)
	return append([]reward.Reward(nil), offer...), nil
}

func (e *Engine) advanceLocked() {
	e.s.Capability.StageOrdinal++
	e.startStageLocked()
	e.s.PendingRewards = nil
}

// ApplyReward applies the pending reward at index, advances to the next
// stage and starts it. An out of range index leaves the session untouched.
func (e *Engine) ApplyReward(index int) error {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return ErrTurnInFlight
	}
	if index < 0 || index >= len(e.s.PendingRewards) {
		n := len(e.s.PendingRewards)
		e.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrRewardIndex, index, n)
	}

	chosen := e.s.PendingRewards[index]
	e.s.Capability = chosen.Effect.Apply(e.s.Capability)
	e.advanceLocked()

	id := e.s.ID
	ord := e.s.Capability.StageOrdinal
	e.mu.Unlock()

	e.logger.Info("Reward applied", "session_id", id, "reward", chosen.ID, "stage", ord)
	e.notify(context.Background(), id,
		Event{Type: EventRewardApplied, Stage: ord, Rewards: []reward.Reward{chosen}},
		Event{Type: EventStageStarted, Stage: ord},
	)
	return nil
}

func (e *Engine) advise(ctx context.Context, tier string, st stage.Stage, transcript state.Transcript) (string, error) {
	prompt, err := prompts.BuildAdvicePrompt(st.Description, transcript)
	if err != nil {
		return "", err
	}
	hint, err := e.gw.GenerateAdvice(ctx, tier, prompt)
	if err != nil {
		return "", fmt.Errorf("analyze failure: %w", err)
	}
	return hint, nil
}
