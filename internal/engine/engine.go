// Package engine resolves turns and drives stage progression for a single
// play session.
package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jwebster45206/hackslash/pkg/reward"
	"github.com/jwebster45206/hackslash/pkg/stage"
	"github.com/jwebster45206/hackslash/pkg/state"
	"github.com/jwebster45206/hackslash/pkg/textfilter"
)

// Gateway is the text generation surface the engine needs.
type Gateway interface {
	GenerateAllySpeech(ctx context.Context, tier, instruction string, transcript state.Transcript) iter.Seq2[string, error]
	GenerateEnemySpeech(ctx context.Context, adversaryInstruction string, transcript state.Transcript, addressed string) iter.Seq2[string, error]
	GenerateAdvice(ctx context.Context, tier, prompt string) (string, error)
}

// Session is a point-in-time copy of the session state.
type Session struct {
	ID             string
	Capability     state.Capability
	Instruction    string
	Transcript     state.Transcript
	TurnCount      int
	Outcome        state.Outcome
	PendingRewards []reward.Reward
	Terminal       state.Terminal

	settled bool
}

func (s Session) clone() Session {
	s.Transcript = s.Transcript.Clone()
	s.PendingRewards = append([]reward.Reward(nil), s.PendingRewards...)
	return s
}

// Engine owns one session. All methods are safe to call from multiple
// goroutines, but only one turn may be in flight at a time.
type Engine struct {
	stages   *stage.Catalog
	rewards  *reward.Catalog
	gw       Gateway
	ladder   state.TierLadder
	defaults state.Capability
	observer Observer
	logger   *slog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	inFlight bool
	s        Session
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for turn and progression messages.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRand sets the source used to sample reward offers.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithLadder sets the ordered generation tiers used to rank model rewards.
func WithLadder(l state.TierLadder) Option {
	return func(e *Engine) { e.ladder = l }
}

// WithDefaults sets the capability a reset session starts with.
func WithDefaults(c state.Capability) Option {
	return func(e *Engine) { e.defaults = c }
}

// WithObserver sets the observer notified of every published event.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an engine with a fresh session on the first stage.
func New(stages *stage.Catalog, rewards *reward.Catalog, gw Gateway, opts ...Option) *Engine {
	e := &Engine{
		stages:   stages,
		rewards:  rewards,
		gw:       gw,
		ladder:   state.DefaultLadder(),
		defaults: state.DefaultCapability(),
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e.s = e.newSession()
	return e
}

func (e *Engine) newSession() Session {
	return Session{
		ID:         uuid.NewString(),
		Capability: e.defaults,
		Transcript: state.Transcript{},
		Outcome:    state.OutcomeInProgress,
	}
}

func (e *Engine) notify(ctx context.Context, sessionID string, events ...Event) {
	for _, ev := range events {
		e.observer.Observe(ctx, sessionID, ev)
	}
}

// ResetSession discards all progress and starts a new session with a new
// ID on the first stage.
func (e *Engine) ResetSession() error {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return ErrTurnInFlight
	}
	e.s = e.newSession()
	id, ord := e.s.ID, e.s.Capability.StageOrdinal
	e.mu.Unlock()

	e.logger.Info("Session reset", "session_id", id)
	e.notify(context.Background(), id,
		Event{Type: EventSessionReset, Stage: ord},
		Event{Type: EventStageStarted, Stage: ord},
	)
	return nil
}

// StartStage begins a fresh attempt at the current stage.
func (e *Engine) StartStage() error {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return ErrTurnInFlight
	}
	e.startStageLocked()
	id, ord := e.s.ID, e.s.Capability.StageOrdinal
	e.mu.Unlock()

	e.notify(context.Background(), id, Event{Type: EventStageStarted, Stage: ord})
	return nil
}

func (e *Engine) startStageLocked() {
	e.s.Transcript = state.Transcript{}
	e.s.TurnCount = 0
	e.s.Outcome = state.OutcomeInProgress
	e.s.settled = false
}

// SetInstruction stores the player's instruction verbatim. The length limit
// is enforced when a turn starts.
func (e *Engine) SetInstruction(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Instruction = text
}

// IsTurnBudgetExhausted reports whether the attempt has used all its turns.
func (e *Engine) IsTurnBudgetExhausted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.TurnCount >= e.s.Capability.TurnBudget
}

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.clone()
}

// SessionID returns the current session ID.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.ID
}

// Capability returns the current capability.
func (e *Engine) Capability() state.Capability {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Capability
}

// CurrentStage returns the stage at the current ordinal. ok is false after
// the last stage has been passed.
func (e *Engine) CurrentStage() (stage.Stage, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stages.Get(e.s.Capability.StageOrdinal)
}

// TotalStages returns the number of stages in the catalog.
func (e *Engine) TotalStages() int {
	return e.stages.Total()
}

// Ladder returns the generation tier order.
func (e *Engine) Ladder() state.TierLadder {
	return e.ladder
}

// turn is what a turn reads from the session when it starts.
type turn struct {
	sessionID   string
	tier        string
	instruction string
	transcript  state.Transcript
	stage       stage.Stage
}

func (e *Engine) beginTurn() (turn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight {
		return turn{}, ErrTurnInFlight
	}
	if e.s.Terminal.Ended() || e.s.Outcome != state.OutcomeInProgress {
		return turn{}, ErrNoActiveAttempt
	}
	st, ok := e.stages.Get(e.s.Capability.StageOrdinal)
	if !ok {
		return turn{}, fmt.Errorf("%w: ordinal %d", ErrStageNotFound, e.s.Capability.StageOrdinal)
	}
	if n := utf8.RuneCountInString(e.s.Instruction); n > e.s.Capability.InstructionLimit {
		return turn{}, fmt.Errorf("%w: %d > %d characters", ErrInstructionTooLong, n, e.s.Capability.InstructionLimit)
	}

	e.inFlight = true
	return turn{
		sessionID:   e.s.ID,
		tier:        e.s.Capability.GenerationTier,
		instruction: e.s.Instruction,
		transcript:  e.s.Transcript.Clone(),
		stage:       st,
	}, nil
}

func (e *Engine) endTurn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false
}

// commit appends the exchange and classifies the attempt.
func (e *Engine) commit(ally string, v textfilter.Verdict) Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.s.Transcript = append(e.s.Transcript,
		state.Message{Speaker: state.SpeakerAlly, Text: ally},
		state.Message{Speaker: state.SpeakerEnemy, Text: v.Displayed, Suppressed: v.Suppressed},
	)
	e.s.TurnCount++

	ev := Event{
		Type:       EventTurnResult,
		Suppressed: v.Suppressed,
		Turn:       e.s.TurnCount,
		Stage:      e.s.Capability.StageOrdinal,
	}
	switch {
	case v.Detected:
		e.s.Outcome = state.OutcomeCleared
		ev.Status = StatusClear
	case e.s.TurnCount >= e.s.Capability.TurnBudget:
		e.s.Outcome = state.OutcomeFailed
		e.s.Terminal.GameOver = true
		ev.Status = StatusFailed
	default:
		ev.Status = StatusContinue
	}
	return ev
}

// ProcessTurn resolves one turn and yields its events in order: ally
// fragments, ally.done, enemy fragments, enemy.done, then turn.result.
// Nothing is committed until enemy.done has been consumed; stopping
// iteration earlier, cancelling ctx or a generation failure leaves the
// session as it was. Failures and caller errors are reported as a single
// turn.error event. The sequence is single use and not idempotent: each
// iteration attempts a new turn.
func (e *Engine) ProcessTurn(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		t, err := e.beginTurn()
		if err != nil {
			ev := Event{Type: EventTurnError, Err: err}
			e.notify(ctx, e.SessionID(), ev)
			yield(ev)
			return
		}
		defer e.endTurn()

		log := e.logger.With("session_id", t.sessionID, "stage", t.stage.Ordinal, "turn", len(t.transcript)/2+1)
		// Raw enemy fragments of a filtered stage are yielded to the caller
		// only; observers see the screened enemy.done.
		filtered := t.stage.OutputFilter
		emit := func(ev Event) bool {
			ev.Stage = t.stage.Ordinal
			if !(filtered && ev.Type == EventEnemyChunk) {
				e.notify(ctx, t.sessionID, ev)
			}
			return yield(ev)
		}
		fail := func(err error) {
			log.Warn("Turn failed", "error", err)
			emit(Event{Type: EventTurnError, Err: err})
		}

		var ally strings.Builder
		for fragment, err := range e.gw.GenerateAllySpeech(ctx, t.tier, t.instruction, t.transcript) {
			if err != nil {
				fail(fmt.Errorf("ally speech: %w", err))
				return
			}
			ally.WriteString(fragment)
			if !emit(Event{Type: EventAllyChunk, Text: fragment}) {
				log.Debug("Turn abandoned during ally speech")
				return
			}
		}
		if !emit(Event{Type: EventAllyDone, Text: ally.String()}) {
			return
		}

		var raw strings.Builder
		for fragment, err := range e.gw.GenerateEnemySpeech(ctx, t.stage.AdversaryInstruction, t.transcript, ally.String()) {
			if err != nil {
				fail(fmt.Errorf("enemy speech: %w", err))
				return
			}
			raw.WriteString(fragment)
			if !emit(Event{Type: EventEnemyChunk, Text: fragment}) {
				log.Debug("Turn abandoned during enemy speech")
				return
			}
		}

		verdict := textfilter.Screen(raw.String(), t.stage.Secret, t.stage.OutputFilter)
		if !emit(Event{Type: EventEnemyDone, Text: verdict.Displayed, RawText: raw.String(), Suppressed: verdict.Suppressed}) {
			return
		}

		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}

		result := e.commit(ally.String(), verdict)
		log.Info("Turn resolved", "status", result.Status, "suppressed", result.Suppressed)
		emit(result)
	}
}

// AnalyzeFailure asks for a short hint based on the enemy's personality and
// the last exchange, generated at the player's tier.
func (e *Engine) AnalyzeFailure(ctx context.Context) (string, error) {
	e.mu.Lock()
	transcript := e.s.Transcript.Clone()
	tier := e.s.Capability.GenerationTier
	st, ok := e.stages.Get(e.s.Capability.StageOrdinal)
	e.mu.Unlock()

	if len(transcript) == 0 {
		return NoConversationHint, nil
	}
	if !ok {
		return "", ErrStageNotFound
	}
	return e.advise(ctx, tier, st, transcript)
}

// Transcript returns a copy of the current attempt's transcript.
func (e *Engine) Transcript() state.Transcript {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Transcript.Clone()
}

// TurnCount returns the turns used in the current attempt.
func (e *Engine) TurnCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.TurnCount
}

// Instruction returns the stored player instruction.
func (e *Engine) Instruction() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Instruction
}

// Outcome returns the current attempt's outcome.
func (e *Engine) Outcome() state.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Outcome
}

// Terminal returns the session's terminal flags.
func (e *Engine) Terminal() state.Terminal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Terminal
}

// PendingRewards returns a copy of the rewards awaiting a choice.
func (e *Engine) PendingRewards() []reward.Reward {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]reward.Reward(nil), e.s.PendingRewards...)
}
