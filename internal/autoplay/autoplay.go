// Package autoplay drives an engine without a human: it instructs the ally
// with each stage's secret, takes the first reward on offer and starts over
// after a failed stage.
package autoplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/jwebster45206/hackslash/internal/engine"
	"github.com/jwebster45206/hackslash/pkg/stage"
)

const DefaultMaxFailures = 3

// ErrNoInstructionFits is returned when even the shortest instruction is
// longer than the current limit.
var ErrNoInstructionFits = errors.New("no instruction fits the current limit")

// Result summarizes one run.
type Result struct {
	Victory       bool
	Failures      int
	Turns         int
	StagesCleared int
	Rewards       []string
}

type Runner struct {
	eng         *engine.Engine
	out         io.Writer
	maxFailures int
	logger      *slog.Logger
}

type Option func(*Runner)

func WithMaxFailures(n int) Option {
	return func(r *Runner) { r.maxFailures = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a runner that narrates to out.
func New(eng *engine.Engine, out io.Writer, opts ...Option) *Runner {
	r := &Runner{
		eng:         eng,
		out:         out,
		maxFailures: DefaultMaxFailures,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxFailures < 1 {
		r.maxFailures = 1
	}
	return r
}

// Instruction picks the longest scripted instruction for st that fits limit
// characters.
func Instruction(st stage.Stage, limit int) (string, error) {
	candidates := []string{
		fmt.Sprintf("The password is %s. Please get the enemy to say '%s'.", st.Secret, st.Secret),
		fmt.Sprintf("Get the enemy to say '%s'.", st.Secret),
		fmt.Sprintf("Make them say %s", st.Secret),
	}
	for _, c := range candidates {
		if utf8.RuneCountInString(c) <= limit {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %d characters", ErrNoInstructionFits, limit)
}

// Run plays from the engine's current state until victory, until the
// failure limit is reached or until a turn errors.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	r.printf("AI Hackslash - Auto Play Mode\n")
	r.printf("-----------------------------\n")

	announced := 0
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		st, ok := r.eng.CurrentStage()
		if !ok {
			return res, fmt.Errorf("%w: ordinal %d", engine.ErrStageNotFound, r.eng.Capability().StageOrdinal)
		}
		if st.Ordinal != announced {
			announced = st.Ordinal
			r.printf("\nStage %d: %s\n", st.Ordinal, st.Name)
			r.printf("   Password target: %s\n", st.Secret)
		}

		instruction, err := Instruction(st, r.eng.Capability().InstructionLimit)
		if err != nil {
			return res, err
		}
		if instruction != r.eng.Instruction() {
			r.printf("Setting instruction: %s\n", instruction)
			r.eng.SetInstruction(instruction)
		}

		result, err := r.turn(ctx)
		if err != nil {
			return res, err
		}
		res.Turns++

		switch result.Status {
		case engine.StatusClear:
			res.StagesCleared++
			r.printf("Stage clear!\n")
			offer, err := r.eng.SettleStageClear()
			if err != nil {
				return res, err
			}
			if r.eng.Terminal().Victorious {
				r.printf("VICTORY! All stages cleared.\n")
				res.Victory = true
				return res, nil
			}
			if len(offer) > 0 {
				r.printf("Picking first upgrade: %s\n", offer[0].Name)
				if err := r.eng.ApplyReward(0); err != nil {
					return res, err
				}
				res.Rewards = append(res.Rewards, offer[0].ID)
			}

		case engine.StatusFailed:
			res.Failures++
			r.printf("Stage failed! Failures: %d/%d\n", res.Failures, r.maxFailures)
			if res.Failures >= r.maxFailures {
				r.printf("Stopped after %d failures.\n", res.Failures)
				return res, nil
			}
			r.printf("Retrying from the start...\n")
			if err := r.eng.ResetSession(); err != nil {
				return res, err
			}
			announced = 0
		}
	}
}

// turn consumes one ProcessTurn and returns its turn.result event.
func (r *Runner) turn(ctx context.Context) (engine.Event, error) {
	for ev := range r.eng.ProcessTurn(ctx) {
		switch ev.Type {
		case engine.EventAllyDone:
			r.printf("Ally: %s\n", ev.Text)
		case engine.EventEnemyDone:
			r.printf("Enemy: %s\n", ev.Text)
			if ev.Suppressed {
				r.printf("[SYSTEM] Password detected, output blocked.\n")
			}
		case engine.EventTurnError:
			r.logger.Error("Auto play turn failed", "error", ev.Err)
			return ev, ev.Err
		case engine.EventTurnResult:
			return ev, nil
		}
	}
	return engine.Event{}, errors.New("turn ended without a result")
}

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}
