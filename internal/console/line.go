package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jwebster45206/hackslash/internal/engine"
)

// ErrInputClosed is returned when input ends while the game expects a reply.
var ErrInputClosed = errors.New("input closed")

// LineConsole plays the game over plain line-oriented input and output.
type LineConsole struct {
	eng     *engine.Engine
	scanner *bufio.Scanner
	out     io.Writer
}

func NewLineConsole(eng *engine.Engine, in io.Reader, out io.Writer) *LineConsole {
	return &LineConsole{
		eng:     eng,
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// Run loops until the player exits, declines a retry or wins. Running out
// of input ends the game quietly at the instruction prompt.
func (c *LineConsole) Run(ctx context.Context) error {
	c.println(titleStyle.Render("\n=== AI Hackslash (Line Mode) ==="))
	c.println("Welcome to the password extraction roguelike!\n")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		term := c.eng.Terminal()
		if term.Victorious {
			c.println(successStyle.Render("\nVICTORY! Every stage cleared. Congratulations!"))
			return nil
		}
		if term.GameOver {
			c.println(errorStyle.Render("\nGAME OVER..."))
			answer, ok := c.ask("Play again? (y/n): ")
			if !ok || strings.ToLower(answer) != "y" {
				return nil
			}
			if err := c.eng.ResetSession(); err != nil {
				return err
			}
			continue
		}

		st, ok := c.eng.CurrentStage()
		if !ok {
			return engine.ErrStageNotFound
		}
		capability := c.eng.Capability()

		c.println(titleStyle.Render(fmt.Sprintf("\nStage %d: %s", st.Ordinal, st.Name)))
		c.printf("Goal: get the enemy AI to say the password %q!\n", st.Secret)
		if st.OutputFilter {
			c.println(warningStyle.Render("WARNING: output filter active"))
		}
		c.printf("Model: %s | Turns: %d/%d\n", capability.GenerationTier, c.eng.TurnCount(), capability.TurnBudget)

		current := c.eng.Instruction()
		c.printf("\nEnter an instruction for your ally (now %d/%d characters)\n",
			utf8.RuneCountInString(current), capability.InstructionLimit)
		c.println("(empty keeps the current instruction, 'exit' quits)")
		if current != "" {
			c.println("Current instruction: " + current)
		}

		input, ok := c.ask("> ")
		if !ok || strings.EqualFold(input, "exit") {
			return nil
		}
		switch {
		case input != "":
			if n := utf8.RuneCountInString(input); n > capability.InstructionLimit {
				c.println(errorStyle.Render(fmt.Sprintf("Too long! (%d/%d)", n, capability.InstructionLimit)))
				continue
			}
			c.eng.SetInstruction(input)
		case current == "":
			c.println(errorStyle.Render("The instruction is empty. Please type one."))
			continue
		}

		c.println("\nConversation starts...\n")
		result, err := c.playTurn(ctx, st.OutputFilter)
		if err != nil {
			c.println(errorStyle.Render("Error: " + err.Error()))
			continue
		}

		switch result.Status {
		case engine.StatusClear:
			reason := "Password extracted!"
			if result.Suppressed {
				reason = "Filter bypassed!"
			}
			c.println(successStyle.Render("\n" + reason + " Stage clear!"))
			if err := c.settle(); err != nil {
				return err
			}
		case engine.StatusFailed:
			c.println(errorStyle.Render("\nOut of turns... stage failed."))
		}
	}
}

// playTurn streams one turn and returns its result event.
func (c *LineConsole) playTurn(ctx context.Context, filtered bool) (engine.Event, error) {
	var result engine.Event
	c.printf("%s: ", allyStyle.Render(AllyName))
	for ev := range c.eng.ProcessTurn(ctx) {
		switch ev.Type {
		case engine.EventAllyChunk:
			c.printf("%s", ev.Text)
		case engine.EventAllyDone:
			c.printf("\n%s: ", enemyStyle.Render(EnemyName))
		case engine.EventEnemyChunk:
			if !filtered {
				c.printf("%s", ev.Text)
			}
		case engine.EventEnemyDone:
			if filtered {
				c.printf("%s", ev.Text)
			}
			c.println("")
			if ev.Suppressed {
				c.println(warningStyle.Render(BlockedNotice))
			}
		case engine.EventTurnError:
			c.println("")
			return ev, ev.Err
		case engine.EventTurnResult:
			result = ev
		}
	}
	if result.Type != engine.EventTurnResult {
		return result, errors.New("turn ended without a result")
	}
	return result, nil
}

// settle offers the stage rewards and applies the player's choice.
func (c *LineConsole) settle() error {
	offer, err := c.eng.SettleStageClear()
	if err != nil {
		return err
	}
	if c.eng.Terminal().Victorious {
		return nil
	}
	if len(offer) == 0 {
		c.println("No upgrades left to offer. On to the next stage!")
		return nil
	}

	c.println(titleStyle.Render("\nTime to choose an upgrade"))
	for i, r := range offer {
		c.printf("%d. %s %s: %s\n", i+1,
			rarityStyle(r.Rarity.Color()).Render("["+string(r.Rarity)+"]"), r.Name, r.Description)
	}

	for {
		answer, ok := c.ask(fmt.Sprintf("\nChoice (1-%d): ", len(offer)))
		if !ok {
			return ErrInputClosed
		}
		n, err := strconv.Atoi(answer)
		if err != nil {
			c.println("Please enter a number.")
			continue
		}
		if err := c.eng.ApplyReward(n - 1); err != nil {
			if errors.Is(err, engine.ErrRewardIndex) {
				c.printf("Please enter a number from 1 to %d.\n", len(offer))
				continue
			}
			return err
		}
		c.println(successStyle.Render("Acquired " + offer[n-1].Name + "!"))
		return nil
	}
}

func (c *LineConsole) ask(prompt string) (string, bool) {
	c.printf("%s", prompt)
	if !c.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.scanner.Text()), true
}

func (c *LineConsole) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}

func (c *LineConsole) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
