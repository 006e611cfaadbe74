// Package console is the terminal presentation of the game: a bubbletea
// model driving an engine, plus a plain line-mode loop.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/hackslash/internal/engine"
	"github.com/jwebster45206/hackslash/pkg/reward"
	"github.com/jwebster45206/hackslash/pkg/state"
)

const PlaceHolderText = "Tell your ally how to get the password..."

type screen int

const (
	screenPlay screen = iota
	screenRewards
	screenGameOver
	screenVictory
)

// ConsoleUI is the BubbleTea model that runs the game.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	eng    *engine.Engine
	ctx    context.Context
	logger *slog.Logger

	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	spinner      spinner.Model
	ready        bool
	width        int
	height       int

	screen        screen
	showQuitModal bool

	// In-flight turn
	streaming  bool
	cancelTurn context.CancelFunc
	allyLive   string
	enemyLive  string
	allyDone   bool
	result     *engine.Event

	offer       []reward.Reward
	selected    int
	hint        string
	hintLoading bool
	notice      string
	err         error

	copyToClipboard func(string) error
}

type turnEventMsg struct {
	ev engine.Event
	ch <-chan engine.Event
}

type turnClosedMsg struct{}

type hintMsg struct {
	hint string
	err  error
}

func NewConsoleUI(ctx context.Context, eng *engine.Engine, logger *slog.Logger) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = eng.Capability().InstructionLimit
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warningStyle

	return ConsoleUI{
		eng:             eng,
		ctx:             ctx,
		logger:          logger,
		textarea:        ta,
		chatViewport:    chatVp,
		metaViewport:    metaVp,
		spinner:         sp,
		copyToClipboard: clipboard.WriteAll,
	}
}

// Run starts the full-screen program and blocks until the player quits.
func Run(ctx context.Context, eng *engine.Engine, logger *slog.Logger) error {
	p := tea.NewProgram(NewConsoleUI(ctx, eng, logger),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.refresh()
		return m, nil

	case turnEventMsg:
		m.applyTurnEvent(msg.ev)
		m.refresh()
		return m, waitForEvent(msg.ch)

	case turnClosedMsg:
		m.finishTurn()
		m.refresh()
		return m, nil

	case hintMsg:
		m.applyHint(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.streaming && !m.hintLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlR:
			if m.streaming {
				return m, nil
			}
			m.reset()
			return m, nil
		case tea.KeyCtrlY:
			m.copyTranscript()
			return m, nil
		}

		switch m.screen {
		case screenRewards:
			return m.updateRewards(msg)
		case screenGameOver:
			return m.updateGameOver(msg)
		case screenVictory:
			return m.updateVictory(msg)
		}

		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)
	if m.screen == screenPlay && !m.streaming {
		m.textarea, tiCmd = m.textarea.Update(msg)
	}
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// submit stores the typed instruction and starts a turn. An empty input
// keeps the current instruction.
func (m ConsoleUI) submit() (tea.Model, tea.Cmd) {
	if m.streaming {
		return m, nil
	}

	input := strings.TrimSpace(m.textarea.Value())
	limit := m.eng.Capability().InstructionLimit
	switch {
	case input != "":
		if n := utf8.RuneCountInString(input); n > limit {
			m.notice = errorStyle.Render(fmt.Sprintf("Too long! (%d/%d)", n, limit))
			return m, nil
		}
		m.eng.SetInstruction(input)
	case m.eng.Instruction() == "":
		m.notice = errorStyle.Render("The instruction is empty. Type something first.")
		return m, nil
	}
	m.textarea.Reset()

	return m.startTurn()
}

func (m ConsoleUI) startTurn() (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelTurn = cancel
	m.streaming = true
	m.allyLive, m.enemyLive, m.allyDone = "", "", false
	m.result = nil
	m.notice, m.err = "", nil
	m.refresh()

	ch := make(chan engine.Event)
	eng := m.eng
	start := func() tea.Msg {
		go func() {
			defer close(ch)
			for ev := range eng.ProcessTurn(ctx) {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
		return waitForEvent(ch)()
	}
	return m, tea.Batch(start, m.spinner.Tick)
}

func waitForEvent(ch <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return turnClosedMsg{}
		}
		return turnEventMsg{ev: ev, ch: ch}
	}
}

func (m *ConsoleUI) applyTurnEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventAllyChunk:
		m.allyLive += ev.Text
	case engine.EventAllyDone:
		m.allyLive = ev.Text
		m.allyDone = true
	case engine.EventEnemyChunk:
		// Filtered stages only show the screened reply.
		if st, ok := m.eng.CurrentStage(); ok && !st.OutputFilter {
			m.enemyLive += ev.Text
		}
	case engine.EventEnemyDone:
		m.enemyLive = ev.Text
	case engine.EventTurnError:
		m.err = ev.Err
	case engine.EventTurnResult:
		m.result = &ev
	}
}

// finishTurn runs once the turn has fully returned, so the engine accepts
// progression calls.
func (m *ConsoleUI) finishTurn() {
	if m.cancelTurn != nil {
		m.cancelTurn()
		m.cancelTurn = nil
	}
	m.streaming = false
	m.allyLive, m.enemyLive, m.allyDone = "", "", false

	if m.err != nil {
		m.logger.Warn("Turn failed", "error", m.err)
		return
	}
	if m.result == nil {
		return
	}
	result := *m.result
	m.result = nil

	if result.Suppressed {
		m.notice = warningStyle.Render(BlockedNotice)
	}

	switch result.Status {
	case engine.StatusClear:
		offer, err := m.eng.SettleStageClear()
		if err != nil {
			m.err = err
			return
		}
		switch {
		case m.eng.Terminal().Victorious:
			m.screen = screenVictory
		case len(offer) == 0:
			m.notice = successStyle.Render("Stage clear! No upgrades left to offer.")
			m.textarea.CharLimit = m.eng.Capability().InstructionLimit
		default:
			m.offer = offer
			m.selected = 0
			m.screen = screenRewards
		}
	case engine.StatusFailed:
		m.screen = screenGameOver
		m.hint = ""
	}
}

func (m ConsoleUI) updateRewards(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.selected > 0 {
			m.selected--
		}
	case tea.KeyDown:
		if m.selected < len(m.offer)-1 {
			m.selected++
		}
	case tea.KeyEnter:
		m.applyReward(m.selected)
	case tea.KeyRunes:
		switch s := msg.String(); s {
		case "k":
			if m.selected > 0 {
				m.selected--
			}
		case "j":
			if m.selected < len(m.offer)-1 {
				m.selected++
			}
		default:
			if len(s) == 1 && s[0] >= '1' && int(s[0]-'0') <= len(m.offer) {
				m.applyReward(int(s[0] - '1'))
			}
		}
	}
	return m, nil
}

func (m *ConsoleUI) applyReward(index int) {
	chosen := m.offer[index]
	if err := m.eng.ApplyReward(index); err != nil {
		m.err = err
		return
	}
	m.offer = nil
	m.selected = 0
	m.screen = screenPlay
	m.textarea.CharLimit = m.eng.Capability().InstructionLimit
	m.notice = successStyle.Render("Upgrade applied: " + chosen.Name)
	m.refresh()
}

func (m ConsoleUI) updateGameOver(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.reset()
	case tea.KeyRunes:
		switch msg.String() {
		case "h", "H":
			if m.hintLoading || m.hint != "" {
				return m, nil
			}
			m.hintLoading = true
			return m, tea.Batch(m.requestHint(), m.spinner.Tick)
		case "r", "R", "y", "Y":
			m.reset()
		case "q", "Q", "n", "N":
			m.showQuitModal = true
		}
	}
	return m, nil
}

func (m ConsoleUI) updateVictory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r", "R", "enter":
		m.reset()
	case "q", "Q":
		m.showQuitModal = true
	}
	return m, nil
}

func (m ConsoleUI) requestHint() tea.Cmd {
	eng, ctx := m.eng, m.ctx
	return func() tea.Msg {
		hint, err := eng.AnalyzeFailure(ctx)
		return hintMsg{hint: hint, err: err}
	}
}

func (m *ConsoleUI) applyHint(msg hintMsg) {
	m.hintLoading = false
	if msg.err != nil {
		m.logger.Warn("Hint failed", "error", msg.err)
		m.hint = "Could not get a hint: " + msg.err.Error()
		return
	}
	m.hint = msg.hint
}

func (m *ConsoleUI) reset() {
	if err := m.eng.ResetSession(); err != nil {
		m.err = err
		return
	}
	m.screen = screenPlay
	m.offer = nil
	m.selected = 0
	m.hint = ""
	m.hintLoading = false
	m.err = nil
	m.textarea.Reset()
	m.textarea.CharLimit = m.eng.Capability().InstructionLimit
	m.notice = successStyle.Render("New run started.")
	m.refresh()
}

func (m *ConsoleUI) copyTranscript() {
	text := TranscriptText(m.eng.Transcript())
	if text == "" {
		m.notice = promptStyle.Render("Nothing to copy yet.")
		return
	}
	if err := m.copyToClipboard(text); err != nil {
		m.notice = errorStyle.Render("Copy failed: " + err.Error())
		return
	}
	m.notice = successStyle.Render("Transcript copied to clipboard.")
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case turnEventMsg:
		// keep draining so the turn can finish underneath the modal
		m.applyTurnEvent(msg.ev)
		return m, waitForEvent(msg.ch)

	case turnClosedMsg:
		m.finishTurn()

	case hintMsg:
		m.applyHint(msg)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m.quit()
		case tea.KeyEsc:
			m.showQuitModal = false
			return m, nil
		default:
			switch msg.String() {
			case "y", "Y":
				return m.quit()
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}
	return m, nil
}

func (m ConsoleUI) quit() (tea.Model, tea.Cmd) {
	if m.cancelTurn != nil {
		m.cancelTurn()
	}
	return m, tea.Quit
}

func (m *ConsoleUI) layout() {
	chatWidth := int(float64(m.width)*0.68) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 9
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

// refresh rebuilds both panels from the engine state.
func (m *ConsoleUI) refresh() {
	m.chatViewport.SetContent(m.chatContent())
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(m.briefing())
}

func (m ConsoleUI) chatContent() string {
	width := m.chatViewport.Width - 6
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("AI HACKSLASH") + "\n\n")
	content.WriteString("Write an instruction for your ally. It will try to talk the enemy AI into saying the password.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, msg := range m.eng.Transcript() {
		content.WriteString(formatLine(msg.Speaker, msg.Text, width) + "\n")
		if msg.Suppressed {
			content.WriteString(warningStyle.Render(BlockedNotice) + "\n")
		}
		content.WriteString("\n")
	}

	if m.streaming {
		if m.allyLive != "" || !m.allyDone {
			content.WriteString(formatLine(state.SpeakerAlly, m.allyLive, width) + "\n\n")
		}
		if m.allyDone {
			content.WriteString(formatLine(state.SpeakerEnemy, m.enemyLive, width) + "\n\n")
		}
		content.WriteString(m.spinner.View() + promptStyle.Render(" thinking...") + "\n")
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.notice != "" {
		content.WriteString(m.notice + "\n")
	}
	return content.String()
}

// statusLine shows stage, tier, turns and instruction length.
func (m ConsoleUI) statusLine() string {
	snap := m.eng.Snapshot()
	c := snap.Capability
	return fmt.Sprintf("Stage %d/%d | Model: %s | Turn %d/%d | Prompt %d/%d",
		min(c.StageOrdinal, m.eng.TotalStages()), m.eng.TotalStages(),
		c.GenerationTier,
		snap.TurnCount, c.TurnBudget,
		utf8.RuneCountInString(snap.Instruction), c.InstructionLimit,
	)
}

func (m ConsoleUI) briefing() string {
	var content strings.Builder
	st, ok := m.eng.CurrentStage()
	if !ok {
		content.WriteString(titleStyle.Render("ALL STAGES CLEARED") + "\n")
		return content.String()
	}

	content.WriteString(titleStyle.Render(fmt.Sprintf("STAGE %d: %s", st.Ordinal, strings.ToUpper(st.Name))) + "\n\n")
	content.WriteString("Goal:\nGet the enemy AI to say the password.\n\n")
	content.WriteString("Enemy:\n" + st.Description + "\n\n")
	if st.WeaknessHint != "" {
		content.WriteString(promptStyle.Render(st.WeaknessHint) + "\n\n")
	}
	if st.OutputFilter {
		content.WriteString(warningStyle.Render("WARNING: Output filter active.\nA leaked password is blocked on screen but still counts.") + "\n\n")
	}

	if instruction := m.eng.Instruction(); instruction != "" {
		content.WriteString("Current instruction:\n" + instruction + "\n\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Send (empty keeps instruction)\n")
	content.WriteString("• Ctrl+Y: Copy transcript\n")
	content.WriteString("• Ctrl+R: New run\n")
	content.WriteString("• Esc: Quit\n")
	return content.String()
}

func (m ConsoleUI) renderRewardModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Stage Clear! Choose an Upgrade"))
	content.WriteString("\n\n")

	for i, r := range m.offer {
		label := fmt.Sprintf("%d. [%s] %s", i+1, strings.ToUpper(string(r.Rarity)), r.Name)
		if i == m.selected {
			content.WriteString(modalSelectedItemStyle.Render("▶ " + label))
		} else {
			content.WriteString(modalItemStyle.Render("  ") + rarityStyle(r.Rarity.Color()).Render(label))
		}
		content.WriteString("\n   " + promptStyle.Render(r.Description) + "\n")
	}

	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Use ↑/↓ or 1-3 to choose, Enter to apply"))
	return m.place(modalStyle.Width(60).Render(content.String()))
}

func (m ConsoleUI) renderGameOver() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("GAME OVER"))
	content.WriteString("\n\n")
	content.WriteString("Your ally ran out of turns.\n\n")

	switch {
	case m.hintLoading:
		content.WriteString(m.spinner.View() + " Analyzing the conversation...\n\n")
	case m.hint != "":
		content.WriteString(warningStyle.Render("Hint: "+m.hint) + "\n\n")
	default:
		content.WriteString(promptStyle.Render("Press H for a hint") + "\n\n")
	}
	content.WriteString(promptStyle.Render("Press R to play again, Q to quit"))
	return m.place(modalStyle.Width(60).Render(content.String()))
}

func (m ConsoleUI) renderVictory() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("VICTORY!"))
	content.WriteString("\n\n")
	content.WriteString(successStyle.Render("Every stage cleared. Congratulations!"))
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press R to play again, Q to quit"))
	return m.place(modalStyle.Width(50).Render(content.String()))
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to quit? Progress is not saved.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))
	return m.place(modalStyle.Width(50).Render(content.String()))
}

func (m ConsoleUI) place(modal string) string {
	if m.width == 0 || m.height == 0 {
		return modal
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	switch m.screen {
	case screenRewards:
		return m.renderRewardModal()
	case screenGameOver:
		return m.renderGameOver()
	case screenVictory:
		return m.renderVictory()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.68) - 4
	metaWidth := m.width - chatWidth - 6

	status := statusBarStyle.Width(m.width).Render(m.statusLine())

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 3).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		status,
		lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel),
	)
}
