package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/parley/internal/conversation"
	"github.com/jwebster45206/parley/internal/services"
)

const (
	// npcPause spaces out turns so a watched conversation can be read
	npcPause = 1200 * time.Millisecond

	// PlayerOptionsHeight is the space reserved under the chat for choices
	PlayerOptionsHeight = conversation.PlayerOptions + 1
)

// ConsoleSpeaker forwards speech into a running bubbletea program. Its
// methods never touch the model directly, so they are safe to call while a
// conversation holds its lock.
type ConsoleSpeaker struct {
	program atomic.Pointer[tea.Program]
}

var _ services.SpeakerService = (*ConsoleSpeaker)(nil)

// Attach starts delivering to p; nil detaches
func (s *ConsoleSpeaker) Attach(p *tea.Program) {
	s.program.Store(p)
}

func (s *ConsoleSpeaker) send(msg tea.Msg) {
	if p := s.program.Load(); p != nil {
		p.Send(msg)
	}
}

func (s *ConsoleSpeaker) CloseChat(_ context.Context, agentID, targetID int64) error {
	s.send(closeMsg{agentID: agentID, targetID: targetID})
	return nil
}

func (s *ConsoleSpeaker) PossibleResponses(_ context.Context, agentID int64, texts []string) error {
	s.send(optionsMsg{agentID: agentID, texts: append([]string(nil), texts...)})
	return nil
}

func (s *ConsoleSpeaker) Speak(_ context.Context, agentID int64, text string) error {
	s.send(speakMsg{agentID: agentID, text: text})
	return nil
}

type speakMsg struct {
	agentID int64
	text    string
}

type optionsMsg struct {
	agentID int64
	texts   []string
}

type closeMsg struct {
	agentID  int64
	targetID int64
}

// turnMsg is the conversation as it stood after a step, read off the UI
// goroutine
type turnMsg struct {
	state   conversation.State
	options []string
	topics  []string
	turns   int
	err     error
}

type nextTurnMsg struct{}

type progressTickMsg struct{}

type line struct {
	agentID int64
	text    string
}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	playerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // teal
			Bold(true)

	npcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // green
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = promptStyle

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

// ConsoleUI shows one conversation. With a player it waits for their choice
// on each of their turns; without one it plays the NPCs out at reading pace.
type ConsoleUI struct {
	ctx  context.Context
	conv *conversation.Conversation

	names        map[int64]string
	participants [2]int64
	playerID     int64 // zero when nobody is playing

	chatViewport viewport.Model
	metaViewport viewport.Model
	ready        bool
	width        int
	height       int

	lines    []line
	options  []string
	selected int
	topics   []string
	turns    int
	finished bool
	busy     bool
	err      error

	showQuitModal bool
	progressTick  int
}

func NewConsoleUI(ctx context.Context, conv *conversation.Conversation) ConsoleUI {
	m := ConsoleUI{
		ctx:  ctx,
		conv: conv,
		names: map[int64]string{
			conv.Initiator.ID:  conv.Initiator.Name,
			conv.Respondent.ID: conv.Respondent.Name,
		},
		participants: [2]int64{conv.Initiator.ID, conv.Respondent.ID},
		chatViewport: viewport.New(50, 20),
		metaViewport: viewport.New(20, 20),
		busy:         true,
	}
	m.chatViewport.MouseWheelEnabled = true
	switch {
	case conv.Initiator.Player:
		m.playerID = conv.Initiator.ID
	case conv.Respondent.Player:
		m.playerID = conv.Respondent.ID
	}
	return m
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.step(), progressTick())
}

// step asks the conversation for its next turn
func (m ConsoleUI) step() tea.Cmd {
	conv, ctx := m.conv, m.ctx
	return func() tea.Msg {
		err := conv.PrepareNextResponse(ctx)
		return snapshot(conv, err)
	}
}

// choose commits option i
func (m ConsoleUI) choose(i int) tea.Cmd {
	conv, ctx := m.conv, m.ctx
	return func() tea.Msg {
		err := conv.SelectFromOptions(ctx, i)
		return snapshot(conv, err)
	}
}

func snapshot(conv *conversation.Conversation, err error) turnMsg {
	msg := turnMsg{
		state:  conv.State(),
		topics: conv.TopicsCovered(),
		turns:  len(conv.History()),
		err:    err,
	}
	for _, a := range conv.Options() {
		msg.options = append(msg.options, a.Text())
	}
	return msg
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chatViewport, cmd = m.chatViewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatWidth, metaWidth := m.panelWidths()
		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 4 - PlayerOptionsHeight
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.ready = true

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selected > 0 {
				m.selected--
			}
		case tea.KeyDown:
			if m.selected < len(m.options)-1 {
				m.selected++
			}
		case tea.KeyEnter:
			if m.finished {
				return m, tea.Quit
			}
			if cmd := m.pick(m.selected); cmd != nil {
				m.busy = true
				m.selected = 0
				m.progressTick = 0
				return m, cmd
			}
		case tea.KeyRunes:
			if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
				if cmd := m.pick(int(s[0] - '1')); cmd != nil {
					m.busy = true
					m.selected = 0
					m.progressTick = 0
					return m, cmd
				}
			}
		}

	case speakMsg:
		m.lines = append(m.lines, line{agentID: msg.agentID, text: msg.text})

	case optionsMsg:
		// phrased options arrive after the structural ones
		if msg.agentID == m.playerID && len(msg.texts) == len(m.options) {
			m.options = msg.texts
		}

	case closeMsg:
		m.finished = true

	case turnMsg:
		m.busy = false
		m.err = msg.err
		m.topics = msg.topics
		m.turns = msg.turns
		m.options = msg.options
		if m.selected >= len(m.options) {
			m.selected = 0
		}
		if msg.state == conversation.Finished {
			m.finished = true
			m.options = nil
			break
		}
		if len(m.options) == 0 {
			// an NPC spoke; let the line land before the next turn
			m.busy = true
			cmds = append(cmds, tea.Tick(npcPause, func(time.Time) tea.Msg { return nextTurnMsg{} }))
		}

	case nextTurnMsg:
		cmds = append(cmds, m.step())

	case progressTickMsg:
		if !m.finished {
			m.progressTick++
			cmds = append(cmds, progressTick())
		}
	}

	m.writeChatContent()
	m.metaViewport.SetContent(m.writeMetadata())
	return m, tea.Batch(cmds...)
}

// pick returns the command committing option i, or nil if i can't be chosen
// right now
func (m ConsoleUI) pick(i int) tea.Cmd {
	if m.busy || m.finished || i < 0 || i >= len(m.options) {
		return nil
	}
	return m.choose(i)
}

func (m ConsoleUI) panelWidths() (int, int) {
	chatWidth := int(float64(m.width)*0.75) - 4
	return chatWidth, m.width - chatWidth - 6
}

func (m *ConsoleUI) writeChatContent() {
	width := m.chatViewport.Width - 6
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("PARLEY") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")
	for _, l := range m.lines {
		content.WriteString(m.formatLine(l, width) + "\n\n")
	}
	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.finished {
		content.WriteString(promptStyle.Render("The conversation is over. Press Enter to leave.") + "\n")
	} else if m.busy {
		content.WriteString(m.renderProgressBar())
	}
	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m ConsoleUI) formatLine(l line, width int) string {
	name := m.names[l.agentID]
	style := npcStyle
	if l.agentID == m.playerID {
		style = playerStyle
	}
	prefix := name + ": "
	wrapped := wordwrap.String(l.text, width-len(prefix))
	return style.Render(prefix) + strings.ReplaceAll(wrapped, "\n", "\n"+strings.Repeat(" ", len(prefix)))
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("CONVERSATION") + "\n\n")

	content.WriteString("Between:\n")
	for _, a := range m.participants {
		who := m.names[a]
		if a == m.playerID {
			who += " (you)"
		}
		content.WriteString("• " + who + "\n")
	}
	content.WriteString("\n")

	content.WriteString("Turns:\n")
	content.WriteString(fmt.Sprintf("%d\n\n", m.turns))

	content.WriteString("Topics:\n")
	if len(m.topics) == 0 {
		content.WriteString("None yet\n")
	}
	for _, t := range m.topics {
		content.WriteString("• " + t + "\n")
	}
	content.WriteString("\n")

	content.WriteString("Keys:\n")
	content.WriteString("• ↑/↓ or 1-3: Choose\n")
	content.WriteString("• Enter: Say it\n")
	content.WriteString("• Esc: Leave\n")
	return content.String()
}

func (m ConsoleUI) renderOptions(width int) string {
	if len(m.options) == 0 {
		return strings.Repeat("\n", PlayerOptionsHeight-1)
	}
	var content strings.Builder
	for i, o := range m.options {
		text := fmt.Sprintf("%d. %s", i+1, o)
		if len(text) > width {
			text = text[:width-1] + "…"
		}
		if i == m.selected {
			content.WriteString(selectedOptionStyle.Render("▶ "+text) + "\n")
		} else {
			content.WriteString(optionStyle.Render("  "+text) + "\n")
		}
	}
	content.WriteString(promptStyle.Render("Choose what to say"))
	return content.String()
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case speakMsg:
		m.lines = append(m.lines, line{agentID: msg.agentID, text: msg.text})
	case closeMsg:
		m.finished = true
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
			}
		}
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Walk Away?"))
	content.WriteString("\n\n")
	content.WriteString("Leaving ends the conversation for both of you.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to leave, N to stay, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth, metaWidth := m.panelWidths()
	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.renderOptions(chatWidth-6),
		),
	)
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar animates while a turn is being prepared
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
