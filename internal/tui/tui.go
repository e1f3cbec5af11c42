package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/trickster/internal/client"
	"github.com/lox/trickster/internal/deck"
	"github.com/lox/trickster/internal/game"
	"github.com/lox/trickster/internal/protocol"
)

// Client is the server connection the TUI drives. *client.Client
// implements it.
type Client interface {
	CreateRoom(name string, maxPlayers int) error
	JoinRoom(roomID, name string) error
	LeaveRoom() error
	StartGame() error
	PlayCard(card deck.Card) error
	Resume(ctx context.Context) error
	Incoming() <-chan client.Event
	Done() <-chan struct{}
}

// TUIModel represents the Bubble Tea model for a trick-taking table
type TUIModel struct {
	conn   Client
	name   string
	logger *log.Logger

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// State
	gameLog     []string
	quitting    bool
	focusedPane int // 0 = log, 1 = input

	// Display state, all of it fed by server events
	roomID     string
	playerID   string
	hostID     string
	maxPlayers int
	members    []protocol.MemberInfo
	game       *protocol.GameStateData

	// Dimensions
	width       int
	height      int
	initialized bool // Track if viewport has been properly sized

	// Test mode
	testMode    bool
	capturedLog []string // For test assertions
}

// EventMsg carries a client event into the Bubble Tea loop.
type EventMsg client.Event

// QuitMsg is a custom message to signal quit
type QuitMsg struct{}

// resumeMsg reports the outcome of a reconnect attempt.
type resumeMsg struct{ err error }

// NewTUIModel creates a new TUI model driving conn as the named player.
func NewTUIModel(logger *log.Logger, conn Client, name string) *TUIModel {
	return NewTUIModelWithOptions(logger, conn, name, false)
}

// NewTUIModelWithOptions creates a new TUI model with test mode option
func NewTUIModelWithOptions(logger *log.Logger, conn Client, name string, testMode bool) *TUIModel {
	// Will be properly sized when WindowSizeMsg arrives
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "Type 'help' for commands"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(focusColor).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &TUIModel{
		conn:        conn,
		name:        name,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		actionInput: ti,
		gameLog:     []string{},
		focusedPane: 1, // Start with input focused
		testMode:    testMode,
		capturedLog: []string{},
	}
}

// Init initializes the TUI model
func (m *TUIModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

// listen waits for the next client event.
func (m *TUIModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.conn.Incoming():
			return EventMsg(ev)
		case <-m.conn.Done():
			return QuitMsg{}
		}
	}
}

// Update handles messages in the TUI
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case EventMsg:
		m.handleEvent(client.Event(msg))
		return m, m.listen()

	case resumeMsg:
		if msg.err != nil {
			m.AddLogEntry(ErrorStyle.Render("Reconnect failed: " + msg.err.Error()))
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updated dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				input := strings.TrimSpace(m.actionInput.Value())
				m.actionInput.SetValue("")
				if cmd := m.processAction(input); cmd != nil {
					return m, cmd
				}
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup", "b":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown", "f":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		case "home", "g":
			if m.focusedPane == 0 {
				m.logViewport.GotoTop()
			}
		case "end", "G":
			if m.focusedPane == 0 {
				m.logViewport.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the TUI
func (m *TUIModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	// Action pane (bottom, full width)
	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(focusColor).
		Width(max(m.width-2, 1)).
		Height(max(actionHeight, 1)).
		Render(actionContent)

	paneHeight := max(m.height-actionHeight-4, 1)

	// Sidebar pane (right of the log)
	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	// Log pane fills what is left
	logWidth := max(m.width-sidebarWidth-4, 1)
	m.logViewport.SetContent(m.renderLogPane())
	m.logViewport.Width = logWidth
	m.logViewport.Height = paneHeight

	// On first proper sizing, reset to top to avoid starting scrolled down
	if !m.initialized && logWidth > 1 && paneHeight > 1 {
		m.logViewport.GotoTop()
		m.initialized = true
	}

	logBorder := mutedColor
	if m.focusedPane == 0 {
		logBorder = focusColor
	}
	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(logBorder).
		Width(logWidth).
		Height(paneHeight).
		Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

func (m *TUIModel) renderLogPane() string {
	return strings.Join(m.gameLog, "\n")
}

// renderSidebarPane lists the room and its members.
func (m *TUIModel) renderSidebarPane() string {
	var content strings.Builder

	if m.roomID == "" {
		content.WriteString(InfoStyle.Render("Not in a room"))
		content.WriteString("\n")
		return content.String()
	}

	content.WriteString(HeaderStyle.Render(" " + m.roomID + " "))
	content.WriteString("\n")
	content.WriteString(InfoStyle.Render(fmt.Sprintf("%d/%d players", len(m.members), m.maxPlayers)))
	content.WriteString("\n\n")

	for _, mem := range m.members {
		marker := "  "
		if m.game != nil && m.game.CurrentPlayerID == mem.ID {
			marker = TurnStyle.Render("▶ ")
		}
		line := mem.Name
		if mem.ID == m.hostID {
			line += " (host)"
		}
		if m.game != nil {
			if p := m.game.Player(mem.ID); p != nil {
				line += fmt.Sprintf("  %d tricks", p.TricksWon)
			}
		}
		if !mem.Online {
			line = InfoStyle.Render(line + " [offline]")
		}
		content.WriteString(marker + line + "\n")
	}

	return content.String()
}

// renderActionPane renders the table, the hand and the input line.
func (m *TUIModel) renderActionPane() string {
	var content strings.Builder

	myTurn := m.isMyTurn()
	if g := m.game; g != nil && g.Status == game.StatusPlaying {
		trick := make([]string, 0, len(g.CurrentTrick))
		for _, tc := range g.CurrentTrick {
			trick = append(trick, fmt.Sprintf("%s %s", m.nameOf(tc.PlayerID), m.formatCard(tc.Card, true)))
		}
		lead := "-"
		if g.LeadSuit != nil {
			lead = g.LeadSuit.Symbol()
		}
		content.WriteString(HandInfoStyle.Render(fmt.Sprintf("Trick %d  Lead %s  ", g.TrickNumber, lead)))
		content.WriteString(strings.Join(trick, "  "))
		content.WriteString("\n")

		if p := g.Player(m.playerID); p != nil {
			content.WriteString(HandInfoStyle.Render("Hand: "))
			content.WriteString(m.formatHand(p.Hand, myTurn))
			content.WriteString("\n")
		}

		switch {
		case myTurn:
			status := "Your turn"
			if g.TurnEndsAt != nil {
				status += " (until " + g.TurnEndsAt.Local().Format("15:04:05") + ")"
			}
			content.WriteString(TurnStyle.Render(status))
		case g.CurrentPlayerID == "":
			content.WriteString(InfoStyle.Render("Waiting..."))
		default:
			content.WriteString(InfoStyle.Render("Waiting for " + m.nameOf(g.CurrentPlayerID)))
		}
		content.WriteString("\n")
	}

	switch {
	case myTurn:
		m.actionInput.Placeholder = "Card to play (e.g. Qh, 10s), or 'help'"
	case m.roomID == "":
		m.actionInput.Placeholder = "create [players] | join <room> | help"
	default:
		m.actionInput.Placeholder = "start | leave | help"
	}
	content.WriteString(m.actionInput.View())
	content.WriteString("\n")

	help := "Tab to scroll log • Enter to submit • Ctrl+C to quit"
	if m.focusedPane == 0 {
		help = "Log focused: ↑↓ scroll, PgUp/PgDn half page, Home/End, Tab to input"
	}
	content.WriteString(InfoStyle.Render(help))

	return content.String()
}

// formatHand renders the hand, dimming cards that cannot be played now.
func (m *TUIModel) formatHand(hand []deck.Card, myTurn bool) string {
	formatted := make([]string, len(hand))
	for i, c := range hand {
		playable := !myTurn || game.ValidateMove(m.game.State, m.playerID, c).Valid
		formatted[i] = m.formatCard(c, playable)
	}
	return "[" + strings.Join(formatted, " ") + "]"
}

// formatCard formats a card with colors
func (m *TUIModel) formatCard(c deck.Card, playable bool) string {
	switch {
	case c.IsPlaceholder() || !playable:
		return DimCardStyle.Render(c.String())
	case c.Suit.IsRed():
		return RedCardStyle.Render(c.String())
	default:
		return BlackCardStyle.Render(c.String())
	}
}

func (m *TUIModel) isMyTurn() bool {
	return m.game != nil && m.playerID != "" && m.game.Status == game.StatusPlaying &&
		m.game.CurrentPlayerID == m.playerID
}

// nameOf returns a player's display name, falling back to the id.
func (m *TUIModel) nameOf(playerID string) string {
	if playerID == m.playerID {
		return "You"
	}
	for _, mem := range m.members {
		if mem.ID == playerID {
			return mem.Name
		}
	}
	if m.game != nil {
		if p := m.game.Player(playerID); p != nil {
			return p.Name
		}
	}
	return playerID
}

// AddLogEntry adds an entry to the game log
func (m *TUIModel) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)

	if m.testMode {
		m.capturedLog = append(m.capturedLog, entry)
		return // Skip UI updates in test mode
	}

	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// ClearLog clears the game log
func (m *TUIModel) ClearLog() {
	m.gameLog = []string{}
	m.logViewport.SetContent("")
}

// GetCapturedLog returns the captured log entries (test mode only)
func (m *TUIModel) GetCapturedLog() []string {
	if !m.testMode {
		return nil
	}
	result := make([]string, len(m.capturedLog))
	copy(result, m.capturedLog)
	return result
}

// IsTestMode returns whether the TUI is in test mode
func (m *TUIModel) IsTestMode() bool {
	return m.testMode
}
