package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lox/trickster/internal/client"
	"github.com/lox/trickster/internal/deck"
	"github.com/lox/trickster/internal/game"
	"github.com/lox/trickster/internal/protocol"
)

const resumeTimeout = 10 * time.Second

var helpLines = []string{
	"Commands:",
	"  create [players]   open a room for 2-4 players",
	"  join <room>        join a room by id",
	"  start              deal a game (host only)",
	"  play <card>        play a card, e.g. 'play Qh' or just 'Qh'",
	"  leave              leave the room",
	"  resume             reconnect after a dropped connection",
	"  quit               exit",
}

// handleEvent folds one server event into the display state.
func (m *TUIModel) handleEvent(ev client.Event) {
	if ev.Err != nil {
		m.AddLogEntry(ErrorStyle.Render(ev.Err.Error()))
		if m.roomID != "" {
			m.AddLogEntry(WarningStyle.Render("Type 'resume' to reclaim your seat"))
		}
		return
	}

	msg := ev.Msg
	m.logger.Debug("Event", "type", msg.Type)

	switch msg.Type {
	case protocol.TypeRoomJoined:
		var data protocol.RoomJoinedData
		if m.decode(msg, &data) {
			m.roomID, m.playerID, m.hostID = data.RoomID, data.PlayerID, data.HostID
			m.maxPlayers, m.members = data.MaxPlayers, data.Members
			if data.GameID == "" {
				m.game = nil
			}
			m.AddLogEntry(SuccessStyle.Render(fmt.Sprintf("Joined room %s as %s (voice slot %d)", data.RoomID, data.PlayerID, data.VoiceSlot)))
		}

	case protocol.TypePresence:
		var data protocol.PresenceData
		if m.decode(msg, &data) {
			m.onPresence(data)
		}

	case protocol.TypeGameState:
		var data protocol.GameStateData
		if m.decode(msg, &data) && data.State != nil {
			m.onGameState(data)
		}

	case protocol.TypeTrickComplete:
		var data protocol.TrickCompleteData
		if m.decode(msg, &data) {
			cards := make([]string, len(data.Trick))
			for i, tc := range data.Trick {
				cards[i] = tc.Card.String()
			}
			m.AddLogEntry(fmt.Sprintf("Trick %d won by %s [%s]", data.TrickNumber, m.nameOf(data.WinnerID), strings.Join(cards, " ")))
		}

	case protocol.TypePlayerTimeout:
		var data protocol.PlayerTimeoutData
		if m.decode(msg, &data) {
			m.AddLogEntry(WarningStyle.Render(fmt.Sprintf("%s ran out of time, played %s", m.nameOf(data.PlayerID), data.Card)))
		}

	case protocol.TypeGameOver:
		var data protocol.GameOverData
		if m.decode(msg, &data) {
			m.onGameOver(data)
		}

	case protocol.TypeError:
		var data protocol.ErrorData
		if m.decode(msg, &data) {
			m.AddLogEntry(ErrorStyle.Render("Error: " + data.Message))
		}
	}
}

func (m *TUIModel) decode(msg *protocol.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		m.logger.Warn("Dropping malformed message", "type", msg.Type, "error", err)
		return false
	}
	return true
}

func (m *TUIModel) onPresence(data protocol.PresenceData) {
	name := m.nameOf(data.PlayerID)
	if data.PlayerID == m.playerID && data.Kind == protocol.PresenceLeft {
		m.roomID, m.hostID, m.members, m.game = "", "", nil, nil
		m.AddLogEntry("You left the room")
		return
	}

	m.hostID, m.members = data.HostID, data.Members
	if data.Kind == protocol.PresenceJoined {
		// The joiner was not a member when name was resolved.
		name = m.nameOf(data.PlayerID)
	}
	m.AddLogEntry(InfoStyle.Render(fmt.Sprintf("%s %s", name, data.Kind)))
}

func (m *TUIModel) onGameState(data protocol.GameStateData) {
	prev := m.game
	m.game = &data

	if prev == nil || prev.ID != data.ID {
		m.AddLogEntry(SuccessStyle.Render(fmt.Sprintf("Game %s dealt to %d players", data.ID, len(data.Players))))
	}
	wasMyTurn := prev != nil && prev.CurrentPlayerID == m.playerID
	if m.isMyTurn() && !wasMyTurn {
		m.AddLogEntry(TurnStyle.Render("Your turn"))
	}
}

func (m *TUIModel) onGameOver(data protocol.GameOverData) {
	if data.Reason == protocol.ReasonAbandoned {
		m.AddLogEntry(WarningStyle.Render("Game abandoned"))
	} else {
		m.AddLogEntry(SuccessStyle.Render("Game over"))
	}
	for _, r := range data.Results {
		m.AddLogEntry(fmt.Sprintf("  %s: %d tricks", m.nameOf(r.PlayerID), r.TricksWon))
	}
	if m.game != nil && m.game.ID == data.GameID {
		m.game.Status = game.StatusFinished
		m.game.CurrentPlayerID = ""
	}
}

// processAction runs one line of user input. It returns a command when the
// action needs to run outside Update.
func (m *TUIModel) processAction(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}
	action, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch action {
	case "help", "?":
		for _, line := range helpLines {
			m.AddLogEntry(line)
		}
	case "quit", "exit":
		m.quitting = true
		return tea.Sequence(tea.ClearScreen, tea.Quit)
	case "create":
		maxPlayers := 0
		if len(args) > 0 {
			if maxPlayers, err = strconv.Atoi(args[0]); err != nil {
				err = fmt.Errorf("invalid player count %q", args[0])
				break
			}
		}
		err = m.conn.CreateRoom(m.name, maxPlayers)
	case "join":
		if len(args) != 1 {
			err = fmt.Errorf("usage: join <room>")
			break
		}
		err = m.conn.JoinRoom(args[0], m.name)
	case "leave":
		err = m.conn.LeaveRoom()
	case "start":
		err = m.conn.StartGame()
	case "resume":
		conn := m.conn
		m.AddLogEntry("Reconnecting...")
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), resumeTimeout)
			defer cancel()
			return resumeMsg{err: conn.Resume(ctx)}
		}
	case "play":
		if len(args) != 1 {
			err = fmt.Errorf("usage: play <card>")
			break
		}
		err = m.playCard(args[0])
	default:
		// A bare card is shorthand for play.
		if _, perr := deck.ParseCard(parts[0]); perr == nil && len(args) == 0 {
			err = m.playCard(parts[0])
			break
		}
		err = fmt.Errorf("unknown command %q, type 'help'", action)
	}

	if err != nil {
		m.AddLogEntry(ErrorStyle.Render(err.Error()))
	}
	return nil
}

func (m *TUIModel) playCard(s string) error {
	card, err := deck.ParseCard(s)
	if err != nil {
		return err
	}
	return m.conn.PlayCard(card)
}
