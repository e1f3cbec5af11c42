package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/trickster/internal/client"
	"github.com/lox/trickster/internal/deck"
	"github.com/lox/trickster/internal/game"
	"github.com/lox/trickster/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records the requests the model makes.
type fakeClient struct {
	calls  []string
	played []deck.Card
	err    error
	events chan client.Event
	done   chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan client.Event, 8), done: make(chan struct{})}
}

func (f *fakeClient) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeClient) CreateRoom(name string, maxPlayers int) error {
	return f.record("create " + name + " " + strings.Repeat("*", maxPlayers))
}
func (f *fakeClient) JoinRoom(roomID, name string) error { return f.record("join " + roomID + " " + name) }
func (f *fakeClient) LeaveRoom() error                   { return f.record("leave") }
func (f *fakeClient) StartGame() error                   { return f.record("start") }
func (f *fakeClient) Resume(context.Context) error       { return f.record("resume") }
func (f *fakeClient) Incoming() <-chan client.Event      { return f.events }
func (f *fakeClient) Done() <-chan struct{}              { return f.done }

func (f *fakeClient) PlayCard(card deck.Card) error {
	f.played = append(f.played, card)
	return f.record("play")
}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}) // Quiet logger for tests
}

func newTestModel() (*TUIModel, *fakeClient) {
	fake := newFakeClient()
	return NewTUIModelWithOptions(testLogger(), fake, "Alice", true), fake
}

func event(messageType protocol.MessageType, data any) EventMsg {
	return EventMsg{Msg: protocol.MustMessage(messageType, data)}
}

func lastLog(t *testing.T, m *TUIModel) string {
	t.Helper()
	captured := m.GetCapturedLog()
	require.NotEmpty(t, captured)
	return captured[len(captured)-1]
}

// seated puts the model in a two-player game where it is alice's turn.
func seated(t *testing.T, m *TUIModel) {
	t.Helper()
	m.Update(event(protocol.TypeRoomJoined, protocol.RoomJoinedData{
		RoomID:     "room_1",
		PlayerID:   "alice",
		HostID:     "alice",
		MaxPlayers: 2,
		Members: []protocol.MemberInfo{
			{ID: "alice", Name: "Alice", Online: true},
			{ID: "bob", Name: "Bob", Online: true, VoiceSlot: 1},
		},
	}))

	clubs := deck.Clubs
	m.Update(event(protocol.TypeGameState, protocol.GameStateData{State: &game.State{
		ID:     "game_1",
		RoomID: "room_1",
		Players: []*game.Player{
			{ID: "alice", Name: "Alice", Hand: deck.MustParseCards("Kc 5h"), Connected: true},
			{ID: "bob", Name: "Bob", Hand: deck.Concealed(1), Connected: true},
		},
		CurrentTrick:    []game.TrickCard{{PlayerID: "bob", Card: deck.MustParseCards("2c")[0]}},
		LeadSuit:        &clubs,
		CurrentPlayerID: "alice",
		TurnOrder:       []string{"bob", "alice"},
		TrickNumber:     1,
		Status:          game.StatusPlaying,
		HostID:          "alice",
		MaxPlayers:      2,
	}}))
}

func TestTUITestMode(t *testing.T) {
	t.Parallel()

	t.Run("test mode captures log entries", func(t *testing.T) {
		m, _ := newTestModel()
		assert.True(t, m.IsTestMode())
		assert.Empty(t, m.GetCapturedLog())

		m.AddLogEntry("Bob joined")
		m.AddLogEntry("Trick 1 won by Bob")
		assert.Equal(t, []string{"Bob joined", "Trick 1 won by Bob"}, m.GetCapturedLog())
	})

	t.Run("production mode does not capture logs", func(t *testing.T) {
		m := NewTUIModel(testLogger(), newFakeClient(), "Alice")
		assert.False(t, m.IsTestMode())
		m.AddLogEntry("Some log entry")
		assert.Nil(t, m.GetCapturedLog())
	})
}

func TestEventsUpdateDisplay(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel()

	_, cmd := m.Update(event(protocol.TypeRoomJoined, protocol.RoomJoinedData{
		RoomID:     "room_1",
		PlayerID:   "alice",
		HostID:     "alice",
		MaxPlayers: 3,
		Members:    []protocol.MemberInfo{{ID: "alice", Name: "Alice", Online: true}},
	}))
	assert.NotNil(t, cmd, "the model keeps listening after an event")
	assert.Contains(t, lastLog(t, m), "Joined room room_1")

	m.Update(event(protocol.TypePresence, protocol.PresenceData{
		RoomID:   "room_1",
		Kind:     protocol.PresenceJoined,
		PlayerID: "bob",
		HostID:   "alice",
		Members: []protocol.MemberInfo{
			{ID: "alice", Name: "Alice", Online: true},
			{ID: "bob", Name: "Bob", Online: true, VoiceSlot: 1},
		},
	}))
	assert.Contains(t, lastLog(t, m), "Bob joined")

	sidebar := m.renderSidebarPane()
	assert.Contains(t, sidebar, "room_1")
	assert.Contains(t, sidebar, "2/3 players")
	assert.Contains(t, sidebar, "Alice (host)")

	m.Update(event(protocol.TypeError, protocol.ErrorData{Code: protocol.CodeNotHost, Message: "Only the host can start the game"}))
	assert.Contains(t, lastLog(t, m), "Only the host can start the game")
}

func TestGameStateRendering(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel()
	seated(t, m)

	assert.Contains(t, m.GetCapturedLog(), "Your turn")

	pane := m.renderActionPane()
	assert.Contains(t, pane, "Trick 1")
	assert.Contains(t, pane, "Bob 2♣")
	assert.Contains(t, pane, "K♣")
	assert.Contains(t, pane, "5♥")
	assert.Contains(t, pane, "Your turn")
	assert.Contains(t, m.renderSidebarPane(), "Bob  0 tricks")

	m.Update(event(protocol.TypeTrickComplete, protocol.TrickCompleteData{
		GameID:      "game_1",
		WinnerID:    "alice",
		TrickNumber: 1,
		Trick: []game.TrickCard{
			{PlayerID: "bob", Card: deck.MustParseCards("2c")[0]},
			{PlayerID: "alice", Card: deck.MustParseCards("Kc")[0]},
		},
	}))
	assert.Equal(t, "Trick 1 won by You [2♣ K♣]", lastLog(t, m))

	m.Update(event(protocol.TypeGameOver, protocol.GameOverData{
		GameID:  "game_1",
		Reason:  protocol.ReasonAbandoned,
		Results: []game.Result{{PlayerID: "alice", TricksWon: 1}, {PlayerID: "bob"}},
	}))
	captured := m.GetCapturedLog()
	assert.Contains(t, captured, "Game abandoned")
	assert.Equal(t, "  Bob: 0 tricks", captured[len(captured)-1])
	assert.False(t, m.isMyTurn())
}

func TestProcessAction(t *testing.T) {
	t.Parallel()

	t.Run("room commands", func(t *testing.T) {
		m, fake := newTestModel()
		assert.Nil(t, m.processAction("create 3"))
		assert.Nil(t, m.processAction("join room_9"))
		assert.Nil(t, m.processAction("start"))
		assert.Nil(t, m.processAction("leave"))
		assert.Equal(t, []string{"create Alice ***", "join room_9 Alice", "start", "leave"}, fake.calls)
	})

	t.Run("play parses cards", func(t *testing.T) {
		m, fake := newTestModel()
		seated(t, m)
		m.processAction("play Kc")
		m.processAction("5h")
		assert.Equal(t, deck.MustParseCards("Kc 5h"), fake.played)
	})

	t.Run("bad input is reported", func(t *testing.T) {
		m, fake := newTestModel()
		m.processAction("play Zz")
		assert.Contains(t, lastLog(t, m), "invalid card")
		m.processAction("create lots")
		assert.Contains(t, lastLog(t, m), "invalid player count")
		m.processAction("dance")
		assert.Contains(t, lastLog(t, m), "unknown command")
		assert.Empty(t, fake.calls)
	})

	t.Run("client errors are reported", func(t *testing.T) {
		m, fake := newTestModel()
		fake.err = client.ErrNotInRoom
		m.processAction("start")
		assert.Equal(t, client.ErrNotInRoom.Error(), lastLog(t, m))
	})

	t.Run("resume runs as a command", func(t *testing.T) {
		m, fake := newTestModel()
		cmd := m.processAction("resume")
		require.NotNil(t, cmd)
		assert.Empty(t, fake.calls)

		msg := cmd()
		assert.Equal(t, resumeMsg{}, msg)
		assert.Equal(t, []string{"resume"}, fake.calls)

		m.Update(resumeMsg{err: errors.New("connection refused")})
		assert.Contains(t, lastLog(t, m), "connection refused")
	})
}

func TestDisconnectSuggestsResume(t *testing.T) {
	t.Parallel()
	m, _ := newTestModel()
	seated(t, m)

	m.Update(EventMsg{Err: client.ErrDisconnected})
	captured := m.GetCapturedLog()
	assert.Equal(t, "Type 'resume' to reclaim your seat", captured[len(captured)-1])
	assert.Equal(t, client.ErrDisconnected.Error(), captured[len(captured)-2])
}

func TestView(t *testing.T) {
	t.Parallel()
	m, fake := newTestModel()
	assert.Equal(t, "Loading...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	seated(t, m)
	view := m.View()
	assert.Contains(t, view, "room_1")
	assert.Contains(t, view, "Your turn")

	close(fake.done)
	msg := m.listen()()
	assert.Equal(t, QuitMsg{}, msg)
	m.Update(msg)
	assert.Empty(t, m.View())
}
