package session

import (
	"context"
	"encoding/json"
	"io"
	rand "math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/trickster/internal/deck"
	"github.com/lox/trickster/internal/game"
	"github.com/lox/trickster/internal/protocol"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{TurnTimeout: 10 * time.Second, TrickDelay: 2 * time.Second}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

// recorder is a Transport that keeps everything it is asked to send.
type recorder struct {
	mu     sync.Mutex
	direct map[string][]*protocol.Message
	room   []*protocol.Message
}

func newRecorder() *recorder {
	return &recorder{direct: make(map[string][]*protocol.Message)}
}

func (r *recorder) SendToPlayer(playerID string, msg *protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[playerID] = append(r.direct[playerID], msg)
	return nil
}

func (r *recorder) BroadcastToRoom(_ string, msg *protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = append(r.room, msg)
}

func (r *recorder) lastState(t *testing.T, playerID string) protocol.GameStateData {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.direct[playerID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == protocol.TypeGameState {
			var data protocol.GameStateData
			require.NoError(t, json.Unmarshal(msgs[i].Data, &data))
			return data
		}
	}
	t.Fatalf("no game_state sent to %s", playerID)
	return protocol.GameStateData{}
}

func (r *recorder) broadcasts(typ protocol.MessageType) []*protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*protocol.Message
	for _, msg := range r.room {
		if msg.Type == typ {
			out = append(out, msg)
		}
	}
	return out
}

func decode[T any](t *testing.T, msg *protocol.Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

// newTestSession starts a session over explicit hands, seated in order with
// the first player to lead.
func newTestSession(t *testing.T, hands map[string]string, order ...string) (*Session, *quartz.Mock, *recorder) {
	t.Helper()
	state := &game.State{
		ID:              "game-1",
		RoomID:          "room-1",
		Round:           1,
		TrickNumber:     1,
		Status:          game.StatusPlaying,
		HostID:          order[0],
		MaxPlayers:      game.MaxPlayers,
		TurnOrder:       order,
		CurrentPlayerID: order[0],
	}
	for _, id := range order {
		state.Players = append(state.Players, &game.Player{
			ID:        id,
			Name:      id,
			Hand:      deck.MustParseCards(hands[id]),
			Connected: true,
		})
	}

	clock := quartz.NewMock(t)
	rec := newRecorder()
	s := newSession(state, testConfig, clock, testRNG(1), rec, testLogger(), nil)
	s.start()
	return s, clock, rec
}

// fireNext advances the mock clock to the next timer and waits for its
// callback to return.
func fireNext(t *testing.T, clock *quartz.Mock) time.Duration {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, w := clock.AdvanceNext()
	w.MustWait(ctx)
	return d
}

func card(s string) deck.Card {
	c, err := deck.ParseCard(s)
	if err != nil {
		panic(err)
	}
	return c
}
