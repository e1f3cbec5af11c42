package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/trickster/internal/protocol"
	"github.com/lox/trickster/internal/room"
	"github.com/lox/trickster/internal/session"
	"github.com/lox/trickster/internal/voice"
	"github.com/stretchr/testify/require"
)

const testGrace = 30 * time.Second

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// newTestServer runs a server on httptest with every timer on a mock clock.
// Turns are long enough that only grace timers fire in practice.
func newTestServer(t *testing.T, issuer *voice.Issuer) (*Server, *httptest.Server, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	srv := NewServer("", testLogger(), Options{
		Rooms: []room.Option{room.WithClock(clock), room.WithGrace(testGrace)},
		Sessions: []session.Option{
			session.WithClock(clock),
			session.WithConfig(session.Config{TurnTimeout: 10 * time.Minute, TrickDelay: time.Second}),
		},
		Voice:      issuer,
		MaxPlayers: 4,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Stop)
	return srv, ts, clock
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	msgs chan *protocol.Message
}

func dial(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	c := &testClient{t: t, conn: conn, msgs: make(chan *protocol.Message, 256)}
	go func() {
		defer close(c.msgs)
		for {
			var msg protocol.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			c.msgs <- &msg
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

func (c *testClient) send(messageType protocol.MessageType, data any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(protocol.MustMessage(messageType, data)))
}

// expect reads until a message of the given type arrives, discarding others.
func (c *testClient) expect(messageType protocol.MessageType) *protocol.Message {
	c.t.Helper()
	return c.expectMatch(messageType, func(*protocol.Message) bool { return true })
}

func (c *testClient) expectMatch(messageType protocol.MessageType, match func(*protocol.Message) bool) *protocol.Message {
	c.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				c.t.Fatalf("connection closed waiting for %s", messageType)
			}
			if msg.Type == messageType && match(msg) {
				return msg
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for %s", messageType)
			return nil
		}
	}
}

func (c *testClient) expectError(code string) protocol.ErrorData {
	c.t.Helper()
	data := decode[protocol.ErrorData](c.t, c.expect(protocol.TypeError))
	require.Equal(c.t, code, data.Code, data.Message)
	return data
}

func (c *testClient) expectState(match func(protocol.GameStateData) bool) protocol.GameStateData {
	c.t.Helper()
	var state protocol.GameStateData
	c.expectMatch(protocol.TypeGameState, func(msg *protocol.Message) bool {
		state = decode[protocol.GameStateData](c.t, msg)
		return match(state)
	})
	return state
}

func decode[T any](t *testing.T, msg *protocol.Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

// seatTwo creates a two-player room and returns both clients with the room id.
func seatTwo(t *testing.T, ts *httptest.Server) (alice, bob *testClient, roomID string) {
	t.Helper()
	alice = dial(t, ts)
	alice.send(protocol.TypeCreateRoom, protocol.CreateRoomData{PlayerID: "alice", Name: "Alice", MaxPlayers: 2})
	joined := decode[protocol.RoomJoinedData](t, alice.expect(protocol.TypeRoomJoined))
	roomID = joined.RoomID

	bob = dial(t, ts)
	bob.send(protocol.TypeJoinRoom, protocol.JoinRoomData{RoomID: roomID, PlayerID: "bob", Name: "Bob"})
	bob.expect(protocol.TypeRoomJoined)
	alice.expectMatch(protocol.TypePresence, func(msg *protocol.Message) bool {
		return decode[protocol.PresenceData](t, msg).PlayerID == "bob"
	})
	return alice, bob, roomID
}
